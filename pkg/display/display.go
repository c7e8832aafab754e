// Package display defines the touchscreen boundary: write commands going out and UI events coming in.
package display

// Object identifies a ViSi-Genie object type. The numbering follows the display firmware.
type Object uint8

const (
	ObjDipSwitch  Object = 0
	ObjKnob       Object = 1
	ObjRocker     Object = 2
	ObjRotary     Object = 3
	ObjSlider     Object = 4
	ObjTrackbar   Object = 5
	ObjWinButton  Object = 6
	ObjGauge      Object = 11
	ObjForm       Object = 10
	ObjKeyboard   Object = 13
	ObjLED        Object = 14
	ObjLEDDigits  Object = 15
	ObjStrings    Object = 17
	ObjSound      Object = 22
	ObjScope      Object = 25
	ObjUserLED    Object = 19
	Obj4DButton   Object = 30
	ObjUserButton Object = 33
)

var objectNames = map[Object]string{
	ObjDipSwitch:  "dipswitch",
	ObjKnob:       "knob",
	ObjRocker:     "rocker",
	ObjRotary:     "rotary",
	ObjSlider:     "slider",
	ObjTrackbar:   "trackbar",
	ObjWinButton:  "winbutton",
	ObjGauge:      "gauge",
	ObjForm:       "form",
	ObjKeyboard:   "keyboard",
	ObjLED:        "led",
	ObjLEDDigits:  "leddigits",
	ObjStrings:    "strings",
	ObjSound:      "sound",
	ObjScope:      "scope",
	ObjUserLED:    "userled",
	Obj4DButton:   "4dbutton",
	ObjUserButton: "userbutton",
}

func (o Object) String() string {
	if name, ok := objectNames[o]; ok {
		return name
	}
	return "object"
}

// Event is a single report from the display: which object fired and its new value.
type Event struct {
	Object Object
	Index  int
	Value  int
}

// Sink is the touchscreen (real or simulated).
//
// Writes are fire-and-forget: a failed write is logged by the implementation and dropped.
// Events is closed when the sink is closed.
type Sink interface {
	WriteText(index int, text string)
	WriteObject(obj Object, index int, value int)
	Events() <-chan Event
	Close() error
}

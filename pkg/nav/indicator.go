package nav

import "github.com/itohio/vehiclemon/pkg/display"

// Indicator signals an alarm audibly.
type Indicator interface {
	// Alert starts the alarm sound for channel ch.
	Alert(ch int)
	// Silence stops any alarm sound.
	Silence()
}

// Indicators fans out to several indicators.
type Indicators []Indicator

func (is Indicators) Alert(ch int) {
	for _, i := range is {
		i.Alert(ch)
	}
}

func (is Indicators) Silence() {
	for _, i := range is {
		i.Silence()
	}
}

// DisplaySound plays the display's sound track matching the channel index.
type DisplaySound struct {
	Sink display.Sink
}

func (d DisplaySound) Alert(ch int) {
	d.Sink.WriteObject(display.ObjSound, SoundPlay, ch)
}

func (d DisplaySound) Silence() {
	d.Sink.WriteObject(display.ObjSound, SoundStop, 0)
}

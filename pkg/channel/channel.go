// Package channel holds the per-channel calibration and alarm model of the monitor.
package channel

import (
	"fmt"
	"strings"
)

// Count is the number of analog inputs (two four-channel converters).
const Count = 8

// Defaults restored by the reset actions.
const (
	DefaultGradient = 1.0
	DefaultOffset   = 0.0
	DefaultAlarmMin = -5.0
	DefaultAlarmMax = 5.0
)

// InputRange is the fixed raw input span of the converter. Display bounds are derived
// from it whenever the calibration coefficients change.
type InputRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultInputRange matches the 0-5V input stage of the ADC board.
var DefaultInputRange = InputRange{Min: 0, Max: 5}

// Field names a numerically editable channel attribute.
type Field int

const (
	FieldGradient Field = iota
	FieldOffset
	FieldDisplayMax
	FieldDisplayMin
	FieldRef1
	FieldRef2
	FieldAlarmMin
	FieldAlarmMax
)

var fieldNames = [...]string{
	FieldGradient:   "gradient",
	FieldOffset:     "offset",
	FieldDisplayMax: "max",
	FieldDisplayMin: "min",
	FieldRef1:       "ref_volt_1",
	FieldRef2:       "ref_volt_2",
	FieldAlarmMin:   "alarm_min",
	FieldAlarmMax:   "alarm_max",
}

func (f Field) String() string {
	if f >= 0 && int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Channel is the complete state of one analog input.
type Channel struct {
	RawVoltage        float64 // last converter reading
	CalibratedVoltage float64 // Gradient*RawVoltage + Offset

	Gradient float64
	Offset   float64

	DisplayMin float64
	DisplayMax float64

	// Two-point fit inputs: RefPoint is the known voltage entered by the user,
	// TruePoint the raw reading captured while that voltage was applied.
	RefPoint1  float64
	RefPoint2  float64
	TruePoint1 float64
	TruePoint2 float64

	AlarmMin    float64
	AlarmMax    float64
	Armed       bool
	AlarmActive bool

	// Transient UI selection, not persisted.
	Selected       bool
	RockerSelected bool

	// Sampling health.
	Reads  int // successful reads since start
	Misses int // consecutive failed reads
}

// Default returns a channel with unity calibration and a disarmed symmetric alarm band.
func Default(input InputRange) Channel {
	c := Channel{
		Gradient: DefaultGradient,
		Offset:   DefaultOffset,
		AlarmMin: DefaultAlarmMin,
		AlarmMax: DefaultAlarmMax,
	}
	c.updateDisplayBounds(input)
	return c
}

// Calibrate applies the linear calibration to a raw reading.
func (c *Channel) Calibrate(raw float64) float64 {
	return c.Gradient*raw + c.Offset
}

func (c *Channel) recalibrate() {
	c.CalibratedVoltage = c.Calibrate(c.RawVoltage)
}

func (c *Channel) updateDisplayBounds(input InputRange) {
	c.DisplayMin = c.Calibrate(input.Min)
	c.DisplayMax = c.Calibrate(input.Max)
}

// Settings returns the persisted subset of the channel.
func (c *Channel) Settings() Settings {
	return Settings{
		Gradient:   c.Gradient,
		Offset:     c.Offset,
		DisplayMax: c.DisplayMax,
		DisplayMin: c.DisplayMin,
		RefVolt1:   c.RefPoint1,
		RefVolt2:   c.RefPoint2,
		AlarmMax:   c.AlarmMax,
		AlarmMin:   c.AlarmMin,
		Armed:      c.Armed,
	}
}

func (c *Channel) apply(s Settings) {
	c.Gradient = s.Gradient
	c.Offset = s.Offset
	c.DisplayMax = s.DisplayMax
	c.DisplayMin = s.DisplayMin
	c.RefPoint1 = s.RefVolt1
	c.RefPoint2 = s.RefVolt2
	c.AlarmMax = s.AlarmMax
	c.AlarmMin = s.AlarmMin
	c.Armed = s.Armed
	c.recalibrate()
}

// Settings is the persisted part of a channel.
type Settings struct {
	Gradient   float64
	Offset     float64
	DisplayMax float64
	DisplayMin float64
	RefVolt1   float64
	RefVolt2   float64
	AlarmMax   float64
	AlarmMin   float64
	Armed      bool
}

// DefaultSettings returns the persisted fields of Default(input).
func DefaultSettings(input InputRange) Settings {
	c := Default(input)
	return c.Settings()
}

// Snapshot is everything written to stable storage.
type Snapshot struct {
	Channels [Count]Settings
	Volume   int
}

// DefaultSnapshot returns a snapshot of a freshly initialised store.
func DefaultSnapshot(input InputRange) Snapshot {
	var snap Snapshot
	for i := range snap.Channels {
		snap.Channels[i] = DefaultSettings(input)
	}
	snap.Volume = DefaultVolume
	return snap
}

// DefaultVolume is the initial alarm sound volume (0..100).
const DefaultVolume = 50

// Valid reports whether ch is a channel index.
func Valid(ch int) bool {
	return ch >= 0 && ch < Count
}

// Set is a set of channel indices.
type Set uint8

// All contains every channel.
const All Set = 1<<Count - 1

// SetOf builds a set from indices, ignoring invalid ones.
func SetOf(channels ...int) Set {
	var s Set
	for _, ch := range channels {
		s = s.With(ch)
	}
	return s
}

// Has reports whether ch is in the set.
func (s Set) Has(ch int) bool {
	return Valid(ch) && s&(1<<ch) != 0
}

// With returns the set with ch added.
func (s Set) With(ch int) Set {
	if !Valid(ch) {
		return s
	}
	return s | 1<<ch
}

// Without returns the set with ch removed.
func (s Set) Without(ch int) Set {
	if !Valid(ch) {
		return s
	}
	return s &^ (1 << ch)
}

// Empty reports whether no channel is in the set.
func (s Set) Empty() bool {
	return s == 0
}

// Channels lists the members in ascending order.
func (s Set) Channels() []int {
	out := make([]int, 0, Count)
	for ch := range Count {
		if s.Has(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// First returns the lowest member, or -1 for an empty set.
func (s Set) First() int {
	for ch := range Count {
		if s.Has(ch) {
			return ch
		}
	}
	return -1
}

func (s Set) String() string {
	parts := make([]string, 0, Count)
	for _, ch := range s.Channels() {
		parts = append(parts, fmt.Sprint(ch+1))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

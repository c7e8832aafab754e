package channel

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// ErrDivisionByZero is returned when both captured raw points of a two-point fit coincide.
var ErrDivisionByZero = errors.New("reference samples coincide")

// ErrNonFinite is returned when a fit produces NaN or infinite coefficients.
var ErrNonFinite = errors.New("fit is not finite")

// ErrNotFound is returned by a Persister when nothing has been saved yet.
var ErrNotFound = errors.New("no saved calibration")

// CalibrationError reports a rejected two-point fit. The previous coefficients are kept.
type CalibrationError struct {
	Channel int
	Err     error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("channel %d: calibration rejected: %v", e.Channel+1, e.Err)
}

func (e *CalibrationError) Unwrap() error {
	return e.Err
}

// Persister loads and saves the persisted part of the store.
type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// Store owns the eight channels.
//
// Store is not safe for concurrent use: it belongs to the controller goroutine, and the
// sampling loop reaches it only through ticks delivered to that goroutine.
type Store struct {
	channels  [Count]Channel
	input     InputRange
	volume    int
	persister Persister
	log       *zap.Logger
}

// NewStore creates a store with default channels. Call Load to restore saved settings.
func NewStore(p Persister, input InputRange, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if input.Max == input.Min {
		input = DefaultInputRange
	}
	s := &Store{
		input:     input,
		volume:    DefaultVolume,
		persister: p,
		log:       log,
	}
	for i := range s.channels {
		s.channels[i] = Default(input)
	}
	return s
}

// Load restores settings from the persister. Any failure leaves the defaults in place;
// ErrNotFound is not reported as an error.
func (s *Store) Load() error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Info("no saved calibration, using defaults")
			return nil
		}
		return fmt.Errorf("failed to load calibration: %w", err)
	}
	s.Restore(snap)
	return nil
}

// Restore replaces every persisted field with the snapshot.
func (s *Store) Restore(snap Snapshot) {
	for i := range s.channels {
		s.channels[i].apply(snap.Channels[i])
	}
	s.volume = clampVolume(snap.Volume)
}

// Snapshot returns the persisted state.
func (s *Store) Snapshot() Snapshot {
	var snap Snapshot
	for i := range s.channels {
		snap.Channels[i] = s.channels[i].Settings()
	}
	snap.Volume = s.volume
	return snap
}

// Save writes the snapshot through the persister.
func (s *Store) Save() error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(s.Snapshot()); err != nil {
		return fmt.Errorf("failed to save calibration: %w", err)
	}
	return nil
}

// autosave is called after every change to a persisted field. Failure keeps the
// in-memory state authoritative.
func (s *Store) autosave() {
	if err := s.Save(); err != nil {
		s.log.Warn("calibration not saved", zap.Error(err))
	}
}

// Channel returns a copy of channel ch. Invalid indices return the zero value.
func (s *Store) Channel(ch int) Channel {
	if !Valid(ch) {
		return Channel{}
	}
	return s.channels[ch]
}

// InputRange returns the fixed raw input span.
func (s *Store) InputRange() InputRange {
	return s.input
}

// Sample records a successful reading. It never saves.
func (s *Store) Sample(ch int, raw float64) {
	if !Valid(ch) {
		return
	}
	c := &s.channels[ch]
	c.RawVoltage = raw
	c.recalibrate()
	c.Reads++
	c.Misses = 0
}

// Miss records a failed reading; the last known value is kept.
func (s *Store) Miss(ch int) {
	if !Valid(ch) {
		return
	}
	s.channels[ch].Misses++
}

// ApplyTwoPointFit captures the latest raw reading as the true voltage of reference point
// (1 or 2) and derives gradient and offset from both points. A degenerate fit returns a
// *CalibrationError and keeps the previous coefficients.
func (s *Store) ApplyTwoPointFit(ch int, point int) error {
	if !Valid(ch) {
		return fmt.Errorf("invalid channel %d", ch)
	}
	c := &s.channels[ch]
	switch point {
	case 1:
		c.TruePoint1 = c.RawVoltage
	case 2:
		c.TruePoint2 = c.RawVoltage
	default:
		return fmt.Errorf("invalid reference point %d", point)
	}

	gradient, offset, err := TwoPointFit(c.RefPoint1, c.TruePoint1, c.RefPoint2, c.TruePoint2, point)
	if err != nil {
		return &CalibrationError{Channel: ch, Err: err}
	}
	c.Gradient = gradient
	c.Offset = offset
	c.updateDisplayBounds(s.input)
	c.recalibrate()
	s.autosave()
	return nil
}

// TwoPointFit solves ref = gradient*true + offset through (true1, ref1) and (true2, ref2).
// The offset is anchored at the given point.
func TwoPointFit(ref1, true1, ref2, true2 float64, anchor int) (gradient, offset float64, err error) {
	if true1 == true2 {
		return 0, 0, ErrDivisionByZero
	}
	gradient = (ref2 - ref1) / (true2 - true1)
	if anchor == 2 {
		offset = ref2 - gradient*true2
	} else {
		offset = ref1 - gradient*true1
	}
	if !finite(gradient) || !finite(offset) {
		return 0, 0, ErrNonFinite
	}
	return gradient, offset, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SetField overwrites field on every channel in set and saves. Changing the gradient or
// offset rederives the display bounds.
func (s *Store) SetField(set Set, field Field, value float64) {
	if set.Empty() {
		return
	}
	for _, ch := range set.Channels() {
		c := &s.channels[ch]
		switch field {
		case FieldGradient:
			c.Gradient = value
			c.updateDisplayBounds(s.input)
			c.recalibrate()
		case FieldOffset:
			c.Offset = value
			c.updateDisplayBounds(s.input)
			c.recalibrate()
		case FieldDisplayMax:
			c.DisplayMax = value
		case FieldDisplayMin:
			c.DisplayMin = value
		case FieldRef1:
			c.RefPoint1 = value
		case FieldRef2:
			c.RefPoint2 = value
		case FieldAlarmMin:
			c.AlarmMin = value
		case FieldAlarmMax:
			c.AlarmMax = value
		default:
			s.log.Warn("unknown field", zap.Stringer("field", field))
			return
		}
	}
	s.autosave()
}

// ResetCalibration restores unity calibration on every channel in set and saves.
func (s *Store) ResetCalibration(set Set) {
	for _, ch := range set.Channels() {
		c := &s.channels[ch]
		c.Gradient = DefaultGradient
		c.Offset = DefaultOffset
		c.RefPoint1, c.RefPoint2 = 0, 0
		c.TruePoint1, c.TruePoint2 = 0, 0
		c.updateDisplayBounds(s.input)
		c.recalibrate()
	}
	s.autosave()
}

// ResetAlarmBounds restores the default alarm band on every channel in set and saves.
func (s *Store) ResetAlarmBounds(set Set) {
	for _, ch := range set.Channels() {
		s.channels[ch].AlarmMin = DefaultAlarmMin
		s.channels[ch].AlarmMax = DefaultAlarmMax
	}
	s.autosave()
}

// SetArmed arms or disarms every channel in set and saves. Disarming also clears the
// channel's alarm, since a disarmed channel is no longer evaluated.
func (s *Store) SetArmed(set Set, armed bool) {
	for _, ch := range set.Channels() {
		s.channels[ch].Armed = armed
		if !armed {
			s.channels[ch].AlarmActive = false
		}
	}
	s.autosave()
}

// SetAlarmActive records the alarm state of ch.
func (s *Store) SetAlarmActive(ch int, active bool) {
	if Valid(ch) {
		s.channels[ch].AlarmActive = active
	}
}

// Acknowledge clears the alarm on every channel in set and disarms them.
func (s *Store) Acknowledge(set Set) {
	for _, ch := range set.Channels() {
		s.channels[ch].AlarmActive = false
		s.channels[ch].Armed = false
	}
	s.autosave()
}

// SetSelected sets the calibration-screen selection flag of ch.
func (s *Store) SetSelected(ch int, on bool) {
	if Valid(ch) {
		s.channels[ch].Selected = on
	}
}

// ToggleSelected flips the calibration-screen selection flag of ch.
func (s *Store) ToggleSelected(ch int) {
	if Valid(ch) {
		s.channels[ch].Selected = !s.channels[ch].Selected
	}
}

// SetRockerSelected sets the alarm-screen selection flag of ch.
func (s *Store) SetRockerSelected(ch int, on bool) {
	if Valid(ch) {
		s.channels[ch].RockerSelected = on
	}
}

// ToggleRockerSelected flips the alarm-screen selection flag of ch.
func (s *Store) ToggleRockerSelected(ch int) {
	if Valid(ch) {
		s.channels[ch].RockerSelected = !s.channels[ch].RockerSelected
	}
}

// Selected returns the calibration-screen selection.
func (s *Store) Selected() Set {
	return s.collect(func(c *Channel) bool { return c.Selected })
}

// RockerSelected returns the alarm-screen selection.
func (s *Store) RockerSelected() Set {
	return s.collect(func(c *Channel) bool { return c.RockerSelected })
}

// Active returns the channels currently in alarm.
func (s *Store) Active() Set {
	return s.collect(func(c *Channel) bool { return c.AlarmActive })
}

// Armed returns the armed channels.
func (s *Store) Armed() Set {
	return s.collect(func(c *Channel) bool { return c.Armed })
}

func (s *Store) collect(pred func(*Channel) bool) Set {
	var set Set
	for ch := range s.channels {
		if pred(&s.channels[ch]) {
			set = set.With(ch)
		}
	}
	return set
}

// Volume returns the alarm sound volume.
func (s *Store) Volume() int {
	return s.volume
}

// SetVolume changes the volume without saving; the caller decides when to persist.
func (s *Store) SetVolume(v int) {
	s.volume = clampVolume(v)
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}

// DisplayPercent maps the calibrated value of ch into 0..100 over its display bounds.
func (s *Store) DisplayPercent(ch int) int {
	if !Valid(ch) {
		return 0
	}
	c := &s.channels[ch]
	span := c.DisplayMax - c.DisplayMin
	if span == 0 || !finite(span) {
		return 0
	}
	p := (c.CalibratedVoltage - c.DisplayMin) / span * 100
	if !finite(p) {
		return 0
	}
	return int(math.Round(max(0, min(100, p))))
}

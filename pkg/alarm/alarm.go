// Package alarm evaluates the armed channels against their alarm bands once per sample tick
// and decides when the alarm screen must preempt or give way to the active form.
package alarm

import (
	"github.com/itohio/vehiclemon/pkg/channel"
)

// OutOfBand reports whether value is in alarm for the band (alarmMin, alarmMax).
//
// With alarmMax > alarmMin the band is inside-safe: values outside [alarmMin, alarmMax] alarm.
// With alarmMax <= alarmMin the band is outside-safe: values below alarmMax or above alarmMin
// are safe and everything in [alarmMax, alarmMin] alarms. Boundaries are safe in inside mode
// and alarm in outside mode.
func OutOfBand(value, alarmMin, alarmMax float64) bool {
	if alarmMax > alarmMin {
		return value < alarmMin || value > alarmMax
	}
	return value >= alarmMax && value <= alarmMin
}

// Policy configures the monitor.
type Policy struct {
	// RestoreOnAnyClear restores the pre-alarm form as soon as any channel clears,
	// even while other channels are still in alarm. Off by default.
	RestoreOnAnyClear bool
	// StaleAfter suspends evaluation of a channel after this many consecutive failed
	// reads. Zero disables the limit; a channel with no successful read is never evaluated.
	StaleAfter int
}

// Transition is an alarm state change of one channel.
type Transition struct {
	Channel  int
	Raised   bool // false means cleared
	Value    float64
	AlarmMin float64
	AlarmMax float64
}

// Result is the outcome of one evaluation.
type Result struct {
	Transitions []Transition
	// Preempt asks the caller to switch to the alarm form.
	Preempt bool
	// Restore asks the caller to leave the alarm form for the form it preempted.
	Restore bool
}

// Raised returns the channels that entered alarm.
func (r Result) Raised() channel.Set {
	var set channel.Set
	for _, t := range r.Transitions {
		if t.Raised {
			set = set.With(t.Channel)
		}
	}
	return set
}

// Cleared returns the channels that left alarm.
func (r Result) Cleared() channel.Set {
	var set channel.Set
	for _, t := range r.Transitions {
		if !t.Raised {
			set = set.With(t.Channel)
		}
	}
	return set
}

// Monitor applies the alarm rules. It keeps no state of its own; the alarm flags live in
// the channel store.
type Monitor struct {
	policy Policy
}

// New creates a monitor.
func New(policy Policy) *Monitor {
	return &Monitor{policy: policy}
}

// Policy returns the configured policy.
func (m *Monitor) Policy() Policy {
	return m.policy
}

// Evaluate checks every armed channel and updates its alarm flag. onAlarmForm tells
// whether the alarm form is currently shown.
func (m *Monitor) Evaluate(store *channel.Store, onAlarmForm bool) Result {
	var res Result
	for ch := range channel.Count {
		c := store.Channel(ch)
		if !c.Armed || !m.fresh(&c) {
			continue
		}

		inAlarm := OutOfBand(c.CalibratedVoltage, c.AlarmMin, c.AlarmMax)
		switch {
		case inAlarm && !c.AlarmActive:
			store.SetAlarmActive(ch, true)
			res.Transitions = append(res.Transitions, transition(ch, &c, true))
		case !inAlarm && c.AlarmActive:
			store.SetAlarmActive(ch, false)
			res.Transitions = append(res.Transitions, transition(ch, &c, false))
		}
	}

	if !onAlarmForm {
		res.Preempt = !res.Raised().Empty()
		return res
	}
	if !res.Cleared().Empty() {
		res.Restore = m.policy.RestoreOnAnyClear || store.Active().Empty()
	}
	return res
}

// RestoreAfterAck reports whether the alarm form should be left after an acknowledgement.
func (m *Monitor) RestoreAfterAck(store *channel.Store) bool {
	return m.policy.RestoreOnAnyClear || store.Active().Empty()
}

func (m *Monitor) fresh(c *channel.Channel) bool {
	if c.Reads == 0 {
		return false
	}
	return m.policy.StaleAfter <= 0 || c.Misses < m.policy.StaleAfter
}

func transition(ch int, c *channel.Channel, raised bool) Transition {
	return Transition{
		Channel:  ch,
		Raised:   raised,
		Value:    c.CalibratedVoltage,
		AlarmMin: c.AlarmMin,
		AlarmMax: c.AlarmMax,
	}
}

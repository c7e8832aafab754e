package alarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehiclemon/pkg/channel"
)

func TestOutOfBand(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		alarmMin float64
		alarmMax float64
		want     bool
	}{
		{name: "inside safe, in band", value: 0, alarmMin: -5, alarmMax: 5, want: false},
		{name: "inside safe, at max", value: 5.0, alarmMin: -5, alarmMax: 5, want: false},
		{name: "inside safe, just above max", value: 5.0001, alarmMin: -5, alarmMax: 5, want: true},
		{name: "inside safe, at min", value: -5, alarmMin: -5, alarmMax: 5, want: false},
		{name: "inside safe, below min", value: -5.0001, alarmMin: -5, alarmMax: 5, want: true},
		{name: "outside safe, in forbidden zone", value: 2, alarmMin: 3, alarmMax: 1, want: true},
		{name: "outside safe, at lower edge", value: 1, alarmMin: 3, alarmMax: 1, want: true},
		{name: "outside safe, at upper edge", value: 3, alarmMin: 3, alarmMax: 1, want: true},
		{name: "outside safe, below", value: 0.5, alarmMin: 3, alarmMax: 1, want: false},
		{name: "outside safe, above", value: 3.5, alarmMin: 3, alarmMax: 1, want: false},
		{name: "degenerate band", value: 2, alarmMin: 2, alarmMax: 2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutOfBand(tt.value, tt.alarmMin, tt.alarmMax))
		})
	}
}

// newStore returns a store with ch armed on a 0..4 band.
func newStore(armed ...int) *channel.Store {
	s := channel.NewStore(nil, channel.DefaultInputRange, nil)
	set := channel.SetOf(armed...)
	s.SetField(set, channel.FieldAlarmMin, 0)
	s.SetField(set, channel.FieldAlarmMax, 4)
	s.SetArmed(set, true)
	return s
}

func TestEvaluateRaiseAndPreempt(t *testing.T) {
	s := newStore(0, 1)
	m := New(Policy{StaleAfter: 5})

	s.Sample(0, 2)
	s.Sample(1, 2)
	res := m.Evaluate(s, false)
	assert.Empty(t, res.Transitions)
	assert.False(t, res.Preempt)

	s.Sample(1, 4.5)
	res = m.Evaluate(s, false)
	require.Len(t, res.Transitions, 1)
	tr := res.Transitions[0]
	assert.Equal(t, 1, tr.Channel)
	assert.True(t, tr.Raised)
	assert.Equal(t, 4.5, tr.Value)
	assert.Equal(t, 0.0, tr.AlarmMin)
	assert.Equal(t, 4.0, tr.AlarmMax)
	assert.True(t, res.Preempt)
	assert.Equal(t, channel.SetOf(1), res.Raised())
	assert.Equal(t, channel.SetOf(1), s.Active())

	// Still in alarm: no new transition.
	res = m.Evaluate(s, true)
	assert.Empty(t, res.Transitions)
	assert.False(t, res.Preempt)
}

func TestEvaluateNoPreemptOnAlarmForm(t *testing.T) {
	s := newStore(0)
	m := New(Policy{})

	s.Sample(0, 9)
	res := m.Evaluate(s, true)
	assert.Len(t, res.Transitions, 1)
	assert.False(t, res.Preempt)
}

func TestEvaluateSkipsDisarmed(t *testing.T) {
	s := newStore()
	m := New(Policy{})

	s.Sample(3, 99)
	res := m.Evaluate(s, false)
	assert.Empty(t, res.Transitions)
	assert.True(t, s.Active().Empty())
}

func TestEvaluateStale(t *testing.T) {
	s := newStore(0)
	m := New(Policy{StaleAfter: 2})

	// Never read: not evaluated even though the default raw value is in alarm.
	s.SetField(channel.SetOf(0), channel.FieldAlarmMin, 1)
	res := m.Evaluate(s, false)
	assert.Empty(t, res.Transitions)

	s.Sample(0, 9)
	s.Miss(0)
	res = m.Evaluate(s, false)
	assert.Len(t, res.Transitions, 1, "one miss is below the limit")

	s.Sample(0, 2)
	s.Miss(0)
	s.Miss(0)
	res = m.Evaluate(s, true)
	assert.Empty(t, res.Transitions, "stale channel keeps its state")
	assert.True(t, s.Active().Has(0))

	s.Sample(0, 2)
	res = m.Evaluate(s, true)
	require.Len(t, res.Transitions, 1)
	assert.False(t, res.Transitions[0].Raised)
}

func TestEvaluateRestorePolicy(t *testing.T) {
	tests := []struct {
		name              string
		restoreOnAnyClear bool
		wantRestoreFirst  bool
	}{
		{name: "restore when all clear", restoreOnAnyClear: false, wantRestoreFirst: false},
		{name: "restore on any clear", restoreOnAnyClear: true, wantRestoreFirst: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(0, 1)
			m := New(Policy{RestoreOnAnyClear: tt.restoreOnAnyClear})

			s.Sample(0, 9)
			s.Sample(1, 9)
			res := m.Evaluate(s, false)
			require.Equal(t, channel.SetOf(0, 1), res.Raised())
			require.True(t, res.Preempt)

			// Channel 1 clears while channel 2 stays active.
			s.Sample(0, 2)
			res = m.Evaluate(s, true)
			assert.Equal(t, channel.SetOf(0), res.Cleared())
			assert.Equal(t, tt.wantRestoreFirst, res.Restore)
			assert.Equal(t, tt.wantRestoreFirst, m.RestoreAfterAck(s))

			s.Sample(1, 2)
			res = m.Evaluate(s, true)
			assert.Equal(t, channel.SetOf(1), res.Cleared())
			assert.True(t, res.Restore)
			assert.True(t, m.RestoreAfterAck(s))
		})
	}
}

func TestEvaluateClearOffAlarmForm(t *testing.T) {
	s := newStore(0)
	m := New(Policy{})

	s.Sample(0, 9)
	m.Evaluate(s, false)
	s.Sample(0, 1)
	res := m.Evaluate(s, false)
	assert.Equal(t, channel.SetOf(0), res.Cleared())
	assert.False(t, res.Restore)
	assert.False(t, res.Preempt)
}

func TestPolicy(t *testing.T) {
	p := Policy{RestoreOnAnyClear: true, StaleAfter: 3}
	assert.Equal(t, p, New(p).Policy())
}

package channel

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memPersister keeps the last saved snapshot in memory.
type memPersister struct {
	snap    Snapshot
	saved   bool
	saves   int
	loadErr error
	saveErr error
}

func (p *memPersister) Load() (Snapshot, error) {
	if p.loadErr != nil {
		return DefaultSnapshot(DefaultInputRange), p.loadErr
	}
	return p.snap, nil
}

func (p *memPersister) Save(s Snapshot) error {
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.snap = s
	p.saved = true
	return nil
}

func newTestStore(t *testing.T) (*Store, *memPersister) {
	p := &memPersister{}
	return NewStore(p, DefaultInputRange, zaptest.NewLogger(t)), p
}

func TestStoreSampleKeepsCalibrationInvariant(t *testing.T) {
	s, p := newTestStore(t)
	s.SetField(SetOf(2), FieldGradient, 2)
	s.SetField(SetOf(2), FieldOffset, 0.5)
	saves := p.saves

	for _, raw := range []float64{0, 1.25, 4.9, -0.3} {
		s.Sample(2, raw)
		c := s.Channel(2)
		assert.Equal(t, raw, c.RawVoltage)
		assert.InDelta(t, c.Gradient*c.RawVoltage+c.Offset, c.CalibratedVoltage, 1e-12)
	}

	c := s.Channel(2)
	assert.Equal(t, 4, c.Reads)
	assert.Zero(t, c.Misses)
	assert.Equal(t, saves, p.saves, "sampling must not save")
}

func TestStoreMiss(t *testing.T) {
	s, _ := newTestStore(t)
	s.Sample(0, 3)
	s.Miss(0)
	s.Miss(0)

	c := s.Channel(0)
	assert.Equal(t, 3.0, c.RawVoltage)
	assert.Equal(t, 2, c.Misses)

	s.Sample(0, 4)
	assert.Zero(t, s.Channel(0).Misses)
}

func TestStoreSetFieldRederivesDisplayBounds(t *testing.T) {
	s, p := newTestStore(t)
	s.Sample(1, 2)

	s.SetField(SetOf(1, 4), FieldGradient, 3)
	for _, ch := range []int{1, 4} {
		c := s.Channel(ch)
		assert.Equal(t, 3.0, c.Gradient)
		assert.Equal(t, 0.0, c.DisplayMin)
		assert.Equal(t, 15.0, c.DisplayMax)
	}
	assert.InDelta(t, 6.0, s.Channel(1).CalibratedVoltage, 1e-12)
	assert.Equal(t, 1.0, s.Channel(0).Gradient)

	s.SetField(SetOf(1), FieldOffset, -1)
	c := s.Channel(1)
	assert.Equal(t, -1.0, c.DisplayMin)
	assert.Equal(t, 14.0, c.DisplayMax)
	assert.InDelta(t, 5.0, c.CalibratedVoltage, 1e-12)

	// Display bounds may be overridden until the next coefficient change.
	s.SetField(SetOf(1), FieldDisplayMax, 20)
	assert.Equal(t, 20.0, s.Channel(1).DisplayMax)

	require.True(t, p.saved)
	assert.Equal(t, 20.0, p.snap.Channels[1].DisplayMax)
}

func TestStoreSetFieldEmptySetIsNoop(t *testing.T) {
	s, p := newTestStore(t)
	s.SetField(0, FieldGradient, 9)

	assert.Zero(t, p.saves)
	for ch := range Count {
		assert.Equal(t, 1.0, s.Channel(ch).Gradient)
	}
}

func TestTwoPointFit(t *testing.T) {
	tests := []struct {
		name         string
		ref1, true1  float64
		ref2, true2  float64
		anchor       int
		wantGradient float64
		wantOffset   float64
		wantErr      error
	}{
		{name: "identity", ref1: 1, true1: 1, ref2: 4, true2: 4, anchor: 1, wantGradient: 1, wantOffset: 0},
		{name: "gain", ref1: 0, true1: 0, ref2: 10, true2: 2.5, anchor: 2, wantGradient: 4, wantOffset: 0},
		{name: "gain and offset", ref1: 1, true1: 1, ref2: 5, true2: 3, anchor: 1, wantGradient: 2, wantOffset: -1},
		{name: "coincident points", ref1: 1, true1: 2, ref2: 3, true2: 2, anchor: 2, wantErr: ErrDivisionByZero},
		{name: "overflow", ref1: -math.MaxFloat64, true1: 0, ref2: math.MaxFloat64, true2: 1e-300, anchor: 1, wantErr: ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, o, err := TwoPointFit(tt.ref1, tt.true1, tt.ref2, tt.true2, tt.anchor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantGradient, g, 1e-12)
			assert.InDelta(t, tt.wantOffset, o, 1e-12)
		})
	}
}

func TestStoreApplyTwoPointFit(t *testing.T) {
	s, p := newTestStore(t)
	s.SetField(SetOf(0), FieldRef1, 0)
	s.SetField(SetOf(0), FieldRef2, 12)

	s.Sample(0, 0)
	err := s.ApplyTwoPointFit(0, 1)
	// Second point is still zero, so both true points coincide.
	var calErr *CalibrationError
	require.ErrorAs(t, err, &calErr)
	assert.Equal(t, 0, calErr.Channel)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.Equal(t, 1.0, s.Channel(0).Gradient, "previous coefficients kept")

	s.Sample(0, 3)
	require.NoError(t, s.ApplyTwoPointFit(0, 2))

	c := s.Channel(0)
	assert.InDelta(t, 4.0, c.Gradient, 1e-12)
	assert.InDelta(t, 0.0, c.Offset, 1e-12)
	assert.Equal(t, 3.0, c.TruePoint2)
	assert.InDelta(t, 12.0, c.CalibratedVoltage, 1e-12)
	assert.InDelta(t, 20.0, c.DisplayMax, 1e-12)
	assert.InDelta(t, 4.0, p.snap.Channels[0].Gradient, 1e-12)

	// Capturing again at the same readings yields the same coefficients.
	require.NoError(t, s.ApplyTwoPointFit(0, 2))
	assert.InDelta(t, 4.0, s.Channel(0).Gradient, 1e-12)
	assert.InDelta(t, 0.0, s.Channel(0).Offset, 1e-12)
}

func TestStoreApplyTwoPointFitInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.ApplyTwoPointFit(8, 1))
	assert.Error(t, s.ApplyTwoPointFit(0, 3))
}

func TestStoreResets(t *testing.T) {
	s, _ := newTestStore(t)
	all := All
	s.SetField(all, FieldGradient, 2)
	s.SetField(all, FieldAlarmMin, 1)
	s.SetField(all, FieldAlarmMax, 2)

	s.ResetCalibration(SetOf(0))
	assert.Equal(t, 1.0, s.Channel(0).Gradient)
	assert.Equal(t, 5.0, s.Channel(0).DisplayMax)
	assert.Equal(t, 2.0, s.Channel(1).Gradient)

	s.ResetAlarmBounds(SetOf(1))
	assert.Equal(t, -5.0, s.Channel(1).AlarmMin)
	assert.Equal(t, 5.0, s.Channel(1).AlarmMax)
	assert.Equal(t, 1.0, s.Channel(2).AlarmMin)
}

func TestStoreArmAndAcknowledge(t *testing.T) {
	s, p := newTestStore(t)
	s.SetArmed(SetOf(0, 1, 2), true)
	assert.Equal(t, SetOf(0, 1, 2), s.Armed())
	assert.True(t, p.snap.Channels[1].Armed)

	s.SetAlarmActive(0, true)
	s.SetAlarmActive(2, true)
	assert.Equal(t, SetOf(0, 2), s.Active())

	s.Acknowledge(SetOf(0))
	assert.Equal(t, SetOf(2), s.Active())
	assert.Equal(t, SetOf(1, 2), s.Armed())
	assert.False(t, p.snap.Channels[0].Armed)
}

func TestStoreDisarmClearsAlarm(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetArmed(SetOf(0, 1), true)
	s.SetAlarmActive(0, true)
	s.SetAlarmActive(1, true)

	s.SetArmed(SetOf(0), false)
	assert.Equal(t, SetOf(1), s.Active())
	assert.Equal(t, SetOf(1), s.Armed())

	s.SetArmed(SetOf(1), true)
	assert.Equal(t, SetOf(1), s.Active(), "arming keeps the alarm")
}

func TestStoreSelection(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetSelected(1, true)
	s.ToggleSelected(3)
	s.ToggleSelected(1)
	assert.Equal(t, SetOf(3), s.Selected())

	s.SetRockerSelected(5, true)
	s.ToggleRockerSelected(6)
	assert.Equal(t, SetOf(5, 6), s.RockerSelected())
	assert.Equal(t, SetOf(3), s.Selected())
}

func TestStoreLoadAndSave(t *testing.T) {
	p := &memPersister{}
	s := NewStore(p, DefaultInputRange, zaptest.NewLogger(t))
	s.SetField(SetOf(4), FieldGradient, 7)
	s.SetVolume(80)
	require.NoError(t, s.Save())

	restored := NewStore(p, DefaultInputRange, zaptest.NewLogger(t))
	require.NoError(t, restored.Load())
	assert.Equal(t, 7.0, restored.Channel(4).Gradient)
	assert.Equal(t, 80, restored.Volume())
	assert.Equal(t, s.Snapshot(), restored.Snapshot())
}

func TestStoreLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		wantErr bool
	}{
		{name: "missing file", loadErr: ErrNotFound, wantErr: false},
		{name: "unreadable", loadErr: errors.New("permission denied"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(&memPersister{loadErr: tt.loadErr}, DefaultInputRange, zaptest.NewLogger(t))
			err := s.Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, DefaultSnapshot(DefaultInputRange), s.Snapshot())
		})
	}
}

func TestStoreSaveFailureKeepsState(t *testing.T) {
	p := &memPersister{saveErr: errors.New("read-only file system")}
	s := NewStore(p, DefaultInputRange, zaptest.NewLogger(t))

	s.SetField(SetOf(0), FieldGradient, 2)
	assert.Equal(t, 2.0, s.Channel(0).Gradient)
	assert.Equal(t, 1, p.saves)
	assert.Error(t, s.Save())
}

func TestStoreVolume(t *testing.T) {
	s, p := newTestStore(t)
	assert.Equal(t, DefaultVolume, s.Volume())

	s.SetVolume(150)
	assert.Equal(t, 100, s.Volume())
	s.SetVolume(-3)
	assert.Equal(t, 0, s.Volume())
	assert.Zero(t, p.saves)
}

func TestStoreDisplayPercent(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want int
	}{
		{name: "bottom", raw: 0, want: 0},
		{name: "middle", raw: 2.5, want: 50},
		{name: "top", raw: 5, want: 100},
		{name: "below", raw: -1, want: 0},
		{name: "above", raw: 7, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			s.Sample(0, tt.raw)
			assert.Equal(t, tt.want, s.DisplayPercent(0))
		})
	}
}

func TestStoreInvalidChannel(t *testing.T) {
	s, _ := newTestStore(t)
	s.Sample(-1, 1)
	s.Miss(8)
	assert.Equal(t, Channel{}, s.Channel(8))
	assert.Zero(t, s.DisplayPercent(9))
}

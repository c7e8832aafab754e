package adc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vehiclemon/pkg/config"
)

func TestMockRead(t *testing.T) {
	cfg := &config.MockConfig{
		Levels:       []float64{1, 2, 3, 4, 5, 6, 7, 8},
		FaultChannel: -1,
	}
	m := NewMock(cfg)

	for ch := range 8 {
		v, err := m.Read(context.Background(), ch)
		require.NoError(t, err)
		assert.InDelta(t, float64(ch+1), v, 1e-9)
	}

	_, err := m.Read(context.Background(), 8)
	assert.ErrorIs(t, err, ErrRead)
}

func TestMockErrorEvery(t *testing.T) {
	m := NewMock(&config.MockConfig{ErrorEvery: 3, FaultChannel: -1})

	var failures int
	for range 9 {
		if _, err := m.Read(context.Background(), 0); err != nil {
			assert.ErrorIs(t, err, ErrRead)
			failures++
		}
	}
	assert.Equal(t, 3, failures)
}

func TestMockFaultDrift(t *testing.T) {
	cfg := &config.MockConfig{
		Levels:       []float64{1},
		FaultChannel: 0,
		FaultAfter:   time.Second,
		FaultVoltage: 4,
	}
	m := NewMock(cfg)

	assert.InDelta(t, 1.0, m.voltage(0, 500*time.Millisecond), 1e-9)
	assert.InDelta(t, 2.5, m.voltage(0, 6*time.Second), 1e-9)
	assert.InDelta(t, 4.0, m.voltage(0, time.Minute), 1e-9)
}

func TestMockLatencyHonoursContext(t *testing.T) {
	m := NewMock(&config.MockConfig{Latency: time.Second, FaultChannel: -1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Read(ctx, 0)
	assert.ErrorIs(t, err, ErrRead)
}

func TestMockClosed(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Close())

	_, err := m.Read(context.Background(), 0)
	assert.ErrorIs(t, err, ErrRead)
}

package adc

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/vehiclemon/pkg/config"
)

// Mock simulates the converter board for testing and development.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	now       func() time.Time
	startTime time.Time
	reads     int
	closed    bool
}

// NewMock creates a new simulated source.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	return &Mock{
		cfg:       cfg,
		now:       time.Now,
		startTime: time.Now(),
	}
}

// Read returns the simulated voltage of channel ch.
func (m *Mock) Read(ctx context.Context, ch int) (float64, error) {
	if ch < 0 || ch > 7 {
		return 0, fmt.Errorf("%w: invalid channel %d", ErrRead, ch)
	}

	if m.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: channel %d: %v", ErrRead, ch+1, ctx.Err())
		case <-time.After(m.cfg.Latency):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("%w: source closed", ErrRead)
	}

	m.reads++
	if m.cfg.ErrorEvery > 0 && m.reads%m.cfg.ErrorEvery == 0 {
		return 0, fmt.Errorf("%w: channel %d: simulated failure", ErrRead, ch+1)
	}

	return m.voltage(ch, m.now().Sub(m.startTime)), nil
}

// Close stops the simulated source.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// voltage generates the simulated reading of ch after elapsed time.
func (m *Mock) voltage(ch int, elapsed time.Duration) float64 {
	base := 0.0
	if ch < len(m.cfg.Levels) {
		base = m.cfg.Levels[ch]
	}

	// Each channel ripples at its own rate so traces are distinguishable
	t := elapsed.Seconds()
	period := 2.0 + float64(ch)*0.7
	v := base + m.cfg.Ripple*math.Sin(2*math.Pi*t/period)

	// Deterministic pseudo-noise
	v += (math.Sin(t*1000.0*float64(ch+1)) + math.Cos(t*1300.0)) * m.cfg.NoiseLevel * 0.5

	// Fault injection: drift linearly to FaultVoltage over ten seconds
	if ch == m.cfg.FaultChannel && elapsed > m.cfg.FaultAfter {
		progress := math.Min((elapsed-m.cfg.FaultAfter).Seconds()/10.0, 1.0)
		v += (m.cfg.FaultVoltage - base) * progress
	}

	return v
}

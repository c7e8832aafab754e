// Package sampler runs the sampling loop: it reads every channel of a voltage source once per
// tick and publishes immutable per-tick snapshots to the controller.
package sampler

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/vehiclemon/pkg/adc"
	"github.com/itohio/vehiclemon/pkg/channel"
	"github.com/itohio/vehiclemon/pkg/config"
)

const (
	// DefaultBufferSize is the default size of the tick channel.
	DefaultBufferSize = 4
	// DefaultInterval is the default time between ticks.
	DefaultInterval = 250 * time.Millisecond
	// DefaultReadTimeout bounds a single channel conversion.
	DefaultReadTimeout = 500 * time.Millisecond
)

// Reading is the result of one channel read.
type Reading struct {
	Voltage float64
	Err     error // wraps adc.ErrRead; Voltage is meaningless when set
}

// OK reports whether the read succeeded.
func (r Reading) OK() bool {
	return r.Err == nil
}

// Tick is one pass over all channels.
type Tick struct {
	Seq      uint64
	At       time.Time
	Readings [channel.Count]Reading
}

// Sampler reads a Source periodically.
type Sampler struct {
	src         adc.Source
	interval    time.Duration
	readTimeout time.Duration
	priority    int
	log         *zap.Logger

	out      chan Tick
	seq      uint64
	windows  [channel.Count]*window
	dropped  atomic.Uint64
	failures atomic.Uint64
}

// New creates a sampler. readTimeout bounds each channel conversion.
func New(src adc.Source, cfg config.SamplingConfig, readTimeout time.Duration, log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBufferSize
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	s := &Sampler{
		src:         src,
		interval:    cfg.Interval,
		readTimeout: readTimeout,
		priority:    cfg.Priority,
		log:         log,
		out:         make(chan Tick, cfg.Buffer),
	}
	if cfg.Average > 1 {
		for i := range s.windows {
			s.windows[i] = newWindow(cfg.Average)
		}
	}
	return s
}

// Ticks returns the channel the snapshots are published on. It is closed when Run returns.
func (s *Sampler) Ticks() <-chan Tick {
	return s.out
}

// Dropped returns the number of ticks discarded because the controller fell behind.
func (s *Sampler) Dropped() uint64 {
	return s.dropped.Load()
}

// Failures returns the number of failed channel reads.
func (s *Sampler) Failures() uint64 {
	return s.failures.Load()
}

// Run samples until ctx is cancelled. Publishing never blocks: when the tick channel is
// full the new tick is dropped.
func (s *Sampler) Run(ctx context.Context) {
	defer close(s.out)

	if s.priority != 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := raisePriority(s.priority); err != nil {
			s.log.Warn("could not raise sampling priority", zap.Int("nice", s.priority), zap.Error(err))
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		tick := s.sample(ctx)
		if ctx.Err() != nil {
			return
		}

		select {
		case s.out <- tick:
		default:
			s.dropped.Add(1)
			s.log.Debug("tick queue full, dropping tick", zap.Uint64("seq", tick.Seq))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sample reads every channel once.
func (s *Sampler) sample(ctx context.Context) Tick {
	s.seq++
	tick := Tick{Seq: s.seq}

	for ch := range channel.Count {
		rctx, cancel := context.WithTimeout(ctx, s.readTimeout)
		v, err := s.src.Read(rctx, ch)
		cancel()

		if err != nil {
			s.failures.Add(1)
			s.log.Debug("channel read failed", zap.Int("channel", ch+1), zap.Error(err))
			tick.Readings[ch] = Reading{Err: err}
			continue
		}
		if w := s.windows[ch]; w != nil {
			v = w.add(v)
		}
		tick.Readings[ch] = Reading{Voltage: v}
	}

	tick.At = time.Now()
	return tick
}

// window is a moving average over the last n successful readings.
type window struct {
	values []float64
	next   int
	full   bool
	sum    float64
}

func newWindow(n int) *window {
	return &window{values: make([]float64, n)}
}

// add inserts v and returns the current average.
func (w *window) add(v float64) float64 {
	w.sum -= w.values[w.next]
	w.values[w.next] = v
	w.sum += v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.full = true
	}

	n := w.next
	if w.full {
		n = len(w.values)
	}
	return w.sum / float64(n)
}

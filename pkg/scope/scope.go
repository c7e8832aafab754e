// Package scope is a Fyne widget that plots the eight channel traces the way the
// touchscreen's SCOPE form does: every value is a percentage of the channel's display range.
package scope

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const (
	// Channels is the number of traces.
	Channels = 8
	// DefaultHistory is the number of points kept per trace.
	DefaultHistory = 240
	// DefaultDisplayPoints limits the points drawn per trace.
	DefaultDisplayPoints = 120
)

// Palette holds one trace color per channel.
var Palette = [Channels]color.RGBA{
	{R: 255, G: 165, B: 0, A: 255},
	{R: 100, G: 200, B: 255, A: 255},
	{R: 120, G: 220, B: 120, A: 255},
	{R: 240, G: 90, B: 90, A: 255},
	{R: 220, G: 120, B: 240, A: 255},
	{R: 240, G: 240, B: 100, A: 255},
	{R: 90, G: 240, B: 220, A: 255},
	{R: 200, G: 200, B: 200, A: 255},
}

// ScopeWidget displays the recent history of every channel.
type ScopeWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu      sync.RWMutex
	traces  [Channels]*Trace
	display [Channels][]float32
	scratch []float32

	maxDisplayPoints int
}

// New creates a scope keeping history points per trace.
func New(history int) *ScopeWidget {
	if history <= 0 {
		history = DefaultHistory
	}
	s := &ScopeWidget{maxDisplayPoints: DefaultDisplayPoints}
	for i := range s.traces {
		s.traces[i] = NewTrace(history)
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// Add appends a percentage (0..100) to channel ch. Call Refresh, or use Push, to redraw.
func (s *ScopeWidget) Add(ch int, percent float32) {
	if ch < 0 || ch >= Channels {
		return
	}
	s.mu.Lock()
	s.traces[ch].Add(clampPercent(percent))
	s.updateDisplay(ch)
	s.mu.Unlock()
}

// Push appends one value to every trace and redraws.
// This should be called from the UI goroutine, for example through fyne.Do().
func (s *ScopeWidget) Push(percent [Channels]float32) {
	s.mu.Lock()
	for ch, v := range percent {
		s.traces[ch].Add(clampPercent(v))
		s.updateDisplay(ch)
	}
	s.mu.Unlock()

	// Refresh must be outside the lock; the renderer takes a read lock.
	s.Refresh()
}

// Display returns a copy of the points drawn for channel ch.
func (s *ScopeWidget) Display(ch int) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float32(nil), s.display[ch]...)
}

func (s *ScopeWidget) updateDisplay(ch int) {
	s.scratch = s.traces[ch].Values(s.scratch)
	s.display[ch] = Downsample(s.display[ch], s.scratch, s.maxDisplayPoints)
}

func clampPercent(v float32) float32 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}

// Package adc provides voltage sources: the ADC Pi board and a simulated source.
package adc

import (
	"context"
	"errors"
)

// ErrRead marks a transient failure to read one channel.
var ErrRead = errors.New("adc read failed")

// Source yields one raw voltage per channel on demand.
type Source interface {
	// Read converts channel ch (0..7). The context bounds the conversion time.
	Read(ctx context.Context, ch int) (float64, error)
	Close() error
}

// Ensure ADCPi implements Source.
var _ Source = (*ADCPi)(nil)

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)

package adc

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress1 is the MCP3424 serving channels 1-4.
	DefaultAddress1 = 0x68
	// DefaultAddress2 is the MCP3424 serving channels 5-8.
	DefaultAddress2 = 0x69

	// configBase selects continuous conversion, 18-bit resolution and unity gain.
	configBase = 0x9C
	// readyBit is set in the configuration byte while a conversion is pending.
	readyBit = 0x80

	// lsbVolts is the weight of one count at 18-bit resolution (2*2.048V / 2^18).
	lsbVolts = 15.625e-6

	defaultPollPeriod = 5 * time.Millisecond
)

// txer is the part of a periph device the driver needs.
type txer interface {
	Tx(w, r []byte) error
}

// ADCPi reads the eight inputs of an AB Electronics ADC Pi board (two MCP3424 converters).
type ADCPi struct {
	mu         sync.Mutex
	bus        io.Closer
	chips      [2]txer
	scale      float64
	pollPeriod time.Duration
}

// Open initialises the host drivers, opens the I2C bus and binds both converters.
func Open(busName string, addr1, addr2 uint16, scale float64, pollPeriod time.Duration) (*ADCPi, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}

	chips := [2]txer{
		&i2c.Dev{Bus: bus, Addr: addr1},
		&i2c.Dev{Bus: bus, Addr: addr2},
	}
	return newADCPi(chips, bus, scale, pollPeriod), nil
}

func newADCPi(chips [2]txer, bus io.Closer, scale float64, pollPeriod time.Duration) *ADCPi {
	if scale == 0 {
		scale = 1
	}
	if pollPeriod <= 0 {
		pollPeriod = defaultPollPeriod
	}
	return &ADCPi{
		bus:        bus,
		chips:      chips,
		scale:      scale,
		pollPeriod: pollPeriod,
	}
}

// Read selects channel ch, waits for a fresh conversion and returns the input voltage.
// Both converters share the bus, so reads are serialised.
func (a *ADCPi) Read(ctx context.Context, ch int) (float64, error) {
	if ch < 0 || ch > 7 {
		return 0, fmt.Errorf("%w: invalid channel %d", ErrRead, ch)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	chip := a.chips[ch/4]
	if err := chip.Tx([]byte{channelConfig(ch % 4)}, nil); err != nil {
		return 0, fmt.Errorf("%w: channel %d: select: %v", ErrRead, ch+1, err)
	}

	var buf [4]byte
	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: channel %d: %v", ErrRead, ch+1, ctx.Err())
		case <-time.After(a.pollPeriod):
		}

		if err := chip.Tx(nil, buf[:]); err != nil {
			return 0, fmt.Errorf("%w: channel %d: read: %v", ErrRead, ch+1, err)
		}
		if buf[3]&readyBit == 0 {
			break
		}
	}

	return float64(decode18(buf[0], buf[1], buf[2])) * lsbVolts * a.scale, nil
}

// Close releases the bus.
func (a *ADCPi) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bus == nil {
		return nil
	}
	err := a.bus.Close()
	a.bus = nil
	return err
}

// channelConfig returns the configuration byte selecting converter input n (0..3).
func channelConfig(n int) byte {
	return configBase | byte(n&0x03)<<5
}

// decode18 assembles an 18-bit two's complement result.
func decode18(b0, b1, b2 byte) int32 {
	raw := int32(b0&0x03)<<16 | int32(b1)<<8 | int32(b2)
	if raw&0x20000 != 0 {
		raw -= 0x40000
	}
	return raw
}

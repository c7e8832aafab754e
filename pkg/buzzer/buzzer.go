// Package buzzer drives a piezo buzzer on a Raspberry Pi GPIO pin. An alert on channel n
// is n+1 short beeps so the driver can tell channels apart without looking.
package buzzer

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpio"
	"go.uber.org/zap"
)

// DefaultBeep is the on and off time of one beep.
const DefaultBeep = 120 * time.Millisecond

// output is the part of a GPIO pin the buzzer needs.
type output interface {
	High()
	Low()
}

// Buzzer plays beep patterns on its own goroutine. Alert and Silence never block.
type Buzzer struct {
	pin  output
	beep time.Duration
	log  *zap.Logger
	// release undoes the hardware setup.
	release func() error

	requests chan int
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Open maps the GPIO block and drives pin (BCM numbering) as the buzzer output.
func Open(pin int, beep time.Duration, log *zap.Logger) (*Buzzer, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open gpio: %w", err)
	}
	p := gpio.NewPin(pin)
	p.Output()
	p.Low()

	b := newBuzzer(p, beep, log)
	b.release = func() error {
		p.Low()
		p.Input()
		return gpio.Close()
	}
	b.log.Info("buzzer ready", zap.Int("pin", pin))
	return b, nil
}

func newBuzzer(pin output, beep time.Duration, log *zap.Logger) *Buzzer {
	if log == nil {
		log = zap.NewNop()
	}
	if beep <= 0 {
		beep = DefaultBeep
	}
	b := &Buzzer{
		pin:      pin,
		beep:     beep,
		log:      log.Named("buzzer"),
		requests: make(chan int, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Alert queues the pattern for ch. A pattern already queued is replaced.
func (b *Buzzer) Alert(ch int) {
	select {
	case <-b.requests:
	default:
	}
	select {
	case b.requests <- ch:
	default:
	}
}

// Silence cancels the queued and the playing pattern.
func (b *Buzzer) Silence() {
	b.Alert(-1)
}

// Close stops the player and releases the pin.
func (b *Buzzer) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stop)
		<-b.done
		if b.release != nil {
			err = b.release()
		}
	})
	return err
}

func (b *Buzzer) run() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case ch := <-b.requests:
			for ch >= 0 {
				ch = b.play(ch)
			}
		}
	}
}

// play beeps ch+1 times. A request arriving meanwhile interrupts the pattern and is
// returned; -1 means nothing further to play.
func (b *Buzzer) play(ch int) int {
	b.log.Debug("beeping", zap.Int("channel", ch+1))
	defer b.pin.Low()

	for i := 0; i <= ch; i++ {
		b.pin.High()
		if next, interrupted := b.wait(); interrupted {
			return next
		}
		b.pin.Low()
		if next, interrupted := b.wait(); interrupted {
			return next
		}
	}
	return -1
}

func (b *Buzzer) wait() (int, bool) {
	timer := time.NewTimer(b.beep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return -1, false
	case next := <-b.requests:
		return next, true
	case <-b.stop:
		return -1, true
	}
}

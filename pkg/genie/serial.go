package genie

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/vehiclemon/pkg/config"
	"github.com/itohio/vehiclemon/pkg/display"
)

const (
	// DefaultBaudRate matches the display project's serial setting.
	DefaultBaudRate = 115200
	// DefaultEventBuffer is the default size of the event channel.
	DefaultEventBuffer = 32
	// DefaultWriteTimeout bounds the wait for an ACK.
	DefaultWriteTimeout = 100 * time.Millisecond
)

var _ display.Sink = (*Display)(nil)

// Port describes an available serial port.
type Port struct {
	Name string
}

// Ports lists the serial ports present on the host.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	out := make([]Port, 0, len(names))
	for _, name := range names {
		out = append(out, Port{Name: name})
	}
	return out, nil
}

// Display is a display.Sink talking to the touchscreen. Writes are serialized and each
// waits for the display's ACK; events are decoded by a reader goroutine.
type Display struct {
	conn         io.ReadWriteCloser
	writeTimeout time.Duration
	log          *zap.Logger

	events chan display.Event
	acks   chan bool

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Open opens the serial port described by cfg and starts reading events.
func Open(cfg config.DisplayConfig, log *zap.Logger) (*Display, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if log != nil {
		log.Info("display connected", zap.String("port", cfg.Port), zap.Int("baud_rate", baud))
	}
	return newDisplay(port, cfg, log), nil
}

func newDisplay(conn io.ReadWriteCloser, cfg config.DisplayConfig, log *zap.Logger) *Display {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Display{
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		log:          log.Named("genie"),
		events:       make(chan display.Event, cfg.EventBuffer),
		acks:         make(chan bool, 1),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go d.readLoop()
	return d
}

// Events returns the channel of touch events. It is closed after Close.
func (d *Display) Events() <-chan display.Event {
	return d.events
}

// WriteObject sets an object value. Failures are logged.
func (d *Display) WriteObject(obj display.Object, index, value int) {
	if err := d.send(EncodeObject(obj, index, value)); err != nil {
		d.log.Warn("write object failed", zap.Stringer("object", obj), zap.Int("index", index),
			zap.Int("value", value), zap.Error(err))
	}
}

// WriteText sets a string box. Failures are logged.
func (d *Display) WriteText(index int, text string) {
	if err := d.send(EncodeString(index, text)); err != nil {
		d.log.Warn("write string failed", zap.Int("index", index), zap.Error(err))
	}
}

// send writes one frame and waits for the display to acknowledge it.
func (d *Display) send(frame []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.isClosed() {
		return errors.New("genie: display closed")
	}

	// Drop a stale acknowledgement left over from a timed-out write.
	select {
	case <-d.acks:
	default:
	}

	if _, err := d.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	timer := time.NewTimer(d.writeTimeout)
	defer timer.Stop()
	select {
	case ok := <-d.acks:
		if !ok {
			return ErrNAK
		}
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

func (d *Display) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close stops the reader and closes the port.
func (d *Display) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	err := d.conn.Close()
	<-d.done
	if err != nil {
		return fmt.Errorf("failed to close display: %w", err)
	}
	return nil
}

func (d *Display) readLoop() {
	defer close(d.done)
	defer close(d.events)
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in display reader", zap.Any("panic", r))
		}
	}()

	r := bufio.NewReader(d.conn)
	var dec Decoder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if d.ctx.Err() == nil && !errors.Is(err, io.EOF) {
				d.log.Error("display read failed", zap.Error(err))
			}
			return
		}

		reply, ok, err := dec.Feed(b)
		if err != nil {
			d.log.Warn("discarding frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		switch {
		case reply.Ack || reply.Nak:
			select {
			case d.acks <- reply.Ack:
			default:
			}
		default:
			d.log.Debug("display event", zap.Stringer("reply", reply))
			select {
			case d.events <- reply.Event:
			case <-d.ctx.Done():
				return
			default:
				d.log.Warn("event channel full, dropping event", zap.Stringer("reply", reply))
			}
		}
	}
}

// Package genie drives a 4D Systems touchscreen running a ViSi-Genie project over a
// serial line.
package genie

import (
	"errors"
	"fmt"

	"github.com/itohio/vehiclemon/pkg/display"
)

// Command bytes.
const (
	CmdReadObject  byte = 0x00
	CmdWriteObject byte = 0x01
	CmdWriteString byte = 0x02
	CmdReportObj   byte = 0x05
	CmdReportEvent byte = 0x07

	ACK byte = 0x06
	NAK byte = 0x15
)

// MaxString is the longest string a single WRITE_STR frame carries.
const MaxString = 255

var (
	// ErrChecksum is returned for a frame whose checksum does not match.
	ErrChecksum = errors.New("genie: bad checksum")
	// ErrNAK is returned when the display rejects a frame.
	ErrNAK = errors.New("genie: display replied NAK")
	// ErrTimeout is returned when the display does not acknowledge a frame in time.
	ErrTimeout = errors.New("genie: acknowledge timeout")
)

func checksum(b []byte) byte {
	var cs byte
	for _, v := range b {
		cs ^= v
	}
	return cs
}

// EncodeObject builds a WRITE_OBJ frame. value is sent as a big-endian 16-bit word.
func EncodeObject(obj display.Object, index, value int) []byte {
	f := []byte{CmdWriteObject, byte(obj), byte(index), byte(uint16(value) >> 8), byte(uint16(value))}
	return append(f, checksum(f))
}

// EncodeString builds a WRITE_STR frame. Text longer than MaxString is truncated.
func EncodeString(index int, text string) []byte {
	if len(text) > MaxString {
		text = text[:MaxString]
	}
	f := make([]byte, 0, len(text)+4)
	f = append(f, CmdWriteString, byte(index), byte(len(text)))
	f = append(f, text...)
	return append(f, checksum(f))
}

// EncodeEvent builds a REPORT_EVENT frame, as the display would send it.
func EncodeEvent(ev display.Event) []byte {
	f := []byte{CmdReportEvent, byte(ev.Object), byte(ev.Index), byte(uint16(ev.Value) >> 8), byte(uint16(ev.Value))}
	return append(f, checksum(f))
}

// Reply is one decoded unit of the display's output stream.
type Reply struct {
	Ack   bool
	Nak   bool
	Event display.Event
	// Report is set for REPORT_OBJ replies to a read request.
	Report bool
}

func (r Reply) String() string {
	switch {
	case r.Ack:
		return "ACK"
	case r.Nak:
		return "NAK"
	case r.Report:
		return fmt.Sprintf("REPORT_OBJ %s[%d]=%d", r.Event.Object, r.Event.Index, r.Event.Value)
	default:
		return fmt.Sprintf("REPORT_EVENT %s[%d]=%d", r.Event.Object, r.Event.Index, r.Event.Value)
	}
}

// Decoder reassembles replies from a byte stream. Unknown bytes are skipped. When a frame
// fails its checksum only its first byte is dropped; decoding resumes at the next start
// byte already buffered, so a stray start byte does not swallow the frame behind it.
type Decoder struct {
	buf [6]byte
	n   int
}

// Feed consumes one byte. It returns a reply once a frame is complete. A checksum
// mismatch is reported as ErrChecksum.
func (d *Decoder) Feed(b byte) (Reply, bool, error) {
	if d.n == 0 {
		switch b {
		case ACK:
			return Reply{Ack: true}, true, nil
		case NAK:
			return Reply{Nak: true}, true, nil
		case CmdReportEvent, CmdReportObj:
		default:
			return Reply{}, false, nil
		}
	}

	d.buf[d.n] = b
	d.n++
	if d.n < len(d.buf) {
		return Reply{}, false, nil
	}
	if checksum(d.buf[:5]) != d.buf[5] {
		err := fmt.Errorf("%w: % x", ErrChecksum, d.buf[:])
		d.resync()
		return Reply{}, false, err
	}
	d.n = 0
	return Reply{
		Report: d.buf[0] == CmdReportObj,
		Event: display.Event{
			Object: display.Object(d.buf[1]),
			Index:  int(d.buf[2]),
			Value:  int(uint16(d.buf[3])<<8 | uint16(d.buf[4])),
		},
	}, true, nil
}

// resync drops the first buffered byte and restarts the frame at the next start byte.
func (d *Decoder) resync() {
	for i := 1; i < d.n; i++ {
		if d.buf[i] == CmdReportEvent || d.buf[i] == CmdReportObj {
			d.n = copy(d.buf[:], d.buf[i:d.n])
			return
		}
	}
	d.n = 0
}

// Reset drops any partial frame.
func (d *Decoder) Reset() {
	d.n = 0
}

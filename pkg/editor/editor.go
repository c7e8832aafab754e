// Package editor implements the numeric keypad buffer.
package editor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorMarker replaces the buffer after a failed commit.
const ErrorMarker = "ERROR"

// MaxDigits limits the number of digits the buffer accepts.
const MaxDigits = 12

// ErrParse is returned by Commit when the buffer does not hold a number.
var ErrParse = errors.New("malformed number")

// Editor accumulates one signed decimal number. The zero value is an empty buffer.
//
// A failed commit puts the editor in the error state; the next keystroke only clears it.
type Editor struct {
	negative   bool
	hasDot     bool
	intDigits  []byte
	fracDigits []byte
	errored    bool
}

// New returns an empty editor.
func New() *Editor {
	return &Editor{}
}

// Buffer renders the current text, or ErrorMarker.
func (e *Editor) Buffer() string {
	if e.errored {
		return ErrorMarker
	}
	var b strings.Builder
	if e.negative {
		b.WriteByte('-')
	}
	b.Write(e.intDigits)
	if e.hasDot {
		b.WriteByte('.')
	}
	b.Write(e.fracDigits)
	return b.String()
}

// Errored reports whether the buffer shows the error marker.
func (e *Editor) Errored() bool {
	return e.errored
}

// Empty reports whether nothing has been typed.
func (e *Editor) Empty() bool {
	return !e.errored && !e.negative && !e.hasDot && len(e.intDigits) == 0
}

// consumeError clears a pending error. It returns true when the keystroke was used up.
func (e *Editor) consumeError() bool {
	if !e.errored {
		return false
	}
	e.Clear()
	return true
}

func (e *Editor) digits() int {
	return len(e.intDigits) + len(e.fracDigits)
}

// PushDigit appends d (0..9).
func (e *Editor) PushDigit(d int) {
	if e.consumeError() {
		return
	}
	if d < 0 || d > 9 || e.digits() >= MaxDigits {
		return
	}
	c := byte('0' + d)
	if e.hasDot {
		e.fracDigits = append(e.fracDigits, c)
		return
	}
	e.intDigits = append(e.intDigits, c)
}

// ToggleSign adds or removes the leading minus.
func (e *Editor) ToggleSign() {
	if e.consumeError() {
		return
	}
	e.negative = !e.negative
}

// PushDecimalPoint appends the decimal point unless one is already present.
func (e *Editor) PushDecimalPoint() {
	if e.consumeError() {
		return
	}
	e.hasDot = true
}

// Backspace drops the last character.
func (e *Editor) Backspace() {
	if e.consumeError() {
		return
	}
	switch {
	case len(e.fracDigits) > 0:
		e.fracDigits = e.fracDigits[:len(e.fracDigits)-1]
	case e.hasDot:
		e.hasDot = false
	case len(e.intDigits) > 0:
		e.intDigits = e.intDigits[:len(e.intDigits)-1]
	default:
		e.negative = false
	}
}

// Clear empties the buffer and the error state.
func (e *Editor) Clear() {
	*e = Editor{intDigits: e.intDigits[:0], fracDigits: e.fracDigits[:0]}
}

// Commit parses the buffer. On success the buffer is cleared; on failure it shows
// ErrorMarker until the next keystroke. A trailing point is accepted ("12." is 12).
func (e *Editor) Commit() (float64, error) {
	if e.errored {
		return 0, fmt.Errorf("%w: %s", ErrParse, ErrorMarker)
	}
	v, err := Parse(e.Buffer())
	if err != nil {
		e.errored = true
		return 0, err
	}
	e.Clear()
	return v, nil
}

// Parse accepts an optional leading '-', digits, and at most one '.'. At least one digit
// is required.
func Parse(s string) (float64, error) {
	body := strings.TrimPrefix(s, "-")
	var intPart, fracPart strings.Builder
	dot := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= '0' && c <= '9':
			if dot {
				fracPart.WriteByte(c)
			} else {
				intPart.WriteByte(c)
			}
		case c == '.' && !dot:
			dot = true
		default:
			return 0, fmt.Errorf("%w: %q", ErrParse, s)
		}
	}
	if intPart.Len()+fracPart.Len() == 0 {
		return 0, fmt.Errorf("%w: %q", ErrParse, s)
	}

	norm := intPart.String()
	if norm == "" {
		norm = "0"
	}
	if fracPart.Len() > 0 {
		norm += "." + fracPart.String()
	}
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, s)
	}
	if strings.HasPrefix(s, "-") {
		v = -v
	}
	return v, nil
}

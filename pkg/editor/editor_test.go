package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// typeKeys feeds keys into e: digits, '.', '-' (sign), '<' (backspace), 'c' (clear).
func typeKeys(e *Editor, keys string) {
	for _, k := range keys {
		switch {
		case k >= '0' && k <= '9':
			e.PushDigit(int(k - '0'))
		case k == '.':
			e.PushDecimalPoint()
		case k == '-':
			e.ToggleSign()
		case k == '<':
			e.Backspace()
		case k == 'c':
			e.Clear()
		}
	}
}

func TestEditorKeystrokes(t *testing.T) {
	tests := []struct {
		name string
		keys string
		want string
	}{
		{name: "digits", keys: "125", want: "125"},
		{name: "decimal", keys: "12.5", want: "12.5"},
		{name: "second point ignored", keys: "1.2.3", want: "1.23"},
		{name: "sign toggles", keys: "12.5-", want: "-12.5"},
		{name: "sign toggles back", keys: "12.5--", want: "12.5"},
		{name: "backspace fraction", keys: "12.5<", want: "12."},
		{name: "backspace point", keys: "12.5<<", want: "12"},
		{name: "backspace to sign", keys: "-1<", want: "-"},
		{name: "backspace removes sign", keys: "-1<<", want: ""},
		{name: "backspace on empty", keys: "<<", want: ""},
		{name: "leading point", keys: ".5", want: ".5"},
		{name: "clear", keys: "12.5c", want: ""},
		{name: "digit limit", keys: "1234567890123456", want: "123456789012"},
		{name: "digit limit spans point", keys: "1234567890.123", want: "1234567890.12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			typeKeys(e, tt.keys)
			assert.Equal(t, tt.want, e.Buffer())
		})
	}
}

func TestEditorCommitSequence(t *testing.T) {
	e := New()
	typeKeys(e, "12.5")
	assert.Equal(t, "12.5", e.Buffer())
	e.ToggleSign()
	assert.Equal(t, "-12.5", e.Buffer())
	e.ToggleSign()
	assert.Equal(t, "12.5", e.Buffer())
	e.Backspace()
	assert.Equal(t, "12.", e.Buffer())

	v, err := e.Commit()
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.True(t, e.Empty())
	assert.Equal(t, "", e.Buffer())
}

func TestEditorCommitError(t *testing.T) {
	tests := []struct {
		name string
		keys string
	}{
		{name: "empty", keys: ""},
		{name: "sign only", keys: "-"},
		{name: "point only", keys: "."},
		{name: "sign and point", keys: "-."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			typeKeys(e, tt.keys)

			_, err := e.Commit()
			assert.ErrorIs(t, err, ErrParse)
			assert.True(t, e.Errored())
			assert.Equal(t, ErrorMarker, e.Buffer())

			// A second commit keeps the error.
			_, err = e.Commit()
			assert.ErrorIs(t, err, ErrParse)

			// The next keystroke only clears the marker.
			e.PushDigit(7)
			assert.False(t, e.Errored())
			assert.Equal(t, "", e.Buffer())

			e.PushDigit(7)
			assert.Equal(t, "7", e.Buffer())
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "12.5", want: 12.5},
		{in: "-12.5", want: -12.5},
		{in: "12.", want: 12},
		{in: ".25", want: 0.25},
		{in: "-.5", want: -0.5},
		{in: "007", want: 7},
		{in: "", wantErr: true},
		{in: "-", wantErr: true},
		{in: ".", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "--1", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "+1", wantErr: true},
		{in: " 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

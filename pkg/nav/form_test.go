package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormString(t *testing.T) {
	assert.Equal(t, "HOME", Home.String())
	assert.Equal(t, "SETUP_ALARM", SetupAlarm.String())
	assert.Equal(t, "FORM(42)", Form(42).String())
	assert.False(t, Form(-1).Valid())
	assert.Len(t, Forms(), 9)
}

func TestHistory(t *testing.T) {
	h := NewHistory(Home)
	assert.Equal(t, Home, h.Current())
	assert.Equal(t, Home, h.Previous())
	assert.Equal(t, Home, h.PrePrevious())

	h.Push(Calibrate)
	h.Push(Auto)
	assert.Equal(t, Auto, h.Current())
	assert.Equal(t, Calibrate, h.Previous())
	assert.Equal(t, Home, h.PrePrevious())

	h.Push(Numpad)
	assert.Equal(t, Numpad, h.Current())
	assert.Equal(t, Auto, h.Previous())
	assert.Equal(t, Calibrate, h.PrePrevious())
}

func TestHistoryDetour(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *History)
		detour Form
		want   Form
	}{
		{
			name: "numpad returns to opener",
			setup: func(h *History) {
				h.Push(Calibrate)
				h.EnterDetour(Numpad)
			},
			detour: Numpad,
			want:   Calibrate,
		},
		{
			name: "alarm over numpad returns to numpad",
			setup: func(h *History) {
				h.Push(Calibrate)
				h.EnterDetour(Numpad)
				h.EnterDetour(Alarm)
			},
			detour: Alarm,
			want:   Numpad,
		},
		{
			name: "return target survives more than two pushes",
			setup: func(h *History) {
				h.Push(SetupAlarm)
				h.EnterDetour(Alarm)
				h.Push(Home)
				h.Push(Scope)
				h.Push(Alarm)
			},
			detour: Alarm,
			want:   SetupAlarm,
		},
		{
			name: "no detour falls back to previous",
			setup: func(h *History) {
				h.Push(Settings)
				h.Push(Alarm)
			},
			detour: Alarm,
			want:   Settings,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(Home)
			tt.setup(&h)
			assert.Equal(t, tt.want, h.ReturnFrom(tt.detour))
		})
	}
}

func TestHistoryReturnFromForgets(t *testing.T) {
	h := NewHistory(Home)
	h.Push(Calibrate)
	h.EnterDetour(Numpad)

	target, ok := h.ReturnTarget(Numpad)
	assert.True(t, ok)
	assert.Equal(t, Calibrate, target)

	assert.Equal(t, Calibrate, h.ReturnFrom(Numpad))
	_, ok = h.ReturnTarget(Numpad)
	assert.False(t, ok)
}

package nav

import "fmt"

// Form is one full-screen mode of the touchscreen. The values are the display's form indices.
type Form int

const (
	Home Form = iota
	Scope
	Calibrate
	Numpad
	Confirmation
	Auto
	Settings
	SetupAlarm
	Alarm

	formCount
)

var formNames = [...]string{
	Home:         "HOME",
	Scope:        "SCOPE",
	Calibrate:    "CALIBRATE",
	Numpad:       "NUMPAD",
	Confirmation: "CONFIRMATION",
	Auto:         "AUTO",
	Settings:     "SETTINGS",
	SetupAlarm:   "SETUP_ALARM",
	Alarm:        "ALARM",
}

// Valid reports whether f is a known form.
func (f Form) Valid() bool {
	return f >= 0 && f < formCount
}

func (f Form) String() string {
	if f.Valid() {
		return formNames[f]
	}
	return fmt.Sprintf("FORM(%d)", int(f))
}

// Forms lists every form in index order.
func Forms() []Form {
	out := make([]Form, 0, formCount)
	for f := range formCount {
		out = append(out, f)
	}
	return out
}

// historyDepth is the number of forms remembered.
const historyDepth = 3

// History remembers the current form and the two before it in a fixed ring, plus the form
// each detour (NUMPAD, ALARM) was entered from.
type History struct {
	ring    [historyDepth]Form
	head    int
	returns [formCount]Form
	pending [formCount]bool
}

// NewHistory starts with every slot set to initial.
func NewHistory(initial Form) History {
	var h History
	for i := range h.ring {
		h.ring[i] = initial
	}
	return h
}

// Push makes f the current form. The oldest entry is dropped.
func (h *History) Push(f Form) {
	h.head = (h.head + 1) % historyDepth
	h.ring[h.head] = f
}

// Current returns the active form.
func (h *History) Current() Form {
	return h.ring[h.head]
}

// Previous returns the form active before the current one.
func (h *History) Previous() Form {
	return h.ring[(h.head+historyDepth-1)%historyDepth]
}

// PrePrevious returns the form active before Previous.
func (h *History) PrePrevious() Form {
	return h.ring[(h.head+historyDepth-2)%historyDepth]
}

// EnterDetour records the current form as the return target of detour and pushes detour.
func (h *History) EnterDetour(detour Form) {
	if detour.Valid() {
		h.returns[detour] = h.Current()
		h.pending[detour] = true
	}
	h.Push(detour)
}

// ReturnFrom returns and forgets the form detour was entered from. Without a recorded
// entry it falls back to the previous form.
func (h *History) ReturnFrom(detour Form) Form {
	if detour.Valid() && h.pending[detour] {
		h.pending[detour] = false
		return h.returns[detour]
	}
	return h.Previous()
}

// ReturnTarget peeks at the recorded return form of detour.
func (h *History) ReturnTarget(detour Form) (Form, bool) {
	if !detour.Valid() {
		return Home, false
	}
	return h.returns[detour], h.pending[detour]
}

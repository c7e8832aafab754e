package main

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itohio/vehiclemon/pkg/channel"
	"github.com/itohio/vehiclemon/pkg/config"
	"github.com/itohio/vehiclemon/pkg/display"
	"github.com/itohio/vehiclemon/pkg/nav"
	"github.com/itohio/vehiclemon/pkg/scope"
)

var (
	ledOff   = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	ledAlarm = color.RGBA{R: 230, G: 40, B: 40, A: 255}
	ledArmed = color.RGBA{R: 40, G: 200, B: 80, A: 255}
)

// runSimulator runs the monitor against a desktop rendition of the touchscreen. It must be
// called from the main goroutine.
func runSimulator(ctx context.Context, cfg *config.Config, opts options, log *zap.Logger) error {
	application := app.NewWithID("com.itohio.vehiclemon")
	window := application.NewWindow("Vehicle Monitor")
	window.Resize(fyne.NewSize(960, 640))
	window.CenterOnScreen()

	sim := newSimDisplay(cfg.Display.EventBuffer, log.Named("sim"))
	m, err := newMonitor(cfg, opts, sim, log)
	if err != nil {
		return multierr.Append(err, sim.Close())
	}

	state := &appState{
		cfg:        cfg,
		configPath: opts.configPath,
		window:     window,
		journal:    m.journal,
	}
	window.SetContent(sim.content(state))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	window.SetOnClosed(cancel)

	errc := make(chan error, 1)
	go func() {
		errc <- m.run(ctx)
		fyne.Do(application.Quit)
	}()

	window.ShowAndRun()
	cancel()

	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("monitor did not stop in time")
	}
}

// simDisplay is a display.Sink drawing the forms with Fyne widgets. Writes come from the
// controller goroutine and are applied on the UI goroutine with fyne.Do.
type simDisplay struct {
	log    *zap.Logger
	events chan display.Event

	mu     sync.Mutex
	closed bool

	// UI state, touched only on the UI goroutine.
	updating  bool
	current   nav.Form
	formLabel *widget.Label
	sound     *widget.Label
	panels    map[nav.Form]fyne.CanvasObject
	texts     map[int]*widget.Label
	toggles   [channel.Count]*widget.Check
	rockers   [channel.Count]*widget.Check
	homeLEDs  [channel.Count]*canvas.Circle
	armLEDs   [channel.Count]*canvas.Circle
	volume    *widget.Slider
	scope     *scope.ScopeWidget
	scopeNext [2]int
	scopeRow  [scope.Channels]float32
}

var _ display.Sink = (*simDisplay)(nil)

func newSimDisplay(buffer int, log *zap.Logger) *simDisplay {
	if buffer <= 0 {
		buffer = 32
	}
	s := &simDisplay{
		log:    log,
		events: make(chan display.Event, buffer),
		panels: make(map[nav.Form]fyne.CanvasObject),
		texts:  make(map[int]*widget.Label),
	}
	s.formLabel = widget.NewLabelWithStyle(nav.Home.String(), fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	s.sound = widget.NewLabel("")
	s.scope = scope.New(scope.DefaultHistory)
	return s
}

// Events returns the touch events produced by the widgets.
func (s *simDisplay) Events() <-chan display.Event {
	return s.events
}

// Close stops event delivery and ignores further writes.
func (s *simDisplay) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *simDisplay) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *simDisplay) emit(ev display.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event channel full, dropping event", zap.Stringer("object", ev.Object), zap.Int("index", ev.Index))
	}
}

// WriteText updates a string box.
func (s *simDisplay) WriteText(index int, text string) {
	if s.isClosed() {
		return
	}
	fyne.Do(func() {
		if l, ok := s.texts[index]; ok {
			l.SetText(text)
		}
	})
}

// WriteObject updates a widget.
func (s *simDisplay) WriteObject(obj display.Object, index, value int) {
	if s.isClosed() {
		return
	}
	fyne.Do(func() {
		s.updating = true
		defer func() { s.updating = false }()
		s.applyObject(obj, index, value)
	})
}

func (s *simDisplay) applyObject(obj display.Object, index, value int) {
	switch obj {
	case display.ObjForm:
		s.show(nav.Form(index))
	case display.Obj4DButton:
		if ch := index - nav.Btn4DChannel; channel.Valid(ch) {
			s.toggles[ch].SetChecked(value != 0)
		}
	case display.ObjRocker:
		if ch := index - nav.RockerChannel; channel.Valid(ch) {
			s.rockers[ch].SetChecked(value != 0)
		}
	case display.ObjUserLED:
		ch := index - nav.LEDChannel
		if !channel.Valid(ch) {
			return
		}
		if s.current == nav.SetupAlarm {
			setLED(s.armLEDs[ch], value != 0, ledArmed)
		} else {
			setLED(s.homeLEDs[ch], value != 0, ledAlarm)
		}
	case display.ObjSlider:
		if index == nav.SliderVolume {
			s.volume.SetValue(float64(value))
		}
	case display.ObjSound:
		switch index {
		case nav.SoundPlay:
			s.sound.SetText(fmt.Sprintf("ALARM TONE CH%d", value+1))
		case nav.SoundStop:
			s.sound.SetText("")
		case nav.SoundVolume:
			s.volume.SetValue(float64(value))
		}
	case display.ObjScope:
		// Each scope object takes its four traces in order.
		if index < 0 || index >= len(s.scopeNext) {
			return
		}
		trace := index*nav.ScopeTraces + s.scopeNext[index]
		s.scopeNext[index] = (s.scopeNext[index] + 1) % nav.ScopeTraces
		s.scopeRow[trace] = float32(value)
		if trace == scope.Channels-1 {
			s.scope.Push(s.scopeRow)
		}
	}
}

func setLED(c *canvas.Circle, on bool, onColor color.Color) {
	if on {
		c.FillColor = onColor
	} else {
		c.FillColor = ledOff
	}
	c.Refresh()
}

func (s *simDisplay) show(f nav.Form) {
	if _, ok := s.panels[f]; !ok {
		s.log.Warn("no panel for form", zap.Stringer("form", f))
		return
	}
	s.current = f
	s.formLabel.SetText(f.String())
	for form, p := range s.panels {
		if form == f {
			p.Show()
		} else {
			p.Hide()
		}
	}
}

// content builds the window: a navigation bar and one panel per form.
func (s *simDisplay) content(state *appState) fyne.CanvasObject {
	s.panels[nav.Home] = s.homePanel()
	s.panels[nav.Scope] = s.scope
	s.panels[nav.Calibrate] = s.calibratePanel()
	s.panels[nav.Numpad] = s.numpadPanel()
	s.panels[nav.Confirmation] = s.confirmationPanel()
	s.panels[nav.Auto] = s.autoPanel()
	s.panels[nav.Settings] = s.settingsPanel(state)
	s.panels[nav.SetupAlarm] = s.setupAlarmPanel()
	s.panels[nav.Alarm] = s.alarmPanel()

	stack := container.NewStack()
	for _, f := range nav.Forms() {
		stack.Add(s.panels[f])
	}
	s.show(nav.Home)

	bar := container.NewHBox()
	for _, f := range []nav.Form{nav.Home, nav.Scope, nav.Calibrate, nav.SetupAlarm, nav.Settings} {
		bar.Add(widget.NewButton(f.String(), func() {
			s.show(f)
			s.emit(display.Event{Object: display.ObjForm, Index: int(f)})
		}))
	}

	top := container.NewBorder(nil, nil, s.formLabel, s.sound, bar)
	return container.NewBorder(top, nil, nil, nil, stack)
}

func (s *simDisplay) text(index int) *widget.Label {
	l := widget.NewLabel("")
	s.texts[index] = l
	return l
}

func (s *simDisplay) button(label string, index int) *widget.Button {
	return widget.NewButton(label, func() {
		s.emit(display.Event{Object: display.ObjWinButton, Index: index, Value: 1})
	})
}

func newLED() *canvas.Circle {
	c := canvas.NewCircle(ledOff)
	c.Resize(fyne.NewSize(14, 14))
	return c
}

func ledCell(c *canvas.Circle) fyne.CanvasObject {
	return container.NewGridWrap(fyne.NewSize(16, 16), c)
}

func (s *simDisplay) homePanel() fyne.CanvasObject {
	grid := container.NewGridWithColumns(3)
	for ch := range channel.Count {
		s.homeLEDs[ch] = newLED()
		grid.Add(widget.NewLabel(fmt.Sprintf("CH%d", ch+1)))
		grid.Add(s.text(nav.StrValue + ch))
		grid.Add(ledCell(s.homeLEDs[ch]))
	}
	return grid
}

func (s *simDisplay) calibratePanel() fyne.CanvasObject {
	grid := container.NewGridWithColumns(2)
	for ch := range channel.Count {
		s.toggles[ch] = widget.NewCheck(fmt.Sprintf("CH%d", ch+1), func(on bool) {
			if s.updating {
				return
			}
			s.emit(display.Event{Object: display.Obj4DButton, Index: nav.Btn4DChannel + ch, Value: boolInt(on)})
		})
		grid.Add(s.toggles[ch])
		grid.Add(s.text(nav.StrCalValue + ch))
	}
	buttons := container.NewGridWithColumns(3,
		s.button("Gradient", nav.BtnGradient),
		s.button("Offset", nav.BtnOffset),
		s.button("Max", nav.BtnMax),
		s.button("Min", nav.BtnMin),
		widget.NewButton("Auto", func() {
			s.emit(display.Event{Object: display.Obj4DButton, Index: nav.Btn4DAuto, Value: 1})
		}),
		widget.NewButton("Reset", func() {
			s.emit(display.Event{Object: display.Obj4DButton, Index: nav.Btn4DReset, Value: 1})
		}),
	)
	return container.NewBorder(nil, buttons, nil, nil, grid)
}

func (s *simDisplay) numpadPanel() fyne.CanvasObject {
	key := func(label string, code int) *widget.Button {
		return widget.NewButton(label, func() {
			s.emit(display.Event{Object: display.ObjKeyboard, Index: nav.KeyboardNumpad, Value: code})
		})
	}
	keys := container.NewGridWithColumns(3)
	for _, d := range "789456123" {
		keys.Add(key(string(d), int(d)))
	}
	keys.Add(key("+/-", nav.KeySignChange))
	keys.Add(key("0", '0'))
	keys.Add(key(".", nav.KeyDot))
	keys.Add(key("C", nav.KeyClear))
	keys.Add(widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
		s.emit(display.Event{Object: display.ObjKeyboard, Index: nav.KeyboardNumpad, Value: nav.KeyBackspace})
	}))
	keys.Add(key("Save", nav.KeySave))

	buffer := s.text(nav.StrNumpad)
	buffer.TextStyle = fyne.TextStyle{Monospace: true, Bold: true}
	top := container.NewVBox(s.text(nav.StrNumpadHint), buffer)
	return container.NewBorder(top, s.button("Back", nav.BtnNumpadBack), nil, nil, keys)
}

func (s *simDisplay) confirmationPanel() fyne.CanvasObject {
	return container.NewVBox(
		widget.NewLabel("Reset calibration of all channels?"),
		container.NewHBox(s.button("Yes", nav.BtnConfirmYes), s.button("No", nav.BtnConfirmNo)),
	)
}

func (s *simDisplay) autoPanel() fyne.CanvasObject {
	grid := container.NewGridWithColumns(2)
	for ch := range channel.Count {
		grid.Add(widget.NewLabel(fmt.Sprintf("CH%d raw", ch+1)))
		grid.Add(s.text(nav.StrAutoRaw + ch))
	}
	buttons := container.NewGridWithColumns(2,
		s.button("Ref 1", nav.BtnRef1),
		s.button("Capture 1", nav.BtnCapture1),
		s.button("Ref 2", nav.BtnRef2),
		s.button("Capture 2", nav.BtnCapture2),
	)
	bottom := container.NewVBox(buttons, s.text(nav.StrAutoStatus), s.button("Back", nav.BtnAutoBack))
	return container.NewBorder(nil, bottom, nil, nil, grid)
}

func (s *simDisplay) setupAlarmPanel() fyne.CanvasObject {
	grid := container.NewGridWithColumns(3)
	for ch := range channel.Count {
		s.rockers[ch] = widget.NewCheck(fmt.Sprintf("CH%d", ch+1), func(on bool) {
			if s.updating {
				return
			}
			s.emit(display.Event{Object: display.ObjRocker, Index: nav.RockerChannel + ch, Value: boolInt(on)})
		})
		s.armLEDs[ch] = newLED()
		grid.Add(s.rockers[ch])
		grid.Add(s.text(nav.StrBand + ch))
		grid.Add(ledCell(s.armLEDs[ch]))
	}
	buttons := container.NewGridWithColumns(5,
		s.button("Arm", nav.BtnArm),
		s.button("Disarm", nav.BtnDisarm),
		s.button("Min", nav.BtnAlarmMin),
		s.button("Max", nav.BtnAlarmMax),
		s.button("Reset", nav.BtnAlarmReset),
	)
	return container.NewBorder(nil, buttons, nil, nil, grid)
}

func (s *simDisplay) alarmPanel() fyne.CanvasObject {
	msg := s.text(nav.StrAlarm)
	msg.TextStyle = fyne.TextStyle{Bold: true}
	return container.NewVBox(
		widget.NewLabelWithStyle("ALARM", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		msg,
		container.NewHBox(s.button("Acknowledge", nav.BtnAckOne), s.button("Acknowledge all", nav.BtnAckAll)),
	)
}

func (s *simDisplay) settingsPanel(state *appState) fyne.CanvasObject {
	s.volume = widget.NewSlider(0, 100)
	s.volume.Step = 1
	s.volume.OnChanged = func(v float64) {
		if s.updating {
			return
		}
		s.emit(display.Event{Object: display.ObjSlider, Index: nav.SliderVolume, Value: int(v)})
	}
	return container.NewVBox(
		widget.NewLabel("Volume"),
		s.volume,
		container.NewHBox(s.button("Reboot", nav.BtnReboot), s.button("Shutdown", nav.BtnShutdown)),
		widget.NewSeparator(),
		container.NewHBox(
			widget.NewButtonWithIcon("Alarm log", theme.HistoryIcon(), func() { showAlarmLog(state) }),
			widget.NewButtonWithIcon("Configuration", theme.SettingsIcon(), func() { showSettingsDialog(state) }),
		),
	)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

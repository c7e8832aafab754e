// Package nav is the form-navigation controller: it owns the form history, routes
// touchscreen events to per-form handlers, applies sample ticks and alarm decisions,
// and keeps the display in step.
package nav

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/itohio/vehiclemon/pkg/alarm"
	"github.com/itohio/vehiclemon/pkg/channel"
	"github.com/itohio/vehiclemon/pkg/display"
	"github.com/itohio/vehiclemon/pkg/editor"
	"github.com/itohio/vehiclemon/pkg/journal"
	"github.com/itohio/vehiclemon/pkg/sampler"
)

// Recorder receives alarm transitions for the journal.
type Recorder interface {
	Record(journal.Event)
}

// Host performs the SETTINGS process actions.
type Host interface {
	Reboot() error
	Shutdown() error
}

// Options carries the optional collaborators of a Controller.
type Options struct {
	Indicator Indicator
	Recorder  Recorder
	Host      Host
	Log       *zap.Logger
}

// numpadSession describes what the open keypad edits.
type numpadSession struct {
	field  channel.Field
	rocker bool // targets the SETUP_ALARM selection instead of the CALIBRATE one
}

// Controller is the top-level state machine. All of its methods must be called from one
// goroutine; Run is that goroutine in production.
type Controller struct {
	store   *channel.Store
	editor  *editor.Editor
	monitor *alarm.Monitor
	sink    display.Sink

	indicator Indicator
	recorder  Recorder
	host      Host
	log       *zap.Logger

	history     History
	numpad      numpadSession
	alarmCh     int
	volumeDirty bool
	autoStatus  string
}

// New creates a controller starting on HOME.
func New(store *channel.Store, monitor *alarm.Monitor, sink display.Sink, opts Options) *Controller {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Indicator == nil {
		opts.Indicator = Indicators(nil)
	}
	return &Controller{
		store:     store,
		editor:    editor.New(),
		monitor:   monitor,
		sink:      sink,
		indicator: opts.Indicator,
		recorder:  opts.Recorder,
		host:      opts.Host,
		log:       opts.Log,
		history:   NewHistory(Home),
		alarmCh:   -1,
	}
}

// Current returns the active form.
func (c *Controller) Current() Form { return c.history.Current() }

// Previous returns the form before the active one.
func (c *Controller) Previous() Form { return c.history.Previous() }

// PrePrevious returns the form before Previous.
func (c *Controller) PrePrevious() Form { return c.history.PrePrevious() }

// Buffer returns the keypad text.
func (c *Controller) Buffer() string { return c.editor.Buffer() }

// NumpadTarget returns the field the keypad edits.
func (c *Controller) NumpadTarget() channel.Field { return c.numpad.field }

// AlarmChannel returns the channel shown on the ALARM form, or -1.
func (c *Controller) AlarmChannel() int { return c.shownAlarm() }

// Store returns the channel store.
func (c *Controller) Store() *channel.Store { return c.store }

// Start shows HOME and pushes the saved volume to the display.
func (c *Controller) Start() {
	c.sink.WriteObject(display.ObjForm, int(Home), 0)
	c.sink.WriteObject(display.ObjSound, SoundVolume, c.store.Volume())
	c.render(Home)
}

// Run is the event loop. It applies ticks and display events until ctx is cancelled.
// Closed input channels are ignored from then on.
func (c *Controller) Run(ctx context.Context, ticks <-chan sampler.Tick) error {
	c.Start()
	events := c.sink.Events()
	for {
		select {
		case <-ctx.Done():
			c.flushVolume()
			return nil
		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			c.HandleTick(t)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleTick applies one sampling pass, evaluates alarms and refreshes live values.
func (c *Controller) HandleTick(t sampler.Tick) {
	for ch, r := range t.Readings {
		if r.OK() {
			c.store.Sample(ch, r.Voltage)
		} else {
			c.store.Miss(ch)
		}
	}

	res := c.monitor.Evaluate(c.store, c.Current() == Alarm)
	for _, tr := range res.Transitions {
		kind := journal.KindCleared
		if tr.Raised {
			kind = journal.KindRaised
			c.log.Warn("alarm raised", zap.Int("channel", tr.Channel+1), zap.Float64("value", tr.Value),
				zap.Float64("alarm_min", tr.AlarmMin), zap.Float64("alarm_max", tr.AlarmMax))
			c.indicator.Alert(tr.Channel)
		} else {
			c.log.Info("alarm cleared", zap.Int("channel", tr.Channel+1), zap.Float64("value", tr.Value))
		}
		c.record(journal.Event{
			Timestamp: t.At,
			Channel:   tr.Channel,
			Kind:      kind,
			Value:     tr.Value,
			AlarmMin:  tr.AlarmMin,
			AlarmMax:  tr.AlarmMax,
		})
	}

	if c.store.Active().Empty() && len(res.Transitions) > 0 {
		c.indicator.Silence()
	}

	switch {
	case res.Preempt:
		c.preempt(res.Raised().First())
	case res.Restore:
		c.leaveAlarm()
	case len(res.Transitions) > 0 && c.Current() == Alarm:
		c.render(Alarm)
	}

	c.refresh()
}

// HandleEvent routes one display event.
func (c *Controller) HandleEvent(ev display.Event) {
	// Volume changes arrive for every slider step; persist them on the next other event.
	if ev.Object == display.ObjSlider && ev.Index == SliderVolume {
		c.store.SetVolume(ev.Value)
		c.sink.WriteObject(display.ObjSound, SoundVolume, c.store.Volume())
		c.volumeDirty = true
		return
	}
	c.flushVolume()

	if ev.Object == display.ObjForm {
		f := Form(ev.Index)
		if !f.Valid() {
			c.log.Warn("unknown form reported", zap.Int("form", ev.Index))
			return
		}
		if f != c.Current() {
			c.history.Push(f)
			c.render(f)
		}
	}

	switch c.Current() {
	case Home:
		c.handleHome(ev)
	case Calibrate:
		c.handleCalibrate(ev)
	case Numpad:
		c.handleNumpad(ev)
	case Auto:
		c.handleAuto(ev)
	case Confirmation:
		c.handleConfirmation(ev)
	case SetupAlarm:
		c.handleSetupAlarm(ev)
	case Alarm:
		c.handleAlarm(ev)
	case Settings:
		c.handleSettings(ev)
	}
}

func (c *Controller) flushVolume() {
	if !c.volumeDirty {
		return
	}
	c.volumeDirty = false
	if err := c.store.Save(); err != nil {
		c.log.Warn("volume not saved", zap.Error(err))
	}
}

// enter switches the display to f and records it.
func (c *Controller) enter(f Form) {
	c.sink.WriteObject(display.ObjForm, int(f), 0)
	c.history.Push(f)
	c.render(f)
}

func (c *Controller) preempt(ch int) {
	c.alarmCh = ch
	c.log.Info("alarm preempts form", zap.Stringer("form", c.Current()), zap.Int("channel", ch+1))
	c.sink.WriteObject(display.ObjForm, int(Alarm), 0)
	c.history.EnterDetour(Alarm)
	c.render(Alarm)
}

func (c *Controller) leaveAlarm() {
	to := c.history.ReturnFrom(Alarm)
	if to == Alarm {
		to = Home
	}
	c.alarmCh = -1
	c.log.Info("alarm form restores", zap.Stringer("form", to))
	c.enter(to)
}

func (c *Controller) openNumpad(field channel.Field, rocker bool) {
	c.numpad = numpadSession{field: field, rocker: rocker}
	c.editor.Clear()
	c.sink.WriteObject(display.ObjForm, int(Numpad), 0)
	c.history.EnterDetour(Numpad)
	c.render(Numpad)
}

func (c *Controller) closeNumpad() {
	to := c.history.ReturnFrom(Numpad)
	if to == Numpad {
		to = Calibrate
	}
	c.enter(to)
}

func (c *Controller) numpadTargets() channel.Set {
	if c.numpad.rocker {
		return c.store.RockerSelected()
	}
	return c.store.Selected()
}

func (c *Controller) handleHome(display.Event) {
	if c.Previous() == Numpad {
		c.editor.Clear()
	}
}

func (c *Controller) handleCalibrate(ev display.Event) {
	switch ev.Object {
	case display.Obj4DButton:
		switch {
		case ev.Index >= Btn4DChannel && ev.Index < Btn4DChannel+channel.Count:
			c.store.SetSelected(ev.Index-Btn4DChannel, ev.Value != 0)
			c.render(Calibrate)
		case ev.Index == Btn4DAuto:
			c.enter(Auto)
		case ev.Index == Btn4DReset:
			c.enter(Confirmation)
		}
	case display.ObjWinButton:
		switch ev.Index {
		case BtnGradient:
			c.openNumpad(channel.FieldGradient, false)
		case BtnOffset:
			c.openNumpad(channel.FieldOffset, false)
		case BtnMax:
			c.openNumpad(channel.FieldDisplayMax, false)
		case BtnMin:
			c.openNumpad(channel.FieldDisplayMin, false)
		}
	}
}

func (c *Controller) handleNumpad(ev display.Event) {
	switch ev.Object {
	case display.ObjWinButton:
		if ev.Index == BtnNumpadBack {
			c.editor.Clear()
			c.closeNumpad()
		}
	case display.ObjKeyboard:
		if ev.Index != KeyboardNumpad {
			c.log.Warn("unknown keyboard", zap.Int("index", ev.Index))
			return
		}
		c.processKey(ev.Value)
	}
}

func (c *Controller) processKey(key int) {
	switch {
	case key >= '0' && key <= '9':
		c.editor.PushDigit(key - '0')
	case key == KeyDot || key == KeyPoint:
		c.editor.PushDecimalPoint()
	case key == KeySignChange:
		c.editor.ToggleSign()
	case key == KeyBackspace:
		c.editor.Backspace()
	case key == KeyClear:
		c.editor.Clear()
	case key == KeySave:
		c.commit()
		return
	default:
		c.log.Debug("unknown key", zap.Int("key", key))
	}
	c.sink.WriteText(StrNumpad, c.editor.Buffer())
}

func (c *Controller) commit() {
	targets := c.numpadTargets()
	if targets.Empty() {
		c.sink.WriteText(StrNumpad, StatusNoChannel)
		return
	}

	v, err := c.editor.Commit()
	if err != nil {
		c.log.Info("numeric entry rejected", zap.Error(err))
		c.sink.WriteText(StrNumpad, c.editor.Buffer())
		return
	}

	c.log.Info("numeric entry committed", zap.Stringer("field", c.numpad.field),
		zap.Stringer("channels", targets), zap.Float64("value", v))
	c.store.SetField(targets, c.numpad.field, v)
	c.closeNumpad()
}

func (c *Controller) handleAuto(ev display.Event) {
	if ev.Object != display.ObjWinButton {
		return
	}
	switch ev.Index {
	case BtnRef1:
		c.openNumpad(channel.FieldRef1, false)
	case BtnRef2:
		c.openNumpad(channel.FieldRef2, false)
	case BtnCapture1:
		c.capture(1)
	case BtnCapture2:
		c.capture(2)
	case BtnAutoBack:
		c.enter(Calibrate)
	}
}

// capture performs the two-point fit on every selected channel.
func (c *Controller) capture(point int) {
	selected := c.store.Selected()
	if selected.Empty() {
		c.setAutoStatus(StatusNoChannel)
		return
	}

	var failed bool
	for _, ch := range selected.Channels() {
		err := c.store.ApplyTwoPointFit(ch, point)
		var calErr *channel.CalibrationError
		switch {
		case errors.As(err, &calErr):
			failed = true
			c.log.Warn("two-point fit rejected", zap.Int("channel", ch+1), zap.Int("point", point), zap.Error(err))
		case err != nil:
			failed = true
			c.log.Error("two-point fit failed", zap.Int("channel", ch+1), zap.Error(err))
		default:
			cur := c.store.Channel(ch)
			c.log.Info("two-point fit applied", zap.Int("channel", ch+1), zap.Int("point", point),
				zap.Float64("gradient", cur.Gradient), zap.Float64("offset", cur.Offset))
		}
	}

	if failed {
		c.setAutoStatus(editor.ErrorMarker)
	} else {
		c.setAutoStatus(StatusOK)
	}
}

func (c *Controller) setAutoStatus(s string) {
	c.autoStatus = s
	c.sink.WriteText(StrAutoStatus, s)
}

// AutoStatus returns the last AUTO form status text.
func (c *Controller) AutoStatus() string { return c.autoStatus }

func (c *Controller) handleConfirmation(ev display.Event) {
	if ev.Object != display.ObjWinButton {
		return
	}
	switch ev.Index {
	case BtnConfirmYes:
		c.log.Info("calibration reset")
		c.store.ResetCalibration(channel.All)
		c.enter(Calibrate)
	case BtnConfirmNo:
		c.enter(Calibrate)
	}
}

func (c *Controller) handleSetupAlarm(ev display.Event) {
	switch ev.Object {
	case display.ObjRocker:
		if ev.Index >= RockerChannel && ev.Index < RockerChannel+channel.Count {
			c.store.SetRockerSelected(ev.Index-RockerChannel, ev.Value != 0)
		}
	case display.ObjWinButton:
		sel := c.store.RockerSelected()
		switch ev.Index {
		case BtnArm:
			c.store.SetArmed(sel, true)
			c.log.Info("channels armed", zap.Stringer("channels", sel))
		case BtnDisarm:
			c.disarm(sel)
		case BtnAlarmMin:
			c.openNumpad(channel.FieldAlarmMin, true)
			return
		case BtnAlarmMax:
			c.openNumpad(channel.FieldAlarmMax, true)
			return
		case BtnAlarmReset:
			c.store.ResetAlarmBounds(sel)
		default:
			return
		}
	default:
		return
	}
	c.render(SetupAlarm)
}

func (c *Controller) handleAlarm(ev display.Event) {
	if ev.Object != display.ObjWinButton {
		return
	}
	var acked channel.Set
	switch ev.Index {
	case BtnAckOne:
		ch := c.shownAlarm()
		if ch < 0 {
			break
		}
		acked = channel.SetOf(ch)
		c.acknowledge(acked)
		if !c.monitor.RestoreAfterAck(c.store) {
			c.alarmCh = c.store.Active().First()
			c.indicator.Alert(c.alarmCh)
			c.render(Alarm)
			return
		}
	case BtnAckAll:
		c.acknowledge(channel.All)
	default:
		return
	}
	c.leaveAlarm()
}

// acknowledge clears and disarms set, journaling the channels that were active.
func (c *Controller) acknowledge(set channel.Set) {
	active := c.store.Active()
	c.store.Acknowledge(set)
	for _, ch := range set.Channels() {
		if !active.Has(ch) {
			continue
		}
		cur := c.store.Channel(ch)
		c.log.Info("alarm acknowledged", zap.Int("channel", ch+1))
		c.record(journal.Event{
			Channel:  ch,
			Kind:     journal.KindAcknowledged,
			Value:    cur.CalibratedVoltage,
			AlarmMin: cur.AlarmMin,
			AlarmMax: cur.AlarmMax,
		})
	}
	if c.store.Active().Empty() {
		c.indicator.Silence()
	}
}

// disarm disarms set. Channels in alarm are cleared and journaled; the indicator is
// silenced once nothing is active.
func (c *Controller) disarm(set channel.Set) {
	active := c.store.Active()
	c.store.SetArmed(set, false)
	c.log.Info("channels disarmed", zap.Stringer("channels", set))
	for _, ch := range set.Channels() {
		if !active.Has(ch) {
			continue
		}
		cur := c.store.Channel(ch)
		c.log.Info("alarm cleared by disarm", zap.Int("channel", ch+1))
		c.record(journal.Event{
			Channel:  ch,
			Kind:     journal.KindCleared,
			Value:    cur.CalibratedVoltage,
			AlarmMin: cur.AlarmMin,
			AlarmMax: cur.AlarmMax,
		})
	}
	if !active.Empty() && c.store.Active().Empty() {
		c.indicator.Silence()
	}
}

func (c *Controller) shownAlarm() int {
	if c.store.Active().Has(c.alarmCh) {
		return c.alarmCh
	}
	return c.store.Active().First()
}

func (c *Controller) handleSettings(ev display.Event) {
	if ev.Object != display.ObjWinButton || c.host == nil {
		return
	}
	var (
		action string
		run    func() error
	)
	switch ev.Index {
	case BtnReboot:
		action, run = "reboot", c.host.Reboot
	case BtnShutdown:
		action, run = "shutdown", c.host.Shutdown
	default:
		return
	}
	if err := c.store.Save(); err != nil {
		c.log.Warn("calibration not saved before "+action, zap.Error(err))
	}
	c.log.Info("host action requested", zap.String("action", action))
	if err := run(); err != nil {
		c.log.Error("host action failed", zap.String("action", action), zap.Error(err))
	}
}

func (c *Controller) record(ev journal.Event) {
	if c.recorder != nil {
		c.recorder.Record(ev)
	}
}

// render draws the static part of form f.
func (c *Controller) render(f Form) {
	switch f {
	case Calibrate:
		for ch := range channel.Count {
			cur := c.store.Channel(ch)
			c.sink.WriteObject(display.Obj4DButton, Btn4DChannel+ch, boolValue(cur.Selected))
			c.sink.WriteText(StrCalValue+ch, fmt.Sprintf("%s x%s %s", formatValue(cur.CalibratedVoltage),
				formatValue(cur.Gradient), formatSigned(cur.Offset)))
		}
	case Numpad:
		c.sink.WriteText(StrNumpadHint, fmt.Sprintf("%s %s", c.numpad.field, c.numpadTargets()))
		c.sink.WriteText(StrNumpad, c.editor.Buffer())
	case Auto:
		c.sink.WriteText(StrAutoStatus, c.autoStatus)
	case SetupAlarm:
		for ch := range channel.Count {
			cur := c.store.Channel(ch)
			c.sink.WriteObject(display.ObjRocker, RockerChannel+ch, boolValue(cur.RockerSelected))
			c.sink.WriteObject(display.ObjUserLED, LEDChannel+ch, boolValue(cur.Armed))
			c.sink.WriteText(StrBand+ch, formatBand(cur.AlarmMin, cur.AlarmMax))
		}
	case Settings:
		c.sink.WriteObject(display.ObjSlider, SliderVolume, c.store.Volume())
	case Alarm:
		c.renderAlarm()
	}
	c.refreshForm(f)
}

// refresh updates the live values of the current form.
func (c *Controller) refresh() {
	c.refreshForm(c.Current())
}

func (c *Controller) refreshForm(f Form) {
	switch f {
	case Home:
		for ch := range channel.Count {
			cur := c.store.Channel(ch)
			c.sink.WriteText(StrValue+ch, formatValue(cur.CalibratedVoltage))
			c.sink.WriteObject(display.ObjUserLED, LEDChannel+ch, boolValue(cur.AlarmActive))
		}
	case Scope:
		for ch := range channel.Count {
			c.sink.WriteObject(display.ObjScope, ch/ScopeTraces, c.store.DisplayPercent(ch))
		}
	case Auto:
		for ch := range channel.Count {
			c.sink.WriteText(StrAutoRaw+ch, formatValue(c.store.Channel(ch).RawVoltage))
		}
	case Alarm:
		c.renderAlarm()
	}
}

func (c *Controller) renderAlarm() {
	ch := c.shownAlarm()
	if ch < 0 {
		c.sink.WriteText(StrAlarm, "")
		return
	}
	cur := c.store.Channel(ch)
	c.sink.WriteText(StrAlarm, fmt.Sprintf("CH%d %s %s", ch+1, formatValue(cur.CalibratedVoltage),
		formatBand(cur.AlarmMin, cur.AlarmMax)))
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatSigned(v float64) string {
	if v >= 0 {
		return "+" + formatValue(v)
	}
	return formatValue(v)
}

// formatBand shows the safe region: [min..max] for inside-safe bands, ]max..min[ for
// outside-safe bands.
func formatBand(lo, hi float64) string {
	if hi > lo {
		return "[" + formatValue(lo) + ".." + formatValue(hi) + "]"
	}
	return "]" + formatValue(hi) + ".." + formatValue(lo) + "["
}

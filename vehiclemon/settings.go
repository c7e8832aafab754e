package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/vehiclemon/pkg/config"
	"github.com/itohio/vehiclemon/pkg/genie"
	"github.com/itohio/vehiclemon/pkg/journal"
)

// appState holds what the simulator dialogs need.
type appState struct {
	cfg        *config.Config
	configPath string
	window     fyne.Window
	journal    *journal.Journal
}

// save writes the configuration. Changes take effect on the next start.
func (s *appState) save() {
	if err := s.cfg.Save(s.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), s.window)
		return
	}
	dialog.ShowInformation("Settings", "Saved. Restart to apply.", s.window)
}

// showSettingsDialog displays a settings dialog with tabs for the configuration sections.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createDisplayTab(state),
		createSamplingTab(state),
		createAlarmTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(560, 420))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(560, 420))
	d.Show()
}

// createDisplayTab creates the serial display tab.
func createDisplayTab(state *appState) *container.TabItem {
	ports, err := genie.Ports()
	options := []string{}
	if err == nil {
		for _, p := range ports {
			options = append(options, p.Name)
		}
	}

	current := state.cfg.Display.Port
	found := false
	for _, opt := range options {
		if opt == current {
			found = true
			break
		}
	}
	if !found && current != "" {
		options = append(options, current)
	}

	portSelect := widget.NewSelect(options, nil)
	if current != "" {
		portSelect.SetSelected(current)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Display.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				state.cfg.Display.Port = portSelect.Selected
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.cfg.Display.BaudRate = baud
			}
			state.save()
		},
	}

	return container.NewTabItem("Display", form)
}

// createSamplingTab creates the sampling tab.
func createSamplingTab(state *appState) *container.TabItem {
	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Sampling.Interval.String())

	staleEntry := widget.NewEntry()
	staleEntry.SetText(strconv.Itoa(state.cfg.Sampling.StaleAfter))

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.cfg.Sampling.Average))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Interval", Widget: intervalEntry},
			{Text: "Stale After (reads)", Widget: staleEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(intervalEntry.Text); err == nil && d > 0 {
				state.cfg.Sampling.Interval = d
			}
			if n, err := strconv.Atoi(staleEntry.Text); err == nil && n >= 0 {
				state.cfg.Sampling.StaleAfter = n
			}
			if n, err := strconv.Atoi(averageEntry.Text); err == nil && n >= 0 {
				state.cfg.Sampling.Average = n
			}
			state.save()
		},
	}

	return container.NewTabItem("Sampling", form)
}

// createAlarmTab creates the alarm tab.
func createAlarmTab(state *appState) *container.TabItem {
	restoreCheck := widget.NewCheck("", nil)
	restoreCheck.SetChecked(state.cfg.Alarm.RestoreOnAnyClear)

	pinEntry := widget.NewEntry()
	pinEntry.SetText(strconv.Itoa(state.cfg.Alarm.BuzzerPin))

	beepEntry := widget.NewEntry()
	beepEntry.SetText(state.cfg.Alarm.BeepDuration.String())

	journalEntry := widget.NewEntry()
	journalEntry.SetText(state.cfg.Alarm.Journal)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Leave alarm screen on any clear", Widget: restoreCheck},
			{Text: "Buzzer Pin (0=disabled)", Widget: pinEntry},
			{Text: "Beep Duration", Widget: beepEntry},
			{Text: "Journal File", Widget: journalEntry},
		},
		OnSubmit: func() {
			state.cfg.Alarm.RestoreOnAnyClear = restoreCheck.Checked
			if pin, err := strconv.Atoi(pinEntry.Text); err == nil && pin >= 0 {
				state.cfg.Alarm.BuzzerPin = pin
			}
			if d, err := time.ParseDuration(beepEntry.Text); err == nil && d > 0 {
				state.cfg.Alarm.BeepDuration = d
			}
			state.cfg.Alarm.Journal = journalEntry.Text
			state.save()
		},
	}

	return container.NewTabItem("Alarm", form)
}

// createMockTab creates the simulated source tab.
func createMockTab(state *appState) *container.TabItem {
	rippleEntry := widget.NewEntry()
	rippleEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.Ripple))

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.4f", state.cfg.Mock.NoiseLevel))

	faultChannelEntry := widget.NewEntry()
	faultChannelEntry.SetText(strconv.Itoa(state.cfg.Mock.FaultChannel))

	faultAfterEntry := widget.NewEntry()
	faultAfterEntry.SetText(state.cfg.Mock.FaultAfter.String())

	faultVoltageEntry := widget.NewEntry()
	faultVoltageEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.FaultVoltage))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ripple (V)", Widget: rippleEntry},
			{Text: "Noise Level (V)", Widget: noiseLevelEntry},
			{Text: "Fault Channel (-1=none)", Widget: faultChannelEntry},
			{Text: "Fault After", Widget: faultAfterEntry},
			{Text: "Fault Voltage (V)", Widget: faultVoltageEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(rippleEntry.Text, 64); err == nil {
				state.cfg.Mock.Ripple = v
			}
			if v, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = v
			}
			if v, err := strconv.Atoi(faultChannelEntry.Text); err == nil {
				state.cfg.Mock.FaultChannel = v
			}
			if d, err := time.ParseDuration(faultAfterEntry.Text); err == nil {
				state.cfg.Mock.FaultAfter = d
			}
			if v, err := strconv.ParseFloat(faultVoltageEntry.Text, 64); err == nil {
				state.cfg.Mock.FaultVoltage = v
			}
			state.save()
		},
	}

	return container.NewTabItem("Mock", form)
}

// showAlarmLog lists the most recent journal entries.
func showAlarmLog(state *appState) {
	if state.journal == nil {
		dialog.ShowInformation("Alarm log", "The alarm journal is disabled.", state.window)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := state.journal.Recent(ctx, 50)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to read alarm journal: %w", err), state.window)
		return
	}

	list := widget.NewList(
		func() int { return len(events) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			ev := events[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%s  CH%d  %s  %.3f",
				ev.Timestamp.Format("15:04:05"), ev.Channel+1, ev.Kind, ev.Value))
		},
	)

	d := dialog.NewCustom("Alarm log", "Close", list, state.window)
	d.Resize(fyne.NewSize(480, 400))
	d.Show()
}

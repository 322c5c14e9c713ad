// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"dronewatch/internal/audio"
	"dronewatch/internal/detect"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func step(t *testing.T, m tea.Model, msg tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(msg)
}

var testDevices = []audio.Device{
	{ID: 0, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 48000},
	{ID: 3, Name: "USB Array", MaxInputChannels: 4, DefaultSampleRate: 32000},
}

func TestDevicePickerSelectsDeviceAndRate(t *testing.T) {
	var m tea.Model = NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })

	msg := m.Init()()
	m, _ = step(t, m, msg)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	if !strings.Contains(m.View(), "USB Array") {
		t.Fatalf("device list missing devices:\n%s", m.View())
	}

	m, _ = step(t, m, keyMsg("down"))
	m, _ = step(t, m, keyMsg("enter"))
	if !strings.Contains(m.View(), "32000 Hz") {
		t.Errorf("config screen missing device default rate:\n%s", m.View())
	}

	// The non-standard default is appended last and preselected; moving up
	// selects 96000.
	m, _ = step(t, m, keyMsg("up"))
	m, cmd := step(t, m, keyMsg("enter"))
	if cmd == nil {
		t.Fatal("confirming did not quit")
	}

	sel, ok := m.(DeviceListModel).Selection()
	if !ok {
		t.Fatal("no selection")
	}
	if sel.Device.ID != 3 || sel.SampleRate != 96000 {
		t.Errorf("selection = %+v", sel)
	}
}

func TestDevicePickerBackAndQuit(t *testing.T) {
	var m tea.Model = NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = step(t, m, devicesMsg{testDevices})
	m, _ = step(t, m, keyMsg("enter"))
	m, _ = step(t, m, keyMsg("esc"))
	if m.(DeviceListModel).activeScreen != ListScreen {
		t.Error("esc did not return to the list")
	}
	m, cmd := step(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if _, ok := m.(DeviceListModel).Selection(); ok {
		t.Error("quit produced a selection")
	}
}

func TestDevicePickerError(t *testing.T) {
	fail := errors.New("no host API")
	var m tea.Model = NewDeviceListModel(func() ([]audio.Device, error) { return nil, fail })
	m, _ = step(t, m, m.Init()())
	if !strings.Contains(m.View(), "no host API") {
		t.Errorf("error not shown:\n%s", m.View())
	}
}

func TestDashboardCountsStatuses(t *testing.T) {
	quit := false
	info := DashboardInfo{Strategy: detect.StrategyPeak, SampleRate: 48000, TargetFreq: 265}
	var m tea.Model = NewDashboardModel(info, func() { quit = true })

	if !strings.Contains(m.View(), "Waiting") {
		t.Error("empty dashboard should be waiting")
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m, _ = step(t, m, statusMsg{Strategy: detect.StrategyPeak, PeakFreq: 180})
	m, _ = step(t, m, statusMsg{Strategy: detect.StrategyPeak, PeakFreq: 264, Confidence: 0.8, State: detect.Detected, Timestamp: now})

	d := m.(DashboardModel)
	if d.blocks != 2 || d.detections != 1 || !d.lastHit.Equal(now) {
		t.Errorf("counters = %d/%d/%v", d.blocks, d.detections, d.lastHit)
	}
	view := m.View()
	for _, want := range []string{"DRONE DETECTED", "264.00 Hz", "03:04:05", "Detections: 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	_, cmd := step(t, m, keyMsg("q"))
	if cmd == nil || !quit {
		t.Error("q did not quit and stop")
	}
}

func TestDashboardTrendIsBounded(t *testing.T) {
	var m tea.Model = NewDashboardModel(DashboardInfo{Strategy: detect.StrategySpike}, nil)
	for i := range trendLength * 2 {
		m, _ = step(t, m, statusMsg{Strategy: detect.StrategySpike, MaxDiff: float64(i)})
	}
	d := m.(DashboardModel)
	if len(d.trend) != trendLength {
		t.Errorf("trend length = %d", len(d.trend))
	}
	if d.trend[len(d.trend)-1] != float64(trendLength*2-1) {
		t.Errorf("trend does not end with the newest value")
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		in   []float64
		want string
	}{
		{nil, ""},
		{[]float64{5, 5}, "▁▁"},
		{[]float64{0, 7}, "▁█"},
		{[]float64{0, 1, 2, 3, 4, 5, 6, 7}, "▁▂▃▄▅▆▇█"},
	}
	for _, tt := range tests {
		if got := sparkline(tt.in); got != tt.want {
			t.Errorf("sparkline(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDashboardProgramLifecycle(t *testing.T) {
	d := StartDashboard(DashboardInfo{Strategy: detect.StrategyPeak}, nil,
		tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer())
	for i := range 5 {
		d.Report(detect.Status{Sequence: uint64(i)})
	}

	done := make(chan error)
	go func() { done <- d.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if err := d.Report(detect.Status{}); err != nil {
		t.Errorf("Report after Close: %v", err)
	}
}

// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Number of recent values drawn in the trend line.
const trendLength = 48

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// DashboardInfo describes the running detector.
type DashboardInfo struct {
	Strategy   string
	SampleRate float64
	TargetFreq float64 // Hz, peak strategy
	Threshold  float64 // spike threshold, spike strategy
	Source     string
}

type statusMsg detect.Status

// DashboardModel renders the live detection state.
type DashboardModel struct {
	info       DashboardInfo
	last       detect.Status
	have       bool
	blocks     uint64
	detections uint64
	lastHit    time.Time
	trend      []float64
	width      int
	onQuit     func()
}

// NewDashboardModel returns an empty dashboard. onQuit runs when the user
// presses q and may be nil.
func NewDashboardModel(info DashboardInfo, onQuit func()) DashboardModel {
	return DashboardModel{info: info, onQuit: onQuit, width: 80}
}

func (m DashboardModel) Init() tea.Cmd {
	return nil
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case statusMsg:
		status := detect.Status(msg)
		m.last = status
		m.have = true
		m.blocks++
		if status.Detected() {
			m.detections++
			m.lastHit = status.Timestamp
		}
		value := status.PeakFreq
		if status.Strategy == detect.StrategySpike {
			value = status.MaxDiff
		}
		m.trend = append(m.trend, value)
		if len(m.trend) > trendLength {
			m.trend = m.trend[len(m.trend)-trendLength:]
		}

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m DashboardModel) View() string {
	var sb strings.Builder

	header := fmt.Sprintf("dronewatch · %s strategy · %.0f Hz", m.info.Strategy, m.info.SampleRate)
	if m.info.Source != "" {
		header += " · " + m.info.Source
	}
	sb.WriteString(titleStyle.Render(header))
	sb.WriteString("\n\n")

	if !m.have {
		sb.WriteString(dimStyle.Render("Waiting for the first block..."))
		sb.WriteString("\n\n" + infoStyle.Render("q: Quit"))
		return sb.String()
	}

	state := highlightStyle.Render("SCANNING")
	switch {
	case m.last.Detected():
		state = alertStyle.Render("!!! DRONE DETECTED !!!")
	case m.last.Warming:
		state = dimStyle.Render("BUFFERING")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "State:       %s\n", state)
	if m.info.Strategy == detect.StrategySpike {
		fmt.Fprintf(&body, "Max diff:    %.1f (threshold %.1f)\n", m.last.MaxDiff, m.info.Threshold)
	} else {
		fmt.Fprintf(&body, "Peak:        %.2f Hz (target %.2f Hz)\n", m.last.PeakFreq, m.info.TargetFreq)
		fmt.Fprintf(&body, "Confidence:  %s %3.0f%%\n", bar(m.last.Confidence, 20), m.last.Confidence*100)
	}
	fmt.Fprintf(&body, "Latency:     %s\n", m.last.Latency.Round(time.Microsecond))
	fmt.Fprintf(&body, "Blocks:      %d  Detections: %d\n", m.blocks, m.detections)
	if !m.lastHit.IsZero() {
		fmt.Fprintf(&body, "Last hit:    %s\n", m.lastHit.Format("15:04:05"))
	}
	fmt.Fprintf(&body, "Trend:       %s", sparkline(m.trend))

	box := boxStyle
	if m.width > 4 {
		box = box.Width(min(m.width-4, 72))
	}
	sb.WriteString(box.Render(body.String()))
	sb.WriteString("\n\n" + infoStyle.Render("q: Quit"))
	return sb.String()
}

// bar draws ratio (0..1) as a fixed width gauge.
func bar(ratio float64, width int) string {
	filled := int(ratio*float64(width) + 0.5)
	filled = max(0, min(width, filled))
	return highlightStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// sparkline scales values between their own min and max.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		level := 0
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

// Dashboard runs a DashboardModel as a full screen program and feeds it
// status records. It implements transport.Transport.
type Dashboard struct {
	program *tea.Program
	done    chan struct{}
	err     error

	closeOnce sync.Once
}

// StartDashboard launches the program. onQuit is called when the user quits
// and should stop the detection loop.
func StartDashboard(info DashboardInfo, onQuit func(), opts ...tea.ProgramOption) *Dashboard {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	d := &Dashboard{
		program: tea.NewProgram(NewDashboardModel(info, onQuit), opts...),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		_, d.err = d.program.Run()
	}()
	return d
}

// Report implements transport.Transport. After the program has exited
// statuses are discarded.
func (d *Dashboard) Report(status detect.Status) error {
	select {
	case <-d.done:
		return nil
	default:
	}
	d.program.Send(statusMsg(status))
	return nil
}

// Close quits the program and restores the terminal.
func (d *Dashboard) Close() error {
	d.closeOnce.Do(func() {
		d.program.Quit()
		<-d.done
	})
	return d.err
}

var _ transport.Transport = (*Dashboard)(nil)

// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"io"
	"sync"

	"dronewatch/internal/detect"
)

// Decimals sets the precision of the console status line.
type Decimals struct {
	Freq int // Hz values
	Conf int // Confidence percentage
	Time int // Processing time in seconds
}

// Console writes one human-readable line per status:
//
//	!!! DRONE DETECTED !!! 264.00Hz | Conf: 80% | Time: 0.00123s
//	Scanning... Peak: 264.00Hz | Time: 0.00123s
//
// In place mode rewrites scanning lines with a carriage return and only
// detections advance to a new line, for an interactive terminal.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	dec      Decimals
	inPlace  bool
	dangling bool // an in-place line is waiting for its newline
}

// NewConsole writes to w with the given precision.
func NewConsole(w io.Writer, dec Decimals, inPlace bool) *Console {
	return &Console{w: w, dec: dec, inPlace: inPlace}
}

// Banner announces the start of detection.
func (c *Console) Banner(strategy string, sampleRate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "Started drone detection (@%.0fHz, %s strategy)\n", sampleRate, strategy)
	return err
}

// Format renders status without a line terminator.
func (c *Console) Format(status detect.Status) string {
	secs := status.Latency.Seconds()
	switch {
	case status.Strategy == detect.StrategySpike && status.Detected():
		return fmt.Sprintf("!!! DRONE DETECTED !!! Spike: %.*f | Time: %.*fs",
			c.dec.Freq, status.MaxDiff, c.dec.Time, secs)
	case status.Strategy == detect.StrategySpike && status.Warming:
		return fmt.Sprintf("Scanning... Buffering | Time: %.*fs", c.dec.Time, secs)
	case status.Strategy == detect.StrategySpike:
		return fmt.Sprintf("Scanning... Diff: %.*f | Time: %.*fs",
			c.dec.Freq, status.MaxDiff, c.dec.Time, secs)
	case status.Detected():
		return fmt.Sprintf("!!! DRONE DETECTED !!! %.*fHz | Conf: %.*f%% | Time: %.*fs",
			c.dec.Freq, status.PeakFreq, c.dec.Conf, status.Confidence*100, c.dec.Time, secs)
	default:
		return fmt.Sprintf("Scanning... Peak: %.*fHz | Time: %.*fs",
			c.dec.Freq, status.PeakFreq, c.dec.Time, secs)
	}
}

// Report implements Transport.
func (c *Console) Report(status detect.Status) error {
	line := c.Format(status)

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch {
	case !c.inPlace:
		_, err = fmt.Fprintln(c.w, line)
	case status.Detected():
		_, err = fmt.Fprintf(c.w, "\r\033[K%s\n", line)
		c.dangling = false
	default:
		_, err = fmt.Fprintf(c.w, "\r\033[K%s", line)
		c.dangling = true
	}
	return err
}

// Close terminates a dangling in-place line and prints ENDING.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := ""
	if c.dangling {
		prefix = "\n"
		c.dangling = false
	}
	_, err := fmt.Fprintf(c.w, "%sENDING\n", prefix)
	return err
}

var _ Transport = (*Console)(nil)

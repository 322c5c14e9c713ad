// SPDX-License-Identifier: MIT

/*
Package detect implements the two drone detection strategies behind one
Detector capability:

  - PeakHistory tracks the dominant frequency of each block and fires once a
    full history of recent blocks matches the target frequency often enough.
  - SpectralDiff compares the propeller RPM band of the current window with
    the previous one and fires on a sudden magnitude jump.

Detectors are selected once at startup and driven by a single loop goroutine;
none of them are safe for concurrent use.
*/
package detect

import (
	"time"

	"dronewatch/internal/errs"
)

// Re-exported so callers only need this package to classify failures.
var (
	ErrInvalidConfig = errs.ErrInvalidConfig
	ErrInvalidInput  = errs.ErrInvalidInput
)

// Strategy names used in configuration and status records.
const (
	StrategyPeak  = "peak"
	StrategySpike = "spike"
)

// Detector consumes one block of mono samples per call.
type Detector interface {
	// Name returns the strategy name (StrategyPeak or StrategySpike).
	Name() string

	// Observe analyses block and returns the resulting status. A rejected
	// block returns ErrInvalidInput and leaves the detector state untouched.
	Observe(block []float64, sampleRate float64) (Status, error)

	// Reset drops all state accumulated from previous blocks.
	Reset()
}

// State is the detection outcome of one iteration.
type State int

const (
	Scanning State = iota
	Detected
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "SCANNING"
	case Detected:
		return "DETECTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets State travel as its name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the per-iteration record handed to report sinks. Detectors fill
// in the analysis fields; the loop stamps Sequence and Timestamp.
type Status struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Strategy  string    `json:"strategy"`
	State     State     `json:"state"`
	Spike     bool      `json:"spike"`

	// Warming is set while the history or the window is not yet full.
	Warming bool `json:"warming"`

	PeakFreq   float64       `json:"peak_freq"`  // Hz, peak strategy
	MaxDiff    float64       `json:"max_diff"`   // magnitude units, spike strategy
	Confidence float64       `json:"confidence"` // match ratio, 0..1
	Latency    time.Duration `json:"latency_ns"` // processing time of this block
	Samples    int           `json:"block_size"` // samples in the analysed block
}

// Detected reports whether this status raised a detection.
func (s Status) Detected() bool {
	return s.State == Detected
}

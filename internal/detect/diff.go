// SPDX-License-Identifier: MIT
package detect

import (
	"errors"
	"fmt"
	"time"

	"dronewatch/internal/buffer"
	"dronewatch/internal/dsp"
)

// Defaults for the spectral-diff strategy, in RPM and magnitude units.
const (
	DefaultRPMMin         = 4000.0
	DefaultRPMMax         = 12000.0
	DefaultSpikeThreshold = 1000.0
)

// SpectralDiffConfig parameterises the window-to-window spike strategy.
type SpectralDiffConfig struct {
	SampleRate    float64        // Hz
	RPMMin        float64        // lower propeller rate, RPM
	RPMMax        float64        // upper propeller rate, RPM
	Threshold     float64        // spike threshold, magnitude units
	WindowSamples int            // rolling window capacity used by Observe
	Window        dsp.WindowFunc // taper applied before each transform
}

// Validate checks every field and joins all violations into one error
// wrapping ErrInvalidConfig.
func (c SpectralDiffConfig) Validate() error {
	var errs []error
	if !(c.SampleRate > 0) {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %v", c.SampleRate))
	}
	if !(c.RPMMin >= 0) {
		errs = append(errs, fmt.Errorf("rpm_min must not be negative, got %v", c.RPMMin))
	}
	if !(c.RPMMax > c.RPMMin) {
		errs = append(errs, fmt.Errorf("rpm_max (%v) must exceed rpm_min (%v)", c.RPMMax, c.RPMMin))
	}
	if !(c.Threshold >= 0) {
		errs = append(errs, fmt.Errorf("spike_threshold must not be negative, got %v", c.Threshold))
	}
	if c.WindowSamples <= 0 {
		errs = append(errs, fmt.Errorf("spike window must hold at least one sample, got %d", c.WindowSamples))
	}
	if len(errs) > 0 {
		return fmt.Errorf("spike detector: %w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// BandLow returns the lower edge of the propeller band in Hz.
func (c SpectralDiffConfig) BandLow() float64 { return dsp.RPMToHz(c.RPMMin) }

// BandHigh returns the upper edge of the propeller band in Hz.
func (c SpectralDiffConfig) BandHigh() float64 { return dsp.RPMToHz(c.RPMMax) }

// SpectralDiff flags a sudden change in the propeller band between two
// consecutive analysis windows.
type SpectralDiff struct {
	cfg         SpectralDiffConfig
	transformer *dsp.Transformer
	window      *buffer.Rolling
	now         func() time.Time
}

var _ Detector = (*SpectralDiff)(nil)

// NewSpectralDiff validates cfg and returns a detector with an empty window.
func NewSpectralDiff(cfg SpectralDiffConfig) (*SpectralDiff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	window, err := buffer.New(cfg.WindowSamples)
	if err != nil {
		return nil, err
	}
	return &SpectralDiff{
		cfg:         cfg,
		transformer: dsp.NewTransformer(cfg.Window),
		window:      window,
		now:         time.Now,
	}, nil
}

// Name implements Detector.
func (d *SpectralDiff) Name() string {
	return StrategySpike
}

// Config returns the detector's parameters.
func (d *SpectralDiff) Config() SpectralDiffConfig {
	return d.cfg
}

// Band returns the propeller-band magnitudes of window. Each window's own
// length determines its bin mapping.
func (d *SpectralDiff) Band(window []float64) ([]float64, error) {
	spectrum, err := d.transformer.Transform(window, d.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return dsp.ExtractBand(spectrum, d.cfg.BandLow(), d.cfg.BandHigh()), nil
}

// DetectSpike compares the propeller band of current against previous and
// reports whether the largest per-bin magnitude change exceeds threshold,
// together with that largest change.
//
// Both windows must be non-empty and their bands must hold the same number
// of bins; anything else fails with ErrInvalidInput rather than being
// truncated. Two empty bands compare as no spike.
func (d *SpectralDiff) DetectSpike(current, previous []float64, threshold float64) (bool, float64, error) {
	if len(current) == 0 {
		return false, 0, fmt.Errorf("spike detector: empty current window: %w", ErrInvalidInput)
	}
	if len(previous) == 0 {
		return false, 0, fmt.Errorf("spike detector: empty previous window: %w", ErrInvalidInput)
	}

	currentBand, err := d.Band(current)
	if err != nil {
		return false, 0, fmt.Errorf("spike detector: current window: %w", err)
	}
	previousBand, err := d.Band(previous)
	if err != nil {
		return false, 0, fmt.Errorf("spike detector: previous window: %w", err)
	}
	if len(currentBand) != len(previousBand) {
		return false, 0, fmt.Errorf("spike detector: band length mismatch (%d vs %d bins): %w",
			len(currentBand), len(previousBand), ErrInvalidInput)
	}

	diff := dsp.MaxAbsDiff(currentBand, previousBand)
	return diff > threshold, diff, nil
}

// Observe appends block to the rolling window. Once the window is full and a
// previous window has been stored, the two are compared; the current window
// then becomes the previous one for the next call.
func (d *SpectralDiff) Observe(block []float64, sampleRate float64) (Status, error) {
	start := d.now()

	if len(block) == 0 {
		return Status{}, fmt.Errorf("spike detector: empty block: %w", ErrInvalidInput)
	}
	if sampleRate != d.cfg.SampleRate {
		return Status{}, fmt.Errorf("spike detector: block sample rate %v does not match configured %v: %w",
			sampleRate, d.cfg.SampleRate, ErrInvalidInput)
	}

	status := Status{
		Strategy: StrategySpike,
		State:    Scanning,
		Warming:  true,
		Samples:  len(block),
	}

	d.window.AddSamples(block)
	if !d.window.IsFull() {
		status.Latency = d.now().Sub(start)
		return status, nil
	}

	current := d.window.Window()
	previous, ok := d.window.PreviousWindow()
	d.window.StorePreviousWindow()
	if !ok {
		status.Latency = d.now().Sub(start)
		return status, nil
	}

	spike, diff, err := d.DetectSpike(current, previous, d.cfg.Threshold)
	if err != nil {
		return Status{}, err
	}

	status.Warming = false
	status.Spike = spike
	status.MaxDiff = diff
	if spike {
		status.State = Detected
		status.Confidence = 1
	}
	status.Latency = d.now().Sub(start)
	return status, nil
}

// Reset implements Detector.
func (d *SpectralDiff) Reset() {
	d.window.Clear()
}

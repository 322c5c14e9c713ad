// SPDX-License-Identifier: MIT
package detect

import (
	"errors"
	"fmt"
	"math"
	"time"

	"dronewatch/internal/buffer"
	"dronewatch/internal/dsp"
)

// DefaultMinFrequency is the noise-floor cutoff below which bins never win the
// peak search.
const DefaultMinFrequency = 150.0

// PeakHistoryConfig parameterises the sustained-peak strategy.
type PeakHistoryConfig struct {
	TargetFreq     float64        // Hz
	MatchThreshold float64        // Hz tolerance either side of TargetFreq
	WindowSize     int            // history length required before detecting
	MinMatchRatio  float64        // 0..1
	MinFrequency   float64        // Hz noise-floor cutoff
	Window         dsp.WindowFunc // taper applied before the transform
}

// Validate checks every field and joins all violations into one error
// wrapping ErrInvalidConfig.
func (c PeakHistoryConfig) Validate() error {
	var errs []error
	if !(c.TargetFreq > 0) {
		errs = append(errs, fmt.Errorf("target_freq must be positive, got %v", c.TargetFreq))
	}
	if !(c.MatchThreshold >= 0) {
		errs = append(errs, fmt.Errorf("match_threshold must not be negative, got %v", c.MatchThreshold))
	}
	if c.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("history_window_size must be positive, got %d", c.WindowSize))
	}
	if !(c.MinMatchRatio >= 0 && c.MinMatchRatio <= 1) {
		errs = append(errs, fmt.Errorf("min_match_ratio must be between 0 and 1, got %v", c.MinMatchRatio))
	}
	if !(c.MinFrequency >= 0) {
		errs = append(errs, fmt.Errorf("min_frequency_cutoff must not be negative, got %v", c.MinFrequency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("peak detector: %w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// PeakHistory raises a detection once the dominant frequency of enough recent
// blocks falls within MatchThreshold of TargetFreq.
type PeakHistory struct {
	cfg         PeakHistoryConfig
	transformer *dsp.Transformer
	history     *buffer.Rolling
	now         func() time.Time
}

var _ Detector = (*PeakHistory)(nil)

// NewPeakHistory validates cfg and returns a detector with an empty history.
func NewPeakHistory(cfg PeakHistoryConfig) (*PeakHistory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	history, err := buffer.New(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	return &PeakHistory{
		cfg:         cfg,
		transformer: dsp.NewTransformer(cfg.Window),
		history:     history,
		now:         time.Now,
	}, nil
}

// Name implements Detector.
func (p *PeakHistory) Name() string {
	return StrategyPeak
}

// Config returns the detector's parameters.
func (p *PeakHistory) Config() PeakHistoryConfig {
	return p.cfg
}

// Observe finds the block's dominant frequency above the noise-floor cutoff,
// pushes it into the history and evaluates the match ratio.
func (p *PeakHistory) Observe(block []float64, sampleRate float64) (Status, error) {
	start := p.now()

	peak, err := p.PeakFrequency(block, sampleRate)
	if err != nil {
		return Status{}, fmt.Errorf("peak detector: %w", err)
	}

	p.history.AddSamples([]float64{peak})
	ratio := p.MatchRatio()
	full := p.history.IsFull()

	status := Status{
		Strategy:   StrategyPeak,
		State:      Scanning,
		Warming:    !full,
		PeakFreq:   peak,
		Confidence: ratio,
		Samples:    len(block),
	}
	if full && ratio >= p.cfg.MinMatchRatio {
		status.State = Detected
	}
	status.Latency = p.now().Sub(start)
	return status, nil
}

// PeakFrequency returns the frequency of the strongest bin at or above the
// cutoff. Bins below the cutoff are zeroed rather than skipped, so a block
// with no energy above it reports bin 0. Ties go to the lowest bin.
func (p *PeakHistory) PeakFrequency(block []float64, sampleRate float64) (float64, error) {
	spectrum, err := p.transformer.Transform(block, sampleRate)
	if err != nil {
		return 0, err
	}
	dsp.ZeroBelow(spectrum, p.cfg.MinFrequency)
	return spectrum.Frequencies[dsp.PeakBin(spectrum.Magnitudes)], nil
}

// MatchRatio returns the fraction of the current history within tolerance
// of the target, or 0 for an empty history.
func (p *PeakHistory) MatchRatio() float64 {
	history := p.history.Window()
	if len(history) == 0 {
		return 0
	}
	matches := 0
	for _, f := range history {
		if math.Abs(f-p.cfg.TargetFreq) <= p.cfg.MatchThreshold {
			matches++
		}
	}
	return float64(matches) / float64(len(history))
}

// History returns a copy of the recorded peak frequencies, oldest first.
func (p *PeakHistory) History() []float64 {
	return p.history.Window()
}

// Reset implements Detector.
func (p *PeakHistory) Reset() {
	p.history.Clear()
}

// SPDX-License-Identifier: MIT
package config

import (
	"fmt"

	"dronewatch/internal/detect"
	"dronewatch/internal/dsp"
)

// Strategy names accepted by the strategy setting.
const (
	StrategyPeak  = detect.StrategyPeak
	StrategySpike = detect.StrategySpike
)

// ChunkSize returns the number of samples per acquired block: chunk_size when
// set, otherwise sample_rate × chunk_duration truncated to whole samples.
func (c *Config) ChunkSize() int {
	if c.Audio.ChunkSize > 0 {
		return c.Audio.ChunkSize
	}
	return int(c.Audio.SampleRate * c.Audio.ChunkDuration)
}

// SpikeBufferSamples returns the rolling window capacity of the spike
// strategy.
func (c *Config) SpikeBufferSamples() int {
	return int(c.Audio.SampleRate * c.Spike.BufferWindowSeconds)
}

// PeakHistoryConfig resolves the peak-history detector parameters.
func (c *Config) PeakHistoryConfig() (detect.PeakHistoryConfig, error) {
	window, err := dsp.ParseWindowFunc(c.Detection.FFTWindow)
	if err != nil {
		return detect.PeakHistoryConfig{}, fmt.Errorf("detection.fft_window: %w", err)
	}
	cfg := detect.PeakHistoryConfig{
		TargetFreq:     c.Detection.TargetFreq,
		MatchThreshold: c.Detection.MatchThreshold,
		WindowSize:     c.Detection.HistoryWindowSize,
		MinMatchRatio:  c.Detection.MinMatchRatio,
		MinFrequency:   c.Detection.MinFrequencyCutoff,
		Window:         window,
	}
	return cfg, cfg.Validate()
}

// SpectralDiffConfig resolves the spectral-diff detector parameters.
func (c *Config) SpectralDiffConfig() (detect.SpectralDiffConfig, error) {
	window, err := dsp.ParseWindowFunc(c.Spike.FFTWindow)
	if err != nil {
		return detect.SpectralDiffConfig{}, fmt.Errorf("spike.fft_window: %w", err)
	}
	cfg := detect.SpectralDiffConfig{
		SampleRate:    c.Audio.SampleRate,
		RPMMin:        c.Spike.RPMMin,
		RPMMax:        c.Spike.RPMMax,
		Threshold:     c.Spike.SpikeThreshold,
		WindowSamples: c.SpikeBufferSamples(),
		Window:        window,
	}
	return cfg, cfg.Validate()
}

// NewDetector builds the detector selected by the strategy setting.
func (c *Config) NewDetector() (detect.Detector, error) {
	switch c.Strategy {
	case StrategyPeak:
		cfg, err := c.PeakHistoryConfig()
		if err != nil {
			return nil, err
		}
		return detect.NewPeakHistory(cfg)
	case StrategySpike:
		cfg, err := c.SpectralDiffConfig()
		if err != nil {
			return nil, err
		}
		return detect.NewSpectralDiff(cfg)
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", c.Strategy, ErrInvalidConfig)
	}
}

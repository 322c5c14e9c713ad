// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"dronewatch/internal/errs"
	applog "dronewatch/internal/log"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errs.ErrInvalidConfig

// configCandidates are searched, in order, when no path is given.
var configCandidates = []string{
	"dronewatch.yaml",
	"config.yaml",
}

// LoadConfig loads configuration from the YAML file at path over the built-in
// defaults. An empty path searches configCandidates and falls back to the
// defaults when none exist. Environment overrides are applied after the file
// and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range configCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports all violations at once, wrapped
// in ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		problems = append(problems, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.Strategy != StrategyPeak && c.Strategy != StrategySpike {
		problems = append(problems, fmt.Errorf("strategy must be %q or %q, got %q", StrategyPeak, StrategySpike, c.Strategy))
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		problems = append(problems, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		problems = append(problems, fmt.Errorf("audio.sample_rate must be between %d and %d Hz, got %v",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate))
	}
	if c.Audio.ChunkSize < 0 {
		problems = append(problems, fmt.Errorf("audio.chunk_size must not be negative, got %d", c.Audio.ChunkSize))
	}
	if c.Audio.ChunkSize == 0 && !(c.Audio.ChunkDuration > 0) {
		problems = append(problems, fmt.Errorf("audio.chunk_duration must be positive when chunk_size is unset, got %v", c.Audio.ChunkDuration))
	} else if c.ChunkSize() <= 0 {
		problems = append(problems, fmt.Errorf("audio chunk resolves to %d samples", c.ChunkSize()))
	}
	if c.Audio.QueueDepth < 1 {
		problems = append(problems, fmt.Errorf("audio.queue_depth must be at least 1, got %d", c.Audio.QueueDepth))
	}

	// Strategies. Both are validated so switching strategy on the command
	// line cannot surface a latent error mid-run.
	if _, err := c.PeakHistoryConfig(); err != nil {
		problems = append(problems, err)
	}
	if _, err := c.SpectralDiffConfig(); err != nil {
		problems = append(problems, err)
	}
	nyquist := c.Audio.SampleRate / 2
	if c.Detection.TargetFreq >= nyquist {
		problems = append(problems, fmt.Errorf("detection.target_freq (%v Hz) must be below Nyquist (%v Hz)", c.Detection.TargetFreq, nyquist))
	}
	if c.Spike.RPMMax/60 >= nyquist {
		problems = append(problems, fmt.Errorf("spike.rpm_max (%v RPM) must map below Nyquist (%v Hz)", c.Spike.RPMMax, nyquist))
	}
	if !(c.Spike.BufferWindowSeconds > 0) {
		problems = append(problems, fmt.Errorf("spike.buffer_window_seconds must be positive, got %v", c.Spike.BufferWindowSeconds))
	}

	// Report
	for name, v := range map[string]int{
		"report.freq_decimals": c.Report.FreqDecimals,
		"report.conf_decimals": c.Report.ConfDecimals,
		"report.time_decimals": c.Report.TimeDecimals,
	} {
		if v < 0 || v > MaxDecimals {
			problems = append(problems, fmt.Errorf("%s must be between 0 and %d, got %d", name, MaxDecimals, v))
		}
	}

	// Recording and transport
	if c.Recording.Enabled && strings.TrimSpace(c.Recording.OutputDir) == "" {
		problems = append(problems, errors.New("recording.output_dir must be set when recording is enabled"))
	}
	if c.Transport.HTTPEnabled && c.Transport.HTTPAddress == "" {
		problems = append(problems, errors.New("transport.http_address must be set when HTTP is enabled"))
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			problems = append(problems, errors.New("transport.udp_target_address must be set when UDP is enabled"))
		} else if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			problems = append(problems, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
	}
	if c.Transport.UDPSendInterval < 0 {
		problems = append(problems, fmt.Errorf("transport.udp_send_interval must not be negative, got %s", c.Transport.UDPSendInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}

// applyEnvOverrides applies DRONEWATCH_* environment variables on top of the
// file values. Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("DRONEWATCH_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}
	if val, ok := os.LookupEnv("DRONEWATCH_STRATEGY"); ok {
		c.Strategy = strings.ToLower(val)
		applog.Infof("Config: Overriding strategy from env: %s", val)
	}
	if val, ok := os.LookupEnv("DRONEWATCH_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = f
			applog.Infof("Config: Overriding audio.sample_rate from env: %v", f)
		} else {
			applog.Warnf("Config: Ignoring DRONEWATCH_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("DRONEWATCH_TARGET_FREQ"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Detection.TargetFreq = f
			applog.Infof("Config: Overriding detection.target_freq from env: %v", f)
		} else {
			applog.Warnf("Config: Ignoring DRONEWATCH_TARGET_FREQ=%q: %v", val, err)
		}
	}

	// DRONEWATCH_HTTP_{...} and DRONEWATCH_UDP_{...} are specific to the
	// transport layer.
	if val, ok := os.LookupEnv("DRONEWATCH_HTTP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.HTTPEnabled = b
			applog.Infof("Config: Overriding transport.http_enabled from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("DRONEWATCH_HTTP_ADDRESS"); ok {
		c.Transport.HTTPAddress = val
		applog.Infof("Config: Overriding transport.http_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("DRONEWATCH_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("DRONEWATCH_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
}

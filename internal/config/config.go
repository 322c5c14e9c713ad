// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for a single-microphone drone monitor. The detection
// defaults are tuned for a small quadcopter with its dominant tone near
// 265 Hz.
const (
	DefaultLogLevel = "info"
	DefaultStrategy = "peak" // peak | spike

	// Audio acquisition
	DefaultDeviceID      = MinDeviceID // System default input
	DefaultSampleRate    = 48000       // Hz
	DefaultChunkDuration = 0.5         // Seconds per block
	DefaultChunkSize     = 0           // Samples per block, 0 derives from duration
	DefaultQueueDepth    = 4           // Blocks buffered between capture and loop
	DefaultLowLatency    = false

	// Peak-history strategy
	DefaultTargetFreq         = 265.0 // Hz
	DefaultMatchThreshold     = 15.0  // Hz either side of the target
	DefaultHistoryWindowSize  = 10    // Blocks, 5 s at the default chunk
	DefaultMinMatchRatio      = 0.6
	DefaultMinFrequencyCutoff = 150.0 // Hz noise floor
	DefaultPeakWindow         = "hann"

	// Spectral-diff strategy
	DefaultRPMMin              = 4000.0
	DefaultRPMMax              = 12000.0
	DefaultSpikeThreshold      = 1000.0 // int16-scale magnitude units
	DefaultBufferWindowSeconds = 1.0
	DefaultSpikeWindow         = "rectangular"

	// Status line formatting
	DefaultFreqDecimals = 2
	DefaultConfDecimals = 0
	DefaultTimeDecimals = 5

	// Recording and transport
	DefaultRecordingDir     = "./recordings"
	DefaultHTTPAddress      = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 0 // Send every status

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxDecimals   = 10
)

// Config is the resolved parameter record. It is built once before the
// detection loop starts and never mutated while it runs.
type Config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	Strategy string `yaml:"strategy"`  // peak or spike

	Audio     AudioConfig     `yaml:"audio"`
	Detection DetectionConfig `yaml:"detection"`
	Spike     SpikeConfig     `yaml:"spike"`
	Report    ReportConfig    `yaml:"report"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds acquisition settings.
type AudioConfig struct {
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index (-1 for default)
	SampleRate    float64 `yaml:"sample_rate"`    // Hz
	ChunkDuration float64 `yaml:"chunk_duration"` // Seconds per block
	ChunkSize     int     `yaml:"chunk_size"`     // Samples per block, overrides duration when > 0
	QueueDepth    int     `yaml:"queue_depth"`    // Capacity of the capture-to-loop queue
	LowLatency    bool    `yaml:"low_latency"`    // Request the device's low input latency
}

// DetectionConfig holds the peak-history strategy parameters.
type DetectionConfig struct {
	TargetFreq         float64 `yaml:"target_freq"`          // Hz
	MatchThreshold     float64 `yaml:"match_threshold"`      // Hz tolerance
	HistoryWindowSize  int     `yaml:"history_window_size"`  // Blocks
	MinMatchRatio      float64 `yaml:"min_match_ratio"`      // 0..1
	MinFrequencyCutoff float64 `yaml:"min_frequency_cutoff"` // Hz
	FFTWindow          string  `yaml:"fft_window"`           // Window function name
}

// SpikeConfig holds the spectral-diff strategy parameters.
type SpikeConfig struct {
	RPMMin              float64 `yaml:"rpm_min"`
	RPMMax              float64 `yaml:"rpm_max"`
	SpikeThreshold      float64 `yaml:"spike_threshold"`       // Magnitude units
	BufferWindowSeconds float64 `yaml:"buffer_window_seconds"` // Rolling window length
	FFTWindow           string  `yaml:"fft_window"`            // Window function name
}

// ReportConfig controls the console status line.
type ReportConfig struct {
	FreqDecimals int  `yaml:"freq_decimals"`
	ConfDecimals int  `yaml:"conf_decimals"`
	TimeDecimals int  `yaml:"time_decimals"`
	TUI          bool `yaml:"tui"` // Render a live dashboard instead of status lines
}

// RecordingConfig holds settings for recording the captured blocks.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// TransportConfig holds settings for publishing status records.
type TransportConfig struct {
	HTTPEnabled      bool          `yaml:"http_enabled"`       // Serve /ws, /metrics, /status
	HTTPAddress      string        `yaml:"http_address"`       // Listen address, e.g. ":8080"
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary status packets
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Minimum gap between packets, 0 sends all
}

// NewConfig returns a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Strategy: DefaultStrategy,
		Audio: AudioConfig{
			InputDevice:   DefaultDeviceID,
			SampleRate:    DefaultSampleRate,
			ChunkDuration: DefaultChunkDuration,
			ChunkSize:     DefaultChunkSize,
			QueueDepth:    DefaultQueueDepth,
			LowLatency:    DefaultLowLatency,
		},
		Detection: DetectionConfig{
			TargetFreq:         DefaultTargetFreq,
			MatchThreshold:     DefaultMatchThreshold,
			HistoryWindowSize:  DefaultHistoryWindowSize,
			MinMatchRatio:      DefaultMinMatchRatio,
			MinFrequencyCutoff: DefaultMinFrequencyCutoff,
			FFTWindow:          DefaultPeakWindow,
		},
		Spike: SpikeConfig{
			RPMMin:              DefaultRPMMin,
			RPMMax:              DefaultRPMMax,
			SpikeThreshold:      DefaultSpikeThreshold,
			BufferWindowSeconds: DefaultBufferWindowSeconds,
			FFTWindow:           DefaultSpikeWindow,
		},
		Report: ReportConfig{
			FreqDecimals: DefaultFreqDecimals,
			ConfDecimals: DefaultConfDecimals,
			TimeDecimals: DefaultTimeDecimals,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
		},
		Transport: TransportConfig{
			HTTPAddress:      DefaultHTTPAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// SPDX-License-Identifier: MIT

// Package cmd implements the dronewatch command line.
package cmd

import (
	"context"
	"fmt"

	"dronewatch/internal/config"
	"dronewatch/internal/log"
	"dronewatch/pkg/build"

	"github.com/spf13/cobra"
)

// options holds flag values. A flag only overrides the configuration file
// when it was set on the command line.
type options struct {
	configPath     string
	logLevel       string
	strategy       string
	sampleRate     float64
	chunkSize      int
	chunkDuration  float64
	targetFreq     float64
	spikeThreshold float64
	http           bool
	httpAddress    string
	udp            bool
	udpTarget      string
	tui            bool
	maxBlocks      uint64

	// run
	device     int
	lowLatency bool
	record     bool
	outputDir  string

	// replay
	realtime bool

	// simulate
	synth synthOptions
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (default: ./dronewatch.yaml or ./config.yaml if present)")
	pf.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn or error")
	pf.StringVarP(&opts.strategy, "strategy", "S", config.DefaultStrategy,
		"Detection strategy: peak or spike")
	pf.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&opts.chunkSize, "chunk-size", "b", config.DefaultChunkSize,
		"Samples per block; 0 derives the size from --chunk-duration")
	pf.Float64Var(&opts.chunkDuration, "chunk-duration", config.DefaultChunkDuration,
		"Seconds of audio per block")
	pf.Float64VarP(&opts.targetFreq, "target-freq", "f", config.DefaultTargetFreq,
		"Target drone frequency in Hz (peak strategy)")
	pf.Float64Var(&opts.spikeThreshold, "spike-threshold", config.DefaultSpikeThreshold,
		"Band magnitude jump that counts as a spike (spike strategy)")
	pf.BoolVar(&opts.http, "http", false,
		"Serve /ws, /status, /health and /metrics")
	pf.StringVar(&opts.httpAddress, "http-address", config.DefaultHTTPAddress,
		"Listen address of the status server")
	pf.BoolVar(&opts.udp, "udp", false,
		"Publish binary status packets over UDP")
	pf.StringVar(&opts.udpTarget, "udp-target", config.DefaultUDPTargetAddress,
		"UDP destination host:port")
	pf.BoolVar(&opts.tui, "tui", false,
		"Show a live dashboard instead of status lines")
	pf.Uint64VarP(&opts.maxBlocks, "max-blocks", "n", 0,
		"Stop after this many blocks; 0 runs until the source ends or Ctrl-C")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newReplayCmd(opts),
		newSimulateCmd(opts),
		newDevicesCmd(opts),
	)
	return rootCmd
}

// Execute runs the command line. ctx is cancelled on SIGINT or SIGTERM.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves file, environment and flag settings, in that order,
// and applies the log level.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("strategy") {
		cfg.Strategy = opts.strategy
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if changed("chunk-size") {
		cfg.Audio.ChunkSize = opts.chunkSize
	}
	if changed("chunk-duration") {
		cfg.Audio.ChunkDuration = opts.chunkDuration
	}
	if changed("target-freq") {
		cfg.Detection.TargetFreq = opts.targetFreq
	}
	if changed("spike-threshold") {
		cfg.Spike.SpikeThreshold = opts.spikeThreshold
	}
	if changed("http") {
		cfg.Transport.HTTPEnabled = opts.http
	}
	if changed("http-address") {
		cfg.Transport.HTTPAddress = opts.httpAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = opts.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDPTargetAddress = opts.udpTarget
	}
	if changed("tui") {
		cfg.Report.TUI = opts.tui
	}
	if changed("device") {
		cfg.Audio.InputDevice = opts.device
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if changed("record") {
		cfg.Recording.Enabled = opts.record
	}
	if changed("output-dir") {
		cfg.Recording.OutputDir = opts.outputDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := log.Configure(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return cfg, nil
}

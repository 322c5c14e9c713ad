// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"dronewatch/internal/audio"
	"dronewatch/internal/engine"
	"dronewatch/internal/log"
	"dronewatch/internal/source"
	"dronewatch/internal/tui"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Detect drones from a live input device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			capture, err := audio.NewCapture(audio.CaptureConfig{
				DeviceID:   cfg.Audio.InputDevice,
				SampleRate: cfg.Audio.SampleRate,
				BlockSize:  cfg.ChunkSize(),
				LowLatency: cfg.Audio.LowLatency,
			})
			if err != nil {
				return err
			}

			var src engine.Source = capture
			if cfg.Recording.Enabled {
				path := filepath.Join(cfg.Recording.OutputDir, audio.RecordingFilename(time.Now()))
				rec, err := audio.NewRecorder(path, capture.SampleRate())
				if err != nil {
					capture.Close()
					return err
				}
				src = audio.Tee(capture, rec)
				defer fmt.Fprintf(cmd.ErrOrStderr(), "Recording saved to: %s\n", path)
			}

			pump, err := engine.StartPump(cmd.Context(), src, cfg.Audio.QueueDepth)
			if err != nil {
				src.Close()
				return err
			}
			defer func() {
				err = errors.Join(err, pump.Close())
			}()

			s := &session{
				cfg:       cfg,
				source:    pump,
				label:     capture.DeviceName(),
				maxBlocks: opts.maxBlocks,
				out:       cmd.OutOrStdout(),
			}
			return s.run(cmd.Context())
		},
	}

	f := runCmd.Flags()
	f.IntVarP(&opts.device, "device", "d", audio.DefaultDeviceID,
		"Input device ID. Use the 'devices' command to see available devices.")
	f.BoolVarP(&opts.lowLatency, "low-latency", "l", false,
		"Use the device's low input latency")
	f.BoolVarP(&opts.record, "record", "r", false,
		"Record the captured audio to a WAV file")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "./recordings",
		"Directory for recordings (recording-DD-MM-YYYY-HHMMSS.wav)")
	return runCmd
}

func newReplayCmd(opts *options) *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Run the detector over a recorded WAV, AIFF, MP3 or Ogg Vorbis file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			path := args[0]
			reg := source.DefaultRegistry()

			var fileOpts []source.FileOption
			if opts.realtime {
				fileOpts = append(fileOpts, source.WithPacing())
			}

			file, err := source.Open(reg, path, cfg.ChunkSize(), fileOpts...)
			if err != nil {
				return err
			}
			// The file's own rate wins over the configured one; block
			// geometry follows it.
			if rate := file.SampleRate(); rate != cfg.Audio.SampleRate {
				file.Close()
				log.Infof("Replay: Using the file sample rate %.0f Hz", rate)
				cfg.Audio.SampleRate = rate
				if err := cfg.Validate(); err != nil {
					return err
				}
				if file, err = source.Open(reg, path, cfg.ChunkSize(), fileOpts...); err != nil {
					return err
				}
			}
			defer func() {
				err = errors.Join(err, file.Close())
			}()

			s := &session{
				cfg:       cfg,
				source:    file,
				label:     filepath.Base(path),
				maxBlocks: opts.maxBlocks,
				out:       cmd.OutOrStdout(),
			}
			if err := s.run(cmd.Context()); err != nil {
				return err
			}
			log.Infof("Replay: %d blocks read from %s", file.Blocks(), path)
			return nil
		},
	}
	replayCmd.Flags().BoolVar(&opts.realtime, "realtime", false,
		"Deliver blocks no faster than real time")
	return replayCmd
}

// synthOptions configures the simulate command.
type synthOptions struct {
	tone      float64
	amplitude float64
	harmonics int
	noise     float64
	seed      uint64
	onBlock   int
	offBlock  int
	blocks    int
}

func newSimulateCmd(opts *options) *cobra.Command {
	so := &opts.synth
	simCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the detector over a synthetic drone tone",
		Long: "Generates a tone with optional harmonics over deterministic noise and feeds it\n" +
			"to the configured detector. Useful to check thresholds without a microphone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			tone := so.tone
			if !cmd.Flags().Changed("tone") {
				tone = cfg.Detection.TargetFreq
			}

			synth, err := source.NewSynth(source.SynthConfig{
				SampleRate: cfg.Audio.SampleRate,
				BlockSize:  cfg.ChunkSize(),
				ToneFreq:   tone,
				Amplitude:  so.amplitude,
				Harmonics:  so.harmonics,
				Noise:      so.noise,
				Seed:       so.seed,
				OnBlock:    so.onBlock,
				OffBlock:   so.offBlock,
				Blocks:     so.blocks,
			})
			if err != nil {
				return err
			}
			defer synth.Close()

			s := &session{
				cfg:       cfg,
				source:    synth,
				label:     fmt.Sprintf("synthetic %.0f Hz", tone),
				maxBlocks: opts.maxBlocks,
				out:       cmd.OutOrStdout(),
			}
			return s.run(cmd.Context())
		},
	}

	f := simCmd.Flags()
	f.Float64Var(&so.tone, "tone", 0, "Tone frequency in Hz (default: the target frequency)")
	f.Float64Var(&so.amplitude, "amplitude", 8000, "Tone peak in int16 units")
	f.IntVar(&so.harmonics, "harmonics", 0, "Extra harmonics at 1/k amplitude")
	f.Float64Var(&so.noise, "noise", 500, "Noise peak in int16 units")
	f.Uint64Var(&so.seed, "seed", 1, "Noise seed")
	f.IntVar(&so.onBlock, "on-block", 0, "First block carrying the tone")
	f.IntVar(&so.offBlock, "off-block", 0, "First block without the tone again (0: never)")
	f.IntVar(&so.blocks, "blocks", 40, "Blocks to generate (0: endless)")
	return simCmd
}

func newDevicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices (--tui to pick one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !opts.tui {
				return audio.ListDevices(cmd.OutOrStdout())
			}
			sel, ok, err := tui.PickDevice(audio.InputDevices)
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected [%d] %s at %.0f Hz\n\n  %s run --device %d --sample-rate %.0f\n",
				sel.Device.ID, sel.Device.Name, sel.SampleRate,
				cmd.Root().Name(), sel.Device.ID, sel.SampleRate)
			return nil
		},
	}
}

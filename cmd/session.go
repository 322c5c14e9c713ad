// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dronewatch/internal/config"
	"dronewatch/internal/engine"
	"dronewatch/internal/log"
	"dronewatch/internal/metrics"
	"dronewatch/internal/server"
	"dronewatch/internal/transport"
	"dronewatch/internal/transport/udp"
	"dronewatch/internal/tui"
	"dronewatch/pkg/build"

	"github.com/mattn/go-isatty"
)

const shutdownTimeout = 5 * time.Second

// session wires one detector, the configured transports and the optional
// status server around a source and runs the loop to completion.
type session struct {
	cfg       *config.Config
	source    engine.Source
	label     string
	maxBlocks uint64
	out       io.Writer
}

// run blocks until the source ends, the block budget is spent, the user
// quits the dashboard or ctx is cancelled. It does not close the source.
func (s *session) run(ctx context.Context) (err error) {
	cfg := s.cfg
	detector, err := cfg.NewDetector()
	if err != nil {
		return err
	}

	stop := engine.NewStopFlag()
	release := context.AfterFunc(ctx, stop.Stop)
	defer release()

	latest := transport.NewLatest()
	sinks := transport.NewFanOut(latest)
	defer func() {
		err = errors.Join(err, sinks.Close())
	}()

	if cfg.Report.TUI {
		restore, logErr := logToFile()
		if logErr != nil {
			return logErr
		}
		defer restore()
		sinks.Add(tui.StartDashboard(tui.DashboardInfo{
			Strategy:   cfg.Strategy,
			SampleRate: s.source.SampleRate(),
			TargetFreq: cfg.Detection.TargetFreq,
			Threshold:  cfg.Spike.SpikeThreshold,
			Source:     s.label,
		}, stop.Stop))
	} else {
		console := transport.NewConsole(s.out, transport.Decimals{
			Freq: cfg.Report.FreqDecimals,
			Conf: cfg.Report.ConfDecimals,
			Time: cfg.Report.TimeDecimals,
		}, isTerminal(s.out))
		if err := console.Banner(cfg.Strategy, s.source.SampleRate()); err != nil {
			return err
		}
		sinks.Add(console)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			return err
		}
		sinks.Add(publisher)
	}

	m := metrics.New()
	if cfg.Transport.HTTPEnabled {
		hub := transport.NewWebSocketHub()
		sinks.Add(hub)
		srv := server.New(server.Options{
			Address:   cfg.Transport.HTTPAddress,
			Version:   build.GetBuildFlags().Version,
			WebSocket: hub,
			Metrics:   m.Handler(),
			Status:    latest,
			Observer:  m,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			hub.Close()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Warnf("Server: %v", shutdownErr)
			}
		}()
	}

	loop, err := engine.NewLoop(s.source, detector, sinks,
		engine.WithStopFlag(stop),
		engine.WithRecorder(m),
		engine.WithMaxIterations(s.maxBlocks),
	)
	if err != nil {
		return err
	}
	if err := loop.Run(ctx); err != nil {
		return err
	}
	log.Infof("Session: %d blocks, %d detections", loop.Iterations(), latest.Detections())
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// logToFile moves log output off the terminal while the dashboard owns it.
func logToFile() (restore func(), err error) {
	path := filepath.Join(os.TempDir(), build.GetBuildFlags().Name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
		log.Infof("Session: Dashboard log written to %s", path)
	}, nil
}

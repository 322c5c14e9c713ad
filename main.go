// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dronewatch/cmd"
	"dronewatch/internal/errs"
	"dronewatch/internal/log"
	"dronewatch/internal/recovery"
	"dronewatch/pkg/build"
)

// Exit codes.
const (
	exitFailure       = 1
	exitInvalidConfig = 2
)

// main runs in three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Install signal handling
//   - Parse command line arguments and load configuration
//
// 2. Concurrent Phase (Hot Path):
//   - Capture (or decode, or synthesise) blocks
//   - Run the detection loop and publish every status
//
// 3. Shutdown Phase (Cold Path):
//   - SIGINT or SIGTERM sets the stop flag
//   - The loop finishes its iteration, transports and server close
//   - Recording is finalised and PortAudio terminated
func main() {
	defer recovery.HandlePanic()

	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags and run with default metadata.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============ CONCURRENT AND SHUTDOWN PHASES (in the command) ============

	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	if err == nil {
		return
	}

	if errors.Is(err, errs.ErrInvalidConfig) {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitInvalidConfig)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFailure)
}

// SPDX-License-Identifier: MIT

// Package recovery captures panics at goroutine and iteration boundaries.
package recovery

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
)

// ErrPanic is wrapped by the error Guard returns for a recovered panic.
var ErrPanic = errors.New("recovered panic")

// exit is replaced in tests.
var (
	osExit = os.Exit
	exit   = osExit
)

// HandlePanic should be deferred at the top of main() or goroutines.
// It writes the panic and stack trace to stderr and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		exit(1)
	}
}

// HandlePanicFunc behaves like HandlePanic but runs cleanup before exiting.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

// Guard runs fn and converts a panic into an error wrapping ErrPanic, so a
// single bad iteration cannot take the loop down with it.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()
	return fn()
}

// SPDX-License-Identifier: MIT
package engine

import "sync/atomic"

// StopFlag is a cancellation signal polled by the loop. Stop may be called
// any number of times from any goroutine.
type StopFlag struct {
	stopped atomic.Bool
}

// NewStopFlag returns an unset flag.
func NewStopFlag() *StopFlag {
	return &StopFlag{}
}

// Stop sets the flag.
func (f *StopFlag) Stop() {
	f.stopped.Store(true)
}

// Stopped reports whether Stop has been called. It never blocks.
func (f *StopFlag) Stopped() bool {
	return f.stopped.Load()
}

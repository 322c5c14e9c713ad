// SPDX-License-Identifier: MIT

/*
Package engine drives a detector over a stream of sample blocks.

The loop is single-threaded and cooperative:
  - the stop flag and context are polled, never waited on, at the top of
    every iteration
  - acquisition failures are retried once and then skipped
  - detector errors and panics abort only the current iteration

Acquisition may run on its own goroutine through a Pump, which feeds the loop
over a bounded channel and blocks the producer when the loop falls behind.
*/
package engine

import (
	"context"

	"dronewatch/internal/detect"
	"dronewatch/internal/errs"
)

// ErrAcquisition is wrapped by sources that failed to produce a block.
var ErrAcquisition = errs.ErrAcquisition

// Source yields mono sample blocks at a fixed sample rate. ReadBlock returns
// io.EOF once a finite source is exhausted.
type Source interface {
	ReadBlock(ctx context.Context) ([]float64, error)
	SampleRate() float64
	Close() error
}

// Sink receives one status record per completed iteration.
type Sink interface {
	Report(status detect.Status) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(status detect.Status) error

// Report implements Sink.
func (f SinkFunc) Report(status detect.Status) error {
	return f(status)
}

// SkipReason labels an iteration that produced no status.
type SkipReason string

const (
	SkipAcquisition  SkipReason = "acquisition"
	SkipInvalidInput SkipReason = "invalid_input"
	SkipDetector     SkipReason = "detector"
	SkipPanic        SkipReason = "panic"
)

// Recorder receives loop telemetry. Calls happen on the loop goroutine and
// must not block.
type Recorder interface {
	BlockProcessed(status detect.Status)
	IterationSkipped(reason SkipReason)
	SinkFailed()
	QueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) BlockProcessed(detect.Status) {}
func (nopRecorder) IterationSkipped(SkipReason)  {}
func (nopRecorder) SinkFailed()                  {}
func (nopRecorder) QueueDepth(int)               {}

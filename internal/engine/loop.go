// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/errs"
	"dronewatch/internal/log"
	"dronewatch/internal/recovery"
)

// LoopState is the lifecycle position of a Loop.
type LoopState int32

const (
	Idle LoopState = iota
	Running
	Stopping
	Stopped
)

func (s LoopState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ErrAlreadyStarted is returned by Run on a loop that has already run.
var ErrAlreadyStarted = errors.New("loop already started")

const defaultRetryDelay = 50 * time.Millisecond

// Loop feeds blocks from a Source to a Detector and reports each result to
// a Sink.
type Loop struct {
	source   Source
	detector detect.Detector
	sink     Sink
	stop     *StopFlag
	recorder Recorder
	now      func() time.Time

	maxIterations uint64
	retryDelay    time.Duration

	state      atomic.Int32
	iterations atomic.Uint64
	sequence   uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithStopFlag shares an externally owned stop flag with the loop.
func WithStopFlag(f *StopFlag) Option {
	return func(l *Loop) { l.stop = f }
}

// WithMaxIterations stops the loop after n iterations. Zero means no budget.
func WithMaxIterations(n uint64) Option {
	return func(l *Loop) { l.maxIterations = n }
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithRetryDelay sets the pause before retrying a failed acquisition.
func WithRetryDelay(d time.Duration) Option {
	return func(l *Loop) { l.retryDelay = d }
}

// WithClock replaces time.Now for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// NewLoop wires a source, detector and sink into a loop.
func NewLoop(source Source, detector detect.Detector, sink Sink, opts ...Option) (*Loop, error) {
	if source == nil || detector == nil || sink == nil {
		return nil, fmt.Errorf("engine: source, detector and sink are required: %w", errs.ErrInvalidConfig)
	}
	if !(source.SampleRate() > 0) {
		return nil, fmt.Errorf("engine: source sample rate %v: %w", source.SampleRate(), errs.ErrInvalidConfig)
	}

	l := &Loop{
		source:     source,
		detector:   detector,
		sink:       sink,
		stop:       NewStopFlag(),
		recorder:   nopRecorder{},
		now:        time.Now,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State returns the current lifecycle state. Safe from any goroutine.
func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

// Iterations returns the number of iterations started so far.
func (l *Loop) Iterations() uint64 {
	return l.iterations.Load()
}

// Stop requests a cooperative stop at the next iteration boundary.
func (l *Loop) Stop() {
	l.stop.Stop()
}

// Run drives the loop until the stop flag is set, ctx is cancelled, the
// iteration budget is spent or the source reports io.EOF. None of these is
// an error. Run does not close the source.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}
	defer l.state.Store(int32(Stopped))

	rate := l.source.SampleRate()
	log.Infof("Engine: Running %s detector at %.0f Hz", l.detector.Name(), rate)

	reason := "stop requested"
	for {
		if why, done := l.shouldStop(ctx); done {
			reason = why
			break
		}
		l.iterations.Add(1)

		if err := l.iterate(ctx, rate); err != nil {
			if errors.Is(err, io.EOF) {
				reason = "source exhausted"
				break
			}
			if ctx.Err() != nil {
				reason = "context cancelled"
				break
			}
		}
	}

	l.state.Store(int32(Stopping))
	log.Infof("Engine: Stopping after %d iterations (%s)", l.Iterations(), reason)
	return nil
}

// shouldStop polls every stop condition without blocking.
func (l *Loop) shouldStop(ctx context.Context) (string, bool) {
	switch {
	case l.stop.Stopped():
		return "stop requested", true
	case ctx.Err() != nil:
		return "context cancelled", true
	case l.maxIterations > 0 && l.iterations.Load() >= l.maxIterations:
		return "iteration budget spent", true
	}
	return "", false
}

// iterate runs one acquire, observe and report cycle. Only io.EOF and
// context errors are returned; everything else is logged and skipped.
func (l *Loop) iterate(ctx context.Context, rate float64) error {
	block, err := l.acquire(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return err
		}
		log.Warnf("Engine: Skipping iteration %d: %v", l.Iterations(), err)
		l.recorder.IterationSkipped(SkipAcquisition)
		return nil
	}
	if q, ok := l.source.(interface{ Len() int }); ok {
		l.recorder.QueueDepth(q.Len())
	}

	var status detect.Status
	err = recovery.Guard(func() error {
		var observeErr error
		status, observeErr = l.detector.Observe(block, rate)
		return observeErr
	})
	switch {
	case err == nil:
	case errors.Is(err, recovery.ErrPanic):
		log.Errorf("Engine: Detector panicked on iteration %d: %v", l.Iterations(), err)
		l.recorder.IterationSkipped(SkipPanic)
		return nil
	case errors.Is(err, errs.ErrInvalidInput):
		log.Warnf("Engine: Rejected block on iteration %d: %v", l.Iterations(), err)
		l.recorder.IterationSkipped(SkipInvalidInput)
		return nil
	default:
		log.Errorf("Engine: Detector failed on iteration %d: %v", l.Iterations(), err)
		l.recorder.IterationSkipped(SkipDetector)
		return nil
	}

	l.sequence++
	status.Sequence = l.sequence
	status.Timestamp = l.now()
	l.recorder.BlockProcessed(status)

	if err := l.report(status); err != nil {
		log.Warnf("Engine: Sink failed for status %d: %v", status.Sequence, err)
		l.recorder.SinkFailed()
	}
	return nil
}

// acquire reads one block, retrying once after retryDelay on failure.
func (l *Loop) acquire(ctx context.Context) ([]float64, error) {
	block, err := l.read(ctx)
	if err == nil || errors.Is(err, io.EOF) || ctx.Err() != nil {
		return block, err
	}
	log.Debugf("Engine: Acquisition failed, retrying: %v", err)

	if l.retryDelay > 0 {
		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if l.stop.Stopped() {
		return nil, err
	}
	return l.read(ctx)
}

// read calls the source and turns a panic into an acquisition error.
func (l *Loop) read(ctx context.Context) (block []float64, err error) {
	err = recovery.Guard(func() error {
		var readErr error
		block, readErr = l.source.ReadBlock(ctx)
		return readErr
	})
	if errors.Is(err, recovery.ErrPanic) {
		err = fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return block, err
}

func (l *Loop) report(status detect.Status) error {
	return recovery.Guard(func() error {
		return l.sink.Report(status)
	})
}

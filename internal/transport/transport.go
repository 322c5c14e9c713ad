// SPDX-License-Identifier: MIT

// Package transport delivers detection status records to consumers: the
// console, WebSocket clients and UDP listeners.
package transport

import (
	"errors"
	"sync"

	"dronewatch/internal/detect"
)

// Transport is a closable status sink. Implementations are safe for use by
// the loop goroutine while other goroutines read their state.
type Transport interface {
	Report(status detect.Status) error
	Close() error
}

// FanOut reports each status to every transport in order.
type FanOut struct {
	transports []Transport
}

// NewFanOut skips nil transports.
func NewFanOut(transports ...Transport) *FanOut {
	f := &FanOut{}
	for _, t := range transports {
		if t != nil {
			f.transports = append(f.transports, t)
		}
	}
	return f
}

// Add appends t.
func (f *FanOut) Add(t Transport) {
	f.transports = append(f.transports, t)
}

// Len returns the number of transports.
func (f *FanOut) Len() int {
	return len(f.transports)
}

// Report delivers status to all transports even when some fail and returns
// the joined errors.
func (f *FanOut) Report(status detect.Status) error {
	var errs []error
	for _, t := range f.transports {
		if err := t.Report(status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport in reverse order.
func (f *FanOut) Close() error {
	var errs []error
	for i := len(f.transports) - 1; i >= 0; i-- {
		if err := f.transports[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest keeps the most recent status and simple counters for polling
// readers such as the /status endpoint.
type Latest struct {
	mu         sync.RWMutex
	status     detect.Status
	have       bool
	detections uint64
}

// NewLatest returns an empty Latest.
func NewLatest() *Latest {
	return &Latest{}
}

// Report implements Transport.
func (l *Latest) Report(status detect.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = status
	l.have = true
	if status.Detected() {
		l.detections++
	}
	return nil
}

// Get returns the last status and whether one has been reported.
func (l *Latest) Get() (detect.Status, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status, l.have
}

// Detections returns the number of DETECTED statuses seen.
func (l *Latest) Detections() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.detections
}

// Close implements Transport.
func (l *Latest) Close() error {
	return nil
}

// Ensure the sinks satisfy the interface at compile time.
var (
	_ Transport = (*FanOut)(nil)
	_ Transport = (*Latest)(nil)
)

// SPDX-License-Identifier: MIT

/*
Package buffer implements the fixed-capacity rolling sample store that backs
the analysis window.

Samples are kept in a ring so that appending a block is O(len(block)) with no
shifting; once the ring is full the oldest samples are overwritten first.
Reads always return fresh copies in insertion order, so callers can hold on to
a window while the ring keeps moving.

A Rolling buffer is owned by the detection loop and is not safe for
concurrent use.
*/
package buffer

import (
	"fmt"

	"dronewatch/internal/errs"
)

// Rolling is a bounded FIFO of samples with one optional "previous window"
// snapshot used for window-to-window comparison.
type Rolling struct {
	data     []float64 // ring storage, len == capacity
	start    int       // index of the oldest sample
	length   int       // number of valid samples
	previous []float64 // snapshot from StorePreviousWindow, nil when absent
}

// New creates a rolling buffer holding at most capacity samples.
func New(capacity int) (*Rolling, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer: capacity must be positive, got %d: %w", capacity, errs.ErrInvalidConfig)
	}
	return &Rolling{data: make([]float64, capacity)}, nil
}

// Cap returns the configured capacity.
func (r *Rolling) Cap() int {
	return len(r.data)
}

// Len returns the number of samples currently held.
func (r *Rolling) Len() int {
	return r.length
}

// IsFull reports whether the buffer holds exactly Cap samples. It stays true
// after further additions since eviction keeps the length at capacity.
func (r *Rolling) IsFull() bool {
	return r.length == len(r.data)
}

// AddSamples appends block in order, evicting the oldest samples once the
// buffer is at capacity.
func (r *Rolling) AddSamples(block []float64) {
	capacity := len(r.data)

	// Only the newest capacity samples of an oversized block can survive.
	if len(block) >= capacity {
		copy(r.data, block[len(block)-capacity:])
		r.start = 0
		r.length = capacity
		return
	}

	for _, s := range block {
		end := (r.start + r.length) % capacity
		r.data[end] = s
		if r.length < capacity {
			r.length++
		} else {
			r.start = (r.start + 1) % capacity
		}
	}
}

// Window returns a copy of the current contents, oldest first. An empty
// buffer yields an empty, non-nil slice.
func (r *Rolling) Window() []float64 {
	out := make([]float64, r.length)
	n := copy(out, r.data[r.start:min(r.start+r.length, len(r.data))])
	copy(out[n:], r.data[:r.length-n])
	return out
}

// StorePreviousWindow snapshots the current window, replacing any earlier
// snapshot.
func (r *Rolling) StorePreviousWindow() {
	r.previous = r.Window()
}

// PreviousWindow returns a copy of the last snapshot. The boolean is false
// when nothing has been stored since creation or the last Clear.
func (r *Rolling) PreviousWindow() ([]float64, bool) {
	if r.previous == nil {
		return nil, false
	}
	out := make([]float64, len(r.previous))
	copy(out, r.previous)
	return out, true
}

// Clear empties the buffer and drops the previous-window snapshot.
func (r *Rolling) Clear() {
	r.start = 0
	r.length = 0
	r.previous = nil
	clear(r.data)
}

// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"dronewatch/internal/errs"
	"dronewatch/internal/log"
	"dronewatch/internal/recovery"
)

type pumped struct {
	block []float64
	err   error
}

// Pump reads a Source on its own goroutine and hands blocks to the loop over
// a bounded channel. A full channel blocks the producer; blocks are never
// dropped. Pump itself implements Source.
type Pump struct {
	source Source
	blocks chan pumped
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// StartPump starts reading source into a queue of depth blocks. The
// producer stops when ctx is cancelled, Close is called or the source
// returns io.EOF.
func StartPump(ctx context.Context, source Source, depth int) (*Pump, error) {
	if depth < 1 {
		return nil, fmt.Errorf("engine: pump depth must be at least 1, got %d: %w", depth, errs.ErrInvalidConfig)
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pump{
		source: source,
		blocks: make(chan pumped, depth),
		cancel: cancel,
	}
	p.wg.Add(1)
	go p.produce(ctx)
	return p, nil
}

func (p *Pump) produce(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.blocks)

	for ctx.Err() == nil {
		var block []float64
		err := recovery.Guard(func() error {
			var readErr error
			block, readErr = p.source.ReadBlock(ctx)
			return readErr
		})
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, recovery.ErrPanic) {
			log.Errorf("Capture: Source panicked: %v", err)
			err = fmt.Errorf("%w: %w", ErrAcquisition, err)
		}

		select {
		case p.blocks <- pumped{block: block, err: err}:
		case <-ctx.Done():
			return
		}
		if errors.Is(err, io.EOF) {
			return
		}
	}
}

// ReadBlock implements Source. It returns io.EOF once the producer has
// finished and the queue is drained.
func (p *Pump) ReadBlock(ctx context.Context) ([]float64, error) {
	select {
	case item, ok := <-p.blocks:
		if !ok {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return item.block, item.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SampleRate implements Source.
func (p *Pump) SampleRate() float64 {
	return p.source.SampleRate()
}

// Len returns the number of queued blocks.
func (p *Pump) Len() int {
	return len(p.blocks)
}

// Cap returns the queue depth.
func (p *Pump) Cap() int {
	return cap(p.blocks)
}

// Close stops the producer, waits for it and closes the underlying source.
func (p *Pump) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.closeErr = p.source.Close()
	})
	return p.closeErr
}

// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"dronewatch/internal/errs"
	"dronewatch/internal/log"
)

// maxEmptyReads bounds consecutive 0, nil reads before a stream is treated
// as finished.
const maxEmptyReads = 64

// File is a finite engine source over a decoded audio file.
type File struct {
	path      string
	file      *os.File
	stream    Stream
	blockSize int
	channels  int
	rate      float64
	frames    []float32
	pace      bool
	next      time.Time
	blocks    int
}

// FileOption configures Open.
type FileOption func(*File)

// WithPacing delivers blocks no faster than real time, as a live capture
// would.
func WithPacing() FileOption {
	return func(f *File) { f.pace = true }
}

// Open decodes path with the decoder registered for its extension and
// yields mono blocks of blockSize samples.
func Open(reg *Registry, path string, blockSize int, opts ...FileOption) (*File, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("source: block size %d: %w", blockSize, errs.ErrInvalidConfig)
	}
	dec, err := reg.ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	stream, err := dec.Decode(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("source: decode %s: %w", path, err)
	}

	f := &File{
		path:      path,
		file:      fh,
		stream:    stream,
		blockSize: blockSize,
		channels:  stream.Channels(),
		rate:      float64(stream.SampleRate()),
		frames:    make([]float32, blockSize*stream.Channels()),
	}
	for _, opt := range opts {
		opt(f)
	}
	log.Infof("Source: Replaying %s (%d Hz, %d channels, %d samples per block)",
		path, stream.SampleRate(), f.channels, blockSize)
	return f, nil
}

// ReadBlock returns the next full mono block. A trailing partial block is
// dropped and io.EOF returned.
func (f *File) ReadBlock(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.stream == nil {
		return nil, io.EOF
	}

	filled, empty := 0, 0
	for filled < len(f.frames) {
		n, err := f.stream.ReadSamples(f.frames[filled:])
		filled += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: %s: %w: %w", f.path, errs.ErrAcquisition, err)
		}
		if n == 0 {
			if empty++; empty >= maxEmptyReads {
				break
			}
		} else {
			empty = 0
		}
	}
	if filled < len(f.frames) {
		if filled > 0 {
			log.Debugf("Source: Dropping %d trailing samples of %s", filled/f.channels, f.path)
		}
		return nil, io.EOF
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	block := make([]float64, f.blockSize)
	Downmix(block, f.frames, f.channels)
	f.blocks++
	return block, nil
}

// wait sleeps until the block's real-time slot when pacing is enabled.
func (f *File) wait(ctx context.Context) error {
	if !f.pace {
		return nil
	}
	now := time.Now()
	if f.next.IsZero() {
		f.next = now
	}
	if d := f.next.Sub(now); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	f.next = f.next.Add(time.Duration(float64(f.blockSize) / f.SampleRate() * float64(time.Second)))
	return nil
}

// SampleRate implements engine.Source.
func (f *File) SampleRate() float64 {
	return f.rate
}

// Blocks returns the number of blocks delivered so far.
func (f *File) Blocks() int {
	return f.blocks
}

// Close releases the decoder and the file.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	err := errors.Join(f.stream.Close(), f.file.Close())
	f.file = nil
	f.stream = nil
	return err
}

// Downmix averages interleaved frames of src into mono dst, scaled to int16
// full-scale units. len(src) must be len(dst)*channels.
func Downmix(dst []float64, src []float32, channels int) {
	if channels == 1 {
		for i, s := range src {
			dst[i] = float64(s) * FullScale
		}
		return
	}
	for i := range dst {
		var sum float64
		for _, s := range src[i*channels : (i+1)*channels] {
			sum += float64(s)
		}
		dst[i] = sum / float64(channels) * FullScale
	}
}

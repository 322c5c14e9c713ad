// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dronewatch/internal/engine"
	"dronewatch/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordingBitDepth = 16

// ErrNotRecording is returned by Write after Close.
var ErrNotRecording = errors.New("not recording")

// Recorder writes mono int16-scale blocks to a 16-bit PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	written   int
}

// RecordingFilename returns recording-DD-MM-YYYY-HHMMSS.wav for t in UTC.
func RecordingFilename(t time.Time) string {
	return "recording-" + t.UTC().Format("02-01-2006-150405") + ".wav"
}

// NewRecorder creates the file at path, creating parent directories.
func NewRecorder(path string, sampleRate float64) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}

	rate := int(math.Round(sampleRate))
	return &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, rate, recordingBitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
			SourceBitDepth: recordingBitDepth,
		},
	}, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Write appends block, clamping each sample to the int16 range.
func (r *Recorder) Write(block []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return ErrNotRecording
	}

	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	for i, s := range block {
		r.sampleBuf.Data[i] = int(max(math.MinInt16, min(math.MaxInt16, math.Round(s))))
	}

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	r.written += len(block)
	return nil
}

// Close finalises the WAV header and closes the file. Calling Close again
// is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return nil
	}

	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	r.encoder = nil
	r.file = nil
	if err := errors.Join(encErr, fileErr); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return nil
}

// teeSource records every block read from an underlying source.
type teeSource struct {
	engine.Source
	rec *Recorder
}

// Tee returns a source that writes each block it yields to rec. A failed
// write is logged and the block is still delivered. Closing the source
// closes rec.
func Tee(src engine.Source, rec *Recorder) engine.Source {
	return &teeSource{Source: src, rec: rec}
}

func (t *teeSource) ReadBlock(ctx context.Context) ([]float64, error) {
	block, err := t.Source.ReadBlock(ctx)
	if err != nil {
		return block, err
	}
	if werr := t.rec.Write(block); werr != nil {
		log.Warnf("Recording: Dropped block from %s: %v", t.rec.Path(), werr)
	}
	return block, nil
}

func (t *teeSource) Close() error {
	return errors.Join(t.Source.Close(), t.rec.Close())
}

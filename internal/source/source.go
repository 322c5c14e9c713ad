// SPDX-License-Identifier: MIT

/*
Package source provides offline sample sources for the detection loop:
decoded audio files and a synthetic tone generator.

File sources decode through a Registry keyed by file extension. Every
decoder yields an interleaved Stream normalised to [-1, 1]; File downmixes
it to mono, rescales to int16 full-scale units and cuts it into fixed-size
blocks, dropping a trailing partial block.
*/
package source

import (
	"errors"
	"io"
)

// Errors reported while opening or decoding a file.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNotPCM            = errors.New("only integer PCM is supported")
	ErrBadHeader         = errors.New("invalid audio header")
)

// FullScale converts normalised samples to int16 full-scale units.
const FullScale = 32768.0

// Stream is a decoded interleaved PCM stream normalised to [-1, 1].
type Stream interface {
	// SampleRate of the stream in Hz.
	SampleRate() int
	// Channels count (1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number
	// of values written. It returns 0, io.EOF once the stream is finished.
	ReadSamples(dst []float32) (int, error)
	// Close releases any resources.
	Close() error
}

// Decoder constructs a Stream from an input reader.
type Decoder interface {
	Decode(r io.Reader) (Stream, error)
}

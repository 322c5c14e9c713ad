// SPDX-License-Identifier: MIT
package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// pcmReader is the part of the go-audio WAV and AIFF decoders used here.
type pcmReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// intStream adapts an integer PCM decoder to Stream.
type intStream struct {
	dec        pcmReader
	format     *goaudio.Format
	sampleRate int
	channels   int
	scale      float32
	intBuf     *goaudio.IntBuffer
}

func newIntStream(dec pcmReader, format *goaudio.Format, bitDepth int) (*intStream, error) {
	if format == nil || format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, ErrBadHeader
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrNotPCM, bitDepth)
	}
	return &intStream{
		dec:        dec,
		format:     format,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		scale:      float32(int64(1) << (bitDepth - 1)),
	}, nil
}

func (s *intStream) SampleRate() int { return s.sampleRate }
func (s *intStream) Channels() int   { return s.channels }
func (s *intStream) Close() error    { return nil }

func (s *intStream) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if s.intBuf == nil || cap(s.intBuf.Data) < len(dst) {
		s.intBuf = &goaudio.IntBuffer{Data: make([]int, len(dst)), Format: s.format}
	} else {
		s.intBuf.Data = s.intBuf.Data[:len(dst)]
	}

	n, err := s.dec.PCMBuffer(s.intBuf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, io.EOF
	}
	for i := range n {
		dst[i] = float32(s.intBuf.Data[i]) / s.scale
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// asReadSeeker buffers r in memory when it cannot seek; the go-audio
// decoders need to seek between chunks.
func asReadSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// WAVDecoder decodes RIFF/WAVE integer PCM through go-audio/wav.
type WAVDecoder struct{}

// Decode implements Decoder.
func (WAVDecoder) Decode(r io.Reader) (Stream, error) {
	rs, err := asReadSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: %w", ErrBadHeader)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("wav: %w: format tag %d", ErrNotPCM, dec.WavAudioFormat)
	}
	s, err := newIntStream(dec, dec.Format(), int(dec.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	return s, nil
}

// AIFFDecoder decodes AIFF through go-audio/aiff.
type AIFFDecoder struct{}

// Decode implements Decoder.
func (AIFFDecoder) Decode(r io.Reader) (Stream, error) {
	rs, err := asReadSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}
	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("aiff: %w", ErrBadHeader)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}
	s, err := newIntStream(dec, dec.Format(), int(dec.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}
	return s, nil
}

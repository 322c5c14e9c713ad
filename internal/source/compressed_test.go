// SPDX-License-Identifier: MIT
package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// mockMP3 serves fixed PCM bytes in chunks of at most step bytes.
type mockMP3 struct {
	data []byte
	step int
	err  error
}

func (m *mockMP3) SampleRate() int { return 44100 }

func (m *mockMP3) Read(p []byte) (int, error) {
	if len(m.data) == 0 {
		if m.err != nil {
			return 0, m.err
		}
		return 0, io.EOF
	}
	n := min(len(p), len(m.data), m.step)
	copy(p, m.data[:n])
	m.data = m.data[n:]
	return n, nil
}

func pcm16(vals ...int16) []byte {
	out := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestMP3StreamReadSamples(t *testing.T) {
	// An odd step splits samples across reads.
	s := &mp3Stream{dec: &mockMP3{data: pcm16(16384, -16384, 8192, -32768), step: 3}}

	if s.Channels() != 2 || s.SampleRate() != 44100 {
		t.Errorf("Channels/SampleRate = %d/%d", s.Channels(), s.SampleRate())
	}

	var got []float32
	dst := make([]float32, 4)
	for {
		n, err := s.ReadSamples(dst)
		got = append(got, dst[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples: %v", err)
		}
	}
	want := []float32{0.5, -0.5, 0.25, -1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMP3StreamError(t *testing.T) {
	fail := errors.New("corrupt frame")
	s := &mp3Stream{dec: &mockMP3{err: fail, step: 2}}
	if _, err := s.ReadSamples(make([]float32, 4)); !errors.Is(err, fail) {
		t.Errorf("ReadSamples = %v, want %v", err, fail)
	}
}

// mockOgg serves interleaved float samples.
type mockOgg struct {
	channels int
	data     []float32
}

func (m *mockOgg) SampleRate() int { return 48000 }
func (m *mockOgg) Channels() int   { return m.channels }

func (m *mockOgg) Read(p []float32) (int, error) {
	if len(m.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.data)
	m.data = m.data[n:]
	return n, nil
}

func TestVorbisStreamWholeFrames(t *testing.T) {
	s := &vorbisStream{dec: &mockOgg{channels: 2, data: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}}

	dst := make([]float32, 5) // trimmed to 4 values, two frames
	n, err := s.ReadSamples(dst)
	if err != nil || n != 4 {
		t.Fatalf("ReadSamples = %d, %v, want 4, nil", n, err)
	}
	n, err = s.ReadSamples(dst)
	if err != nil || n != 2 || dst[1] != 0.6 {
		t.Fatalf("ReadSamples = %d, %v (dst %v)", n, err, dst)
	}
	if _, err := s.ReadSamples(dst); !errors.Is(err, io.EOF) {
		t.Errorf("final read = %v, want io.EOF", err)
	}
	if s.SampleRate() != 48000 || s.Channels() != 2 {
		t.Errorf("SampleRate/Channels = %d/%d", s.SampleRate(), s.Channels())
	}
}

func TestVorbisDecoderRejectsGarbage(t *testing.T) {
	if _, err := (VorbisDecoder{}).Decode(bytes.NewReader(make([]byte, 64))); err == nil {
		t.Error("decoder accepted a stream without an Ogg capture pattern")
	}
}

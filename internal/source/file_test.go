// SPDX-License-Identifier: MIT
package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"dronewatch/internal/errs"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes interleaved 16-bit samples to a temp WAV file.
func writeWAV(t *testing.T, name string, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, src *File) [][]float64 {
	t.Helper()
	var out [][]float64
	for {
		block, err := src.ReadBlock(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
		out = append(out, block)
	}
}

func TestFileMonoWAV(t *testing.T) {
	samples := make([]int, 10)
	for i := range samples {
		samples[i] = (i + 1) * 100
	}
	path := writeWAV(t, "mono.wav", 8000, 1, samples)

	src, err := Open(DefaultRegistry(), path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %v, want 8000", src.SampleRate())
	}
	blocks := readAll(t, src)
	// 10 samples in blocks of 4: the trailing 2 are dropped.
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	want := []float64{500, 600, 700, 800}
	for i, v := range want {
		if blocks[1][i] != v {
			t.Errorf("blocks[1][%d] = %v, want %v", i, blocks[1][i], v)
		}
	}
	if src.Blocks() != 2 {
		t.Errorf("Blocks() = %d, want 2", src.Blocks())
	}
	if _, err := src.ReadBlock(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("read after EOF = %v", err)
	}
}

func TestFileStereoDownmix(t *testing.T) {
	// L/R pairs average to 1000, -2000, 0.
	path := writeWAV(t, "stereo.WAV", 44100, 2, []int{500, 1500, -1000, -3000, 32767, -32767})

	src, err := Open(DefaultRegistry(), path, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	blocks := readAll(t, src)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	want := []float64{1000, -2000, 0}
	for i, v := range want {
		if blocks[0][i] != v {
			t.Errorf("sample %d = %v, want %v", i, blocks[0][i], v)
		}
	}
}

func TestFileAIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.aiff")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := aiff.NewEncoder(f, 16000, 16, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           []int{1, -1, 2, -2, 3, -3, 4, -4},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := Open(DefaultRegistry(), path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	blocks := readAll(t, src)
	if len(blocks) != 2 || blocks[1][3] != -4 {
		t.Errorf("blocks = %v", blocks)
	}
	if src.SampleRate() != 16000 {
		t.Errorf("SampleRate() = %v", src.SampleRate())
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "noise.wav")
	if err := os.WriteFile(garbage, bytes.Repeat([]byte{0xAB}, 128), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		block   int
		wantErr error
	}{
		{"unknown extension", filepath.Join(dir, "clip.flac"), 1024, ErrUnsupportedFormat},
		{"missing file", filepath.Join(dir, "absent.wav"), 1024, os.ErrNotExist},
		{"not a wav", garbage, 1024, ErrBadHeader},
		{"zero block", garbage, 0, errs.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(DefaultRegistry(), tt.path, tt.block)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileClose(t *testing.T) {
	path := writeWAV(t, "close.wav", 8000, 1, make([]int, 16))
	src, err := Open(DefaultRegistry(), path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := src.ReadBlock(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("ReadBlock after Close = %v, want io.EOF", err)
	}
	if src.SampleRate() != 8000 {
		t.Errorf("SampleRate() after Close = %v", src.SampleRate())
	}
}

func TestFilePacingHonoursContext(t *testing.T) {
	path := writeWAV(t, "paced.wav", 8000, 1, make([]int, 8000*4))
	src, err := Open(DefaultRegistry(), path, 8000, WithPacing())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	// The first block is due immediately.
	if _, err := src.ReadBlock(ctx); err != nil {
		t.Fatalf("first ReadBlock: %v", err)
	}
	cancel()
	if _, err := src.ReadBlock(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("paced ReadBlock = %v, want context.Canceled", err)
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		src      []float32
		channels int
		want     []float64
	}{
		{"mono", []float32{0.5, -0.25}, 1, []float64{16384, -8192}},
		{"stereo", []float32{1, 0, -0.5, -0.5}, 2, []float64{16384, -16384}},
		{"three channels", []float32{0.25, 0.25, 0.25}, 3, []float64{8192}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float64, len(tt.want))
			Downmix(dst, tt.src, tt.channels)
			for i := range tt.want {
				if dst[i] != tt.want[i] {
					t.Errorf("dst[%d] = %v, want %v", i, dst[i], tt.want[i])
				}
			}
		})
	}
}

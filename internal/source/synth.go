// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"dronewatch/internal/errs"
)

// SynthConfig describes a synthetic microphone signal: a tone with optional
// harmonics over deterministic white noise, present for a span of blocks.
type SynthConfig struct {
	SampleRate float64 // Hz
	BlockSize  int     // Samples per block
	ToneFreq   float64 // Fundamental in Hz, 0 for noise only
	Amplitude  float64 // Tone peak in int16 units
	Harmonics  int     // Extra harmonics at 1/k amplitude
	Noise      float64 // Noise peak in int16 units
	Seed       uint64  // Noise seed
	OnBlock    int     // First block carrying the tone
	OffBlock   int     // First block without the tone again, 0 for never
	Blocks     int     // Total blocks before io.EOF, 0 for endless
}

// Validate reports every invalid field wrapped in ErrInvalidConfig.
func (c SynthConfig) Validate() error {
	var problems []error
	if !(c.SampleRate > 0) {
		problems = append(problems, fmt.Errorf("sample rate must be positive, got %v", c.SampleRate))
	}
	if c.BlockSize <= 0 {
		problems = append(problems, fmt.Errorf("block size must be positive, got %d", c.BlockSize))
	}
	if c.ToneFreq < 0 || c.ToneFreq >= c.SampleRate/2 {
		problems = append(problems, fmt.Errorf("tone %v Hz must be within [0, Nyquist)", c.ToneFreq))
	}
	if c.Amplitude < 0 || c.Noise < 0 {
		problems = append(problems, errors.New("amplitudes must not be negative"))
	}
	if c.Harmonics < 0 || c.OnBlock < 0 || c.OffBlock < 0 || c.Blocks < 0 {
		problems = append(problems, errors.New("harmonics and block counts must not be negative"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("synth: %w: %w", errs.ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}

// Synth generates SynthConfig blocks. The tone phase is continuous across
// blocks and the same seed always yields the same samples.
type Synth struct {
	cfg    SynthConfig
	rng    *rand.Rand
	sample int64
	block  int
}

// NewSynth validates cfg and returns a generator positioned at block 0.
func NewSynth(cfg SynthConfig) (*Synth, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synth{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// ToneActive reports whether block n carries the tone.
func (s *Synth) ToneActive(n int) bool {
	if s.cfg.ToneFreq == 0 || s.cfg.Amplitude == 0 || n < s.cfg.OnBlock {
		return false
	}
	return s.cfg.OffBlock == 0 || n < s.cfg.OffBlock
}

// ReadBlock implements engine.Source.
func (s *Synth) ReadBlock(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.Blocks > 0 && s.block >= s.cfg.Blocks {
		return nil, io.EOF
	}

	tone := s.ToneActive(s.block)
	block := make([]float64, s.cfg.BlockSize)
	for i := range block {
		var v float64
		if tone {
			t := float64(s.sample+int64(i)) / s.cfg.SampleRate
			for k := 1; k <= s.cfg.Harmonics+1; k++ {
				f := s.cfg.ToneFreq * float64(k)
				if f >= s.cfg.SampleRate/2 {
					break
				}
				v += s.cfg.Amplitude / float64(k) * math.Sin(2*math.Pi*f*t)
			}
		}
		if s.cfg.Noise > 0 {
			v += (s.rng.Float64()*2 - 1) * s.cfg.Noise
		}
		block[i] = v
	}

	s.sample += int64(len(block))
	s.block++
	return block, nil
}

// SampleRate implements engine.Source.
func (s *Synth) SampleRate() float64 {
	return s.cfg.SampleRate
}

// Close implements engine.Source.
func (s *Synth) Close() error {
	return nil
}

// SPDX-License-Identifier: MIT

/*
Package dsp holds the frequency-domain primitives shared by both detection
strategies: a windowed one-sided real FFT, RPM band extraction and peak
search.

Sizing follows the real-FFT convention: an N-point block produces N/2+1 bins
(integer division), for even and odd N alike, and bin k sits at
k * sampleRate / N Hz.
*/
package dsp

import (
	"fmt"
	"math/cmplx"

	"dronewatch/internal/errs"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is the magnitude spectrum of one block. It is produced fresh by
// every Transform call and owned by the caller.
type Spectrum struct {
	Frequencies []float64 // Hz, bin k = k * sampleRate / N
	Magnitudes  []float64 // |X[k]|
}

// Len returns the number of bins.
func (s Spectrum) Len() int {
	return len(s.Magnitudes)
}

// Transformer computes windowed magnitude spectra. It keeps the FFT plan,
// window coefficients and scratch buffers for the last block size it saw, so
// a steady stream of equal-sized blocks does not re-plan.
//
// A Transformer is not safe for concurrent use.
type Transformer struct {
	window WindowFunc
	size   int
	fft    *fourier.FFT
	coeffs []float64    // window coefficients for size points
	input  []float64    // windowed input
	output []complex128 // size/2+1 coefficients
}

// NewTransformer returns a Transformer applying w before each transform.
func NewTransformer(w WindowFunc) *Transformer {
	return &Transformer{window: w}
}

// Window returns the window function applied by t.
func (t *Transformer) Window() WindowFunc {
	return t.window
}

func (t *Transformer) plan(n int) {
	if n == t.size && t.fft != nil {
		return
	}
	t.size = n
	t.fft = fourier.NewFFT(n)
	t.coeffs = make([]float64, n)
	coefficients(t.coeffs, t.window)
	t.input = make([]float64, n)
	t.output = make([]complex128, n/2+1)
}

// Transform windows samples and returns their one-sided magnitude spectrum.
// An empty block or a non-positive sample rate fails with ErrInvalidInput.
func (t *Transformer) Transform(samples []float64, sampleRate float64) (Spectrum, error) {
	n := len(samples)
	if n == 0 {
		return Spectrum{}, fmt.Errorf("transform: empty block: %w", errs.ErrInvalidInput)
	}
	if sampleRate <= 0 {
		return Spectrum{}, fmt.Errorf("transform: sample rate must be positive, got %v: %w", sampleRate, errs.ErrInvalidInput)
	}

	t.plan(n)
	for i, s := range samples {
		t.input[i] = s * t.coeffs[i]
	}
	t.fft.Coefficients(t.output, t.input)

	bins := len(t.output)
	spectrum := Spectrum{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
	}
	resolution := sampleRate / float64(n)
	for k, c := range t.output {
		spectrum.Frequencies[k] = float64(k) * resolution
		spectrum.Magnitudes[k] = cmplx.Abs(c)
	}
	return spectrum, nil
}

// Transform is a one-shot helper around a throwaway Transformer.
func Transform(samples []float64, sampleRate float64, w WindowFunc) (Spectrum, error) {
	return NewTransformer(w).Transform(samples, sampleRate)
}

// BinCount returns the number of bins an n-point real transform yields.
func BinCount(n int) int {
	if n <= 0 {
		return 0
	}
	return n/2 + 1
}

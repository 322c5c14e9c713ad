// SPDX-License-Identifier: MIT
package dsp

// RPMToHz converts a rotation rate in revolutions per minute to Hz.
func RPMToHz(rpm float64) float64 {
	return rpm / 60
}

// ExtractBand returns a copy of the magnitudes whose bin frequency lies in
// [lowHz, highHz] inclusive, in increasing bin order.
func ExtractBand(spec Spectrum, lowHz, highHz float64) []float64 {
	band := make([]float64, 0, spec.Len())
	for k, f := range spec.Frequencies {
		if f >= lowHz && f <= highHz {
			band = append(band, spec.Magnitudes[k])
		}
	}
	return band
}

// ZeroBelow clears every magnitude whose bin frequency is below cutoffHz, so
// DC offset and low room rumble cannot win a peak search.
func ZeroBelow(spec Spectrum, cutoffHz float64) {
	for k, f := range spec.Frequencies {
		if f < cutoffHz {
			spec.Magnitudes[k] = 0
		}
	}
}

// PeakBin returns the index of the largest magnitude, or -1 for an empty
// slice. Ties resolve to the lowest index.
func PeakBin(magnitudes []float64) int {
	if len(magnitudes) == 0 {
		return -1
	}
	peak := 0
	for k := 1; k < len(magnitudes); k++ {
		if magnitudes[k] > magnitudes[peak] {
			peak = k
		}
	}
	return peak
}

// MaxAbsDiff returns max |a[i]-b[i]| over equal-length slices, 0 when empty.
func MaxAbsDiff(a, b []float64) float64 {
	var largest float64
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > largest {
			largest = d
		}
	}
	return largest
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
)

// MinFrequency is the lower edge of the first band in Hz.
const MinFrequency = 20.0

// Band is one frequency range [LowHz, HighHz) aggregated into a matrix column.
// The Nyquist bin lies on the upper edge of the last band and is in no band.
type Band struct {
	LowHz  float64
	HighHz float64

	// FFT bins [firstBin, endBin) whose center frequency lies in the band.
	firstBin int
	endBin   int
}

// NumBins returns how many FFT bins fall into the band. Narrow low bands may
// contain none.
func (b Band) NumBins() int {
	return b.endBin - b.firstBin
}

// Contains reports whether freq lies in [LowHz, HighHz).
func (b Band) Contains(freq float64) bool {
	return freq >= b.LowHz && freq < b.HighHz
}

// LogEdges returns width+1 band edges spaced logarithmically from
// MinFrequency to the Nyquist frequency sampleRate/2. The end points are
// exact.
func LogEdges(width int, sampleRate float64) []float64 {
	nyquist := sampleRate / 2
	edges := make([]float64, width+1)
	lo := math.Log10(MinFrequency)
	hi := math.Log10(nyquist)
	for i := range edges {
		edges[i] = math.Pow(10, lo+float64(i)*(hi-lo)/float64(width))
	}
	edges[0] = MinFrequency
	edges[width] = nyquist
	return edges
}

// assignBins maps each band to the contiguous run of bins whose frequency
// falls inside it. freq must be increasing in the bin index.
func assignBins(edges []float64, numBins int, freq func(int) float64) []Band {
	bands := make([]Band, len(edges)-1)
	bin := 0
	for i := range bands {
		b := Band{LowHz: edges[i], HighHz: edges[i+1]}
		for bin < numBins && freq(bin) < b.LowHz {
			bin++
		}
		b.firstBin = bin
		for bin < numBins && b.Contains(freq(bin)) {
			bin++
		}
		b.endBin = bin
		bands[i] = b
	}
	return bands
}

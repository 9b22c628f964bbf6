// SPDX-License-Identifier: MIT

// Package analysis turns one block of samples into the bar heights and the
// loudness shown on the LED matrix.
//
// The magnitude spectrum is scaled by the gain and compressed with log1p,
// then averaged over logarithmically spaced bands between 20 Hz and Nyquist.
// Band energies are normalized to the loudest band and mapped onto
// [0, Height]. Loudness is the RMS level of the windowed block in dB.
package analysis

import (
	"fmt"
	"math"

	"ledspectrum/internal/fft"
)

// Frame is one analysis result: a height per column and the block loudness.
type Frame struct {
	Heights    []int
	LoudnessDB float64
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	return Frame{
		Heights:    append([]int(nil), f.Heights...),
		LoudnessDB: f.LoudnessDB,
	}
}

// Config describes the analysis geometry.
type Config struct {
	Width      int     // Number of bands (matrix columns).
	Height     int     // Maximum bar height (matrix rows).
	BlockSize  int     // Samples per block, a power of 2.
	SampleRate float64 // Hz.
	Window     fft.WindowFunc
}

// Analyzer computes Frames. Buffers are reused between calls, so an Analyzer
// must not be shared between goroutines.
type Analyzer struct {
	cfg      Config
	proc     *fft.Processor
	edges    []float64
	bands    []Band
	energies []float64
	heights  []int
}

// NewAnalyzer creates an Analyzer for cfg.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("matrix size %dx%d must be positive", cfg.Width, cfg.Height)
	}
	if cfg.SampleRate/2 <= MinFrequency {
		return nil, fmt.Errorf("sample rate %g leaves no band above %g Hz", cfg.SampleRate, MinFrequency)
	}

	proc, err := fft.NewProcessor(cfg.BlockSize, cfg.SampleRate, cfg.Window)
	if err != nil {
		return nil, err
	}

	edges := LogEdges(cfg.Width, cfg.SampleRate)
	return &Analyzer{
		cfg:      cfg,
		proc:     proc,
		edges:    edges,
		bands:    assignBins(edges, proc.Bins(), proc.Frequency),
		energies: make([]float64, cfg.Width),
		heights:  make([]int, cfg.Width),
	}, nil
}

// Analyze computes the frame for one block at the given gain. The returned
// Heights slice is reused by the next call; callers that keep it must copy
// it (Frame.Clone). Heights always lie in [0, Height] and the loudness is
// always finite.
func (a *Analyzer) Analyze(samples []float64, gain float64) Frame {
	a.proc.Process(samples)
	mags := a.proc.Magnitudes()

	maxEnergy := 0.0
	for i, b := range a.bands {
		energy := 0.0
		if n := b.NumBins(); n > 0 {
			sum := 0.0
			for _, m := range mags[b.firstBin:b.endBin] {
				sum += compress(m, gain)
			}
			energy = sum / float64(n)
		}
		a.energies[i] = energy
		maxEnergy = max(maxEnergy, energy)
	}

	if maxEnergy <= 0 {
		maxEnergy = 1
	}
	height := float64(a.cfg.Height)
	for i, e := range a.energies {
		h := int(math.Round(e / maxEnergy * height))
		a.heights[i] = min(max(h, 0), a.cfg.Height)
	}

	return Frame{
		Heights:    a.heights,
		LoudnessDB: 20 * math.Log10(a.proc.RMS()+fft.Epsilon),
	}
}

// compress applies the gain and log1p compression to one magnitude. The
// product is kept finite so huge gains saturate instead of producing NaN.
func compress(mag, gain float64) float64 {
	v := mag * gain
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case math.IsInf(v, 1):
		v = math.MaxFloat64
	}
	return math.Log1p(v)
}

// Energies returns the compressed band energies of the last Analyze call.
func (a *Analyzer) Energies() []float64 {
	return a.energies
}

// Edges returns the Width+1 band edges in Hz.
func (a *Analyzer) Edges() []float64 {
	return a.edges
}

// Bands returns the band layout.
func (a *Analyzer) Bands() []Band {
	return a.bands
}

// BandFor returns the index of the band containing freq, or -1.
func (a *Analyzer) BandFor(freq float64) int {
	for i, b := range a.bands {
		if b.Contains(freq) {
			return i
		}
	}
	return -1
}

// Config returns the analysis configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// SPDX-License-Identifier: MIT

// Package fft prepares a sample block for spectral analysis: it windows the
// block, normalizes it to unit peak, and computes the real FFT magnitude
// spectrum and the RMS level of the prepared signal. All buffers are
// allocated once, so Process runs without allocating.
package fft

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"ledspectrum/pkg/bitint"
)

// Epsilon keeps the peak normalization and the dB conversion finite.
const Epsilon = 1e-6

// workspace holds pre-allocated buffers for FFT calculations.
type workspace struct {
	input     []float64    // windowed, normalized samples
	fftOutput []complex128 // complex coefficients, size/2+1
	magnitude []float64    // |coefficient| per bin
	window    []float64    // window coefficients
}

// Processor holds the FFT state for one block size and sample rate.
// A Processor is not safe for concurrent use.
type Processor struct {
	size       int
	sampleRate float64
	windowType WindowFunc
	fftObj     *fourier.FFT
	workspace  workspace
	rms        float64
}

// NewProcessor creates a processor for blocks of size samples.
func NewProcessor(size int, sampleRate float64, w WindowFunc) (*Processor, error) {
	if bitint.Log2(size) < 1 {
		return nil, fmt.Errorf("fft size must be a power of 2 of at least 2, got %d (try %d)",
			size, max(2, bitint.NextPowerOfTwo(size)))
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}

	coeffs := make([]float64, size)
	coefficients(coeffs, w)

	bins := size/2 + 1
	return &Processor{
		size:       size,
		sampleRate: sampleRate,
		windowType: w,
		fftObj:     fourier.NewFFT(size),
		workspace: workspace{
			input:     make([]float64, size),
			fftOutput: make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    coeffs,
		},
	}, nil
}

// Process windows and peak-normalizes samples, then computes the magnitude
// spectrum and RMS. Blocks shorter than the processor size are zero padded;
// longer blocks are truncated. Non-finite samples are treated as silence.
func (p *Processor) Process(samples []float64) {
	ws := &p.workspace
	for i := range p.size {
		v := 0.0
		if i < len(samples) {
			v = samples[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
		}
		ws.input[i] = v * ws.window[i]
	}

	peak := floats.Norm(ws.input, math.Inf(1))
	floats.Scale(1/(peak+Epsilon), ws.input)
	p.rms = floats.Norm(ws.input, 2) / math.Sqrt(float64(p.size))

	p.fftObj.Coefficients(ws.fftOutput, ws.input)
	for i, c := range ws.fftOutput {
		ws.magnitude[i] = cmplx.Abs(c)
	}
}

// Magnitudes returns the magnitude spectrum of the last processed block. The
// slice is owned by the processor and overwritten by the next Process call.
func (p *Processor) Magnitudes() []float64 {
	return p.workspace.magnitude
}

// Prepared returns the windowed, normalized samples of the last block.
func (p *Processor) Prepared() []float64 {
	return p.workspace.input
}

// RMS returns the root-mean-square level of the prepared samples.
func (p *Processor) RMS() float64 {
	return p.rms
}

// Frequency returns the frequency in Hz of a bin index.
func (p *Processor) Frequency(i int) float64 {
	if i < 0 || i >= len(p.workspace.fftOutput) {
		return 0
	}
	return p.fftObj.Freq(i) * p.sampleRate
}

// Size returns the number of samples per block.
func (p *Processor) Size() int { return p.size }

// Bins returns the number of magnitude bins, Size()/2+1.
func (p *Processor) Bins() int { return len(p.workspace.magnitude) }

// SampleRate returns the sample rate in Hz.
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// Window returns the configured window function.
func (p *Processor) Window() WindowFunc { return p.windowType }

// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"strconv"
	"testing"

	"ledspectrum/pkg/utils"
)

const testBlockSize = 1024

var (
	quietBlock = utils.GenerateSineWave(testBlockSize, 44100, 440, 0.001)
	loudBlock  = utils.GenerateSineWave(testBlockSize, 44100, 440, 0.8)
)

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0},       // Below min
		{0.0, 0.0},        // Minimum
		{0.5, 0.5},        // Middle
		{1.0, 1.0},        // Maximum
		{1.5, 1.0},        // Above max
		{math.NaN(), 0.0}, // Not a number
	}

	g := NewGate(0)
	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.input, 'g', -1, 64), func(t *testing.T) {
			g.SetThreshold(tt.input)
			if got := g.Threshold(); got != tt.expected {
				t.Errorf("Threshold() = %v, want %v", got, tt.expected)
			}
			if g.Enabled() != (tt.expected > 0) {
				t.Errorf("Enabled() = %v for threshold %v", g.Enabled(), tt.expected)
			}
		})
	}
}

func TestGateDetectionHotPath(t *testing.T) {
	tests := []struct {
		desc      string
		block     []float64
		threshold float64
		wantOpen  bool
	}{
		{"Gate disabled/Quiet signal", quietBlock, 0, true},
		{"Gate disabled/Loud signal", loudBlock, 0, true},
		{"Quiet signal/Low threshold", quietBlock, 0.0001, true},
		{"Quiet signal/Mid threshold", quietBlock, 0.1, false},
		{"Loud signal/Mid threshold", loudBlock, 0.1, true},
		{"Loud signal/High threshold", loudBlock, 0.999, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			block := append([]float64(nil), tt.block...)
			g := NewGate(tt.threshold)

			if open := g.Apply(block); open != tt.wantOpen {
				t.Errorf("Apply() = %v, want %v", open, tt.wantOpen)
			}

			silent := true
			for _, s := range block {
				if s != 0 {
					silent = false
					break
				}
			}
			if silent == tt.wantOpen {
				t.Errorf("block silent = %v after Apply() = %v", silent, tt.wantOpen)
			}
		})
	}
}

func TestGateNoAllocsHotPath(t *testing.T) {
	g := NewGate(0.5)
	block := append([]float64(nil), loudBlock...)

	allocs := testing.AllocsPerRun(100, func() {
		_ = g.Apply(block)
	})
	if allocs > 0 {
		t.Errorf("gate allocated: got %.1f allocs, want 0", allocs)
	}
}

func TestDownmix(t *testing.T) {
	in := []float32{0.5, -0.5, 1, 0, 0.25, 0.75}

	tests := []struct {
		desc     string
		channels int
		mix      string
		dstLen   int
		want     []float64
	}{
		{"First channel", 2, "first", 3, []float64{0.5, 1, 0.25}},
		{"Mean", 2, "mean", 3, []float64{0, 0.5, 0.5}},
		{"Mono passthrough", 1, "mean", 6, []float64{0.5, -0.5, 1, 0, 0.25, 0.75}},
		{"Short input zero pads", 2, "first", 5, []float64{0.5, 1, 0.25, 0, 0}},
		{"Short dst truncates", 2, "first", 2, []float64{0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			dst := make([]float64, tt.dstLen)
			for i := range dst {
				dst[i] = 9 // stale data must be overwritten
			}
			Downmix(dst, in, tt.channels, tt.mix)
			for i := range tt.want {
				if dst[i] != tt.want[i] {
					t.Errorf("dst[%d] = %v, want %v", i, dst[i], tt.want[i])
				}
			}
		})
	}
}

func BenchmarkGateProcessingHotPath(b *testing.B) {
	benchmarks := []struct {
		name      string
		block     []float64
		threshold float64
	}{
		{"Gate disabled", loudBlock, 0},
		{"Quiet signal/Low threshold", quietBlock, 0.0001},
		{"Loud signal/High threshold", loudBlock, 0.999},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			g := NewGate(bm.threshold)
			block := make([]float64, len(bm.block))

			b.ReportAllocs()
			for b.Loop() {
				copy(block, bm.block)
				_ = g.Apply(block)
			}
		})
	}
}

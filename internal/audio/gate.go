// SPDX-License-Identifier: MIT
package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Gate silences blocks whose peak stays below a threshold, so per-block
// normalization does not blow background noise up to full scale.
type Gate struct {
	threshold float64
}

// NewGate returns a gate with the given threshold. Zero disables it.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the gate threshold.
// The value is clamped to 0.0-1.0, where 0 leaves the gate always open.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold = threshold
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// Enabled reports whether the gate can close.
func (g *Gate) Enabled() bool { return g.threshold > 0 }

// Apply zeroes block in place when its peak is below the threshold and
// reports whether the gate was open.
func (g *Gate) Apply(block []float64) bool {
	if !g.Enabled() {
		return true
	}
	if floats.Norm(block, math.Inf(1)) >= g.threshold {
		return true
	}
	clear(block)
	return false
}

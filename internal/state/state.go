// SPDX-License-Identifier: MIT

// Package state holds the values shared between the capture worker, the
// frame scheduler and the control surface.
//
// The latest analysis frame is published as an immutable snapshot behind an
// atomic pointer. Writers never block readers and a reader always sees a
// complete frame. Gain, color mode and the paused flag are independent
// atomic scalars.
package state

import (
	"errors"
	"math"
	"sync/atomic"

	"ledspectrum/internal/analysis"
	"ledspectrum/internal/led"
)

// ErrInvalidGain is returned by SetGain for zero, negative or non-finite
// values.
var ErrInvalidGain = errors.New("gain must be a positive finite number")

// State is the SharedVisualState of the pipeline. The zero value is not
// usable; create one with New.
type State struct {
	frame  atomic.Pointer[analysis.Frame]
	gain   atomic.Uint64 // math.Float64bits
	mode   atomic.Int32
	paused atomic.Bool
	frames atomic.Uint64 // published frame count
}

// New returns a State holding an all-zero frame of width columns.
func New(width int, gain float64, mode led.ColorMode) (*State, error) {
	s := &State{}
	if err := s.SetGain(gain); err != nil {
		return nil, err
	}
	s.SetColorMode(mode)
	s.frame.Store(&analysis.Frame{
		Heights:    make([]int, width),
		LoudnessDB: 20 * math.Log10(1e-6),
	})
	return s, nil
}

// Publish replaces the latest frame with a copy of f.
func (s *State) Publish(f analysis.Frame) {
	snapshot := f.Clone()
	s.frame.Store(&snapshot)
	s.frames.Add(1)
}

// Frame returns a copy of the latest frame.
func (s *State) Frame() analysis.Frame {
	return s.frame.Load().Clone()
}

// HeightsInto copies the latest heights into dst, reusing its capacity, and
// returns it with the loudness of the same frame.
func (s *State) HeightsInto(dst []int) ([]int, float64) {
	f := s.frame.Load()
	return append(dst[:0], f.Heights...), f.LoudnessDB
}

// Loudness returns the loudness of the latest frame in dB.
func (s *State) Loudness() float64 {
	return s.frame.Load().LoudnessDB
}

// Published returns how many frames have been published.
func (s *State) Published() uint64 {
	return s.frames.Load()
}

// Gain returns the current gain.
func (s *State) Gain() float64 {
	return math.Float64frombits(s.gain.Load())
}

// SetGain sets the gain applied to the magnitude spectrum.
func (s *State) SetGain(g float64) error {
	if !(g > 0) || math.IsInf(g, 0) {
		return ErrInvalidGain
	}
	s.gain.Store(math.Float64bits(g))
	return nil
}

// ColorMode returns the current color mode.
func (s *State) ColorMode() led.ColorMode {
	return led.ColorMode(s.mode.Load())
}

// SetColorMode sets the color mode. Invalid modes are stored as Rainbow.
func (s *State) SetColorMode(m led.ColorMode) {
	if !m.Valid() {
		m = led.Rainbow
	}
	s.mode.Store(int32(m))
}

// CycleColorMode advances to the next color mode and returns it.
func (s *State) CycleColorMode() led.ColorMode {
	for {
		cur := s.mode.Load()
		next := led.ColorMode(cur).Next()
		if s.mode.CompareAndSwap(cur, int32(next)) {
			return next
		}
	}
}

// Paused reports whether frame transmission is paused.
func (s *State) Paused() bool {
	return s.paused.Load()
}

// SetPaused pauses or resumes frame transmission.
func (s *State) SetPaused(p bool) {
	s.paused.Store(p)
}

// TogglePaused flips the paused flag and returns the new value.
func (s *State) TogglePaused() bool {
	for {
		cur := s.paused.Load()
		if s.paused.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

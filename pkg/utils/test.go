// SPDX-License-Identifier: MIT

// Package utils holds test signal generators and test doubles shared by the
// package tests.
package utils

import (
	"bytes"
	"errors"
	"math"
	"sync"
)

var (
	// ErrMockClosed is returned by MockTransport.Send after Close.
	ErrMockClosed = errors.New("mock transport closed")
	// ErrInjected is returned for sends failed through FailNext.
	ErrInjected = errors.New("injected send failure")
)

// MockTransport records every payload for later inspection instead of
// transmitting it. A non-nil Err fails every Send; FailNext fails only the
// next n sends with ErrInjected. It is safe for concurrent use.
type MockTransport struct {
	mu       sync.Mutex
	sent     [][]byte
	closed   bool
	Err      error
	FailNext int
}

// Send stores a copy of data.
func (m *MockTransport) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return ErrMockClosed
	case m.Err != nil:
		return m.Err
	case m.FailNext > 0:
		m.FailNext--
		return ErrInjected
	}

	m.sent = append(m.sent, bytes.Clone(data))
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetError changes the injected failure while the transport is in use.
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Messages returns copies of all recorded payloads in send order.
func (m *MockTransport) Messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, b := range m.sent {
		out[i] = bytes.Clone(b)
	}
	return out
}

// Last returns the most recent payload, or nil.
func (m *MockTransport) Last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return bytes.Clone(m.sent[len(m.sent)-1])
}

// CountPrefix returns how many payloads start with prefix.
func (m *MockTransport) CountPrefix(prefix []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.sent {
		if bytes.HasPrefix(b, prefix) {
			n++
		}
	}
	return n
}

// GenerateComplexWave returns a 440 Hz tone with its second and third
// harmonics, peaking at 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * amplitude
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin+1]. Out of range bounds are clamped.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// ArgMax returns the index of the first largest value, or -1 for an empty
// slice.
func ArgMax(values []int) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

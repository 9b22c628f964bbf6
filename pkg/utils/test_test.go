// SPDX-License-Identifier: MIT
package utils

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"testing"
)

func TestMockTransportRecords(t *testing.T) {
	mt := &MockTransport{}
	frame := make([]byte, 8*11*3)
	payloads := [][]byte{[]byte("CLEAR\n"), append([]byte("FRAME_BEGIN\n"), frame...), {}}

	for _, p := range payloads {
		if err := mt.Send(p); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}
	payloads[0][0] = 'X'

	got := mt.Messages()
	if len(got) != len(payloads) {
		t.Fatalf("recorded %d payloads, want %d", len(got), len(payloads))
	}
	if !bytes.Equal(got[0], []byte("CLEAR\n")) {
		t.Errorf("payload 0 = %q, Send must store a copy", got[0])
	}
	if n := mt.CountPrefix([]byte("FRAME_BEGIN\n")); n != 1 {
		t.Errorf("CountPrefix = %d, want 1", n)
	}
	if last := mt.Last(); len(last) != 0 {
		t.Errorf("Last = %q, want the empty payload", last)
	}

	got[1][0] = 'X'
	if mt.Messages()[1][0] != 'F' {
		t.Error("Messages must return copies")
	}
}

func TestMockTransportFailures(t *testing.T) {
	mt := &MockTransport{FailNext: 2}
	for i := range 2 {
		if err := mt.Send([]byte{1}); !errors.Is(err, ErrInjected) {
			t.Fatalf("send %d: err = %v, want ErrInjected", i, err)
		}
	}
	if err := mt.Send([]byte{1}); err != nil {
		t.Fatalf("send after FailNext: %v", err)
	}

	broken := errors.New("cable unplugged")
	mt.SetError(broken)
	if err := mt.Send([]byte{1}); !errors.Is(err, broken) {
		t.Errorf("err = %v, want %v", err, broken)
	}
	mt.SetError(nil)

	if err := mt.Close(); err != nil {
		t.Fatal(err)
	}
	if !mt.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := mt.Send([]byte{1}); !errors.Is(err, ErrMockClosed) {
		t.Errorf("err = %v, want ErrMockClosed", err)
	}
	if n := len(mt.Messages()); n != 1 {
		t.Errorf("recorded %d payloads, want only the successful one", n)
	}
	if (&MockTransport{}).Last() != nil {
		t.Error("Last on an empty transport must be nil")
	}
}

func TestMockTransportConcurrent(t *testing.T) {
	mt := &MockTransport{}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				mt.Send([]byte("x"))
			}
		}()
	}
	wg.Wait()
	if n := mt.CountPrefix([]byte("x")); n != 800 {
		t.Errorf("recorded %d payloads, want 800", n)
	}
}

func TestGenerateSineWave(t *testing.T) {
	const rate = 44100.0
	tests := []struct {
		name      string
		size      int
		freq, amp float64
	}{
		{"A4", 1024, 440, 1},
		{"quiet bass", 2048, 60, 0.01},
		{"near nyquist", 512, 20000, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := GenerateSineWave(tt.size, rate, tt.freq, tt.amp)
			if len(w) != tt.size {
				t.Fatalf("len = %d, want %d", len(w), tt.size)
			}
			if w[0] != 0 {
				t.Errorf("w[0] = %g, want 0", w[0])
			}
			peak := 0.0
			for _, v := range w {
				peak = math.Max(peak, math.Abs(v))
			}
			if peak > tt.amp+1e-12 || peak < tt.amp*0.9 {
				t.Errorf("peak = %g, want about %g", peak, tt.amp)
			}
		})
	}
}

func TestGenerateComplexWave(t *testing.T) {
	w := GenerateComplexWave(4096, 44100)
	peak := 0.0
	for _, v := range w {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > 0.9+1e-12 {
		t.Errorf("peak = %g, want at most 0.9", peak)
	}
	if peak < 0.5 {
		t.Errorf("peak = %g, harmonics should add up above the fundamental", peak)
	}
}

func TestFindPeakBin(t *testing.T) {
	hill := make([]float64, 256)
	for i := range hill {
		hill[i] = math.Exp(-0.01 * math.Pow(float64(i-64), 2))
	}

	tests := []struct {
		name       string
		mags       []float64
		start, end int
		want       int
	}{
		{"whole range", hill, 0, 255, 64},
		{"clamped bounds", hill, -5, 1000, 64},
		{"right of peak", hill, 100, 200, 100},
		{"empty", nil, 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(tt.mags, tt.start, tt.end); got != tt.want {
				t.Errorf("FindPeakBin = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		values []int
		want   int
	}{
		{nil, -1},
		{[]int{3}, 0},
		{[]int{0, 11, 4, 11}, 1},
		{[]int{-3, -1, -2}, 1},
	}
	for _, tt := range tests {
		if got := ArgMax(tt.values); got != tt.want {
			t.Errorf("ArgMax(%v) = %d, want %d", tt.values, got, tt.want)
		}
	}
}

func BenchmarkMockTransportSend(b *testing.B) {
	mt := &MockTransport{}
	frame := make([]byte, 8*11*3)
	b.ReportAllocs()
	for b.Loop() {
		mt.Send(frame)
	}
}

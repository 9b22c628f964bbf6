// SPDX-License-Identifier: MIT
package state

import (
	"errors"
	"math"
	"sync"
	"testing"

	"ledspectrum/internal/analysis"
	"ledspectrum/internal/led"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New(8, 1, led.Rainbow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	s := newTestState(t)

	f := s.Frame()
	if len(f.Heights) != 8 {
		t.Fatalf("len(Heights) = %d, want 8", len(f.Heights))
	}
	for i, h := range f.Heights {
		if h != 0 {
			t.Errorf("initial height[%d] = %d", i, h)
		}
	}
	if s.Gain() != 1 || s.ColorMode() != led.Rainbow || s.Paused() {
		t.Errorf("unexpected initial control state: gain=%g mode=%v paused=%v", s.Gain(), s.ColorMode(), s.Paused())
	}
	if s.Published() != 0 {
		t.Errorf("Published() = %d, want 0", s.Published())
	}

	if _, err := New(8, 0, led.Solid); !errors.Is(err, ErrInvalidGain) {
		t.Errorf("New with zero gain: err = %v, want ErrInvalidGain", err)
	}
}

func TestPublishCopies(t *testing.T) {
	s := newTestState(t)

	heights := []int{1, 2, 3, 4, 5, 6, 7, 8}
	s.Publish(analysis.Frame{Heights: heights, LoudnessDB: -6})
	heights[0] = 99

	f := s.Frame()
	if f.Heights[0] != 1 {
		t.Errorf("Publish kept a reference to the caller's slice")
	}
	f.Heights[1] = 99
	if s.Frame().Heights[1] != 2 {
		t.Errorf("Frame returned a live reference")
	}
	if s.Loudness() != -6 {
		t.Errorf("Loudness() = %g, want -6", s.Loudness())
	}
	if s.Published() != 1 {
		t.Errorf("Published() = %d, want 1", s.Published())
	}

	buf := make([]int, 0, 8)
	got, db := s.HeightsInto(buf)
	if len(got) != 8 || got[7] != 8 || db != -6 {
		t.Errorf("HeightsInto = %v, %g", got, db)
	}
}

func TestSetGain(t *testing.T) {
	s := newTestState(t)

	tests := []struct {
		gain    float64
		wantErr bool
	}{
		{0.001, false},
		{5, false},
		{1e6, false},
		{0, true},
		{-1, true},
		{math.NaN(), true},
		{math.Inf(1), true},
	}

	for _, tt := range tests {
		before := s.Gain()
		err := s.SetGain(tt.gain)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetGain(%g) error = %v, wantErr %v", tt.gain, err, tt.wantErr)
		}
		if tt.wantErr && s.Gain() != before {
			t.Errorf("SetGain(%g) changed gain to %g", tt.gain, s.Gain())
		}
		if !tt.wantErr && s.Gain() != tt.gain {
			t.Errorf("Gain() = %g, want %g", s.Gain(), tt.gain)
		}
	}
}

func TestColorModeAndPause(t *testing.T) {
	s := newTestState(t)

	s.SetColorMode(led.Gradient)
	if s.ColorMode() != led.Gradient {
		t.Errorf("ColorMode() = %v, want gradient", s.ColorMode())
	}
	if next := s.CycleColorMode(); next != led.Rainbow {
		t.Errorf("CycleColorMode() = %v, want rainbow", next)
	}
	s.SetColorMode(led.ColorMode(17))
	if s.ColorMode() != led.Rainbow {
		t.Errorf("invalid mode stored as %v, want rainbow", s.ColorMode())
	}

	if !s.TogglePaused() || !s.Paused() {
		t.Error("TogglePaused should pause")
	}
	if s.TogglePaused() || s.Paused() {
		t.Error("TogglePaused should resume")
	}
	s.SetPaused(true)
	if !s.Paused() {
		t.Error("SetPaused(true) not observed")
	}
}

// Every published frame has all heights equal to k and loudness k. A reader
// that ever sees mixed values observed a torn frame.
func TestConcurrentSnapshotsAreWhole(t *testing.T) {
	const (
		width   = 64
		writes  = 20000
		readers = 4
	)
	s, err := New(width, 1, led.Rainbow)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		heights := make([]int, width)
		for k := 1; k <= writes; k++ {
			for i := range heights {
				heights[i] = k
			}
			s.Publish(analysis.Frame{Heights: heights, LoudnessDB: float64(k)})
		}
	}()

	errs := make(chan string, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf []int
			for {
				select {
				case <-done:
					return
				default:
				}

				f := s.Frame()
				want := int(f.LoudnessDB)
				if f.LoudnessDB < 0 {
					want = 0
				}
				for _, h := range f.Heights {
					if h != want {
						errs <- "torn frame"
						return
					}
				}

				var db float64
				buf, db = s.HeightsInto(buf)
				if db >= 0 && buf[0] != int(db) {
					errs <- "torn HeightsInto"
					return
				}

				_ = s.Gain()
				_ = s.ColorMode()
				_ = s.Paused()
			}
		}()
	}

	// Control writes race with everything above.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			_ = s.SetGain(float64(i%50 + 1))
			s.CycleColorMode()
			s.TogglePaused()
		}
	}()

	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}

	if s.Published() != writes {
		t.Errorf("Published() = %d, want %d", s.Published(), writes)
	}
	if f := s.Frame(); f.Heights[0] != writes {
		t.Errorf("last frame height = %d, want %d", f.Heights[0], writes)
	}
}

func BenchmarkPublish(b *testing.B) {
	s, _ := New(8, 1, led.Rainbow)
	f := analysis.Frame{Heights: []int{1, 2, 3, 4, 5, 6, 7, 8}, LoudnessDB: -3}

	b.ReportAllocs()

	for b.Loop() {
		s.Publish(f)
	}
}

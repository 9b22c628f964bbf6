// SPDX-License-Identifier: MIT
package led

import (
	"testing"
)

func cell(frame []byte, height, x, y int) RGB {
	i := (x*height + y) * 3
	return RGB{frame[i], frame[i+1], frame[i+2]}
}

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		heights []int
	}{
		{"Default matrix", 8, 11, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{"Heights too large", 8, 11, []int{100, 100, 100, 100, 100, 100, 100, 100}},
		{"Negative heights", 8, 11, []int{-5, -1, 0, 0, 0, 0, 0, 0}},
		{"Too few heights", 8, 11, []int{3}},
		{"Too many heights", 4, 4, []int{1, 2, 3, 4, 5, 6}},
		{"Nil heights", 16, 16, nil},
		{"Single column", 1, 5, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(tt.width, tt.height)
			for _, mode := range []ColorMode{Rainbow, Solid, Gradient, ColorMode(42)} {
				frame := e.Encode(nil, tt.heights, mode)
				if want := tt.width * tt.height * 3; len(frame) != want {
					t.Errorf("mode %v: len = %d, want %d", mode, len(frame), want)
				}
			}
		})
	}
}

func TestEncodeFill(t *testing.T) {
	e := NewEncoder(3, 4)
	heights := []int{0, 2, 9}
	frame := e.Encode(nil, heights, Solid)

	for x := range 3 {
		lit := min(heights[x], 4)
		for y := range 4 {
			got := cell(frame, 4, x, y)
			want := Black
			if y < lit {
				want = White
			}
			if got != want {
				t.Errorf("cell(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestEncodeReusesBuffer(t *testing.T) {
	e := NewEncoder(8, 11)
	buf := make([]byte, 0, e.FrameSize())
	frame := e.Encode(buf, []int{11, 11, 11, 11, 11, 11, 11, 11}, Rainbow)
	if &frame[0] != &buf[:1][0] {
		t.Error("Encode did not reuse a buffer with enough capacity")
	}

	heights := []int{1, 2, 3, 4, 5, 6, 7, 8}
	allocs := testing.AllocsPerRun(100, func() {
		frame = e.Encode(frame, heights, Gradient)
	})
	if allocs > 0 {
		t.Errorf("Encode allocated %.1f times with a reusable buffer", allocs)
	}
}

func TestColumnColor(t *testing.T) {
	e := NewEncoder(8, 11)
	e.Solid = RGB{0, 255, 0}

	tests := []struct {
		name string
		x    int
		mode ColorMode
		want RGB
	}{
		{"Rainbow first column", 0, Rainbow, Wheel(0)},
		{"Rainbow last column", 7, Rainbow, Wheel(255)},
		{"Rainbow middle column", 3, Rainbow, Wheel(109)},
		{"Solid", 5, Solid, RGB{0, 255, 0}},
		{"Gradient first column", 0, Gradient, RGB{0, 0, 255}},
		{"Gradient middle column", 4, Gradient, RGB{145, 0, 110}},
		{"Gradient last column", 7, Gradient, RGB{255, 0, 0}},
		{"Invalid mode falls back to Rainbow", 3, ColorMode(-1), Wheel(109)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ColumnColor(tt.x, tt.mode); got != tt.want {
				t.Errorf("ColumnColor(%d, %v) = %v, want %v", tt.x, tt.mode, got, tt.want)
			}
		})
	}

	single := NewEncoder(1, 1)
	if got := single.ColumnColor(0, Gradient); got != (RGB{0, 0, 255}) {
		t.Errorf("single column gradient = %v", got)
	}
}

func BenchmarkEncode(b *testing.B) {
	e := NewEncoder(8, 11)
	heights := []int{1, 3, 5, 7, 9, 11, 6, 2}
	frame := make([]byte, e.FrameSize())

	b.ReportAllocs()

	for b.Loop() {
		frame = e.Encode(frame, heights, Rainbow)
	}
}

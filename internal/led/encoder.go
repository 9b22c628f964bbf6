// SPDX-License-Identifier: MIT

// Package led renders band heights into the RGB byte layout of the LED
// matrix. Cells are stored column by column, each column bottom to top, three
// bytes per cell; a cell is lit iff its row is below the column's height.
package led

// Encoder renders frames for a Width x Height matrix.
type Encoder struct {
	Width  int
	Height int
	Solid  RGB // color for the Solid mode
}

// NewEncoder creates an encoder with a white solid color.
func NewEncoder(width, height int) *Encoder {
	return &Encoder{Width: width, Height: height, Solid: White}
}

// FrameSize returns the encoded frame length, Width*Height*3.
func (e *Encoder) FrameSize() int {
	return e.Width * e.Height * 3
}

// ColumnColor returns the lit color of column x. Invalid modes render as
// Rainbow.
func (e *Encoder) ColumnColor(x int, mode ColorMode) RGB {
	pos := 0
	if e.Width > 1 {
		pos = 255 * x / (e.Width - 1)
	}
	pos = min(max(pos, 0), 255)

	switch mode {
	case Solid:
		return e.Solid
	case Gradient:
		return RGB{uint8(pos), 0, uint8(255 - pos)}
	default:
		return Wheel(uint8(pos))
	}
}

// Encode renders heights into dst, reusing its capacity, and returns the
// frame. Heights are clamped to [0, Height]; missing columns are dark.
func (e *Encoder) Encode(dst []byte, heights []int, mode ColorMode) []byte {
	size := e.FrameSize()
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	idx := 0
	for x := range e.Width {
		h := 0
		if x < len(heights) {
			h = min(max(heights[x], 0), e.Height)
		}

		c := e.ColumnColor(x, mode)
		for y := range e.Height {
			if y >= h {
				c = Black
			}
			dst[idx] = c.R
			dst[idx+1] = c.G
			dst[idx+2] = c.B
			idx += 3
		}
	}

	return dst
}

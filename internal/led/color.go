// SPDX-License-Identifier: MIT
package led

import (
	"fmt"
	"strings"
)

// RGB is one LED color.
type RGB struct {
	R, G, B uint8
}

// Black is an unlit cell.
var Black = RGB{}

// White is the default solid color.
var White = RGB{255, 255, 255}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorMode selects how columns are colored.
type ColorMode int32

const (
	// Rainbow walks the color wheel across the columns.
	Rainbow ColorMode = iota
	// Solid paints every lit cell the same color.
	Solid
	// Gradient fades from blue on the left to red on the right.
	Gradient

	numColorModes
)

// String returns the configuration name of the mode.
func (m ColorMode) String() string {
	switch m {
	case Rainbow:
		return "rainbow"
	case Solid:
		return "solid"
	case Gradient:
		return "gradient"
	default:
		return fmt.Sprintf("ColorMode(%d)", int32(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m ColorMode) Valid() bool {
	return m >= Rainbow && m < numColorModes
}

// Next returns the mode after m, wrapping back to Rainbow.
func (m ColorMode) Next() ColorMode {
	if !m.Valid() {
		return Rainbow
	}
	return (m + 1) % numColorModes
}

// ParseColorMode converts a mode name (case-insensitive) to a ColorMode. The
// Chinese names of the modes are accepted as well.
// Unknown names return Rainbow together with an error.
func ParseColorMode(name string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rainbow", "彩虹":
		return Rainbow, nil
	case "solid", "单色":
		return Solid, nil
	case "gradient", "渐变":
		return Gradient, nil
	default:
		return Rainbow, fmt.Errorf("unknown color mode %q", name)
	}
}

// Wheel maps pos in [0, 255] onto a hue wheel made of three linear segments
// of 85 steps each.
func Wheel(pos uint8) RGB {
	p := 255 - int(pos)
	switch {
	case p < 85:
		return RGB{uint8(255 - p*3), 0, uint8(p * 3)}
	case p < 170:
		p -= 85
		return RGB{0, uint8(p * 3), uint8(255 - p*3)}
	default:
		p -= 170
		return RGB{uint8(p * 3), uint8(255 - p*3), 0}
	}
}

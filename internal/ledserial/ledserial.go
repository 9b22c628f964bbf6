// SPDX-License-Identifier: MIT

// Package ledserial implements the LED matrix serial protocol.
//
// Commands are ASCII lines terminated by '\n'. A frame is the line
// "FRAME_BEGIN" followed by exactly Width*Height*3 raw RGB bytes with no
// trailing delimiter; the receiver knows the payload length out of band.
//
//	FRAME_BEGIN\n<payload>
//	CLEAR\n
//	FILL r g b\n
//	PIX x y r g b\n
package ledserial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned by ReadCommand for a line that is not a
// protocol command.
var ErrUnknownCommand = errors.New("unknown command")

// Command keywords.
const (
	KeywordFrame = "FRAME_BEGIN"
	KeywordClear = "CLEAR"
	KeywordFill  = "FILL"
	KeywordPixel = "PIX"
)

// Complete protocol lines.
const (
	FrameMarker  = KeywordFrame + "\n" // precedes every frame payload
	ClearMessage = KeywordClear + "\n"
)

// CommandType is a type of command.
type CommandType uint8

const (
	TypeFrame CommandType = iota
	TypeClear
	TypeFill
	TypePixel
)

// String returns a string representation of the command type.
func (t CommandType) String() string {
	switch t {
	case TypeFrame:
		return "frame"
	case TypeClear:
		return "clear"
	case TypeFill:
		return "fill"
	case TypePixel:
		return "pixel"
	default:
		return fmt.Sprintf("CommandType(%d)", t)
	}
}

// Command is a message sent to the controller.
type Command interface {
	// Type returns the type of command.
	Type() CommandType
	// AppendTo appends the wire encoding of the command to dst.
	AppendTo(dst []byte) []byte
}

// FrameCommand carries a full matrix of RGB bytes.
type FrameCommand struct {
	Pix []byte
}

// ClearCommand blanks the matrix.
type ClearCommand struct{}

// FillCommand paints every cell one color.
type FillCommand struct {
	R, G, B uint8
}

// PixelCommand sets one cell.
type PixelCommand struct {
	X, Y    int
	R, G, B uint8
}

func (FrameCommand) Type() CommandType { return TypeFrame }
func (ClearCommand) Type() CommandType { return TypeClear }
func (FillCommand) Type() CommandType  { return TypeFill }
func (PixelCommand) Type() CommandType { return TypePixel }

func (c FrameCommand) AppendTo(dst []byte) []byte { return AppendFrame(dst, c.Pix) }
func (ClearCommand) AppendTo(dst []byte) []byte   { return AppendClear(dst) }
func (c FillCommand) AppendTo(dst []byte) []byte  { return AppendFill(dst, c.R, c.G, c.B) }
func (c PixelCommand) AppendTo(dst []byte) []byte {
	return AppendPixel(dst, c.X, c.Y, c.R, c.G, c.B)
}

// AppendFrame appends the frame marker followed by pix.
func AppendFrame(dst, pix []byte) []byte {
	dst = append(dst, FrameMarker...)
	return append(dst, pix...)
}

// AppendClear appends a CLEAR command.
func AppendClear(dst []byte) []byte {
	return append(dst, ClearMessage...)
}

// AppendFill appends a FILL command.
func AppendFill(dst []byte, r, g, b uint8) []byte {
	dst = append(dst, KeywordFill...)
	dst = appendUints(dst, int(r), int(g), int(b))
	return append(dst, '\n')
}

// AppendPixel appends a PIX command.
func AppendPixel(dst []byte, x, y int, r, g, b uint8) []byte {
	dst = append(dst, KeywordPixel...)
	dst = appendUints(dst, x, y, int(r), int(g), int(b))
	return append(dst, '\n')
}

func appendUints(dst []byte, vs ...int) []byte {
	for _, v := range vs {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(v), 10)
	}
	return dst
}

// WriteCommand writes the encoding of c to w in a single Write call.
func WriteCommand(w io.Writer, c Command) error {
	if _, err := w.Write(c.AppendTo(nil)); err != nil {
		return fmt.Errorf("failed to write %s command: %w", c.Type(), err)
	}
	return nil
}

// ReadContext is the matrix geometry a receiver needs to read frames.
type ReadContext struct {
	// PayloadLen is Width*Height*3.
	PayloadLen int
}

// ReadCommand reads one command from r, as the controller firmware does.
func ReadCommand(r *bufio.Reader, rc ReadContext) (Command, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	switch keyword, args := fields[0], fields[1:]; keyword {
	case KeywordFrame:
		if len(args) != 0 {
			return nil, fmt.Errorf("frame marker has %d arguments", len(args))
		}
		pix := make([]byte, rc.PayloadLen)
		if _, err := io.ReadFull(r, pix); err != nil {
			return nil, fmt.Errorf("failed to read frame payload: %w", err)
		}
		return FrameCommand{Pix: pix}, nil

	case KeywordClear:
		if len(args) != 0 {
			return nil, fmt.Errorf("clear has %d arguments", len(args))
		}
		return ClearCommand{}, nil

	case KeywordFill:
		vs, err := parseArgs(args, 3, 0)
		if err != nil {
			return nil, fmt.Errorf("fill: %w", err)
		}
		return FillCommand{R: uint8(vs[0]), G: uint8(vs[1]), B: uint8(vs[2])}, nil

	case KeywordPixel:
		vs, err := parseArgs(args, 5, 2)
		if err != nil {
			return nil, fmt.Errorf("pix: %w", err)
		}
		return PixelCommand{X: vs[0], Y: vs[1], R: uint8(vs[2]), G: uint8(vs[3]), B: uint8(vs[4])}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, keyword)
	}
}

// parseArgs parses want non-negative integers; all but the first coords
// values must fit a color channel.
func parseArgs(args []string, want, coords int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("want %d arguments, got %d", want, len(args))
	}
	vs := make([]int, want)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, err
		}
		if v < 0 || (i >= coords && v > 255) {
			return nil, fmt.Errorf("argument %d out of range: %d", i, v)
		}
		vs[i] = v
	}
	return vs, nil
}

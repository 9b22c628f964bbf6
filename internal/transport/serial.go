// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"ledspectrum/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// listenPoll bounds how long Listen blocks in a single read, so it notices
// cancellation.
const listenPoll = 100 * time.Millisecond

// maxLineLen caps a controller line that never sees a newline.
const maxLineLen = 4096

// port is the subset of serial.Port the transport uses.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// SerialTransport writes messages to a serial port.
type SerialTransport struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex // serializes writes and Close
	port   port
	closed bool
}

var _ Transport = (*SerialTransport)(nil)
var _ LineListener = (*SerialTransport)(nil)

// openSerial is replaced in tests.
var openSerial = func(name string, mode *serial.Mode) (port, error) {
	return serial.Open(name, mode)
}

// OpenSerial opens the named port at baud, 8N1.
func OpenSerial(name string, baud int) (*SerialTransport, error) {
	p, err := openSerial(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", name)
	}
	return newSerialTransport(name, p), nil
}

func newSerialTransport(name string, p port) *SerialTransport {
	return &SerialTransport{
		name:   name,
		port:   p,
		logger: log.With("component", "serial", "port", name),
	}
}

// Name returns the port name.
func (t *SerialTransport) Name() string { return t.name }

// Send writes p completely. A message is never interleaved with another.
func (t *SerialTransport) Send(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	for len(p) > 0 {
		n, err := t.port.Write(p)
		if err != nil {
			return errors.Wrap(err, "serial write")
		}
		if n == 0 {
			return errors.Wrap(io.ErrShortWrite, "serial write")
		}
		p = p[n:]
	}
	return nil
}

// Close closes the port. Later calls return nil.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.logger.Debug("closing serial port")
	if err := t.port.Close(); err != nil {
		return errors.Wrap(err, "failed to close serial port")
	}
	return nil
}

func (t *SerialTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Listen reads newline-terminated lines from the controller. Reads are not
// serialized with Send; the port handles both directions.
func (t *SerialTransport) Listen(ctx context.Context, fn func(line string)) error {
	if err := t.port.SetReadTimeout(listenPoll); err != nil {
		return errors.Wrap(err, "failed to set read timeout")
	}

	var (
		chunk [256]byte
		line  []byte
	)
	for ctx.Err() == nil {
		n, err := t.port.Read(chunk[:])
		if err != nil {
			// Reads fail once the port is closed during shutdown.
			if ctx.Err() != nil || t.isClosed() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				continue
			}
			return errors.Wrap(err, "serial read")
		}

		line = append(line, chunk[:n]...)
		for {
			i := bytes.IndexByte(line, '\n')
			if i < 0 {
				break
			}
			if s := string(bytes.TrimSpace(line[:i])); s != "" {
				fn(s)
			}
			line = line[i+1:]
		}
		if len(line) > maxLineLen {
			fn(string(bytes.TrimSpace(line)))
			line = line[:0]
		}
	}
	return nil
}

// PortInfo describes a serial port available on the host.
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// ListPorts returns the serial ports on the host, with USB details where the
// platform provides them.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		out := make([]PortInfo, len(details))
		for i, d := range details {
			out[i] = PortInfo{
				Name:    d.Name,
				IsUSB:   d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			}
		}
		return out, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}
	out := make([]PortInfo, len(names))
	for i, n := range names {
		out[i] = PortInfo{Name: n}
	}
	return out, nil
}

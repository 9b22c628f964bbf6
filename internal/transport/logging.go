// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"log/slog"
	"sync"

	"ledspectrum/internal/ledserial"
	"ledspectrum/internal/log"
)

// LoggingTransport implements Transport by logging each message instead of
// sending it. It backs dry runs without a controller attached.
type LoggingTransport struct {
	logger *slog.Logger

	mu       sync.Mutex
	frames   int
	commands int
	closed   bool
}

var _ Transport = (*LoggingTransport)(nil)

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	t := &LoggingTransport{logger: log.With("component", "transport", "kind", "logging")}
	t.logger.Info("using logging transport, no serial port is opened")
	return t
}

// Send logs the message kind and size at debug level.
func (t *LoggingTransport) Send(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if bytes.HasPrefix(p, []byte(ledserial.FrameMarker)) {
		t.frames++
		t.logger.Debug("frame", "n", t.frames, "payload", len(p)-len(ledserial.FrameMarker))
		return nil
	}
	t.commands++
	t.logger.Debug("command", "line", string(bytes.TrimSpace(p)))
	return nil
}

// Counts returns how many frames and other commands have been sent.
func (t *LoggingTransport) Counts() (frames, commands int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames, t.commands
}

// Close logs the totals. Later calls return nil.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.logger.Info("closed", "frames", t.frames, "commands", t.commands)
	return nil
}

// SPDX-License-Identifier: MIT

// Package transport carries encoded protocol messages to the LED controller.
package transport

import "context"

// Transport sends complete protocol messages in order. Implementations are
// safe for concurrent use; Close is idempotent.
type Transport interface {
	Send(p []byte) error
	Close() error
}

// LineListener is implemented by transports that can receive the text lines
// the controller writes back.
type LineListener interface {
	// Listen calls fn for every line until ctx is done or the transport is
	// closed, which both return nil.
	Listen(ctx context.Context, fn func(line string)) error
}

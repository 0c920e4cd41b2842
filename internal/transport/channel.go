// Package transport moves raw protocol bytes over a TCP connection. Two
// implementations of Channel exist: a plain blocking one, and one that runs
// socket I/O on a dedicated goroutine so callers can abandon a request when
// their context is cancelled. Both can have a stream cipher spliced in after
// the wire-encryption handshake.
package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("transport: channel closed")

// Cipher is the subset of a stream cipher the channel needs. crypto/rc4 and
// chacha20 both satisfy it.
type Cipher interface {
	XORKeyStream(dst, src []byte)
}

// Channel is an ordered byte stream with protocol-friendly read helpers.
// Implementations are not safe for concurrent use; the protocol layer
// serializes access.
type Channel interface {
	// Send writes the whole buffer.
	Send(ctx context.Context, buf []byte) error
	// Recv reads exactly n bytes.
	Recv(ctx context.Context, n int) ([]byte, error)
	// RecvAligned reads n bytes and discards the padding that brings the
	// total to a 4-byte boundary.
	RecvAligned(ctx context.Context, n int) ([]byte, error)
	// SetCipher splices stream ciphers into both directions. It applies to
	// bytes sent and received from this point on.
	SetCipher(recv, send Cipher)
	Close() error
}

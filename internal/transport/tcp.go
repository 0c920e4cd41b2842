package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"
)

// TCPChannel is the blocking transport. Context deadlines map onto socket
// deadlines; cancellation is only observed between operations.
type TCPChannel struct {
	conn   net.Conn
	r      *bufio.Reader
	recvC  Cipher
	sendC  Cipher
	closed bool
}

// DialTCP connects to addr ("host:port") using the standard dialer.
func DialTCP(ctx context.Context, addr string) (*TCPChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPChannel(conn), nil
}

// NewTCPChannel wraps an established connection. Used directly by tests that
// drive the protocol over a pipe.
func NewTCPChannel(conn net.Conn) *TCPChannel {
	return &TCPChannel{conn: conn, r: bufio.NewReader(conn)}
}

func (c *TCPChannel) deadline(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	return c.conn.SetDeadline(time.Time{})
}

func (c *TCPChannel) Send(ctx context.Context, buf []byte) error {
	if err := c.deadline(ctx); err != nil {
		return err
	}
	if c.sendC != nil {
		enc := make([]byte, len(buf))
		c.sendC.XORKeyStream(enc, buf)
		buf = enc
	}
	_, err := c.conn.Write(buf)
	return err
}

func (c *TCPChannel) Recv(ctx context.Context, n int) ([]byte, error) {
	if err := c.deadline(ctx); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, err
	}
	if c.recvC != nil {
		c.recvC.XORKeyStream(buf, buf)
	}
	return buf, nil
}

func (c *TCPChannel) RecvAligned(ctx context.Context, n int) ([]byte, error) {
	buf, err := c.Recv(ctx, n+pad4(n))
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *TCPChannel) SetCipher(recv, send Cipher) {
	c.recvC = recv
	c.sendC = send
}

func (c *TCPChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func pad4(n int) int {
	return (4 - n&3) & 3
}

package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
)

// AsyncChannel runs all socket I/O on one reactor goroutine and hands it
// work over a request queue. Callers park on a per-request reply channel
// together with their context, so a cancelled caller returns immediately;
// the connection is then closed, since a half-read packet cannot be resumed.
type AsyncChannel struct {
	conn net.Conn
	reqC chan ioReq
	done chan struct{}
	once sync.Once
}

type ioReq struct {
	send    []byte // write request when non-nil
	n       int    // read size otherwise
	discard int    // alignment padding to read and drop
	cipher  *cipherPair
	reply   chan ioRes
}

type ioRes struct {
	buf []byte
	err error
}

type cipherPair struct {
	recv, send Cipher
}

// DialAsync connects to addr and starts the reactor.
func DialAsync(ctx context.Context, addr string) (*AsyncChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewAsyncChannel(conn), nil
}

// NewAsyncChannel wraps an established connection and starts the reactor.
func NewAsyncChannel(conn net.Conn) *AsyncChannel {
	c := &AsyncChannel{
		conn: conn,
		reqC: make(chan ioReq),
		done: make(chan struct{}),
	}
	go c.reactor()
	return c
}

func (c *AsyncChannel) reactor() {
	r := bufio.NewReader(c.conn)
	var recvC, sendC Cipher
	for {
		select {
		case <-c.done:
			return
		case req := <-c.reqC:
			var res ioRes
			switch {
			case req.cipher != nil:
				recvC, sendC = req.cipher.recv, req.cipher.send
			case req.send != nil:
				buf := req.send
				if sendC != nil {
					enc := make([]byte, len(buf))
					sendC.XORKeyStream(enc, buf)
					buf = enc
				}
				_, res.err = c.conn.Write(buf)
			default:
				buf := make([]byte, req.n+req.discard)
				if _, err := io.ReadFull(r, buf); err != nil {
					res.err = err
				} else {
					if recvC != nil {
						recvC.XORKeyStream(buf, buf)
					}
					res.buf = buf[:req.n]
				}
			}
			req.reply <- res
		}
	}
}

func (c *AsyncChannel) submit(ctx context.Context, req ioReq) (ioRes, error) {
	req.reply = make(chan ioRes, 1)
	select {
	case c.reqC <- req:
	case <-ctx.Done():
		c.Close()
		return ioRes{}, ctx.Err()
	case <-c.done:
		return ioRes{}, ErrClosed
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		c.Close()
		return ioRes{}, ctx.Err()
	case <-c.done:
		return ioRes{}, ErrClosed
	}
}

func (c *AsyncChannel) Send(ctx context.Context, buf []byte) error {
	res, err := c.submit(ctx, ioReq{send: buf})
	if err != nil {
		return err
	}
	return res.err
}

func (c *AsyncChannel) Recv(ctx context.Context, n int) ([]byte, error) {
	res, err := c.submit(ctx, ioReq{n: n})
	if err != nil {
		return nil, err
	}
	return res.buf, res.err
}

func (c *AsyncChannel) RecvAligned(ctx context.Context, n int) ([]byte, error) {
	res, err := c.submit(ctx, ioReq{n: n, discard: pad4(n)})
	if err != nil {
		return nil, err
	}
	return res.buf, res.err
}

// SetCipher queues the cipher swap through the reactor so it lands between
// packets, never inside one.
func (c *AsyncChannel) SetCipher(recv, send Cipher) {
	c.submit(context.Background(), ioReq{cipher: &cipherPair{recv: recv, send: send}})
}

func (c *AsyncChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

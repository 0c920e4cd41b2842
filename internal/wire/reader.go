package wire

import "errors"

// ErrTruncated reports an info buffer that ended inside a field.
var ErrTruncated = errors.New("wire: truncated info buffer")

// Reader walks an isc_info reply buffer. Lengths and integer values inside
// these buffers are little-endian, unlike the surrounding wire. Reads past
// the end set a sticky error instead of panicking; check Err when done.
type Reader struct {
	buf []byte
	pos int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first out-of-bounds read, if any.
func (r *Reader) Err() error { return r.err }

// Len reports the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Byte consumes one tag or item byte.
func (r *Reader) Byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() byte {
	if r.err != nil || r.pos >= len(r.buf) {
		return 0
	}
	return r.buf[r.pos]
}

// Bytes consumes n raw bytes.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// LenU16 consumes a little-endian uint16 length field.
func (r *Reader) LenU16() int {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int(LUint16(b))
}

// IntLE consumes an n-byte little-endian integer value. Info values are
// stored in the smallest width that fits, so n varies per item.
func (r *Reader) IntLE(n int) int64 {
	b := r.take(n)
	if b == nil {
		return 0
	}
	var v int64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | int64(b[i])
	}
	return v
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}

// Package wire implements the primitive encodings of the Firebird wire
// protocol: XDR-style big-endian integers with 4-byte alignment, the
// little-endian ("VAX order") integers used inside info reply buffers, and
// the tagged parameter buffers (DPB, TPB, SPB) sent with requests.
package wire

import "encoding/binary"

// Pad returns the number of zero bytes needed to bring n up to a 4-byte
// boundary.
func Pad(n int) int {
	return (4 - n&3) & 3
}

var padding [3]byte

// AppendUint32 appends v in network byte order.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// AppendInt32 appends v in network byte order.
func AppendInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

// AppendBytes appends b as an XDR opaque: big-endian length, payload, then
// zero padding to a 4-byte boundary.
func AppendBytes(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	dst = append(dst, b...)
	return append(dst, padding[:Pad(len(b))]...)
}

// AppendString appends s as an XDR opaque.
func AppendString(dst []byte, s string) []byte {
	return AppendBytes(dst, []byte(s))
}

// Big-endian accessors for fixed-width fields read off the socket. Callers
// pass slices whose length was already established by the read itself.

func BUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func BUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func BUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func BInt16(b []byte) int16   { return int16(binary.BigEndian.Uint16(b)) }
func BInt32(b []byte) int32   { return int32(binary.BigEndian.Uint32(b)) }
func BInt64(b []byte) int64   { return int64(binary.BigEndian.Uint64(b)) }

// Little-endian accessors for info reply buffers and blob segment headers.

func LUint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func LUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// AppendUint16LE appends v in little-endian order.
func AppendUint16LE(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

// AppendUint32LE appends v in little-endian order.
func AppendUint32LE(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

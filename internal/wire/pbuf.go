package wire

// ParamBuffer builds the tagged parameter blocks Firebird attaches to
// requests: DPBs for attach/create, TPBs for transactions. The layout is a
// version byte followed by tag/length/value triples, with integer values in
// little-endian order.
type ParamBuffer struct {
	buf []byte
}

func NewParamBuffer(version byte) *ParamBuffer {
	return &ParamBuffer{buf: []byte{version}}
}

// AddTag appends a bare option tag with no value (TPB isolation options).
func (p *ParamBuffer) AddTag(tag byte) *ParamBuffer {
	p.buf = append(p.buf, tag)
	return p
}

// AddBytes appends a tag with a length-prefixed value. Values longer than
// 255 bytes cannot be represented and are truncated by the protocol itself,
// so callers chunk them beforehand.
func (p *ParamBuffer) AddBytes(tag byte, v []byte) *ParamBuffer {
	p.buf = append(p.buf, tag, byte(len(v)))
	p.buf = append(p.buf, v...)
	return p
}

// AddString appends a tag with a string value.
func (p *ParamBuffer) AddString(tag byte, v string) *ParamBuffer {
	return p.AddBytes(tag, []byte(v))
}

// AddByte appends a tag with a single-byte value.
func (p *ParamBuffer) AddByte(tag, v byte) *ParamBuffer {
	p.buf = append(p.buf, tag, 1, v)
	return p
}

// AddInt32 appends a tag with a 4-byte little-endian value.
func (p *ParamBuffer) AddInt32(tag byte, v int32) *ParamBuffer {
	p.buf = append(p.buf, tag, 4)
	p.buf = AppendUint32LE(p.buf, uint32(v))
	return p
}

func (p *ParamBuffer) Bytes() []byte {
	return p.buf
}

package fbwire

import (
	"encoding/binary"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okoshi/fbwire/internal/wire"
)

// Column describes one output column (or input parameter) of a prepared
// statement, as reported by the server.
type Column struct {
	Type     uint32
	SubType  int32
	Scale    int32
	Length   int32
	Nullable bool
	Field    string
	Relation string
	Owner    string
	Alias    string
}

// blobRef is the 8-byte blob id a fetch returns in place of blob contents.
// The statement layer resolves it into bytes before rows reach the caller.
type blobRef struct {
	id   []byte
	text bool
}

// ioLength is the wire size of a value of this column, or -1 when the value
// arrives length-prefixed.
func (c *Column) ioLength() int {
	switch c.Type {
	case wire.SQLTypeText:
		return int(c.Length)
	case wire.SQLTypeVarying:
		return -1
	case wire.SQLTypeShort, wire.SQLTypeLong, wire.SQLTypeFloat,
		wire.SQLTypeTime, wire.SQLTypeDate:
		return 4
	case wire.SQLTypeDouble, wire.SQLTypeTimestamp, wire.SQLTypeBlob,
		wire.SQLTypeArray, wire.SQLTypeQuad, wire.SQLTypeInt64, wire.SQLTypeDec64:
		return 8
	case wire.SQLTypeInt128, wire.SQLTypeDec128, wire.SQLTypeDecFixed:
		return 16
	case wire.SQLTypeTimestampTZ:
		return 10
	case wire.SQLTypeTimeTZ:
		return 6
	case wire.SQLTypeBoolean:
		return 1
	default:
		return -1
	}
}

// decode turns the raw wire bytes of a non-null value into a Go value.
func (c *Column) decode(raw []byte) (any, error) {
	switch c.Type {
	case wire.SQLTypeText:
		// CHAR values arrive space-padded to the declared length
		return strings.TrimRight(string(raw), " "), nil
	case wire.SQLTypeVarying:
		return string(raw), nil
	case wire.SQLTypeShort:
		if len(raw) == 4 { // SHORT travels in a 32-bit slot
			return scaledInt(int64(wire.BInt32(raw)), c.Scale), nil
		}
		return scaledInt(int64(wire.BInt16(raw)), c.Scale), nil
	case wire.SQLTypeLong:
		return scaledInt(int64(wire.BInt32(raw)), c.Scale), nil
	case wire.SQLTypeInt64:
		return scaledInt(wire.BInt64(raw), c.Scale), nil
	case wire.SQLTypeInt128:
		v := new(big.Int).SetBytes(raw)
		if raw[0]&0x80 != 0 { // two's complement
			v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(raw)*8)))
		}
		if c.Scale != 0 {
			return decimal.NewFromBigInt(v, c.Scale), nil
		}
		return v, nil
	case wire.SQLTypeFloat:
		return math.Float32frombits(wire.BUint32(raw)), nil
	case wire.SQLTypeDouble:
		return math.Float64frombits(wire.BUint64(raw)), nil
	case wire.SQLTypeBoolean:
		return raw[0] != 0, nil
	case wire.SQLTypeDate:
		return decodeDate(wire.BInt32(raw)), nil
	case wire.SQLTypeTime:
		return decodeTime(wire.BUint32(raw)), nil
	case wire.SQLTypeTimestamp:
		d := decodeDate(wire.BInt32(raw[:4]))
		t := decodeTime(wire.BUint32(raw[4:8]))
		return time.Date(d.Year(), d.Month(), d.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
	case wire.SQLTypeBlob:
		return blobRef{id: append([]byte(nil), raw...), text: c.SubType == 1}, nil
	case wire.SQLTypeDecFixed:
		return decimalFixedToDecimal(raw, c.Scale)
	case wire.SQLTypeDec64:
		return decimal64ToDecimal(raw)
	case wire.SQLTypeDec128:
		return decimal128ToDecimal(raw)
	default:
		return nil, conversionErrorf("cannot decode sql type %d", c.Type)
	}
}

// scaledInt applies the column scale: negative scales are fixed-point
// decimals, zero stays integral.
func scaledInt(v int64, scale int32) any {
	if scale != 0 {
		return decimal.New(v, scale)
	}
	return v
}

// Dates are days since the Modified Julian Day epoch (1858-11-17); times are
// deci-millisecond (1/10000 s) ticks since midnight.

const dateOffset = 678882

func decodeDate(v int32) time.Time {
	nday := v + dateOffset
	century := (4*nday - 1) / 146097
	nday = 4*nday - 1 - 146097*century
	day := nday / 4

	nday = (4*day + 3) / 1461
	day = 4*day + 3 - 1461*nday
	day = (day + 4) / 4

	month := (5*day - 3) / 153
	day = 5*day - 3 - 153*month
	day = (day + 5) / 5
	year := 100*century + nday
	if month < 10 {
		month += 3
	} else {
		month -= 9
		year++
	}
	return time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
}

func decodeTime(ticks uint32) time.Time {
	s := ticks / 10000
	m := s / 60
	h := m / 60
	m %= 60
	s %= 60
	ns := int(ticks%10000) * 100000
	return time.Date(0, time.January, 1, int(h), int(m), int(s), ns, time.UTC)
}

func encodeDate(t time.Time) []byte {
	i := uint32(t.Month()) + 9
	jy := uint32(t.Year()) + i/12 - 1
	jm := i % 12
	c := jy / 100
	j := 146097*c/4 + 1461*(jy-100*c)/4 + (153*jm+2)/5 + uint32(t.Day()) - dateOffset
	return wire.AppendUint32(nil, j)
}

func encodeTime(t time.Time) []byte {
	ticks := uint32(t.Hour()*3600+t.Minute()*60+t.Second())*10000 +
		uint32(t.Nanosecond()/100000)
	return wire.AppendUint32(nil, ticks)
}

// BLR builders.

// calcBLR builds the output message format descriptor sent with op_fetch and
// op_execute2.
func calcBLR(cols []Column) []byte {
	n := len(cols) * 2
	blr := []byte{5, 2, 4, 0, byte(n & 0xFF), byte(n >> 8)}
	for i := range cols {
		blr = append(blr, columnBLR(&cols[i])...)
		blr = append(blr, 7, 0)
	}
	return append(blr, 255, 76)
}

func columnBLR(c *Column) []byte {
	switch c.Type {
	case wire.SQLTypeVarying:
		return []byte{37, byte(c.Length & 0xFF), byte(c.Length >> 8)}
	case wire.SQLTypeText:
		return []byte{14, byte(c.Length & 0xFF), byte(c.Length >> 8)}
	case wire.SQLTypeLong:
		return []byte{8, byte(c.Scale)}
	case wire.SQLTypeShort:
		return []byte{7, byte(c.Scale)}
	case wire.SQLTypeInt64:
		return []byte{16, byte(c.Scale)}
	case wire.SQLTypeInt128, wire.SQLTypeDecFixed:
		return []byte{26, byte(c.Scale)}
	case wire.SQLTypeQuad:
		return []byte{9, byte(c.Scale)}
	case wire.SQLTypeDouble:
		return []byte{27}
	case wire.SQLTypeFloat:
		return []byte{10}
	case wire.SQLTypeDFloat:
		return []byte{11}
	case wire.SQLTypeDate:
		return []byte{12}
	case wire.SQLTypeTime:
		return []byte{13}
	case wire.SQLTypeTimestamp:
		return []byte{35}
	case wire.SQLTypeBlob, wire.SQLTypeArray:
		return []byte{9, 0}
	case wire.SQLTypeBoolean:
		return []byte{23}
	case wire.SQLTypeDec64:
		return []byte{24}
	case wire.SQLTypeDec128:
		return []byte{25}
	case wire.SQLTypeTimeTZ:
		return []byte{28}
	case wire.SQLTypeTimestampTZ:
		return []byte{29}
	default:
		return []byte{9, 0}
	}
}

// Parameter encoding.

// encodedParam is one bound input value: its wire bytes and the BLR typing
// that describes them.
type encodedParam struct {
	data []byte
	blr  []byte
	null bool
}

// encodeParam maps a Go value onto a wire type. Values the server cannot be
// handed directly (blobs) are materialized by the statement layer first.
func encodeParam(v any) (encodedParam, error) {
	switch x := v.(type) {
	case nil:
		// typed as TEXT(1); the null flag makes the payload irrelevant
		return encodedParam{data: []byte{0, 0, 0, 0}, blr: []byte{14, 1, 0}, null: true}, nil
	case string:
		data, blr := textParam([]byte(x))
		return encodedParam{data: data, blr: blr}, nil
	case []byte:
		data, blr := textParam(x)
		return encodedParam{data: data, blr: blr}, nil
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return encodedParam{data: []byte{b, 0, 0, 0}, blr: []byte{23}}, nil
	case int16:
		return encodedParam{data: wire.AppendInt32(nil, int32(x)), blr: []byte{8, 0}}, nil
	case int32:
		return encodedParam{data: wire.AppendInt32(nil, x), blr: []byte{8, 0}}, nil
	case int:
		return encodeParam(int64(x))
	case int64:
		var data []byte
		data = binary.BigEndian.AppendUint64(data, uint64(x))
		return encodedParam{data: data, blr: []byte{16, 0}}, nil
	case float32:
		return encodedParam{data: wire.AppendUint32(nil, math.Float32bits(x)), blr: []byte{10}}, nil
	case float64:
		var data []byte
		data = binary.BigEndian.AppendUint64(data, math.Float64bits(x))
		return encodedParam{data: data, blr: []byte{27}}, nil
	case decimal.Decimal:
		// fixed-point int64 with negative scale
		scale := -x.Exponent()
		data := binary.BigEndian.AppendUint64(nil, uint64(x.CoefficientInt64()))
		return encodedParam{data: data, blr: []byte{16, byte(int8(-scale))}}, nil
	case time.Time:
		data := append(encodeDate(x), encodeTime(x)...)
		return encodedParam{data: data, blr: []byte{35}}, nil
	default:
		return encodedParam{}, conversionErrorf("cannot bind parameter of type %T", v)
	}
}

func textParam(b []byte) (data, blr []byte) {
	n := len(b)
	data = append(data, b...)
	data = append(data, make([]byte, wire.Pad(n))...)
	return data, []byte{14, byte(n & 0xFF), byte(n >> 8)}
}

// paramsToBLR assembles the input message: a BLR descriptor for all
// parameters, and the values preceded by their null bitmap.
func paramsToBLR(params []encodedParam) (values, blr []byte) {
	n := len(params) * 2
	blr = []byte{5, 2, 4, 0, byte(n & 0xFF), byte(n >> 8)}

	bitmapLen := len(params) / 8
	if len(params)%8 != 0 {
		bitmapLen++
	}
	bitmapLen += wire.Pad(bitmapLen)
	bitmap := make([]byte, bitmapLen)
	for i, p := range params {
		if p.null {
			bitmap[i/8] |= 1 << (i % 8)
		}
	}
	values = bitmap

	for _, p := range params {
		values = append(values, p.data...)
		blr = append(blr, p.blr...)
		blr = append(blr, 7, 0)
	}
	blr = append(blr, 255, 76)
	return values, blr
}

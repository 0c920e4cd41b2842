package fbwire

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DECFLOAT(16/34) and scaled INT128 values arrive as IEEE 754-2008 decimal
// interchange formats with densely packed decimal significands.
// https://en.wikipedia.org/wiki/Decimal128_floating-point_format

// dpdToInt decodes one 10-bit DPD declet into its 3-digit value.
func dpdToInt(dpd uint16) (uint16, error) {
	bit := func(mask uint16) uint16 {
		if dpd&mask != 0 {
			return 1
		}
		return 0
	}
	var b [10]uint16
	for i := 0; i < 10; i++ {
		b[i] = bit(1 << i)
	}

	var d [3]uint16
	switch {
	case b[3] == 0:
		d[2] = b[9]*4 + b[8]*2 + b[7]
		d[1] = b[6]*4 + b[5]*2 + b[4]
		d[0] = b[2]*4 + b[1]*2 + b[0]
	case b[3] == 1 && b[2] == 0 && b[1] == 0:
		d[2] = b[9]*4 + b[8]*2 + b[7]
		d[1] = b[6]*4 + b[5]*2 + b[4]
		d[0] = 8 + b[0]
	case b[3] == 1 && b[2] == 0 && b[1] == 1:
		d[2] = b[9]*4 + b[8]*2 + b[7]
		d[1] = 8 + b[4]
		d[0] = b[6]*4 + b[5]*2 + b[0]
	case b[3] == 1 && b[2] == 1 && b[1] == 0:
		d[2] = 8 + b[7]
		d[1] = b[6]*4 + b[5]*2 + b[4]
		d[0] = b[9]*4 + b[8]*2 + b[0]
	case b[6] == 0 && b[5] == 0 && b[3] == 1 && b[2] == 1 && b[1] == 1:
		d[2] = 8 + b[7]
		d[1] = 8 + b[4]
		d[0] = b[9]*4 + b[8]*2 + b[0]
	case b[6] == 0 && b[5] == 1 && b[3] == 1 && b[2] == 1 && b[1] == 1:
		d[2] = 8 + b[7]
		d[1] = b[9]*4 + b[8]*2 + b[4]
		d[0] = 8 + b[0]
	case b[6] == 1 && b[5] == 0 && b[3] == 1 && b[2] == 1 && b[1] == 1:
		d[2] = b[9]*4 + b[8]*2 + b[7]
		d[1] = 8 + b[4]
		d[0] = 8 + b[0]
	case b[6] == 1 && b[5] == 1 && b[3] == 1 && b[2] == 1 && b[1] == 1:
		d[2] = 8 + b[7]
		d[1] = 8 + b[4]
		d[0] = 8 + b[0]
	default:
		return 0, conversionErrorf("cannot decode dpd declet %#x", dpd)
	}
	return d[2]*100 + d[1]*10 + d[0], nil
}

// calcSignificand unpacks numBits of DPD declets below an integer prefix.
func calcSignificand(prefix int64, dpdBits *big.Int, numBits int) (*big.Int, error) {
	numSegments := numBits / 10
	segments := make([]uint16, numSegments)
	bits := new(big.Int).Set(dpdBits)
	mask := big.NewInt(0x3FF)
	for i := 0; i < numSegments; i++ {
		segments[i] = uint16(new(big.Int).And(bits, mask).Uint64())
		bits.Rsh(bits, 10)
	}

	v := big.NewInt(prefix)
	thousand := big.NewInt(1000)
	for i := numSegments - 1; i >= 0; i-- {
		declet, err := dpdToInt(segments[i])
		if err != nil {
			return nil, err
		}
		v.Mul(v, thousand)
		v.Add(v, big.NewInt(int64(declet)))
	}
	return v, nil
}

// decimal128Parts splits a 16-byte decimal128 into sign, significand digits
// and exponent. NaN and infinities are reported as conversion errors.
func decimal128Parts(b []byte) (sign int, digits *big.Int, exponent int32, err error) {
	if b[0]&0x80 == 0x80 {
		sign = 1
	}
	cf := uint32(b[0]&0x7F)<<10 + uint32(b[1])<<2 + uint32(b[2]>>6)

	var prefix int64
	switch {
	case cf&0x1F000 == 0x1F000:
		return 0, nil, 0, conversionErrorf("decimal is NaN")
	case cf&0x1F000 == 0x1E000:
		if sign == 1 {
			return 0, nil, 0, conversionErrorf("decimal is -Inf")
		}
		return 0, nil, 0, conversionErrorf("decimal is Inf")
	case cf&0x18000 == 0x00000:
		exponent = int32(cf & 0x0FFF)
		prefix = int64((cf >> 12) & 0x07)
	case cf&0x18000 == 0x08000:
		exponent = 0x1000 + int32(cf&0x0FFF)
		prefix = int64((cf >> 12) & 0x07)
	case cf&0x18000 == 0x10000:
		exponent = 0x2000 + int32(cf&0x0FFF)
		prefix = int64((cf >> 12) & 0x07)
	case cf&0x1E000 == 0x18000:
		exponent = int32(cf & 0x0FFF)
		prefix = int64(8 + (cf>>12)&0x01)
	case cf&0x1E000 == 0x1A000:
		exponent = 0x1000 + int32(cf&0x0FFF)
		prefix = int64(8 + (cf>>12)&0x01)
	case cf&0x1E000 == 0x1C000:
		exponent = 0x2000 + int32(cf&0x0FFF)
		prefix = int64(8 + (cf>>12)&0x01)
	default:
		return 0, nil, 0, conversionErrorf("malformed decimal128")
	}
	exponent -= 6176

	dpdBits := new(big.Int).SetBytes(b)
	mask, _ := new(big.Int).SetString("3fffffffffffffffffffffffffff", 16)
	dpdBits.And(dpdBits, mask)
	digits, err = calcSignificand(prefix, dpdBits, 110)
	if err != nil {
		return 0, nil, 0, err
	}
	return sign, digits, exponent, nil
}

func decimalFixedToDecimal(b []byte, scale int32) (decimal.Decimal, error) {
	sign, digits, _, err := decimal128Parts(b)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if sign != 0 {
		digits.Neg(digits)
	}
	return decimal.NewFromBigInt(digits, scale), nil
}

func decimal64ToDecimal(b []byte) (decimal.Decimal, error) {
	sign := 0
	if b[0]&0x80 == 0x80 {
		sign = 1
	}
	cf := (uint32(b[0]) >> 2) & 0x1F
	exponent := int32(b[0]&3)<<6 + (int32(b[1])>>2)&0x3F

	dpdBits := new(big.Int).SetBytes(b)
	mask, _ := new(big.Int).SetString("3ffffffffffff", 16)
	dpdBits.And(dpdBits, mask)

	var prefix int64
	switch {
	case cf == 0x1F:
		return decimal.Decimal{}, conversionErrorf("decimal is NaN")
	case cf == 0x1E:
		if sign == 1 {
			return decimal.Decimal{}, conversionErrorf("decimal is -Inf")
		}
		return decimal.Decimal{}, conversionErrorf("decimal is Inf")
	case cf&0x18 == 0x00:
		prefix = int64(cf & 0x07)
	case cf&0x18 == 0x08:
		exponent += 0x100
		prefix = int64(cf & 0x07)
	case cf&0x18 == 0x10:
		exponent += 0x200
		prefix = int64(cf & 0x07)
	case cf&0x1E == 0x18:
		prefix = int64(8 + cf&1)
	case cf&0x1E == 0x1A:
		exponent += 0x100
		prefix = int64(8 + cf&1)
	case cf&0x1E == 0x1C:
		exponent += 0x200
		prefix = int64(8 + cf&1)
	default:
		return decimal.Decimal{}, conversionErrorf("malformed decimal64")
	}

	digits, err := calcSignificand(prefix, dpdBits, 50)
	if err != nil {
		return decimal.Decimal{}, err
	}
	exponent -= 398
	if sign != 0 {
		digits.Neg(digits)
	}
	return decimal.NewFromBigInt(digits, exponent), nil
}

func decimal128ToDecimal(b []byte) (decimal.Decimal, error) {
	sign, digits, exponent, err := decimal128Parts(b)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if sign != 0 {
		digits.Neg(digits)
	}
	return decimal.NewFromBigInt(digits, exponent), nil
}

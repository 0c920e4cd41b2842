package fbwire

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestDPDToInt(t *testing.T) {
	cases := []struct {
		dpd  uint16
		want uint16
	}{
		{0x000, 0},
		{0x007, 7},
		{0x008, 8},
		{0x009, 9},
		{0x0A3, 123},
		{0x3F7, 777},
		{0x0FF, 999},
	}
	for _, tc := range cases {
		got, err := dpdToInt(tc.dpd)
		if err != nil {
			t.Fatalf("dpdToInt(%#x): %v", tc.dpd, err)
		}
		if got != tc.want {
			t.Errorf("dpdToInt(%#x) = %d, want %d", tc.dpd, got, tc.want)
		}
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDecimal64(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2238000000000001", "1"},
		{"22300000000049c5", "123.45"},
		{"a2300000000049c5", "-123.45"},
		{"2238000000000000", "0"},
	}
	for _, tc := range cases {
		d, err := decimal64ToDecimal(mustHex(t, tc.raw))
		if err != nil {
			t.Fatalf("decimal64ToDecimal(%s): %v", tc.raw, err)
		}
		if got := d.String(); got != tc.want {
			t.Errorf("decimal64ToDecimal(%s) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestDecimal64SpecialValues(t *testing.T) {
	for _, raw := range []string{
		"7c00000000000000", // NaN
		"7800000000000000", // +Inf
		"f800000000000000", // -Inf
	} {
		if _, err := decimal64ToDecimal(mustHex(t, raw)); !errors.Is(err, ErrConversion) {
			t.Errorf("decimal64ToDecimal(%s) err = %v, want ErrConversion", raw, err)
		}
	}
}

func TestDecimal128(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"22080000000000000000000000000001", "1"},
		{"220800000000000000000000000049c5", "12345"},
		{"a20800000000000000000000000049c5", "-12345"},
	}
	for _, tc := range cases {
		d, err := decimal128ToDecimal(mustHex(t, tc.raw))
		if err != nil {
			t.Fatalf("decimal128ToDecimal(%s): %v", tc.raw, err)
		}
		if got := d.String(); got != tc.want {
			t.Errorf("decimal128ToDecimal(%s) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestDecimalFixed(t *testing.T) {
	raw := mustHex(t, "220800000000000000000000000049c5")
	d, err := decimalFixedToDecimal(raw, -2)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.String(); got != "123.45" {
		t.Errorf("decimalFixedToDecimal = %s, want 123.45", got)
	}
}

package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestAppendBytesPadding(t *testing.T) {
	cases := []struct {
		in   []byte
		want []byte
	}{
		{nil, []byte{0, 0, 0, 0}},
		{[]byte{0xAA}, []byte{0, 0, 0, 1, 0xAA, 0, 0, 0}},
		{[]byte{1, 2, 3, 4}, []byte{0, 0, 0, 4, 1, 2, 3, 4}},
		{[]byte{1, 2, 3, 4, 5}, []byte{0, 0, 0, 5, 1, 2, 3, 4, 5, 0, 0, 0}},
	}
	for _, c := range cases {
		got := AppendBytes(nil, c.in)
		if !bytes.Equal(got, c.want) {
			t.Errorf("AppendBytes(%v) = %v, want %v", c.in, got, c.want)
		}
		if len(got)%4 != 0 {
			t.Errorf("AppendBytes(%v) not 4-aligned: len %d", c.in, len(got))
		}
	}
}

func TestPad(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 5: 3} {
		if got := Pad(n); got != want {
			t.Errorf("Pad(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestReaderWalk(t *testing.T) {
	// item, LE u16 length, LE value
	buf := []byte{
		InfoSQLStmtType, 4, 0, 1, 0, 0, 0,
		InfoEnd,
	}
	r := NewReader(buf)
	if item := r.Byte(); item != InfoSQLStmtType {
		t.Fatalf("item = %d, want %d", item, InfoSQLStmtType)
	}
	ln := r.LenU16()
	if ln != 4 {
		t.Fatalf("len = %d, want 4", ln)
	}
	if v := r.IntLE(ln); v != 1 {
		t.Fatalf("value = %d, want 1", v)
	}
	if item := r.Byte(); item != InfoEnd {
		t.Fatalf("trailer = %d, want %d", item, InfoEnd)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{InfoSQLStmtType, 4, 0, 1})
	r.Byte()
	ln := r.LenU16()
	r.IntLE(ln) // runs past the end
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", r.Err())
	}
	// sticky: further reads stay zero without panicking
	if v := r.Byte(); v != 0 {
		t.Fatalf("read after error = %d, want 0", v)
	}
}

func TestParamBufferLayout(t *testing.T) {
	got := NewParamBuffer(DPBVersion1).
		AddString(DPBLcCtype, "UTF8").
		AddInt32(DPBSQLDialect, 3).
		AddByte(DPBForceWrite, 1).
		Bytes()
	want := []byte{
		DPBVersion1,
		DPBLcCtype, 4, 'U', 'T', 'F', '8',
		DPBSQLDialect, 4, 3, 0, 0, 0,
		DPBForceWrite, 1, 1,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("dpb = %v, want %v", got, want)
	}
}

func TestParamBufferBareTags(t *testing.T) {
	got := NewParamBuffer(TPBVersion3).
		AddTag(TPBWrite).
		AddTag(TPBWait).
		AddTag(TPBReadCommitted).
		AddTag(TPBRecVersion).
		AddInt32(TPBLockTimeout, 10).
		Bytes()
	want := []byte{
		TPBVersion3, TPBWrite, TPBWait, TPBReadCommitted, TPBRecVersion,
		TPBLockTimeout, 4, 10, 0, 0, 0,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("tpb = %v, want %v", got, want)
	}
}

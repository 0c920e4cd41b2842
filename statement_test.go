package fbwire

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okoshi/fbwire/internal/wire"
)

func testConn(reply []byte) *Connection {
	p, _ := scriptedProtocol(reply)
	return &Connection{p: p, cfg: &Config{}}
}

func TestStatementClosedErrors(t *testing.T) {
	ctx := context.Background()
	st := &Statement{conn: testConn(nil), closed: true}

	if _, err := st.Execute(ctx); !errors.Is(err, ErrStatementClosed) {
		t.Errorf("Execute err = %v, want ErrStatementClosed", err)
	}
	if _, err := st.Query(ctx); !errors.Is(err, ErrStatementClosed) {
		t.Errorf("Query err = %v, want ErrStatementClosed", err)
	}
	if err := st.Close(ctx); err != nil {
		t.Errorf("double Close err = %v, want nil", err)
	}
}

func TestStatementOnClosedConnection(t *testing.T) {
	conn := testConn(nil)
	conn.closed = true
	st := &Statement{conn: conn}

	if _, err := st.Execute(context.Background()); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Execute err = %v, want ErrConnectionClosed", err)
	}
}

func TestStatementOnEndedTransaction(t *testing.T) {
	conn := testConn(nil)
	tx := &Transaction{conn: conn, closed: true}
	st := &Statement{conn: conn, tx: tx}

	if _, err := st.Execute(context.Background()); !errors.Is(err, ErrTransactionClosed) {
		t.Errorf("Execute err = %v, want ErrTransactionClosed", err)
	}
}

func TestStatementArityMismatch(t *testing.T) {
	st := &Statement{conn: testConn(nil), numInputs: 2}

	_, err := st.Execute(context.Background(), "only one")
	if !errors.Is(err, ErrParamCount) {
		t.Errorf("Execute err = %v, want ErrParamCount", err)
	}
}

func TestRowsScanBeforeNext(t *testing.T) {
	r := &Rows{}
	var s string
	if err := r.Scan(&s); !errors.Is(err, ErrRowsClosed) {
		t.Errorf("Scan err = %v, want ErrRowsClosed", err)
	}
	if _, err := r.Values(); !errors.Is(err, ErrRowsClosed) {
		t.Errorf("Values err = %v, want ErrRowsClosed", err)
	}
}

func TestRowsBufferedSingleton(t *testing.T) {
	ctx := context.Background()
	st := &Statement{conn: testConn(nil)}
	r := &Rows{
		st:   st,
		cols: []Column{{Field: "A"}, {Field: "B"}},
		buf:  [][]any{{int64(1), "x"}},
		eof:  true,
	}

	if !r.Next(ctx) {
		t.Fatalf("Next = false, err = %v", r.Err())
	}
	var n int64
	var s string
	if err := r.Scan(&n, &s); err != nil {
		t.Fatal(err)
	}
	if n != 1 || s != "x" {
		t.Errorf("scanned (%d, %q), want (1, x)", n, s)
	}
	if r.Next(ctx) {
		t.Error("Next = true after last row")
	}
	if err := r.Err(); err != nil {
		t.Errorf("Err = %v", err)
	}
}

func TestRowsTypedGetters(t *testing.T) {
	ctx := context.Background()
	r := &Rows{
		st:   &Statement{conn: testConn(nil)},
		cols: []Column{{Field: "N"}, {Field: "S"}, {Field: "NOPE"}},
		buf:  [][]any{{int64(41), "x", nil}},
		eof:  true,
	}
	if !r.Next(ctx) {
		t.Fatalf("Next = false, err = %v", r.Err())
	}

	if n, err := r.GetInt64(0); err != nil || n != 41 {
		t.Errorf("GetInt64 = (%d, %v), want 41", n, err)
	}
	if s, err := r.GetString(1); err != nil || s != "x" {
		t.Errorf("GetString = (%q, %v), want x", s, err)
	}
	if _, err := r.GetString(2); !errors.Is(err, ErrNullValue) {
		t.Errorf("GetString(null) err = %v, want ErrNullValue", err)
	}
	if _, err := r.GetInt64(9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("GetInt64(9) err = %v, want ErrOutOfRange", err)
	}
	if _, err := r.GetBool(1); !errors.Is(err, ErrConversion) {
		t.Errorf("GetBool(string) err = %v, want ErrConversion", err)
	}
}

func TestPrepareFailureDropsHandle(t *testing.T) {
	var reply []byte
	reply = okResponse(reply, 9) // allocate
	reply = responseHeader(reply)
	reply = bu32(reply, wire.ArgGDS)
	reply = bu32(reply, 335544334)
	reply = bu32(reply, wire.ArgString)
	reply = bop(reply, []byte("xyz"))
	reply = bu32(reply, wire.ArgEnd)
	reply = okResponse(reply, 0) // drop of the failed statement

	conn := testConn(reply)
	_, err := prepare(context.Background(), conn, 0, "bogus", false)
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ServerError", err)
	}
	sent := conn.p.ch.(*scriptChannel).sent
	free := bu32(bu32(bu32(nil, wire.OpFreeStatement), 9), wire.DSQLDrop)
	if !bytes.Contains(sent, free) {
		t.Error("failed prepare did not drop the statement handle")
	}
}

func TestRowsContinuePastUndecodableRow(t *testing.T) {
	ctx := context.Background()
	decErr := conversionErrorf("cannot decode sql type %d", wire.SQLTypeTimeTZ)
	r := &Rows{
		st:   &Statement{conn: testConn(nil)},
		cols: []Column{{Field: "T"}, {Field: "N"}},
		buf:  [][]any{{decErr, int64(1)}, {nil, int64(2)}},
		eof:  true,
	}

	if !r.Next(ctx) {
		t.Fatalf("Next = false, err = %v", r.Err())
	}
	var tv, nv any
	if err := r.Scan(&tv, &nv); !errors.Is(err, ErrConversion) {
		t.Errorf("Scan err = %v, want ErrConversion", err)
	}
	if _, err := r.Value(0); !errors.Is(err, ErrConversion) {
		t.Errorf("Value(0) err = %v, want ErrConversion", err)
	}
	if _, err := r.Values(); !errors.Is(err, ErrConversion) {
		t.Errorf("Values err = %v, want ErrConversion", err)
	}
	// The good column of the bad row is still readable.
	if n, err := r.GetInt64(1); err != nil || n != 1 {
		t.Errorf("GetInt64(1) = (%d, %v), want 1", n, err)
	}

	if !r.Next(ctx) {
		t.Fatalf("Next past bad row = false, err = %v", r.Err())
	}
	if n, err := r.GetInt64(1); err != nil || n != 2 {
		t.Errorf("GetInt64(1) = (%d, %v), want 2", n, err)
	}
}

func TestScanNullIntoValue(t *testing.T) {
	var s string
	if err := assignValue(&s, nil); !errors.Is(err, ErrNullValue) {
		t.Errorf("err = %v, want ErrNullValue", err)
	}
	var v any = "sentinel"
	if err := assignValue(&v, nil); err != nil || v != nil {
		t.Errorf("assignValue(*any, nil) = (%v, %v), want nil", v, err)
	}
}

func TestScanConversions(t *testing.T) {
	cases := []struct {
		src  any
		dest any
		want any
	}{
		{int16(7), new(int64), int64(7)},
		{int32(7), new(int), 7},
		{int64(7), new(int32), int32(7)},
		{"hi", new(string), "hi"},
		{[]byte("hi"), new(string), "hi"},
		{"hi", new([]byte), []byte("hi")},
		{true, new(bool), true},
		{float32(1.5), new(float64), 1.5},
		{int32(3), new(float64), 3.0},
		{decimal.New(12345, -2), new(string), "123.45"},
	}
	for _, tc := range cases {
		if err := assignValue(tc.dest, tc.src); err != nil {
			t.Errorf("assignValue(%T, %v): %v", tc.dest, tc.src, err)
			continue
		}
		var got any
		switch d := tc.dest.(type) {
		case *int:
			got = *d
		case *int32:
			got = *d
		case *int64:
			got = *d
		case *string:
			got = *d
		case *[]byte:
			got = string(*d)
			tc.want = string(tc.want.([]byte))
		case *bool:
			got = *d
		case *float64:
			got = *d
		}
		if got != tc.want {
			t.Errorf("assignValue(%T, %v) = %v, want %v", tc.dest, tc.src, got, tc.want)
		}
	}
}

func TestScanOutOfRange(t *testing.T) {
	var v int16
	if err := assignValue(&v, int64(1<<20)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}

func TestScanBadConversion(t *testing.T) {
	var v time.Time
	if err := assignValue(&v, "not a time"); !errors.Is(err, ErrConversion) {
		t.Errorf("err = %v, want ErrConversion", err)
	}
	var b bool
	if err := assignValue(&b, int64(1)); !errors.Is(err, ErrConversion) {
		t.Errorf("err = %v, want ErrConversion", err)
	}
}

func TestScanDecimalToString(t *testing.T) {
	var s string
	if err := assignValue(&s, decimal.New(105, -1)); err != nil {
		t.Fatal(err)
	}
	if s != "10.5" {
		t.Errorf("s = %q, want 10.5", s)
	}
}

package fbwire

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okoshi/fbwire/internal/wire"
)

// Rows is a forward-only cursor over a statement's result set. Rows are
// fetched from the server in batches; Next drives the batching.
type Rows struct {
	st      *Statement
	cols    []Column
	blr     []byte // nil when there is no server-side cursor
	buf     [][]any
	idx     int
	cur     []any
	eof     bool
	closed  bool
	err     error
	ownStmt bool
}

// Columns describes the result set.
func (r *Rows) Columns() []Column {
	cols := make([]Column, len(r.cols))
	copy(cols, r.cols)
	return cols
}

// fetch pulls the next batch from the server and materializes any blob
// references it contains.
func (r *Rows) fetch(ctx context.Context) error {
	r.st.conn.mu.Lock()
	defer r.st.conn.mu.Unlock()
	if r.st.conn.closed {
		return ErrConnectionClosed
	}
	p := r.st.conn.p
	if err := p.opFetch(ctx, r.st.handle, r.blr); err != nil {
		return err
	}
	rows, more, err := p.opFetchResponse(ctx, r.cols)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := r.st.resolveBlobs(ctx, row); err != nil {
			return err
		}
	}
	r.buf = rows
	r.idx = 0
	if !more {
		r.eof = true
		if err := p.opFreeStatement(ctx, r.st.handle, wire.DSQLClose); err != nil {
			return err
		}
	}
	return nil
}

// Next advances to the next row. It returns false at the end of the result
// set or on error; check Err afterwards.
func (r *Rows) Next(ctx context.Context) bool {
	if r.closed || r.err != nil {
		return false
	}
	for r.idx >= len(r.buf) {
		if r.eof {
			r.err = r.finish(ctx)
			return false
		}
		if err := r.fetch(ctx); err != nil {
			r.err = err
			return false
		}
	}
	r.cur = r.buf[r.idx]
	r.idx++
	return true
}

// Err reports the error, if any, that stopped Next.
func (r *Rows) Err() error {
	return r.err
}

// Values returns the current row as decoded Go values.
func (r *Rows) Values() ([]any, error) {
	if r.cur == nil {
		return nil, ErrRowsClosed
	}
	for i, v := range r.cur {
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
	}
	row := make([]any, len(r.cur))
	copy(row, r.cur)
	return row, nil
}

// Scan copies the current row's columns into dest, converting where the
// destination type asks for it.
func (r *Rows) Scan(dest ...any) error {
	if r.cur == nil {
		return ErrRowsClosed
	}
	if len(dest) != len(r.cur) {
		return conversionErrorf("scan expects %d destinations, got %d", len(r.cur), len(dest))
	}
	for i, d := range dest {
		if err := assignValue(d, r.cur[i]); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return nil
}

// finish releases server resources once the cursor is exhausted or closed.
// The cursor itself is already closed at this point.
func (r *Rows) finish(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cur = nil
	if !r.ownStmt {
		return nil
	}
	return r.st.Close(ctx)
}

// Close releases the cursor and, for rows returned by Query helpers, drops
// the underlying statement.
func (r *Rows) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	if r.blr != nil && !r.eof && !r.st.conn.closed {
		r.st.conn.mu.Lock()
		err := r.st.conn.p.opFreeStatement(ctx, r.st.handle, wire.DSQLClose)
		r.st.conn.mu.Unlock()
		if err != nil {
			return err
		}
		r.eof = true
	}
	return r.finish(ctx)
}

// Value returns column i of the current row undecorated.
func (r *Rows) Value(i int) (any, error) {
	if r.cur == nil {
		return nil, ErrRowsClosed
	}
	if i < 0 || i >= len(r.cur) {
		return nil, fmt.Errorf("%w: column %d of %d", ErrOutOfRange, i, len(r.cur))
	}
	if err, ok := r.cur[i].(error); ok {
		return nil, err
	}
	return r.cur[i], nil
}

func getAs[T any](r *Rows, i int) (T, error) {
	var out T
	v, err := r.Value(i)
	if err != nil {
		return out, err
	}
	if v == nil {
		return out, fmt.Errorf("%w: column %d", ErrNullValue, i)
	}
	if err := assignValue(&out, v); err != nil {
		return out, err
	}
	return out, nil
}

// Typed column accessors. NULL in any of them is an error; use Value or scan
// into a pointer when NULL is expected.

func (r *Rows) GetString(i int) (string, error)           { return getAs[string](r, i) }
func (r *Rows) GetBytes(i int) ([]byte, error)            { return getAs[[]byte](r, i) }
func (r *Rows) GetBool(i int) (bool, error)               { return getAs[bool](r, i) }
func (r *Rows) GetInt64(i int) (int64, error)             { return getAs[int64](r, i) }
func (r *Rows) GetFloat64(i int) (float64, error)         { return getAs[float64](r, i) }
func (r *Rows) GetTime(i int) (time.Time, error)          { return getAs[time.Time](r, i) }
func (r *Rows) GetDecimal(i int) (decimal.Decimal, error) { return getAs[decimal.Decimal](r, i) }

// assignValue converts a decoded column value into the destination pointer.
// NULL only fits an *any destination. A column whose value could not be
// decoded carries the decode error instead of a value.
func assignValue(dest, v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	if v == nil {
		if d, ok := dest.(*any); ok {
			*d = nil
			return nil
		}
		return fmt.Errorf("%w: scan target %T", ErrNullValue, dest)
	}
	switch d := dest.(type) {
	case *any:
		*d = v
		return nil
	case *string:
		switch s := v.(type) {
		case string:
			*d = s
			return nil
		case []byte:
			*d = string(s)
			return nil
		default:
			*d = fmt.Sprint(v)
			return nil
		}
	case *[]byte:
		switch s := v.(type) {
		case []byte:
			*d = s
			return nil
		case string:
			*d = []byte(s)
			return nil
		}
	case *bool:
		if b, ok := v.(bool); ok {
			*d = b
			return nil
		}
	case *int16:
		n, err := valueToInt64(v)
		if err != nil {
			return err
		}
		if n < -(1<<15) || n >= 1<<15 {
			return fmt.Errorf("%w: %d does not fit int16", ErrOutOfRange, n)
		}
		*d = int16(n)
		return nil
	case *int32:
		n, err := valueToInt64(v)
		if err != nil {
			return err
		}
		if n < -(1<<31) || n >= 1<<31 {
			return fmt.Errorf("%w: %d does not fit int32", ErrOutOfRange, n)
		}
		*d = int32(n)
		return nil
	case *int:
		n, err := valueToInt64(v)
		if err != nil {
			return err
		}
		*d = int(n)
		return nil
	case *int64:
		n, err := valueToInt64(v)
		if err != nil {
			return err
		}
		*d = n
		return nil
	case *float32:
		f, err := valueToFloat64(v)
		if err != nil {
			return err
		}
		*d = float32(f)
		return nil
	case *float64:
		f, err := valueToFloat64(v)
		if err != nil {
			return err
		}
		*d = f
		return nil
	case *decimal.Decimal:
		switch n := v.(type) {
		case decimal.Decimal:
			*d = n
			return nil
		case int16:
			*d = decimal.NewFromInt(int64(n))
			return nil
		case int32:
			*d = decimal.NewFromInt(int64(n))
			return nil
		case int64:
			*d = decimal.NewFromInt(n)
			return nil
		case float64:
			*d = decimal.NewFromFloat(n)
			return nil
		}
	case *time.Time:
		if t, ok := v.(time.Time); ok {
			*d = t
			return nil
		}
	}
	return conversionErrorf("cannot scan %T into %T", v, dest)
}

func valueToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case decimal.Decimal:
		if !n.IsInteger() {
			return 0, conversionErrorf("decimal %s is not an integer", n)
		}
		return n.IntPart(), nil
	}
	return 0, conversionErrorf("cannot convert %T to integer", v)
}

func valueToFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, nil
	}
	return 0, conversionErrorf("cannot convert %T to float", v)
}

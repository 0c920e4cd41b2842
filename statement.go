package fbwire

import (
	"context"
	"fmt"

	"github.com/okoshi/fbwire/internal/wire"
)

// Statement is a prepared statement bound to one transaction. It can be
// executed repeatedly with different parameters until closed.
type Statement struct {
	conn        *Connection
	tx          *Transaction // nil for the connection's autocommit helpers
	transHandle int32
	handle      int32
	stmtType    uint32
	cols        []Column
	numInputs   int
	autocommit  bool
	closed      bool
}

// prepare allocates and describes a statement. Callers hold conn.mu.
func prepare(ctx context.Context, c *Connection, transHandle int32, query string, autocommit bool) (*Statement, error) {
	p := c.p
	if err := p.opAllocateStatement(ctx); err != nil {
		return nil, err
	}
	// Under lazy send the allocate reply is deferred and arrives in front of
	// the prepare reply.
	handle := int32(-1)
	if p.lazy() {
		p.lazyCount++
	} else {
		res, err := p.opResponse(ctx)
		if err != nil {
			return nil, err
		}
		handle = res.handle
	}

	// From here on the server holds an allocated handle; drop it if the
	// prepare doesn't complete. Before the deferred allocate reply is
	// drained the handle is still unknown and cannot be freed.
	fail := func(err error) (*Statement, error) {
		if handle >= 0 {
			if ferr := p.opFreeStatement(ctx, handle, wire.DSQLDrop); ferr != nil {
				p.log.Warn().Err(ferr).Msg("drop of failed statement")
			}
		}
		return nil, err
	}

	if err := p.opPrepareStatement(ctx, handle, transHandle, query); err != nil {
		return fail(err)
	}
	if p.lazy() && p.lazyCount > 0 {
		p.lazyCount--
		res, err := p.opResponse(ctx)
		if err != nil {
			return fail(err)
		}
		handle = res.handle
	}
	res, err := p.opResponse(ctx)
	if err != nil {
		return fail(err)
	}
	stmtType, cols, err := p.parseDescription(ctx, res.buf, handle)
	if err != nil {
		return fail(err)
	}
	numInputs, err := p.paramCount(ctx, handle)
	if err != nil {
		return fail(err)
	}

	return &Statement{
		conn:        c,
		transHandle: transHandle,
		handle:      handle,
		stmtType:    stmtType,
		cols:        cols,
		numInputs:   numInputs,
		autocommit:  autocommit,
	}, nil
}

// Columns describes the statement's output.
func (s *Statement) Columns() []Column {
	cols := make([]Column, len(s.cols))
	copy(cols, s.cols)
	return cols
}

// NumInput reports how many input parameters the statement takes.
func (s *Statement) NumInput() int {
	return s.numInputs
}

// IsSelect reports whether executing the statement opens a cursor.
func (s *Statement) IsSelect() bool {
	return s.stmtType == wire.StmtSelect || s.stmtType == wire.StmtSelectForUpd
}

func (s *Statement) usable() error {
	if s.closed {
		return ErrStatementClosed
	}
	if s.conn.closed {
		return ErrConnectionClosed
	}
	if s.tx != nil && s.tx.closed {
		return ErrTransactionClosed
	}
	return nil
}

// bind encodes args, pushing oversized byte values through the blob API
// first. Callers hold conn.mu.
func (s *Statement) bind(ctx context.Context, args []any) ([]encodedParam, error) {
	if len(args) != s.numInputs {
		return nil, fmt.Errorf("%w: statement takes %d, got %d", ErrParamCount, s.numInputs, len(args))
	}
	params := make([]encodedParam, len(args))
	for i, arg := range args {
		if b, ok := arg.(Blob); ok {
			id, err := s.conn.p.createBlob(ctx, []byte(b), s.transHandle)
			if err != nil {
				return nil, err
			}
			params[i] = encodedParam{data: id, blr: []byte{9, 0}}
			continue
		}
		p, err := encodeParam(arg)
		if err != nil {
			return nil, err
		}
		params[i] = p
	}
	return params, nil
}

// Blob marks a parameter that should be stored through the blob API rather
// than as inline text.
type Blob []byte

// execute runs the statement. Callers hold conn.mu. The returned row is
// non-nil only for executable procedures, which answer with a singleton
// result row instead of a cursor.
func (s *Statement) execute(ctx context.Context, args []any) (singleton []any, err error) {
	p := s.conn.p
	params, err := s.bind(ctx, args)
	if err != nil {
		return nil, err
	}

	if s.stmtType == wire.StmtExecProcedure && len(s.cols) > 0 {
		if err := p.opExecute2(ctx, s.handle, s.transHandle, params, calcBLR(s.cols)); err != nil {
			return nil, err
		}
		row, err := p.opSQLResponse(ctx, s.cols)
		if err != nil {
			return nil, err
		}
		if _, err := p.opResponse(ctx); err != nil {
			return nil, err
		}
		if err := s.resolveBlobs(ctx, row); err != nil {
			return nil, err
		}
		return row, nil
	}

	if err := p.opExecute(ctx, s.handle, s.transHandle, params); err != nil {
		return nil, err
	}
	if _, err := p.opResponse(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Statement) resolveBlobs(ctx context.Context, row []any) error {
	for i, v := range row {
		ref, ok := v.(blobRef)
		if !ok {
			continue
		}
		blob, err := s.conn.p.getBlobSegments(ctx, ref.id, s.transHandle)
		if err != nil {
			return err
		}
		if ref.text {
			row[i] = string(blob)
		} else {
			row[i] = blob
		}
	}
	return nil
}

// Execute runs the statement and returns the number of affected rows. For
// autocommit statements the work is committed (retaining) on success.
func (s *Statement) Execute(ctx context.Context, args ...any) (int64, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if err := s.usable(); err != nil {
		return 0, err
	}
	if _, err := s.execute(ctx, args); err != nil {
		return 0, err
	}

	affected := int64(0)
	if !s.IsSelect() {
		var err error
		affected, err = s.conn.p.rowCount(ctx, s.handle, s.stmtType)
		if err != nil {
			return 0, err
		}
		if s.autocommit {
			if err := s.conn.p.opTransactionEnd(ctx, wire.OpCommitRetaining, s.transHandle); err != nil {
				return 0, err
			}
			if _, err := s.conn.p.opResponse(ctx); err != nil {
				return 0, err
			}
		}
	}
	return affected, nil
}

// Query runs the statement and opens a cursor over its results. Statements
// without a cursor (DML, executable procedures) yield their singleton or
// empty result set.
func (s *Statement) Query(ctx context.Context, args ...any) (*Rows, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	singleton, err := s.execute(ctx, args)
	if err != nil {
		return nil, err
	}

	rows := &Rows{st: s, cols: s.cols}
	switch {
	case s.IsSelect():
		rows.blr = calcBLR(s.cols)
	case singleton != nil:
		rows.buf = [][]any{singleton}
		rows.eof = true
	default:
		rows.eof = true
	}
	return rows, nil
}

// Close drops the statement handle. Closing twice is a no-op.
func (s *Statement) Close(ctx context.Context) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.closed || s.conn.closed {
		return nil
	}
	s.closed = true
	return s.conn.p.opFreeStatement(ctx, s.handle, wire.DSQLDrop)
}

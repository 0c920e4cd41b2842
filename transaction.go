package fbwire

import (
	"context"

	"github.com/okoshi/fbwire/internal/wire"
)

// Isolation selects the transaction isolation mode.
type Isolation int

const (
	// Snapshot (concurrency) isolation, the engine default.
	Snapshot Isolation = iota
	// ReadCommitted with record versions.
	ReadCommitted
	// Consistency (table-stability) isolation.
	Consistency
)

type txOptions struct {
	isolation   Isolation
	readOnly    bool
	noWait      bool
	lockTimeout int32 // seconds; 0 means wait per noWait
}

func defaultTxOptions() txOptions {
	return txOptions{isolation: Snapshot}
}

// TxOption customizes Begin.
type TxOption func(*txOptions)

func WithIsolation(iso Isolation) TxOption {
	return func(o *txOptions) { o.isolation = iso }
}

func WithReadOnly() TxOption {
	return func(o *txOptions) { o.readOnly = true }
}

// WithNoWait makes lock conflicts fail immediately instead of blocking.
func WithNoWait() TxOption {
	return func(o *txOptions) { o.noWait = true }
}

// WithLockTimeout bounds lock waits to the given number of seconds.
func WithLockTimeout(seconds int32) TxOption {
	return func(o *txOptions) { o.lockTimeout = seconds }
}

func (o *txOptions) tpb() []byte {
	b := wire.NewParamBuffer(wire.TPBVersion3)
	if o.readOnly {
		b.AddTag(wire.TPBRead)
	} else {
		b.AddTag(wire.TPBWrite)
	}
	switch {
	case o.lockTimeout > 0:
		b.AddTag(wire.TPBWait)
		b.AddInt32(wire.TPBLockTimeout, o.lockTimeout)
	case o.noWait:
		b.AddTag(wire.TPBNowait)
	default:
		b.AddTag(wire.TPBWait)
	}
	switch o.isolation {
	case ReadCommitted:
		b.AddTag(wire.TPBReadCommitted)
		b.AddTag(wire.TPBRecVersion)
	case Consistency:
		b.AddTag(wire.TPBConsistency)
	default:
		b.AddTag(wire.TPBConcurrency)
	}
	return b.Bytes()
}

// Transaction is an explicit transaction started with Connection.Begin.
// Commit and Rollback end it; the retaining variants keep it open.
type Transaction struct {
	conn   *Connection
	handle int32
	closed bool
}

func (t *Transaction) end(ctx context.Context, opcode uint32, closes bool) error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.closed {
		return ErrTransactionClosed
	}
	if t.conn.closed {
		return ErrConnectionClosed
	}
	if closes {
		t.closed = true
		delete(t.conn.txs, t)
	}
	if err := t.conn.p.opTransactionEnd(ctx, opcode, t.handle); err != nil {
		return err
	}
	_, err := t.conn.p.opResponse(ctx)
	return err
}

func (t *Transaction) Commit(ctx context.Context) error {
	return t.end(ctx, wire.OpCommit, true)
}

func (t *Transaction) Rollback(ctx context.Context) error {
	return t.end(ctx, wire.OpRollback, true)
}

// CommitRetaining commits the work done so far but keeps the transaction
// (and its snapshot context) open.
func (t *Transaction) CommitRetaining(ctx context.Context) error {
	return t.end(ctx, wire.OpCommitRetaining, false)
}

// RollbackRetaining discards the work done so far but keeps the transaction
// open.
func (t *Transaction) RollbackRetaining(ctx context.Context) error {
	return t.end(ctx, wire.OpRollbackRetaining, false)
}

// ID asks the server for this transaction's id.
func (t *Transaction) ID(ctx context.Context) (int64, error) {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.closed {
		return 0, ErrTransactionClosed
	}
	if t.conn.closed {
		return 0, ErrConnectionClosed
	}
	if err := t.conn.p.opInfoTransaction(ctx, t.handle, []byte{wire.InfoTraID}); err != nil {
		return 0, err
	}
	res, err := t.conn.p.opResponse(ctx)
	if err != nil {
		return 0, err
	}
	r := wire.NewReader(res.buf)
	if r.Byte() != wire.InfoTraID {
		return 0, protocolErrorf("unexpected transaction info reply")
	}
	ln := r.LenU16()
	id := r.IntLE(ln)
	if err := r.Err(); err != nil {
		return 0, err
	}
	return id, nil
}

// Prepare compiles a statement inside this transaction.
func (t *Transaction) Prepare(ctx context.Context, query string) (*Statement, error) {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.closed {
		return nil, ErrTransactionClosed
	}
	if t.conn.closed {
		return nil, ErrConnectionClosed
	}
	st, err := prepare(ctx, t.conn, t.handle, query, false)
	if err != nil {
		return nil, err
	}
	st.tx = t
	return st, nil
}

// Execute prepares, runs and drops a statement inside this transaction.
func (t *Transaction) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	st, err := t.Prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	defer st.Close(ctx)
	return st.Execute(ctx, args...)
}

// Query prepares and runs a SELECT inside this transaction.
func (t *Transaction) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	st, err := t.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := st.Query(ctx, args...)
	if err != nil {
		st.Close(ctx)
		return nil, err
	}
	rows.ownStmt = true
	return rows, nil
}

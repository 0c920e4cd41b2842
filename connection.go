package fbwire

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/okoshi/fbwire/internal/auth"
	"github.com/okoshi/fbwire/internal/transport"
	"github.com/okoshi/fbwire/internal/wire"
)

// Connection is an attachment to one database. It owns a background
// autocommit transaction used by the connection-level Execute and Query
// helpers; explicit transactions come from Begin.
//
// A Connection may be shared across goroutines; operations are serialized
// because the wire allows only one outstanding exchange.
type Connection struct {
	mu  sync.Mutex
	p   *protocol
	cfg *Config
	log zerolog.Logger

	systemTx int32
	txs      map[*Transaction]struct{}
	closed   bool
}

// Connect attaches to an existing database over a blocking transport.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	return open(ctx, cfg, dialBlocking, false)
}

// ConnectAsync attaches like Connect but runs socket I/O on a dedicated
// goroutine, so in-flight calls honor context cancellation immediately.
func ConnectAsync(ctx context.Context, cfg Config) (*Connection, error) {
	return open(ctx, cfg, dialAsync, false)
}

// CreateDatabase creates the database named in cfg and attaches to it.
// An existing database file is overwritten.
func CreateDatabase(ctx context.Context, cfg Config) (*Connection, error) {
	return open(ctx, cfg, dialBlocking, true)
}

// CreateDatabaseAsync is CreateDatabase over the cancellable transport.
func CreateDatabaseAsync(ctx context.Context, cfg Config) (*Connection, error) {
	return open(ctx, cfg, dialAsync, true)
}

func dialBlocking(ctx context.Context, addr string) (transport.Channel, error) {
	return transport.DialTCP(ctx, addr)
}

func dialAsync(ctx context.Context, addr string) (transport.Channel, error) {
	return transport.DialAsync(ctx, addr)
}

func open(ctx context.Context, cfg Config, dial func(context.Context, string) (transport.Channel, error), create bool) (*Connection, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	log := newLogger(cfg.LogLevel, uuid.NewString())

	ch, err := dial(ctx, cfg.addr())
	if err != nil {
		return nil, fmt.Errorf("fbwire: dial %s: %w", cfg.addr(), err)
	}
	p := newProtocol(ch, cfg.TimeZone, log)

	clientPublic, clientPrivate, err := auth.ClientSeed()
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := p.opConnect(ctx, &cfg, clientPublic); err != nil {
		ch.Close()
		return nil, err
	}
	if err := p.parseConnectResponse(ctx, &cfg, clientPublic, clientPrivate); err != nil {
		ch.Close()
		return nil, err
	}

	if create {
		err = p.opCreate(ctx, &cfg)
	} else {
		err = p.opAttach(ctx, &cfg)
	}
	if err != nil {
		ch.Close()
		return nil, err
	}
	res, err := p.opResponse(ctx)
	if err != nil {
		ch.Close()
		return nil, err
	}
	p.dbHandle = res.handle

	// background transaction for the autocommit helpers
	tpb := wire.NewParamBuffer(wire.TPBVersion3).
		AddTag(wire.TPBWrite).
		AddTag(wire.TPBWait).
		AddTag(wire.TPBReadCommitted).
		AddTag(wire.TPBRecVersion).
		AddTag(wire.TPBAutocommit).
		Bytes()
	if err := p.opTransaction(ctx, tpb); err != nil {
		ch.Close()
		return nil, err
	}
	res, err = p.opResponse(ctx)
	if err != nil {
		ch.Close()
		return nil, err
	}

	log.Info().
		Str("database", cfg.Database).
		Int32("protocol", p.version).
		Str("plugin", p.plugin).
		Msg("attached")

	return &Connection{p: p, cfg: &cfg, log: log, systemTx: res.handle}, nil
}

// Close detaches from the database and closes the socket. Errors on the
// detach exchange are logged, not returned; the socket is closed regardless.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	// roll back transactions left open by Begin, then whatever the
	// autocommit transaction still holds, before detaching; the server
	// would do the same, this just makes it prompt
	for tx := range c.txs {
		tx.closed = true
		if err := c.p.opTransactionEnd(ctx, wire.OpRollback, tx.handle); err == nil {
			if _, err := c.p.opResponse(ctx); err != nil {
				c.log.Warn().Err(err).Msg("rollback on close failed")
			}
		}
	}
	c.txs = nil
	if err := c.p.opTransactionEnd(ctx, wire.OpRollback, c.systemTx); err == nil {
		if _, err := c.p.opResponse(ctx); err != nil {
			c.log.Warn().Err(err).Msg("rollback on close failed")
		}
	}
	if err := c.p.opDetach(ctx); err == nil {
		if _, err := c.p.opResponse(ctx); err != nil {
			c.log.Warn().Err(err).Msg("detach failed")
		}
	} else {
		c.log.Warn().Err(err).Msg("detach failed")
	}
	return c.p.ch.Close()
}

// DropDatabase deletes the attached database and closes the connection.
func (c *Connection) DropDatabase(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.closed = true
	defer c.p.ch.Close()
	if err := c.p.opDropDatabase(ctx); err != nil {
		return err
	}
	_, err := c.p.opResponse(ctx)
	return err
}

// ExecImmediate runs a statement (typically DDL) without preparing it, and
// commits immediately.
func (c *Connection) ExecImmediate(ctx context.Context, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.p.opExecImmediate(ctx, c.systemTx, query); err != nil {
		return err
	}
	if _, err := c.p.opResponse(ctx); err != nil {
		return err
	}
	if err := c.p.opTransactionEnd(ctx, wire.OpCommitRetaining, c.systemTx); err != nil {
		return err
	}
	_, err := c.p.opResponse(ctx)
	return err
}

// Execute prepares, runs and drops a statement on the autocommit
// transaction, returning the number of affected rows.
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	st, err := c.Prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	defer st.Close(ctx)
	return st.Execute(ctx, args...)
}

// Query prepares and runs a SELECT on the autocommit transaction. The
// statement is dropped when the returned rows are closed or exhausted.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	st, err := c.Prepare(ctx, query)
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

// Prepare compiles a statement on the autocommit transaction.
func (c *Connection) Prepare(ctx context.Context, query string) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	return prepare(ctx, c, c.systemTx, query, true)
}

// Begin starts an explicit transaction.
func (c *Connection) Begin(ctx context.Context, opts ...TxOption) (*Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	o := defaultTxOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := c.p.opTransaction(ctx, o.tpb()); err != nil {
		return nil, err
	}
	res, err := c.p.opResponse(ctx)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{conn: c, handle: res.handle}
	if c.txs == nil {
		c.txs = make(map[*Transaction]struct{})
	}
	c.txs[tx] = struct{}{}
	return tx, nil
}

// ServerVersion asks the server for its version banner.
func (c *Connection) ServerVersion(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrConnectionClosed
	}
	if err := c.p.opInfoDatabase(ctx, []byte{wire.InfoFirebirdVersion}); err != nil {
		return "", err
	}
	res, err := c.p.opResponse(ctx)
	if err != nil {
		return "", err
	}
	r := wire.NewReader(res.buf)
	if r.Byte() != wire.InfoFirebirdVersion {
		return "", protocolErrorf("unexpected version info reply")
	}
	ln := r.LenU16()
	val := r.Bytes(ln)
	if err := r.Err(); err != nil {
		return "", err
	}
	// value: line count, then length-prefixed version line
	if len(val) < 2 || int(val[1])+2 > len(val) {
		return "", protocolErrorf("malformed version info reply")
	}
	return string(val[2 : 2+int(val[1])]), nil
}

// Cancel asks the server to abort the operation currently running on this
// attachment. It writes directly to the transport without taking the
// connection lock, so it may be called while another goroutine is blocked
// inside a query; that goroutine then fails with a ServerError. Call it only
// when an exchange is actually in flight.
func (c *Connection) Cancel(ctx context.Context) error {
	if c.closed {
		return ErrConnectionClosed
	}
	buf := wire.AppendUint32(nil, wire.OpCancel)
	buf = wire.AppendUint32(buf, wire.CancelRaise)
	return c.p.ch.Send(ctx, buf)
}

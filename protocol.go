package fbwire

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okoshi/fbwire/internal/auth"
	"github.com/okoshi/fbwire/internal/transport"
	"github.com/okoshi/fbwire/internal/wire"
)

const (
	infoBufferLen   = 1024
	blobSegmentSize = 32000
	fetchBatchSize  = 400
	sqlDialect      = 3
)

// protocol drives the request/response exchange over a transport.Channel.
// Requests are staged in wbuf and flushed in one write, which also lets
// composite operations (blob reads in the middle of building a packet)
// suspend and resume the staging buffer.
type protocol struct {
	ch   transport.Channel
	wbuf []byte

	dbHandle   int32
	version    int32
	acceptArch int32
	acceptType uint32
	lazyCount  int

	plugin   string
	authData []byte
	timezone string

	log zerolog.Logger
}

func newProtocol(ch transport.Channel, timezone string, log zerolog.Logger) *protocol {
	return &protocol{ch: ch, dbHandle: -1, version: -1, timezone: timezone, log: log}
}

func (p *protocol) lazy() bool {
	return p.acceptType&wire.PtypeMask == wire.PtypeLazySend
}

// packet staging

func (p *protocol) packUint32(v uint32) {
	p.wbuf = wire.AppendUint32(p.wbuf, v)
}

func (p *protocol) packInt32(v int32) {
	p.wbuf = wire.AppendInt32(p.wbuf, v)
}

func (p *protocol) packBytes(b []byte) {
	p.wbuf = wire.AppendBytes(p.wbuf, b)
}

func (p *protocol) packString(s string) {
	p.wbuf = wire.AppendString(p.wbuf, s)
}

func (p *protocol) appendRaw(b []byte) {
	p.wbuf = append(p.wbuf, b...)
}

func (p *protocol) flush(ctx context.Context) error {
	err := p.ch.Send(ctx, p.wbuf)
	p.wbuf = p.wbuf[:0]
	return err
}

func (p *protocol) suspendBuffer() []byte {
	buf := p.wbuf
	p.wbuf = nil
	return buf
}

func (p *protocol) resumeBuffer(buf []byte) {
	p.wbuf = append(buf, p.wbuf...)
}

// reads

func (p *protocol) recvUint32(ctx context.Context) (uint32, error) {
	b, err := p.ch.Recv(ctx, 4)
	if err != nil {
		return 0, err
	}
	return wire.BUint32(b), nil
}

func (p *protocol) recvInt32(ctx context.Context) (int32, error) {
	v, err := p.recvUint32(ctx)
	return int32(v), err
}

func (p *protocol) recvOpaque(ctx context.Context) ([]byte, error) {
	n, err := p.recvUint32(ctx)
	if err != nil {
		return nil, err
	}
	return p.ch.RecvAligned(ctx, int(n))
}

// nextOpcode reads the next opcode, skipping keep-alive op_dummy packets and
// draining any op_response packets owed to deferred (lazy-send) requests.
func (p *protocol) nextOpcode(ctx context.Context) (uint32, error) {
	for {
		opcode, err := p.recvUint32(ctx)
		if err != nil {
			return 0, err
		}
		if opcode == wire.OpDummy {
			continue
		}
		if opcode == wire.OpResponse && p.lazyCount > 0 {
			p.lazyCount--
			if _, err := p.parseOpResponse(ctx); err != nil {
				return 0, err
			}
			continue
		}
		return opcode, nil
	}
}

// parseStatusVector consumes a status vector off the wire and renders the
// GDS message templates with their arguments substituted.
func (p *protocol) parseStatusVector(ctx context.Context) (codes []uint32, sqlCode int32, message string, err error) {
	var gdsCode uint32
	var numArg int
	var sb strings.Builder
	msg := ""

	for {
		arg, err := p.recvUint32(ctx)
		if err != nil {
			return nil, 0, "", err
		}
		if arg == wire.ArgEnd {
			break
		}
		switch arg {
		case wire.ArgGDS:
			gdsCode, err = p.recvUint32(ctx)
			if err != nil {
				return nil, 0, "", err
			}
			if gdsCode != 0 {
				codes = append(codes, gdsCode)
				sb.WriteString(msg)
				msg = gdsMessage(gdsCode)
				numArg = 0
			}
		case wire.ArgNumber:
			num, err := p.recvUint32(ctx)
			if err != nil {
				return nil, 0, "", err
			}
			if gdsCode == gdsSQLError {
				sqlCode = int32(num)
			}
			numArg++
			msg = strings.ReplaceAll(msg, "@"+strconv.Itoa(numArg), strconv.Itoa(int(int32(num))))
		case wire.ArgString:
			s, err := p.recvOpaque(ctx)
			if err != nil {
				return nil, 0, "", err
			}
			numArg++
			msg = strings.ReplaceAll(msg, "@"+strconv.Itoa(numArg), string(s))
		case wire.ArgInterpreted:
			s, err := p.recvOpaque(ctx)
			if err != nil {
				return nil, 0, "", err
			}
			msg += string(s)
		case wire.ArgSQLState:
			if _, err := p.recvOpaque(ctx); err != nil {
				return nil, 0, "", err
			}
		default:
			sb.WriteString(msg)
			return codes, sqlCode, sb.String(), nil
		}
	}
	sb.WriteString(msg)
	return codes, sqlCode, sb.String(), nil
}

type response struct {
	handle int32
	oid    []byte
	buf    []byte
}

func (p *protocol) parseOpResponse(ctx context.Context) (*response, error) {
	handle, err := p.recvInt32(ctx)
	if err != nil {
		return nil, err
	}
	oid, err := p.ch.Recv(ctx, 8)
	if err != nil {
		return nil, err
	}
	buf, err := p.recvOpaque(ctx)
	if err != nil {
		return nil, err
	}
	codes, sqlCode, message, err := p.parseStatusVector(ctx)
	if err != nil {
		return nil, err
	}
	if len(codes) > 0 || sqlCode != 0 {
		return nil, &ServerError{Codes: codes, SQLCode: sqlCode, Message: message}
	}
	return &response{handle: handle, oid: oid, buf: buf}, nil
}

// opResponse reads the next packet and requires it to be an op_response.
func (p *protocol) opResponse(ctx context.Context) (*response, error) {
	opcode, err := p.nextOpcode(ctx)
	if err != nil {
		return nil, err
	}
	if opcode != wire.OpResponse {
		return nil, protocolErrorf("expected op_response, got opcode %d", opcode)
	}
	return p.parseOpResponse(ctx)
}

// connect handshake

// Protocol version offers: version, generic arch, min/max ptype, weight.
var protocolOffers = []string{
	"ffff800d00000001000000000000000500000008", // 13
	"ffff800e0000000100000000000000050000000a", // 14
	"ffff800f0000000100000000000000050000000c", // 15
	"ffff80100000000100000000000000050000000e", // 16
	"ffff801100000001000000000000000500000010", // 17
}

// uid builds the CNCT identification block sent with op_connect. The SRP
// client public key travels as hex text split into tagged chunks, each
// prefixed with its sequence number.
func (p *protocol) uid(cfg *Config, clientPublic *big.Int) []byte {
	var v []byte
	user := strings.ToUpper(cfg.User)

	add := func(tag byte, val []byte) {
		v = append(v, tag, byte(len(val)))
		v = append(v, val...)
	}
	add(wire.CnctLogin, []byte(user))
	add(wire.CnctPluginName, []byte(cfg.AuthPlugin))
	add(wire.CnctPluginList, []byte(auth.PluginList))

	pub := auth.PublicHex(clientPublic)
	for i := 0; len(pub) > 0; i++ {
		chunk := pub
		if len(chunk) > 254 {
			chunk = chunk[:254]
		}
		pub = pub[len(chunk):]
		add(wire.CnctSpecificData, append([]byte{byte(i)}, chunk...))
	}

	crypt := byte(0)
	if cfg.WireCrypt {
		crypt = 1
	}
	add(wire.CnctClientCrypt, []byte{crypt, 0, 0, 0})
	add(wire.CnctUserVerification, nil)
	return v
}

func (p *protocol) opConnect(ctx context.Context, cfg *Config, clientPublic *big.Int) error {
	p.log.Debug().Str("op", "connect").Str("database", cfg.Database).Msg("send")
	p.packUint32(wire.OpConnect)
	p.packUint32(wire.OpAttach)
	p.packUint32(wire.ConnectVersion3)
	p.packUint32(wire.ArchGeneric)
	p.packString(cfg.Database)
	p.packUint32(uint32(len(protocolOffers)))
	p.packBytes(p.uid(cfg, clientPublic))
	for _, offer := range protocolOffers {
		raw, err := hex.DecodeString(offer)
		if err != nil {
			return err
		}
		p.appendRaw(raw)
	}
	return p.flush(ctx)
}

// acceptBlock is the shared tail of op_accept_data and op_cond_accept.
type acceptBlock struct {
	data   []byte
	plugin string
	keys   []byte
}

func (p *protocol) readAcceptBlock(ctx context.Context) (*acceptBlock, error) {
	blk := &acceptBlock{}
	var err error
	if blk.data, err = p.recvOpaque(ctx); err != nil {
		return nil, err
	}
	name, err := p.recvOpaque(ctx)
	if err != nil {
		return nil, err
	}
	blk.plugin = string(name)
	if _, err := p.recvUint32(ctx); err != nil { // is_authenticated
		return nil, err
	}
	if blk.keys, err = p.recvOpaque(ctx); err != nil {
		return nil, err
	}
	return blk, nil
}

// parseConnectResponse finishes the handshake started by opConnect: it
// parses the server's accept packet, runs the SRP proof exchange, and turns
// wire encryption on when both sides asked for it.
func (p *protocol) parseConnectResponse(ctx context.Context, cfg *Config, clientPublic, clientPrivate *big.Int) error {
	opcode, err := p.nextOpcode(ctx)
	if err != nil {
		return err
	}
	switch opcode {
	case wire.OpReject:
		return fmt.Errorf("%w: server rejected the connection", ErrAuthRejected)
	case wire.OpResponse:
		if _, err := p.parseOpResponse(ctx); err != nil {
			return err
		}
		return protocolErrorf("unexpected op_response during connect")
	}

	if _, err := p.ch.Recv(ctx, 3); err != nil {
		return err
	}
	verByte, err := p.ch.Recv(ctx, 1)
	if err != nil {
		return err
	}
	p.version = int32(verByte[0])
	if p.acceptArch, err = p.recvInt32(ctx); err != nil {
		return err
	}
	if p.acceptType, err = p.recvUint32(ctx); err != nil {
		return err
	}

	if opcode == wire.OpAccept {
		// Plain op_accept means the server picked a pre-3.0 protocol with
		// DPB credential authentication. Only proceed when asked to.
		if cfg.LegacyAuth {
			p.log.Debug().Int32("version", p.version).Msg("accepted with legacy authentication")
			return nil
		}
		return fmt.Errorf("%w: server requires legacy authentication (set LegacyAuth to allow it)", ErrAuthRejected)
	}
	if opcode != wire.OpCondAccept && opcode != wire.OpAcceptData {
		return protocolErrorf("unexpected opcode %d in connect response", opcode)
	}

	blk, err := p.readAcceptBlock(ctx)
	if err != nil {
		return err
	}
	p.plugin = blk.plugin
	if p.plugin != auth.PluginSrp && p.plugin != auth.PluginSrp256 {
		return fmt.Errorf("%w: server offered unsupported plugin %q", ErrAuthRejected, p.plugin)
	}

	data := blk.data
	if len(data) == 0 {
		// Server wants another round: resend the public key via op_cont_auth.
		if err := p.opContAuth(ctx, clientPublic.Bytes()); err != nil {
			return err
		}
		next, err := p.recvUint32(ctx)
		if err != nil {
			return err
		}
		if next != wire.OpContAuth {
			return protocolErrorf("expected op_cont_auth, got opcode %d", next)
		}
		// op_cont_auth carries data, plugin name, plugin list, keys.
		if data, err = p.recvOpaque(ctx); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			if _, err := p.recvOpaque(ctx); err != nil {
				return err
			}
		}
	}

	if len(data) < 4 {
		return protocolErrorf("short auth data (%d bytes)", len(data))
	}
	saltLen := int(wire.LUint16(data[:2]))
	if 4+saltLen > len(data) {
		return protocolErrorf("malformed auth data")
	}
	salt := data[2 : 2+saltLen]
	serverPublic, err := auth.ParsePublicHex(data[4+saltLen:])
	if err != nil {
		return err
	}

	proof, sessionKey, err := auth.ClientProof(
		strings.ToUpper(cfg.User), cfg.Password, salt,
		clientPublic, serverPublic, clientPrivate, p.plugin)
	if err != nil {
		return err
	}

	var cryptPlugin string
	var nonce []byte
	if opcode == wire.OpCondAccept {
		if err := p.opContAuth(ctx, proof); err != nil {
			return err
		}
		res, err := p.opResponse(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuthRejected, err)
		}
		cryptPlugin, nonce = auth.GuessWireCrypt(res.buf)
	}

	if cryptPlugin != "" && cfg.WireCrypt && len(sessionKey) > 0 {
		if err := p.opCrypt(ctx, cryptPlugin); err != nil {
			return err
		}
		var recvC, sendC transport.Cipher
		switch cryptPlugin {
		case auth.WireCryptChaCha:
			if recvC, err = transport.NewChaCha(sessionKey, nonce); err != nil {
				return err
			}
			if sendC, err = transport.NewChaCha(sessionKey, nonce); err != nil {
				return err
			}
		default:
			if recvC, err = transport.NewArc4(sessionKey); err != nil {
				return err
			}
			if sendC, err = transport.NewArc4(sessionKey); err != nil {
				return err
			}
		}
		p.ch.SetCipher(recvC, sendC)
		if _, err := p.opResponse(ctx); err != nil {
			return err
		}
		p.log.Debug().Str("cipher", cryptPlugin).Msg("wire encryption enabled")
	} else {
		// No encrypted channel: the proof rides in the attach DPB instead.
		p.authData = proof
	}
	return nil
}

func (p *protocol) opContAuth(ctx context.Context, authData []byte) error {
	p.packUint32(wire.OpContAuth)
	p.packBytes([]byte(hex.EncodeToString(authData)))
	p.packString(p.plugin)
	p.packString(auth.PluginList)
	p.packString("")
	return p.flush(ctx)
}

func (p *protocol) opCrypt(ctx context.Context, plugin string) error {
	p.packUint32(wire.OpCrypt)
	p.packString(plugin)
	p.packString("Symmetric")
	return p.flush(ctx)
}

// attach / create / detach

func (p *protocol) dpb(cfg *Config, create bool) []byte {
	b := wire.NewParamBuffer(wire.DPBVersion1)
	if create {
		b.AddString(wire.DPBSetDBCharset, cfg.Charset)
	}
	b.AddString(wire.DPBLcCtype, cfg.Charset)
	b.AddString(wire.DPBUserName, cfg.User)
	if cfg.LegacyAuth {
		b.AddString(wire.DPBPassword, cfg.Password)
	}
	if cfg.Role != "" {
		b.AddString(wire.DPBSQLRoleName, cfg.Role)
	}
	b.AddInt32(wire.DPBSQLDialect, sqlDialect)
	if create {
		b.AddInt32(wire.DPBForceWrite, 1)
		b.AddInt32(wire.DPBOverwrite, 1)
		b.AddInt32(wire.DPBPageSize, int32(cfg.PageSize))
	}
	if p.authData != nil {
		b.AddString(wire.DPBSpecificAuthData, hex.EncodeToString(p.authData))
	}
	if p.timezone != "" {
		b.AddString(wire.DPBSessionTimeZone, p.timezone)
	}
	return b.Bytes()
}

func (p *protocol) opAttach(ctx context.Context, cfg *Config) error {
	p.log.Debug().Str("op", "attach").Str("database", cfg.Database).Msg("send")
	p.packUint32(wire.OpAttach)
	p.packUint32(0) // database object id
	p.packString(cfg.Database)
	p.packBytes(p.dpb(cfg, false))
	return p.flush(ctx)
}

func (p *protocol) opCreate(ctx context.Context, cfg *Config) error {
	p.log.Debug().Str("op", "create").Str("database", cfg.Database).Msg("send")
	p.packUint32(wire.OpCreate)
	p.packUint32(0)
	p.packString(cfg.Database)
	p.packBytes(p.dpb(cfg, true))
	return p.flush(ctx)
}

func (p *protocol) opDetach(ctx context.Context) error {
	p.packUint32(wire.OpDetach)
	p.packUint32(uint32(p.dbHandle))
	return p.flush(ctx)
}

func (p *protocol) opDropDatabase(ctx context.Context) error {
	p.packUint32(wire.OpDropDatabase)
	p.packUint32(uint32(p.dbHandle))
	return p.flush(ctx)
}

// transactions

func (p *protocol) opTransaction(ctx context.Context, tpb []byte) error {
	p.packUint32(wire.OpTransaction)
	p.packUint32(uint32(p.dbHandle))
	p.packBytes(tpb)
	return p.flush(ctx)
}

func (p *protocol) opTransactionEnd(ctx context.Context, opcode uint32, transHandle int32) error {
	p.packUint32(opcode)
	p.packUint32(uint32(transHandle))
	return p.flush(ctx)
}

func (p *protocol) opInfoTransaction(ctx context.Context, transHandle int32, items []byte) error {
	p.packUint32(wire.OpInfoTransaction)
	p.packUint32(uint32(transHandle))
	p.packUint32(0)
	p.packBytes(items)
	p.packUint32(infoBufferLen)
	return p.flush(ctx)
}

func (p *protocol) opInfoDatabase(ctx context.Context, items []byte) error {
	p.packUint32(wire.OpInfoDatabase)
	p.packUint32(uint32(p.dbHandle))
	p.packUint32(0)
	p.packBytes(items)
	p.packUint32(infoBufferLen)
	return p.flush(ctx)
}

// statements

func (p *protocol) opAllocateStatement(ctx context.Context) error {
	p.packUint32(wire.OpAllocateStatement)
	p.packUint32(uint32(p.dbHandle))
	return p.flush(ctx)
}

var describeVars = []byte{
	wire.InfoSQLSelect,
	wire.InfoSQLDescribeVars,
	wire.InfoSQLSQLDASeq,
	wire.InfoSQLType,
	wire.InfoSQLSubType,
	wire.InfoSQLScale,
	wire.InfoSQLLength,
	wire.InfoSQLNullInd,
	wire.InfoSQLField,
	wire.InfoSQLRelation,
	wire.InfoSQLOwner,
	wire.InfoSQLAlias,
	wire.InfoSQLDescribeEnd,
}

func (p *protocol) opPrepareStatement(ctx context.Context, stmtHandle, transHandle int32, query string) error {
	p.log.Debug().Str("op", "prepare").Str("query", query).Msg("send")
	items := append([]byte{wire.InfoSQLStmtType}, describeVars...)

	p.packUint32(wire.OpPrepareStatement)
	p.packUint32(uint32(transHandle))
	p.packUint32(uint32(stmtHandle))
	p.packUint32(sqlDialect)
	p.packString(query)
	p.packBytes(items)
	p.packUint32(infoBufferLen)
	return p.flush(ctx)
}

func (p *protocol) opInfoSQL(ctx context.Context, stmtHandle int32, items []byte) error {
	p.packUint32(wire.OpInfoSQL)
	p.packUint32(uint32(stmtHandle))
	p.packUint32(0)
	p.packBytes(items)
	p.packUint32(infoBufferLen)
	return p.flush(ctx)
}

func (p *protocol) opExecute(ctx context.Context, stmtHandle, transHandle int32, params []encodedParam) error {
	p.packUint32(wire.OpExecute)
	p.packUint32(uint32(stmtHandle))
	p.packUint32(uint32(transHandle))

	if len(params) == 0 {
		p.packUint32(0)
		p.packUint32(0)
		p.packUint32(0)
	} else {
		values, blr := paramsToBLR(params)
		p.packBytes(blr)
		p.packUint32(0)
		p.packUint32(1)
		p.appendRaw(values)
	}
	if p.version >= 16 {
		p.appendRaw([]byte{0, 0, 0, 0}) // statement timeout
	}
	return p.flush(ctx)
}

func (p *protocol) opExecute2(ctx context.Context, stmtHandle, transHandle int32, params []encodedParam, outputBLR []byte) error {
	p.packUint32(wire.OpExecute2)
	p.packUint32(uint32(stmtHandle))
	p.packUint32(uint32(transHandle))

	if len(params) == 0 {
		p.packUint32(0)
		p.packUint32(0)
		p.packUint32(0)
	} else {
		values, blr := paramsToBLR(params)
		p.packBytes(blr)
		p.packUint32(0)
		p.packUint32(1)
		p.appendRaw(values)
	}
	p.packBytes(outputBLR)
	p.packUint32(0)
	if p.version >= 16 {
		p.appendRaw([]byte{0, 0, 0, 0})
	}
	return p.flush(ctx)
}

func (p *protocol) opExecImmediate(ctx context.Context, transHandle int32, query string) error {
	p.log.Debug().Str("op", "exec_immediate").Str("query", query).Msg("send")
	p.packUint32(wire.OpExecImmediate)
	p.packUint32(uint32(transHandle))
	p.packUint32(uint32(p.dbHandle))
	p.packUint32(sqlDialect)
	p.packString(query)
	p.packBytes(nil)
	p.packUint32(infoBufferLen)
	return p.flush(ctx)
}

func (p *protocol) opFetch(ctx context.Context, stmtHandle int32, blr []byte) error {
	p.packUint32(wire.OpFetch)
	p.packUint32(uint32(stmtHandle))
	p.packBytes(blr)
	p.packUint32(0)
	p.packUint32(fetchBatchSize)
	return p.flush(ctx)
}

// opFreeStatement releases or drops a statement handle. Under lazy send the
// server defers its reply, which is drained later by nextOpcode.
func (p *protocol) opFreeStatement(ctx context.Context, stmtHandle int32, mode uint32) error {
	p.packUint32(wire.OpFreeStatement)
	p.packUint32(uint32(stmtHandle))
	p.packUint32(mode)
	if err := p.flush(ctx); err != nil {
		return err
	}
	if p.lazy() {
		p.lazyCount++
		return nil
	}
	_, err := p.opResponse(ctx)
	return err
}

// readNullBitmap reads the aligned null indicator bitmap for n columns.
func (p *protocol) readNullBitmap(ctx context.Context, n int) ([]byte, error) {
	size := n / 8
	if n%8 != 0 {
		size++
	}
	return p.ch.RecvAligned(ctx, size)
}

func isNull(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<(i%8)) != 0
}

func (p *protocol) readRow(ctx context.Context, cols []Column) ([]any, error) {
	bitmap, err := p.readNullBitmap(ctx, len(cols))
	if err != nil {
		return nil, err
	}
	row := make([]any, len(cols))
	for i := range cols {
		if isNull(bitmap, i) {
			row[i] = nil
			continue
		}
		ln := cols[i].ioLength()
		if ln < 0 {
			n, err := p.recvUint32(ctx)
			if err != nil {
				return nil, err
			}
			ln = int(n)
		}
		raw, err := p.ch.RecvAligned(ctx, ln)
		if err != nil {
			return nil, err
		}
		val, decErr := cols[i].decode(raw)
		if decErr != nil {
			// The raw bytes are already consumed, so the stream stays in
			// sync. Park the error in the slot; it surfaces when the
			// caller reads this column, and later rows remain readable.
			row[i] = decErr
			continue
		}
		row[i] = val
	}
	return row, nil
}

// opFetchResponse reads one batch of rows. more is false once the server
// reports fetch status 100 (cursor exhausted).
func (p *protocol) opFetchResponse(ctx context.Context, cols []Column) (rows [][]any, more bool, err error) {
	opcode, err := p.nextOpcode(ctx)
	if err != nil {
		return nil, false, err
	}
	if opcode != wire.OpFetchResponse {
		if opcode == wire.OpResponse {
			if _, err := p.parseOpResponse(ctx); err != nil {
				return nil, false, err
			}
		}
		return nil, false, protocolErrorf("expected op_fetch_response, got opcode %d", opcode)
	}

	status, err := p.recvUint32(ctx)
	if err != nil {
		return nil, false, err
	}
	count, err := p.recvUint32(ctx)
	if err != nil {
		return nil, false, err
	}
	for count > 0 {
		row, err := p.readRow(ctx, cols)
		if err != nil {
			return nil, false, err
		}
		rows = append(rows, row)
		if _, err = p.recvUint32(ctx); err != nil { // per-row opcode
			return nil, false, err
		}
		if status, err = p.recvUint32(ctx); err != nil {
			return nil, false, err
		}
		if count, err = p.recvUint32(ctx); err != nil {
			return nil, false, err
		}
	}
	return rows, status != 100, nil
}

// opSQLResponse reads the singleton row returned by op_execute2.
func (p *protocol) opSQLResponse(ctx context.Context, cols []Column) ([]any, error) {
	opcode, err := p.nextOpcode(ctx)
	if err != nil {
		return nil, err
	}
	if opcode == wire.OpResponse {
		if _, err := p.parseOpResponse(ctx); err != nil {
			return nil, err
		}
		return nil, protocolErrorf("expected op_sql_response, got op_response")
	}
	if opcode != wire.OpSQLResponse {
		return nil, protocolErrorf("expected op_sql_response, got opcode %d", opcode)
	}
	count, err := p.recvUint32(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return p.readRow(ctx, cols)
}

// statement description

// parseSelectItems fills columns from a describe-vars item stream. It
// returns the next 1-based column index when the reply was truncated, or -1
// when the stream completed.
func parseSelectItems(buf []byte, cols []Column) (int, error) {
	r := wire.NewReader(buf)
	index := 0
	for {
		item := r.Byte()
		if r.Err() != nil {
			return 0, r.Err()
		}
		if item == wire.InfoEnd {
			return -1, nil
		}
		switch item {
		case wire.InfoTruncated:
			return index, nil
		case wire.InfoSQLDescribeEnd:
			continue
		}

		ln := r.LenU16()
		if item == wire.InfoSQLSQLDASeq {
			index = int(r.IntLE(ln))
			if err := r.Err(); err != nil {
				return 0, err
			}
			if index < 1 || index > len(cols) {
				return 0, protocolErrorf("describe item for column %d of %d", index, len(cols))
			}
			continue
		}
		col := &cols[index-1]
		switch item {
		case wire.InfoSQLType:
			t := uint32(r.IntLE(ln))
			t &^= 1 // drop the nullable flag bit
			col.Type = t
		case wire.InfoSQLSubType:
			col.SubType = int32(r.IntLE(ln))
		case wire.InfoSQLScale:
			col.Scale = int32(r.IntLE(ln))
		case wire.InfoSQLLength:
			col.Length = int32(r.IntLE(ln))
		case wire.InfoSQLNullInd:
			col.Nullable = r.IntLE(ln) != 0
		case wire.InfoSQLField:
			col.Field = string(r.Bytes(ln))
		case wire.InfoSQLRelation:
			col.Relation = string(r.Bytes(ln))
		case wire.InfoSQLOwner:
			col.Owner = string(r.Bytes(ln))
		case wire.InfoSQLAlias:
			col.Alias = string(r.Bytes(ln))
		default:
			return 0, protocolErrorf("unexpected describe item %d", item)
		}
		if err := r.Err(); err != nil {
			return 0, err
		}
	}
}

// parseDescription walks a prepare reply: statement type plus the output
// column descriptors, fetching continuation pages when the reply was
// truncated.
func (p *protocol) parseDescription(ctx context.Context, buf []byte, stmtHandle int32) (stmtType uint32, cols []Column, err error) {
	r := wire.NewReader(buf)
	for r.Len() > 0 {
		switch {
		case r.Peek() == wire.InfoSQLStmtType:
			r.Byte()
			ln := r.LenU16()
			stmtType = uint32(r.IntLE(ln))
			if err := r.Err(); err != nil {
				return 0, nil, err
			}
		case r.Peek() == wire.InfoSQLSelect:
			r.Byte()
			if item := r.Byte(); item != wire.InfoSQLDescribeVars {
				return 0, nil, protocolErrorf("expected describe_vars, got item %d", item)
			}
			ln := r.LenU16()
			count := int(r.IntLE(ln))
			if err := r.Err(); err != nil {
				return 0, nil, err
			}
			cols = make([]Column, count)
			next, err := parseSelectItems(r.Bytes(r.Len()), cols)
			if err != nil {
				return 0, nil, err
			}
			for next > 0 {
				items := []byte{wire.InfoSQLSQLDAStart, 2, byte(next & 0xFF), byte(next >> 8)}
				items = append(items, describeVars...)
				if err := p.opInfoSQL(ctx, stmtHandle, items); err != nil {
					return 0, nil, err
				}
				res, err := p.opResponse(ctx)
				if err != nil {
					return 0, nil, err
				}
				// continuation replies open with select/describe_vars and
				// the (already known) column count
				if len(res.buf) < 4 || res.buf[0] != wire.InfoSQLSelect || res.buf[1] != wire.InfoSQLDescribeVars {
					return 0, nil, protocolErrorf("malformed describe continuation")
				}
				skip := int(wire.LUint16(res.buf[2:4]))
				if 4+skip > len(res.buf) {
					return 0, nil, protocolErrorf("malformed describe continuation")
				}
				next, err = parseSelectItems(res.buf[4+skip:], cols)
				if err != nil {
					return 0, nil, err
				}
			}
			return stmtType, cols, nil
		default:
			return stmtType, cols, nil
		}
	}
	return stmtType, cols, nil
}

// paramCount asks the server how many input parameters a prepared statement
// takes, so a binding mismatch is caught before execution.
func (p *protocol) paramCount(ctx context.Context, stmtHandle int32) (int, error) {
	items := []byte{wire.InfoSQLBind, wire.InfoSQLDescribeVars}
	if err := p.opInfoSQL(ctx, stmtHandle, items); err != nil {
		return 0, err
	}
	res, err := p.opResponse(ctx)
	if err != nil {
		return 0, err
	}
	r := wire.NewReader(res.buf)
	if r.Byte() != wire.InfoSQLBind {
		return 0, protocolErrorf("unexpected bind info reply")
	}
	if r.Byte() != wire.InfoSQLDescribeVars {
		return 0, protocolErrorf("unexpected bind info reply")
	}
	ln := r.LenU16()
	count := int(r.IntLE(ln))
	if err := r.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// rowCount extracts the affected-row count recorded for a statement.
func (p *protocol) rowCount(ctx context.Context, stmtHandle int32, stmtType uint32) (int64, error) {
	if err := p.opInfoSQL(ctx, stmtHandle, []byte{wire.InfoSQLRecords}); err != nil {
		return 0, err
	}
	res, err := p.opResponse(ctx)
	if err != nil {
		return 0, err
	}
	buf := res.buf
	if len(buf) < 32 {
		return 0, nil
	}
	if stmtType == wire.StmtSelect {
		return int64(int32(wire.LUint32(buf[20:24]))), nil
	}
	n := int64(int32(wire.LUint32(buf[27:31]))) +
		int64(int32(wire.LUint32(buf[6:10]))) +
		int64(int32(wire.LUint32(buf[13:17])))
	return n, nil
}

// blobs

func (p *protocol) opOpenBlob(ctx context.Context, blobID []byte, transHandle int32) error {
	p.packUint32(wire.OpOpenBlob)
	p.packUint32(uint32(transHandle))
	p.appendRaw(blobID)
	return p.flush(ctx)
}

func (p *protocol) opCreateBlob2(ctx context.Context, transHandle int32) error {
	p.packUint32(wire.OpCreateBlob2)
	p.packUint32(0)
	p.packUint32(uint32(transHandle))
	p.packUint32(0)
	p.packUint32(0)
	return p.flush(ctx)
}

func (p *protocol) opGetSegment(ctx context.Context, blobHandle int32) error {
	p.packUint32(wire.OpGetSegment)
	p.packUint32(uint32(blobHandle))
	p.packUint32(infoBufferLen)
	p.packUint32(0)
	return p.flush(ctx)
}

func (p *protocol) opPutSegment(ctx context.Context, blobHandle int32, seg []byte) error {
	p.packUint32(wire.OpPutSegment)
	p.packUint32(uint32(blobHandle))
	p.packUint32(uint32(len(seg)))
	p.packUint32(uint32(len(seg)))
	p.appendRaw(seg)
	p.appendRaw(make([]byte, wire.Pad(len(seg))))
	return p.flush(ctx)
}

func (p *protocol) opBatchSegments(ctx context.Context, blobHandle int32, seg []byte) error {
	p.packUint32(wire.OpBatchSegments)
	p.packUint32(uint32(blobHandle))
	p.packUint32(uint32(len(seg) + 2))
	p.packUint32(uint32(len(seg) + 2))
	p.appendRaw(wire.AppendUint16LE(nil, uint16(len(seg))))
	p.appendRaw(seg)
	p.appendRaw(make([]byte, wire.Pad(len(seg)+2)))
	return p.flush(ctx)
}

func (p *protocol) opCloseBlob(ctx context.Context, blobHandle int32) error {
	p.packUint32(wire.OpCloseBlob)
	p.packUint32(uint32(blobHandle))
	return p.flush(ctx)
}

// getBlobSegments reads an entire blob. Any half-built request packet is
// suspended around the exchange and restored afterwards.
func (p *protocol) getBlobSegments(ctx context.Context, blobID []byte, transHandle int32) ([]byte, error) {
	staged := p.suspendBuffer()
	defer p.resumeBuffer(staged)

	if err := p.opOpenBlob(ctx, blobID, transHandle); err != nil {
		return nil, err
	}
	res, err := p.opResponse(ctx)
	if err != nil {
		return nil, err
	}
	blobHandle := res.handle

	var blob []byte
	status := int32(0)
	for status != wire.SegmentEOF {
		if err := p.opGetSegment(ctx, blobHandle); err != nil {
			return nil, err
		}
		res, err := p.opResponse(ctx)
		if err != nil {
			return nil, err
		}
		status = res.handle
		buf := res.buf
		for len(buf) >= 2 {
			ln := int(wire.LUint16(buf[:2]))
			if 2+ln > len(buf) {
				return nil, protocolErrorf("malformed blob segment")
			}
			blob = append(blob, buf[2:2+ln]...)
			buf = buf[2+ln:]
		}
	}

	if err := p.opCloseBlob(ctx, blobHandle); err != nil {
		return nil, err
	}
	if p.lazy() {
		p.lazyCount++
	} else if _, err := p.opResponse(ctx); err != nil {
		return nil, err
	}
	return blob, nil
}

// createBlob uploads value as a new blob and returns its id.
func (p *protocol) createBlob(ctx context.Context, value []byte, transHandle int32) ([]byte, error) {
	staged := p.suspendBuffer()
	defer p.resumeBuffer(staged)

	if err := p.opCreateBlob2(ctx, transHandle); err != nil {
		return nil, err
	}
	res, err := p.opResponse(ctx)
	if err != nil {
		return nil, err
	}
	blobHandle, blobID := res.handle, res.oid

	for i := 0; i < len(value); i += blobSegmentSize {
		end := i + blobSegmentSize
		if end > len(value) {
			end = len(value)
		}
		if err := p.opPutSegment(ctx, blobHandle, value[i:end]); err != nil {
			return nil, err
		}
		if _, err := p.opResponse(ctx); err != nil {
			return nil, err
		}
	}

	if err := p.opCloseBlob(ctx, blobHandle); err != nil {
		return nil, err
	}
	if _, err := p.opResponse(ctx); err != nil {
		return nil, err
	}
	return blobID, nil
}

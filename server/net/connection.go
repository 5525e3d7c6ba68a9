package netsrv

import (
	"crypto/rand"
	"net"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/logger"
	"github.com/zhukovaskychina/xmysql-server/server/admin"
	"github.com/zhukovaskychina/xmysql-server/server/auth"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/server/protocol"
	"github.com/zhukovaskychina/xmysql-server/server/session"
)

// ServerVersion is reported in the initial handshake.
const ServerVersion = "8.0.30-xmysql"

// PreparedStatement is one registered COM_STMT_PREPARE result, owned
// exclusively by its connection.
type PreparedStatement struct {
	ID         uint32
	SQL        string
	ParamCount int
	ParamTypes []uint16
	LongData   map[int][]byte
	Cursor     *cursorState
}

type cursorState struct {
	columns []*protocol.ColumnDefinition
	rows    [][]interface{}
	next    int
}

func (c *cursorState) exhausted() bool { return c.next >= len(c.rows) }

func (c *cursorState) fetch(n int) [][]interface{} {
	end := c.next + n
	if end > len(c.rows) {
		end = len(c.rows)
	}
	rows := c.rows[c.next:end]
	c.next = end
	return rows
}

// Connection is one accepted client's state machine: HANDSHAKE -> AUTH ->
// COMMAND -> CLOSED, plus the prepared-statement registry for the command
// phase's inner states.
type Connection struct {
	id             uint32
	conn           *Conn
	framer         *protocol.Framer
	identity       auth.IdentityProvider
	sessionFactory session.Factory
	adminVars      *admin.Vars

	capabilities uint32
	serverCaps   uint32
	charset      byte
	status       uint16

	username     string
	database     string
	clientPlugin string
	connectAttrs map[string]string
	zstdLevel    byte
	nonce        []byte

	session session.Session

	statements map[uint32]*PreparedStatement
	nextStmtID uint32

	closed bool
}

// NewConnection builds a Connection over an accepted raw stream. vars
// configures the admin/system-variable interception layer every connection
// wraps its session collaborator in; a nil vars falls back to
// admin.DefaultVars().
func NewConnection(raw net.Conn, id uint32, serverCaps uint32, identity auth.IdentityProvider, factory session.Factory, vars *admin.Vars) *Connection {
	c := newConn(raw)
	if vars == nil {
		vars = admin.DefaultVars()
	}
	return &Connection{
		id:             id,
		conn:           c,
		framer:         protocol.NewFramer(c),
		identity:       identity,
		sessionFactory: factory,
		adminVars:      vars,
		serverCaps:     serverCaps,
		charset:        common.CharacterSetUtf8,
		status:         protocol.DefaultServerStatus,
		statements:     map[uint32]*PreparedStatement{},
	}
}

// ID returns the connection's unique 32-bit id.
func (c *Connection) ID() uint32 { return c.id }

// CompressionNegotiated reports the ZSTD level the client requested, if
// any; the core never acts on it (delegated per spec Non-goals).
func (c *Connection) CompressionNegotiated() (algo string, level int) {
	if c.capabilities&common.CLIENT_ZSTD_COMPRESSION_ALGORITHM == 0 {
		return "", 0
	}
	return "zstd", int(c.zstdLevel)
}

// Serve runs the connection's full lifecycle: connection phase, then the
// command loop, then teardown. It returns once the connection is closed,
// which includes right after a handshake failure (already reported to the
// client as an ERR packet where possible).
func (c *Connection) Serve() {
	defer c.conn.Close()

	if err := c.connectionPhase(); err != nil {
		logger.Errorf("connection %d: handshake failed: %s", c.id, err.Error())
		return
	}
	defer func() {
		if c.session != nil {
			if err := c.session.Close(); err != nil {
				logger.Errorf("connection %d: session close: %s", c.id, err.Error())
			}
		}
	}()

	for {
		if err := c.commandIteration(); err != nil {
			if _, closed := err.(*protocol.ConnectionClosed); closed {
				return
			}
			if err == errQuit {
				return
			}
			logger.Errorf("connection %d: command loop: %s", c.id, err.Error())
			return
		}
	}
}

// connectionPhase runs the handshake and the first authentication round
// (spec §4.3). Any failure is reported to the client as best-effort and
// then returned so the caller tears the connection down.
func (c *Connection) connectionPhase() error {
	nonce := make([]byte, 20)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Trace(err)
	}
	for i := range nonce {
		if nonce[i] == 0 {
			nonce[i] = 1
		}
	}
	c.nonce = nonce

	greeting := &protocol.HandshakeV10{
		ProtocolVersion: 10,
		ServerVersion:   ServerVersion,
		ConnectionID:    c.id,
		AuthPluginData:  nonce,
		Capabilities:    c.serverCaps,
		Charset:         common.CharacterSetUtf8,
		StatusFlags:     c.status,
		AuthPluginName:  auth.ClientPluginNativePassword,
	}
	if err := c.framer.WritePacket(greeting.Encode()); err != nil {
		return c.handshakeError(errors.Trace(err))
	}

	buf, err := c.framer.ReadPacket()
	if err != nil {
		return c.handshakeError(errors.Trace(err))
	}
	resp, err := protocol.ParseHandshakeResponse41(buf)
	if err != nil {
		return c.handshakeError(errors.Trace(err))
	}

	c.capabilities = c.serverCaps & resp.ClientFlags
	c.charset = resp.Charset
	c.database = resp.Database
	c.clientPlugin = resp.ClientPluginName
	c.connectAttrs = resp.ConnectAttrs
	c.zstdLevel = resp.ZstdCompressionLevel

	fastPlugin := c.identity.DefaultPlugin()
	info := &auth.Info{
		Username:         resp.Username,
		AuthResponse:     resp.AuthResponse,
		ClientPluginName: resp.ClientPluginName,
		ConnectAttrs:     resp.ConnectAttrs,
	}

	engine := auth.NewEngine(c.identity)
	result, err := engine.Authenticate(c.framer, info, nonce, nil, fastPlugin)
	if err != nil {
		return c.authError(err)
	}

	c.username = result.AuthenticatedAs
	if err := c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, "")); err != nil {
		return errors.Trace(err)
	}
	c.framer.ResetSeq()

	c.session = admin.New(c.sessionFactory.NewSession(), c.adminVars)
	return c.session.Init(&session.ConnectionInfo{
		ConnectionID: c.id,
		Username:     c.username,
		Database:     c.database,
		ClientAddr:   c.conn.RemoteAddr(),
	})
}

func (c *Connection) handshakeError(cause error) error {
	msg := cause.Error()
	_ = c.framer.WritePacket(protocol.EncodeError(common.ER_HANDSHAKE_ERROR, common.SSUnknownSQLState, msg))
	return cause
}

func (c *Connection) authError(cause error) error {
	if merr, ok := protocol.AsMysqlError(cause); ok {
		_ = c.framer.WritePacket(protocol.EncodeError(merr.Code, common.SSUnknownSQLState, merr.Message))
		return cause
	}
	return c.handshakeError(cause)
}

package netsrv

import (
	"errors"

	jerrors "github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/server/auth"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/server/protocol"
	"github.com/zhukovaskychina/xmysql-server/server/session"
)

// errQuit signals a clean COM_QUIT; Serve treats it the same as a closed
// stream.
var errQuit = errors.New("quit")

// commandIteration reads and dispatches exactly one command-phase packet.
// reset_seq runs in all cases per spec §4.1/§4.5: success, MysqlError, or
// any other failure.
func (c *Connection) commandIteration() (err error) {
	defer c.framer.ResetSeq()

	payload, readErr := c.framer.ReadPacket()
	if readErr != nil {
		return readErr
	}
	if len(payload) == 0 {
		return c.writeErr(jerrors.New("empty command packet"))
	}

	cmd := payload[0]
	body := payload[1:]

	switch cmd {
	case common.COM_QUERY:
		err = c.handleQuery(body)
	case common.COM_STMT_PREPARE:
		err = c.handleStmtPrepare(body)
	case common.COM_STMT_SEND_LONG_DATA:
		err = c.handleStmtSendLongData(body)
	case common.COM_STMT_EXECUTE:
		err = c.handleStmtExecute(body)
	case common.COM_STMT_FETCH:
		err = c.handleStmtFetch(body)
	case common.COM_STMT_RESET:
		err = c.handleStmtReset(body)
	case common.COM_STMT_CLOSE:
		err = c.handleStmtClose(body)
	case common.COM_PING:
		err = c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
	case common.COM_CHANGE_USER:
		err = c.handleChangeUser(body)
	case common.COM_RESET_CONNECTION:
		err = c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
	case common.COM_DEBUG:
		err = c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
	case common.COM_QUIT:
		return errQuit
	default:
		return c.writeErr(protocol.NewMysqlError(common.ER_UNKNOWN_COM_ERROR,
			"Unknown command "+common.CommandString(cmd)))
	}

	if err != nil {
		return c.writeErr(err)
	}
	return nil
}

// writeErr renders err as an ERR packet: MysqlError carries its own code
// and message, anything else becomes a generic server error.
func (c *Connection) writeErr(err error) error {
	if merr, ok := protocol.AsMysqlError(err); ok {
		return c.framer.WritePacket(protocol.EncodeError(merr.Code, common.SSUnknownSQLState, merr.Message))
	}
	return c.framer.WritePacket(protocol.EncodeError(common.ER_UNKNOWN_ERROR, common.SSUnknownSQLState, err.Error()))
}

func (c *Connection) handleQuery(body []byte) error {
	q, err := protocol.ParseComQuery(body, c.capabilities&common.CLIENT_QUERY_ATTRIBUTES != 0, c.charset)
	if err != nil {
		return err
	}
	rs, err := c.session.Query(q.SQL, q.Attrs)
	if err != nil {
		return err
	}
	if rs == nil || len(rs.Columns) == 0 {
		return c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
	}
	return protocol.WriteTextResultSet(c.framer, rs, c.capabilities, c.status, c.charset)
}

func (c *Connection) deprecateEOF() bool {
	return c.capabilities&common.CLIENT_DEPRECATE_EOF != 0
}

func (c *Connection) handleStmtPrepare(body []byte) error {
	sql := string(body)
	paramCount := protocol.CountParams(sql)

	id := c.allocStatementID()
	stmt := &PreparedStatement{
		ID:         id,
		SQL:        sql,
		ParamCount: paramCount,
		LongData:   map[int][]byte{},
	}
	c.statements[id] = stmt

	if err := c.framer.WritePacket(protocol.EncodeStmtPrepareOK(id, 0, uint16(paramCount), 0)); err != nil {
		return err
	}
	if paramCount > 0 {
		for i := 0; i < paramCount; i++ {
			col := protocol.NewColumn("?", common.COLUMN_TYPE_VAR_STRING)
			if err := c.framer.WritePacket(col.Encode()); err != nil {
				return err
			}
		}
		if !c.deprecateEOF() {
			if err := c.framer.WritePacket(protocol.EncodeEOF(c.status, 0)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Connection) handleStmtSendLongData(body []byte) error {
	if len(body) < 6 {
		return nil
	}
	stmtID := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	paramID := int(uint16(body[4]) | uint16(body[5])<<8)
	stmt, ok := c.statements[stmtID]
	if !ok {
		return nil
	}
	stmt.LongData[paramID] = append(stmt.LongData[paramID], body[6:]...)
	return nil
}

func (c *Connection) handleStmtExecute(body []byte) error {
	if len(body) < 4 {
		return protocol.NewMysqlError(common.ER_UNKNOWN_PROCEDURE, "malformed STMT_EXECUTE")
	}
	stmtID := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	stmt, ok := c.statements[stmtID]
	if !ok {
		return protocol.NewMysqlError(common.ER_UNKNOWN_PROCEDURE, "Unknown prepared statement handler")
	}

	req, err := protocol.ParseStmtExecute(body, stmt.ParamCount, stmt.ParamTypes, stmt.LongData, c.charset)
	if err != nil {
		return err
	}
	if req.ParamTypes != nil {
		stmt.ParamTypes = req.ParamTypes
	}
	for idx, buf := range stmt.LongData {
		if idx < len(req.Params) {
			s, err := protocol.DecodeCharsetText(c.charset, buf)
			if err != nil {
				return err
			}
			req.Params[idx] = s
		}
	}
	stmt.LongData = map[int][]byte{}

	boundSQL, err := bindParams(stmt.SQL, req.Params, c.charset)
	if err != nil {
		return err
	}
	attrs := map[string]string{}
	rs, err := c.session.Query(boundSQL, attrs)
	if err != nil {
		return err
	}
	if rs == nil || len(rs.Columns) == 0 {
		return c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
	}

	if req.CursorType != protocol.CursorTypeNoCursor {
		stmt.Cursor = &cursorState{columns: rs.Columns, rows: rs.Rows}
		if err := c.framer.WritePacket(protocol.EncodeColumnCount(len(rs.Columns))); err != nil {
			return err
		}
		for _, col := range rs.Columns {
			if err := c.framer.WritePacket(col.Encode()); err != nil {
				return err
			}
		}
		status := c.status | common.SERVER_STATUS_CURSOR_EXISTS
		return c.framer.WritePacket(protocol.EncodeOKOrEOF(c.deprecateEOF(), 0, status, 0))
	}

	return protocol.WriteBinaryResultSet(c.framer, rs, c.capabilities, c.status, c.charset)
}

func (c *Connection) handleStmtFetch(body []byte) error {
	if len(body) < 8 {
		return protocol.NewMysqlError(common.ER_UNKNOWN_PROCEDURE, "malformed STMT_FETCH")
	}
	stmtID := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	numRows := int(uint32(body[4]) | uint32(body[5])<<8 | uint32(body[6])<<16 | uint32(body[7])<<24)

	stmt, ok := c.statements[stmtID]
	if !ok || stmt.Cursor == nil {
		return protocol.NewMysqlError(common.ER_UNKNOWN_PROCEDURE, "Unknown prepared statement handler")
	}

	columnTypes := make([]byte, len(stmt.Cursor.columns))
	for i, col := range stmt.Cursor.columns {
		columnTypes[i] = col.Type
	}
	for _, row := range stmt.Cursor.fetch(numRows) {
		encoded, err := protocol.EncodeBinaryRow(row, columnTypes, c.charset)
		if err != nil {
			return err
		}
		if err := c.framer.WritePacket(encoded); err != nil {
			return err
		}
	}

	status := c.status | common.SERVER_STATUS_CURSOR_EXISTS
	if stmt.Cursor.exhausted() {
		status = c.status | common.SERVER_STATUS_LAST_ROW_SENT
	}
	return c.framer.WritePacket(protocol.EncodeOKOrEOF(c.deprecateEOF(), 0, status, 0))
}

func (c *Connection) handleStmtReset(body []byte) error {
	if len(body) < 4 {
		return c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
	}
	stmtID := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	if stmt, ok := c.statements[stmtID]; ok {
		stmt.LongData = map[int][]byte{}
		stmt.Cursor = nil
	}
	return c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, ""))
}

func (c *Connection) handleStmtClose(body []byte) error {
	if len(body) < 4 {
		return nil
	}
	stmtID := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	delete(c.statements, stmtID)
	return nil
}

// allocStatementID picks the next id in a monotonic ring, skipping ids
// still live in the registry (spec §3's wrap-around rule).
func (c *Connection) allocStatementID() uint32 {
	for {
		c.nextStmtID++
		if c.nextStmtID == 0 {
			c.nextStmtID = 1
		}
		if _, live := c.statements[c.nextStmtID]; !live {
			return c.nextStmtID
		}
	}
}

// handleChangeUser re-runs the connection phase's authentication without
// the fast path, then re-initializes the session collaborator.
func (c *Connection) handleChangeUser(body []byte) error {
	req, err := protocol.ParseChangeUser(body, c.capabilities)
	if err != nil {
		return err
	}

	info := &auth.Info{
		Username:         req.Username,
		AuthResponse:     req.AuthResponse,
		ClientPluginName: req.ClientPluginName,
		ConnectAttrs:     req.ConnectAttrs,
	}
	engine := auth.NewEngine(c.identity)
	result, err := engine.Authenticate(c.framer, info, c.nonce, nil, nil)
	if err != nil {
		if merr, ok := protocol.AsMysqlError(err); ok {
			return merr
		}
		return protocol.NewMysqlError(common.ER_ACCESS_DENIED_ERROR, err.Error())
	}

	c.username = result.AuthenticatedAs
	c.database = req.Database
	c.charset = req.Charset
	if req.ClientPluginName != "" {
		c.clientPlugin = req.ClientPluginName
	}
	if req.ConnectAttrs != nil {
		c.connectAttrs = req.ConnectAttrs
	}
	c.statements = map[uint32]*PreparedStatement{}

	if err := c.framer.WritePacket(protocol.EncodeOK(0, 0, c.status, 0, "")); err != nil {
		return err
	}

	return c.session.Init(&session.ConnectionInfo{
		ConnectionID: c.id,
		Username:     c.username,
		Database:     c.database,
		ClientAddr:   c.conn.RemoteAddr(),
	})
}

// bindParams renders a prepared statement's SQL with its bound parameter
// values substituted for `?` placeholders in order, encoded in the
// connection's negotiated charset. Real parameter binding belongs to the
// session collaborator's SQL engine; this textual splice is the hand-off
// format a Session that embeds a full SQL engine expects to receive (it may
// instead choose to bind positionally from attrs/params passed through out
// of band, which this core does not mandate).
func bindParams(sql string, params []interface{}, charset uint8) (string, error) {
	if len(params) == 0 {
		return sql, nil
	}
	out := make([]byte, 0, len(sql))
	argi := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' && argi < len(params) {
			encoded, err := protocol.EncodeText(params[argi], charset)
			if err != nil {
				return "", err
			}
			out = append(out, encoded...)
			argi++
			continue
		}
		out = append(out, sql[i])
	}
	return string(out), nil
}

package protocol

import (
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

// MysqlError is the wire-facing error type: a stable error code plus a
// human-readable message, written to the client as an ERR packet. Internal
// plumbing errors (ProtocolError, EncodingError) are not MysqlErrors; the
// command loop converts them to a generic one before replying.
type MysqlError struct {
	Code    uint16
	State   string
	Message string
}

func (e *MysqlError) Error() string {
	return e.Message
}

// NewMysqlError builds a MysqlError with the default SQL state.
func NewMysqlError(code uint16, message string) *MysqlError {
	return &MysqlError{Code: code, State: common.SSUnknownSQLState, Message: message}
}

// AsMysqlError unwraps err into a *MysqlError if it already is one;
// otherwise it reports ok=false.
func AsMysqlError(err error) (*MysqlError, bool) {
	me, ok := err.(*MysqlError)
	return me, ok
}

// EncodeError builds an ERR packet payload (header byte 0xFF).
//
//	int<1>	header	0xFF
//	int<2>	error_code
//	string<1>	sql_state_marker	'#'
//	string<5>	sql_state
//	string<EOF>	error_message
func EncodeError(code uint16, state string, message string) []byte {
	if state == "" {
		state = common.SSUnknownSQLState
	}
	buf := make([]byte, 0, 9+len(message))
	buf = util.WriteByte(buf, 0xFF)
	buf = util.WriteUB2(buf, code)
	buf = util.WriteByte(buf, '#')
	buf = util.WriteBytes(buf, []byte(state))
	buf = util.WriteBytes(buf, []byte(message))
	return buf
}

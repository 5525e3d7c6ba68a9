/*
 * This code was derived from https://github.com/youtube/vitess.
 *
 * go-mysqlstack
 * xelabs.org
 *
 * Copyright (c) XeLabs
 * GPL License
 *
 */

package common

// Column types used in ColumnDefinition41 and binary resultrow encoding.
// https://dev.mysql.com/doc/internals/en/com-query-response.html#packet-Protocol::ColumnType
const (
	COLUMN_TYPE_DECIMAL    = 0
	COLUMN_TYPE_TINY       = 1
	COLUMN_TYPE_SHORT      = 2
	COLUMN_TYPE_LONG       = 3
	COLUMN_TYPE_FLOAT      = 4
	COLUMN_TYPE_DOUBLE     = 5
	COLUMN_TYPE_NULL       = 6
	COLUMN_TYPE_TIMESTAMP  = 7
	COLUMN_TYPE_LONGLONG   = 8
	COLUMN_TYPE_INT24      = 9
	COLUMN_TYPE_DATE       = 10
	COLUMN_TYPE_TIME       = 11
	COLUMN_TYPE_DATETIME   = 12
	COLUMN_TYPE_YEAR       = 13
	COLUMN_TYPE_NEWDATE    = 14
	COLUMN_TYPE_VARCHAR    = 15
	COLUMN_TYPE_BIT        = 16
	COLUMN_TYPE_JSON       = 245
	COLUMN_TYPE_NEWDECIMAL = 246
	COLUMN_TYPE_ENUM       = 247
	COLUMN_TYPE_SET        = 248
	COLUMN_TYPE_TINY_BLOB  = 249
	COLUMN_TYPE_MEDIUM_BLOB = 250
	COLUMN_TYPE_LONG_BLOB  = 251
	COLUMN_TYPE_BLOB       = 252
	COLUMN_TYPE_VAR_STRING = 253
	COLUMN_TYPE_STRING     = 254
	COLUMN_TYPE_GEOMETRY   = 255
)

// Command-phase byte codes.
// https://dev.mysql.com/doc/internals/en/command-phase.html
const (
	COM_SLEEP byte = iota
	COM_QUIT
	COM_INIT_DB
	COM_QUERY
	COM_FIELD_LIST
	COM_CREATE_DB
	COM_DROP_DB
	COM_REFRESH
	COM_SHUTDOWN
	COM_STATISTICS
	COM_PROCESS_INFO
	COM_CONNECT
	COM_PROCESS_KILL
	COM_DEBUG
	COM_PING
	COM_TIME
	COM_DELAYED_INSERT
	COM_CHANGE_USER
	COM_BINLOG_DUMP
	COM_TABLE_DUMP
	COM_CONNECT_OUT
	COM_REGISTER_SLAVE
	COM_STMT_PREPARE
	COM_STMT_EXECUTE
	COM_STMT_SEND_LONG_DATA
	COM_STMT_CLOSE
	COM_STMT_RESET
	COM_SET_OPTION
	COM_STMT_FETCH
	COM_DAEMON
	COM_BINLOG_DUMP_GTID
	COM_RESET_CONNECTION
)

func CommandString(cmd byte) string {
	switch cmd {
	case COM_SLEEP:
		return "COM_SLEEP"
	case COM_QUIT:
		return "COM_QUIT"
	case COM_INIT_DB:
		return "COM_INIT_DB"
	case COM_QUERY:
		return "COM_QUERY"
	case COM_FIELD_LIST:
		return "COM_FIELD_LIST"
	case COM_PING:
		return "COM_PING"
	case COM_CHANGE_USER:
		return "COM_CHANGE_USER"
	case COM_STMT_PREPARE:
		return "COM_STMT_PREPARE"
	case COM_STMT_EXECUTE:
		return "COM_STMT_EXECUTE"
	case COM_STMT_SEND_LONG_DATA:
		return "COM_STMT_SEND_LONG_DATA"
	case COM_STMT_CLOSE:
		return "COM_STMT_CLOSE"
	case COM_STMT_RESET:
		return "COM_STMT_RESET"
	case COM_STMT_FETCH:
		return "COM_STMT_FETCH"
	case COM_DEBUG:
		return "COM_DEBUG"
	case COM_RESET_CONNECTION:
		return "COM_RESET_CONNECTION"
	}
	return "UNKNOWN"
}

// Capability flags. https://dev.mysql.com/doc/internals/en/capability-flags.html
const (
	CLIENT_LONG_PASSWORD                  = uint32(1)
	CLIENT_FOUND_ROWS                     = uint32(1 << 1)
	CLIENT_LONG_FLAG                      = uint32(1 << 2)
	CLIENT_CONNECT_WITH_DB                = uint32(1 << 3)
	CLIENT_NO_SCHEMA                      = uint32(1 << 4)
	CLIENT_COMPRESS                       = uint32(1 << 5)
	CLIENT_ODBC                           = uint32(1 << 6)
	CLIENT_LOCAL_FILES                    = uint32(1 << 7)
	CLIENT_IGNORE_SPACE                   = uint32(1 << 8)
	CLIENT_PROTOCOL_41                    = uint32(1 << 9)
	CLIENT_INTERACTIVE                    = uint32(1 << 10)
	CLIENT_SSL                            = uint32(1 << 11)
	CLIENT_IGNORE_SIGPIPE                 = uint32(1 << 12)
	CLIENT_TRANSACTIONS                   = uint32(1 << 13)
	CLIENT_RESERVED                       = uint32(1 << 14)
	CLIENT_SECURE_CONNECTION               = uint32(1 << 15)
	CLIENT_MULTI_STATEMENTS               = uint32(1 << 16)
	CLIENT_MULTI_RESULTS                  = uint32(1 << 17)
	CLIENT_PS_MULTI_RESULTS               = uint32(1 << 18)
	CLIENT_PLUGIN_AUTH                    = uint32(1 << 19)
	CLIENT_CONNECT_ATTRS                  = uint32(1 << 20)
	CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA = uint32(1 << 21)
	CLIENT_CAN_HANDLE_EXPIRED_PASSWORDS   = uint32(1 << 22)
	CLIENT_SESSION_TRACK                  = uint32(1 << 23)
	CLIENT_DEPRECATE_EOF                  = uint32(1 << 24)
	CLIENT_QUERY_ATTRIBUTES               = uint32(1 << 27)
	CLIENT_ZSTD_COMPRESSION_ALGORITHM     = uint32(1 << 26)

	// ServerCapabilities is the default set this server advertises in its
	// initial handshake. It intentionally omits CLIENT_SSL: TLS termination
	// is a transport concern delegated to the embedder.
	ServerCapabilities = CLIENT_LONG_PASSWORD |
		CLIENT_FOUND_ROWS |
		CLIENT_LONG_FLAG |
		CLIENT_CONNECT_WITH_DB |
		CLIENT_PROTOCOL_41 |
		CLIENT_TRANSACTIONS |
		CLIENT_SECURE_CONNECTION |
		CLIENT_PLUGIN_AUTH |
		CLIENT_CONNECT_ATTRS |
		CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA |
		CLIENT_SESSION_TRACK |
		CLIENT_DEPRECATE_EOF |
		CLIENT_QUERY_ATTRIBUTES |
		CLIENT_ZSTD_COMPRESSION_ALGORITHM
)

const (
	SSUnknownSQLState = "HY000"
)

// Status flags returned in OK/EOF packets.
// http://dev.mysql.com/doc/internals/en/status-flags.html
const (
	SERVER_STATUS_AUTOCOMMIT      = uint16(0x0002)
	SERVER_STATUS_MORE_RESULTS    = uint16(0x0008)
	SERVER_MORE_RESULTS_EXISTS    = uint16(0x0008)
	SERVER_STATUS_CURSOR_EXISTS   = uint16(0x0040)
	SERVER_STATUS_LAST_ROW_SENT   = uint16(0x0080)
	SERVER_STATUS_DB_DROPPED      = uint16(0x0100)
	SERVER_STATUS_IN_TRANS        = uint16(0x0001)
)

// A few interesting character set values.
// See http://dev.mysql.com/doc/internals/en/character-set.html#packet-Protocol::CharacterSet
const (
	CharacterSetUtf8   = 33
	CharacterSetBinary = 63
)

// CharacterSetMap maps the charset name to its wire ordinal.
var CharacterSetMap = map[string]uint8{
	"big5":     1,
	"dec8":     3,
	"cp850":    4,
	"hp8":      6,
	"koi8r":    7,
	"latin1":   8,
	"latin2":   9,
	"swe7":     10,
	"ascii":    11,
	"ujis":     12,
	"sjis":     13,
	"hebrew":   16,
	"tis620":   18,
	"euckr":    19,
	"koi8u":    22,
	"gb2312":   24,
	"greek":    25,
	"cp1250":   26,
	"gbk":      28,
	"latin5":   30,
	"armscii8": 32,
	"utf8":     CharacterSetUtf8,
	"ucs2":     35,
	"cp866":    36,
	"keybcs2":  37,
	"macce":    38,
	"macroman": 39,
	"cp852":    40,
	"latin7":   41,
	"utf8mb4":  45,
	"cp1251":   51,
	"utf16":    54,
	"utf16le":  56,
	"cp1256":   57,
	"cp1257":   59,
	"utf32":    60,
	"binary":   CharacterSetBinary,
	"geostd8":  92,
	"cp932":    95,
	"eucjpms":  97,
}

// CharsetName reverse-looks-up a wire character-set ordinal against
// CharacterSetMap, for diagnostics and for reporting a connection's
// negotiated charset by name.
func CharsetName(id uint8) (string, bool) {
	for name, ordinal := range CharacterSetMap {
		if ordinal == id {
			return name, true
		}
	}
	return "", false
}

const (
	// Error codes for server-side errors.
	// Originally found in include/mysql/mysqld_error.h
	ER_ERROR_FIRST                  uint16 = 1000
	ER_CON_COUNT_ERROR                     = 1040
	ER_HANDSHAKE_ERROR                     = 1043
	ER_ACCESS_DENIED_ERROR                 = 1045
	ER_NO_DB_ERROR                         = 1046
	ER_USER_DOES_NOT_EXIST                 = 1449
	ER_BAD_DB_ERROR                        = 1049
	ER_UNKNOWN_COM_ERROR                   = 1047
	ER_UNKNOWN_ERROR                       = 1105
	ER_UNKNOWN_PROCEDURE                   = 1106
	ER_HOST_NOT_PRIVILEGED                 = 1130
	ER_NO_SUCH_TABLE                       = 1146
	ER_SYNTAX_ERROR                        = 1149
	ER_SPECIFIC_ACCESS_DENIED_ERROR        = 1227
	ER_OPTION_PREVENTS_STATEMENT           = 1290
	ER_MALFORMED_PACKET                    = 1835
	ER_NOT_SUPPORTED_YET                   = 1235
	ER_PARSE_ERROR                         = 1064

	// Error codes for client-side errors.
	// Originally found in include/mysql/errmsg.h
	CR_SERVER_LOST   = 2013
	CR_VERSION_ERROR = 2007
)

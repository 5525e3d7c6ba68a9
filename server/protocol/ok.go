package protocol

import (
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

// EncodeOK builds an OK packet payload (header byte 0x00).
//
//	int<1>	header	0x00
//	int<lenenc>	affected_rows
//	int<lenenc>	last_insert_id
//	int<2>	status_flags
//	int<2>	warnings
//	string<EOF>	info (only when info is non-empty; raw bytes, no length prefix)
func EncodeOK(affectedRows, lastInsertID uint64, status uint16, warnings uint16, info string) []byte {
	buf := make([]byte, 0, 16+len(info))
	buf = util.WriteByte(buf, 0x00)
	buf = util.WriteLength(buf, int64(affectedRows))
	buf = util.WriteLength(buf, int64(lastInsertID))
	buf = util.WriteUB2(buf, status)
	buf = util.WriteUB2(buf, warnings)
	if info != "" {
		buf = util.WriteBytes(buf, []byte(info))
	}
	return buf
}

// EncodeEOF builds a classic EOF packet payload (header byte 0xFE),
// legal only when the payload is shorter than 9 bytes.
func EncodeEOF(status uint16, warnings uint16) []byte {
	buf := make([]byte, 0, 5)
	buf = util.WriteByte(buf, 0xFE)
	buf = util.WriteUB2(buf, warnings)
	buf = util.WriteUB2(buf, status)
	return buf
}

// EncodeOKOrEOF chooses between a classic EOF and an OK-with-eof-marker
// packet depending on whether CLIENT_DEPRECATE_EOF was negotiated.
func EncodeOKOrEOF(deprecateEOF bool, affectedRows uint64, status uint16, warnings uint16) []byte {
	if deprecateEOF {
		buf := make([]byte, 0, 16)
		buf = util.WriteByte(buf, 0xFE)
		buf = util.WriteLength(buf, int64(affectedRows))
		buf = util.WriteLength(buf, 0)
		buf = util.WriteUB2(buf, status)
		buf = util.WriteUB2(buf, warnings)
		return buf
	}
	return EncodeEOF(status, warnings)
}

// DefaultServerStatus is the status-flag value used by packets that carry
// no more specific state: autocommit on, nothing else.
const DefaultServerStatus = uint16(common.SERVER_STATUS_AUTOCOMMIT)

package protocol

import (
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

// HandshakeV10 is the server's initial greeting.
type HandshakeV10 struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	AuthPluginData  []byte // 20 bytes: 8-byte part 1 + 12-byte part 2
	Capabilities    uint32
	Charset         byte
	StatusFlags     uint16
	AuthPluginName  string
}

// Encode renders the HandshakeV10 packet payload.
func (h *HandshakeV10) Encode() []byte {
	authData := h.AuthPluginData
	if len(authData) < 20 {
		padded := make([]byte, 20)
		copy(padded, authData)
		authData = padded
	}

	buf := make([]byte, 0, 64+len(h.ServerVersion)+len(h.AuthPluginName))
	buf = util.WriteByte(buf, h.ProtocolVersion)
	buf = util.WriteWithNull(buf, []byte(h.ServerVersion))
	buf = util.WriteUB4(buf, h.ConnectionID)
	buf = util.WriteBytes(buf, authData[:8])
	buf = util.WriteByte(buf, 0) // filler
	buf = util.WriteUB2(buf, uint16(h.Capabilities&0xFFFF))
	buf = util.WriteByte(buf, h.Charset)
	buf = util.WriteUB2(buf, h.StatusFlags)
	buf = util.WriteUB2(buf, uint16(h.Capabilities>>16))
	buf = util.WriteByte(buf, byte(len(authData)+1))
	buf = util.WriteBytes(buf, make([]byte, 10)) // reserved
	buf = util.WriteBytes(buf, authData[8:])
	buf = util.WriteByte(buf, 0) // trailing zero on the nonce
	buf = util.WriteWithNull(buf, []byte(h.AuthPluginName))
	return buf
}

// HandshakeResponse41 is the client's reply to HandshakeV10.
type HandshakeResponse41 struct {
	ClientFlags          uint32
	MaxPacketSize        uint32
	Charset              byte
	Username             string
	AuthResponse         []byte
	Database             string
	ClientPluginName     string
	ConnectAttrs         map[string]string
	ZstdCompressionLevel byte
}

// ParseHandshakeResponse41 parses a client's handshake response. Every
// optional field is gated on the client's own declared flags; the
// capabilities the server advertised are not consulted while parsing.
func ParseHandshakeResponse41(buf []byte) (*HandshakeResponse41, error) {
	if len(buf) < 32 {
		return nil, &ProtocolError{Reason: "handshake response too short"}
	}
	cursor := 0
	cursor, clientFlags := util.ReadUB4(buf, cursor)
	cursor, maxPacketSize := util.ReadUB4(buf, cursor)
	cursor, charset := util.ReadByte(buf, cursor)
	cursor += 23 // reserved

	cursor, username, err := ReadNullTerminatedString(buf, cursor)
	if err != nil {
		return nil, err
	}

	resp := &HandshakeResponse41{
		ClientFlags:   clientFlags,
		MaxPacketSize: maxPacketSize,
		Charset:       charset,
		Username:      string(username),
		ConnectAttrs:  map[string]string{},
	}

	var authResponse []byte
	var isNull bool
	var authLen byte
	switch {
	case clientFlags&common.CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA != 0:
		cursor, authResponse, isNull, err = ReadLenencString(buf, cursor)
		if err != nil {
			return nil, err
		}
		if isNull {
			authResponse = nil
		}
	case clientFlags&common.CLIENT_SECURE_CONNECTION != 0:
		cursor, authLen = util.ReadByte(buf, cursor)
		cursor, authResponse = util.ReadBytes(buf, cursor, int(authLen))
	default:
		cursor, authResponse, err = ReadNullTerminatedString(buf, cursor)
		if err != nil {
			return nil, err
		}
	}
	resp.AuthResponse = authResponse

	if clientFlags&common.CLIENT_CONNECT_WITH_DB != 0 {
		var db []byte
		cursor, db, err = ReadNullTerminatedString(buf, cursor)
		if err != nil {
			return nil, err
		}
		resp.Database = string(db)
	}

	if clientFlags&common.CLIENT_PLUGIN_AUTH != 0 {
		var plugin []byte
		cursor, plugin, err = ReadNullTerminatedString(buf, cursor)
		if err != nil {
			return nil, err
		}
		resp.ClientPluginName = string(plugin)
	}

	if clientFlags&common.CLIENT_CONNECT_ATTRS != 0 && cursor < len(buf) {
		var totalLen uint64
		var isNull bool
		cursor, totalLen, isNull, err = ReadLenencInt(buf, cursor)
		if err != nil {
			return nil, err
		}
		if !isNull {
			end := cursor + int(totalLen)
			if end > len(buf) {
				return nil, &ProtocolError{Reason: "truncated connect attributes"}
			}
			for cursor < end {
				var key, val []byte
				cursor, key, isNull, err = ReadLenencString(buf, cursor)
				if err != nil {
					return nil, err
				}
				cursor, val, isNull, err = ReadLenencString(buf, cursor)
				if err != nil {
					return nil, err
				}
				_ = isNull
				resp.ConnectAttrs[string(key)] = string(val)
			}
		}
	}

	if clientFlags&common.CLIENT_ZSTD_COMPRESSION_ALGORITHM != 0 && cursor < len(buf) {
		_, level := util.ReadByte(buf, cursor)
		resp.ZstdCompressionLevel = level
	}

	return resp, nil
}

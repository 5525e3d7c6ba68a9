package protocol

import (
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

// ChangeUserRequest is the parsed payload of a COM_CHANGE_USER packet.
type ChangeUserRequest struct {
	Username         string
	AuthResponse     []byte
	Database         string
	Charset          byte
	ClientPluginName string
	ConnectAttrs     map[string]string
}

// ParseChangeUser decodes a COM_CHANGE_USER payload (sans the command
// byte) under the capabilities negotiated at handshake time. Its layout
// mirrors HandshakeResponse41's tail, minus the fixed client-flags/charset
// header that the connection phase already settled.
func ParseChangeUser(buf []byte, capabilities uint32) (*ChangeUserRequest, error) {
	cursor := 0
	username, err := nextNullTerminated(buf, &cursor)
	if err != nil {
		return nil, err
	}

	req := &ChangeUserRequest{Username: string(username), ConnectAttrs: map[string]string{}}

	if capabilities&common.CLIENT_SECURE_CONNECTION != 0 {
		if cursor >= len(buf) {
			return nil, &ProtocolError{Reason: "truncated CHANGE_USER auth length"}
		}
		var authLen byte
		cursor, authLen = util.ReadByte(buf, cursor)
		var auth []byte
		cursor, auth = util.ReadBytes(buf, cursor, int(authLen))
		req.AuthResponse = auth
	} else {
		auth, err := nextNullTerminated(buf, &cursor)
		if err != nil {
			return nil, err
		}
		req.AuthResponse = auth
	}

	database, err := nextNullTerminated(buf, &cursor)
	if err != nil {
		return nil, err
	}
	req.Database = string(database)

	if cursor+2 <= len(buf) {
		var charset uint16
		cursor, charset = util.ReadUB2(buf, cursor)
		req.Charset = byte(charset)
	} else {
		cursor = len(buf)
	}

	if capabilities&common.CLIENT_PLUGIN_AUTH != 0 {
		plugin, err := nextNullTerminated(buf, &cursor)
		if err != nil {
			return nil, err
		}
		req.ClientPluginName = string(plugin)
	}

	if capabilities&common.CLIENT_CONNECT_ATTRS != 0 && cursor < len(buf) {
		totalLen, isNull, nerr := readAttrsLen(buf, &cursor)
		if nerr != nil {
			return nil, nerr
		}
		if !isNull {
			end := cursor + int(totalLen)
			if end > len(buf) {
				return nil, &ProtocolError{Reason: "truncated connect attributes"}
			}
			for cursor < end {
				var key, val []byte
				var keyNull, valNull bool
				cursor, key, keyNull, err = ReadLenencString(buf, cursor)
				if err != nil {
					return nil, err
				}
				cursor, val, valNull, err = ReadLenencString(buf, cursor)
				if err != nil {
					return nil, err
				}
				_ = keyNull
				_ = valNull
				req.ConnectAttrs[string(key)] = string(val)
			}
		}
	}

	return req, nil
}

func nextNullTerminated(buf []byte, cursor *int) ([]byte, error) {
	next, value, err := ReadNullTerminatedString(buf, *cursor)
	if err != nil {
		return nil, err
	}
	*cursor = next
	return value, nil
}

func readAttrsLen(buf []byte, cursor *int) (uint64, bool, error) {
	next, total, isNull, err := ReadLenencInt(buf, *cursor)
	if err != nil {
		return 0, false, err
	}
	*cursor = next
	return total, isNull, nil
}

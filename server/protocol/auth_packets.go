package protocol

import "github.com/zhukovaskychina/xmysql-server/util"

// EncodeAuthSwitchRequest builds the packet a server sends when the
// client's declared plugin does not match the user's configured plugin.
func EncodeAuthSwitchRequest(pluginName string, data []byte) []byte {
	buf := make([]byte, 0, 8+len(pluginName)+len(data))
	buf = util.WriteByte(buf, 0xFE)
	buf = util.WriteWithNull(buf, []byte(pluginName))
	buf = util.WriteBytes(buf, data)
	return buf
}

// EncodeAuthMoreData builds a packet carrying an additional authentication
// challenge round from a multi-round plugin.
func EncodeAuthMoreData(data []byte) []byte {
	buf := make([]byte, 0, 1+len(data))
	buf = util.WriteByte(buf, 0x01)
	buf = util.WriteBytes(buf, data)
	return buf
}

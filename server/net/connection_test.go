package netsrv

import (
	"net"
	"testing"
	"time"

	"github.com/zhukovaskychina/xmysql-server/server/auth"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/server/protocol"
	"github.com/zhukovaskychina/xmysql-server/server/session"
	"github.com/zhukovaskychina/xmysql-server/util"
)

const testClientCapabilities = common.CLIENT_PROTOCOL_41 |
	common.CLIENT_SECURE_CONNECTION |
	common.CLIENT_PLUGIN_AUTH

// encodeHandshakeResponse41ForTest builds a client's HandshakeResponse41
// payload by hand, mirroring the layout ParseHandshakeResponse41 expects.
func encodeHandshakeResponse41ForTest(username string, authResponse []byte, pluginName string) []byte {
	buf := util.WriteUB4(nil, testClientCapabilities)
	buf = util.WriteUB4(buf, 1<<24) // max packet size
	buf = util.WriteByte(buf, common.CharacterSetUtf8)
	buf = append(buf, make([]byte, 23)...) // reserved
	buf = util.WriteWithNull(buf, []byte(username))
	buf = util.WriteByte(buf, byte(len(authResponse)))
	buf = append(buf, authResponse...)
	buf = util.WriteWithNull(buf, []byte(pluginName))
	return buf
}

func TestConnectionHandshakeAndSimpleQuery(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	identity := auth.NewStaticIdentityProvider()
	identity.AddTrustedUser("rick_danko")

	factory := session.DemoFactory{}
	conn := NewConnection(serverConn, 1, common.ServerCapabilities, identity, factory, nil)

	done := make(chan struct{})
	go func() {
		conn.Serve()
		close(done)
	}()

	clientFramer := protocol.NewFramer(clientConn)

	// Read the server's HandshakeV10 greeting (seq 0); the handshake
	// response continues that exchange with seq 1.
	if _, err := clientFramer.ReadPacket(); err != nil {
		t.Fatalf("reading handshake greeting: %v", err)
	}

	resp := encodeHandshakeResponse41ForTest("rick_danko", nil, "mysql_old_password")
	if err := clientFramer.WritePacket(resp); err != nil {
		t.Fatalf("writing handshake response: %v", err)
	}

	okPacket, err := clientFramer.ReadPacket()
	if err != nil {
		t.Fatalf("reading OK packet: %v", err)
	}
	if okPacket[0] != 0x00 {
		t.Fatalf("expected OK packet, got header %#x", okPacket[0])
	}
	clientFramer.ResetSeq()

	query := append([]byte{common.COM_QUERY}, []byte("SELECT 1")...)
	if err := clientFramer.WritePacket(query); err != nil {
		t.Fatalf("writing COM_QUERY: %v", err)
	}
	queryResp, err := clientFramer.ReadPacket()
	if err != nil {
		t.Fatalf("reading query response: %v", err)
	}
	if queryResp[0] != 0x00 {
		t.Fatalf("expected OK for empty result set, got header %#x", queryResp[0])
	}
	clientFramer.ResetSeq()

	quit := []byte{common.COM_QUIT}
	if err := clientFramer.WritePacket(quit); err != nil {
		t.Fatalf("writing COM_QUIT: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close after COM_QUIT")
	}
}

// TestConnectionAdminInterceptionIsIntrinsic verifies that SELECT USER()
// answers correctly even when the embedder's session.Factory returns a bare
// session with no admin wrapping of its own: NewConnection wraps every
// session in the admin layer itself.
func TestConnectionAdminInterceptionIsIntrinsic(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	identity := auth.NewStaticIdentityProvider()
	identity.AddTrustedUser("rick_danko")

	factory := session.DemoFactory{}
	conn := NewConnection(serverConn, 1, common.ServerCapabilities, identity, factory, nil)

	done := make(chan struct{})
	go func() {
		conn.Serve()
		close(done)
	}()

	clientFramer := protocol.NewFramer(clientConn)
	if _, err := clientFramer.ReadPacket(); err != nil {
		t.Fatalf("reading handshake greeting: %v", err)
	}

	resp := encodeHandshakeResponse41ForTest("rick_danko", nil, "mysql_old_password")
	if err := clientFramer.WritePacket(resp); err != nil {
		t.Fatalf("writing handshake response: %v", err)
	}
	if _, err := clientFramer.ReadPacket(); err != nil {
		t.Fatalf("reading OK packet: %v", err)
	}
	clientFramer.ResetSeq()

	query := append([]byte{common.COM_QUERY}, []byte("SELECT USER()")...)
	if err := clientFramer.WritePacket(query); err != nil {
		t.Fatalf("writing COM_QUERY: %v", err)
	}

	colCount, err := clientFramer.ReadPacket()
	if err != nil {
		t.Fatalf("reading column count: %v", err)
	}
	if colCount[0] != 1 {
		t.Fatalf("expected one column for SELECT USER(), got count byte %#x", colCount[0])
	}
	// Read the rest of the text result set (column definition, EOF, row,
	// terminating EOF): net.Pipe is unbuffered, so the server cannot take
	// COM_QUIT until every packet it writes has been read.
	var row []byte
	for i := 0; i < 4; i++ {
		pkt, err := clientFramer.ReadPacket()
		if err != nil {
			t.Fatalf("reading result set packet %d: %v", i, err)
		}
		if i == 2 {
			row = pkt
		}
	}
	if len(row) == 0 || string(row[1:]) != "rick_danko" {
		t.Fatalf("expected SELECT USER() row rick_danko, got %q", row)
	}
	clientFramer.ResetSeq()

	quit := []byte{common.COM_QUIT}
	if err := clientFramer.WritePacket(quit); err != nil {
		t.Fatalf("writing COM_QUIT: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close after COM_QUIT")
	}
}

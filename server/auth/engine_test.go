package auth

import (
	"errors"
	"testing"

	"github.com/zhukovaskychina/xmysql-server/server/protocol"
)

// scriptedTransport answers ReadPacket with a pre-scripted sequence of
// client responses, simulating a switch-path or multi-round dialogue.
type scriptedTransport struct {
	responses [][]byte
	sent      [][]byte
}

func (t *scriptedTransport) WritePacket(payload []byte) error {
	t.sent = append(t.sent, append([]byte(nil), payload...))
	return nil
}

func (t *scriptedTransport) ReadPacket() ([]byte, error) {
	if len(t.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	next := t.responses[0]
	t.responses = t.responses[1:]
	return next, nil
}

func nativeAuthResponse(nonce []byte, password string) []byte {
	stage1 := sha1Sum([]byte(password))
	stage2 := sha1Sum(stage1)
	challenge := sha1Sum(nonce, stage2)
	return xorBytes(stage1, challenge)
}

func TestEngineAuthenticateDirectPathSuccess(t *testing.T) {
	provider := NewStaticIdentityProvider()
	provider.AddUser("levon_helm", "the_weight")

	nonce := []byte("01234567890123456789")
	engine := NewEngine(provider)
	info := &Info{
		Username:         "levon_helm",
		AuthResponse:     nativeAuthResponse(nonce, "the_weight"),
		ClientPluginName: ClientPluginNativePassword,
	}

	result, err := engine.Authenticate(&scriptedTransport{}, info, nonce, nil, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AuthenticatedAs != "levon_helm" {
		t.Errorf("AuthenticatedAs = %q", result.AuthenticatedAs)
	}
}

func TestEngineAuthenticateDirectPathWrongPassword(t *testing.T) {
	provider := NewStaticIdentityProvider()
	provider.AddUser("levon_helm", "the_weight")

	nonce := []byte("01234567890123456789")
	engine := NewEngine(provider)
	info := &Info{
		Username:         "levon_helm",
		AuthResponse:     nativeAuthResponse(nonce, "wrong_password"),
		ClientPluginName: ClientPluginNativePassword,
	}

	_, err := engine.Authenticate(&scriptedTransport{}, info, nonce, nil, nil)
	if err == nil {
		t.Fatal("expected access-denied error")
	}
	merr, ok := protocol.AsMysqlError(err)
	if !ok {
		t.Fatalf("expected *MysqlError, got %T", err)
	}
	if merr.Code != 1045 {
		t.Errorf("Code = %d, want 1045 (ER_ACCESS_DENIED_ERROR)", merr.Code)
	}
}

func TestEngineAuthenticateSwitchPathUsesFreshNonce(t *testing.T) {
	provider := NewStaticIdentityProvider()
	provider.AddUser("levon_helm", "the_weight")

	handshakeNonce := []byte("01234567890123456789")
	engine := NewEngine(provider)

	// The client announces a different plugin than what the server will
	// select, forcing the switch path: no AuthResponse yet.
	info := &Info{Username: "levon_helm", ClientPluginName: "some_other_plugin"}

	// Authenticate will write an AuthSwitchRequest carrying a fresh
	// nonce; the custom transport captures it and replies correctly,
	// proving the switch path challenges against a new nonce rather
	// than the stale handshake one.
	capturing := &capturingSwitchTransport{password: "the_weight"}
	result, err := engine.Authenticate(capturing, info, handshakeNonce, nil, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AuthenticatedAs != "levon_helm" {
		t.Errorf("AuthenticatedAs = %q", result.AuthenticatedAs)
	}
	if len(capturing.sent) == 0 || capturing.sent[0][0] != 0xFE {
		t.Fatalf("expected an AuthSwitchRequest (0xFE) to be sent")
	}
	switchReq := capturing.sent[0]
	if string(switchReq[len(switchReq)-len(handshakeNonce):]) == string(handshakeNonce) {
		t.Fatalf("AuthSwitchRequest reused the handshake nonce")
	}
}

// capturingSwitchTransport answers the AuthSwitchRequest's embedded fresh
// nonce with a correctly computed native-password response, proving the
// engine (and NativePasswordPlugin.Start) issue a new challenge rather
// than reusing the handshake nonce on the switch path.
type capturingSwitchTransport struct {
	password string
	sent     [][]byte
}

func (t *capturingSwitchTransport) WritePacket(payload []byte) error {
	t.sent = append(t.sent, append([]byte(nil), payload...))
	return nil
}

func (t *capturingSwitchTransport) ReadPacket() ([]byte, error) {
	last := t.sent[len(t.sent)-1]
	// AuthSwitchRequest: 0xFE | plugin name NUL-terminated | 20-byte nonce.
	nulAt := -1
	for i := 1; i < len(last); i++ {
		if last[i] == 0 {
			nulAt = i
			break
		}
	}
	if nulAt < 0 {
		return nil, errors.New("malformed AuthSwitchRequest")
	}
	nonce := last[nulAt+1:]
	return nativeAuthResponse(nonce, t.password), nil
}

func TestEngineAuthenticateUnknownUserDoesNotExist(t *testing.T) {
	provider := NewStaticIdentityProvider()
	engine := NewEngine(provider)
	info := &Info{Username: "ghost", ClientPluginName: ClientPluginNativePassword}

	_, err := engine.Authenticate(&scriptedTransport{}, info, []byte("01234567890123456789"), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
	merr, ok := protocol.AsMysqlError(err)
	if !ok {
		t.Fatalf("expected *MysqlError, got %T", err)
	}
	if merr.Code != 1449 {
		t.Errorf("Code = %d, want 1449 (ER_USER_DOES_NOT_EXIST)", merr.Code)
	}
}

func TestEngineAuthenticateTrustedUserNeedsNoChallenge(t *testing.T) {
	provider := NewStaticIdentityProvider()
	provider.AddTrustedUser("rick_danko")
	engine := NewEngine(provider)
	info := &Info{Username: "rick_danko", ClientPluginName: "mysql_old_password"}

	result, err := engine.Authenticate(&scriptedTransport{}, info, []byte("01234567890123456789"), nil, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AuthenticatedAs != "rick_danko" {
		t.Errorf("AuthenticatedAs = %q", result.AuthenticatedAs)
	}
}

func TestEngineAuthenticateClearPasswordPlugin(t *testing.T) {
	provider := NewStaticIdentityProvider()
	provider.AddClearPasswordPlugin("test_plugin", func(username, password string) bool {
		return password == username
	})
	provider.AddClearPasswordUser("nazareth", "test_plugin")

	engine := NewEngine(provider)
	info := &Info{
		Username:         "nazareth",
		AuthResponse:     append([]byte("nazareth"), 0),
		ClientPluginName: ClientPluginClearPassword,
	}

	result, err := engine.Authenticate(&scriptedTransport{}, info, []byte("01234567890123456789"), nil, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AuthenticatedAs != "nazareth" {
		t.Errorf("AuthenticatedAs = %q", result.AuthenticatedAs)
	}
}

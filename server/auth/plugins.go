package auth

import (
	"crypto/rand"
	"crypto/sha1"
)

// GulliblePlugin trusts whatever username the client declared, with no
// challenge round at all. It never requires a particular client plugin.
type GulliblePlugin struct{}

func (GulliblePlugin) Name() string                   { return "mysql_old_password" }
func (GulliblePlugin) RequiredClientPluginName() string { return "" }

func (GulliblePlugin) Start(info *Info) (Decision, State) {
	return Success(info.Username), nil
}

func (GulliblePlugin) Advance(state State, info *Info) Decision {
	return Success(info.Username)
}

// NativePasswordPlugin implements mysql_native_password: a 20-byte nonce
// challenge, verified against SHA1(SHA1(password)) stored server-side.
//
//	client sends: SHA1(password) XOR SHA1(nonce || SHA1(SHA1(password)))
type NativePasswordPlugin struct {
	// AuthString is SHA1(SHA1(password)), as stored by the identity
	// provider for this user.
	AuthString []byte
	// Nonce is the 20-byte challenge issued at handshake time (and reused
	// verbatim on CHANGE_USER per the connection-phase design).
	Nonce []byte
}

const ClientPluginNativePassword = "mysql_native_password"

func (p *NativePasswordPlugin) Name() string                   { return ClientPluginNativePassword }
func (p *NativePasswordPlugin) RequiredClientPluginName() string { return ClientPluginNativePassword }

// Start either verifies immediately, when the caller already has a client
// response to judge (the direct path, where the client's original handshake
// response remains valid because no plugin switch happened), or issues a
// fresh nonce challenge when it doesn't (the switch path, where the client
// has not yet had a chance to respond to this plugin).
func (p *NativePasswordPlugin) Start(info *Info) (Decision, State) {
	if len(info.AuthResponse) != 0 {
		return p.verify(p.Nonce, info), nil
	}
	nonce := make([]byte, 20)
	if _, err := rand.Read(nonce); err != nil {
		return Forbidden(""), nil
	}
	return Challenge(nonce), nonce
}

func (p *NativePasswordPlugin) Advance(state State, info *Info) Decision {
	nonce, _ := state.([]byte)
	if nonce == nil {
		nonce = p.Nonce
	}
	return p.verify(nonce, info)
}

func (p *NativePasswordPlugin) verify(nonce []byte, info *Info) Decision {
	if len(info.AuthResponse) == 0 && len(p.AuthString) == 0 {
		return Success(info.Username)
	}
	if len(info.AuthResponse) != 20 || len(p.AuthString) != 20 {
		return Forbidden("")
	}
	stage2 := sha1Sum(nonce, p.AuthString)
	// info.AuthResponse == SHA1(password) XOR SHA1(nonce||SHA1(SHA1(password)))
	// recovering SHA1(password) and comparing its double-hash against
	// AuthString avoids ever needing the plaintext password.
	stage1 := xorBytes(info.AuthResponse, stage2)
	if sha1Equal(sha1Sum(stage1), p.AuthString) {
		return Success(info.Username)
	}
	return Forbidden("")
}

// GetNativePasswordAuthString computes SHA1(SHA1(password)), the form an
// identity provider stores for NativePasswordPlugin to check against.
func GetNativePasswordAuthString(password string) []byte {
	return sha1Sum(sha1Sum([]byte(password)))
}

// AbstractClearPasswordPlugin reads one packet containing the password in
// the clear and delegates the actual verification to Check. Embedding
// plugins (e.g. a test-only "username equals password" plugin) set Check
// and Plugin name.
type AbstractClearPasswordPlugin struct {
	PluginName string
	Check      func(username, password string) bool
}

const ClientPluginClearPassword = "mysql_clear_password"

func (p *AbstractClearPasswordPlugin) Name() string { return p.PluginName }
func (p *AbstractClearPasswordPlugin) RequiredClientPluginName() string {
	return ClientPluginClearPassword
}

func (p *AbstractClearPasswordPlugin) Start(info *Info) (Decision, State) {
	return p.verify(info), nil
}

func (p *AbstractClearPasswordPlugin) Advance(state State, info *Info) Decision {
	return p.verify(info)
}

func (p *AbstractClearPasswordPlugin) verify(info *Info) Decision {
	password := ""
	if n := len(info.AuthResponse); n > 0 {
		password = string(info.AuthResponse[:n])
		if password[n-1] == 0 {
			password = password[:n-1]
		}
	}
	if p.Check(info.Username, password) {
		return Success(info.Username)
	}
	return Forbidden("")
}

func sha1Sum(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func sha1Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

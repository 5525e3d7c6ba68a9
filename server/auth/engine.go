package auth

import (
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/server/protocol"
)

// Transport is the subset of the framer an Engine needs to drive
// AuthSwitchRequest/AuthMoreData rounds.
type Transport interface {
	ReadPacket() ([]byte, error)
	WritePacket(payload []byte) error
}

// Engine drives the interactive authentication exchange described for the
// handshake's connection phase and reused, without the fast path, by
// CHANGE_USER.
type Engine struct {
	Provider IdentityProvider
}

// NewEngine builds an Engine over the given identity provider.
func NewEngine(provider IdentityProvider) *Engine {
	return &Engine{Provider: provider}
}

// Result is the successful outcome of Authenticate.
type Result struct {
	AuthenticatedAs string
}

// Authenticate resolves the user, then runs the user's plugin to
// completion, trying the fast path (resuming a plugin already started
// during the handshake), then the direct path, then the auth-switch path.
// fastState/fastPlugin may be nil when there is no handshake fast path to
// try (e.g. on CHANGE_USER). nonce is the 20-byte challenge issued at
// handshake time; it is reused verbatim on CHANGE_USER.
func (e *Engine) Authenticate(t Transport, info *Info, nonce []byte, fastState State, fastPlugin Plugin) (*Result, error) {
	user, err := e.Provider.GetUser(info.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, protocol.NewMysqlError(common.ER_USER_DOES_NOT_EXIST,
			"User "+info.Username+" does not exist")
	}

	userPlugin := e.Provider.Plugin(user.AuthPlugin)
	if userPlugin == nil {
		userPlugin = e.Provider.DefaultPlugin()
	}
	userPlugin = bindUser(userPlugin, user.AuthString, nonce)

	var decision Decision
	var state State

	switch {
	case fastPlugin != nil &&
		(fastPlugin.RequiredClientPluginName() == "" || fastPlugin.RequiredClientPluginName() == info.ClientPluginName) &&
		fastPlugin.Name() == userPlugin.Name():
		// Fast path: resume the plugin the handshake already started.
		decision = userPlugin.Advance(fastState, info)
		state = fastState

	case userPlugin.RequiredClientPluginName() == "" || userPlugin.RequiredClientPluginName() == info.ClientPluginName:
		// Direct path: the client already announced a compatible plugin.
		decision, state = userPlugin.Start(info)

	default:
		// Switch path: tell the client to restart auth with our plugin.
		decision, state = userPlugin.Start(&Info{Username: info.Username, ConnectAttrs: info.ConnectAttrs})
		if decision.Kind == KindChallenge && userPlugin.RequiredClientPluginName() != "" {
			if err := t.WritePacket(protocol.EncodeAuthSwitchRequest(userPlugin.Name(), decision.Challenge)); err != nil {
				return nil, err
			}
			resp, err := t.ReadPacket()
			if err != nil {
				return nil, err
			}
			info = &Info{Username: info.Username, AuthResponse: resp, ClientPluginName: userPlugin.Name(), ConnectAttrs: info.ConnectAttrs}
			decision = userPlugin.Advance(state, info)
		}
	}

	for decision.Kind == KindChallenge {
		if err := t.WritePacket(protocol.EncodeAuthMoreData(decision.Challenge)); err != nil {
			return nil, err
		}
		resp, err := t.ReadPacket()
		if err != nil {
			return nil, err
		}
		info = &Info{Username: info.Username, AuthResponse: resp, ClientPluginName: info.ClientPluginName, ConnectAttrs: info.ConnectAttrs}
		decision = userPlugin.Advance(state, info)
	}

	if decision.Kind == KindForbidden {
		msg := decision.Message
		if msg == "" {
			msg = "Access denied for user '" + info.Username + "'"
		}
		return nil, protocol.NewMysqlError(common.ER_ACCESS_DENIED_ERROR, msg)
	}

	return &Result{AuthenticatedAs: decision.AuthenticatedAs}, nil
}

// bindUser returns a plugin instance configured with this user's stored
// auth string and the connection's handshake nonce, for the built-in
// plugin kinds that need them.
func bindUser(p Plugin, authString string, nonce []byte) Plugin {
	switch v := p.(type) {
	case *NativePasswordPlugin:
		bound := *v
		bound.AuthString = []byte(authString)
		bound.Nonce = nonce
		return &bound
	default:
		return p
	}
}

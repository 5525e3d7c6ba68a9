// Package auth drives the MySQL challenge-response authentication dialogue
// as a polymorphic plugin interface: each plugin is a {start, advance}
// coroutine reduced to two pure functions plus an opaque state value the
// engine carries between rounds.
package auth

// Info carries everything a plugin needs to judge one round of the
// dialogue: the username the client declared, the bytes it sent as its
// auth response (the handshake's initial response, or whatever the client
// sent after the most recent challenge), the plugin name it announced, and
// its connection attributes.
type Info struct {
	Username         string
	AuthResponse     []byte
	ClientPluginName string
	ConnectAttrs     map[string]string
}

// Kind tags a Decision's payload.
type Kind int

const (
	KindChallenge Kind = iota
	KindSuccess
	KindForbidden
)

// Decision is what a plugin yields at the end of start/advance: either
// another challenge to send to the client, a successful identity, or an
// outright rejection.
type Decision struct {
	Kind            Kind
	Challenge       []byte
	AuthenticatedAs string
	Message         string
}

func Challenge(data []byte) Decision { return Decision{Kind: KindChallenge, Challenge: data} }
func Success(as string) Decision     { return Decision{Kind: KindSuccess, AuthenticatedAs: as} }
func Forbidden(msg string) Decision  { return Decision{Kind: KindForbidden, Message: msg} }

// State is the opaque, plugin-defined record carried between a Start and
// its subsequent Advance calls. The engine never inspects it.
type State interface{}

// Plugin is a named authentication strategy. RequiredClientPluginName is
// the client-side plugin name this one requires to drive its wire format;
// empty means it accepts whatever the client announced.
type Plugin interface {
	Name() string
	RequiredClientPluginName() string
	Start(info *Info) (Decision, State)
	Advance(state State, info *Info) Decision
}

// User is the identity-provider's view of one account.
type User struct {
	Name       string
	AuthString string
	AuthPlugin string
}

// IdentityProvider resolves usernames to accounts and plugin names to
// Plugin implementations. Implementations must be safe for concurrent use
// by distinct connection goroutines.
type IdentityProvider interface {
	DefaultPlugin() Plugin
	Plugin(name string) Plugin
	GetUser(username string) (*User, error)
}

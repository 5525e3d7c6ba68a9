package auth

// StaticIdentityProvider is a simple in-memory IdentityProvider backed by
// a fixed user table, suitable for the CLI's default wiring and for tests.
// Safe for concurrent use: the user table is populated before serving and
// read only thereafter.
type StaticIdentityProvider struct {
	users       map[string]*User
	Default     Plugin
	clearChecks map[string]func(username, password string) bool
}

// NewStaticIdentityProvider builds a provider defaulting to
// mysql_native_password.
func NewStaticIdentityProvider() *StaticIdentityProvider {
	return &StaticIdentityProvider{
		users:       map[string]*User{},
		Default:     &NativePasswordPlugin{},
		clearChecks: map[string]func(string, string) bool{},
	}
}

// AddUser registers a user authenticating via mysql_native_password.
func (p *StaticIdentityProvider) AddUser(username, password string) {
	p.users[username] = &User{
		Name:       username,
		AuthString: string(GetNativePasswordAuthString(password)),
		AuthPlugin: ClientPluginNativePassword,
	}
}

// AddTrustedUser registers a user that authenticates regardless of
// password, via GulliblePlugin.
func (p *StaticIdentityProvider) AddTrustedUser(username string) {
	p.users[username] = &User{Name: username, AuthPlugin: "mysql_old_password"}
}

// AddClearPasswordPlugin registers a named plugin that reads one packet
// containing the password in the clear and verifies it with check.
func (p *StaticIdentityProvider) AddClearPasswordPlugin(pluginName string, check func(username, password string) bool) {
	p.clearChecks[pluginName] = check
}

// AddClearPasswordUser registers a user authenticated by a previously
// registered clear-password plugin, e.g. a test-only plugin whose check is
// "username equals password".
func (p *StaticIdentityProvider) AddClearPasswordUser(username, pluginName string) {
	p.users[username] = &User{Name: username, AuthPlugin: pluginName}
}

func (p *StaticIdentityProvider) DefaultPlugin() Plugin { return p.Default }

func (p *StaticIdentityProvider) Plugin(name string) Plugin {
	switch name {
	case ClientPluginNativePassword:
		return &NativePasswordPlugin{}
	case "mysql_old_password":
		return GulliblePlugin{}
	default:
		if check, ok := p.clearChecks[name]; ok {
			return &AbstractClearPasswordPlugin{PluginName: name, Check: check}
		}
		return nil
	}
}

func (p *StaticIdentityProvider) GetUser(username string) (*User, error) {
	u, ok := p.users[username]
	if !ok {
		return nil, nil
	}
	return u, nil
}

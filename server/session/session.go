// Package session defines the collaborator the connection FSM delegates
// query execution to. The protocol engine never parses or executes SQL
// itself; it forwards text through here and renders whatever ResultSet
// comes back.
package session

import "github.com/zhukovaskychina/xmysql-server/server/protocol"

// ConnectionInfo is the read-only view of a connection a Session observes,
// refreshed on init and on every successful CHANGE_USER.
type ConnectionInfo struct {
	ConnectionID uint32
	Username     string
	Database     string
	ClientAddr   string
}

// Session is the external collaborator query execution is delegated to.
// Init is called once after authentication succeeds and again after every
// successful CHANGE_USER; Query is called once per command-phase query;
// Close is called on connection teardown. Implementations observe the
// current username and database through the ConnectionInfo passed to Init,
// not by mutating it.
type Session interface {
	Init(info *ConnectionInfo) error
	Query(sql string, attrs map[string]string) (*protocol.ResultSet, error)
	Close() error
}

// Factory builds one Session per accepted connection. Implementations must
// be safe for concurrent use by distinct connection goroutines.
type Factory interface {
	NewSession() Session
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func() Session

func (f FactoryFunc) NewSession() Session { return f() }

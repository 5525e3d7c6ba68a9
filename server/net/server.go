package netsrv

import (
	"net"
	"sync"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/logger"
	"github.com/zhukovaskychina/xmysql-server/server/admin"
	"github.com/zhukovaskychina/xmysql-server/server/auth"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/server/session"
)

// maxLiveConnections bounds the low 16 bits of a connection id: once that
// many connections are simultaneously live under one server id, the
// sequence would wrap and collide.
const maxLiveConnections = 1 << 16

// ErrMaxConnectionsExceeded is returned by allocConnectionID when every
// connection id in the server's 16-bit sequence space is live. Serve's
// accept loop logs it, closes the new connection and keeps accepting.
var ErrMaxConnectionsExceeded = errors.New("max connections exceeded")

// Server accepts MySQL clients on a TCP listener and runs one Connection
// per accepted socket on its own goroutine, matching the protocol's
// strict one-command-in-flight invariant (spec §5).
type Server struct {
	ServerID       uint16
	ServerCaps     uint32
	Identity       auth.IdentityProvider
	SessionFactory session.Factory
	AdminVars      *admin.Vars

	mu       sync.Mutex
	listener net.Listener
	live     map[uint32]*Connection
	nextSeq  uint32
	closing  bool
	wg       sync.WaitGroup
}

// NewServer builds a Server ready to Listen. serverID occupies the high 16
// bits of every connection id this server hands out.
func NewServer(serverID uint16, identity auth.IdentityProvider, factory session.Factory) *Server {
	return &Server{
		ServerID:       serverID,
		ServerCaps:     common.ServerCapabilities,
		Identity:       identity,
		SessionFactory: factory,
		AdminVars:      admin.DefaultVars(),
		live:           map[uint32]*Connection{},
	}
}

// ListenAndServe binds addr (host:port, or a unix socket path prefixed
// with "unix:") and runs the accept loop until Close is called.
func (s *Server) ListenAndServe(addr string) error {
	network := "tcp"
	if len(addr) > 5 && addr[:5] == "unix:" {
		network, addr = "unix", addr[5:]
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return errors.Trace(err)
	}
	return s.Serve(ln)
}

// Serve runs the accept loop over an already-bound listener, taking
// ownership of it (Close will close it).
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Infof("mysql server listening on %s", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return nil
			}
			return errors.Trace(err)
		}

		id, err := s.allocConnectionID()
		if err != nil {
			logger.Errorf("rejecting connection from %s: %s", conn.RemoteAddr().String(), err.Error())
			conn.Close()
			continue
		}

		c := NewConnection(conn, id, s.ServerCaps, s.Identity, s.SessionFactory, s.AdminVars)
		s.mu.Lock()
		s.live[id] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.forget(id)
			c.Serve()
		}()
	}
}

// Close stops accepting new connections. In-flight connections are left to
// drain on their own; call Wait afterward to block until they do.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// Wait blocks until every connection goroutine this server spawned has
// returned.
func (s *Server) Wait() { s.wg.Wait() }

// LiveConnections returns the number of connections currently being
// served.
func (s *Server) LiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Server) forget(id uint32) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

// allocConnectionID picks the next free id in this server's 16-bit
// sequence space, skipping ids still live, and fails once all of them are
// in use.
func (s *Server) allocConnectionID() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.live) >= maxLiveConnections {
		return 0, ErrMaxConnectionsExceeded
	}
	for i := 0; i < maxLiveConnections; i++ {
		s.nextSeq++
		seq := s.nextSeq & 0xFFFF
		id := uint32(s.ServerID)<<16 | seq
		if _, live := s.live[id]; !live {
			return id, nil
		}
	}
	return 0, ErrMaxConnectionsExceeded
}

package session

import (
	"sync"

	"github.com/zhukovaskychina/xmysql-server/server/protocol"
)

// DemoSession is a minimal in-memory Session used by cmd/xmysqld when no
// real storage/execution engine is wired in: it accepts any query and
// answers with an empty result set. Embedders supply their own Session for
// anything beyond the admin-handled statement vocabulary.
type DemoSession struct {
	mu   sync.Mutex
	info *ConnectionInfo
}

// NewDemoSession builds a DemoSession.
func NewDemoSession() *DemoSession { return &DemoSession{} }

func (s *DemoSession) Init(info *ConnectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
	return nil
}

func (s *DemoSession) Query(sql string, attrs map[string]string) (*protocol.ResultSet, error) {
	return &protocol.ResultSet{}, nil
}

func (s *DemoSession) Close() error { return nil }

// DemoFactory builds DemoSessions.
type DemoFactory struct{}

func (DemoFactory) NewSession() Session { return NewDemoSession() }

package session

import "testing"

func TestDemoSessionAcceptsAnyQuery(t *testing.T) {
	s := NewDemoSession()
	if err := s.Init(&ConnectionInfo{Username: "levon_helm"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	rs, err := s.Query("SELECT 1", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if rs == nil {
		t.Fatal("expected a non-nil result set")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDemoFactoryBuildsIndependentSessions(t *testing.T) {
	factory := DemoFactory{}
	a := factory.NewSession()
	b := factory.NewSession()
	if a == b {
		t.Fatal("expected distinct Session instances")
	}
}

func TestFactoryFuncAdapter(t *testing.T) {
	calls := 0
	f := FactoryFunc(func() Session {
		calls++
		return NewDemoSession()
	})
	f.NewSession()
	f.NewSession()
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

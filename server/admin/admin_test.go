package admin

import (
	"testing"

	"github.com/zhukovaskychina/xmysql-server/server/protocol"
	"github.com/zhukovaskychina/xmysql-server/server/session"
)

type fakeSession struct {
	lastSQL   string
	lastAttrs map[string]string
}

func (s *fakeSession) Init(info *session.ConnectionInfo) error { return nil }

func (s *fakeSession) Query(sql string, attrs map[string]string) (*protocol.ResultSet, error) {
	s.lastSQL = sql
	s.lastAttrs = attrs
	return &protocol.ResultSet{}, nil
}

func (s *fakeSession) Close() error { return nil }

func newTestAdmin() (*Admin, *fakeSession) {
	inner := &fakeSession{}
	a := New(inner, nil)
	a.Init(&session.ConnectionInfo{Username: "levon_helm", Database: "band"})
	return a, inner
}

func TestAdminSelectUser(t *testing.T) {
	a, _ := newTestAdmin()
	rs, err := a.Query("SELECT USER()", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rs.Rows) != 1 || rs.Rows[0][0] != "levon_helm" {
		t.Fatalf("got %v", rs.Rows)
	}
}

func TestAdminSelectDatabase(t *testing.T) {
	a, _ := newTestAdmin()
	rs, err := a.Query("select database()", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if rs.Rows[0][0] != "band" {
		t.Fatalf("got %v", rs.Rows)
	}
}

func TestAdminUseSwitchesDatabase(t *testing.T) {
	a, _ := newTestAdmin()
	if _, err := a.Query("USE robbie", nil); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if a.Database != "robbie" {
		t.Fatalf("Database = %q, want robbie", a.Database)
	}
}

func TestAdminSelectAtAtVariable(t *testing.T) {
	a, _ := newTestAdmin()
	rs, err := a.Query("SELECT @@version", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if rs.Rows[0][0] != a.Vars.Version {
		t.Fatalf("got %v, want %v", rs.Rows[0][0], a.Vars.Version)
	}
}

func TestAdminSelectAtAtUnknownVariableErrors(t *testing.T) {
	a, _ := newTestAdmin()
	if _, err := a.Query("SELECT @@not_a_real_variable", nil); err == nil {
		t.Fatal("expected error for unknown system variable")
	}
}

func TestAdminShowVariablesLike(t *testing.T) {
	a, _ := newTestAdmin()
	rs, err := a.Query("SHOW VARIABLES LIKE 'version%'", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rs.Rows) != 2 { // version, version_comment
		t.Fatalf("got %d rows, want 2: %v", len(rs.Rows), rs.Rows)
	}
}

func TestAdminSetIsNoOp(t *testing.T) {
	a, inner := newTestAdmin()
	rs, err := a.Query("SET autocommit=1", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rs.Columns) != 0 {
		t.Fatalf("expected empty result, got %v", rs.Columns)
	}
	if inner.lastSQL != "" {
		t.Fatalf("SET should not reach the inner session, got %q", inner.lastSQL)
	}
}

func TestAdminSubstitutesVariablesInForwardedQuery(t *testing.T) {
	a, inner := newTestAdmin()
	if _, err := a.Query("SELECT * FROM t WHERE v = @@character_set_client", nil); err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "SELECT * FROM t WHERE v = 'utf8mb4'"
	if inner.lastSQL != want {
		t.Fatalf("got %q, want %q", inner.lastSQL, want)
	}
}

func TestAdminForwardsUnrecognizedQueryUnchanged(t *testing.T) {
	a, inner := newTestAdmin()
	if _, err := a.Query("SELECT * FROM band_members", nil); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if inner.lastSQL != "SELECT * FROM band_members" {
		t.Fatalf("got %q", inner.lastSQL)
	}
}

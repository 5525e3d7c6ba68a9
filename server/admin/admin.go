// Package admin recognizes the fixed vocabulary of session/server-variable
// statements a real MySQL client issues on every connect (SET, SHOW
// VARIABLES, USE, SELECT @@var, SELECT USER(), SELECT DATABASE()) and
// substitutes @@var/@var references in whatever it forwards to the
// underlying session. It is not a SQL parser: matching is by a small set
// of anchored regular expressions, exactly as coarse as the original
// implementation this behavior was ported from.
package admin

import (
	"regexp"
	"strings"

	"github.com/pingcap/errors"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/server/protocol"
	"github.com/zhukovaskychina/xmysql-server/server/session"
)

// Vars holds the small, fixed set of system variables Admin answers
// SHOW VARIABLES / SELECT @@var with and substitutes into query text.
type Vars struct {
	Version                string
	VersionComment         string
	CharacterSetClient     string
	CharacterSetConnection string
	CharacterSetResults    string
	CollationConnection    string
}

// DefaultVars returns the variable table used when an embedder supplies
// none of its own.
func DefaultVars() *Vars {
	return &Vars{
		Version:                "8.0.30-xmysql",
		VersionComment:         "xmysql-server",
		CharacterSetClient:     "utf8mb4",
		CharacterSetConnection: "utf8mb4",
		CharacterSetResults:    "utf8mb4",
		CollationConnection:    "utf8mb4_general_ci",
	}
}

func (v *Vars) value(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "version":
		return v.Version, true
	case "version_comment":
		return v.VersionComment, true
	case "character_set_client":
		return v.CharacterSetClient, true
	case "character_set_connection":
		return v.CharacterSetConnection, true
	case "character_set_results":
		return v.CharacterSetResults, true
	case "collation_connection":
		return v.CollationConnection, true
	}
	return "", false
}

func (v *Vars) rows() [][2]string {
	return [][2]string{
		{"version", v.Version},
		{"version_comment", v.VersionComment},
		{"character_set_client", v.CharacterSetClient},
		{"character_set_connection", v.CharacterSetConnection},
		{"character_set_results", v.CharacterSetResults},
		{"collation_connection", v.CollationConnection},
	}
}

var (
	selectUserPattern     = regexp.MustCompile(`(?i)^select\s+user\(\)\s*(as\s+\w+\s*)?$`)
	selectDatabasePattern = regexp.MustCompile(`(?i)^select\s+database\(\)\s*(as\s+\w+\s*)?$`)
	selectAtAtPattern     = regexp.MustCompile(`(?i)^select\s+@@(\w+)\s*(as\s+\w+\s*)?$`)
	useDatabasePattern    = regexp.MustCompile("(?i)^use\\s+`?(\\w+)`?\\s*$")
	showVariablesPattern  = regexp.MustCompile(`(?i)^show\s+variables(\s+like\s+'([^']*)')?\s*$`)
	setPattern            = regexp.MustCompile(`(?i)^set\s+`)
	varRefPattern         = regexp.MustCompile(`@@?(\w+)`)
)

// Admin wraps a Session, intercepting the fixed statement vocabulary and
// substituting variable references before delegating anything else to the
// wrapped Session. It implements session.Session itself, so the
// connection FSM treats it as the Session collaborator.
type Admin struct {
	Vars     *Vars
	Username string
	Database string
	inner    session.Session
}

// New wraps inner with the admin layer. A nil vars uses DefaultVars.
func New(inner session.Session, vars *Vars) *Admin {
	if vars == nil {
		vars = DefaultVars()
	}
	return &Admin{Vars: vars, inner: inner}
}

func (a *Admin) Init(info *session.ConnectionInfo) error {
	a.Username = info.Username
	a.Database = info.Database
	return a.inner.Init(info)
}

func (a *Admin) Close() error { return a.inner.Close() }

// Query tries the fixed admin vocabulary first; failing that, it
// substitutes @@var/@var references and forwards to the wrapped session.
func (a *Admin) Query(sql string, attrs map[string]string) (*protocol.ResultSet, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))

	if selectUserPattern.MatchString(trimmed) {
		return singleRow("USER()", a.Username), nil
	}
	if selectDatabasePattern.MatchString(trimmed) {
		return singleRow("DATABASE()", a.Database), nil
	}
	if m := selectAtAtPattern.FindStringSubmatch(trimmed); m != nil {
		val, ok := a.Vars.value(m[1])
		if !ok {
			return nil, errors.Errorf("unknown system variable '%s'", m[1])
		}
		return singleRow("@@"+m[1], val), nil
	}
	if m := useDatabasePattern.FindStringSubmatch(trimmed); m != nil {
		a.Database = m[1]
		return &protocol.ResultSet{}, nil
	}
	if m := showVariablesPattern.FindStringSubmatch(trimmed); m != nil {
		return a.showVariables(m[2]), nil
	}
	if setPattern.MatchString(trimmed) {
		return &protocol.ResultSet{}, nil
	}

	return a.inner.Query(a.substitute(sql), attrs)
}

// substitute replaces @@var/@var references inside arbitrary SQL
// text with their current string value, quoted, leaving unrecognized
// references untouched.
func (a *Admin) substitute(sql string) string {
	return varRefPattern.ReplaceAllStringFunc(sql, func(ref string) string {
		name := strings.TrimLeft(ref, "@")
		if val, ok := a.Vars.value(name); ok {
			return "'" + val + "'"
		}
		return ref
	})
}

func (a *Admin) showVariables(like string) *protocol.ResultSet {
	rows := a.Vars.rows()
	out := make([][]interface{}, 0, len(rows))
	pattern := strings.ToLower(strings.ReplaceAll(like, "%", ""))
	for _, r := range rows {
		if like != "" && !strings.Contains(strings.ToLower(r[0]), pattern) {
			continue
		}
		out = append(out, []interface{}{r[0], r[1]})
	}
	return &protocol.ResultSet{
		Columns: []*protocol.ColumnDefinition{
			protocol.NewColumn("Variable_name", common.COLUMN_TYPE_VAR_STRING),
			protocol.NewColumn("Value", common.COLUMN_TYPE_VAR_STRING),
		},
		Rows: out,
	}
}

func singleRow(column, value string) *protocol.ResultSet {
	return &protocol.ResultSet{
		Columns: []*protocol.ColumnDefinition{protocol.NewColumn(column, common.COLUMN_TYPE_VAR_STRING)},
		Rows:    [][]interface{}{{value}},
	}
}

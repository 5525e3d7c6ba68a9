package protocol

import (
	"testing"

	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

func TestCountParams(t *testing.T) {
	cases := []struct {
		sql  string
		want int
	}{
		{"SELECT 1", 0},
		{"SELECT * FROM t WHERE a = ? AND b = ?", 2},
		{"INSERT INTO t VALUES (?, ?, ?)", 3},
	}
	for _, c := range cases {
		if got := CountParams(c.sql); got != c.want {
			t.Errorf("CountParams(%q) = %d, want %d", c.sql, got, c.want)
		}
	}
}

func buildStmtExecutePayload(t *testing.T, stmtID uint32, types []uint16, nulls []bool, values [][]byte) []byte {
	t.Helper()
	buf := util.WriteUB4(nil, stmtID)
	buf = util.WriteByte(buf, CursorTypeNoCursor)
	buf = util.WriteUB4(buf, 1) // iteration count

	nullBitmapLen := (len(types) + 7) / 8
	bitmap := make([]byte, nullBitmapLen)
	for i, isNull := range nulls {
		if isNull {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	buf = append(buf, bitmap...)
	buf = util.WriteByte(buf, 1) // new_params_bind_flag
	for _, ty := range types {
		buf = util.WriteUB2(buf, ty)
	}
	for i, v := range values {
		if nulls[i] {
			continue
		}
		buf = append(buf, v...)
	}
	return buf
}

func TestParseStmtExecuteDecodesBoundParams(t *testing.T) {
	payload := buildStmtExecutePayload(t, 7,
		[]uint16{common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_VAR_STRING},
		[]bool{false, false},
		[][]byte{
			util.WriteUB4(nil, 42),
			append(util.WriteByte(nil, 5), []byte("hello")...),
		})

	req, err := ParseStmtExecute(payload, 2, nil, nil, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("ParseStmtExecute: %v", err)
	}
	if req.StatementID != 7 {
		t.Errorf("StatementID = %d, want 7", req.StatementID)
	}
	if got := req.Params[0].(int64); got != 42 {
		t.Errorf("Params[0] = %v, want 42", got)
	}
	if got := req.Params[1].(string); got != "hello" {
		t.Errorf("Params[1] = %v, want hello", got)
	}
}

func TestParseStmtExecuteHonorsNullBitmap(t *testing.T) {
	payload := buildStmtExecutePayload(t, 1,
		[]uint16{common.COLUMN_TYPE_LONG},
		[]bool{true},
		[][]byte{nil})

	req, err := ParseStmtExecute(payload, 1, nil, nil, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("ParseStmtExecute: %v", err)
	}
	if req.Params[0] != nil {
		t.Errorf("Params[0] = %v, want nil", req.Params[0])
	}
}

func TestParseStmtExecuteReusesPriorTypesWhenNotResent(t *testing.T) {
	buf := util.WriteUB4(nil, 1)
	buf = util.WriteByte(buf, CursorTypeNoCursor)
	buf = util.WriteUB4(buf, 1)
	buf = append(buf, 0) // null bitmap, 1 param, no nulls
	buf = util.WriteByte(buf, 0) // new_params_bind_flag = 0, no types resent
	buf = util.WriteUB4(buf, 99)

	req, err := ParseStmtExecute(buf, 1, []uint16{common.COLUMN_TYPE_LONG}, nil, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("ParseStmtExecute: %v", err)
	}
	if req.ParamTypes != nil {
		t.Errorf("ParamTypes should be nil when not resent, got %v", req.ParamTypes)
	}
	if got := req.Params[0].(int64); got != 99 {
		t.Errorf("Params[0] = %v, want 99", got)
	}
}

func TestParseStmtExecuteSkipsLongDataParams(t *testing.T) {
	buf := util.WriteUB4(nil, 1)
	buf = util.WriteByte(buf, CursorTypeNoCursor)
	buf = util.WriteUB4(buf, 1)
	buf = append(buf, 0) // null bitmap, 2 params fits in one byte, no nulls
	buf = util.WriteByte(buf, 1)
	buf = util.WriteUB2(buf, common.COLUMN_TYPE_LONG)
	buf = util.WriteUB2(buf, common.COLUMN_TYPE_BLOB)
	buf = util.WriteUB4(buf, 7) // only param 0 is on the wire

	longData := map[int][]byte{1: []byte("accumulated")}
	req, err := ParseStmtExecute(buf, 2, nil, longData, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("ParseStmtExecute: %v", err)
	}
	if got := req.Params[0].(int64); got != 7 {
		t.Errorf("Params[0] = %v, want 7", got)
	}
	if req.Params[1] != nil {
		t.Errorf("Params[1] should stay nil for the caller to fill in, got %v", req.Params[1])
	}
}

func TestParseComQueryWithoutAttributes(t *testing.T) {
	q, err := ParseComQuery([]byte("SELECT 1"), false, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("ParseComQuery: %v", err)
	}
	if q.SQL != "SELECT 1" {
		t.Errorf("SQL = %q", q.SQL)
	}
	if len(q.Attrs) != 0 {
		t.Errorf("Attrs = %v, want empty", q.Attrs)
	}
}

func TestParseComQueryWithQueryAttributes(t *testing.T) {
	buf := util.WriteLength(nil, 1) // param_count
	buf = util.WriteLength(buf, 1) // parameter_set_count
	buf = append(buf, 0)            // null bitmap, 1 param, not null
	buf = util.WriteByte(buf, 1)    // new_params_bind_flag
	buf = util.WriteUB2(buf, common.COLUMN_TYPE_VARCHAR)
	buf = util.WriteWithLength(buf, []byte("trace_id"))
	buf = util.WriteWithLength(buf, []byte("abc123"))
	buf = append(buf, []byte("SELECT 1")...)

	q, err := ParseComQuery(buf, true, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("ParseComQuery: %v", err)
	}
	if q.SQL != "SELECT 1" {
		t.Errorf("SQL = %q", q.SQL)
	}
	if q.Attrs["trace_id"] != "abc123" {
		t.Errorf("Attrs[trace_id] = %q, want abc123", q.Attrs["trace_id"])
	}
}

package protocol

import (
	"bytes"
	"testing"
	"time"

	"github.com/zhukovaskychina/xmysql-server/server/common"
)

type fakePacketWriter struct {
	packets [][]byte
}

func (w *fakePacketWriter) WritePacket(payload []byte) error {
	cp := append([]byte(nil), payload...)
	w.packets = append(w.packets, cp)
	return nil
}

func TestEncodeTextRowNullAndValues(t *testing.T) {
	row, err := EncodeTextRow([]interface{}{nil, int64(42), "hi"}, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("EncodeTextRow: %v", err)
	}
	if row[0] != 0xFB {
		t.Fatalf("expected lenenc NULL marker first, got %#x", row[0])
	}
	if !bytes.Contains(row, []byte("42")) {
		t.Fatalf("expected encoded 42 in row, got %v", row)
	}
	if !bytes.Contains(row, []byte("hi")) {
		t.Fatalf("expected encoded hi in row, got %v", row)
	}
}

func TestEncodeBinaryRowNullBitmapOffset(t *testing.T) {
	types := []byte{common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_LONG}
	row, err := EncodeBinaryRow([]interface{}{nil, int64(1), nil}, types, common.CharacterSetUtf8)
	if err != nil {
		t.Fatalf("EncodeBinaryRow: %v", err)
	}

	// byte 0 is the packet header (0x00); the null bitmap follows with a
	// 2-bit offset, so column 0 (null) sets bit 2 and column 2 (null)
	// sets bit 4.
	if row[0] != 0x00 {
		t.Fatalf("expected leading 0x00, got %#x", row[0])
	}
	bitmap := row[1]
	if bitmap&(1<<2) == 0 {
		t.Errorf("expected bit 2 set for column 0 null")
	}
	if bitmap&(1<<4) == 0 {
		t.Errorf("expected bit 4 set for column 2 null")
	}
	if bitmap&(1<<3) != 0 {
		t.Errorf("column 1 is non-null, bit 3 must be clear")
	}
}

func TestEncodeBinaryDatetimeRoundTrip(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	buf := encodeBinaryDatetime(nil, want)

	_, got, err := decodeBinaryDatetime(buf, 0)
	if err != nil {
		t.Fatalf("decodeBinaryDatetime: %v", err)
	}
	gotTime, ok := got.(time.Time)
	if !ok {
		t.Fatalf("got %T, want time.Time", got)
	}
	if !gotTime.Equal(want) {
		t.Fatalf("got %v, want %v", gotTime, want)
	}
}

func TestEncodeBinaryDurationRoundTrip(t *testing.T) {
	want := 26*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Microsecond
	buf := encodeBinaryDuration(nil, want)

	_, got, err := decodeBinaryDuration(buf, 0)
	if err != nil {
		t.Fatalf("decodeBinaryDuration: %v", err)
	}
	gotDur, ok := got.(time.Duration)
	if !ok {
		t.Fatalf("got %T, want time.Duration", got)
	}
	if gotDur != want {
		t.Fatalf("got %v, want %v", gotDur, want)
	}
}

func TestWriteTextResultSetGatesWithEOFWhenNotDeprecated(t *testing.T) {
	rs := &ResultSet{
		Columns: []*ColumnDefinition{NewColumn("id", common.COLUMN_TYPE_LONG)},
		Rows:    [][]interface{}{{int64(1)}},
	}
	w := &fakePacketWriter{}
	if err := WriteTextResultSet(w, rs, 0, DefaultServerStatus, common.CharacterSetUtf8); err != nil {
		t.Fatalf("WriteTextResultSet: %v", err)
	}
	// column count, column def, EOF gate, one row, terminating EOF.
	if len(w.packets) != 5 {
		t.Fatalf("got %d packets, want 5", len(w.packets))
	}
	if w.packets[2][0] != 0xFE {
		t.Errorf("expected EOF gate packet, got %#x", w.packets[2][0])
	}
}

func TestWriteTextResultSetSkipsEOFWhenDeprecated(t *testing.T) {
	rs := &ResultSet{
		Columns: []*ColumnDefinition{NewColumn("id", common.COLUMN_TYPE_LONG)},
		Rows:    [][]interface{}{{int64(1)}},
	}
	w := &fakePacketWriter{}
	if err := WriteTextResultSet(w, rs, common.CLIENT_DEPRECATE_EOF, DefaultServerStatus, common.CharacterSetUtf8); err != nil {
		t.Fatalf("WriteTextResultSet: %v", err)
	}
	// column count, column def, one row, terminating OK.
	if len(w.packets) != 4 {
		t.Fatalf("got %d packets, want 4", len(w.packets))
	}
	if w.packets[3][0] != 0xFE {
		t.Errorf("expected OK-with-eof-marker terminator, got %#x", w.packets[3][0])
	}
}

func TestWriteBinaryResultSetNoColumnsIsCallerResponsibility(t *testing.T) {
	rs := &ResultSet{}
	w := &fakePacketWriter{}
	if err := WriteBinaryResultSet(w, rs, 0, DefaultServerStatus, common.CharacterSetUtf8); err != nil {
		t.Fatalf("WriteBinaryResultSet: %v", err)
	}
	// column count (0), EOF gate, terminating EOF: no special case for zero
	// columns.
	if len(w.packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(w.packets))
	}
}

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

// textString renders a driver value the way the text result-set protocol
// does: everything travels as a lenenc string, NULL excepted.
func textString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ResultSet is a fully materialized row set ready for either the text or
// the binary protocol.
type ResultSet struct {
	Columns []*ColumnDefinition
	Rows    [][]interface{}
}

// EncodeColumnCount renders the leading lenenc-int column count packet.
func EncodeColumnCount(n int) []byte {
	return util.WriteLength(nil, int64(n))
}

// EncodeTextRow renders one row under the text protocol: each value as a
// lenenc string in the connection's negotiated charset, NULL as the
// lenenc NULL marker.
func EncodeTextRow(values []interface{}, charset uint8) ([]byte, error) {
	buf := make([]byte, 0, 32*len(values))
	for _, v := range values {
		if v == nil {
			buf = util.WriteLengthEncodedNull(buf)
			continue
		}
		encoded, err := EncodeCharsetText(charset, textString(v))
		if err != nil {
			return nil, err
		}
		buf = util.WriteWithLength(buf, encoded)
	}
	return buf, nil
}

// EncodeBinaryRow renders one row under the binary protocol used by
// STMT_EXECUTE result sets: a leading 0x00, a NULL bitmap with a 2-bit
// offset, then each non-NULL value in its column type's fixed or
// length-encoded binary form.
func EncodeBinaryRow(values []interface{}, columnTypes []byte, charset uint8) ([]byte, error) {
	nullBitmapLen := (len(values) + 7 + 2) / 8
	nullBitmap := make([]byte, nullBitmapLen)
	for i, v := range values {
		if v == nil {
			bytePos := (i + 2) / 8
			bitPos := uint((i + 2) % 8)
			nullBitmap[bytePos] |= 1 << bitPos
		}
	}

	buf := make([]byte, 0, 32*len(values))
	buf = util.WriteByte(buf, 0x00)
	buf = util.WriteBytes(buf, nullBitmap)

	for i, v := range values {
		if v == nil {
			continue
		}
		var colType byte
		if i < len(columnTypes) {
			colType = columnTypes[i]
		} else {
			colType = common.COLUMN_TYPE_VAR_STRING
		}
		var err error
		buf, err = encodeBinaryValue(buf, colType, v, charset)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeBinaryValue(buf []byte, colType byte, v interface{}, charset uint8) ([]byte, error) {
	switch colType {
	case common.COLUMN_TYPE_TINY:
		return util.WriteByte(buf, byte(toInt64(v))), nil
	case common.COLUMN_TYPE_SHORT, common.COLUMN_TYPE_YEAR:
		return util.WriteUB2(buf, uint16(toInt64(v))), nil
	case common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_INT24:
		return util.WriteUB4(buf, uint32(toInt64(v))), nil
	case common.COLUMN_TYPE_LONGLONG:
		return util.WriteUB8(buf, uint64(toInt64(v))), nil
	case common.COLUMN_TYPE_FLOAT:
		bits := math.Float32bits(float32(toFloat64(v)))
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], bits)
		return util.WriteBytes(buf, b[:]), nil
	case common.COLUMN_TYPE_DOUBLE:
		bits := math.Float64bits(toFloat64(v))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], bits)
		return util.WriteBytes(buf, b[:]), nil
	case common.COLUMN_TYPE_DATE, common.COLUMN_TYPE_DATETIME, common.COLUMN_TYPE_TIMESTAMP:
		return encodeBinaryDatetime(buf, v), nil
	case common.COLUMN_TYPE_TIME:
		return encodeBinaryDuration(buf, v), nil
	default:
		encoded, err := EncodeCharsetText(charset, textString(v))
		if err != nil {
			return nil, err
		}
		return util.WriteWithLength(buf, encoded), nil
	}
}

func encodeBinaryDatetime(buf []byte, v interface{}) []byte {
	t, ok := v.(time.Time)
	if !ok {
		return util.WriteByte(buf, 0)
	}
	if t.IsZero() {
		return util.WriteByte(buf, 0)
	}
	hasTime := t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
	hasFrac := t.Nanosecond() != 0

	length := byte(4)
	if hasFrac {
		length = 11
	} else if hasTime {
		length = 7
	}
	buf = util.WriteByte(buf, length)
	buf = util.WriteUB2(buf, uint16(t.Year()))
	buf = util.WriteByte(buf, byte(t.Month()))
	buf = util.WriteByte(buf, byte(t.Day()))
	if length >= 7 {
		buf = util.WriteByte(buf, byte(t.Hour()))
		buf = util.WriteByte(buf, byte(t.Minute()))
		buf = util.WriteByte(buf, byte(t.Second()))
	}
	if length == 11 {
		buf = util.WriteUB4(buf, uint32(t.Nanosecond()/1000))
	}
	return buf
}

func encodeBinaryDuration(buf []byte, v interface{}) []byte {
	d, ok := v.(time.Duration)
	if !ok {
		return util.WriteByte(buf, 0)
	}
	if d == 0 {
		return util.WriteByte(buf, 0)
	}
	neg := byte(0)
	if d < 0 {
		neg = 1
		d = -d
	}
	days := int32(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := byte(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := byte(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := byte(d / time.Second)
	d -= time.Duration(seconds) * time.Second
	micros := uint32(d / time.Microsecond)

	length := byte(8)
	if micros != 0 {
		length = 12
	}
	buf = util.WriteByte(buf, length)
	buf = util.WriteByte(buf, neg)
	buf = util.WriteUB4(buf, uint32(days))
	buf = util.WriteByte(buf, hours)
	buf = util.WriteByte(buf, minutes)
	buf = util.WriteByte(buf, seconds)
	if micros != 0 {
		buf = util.WriteUB4(buf, micros)
	}
	return buf
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}

// PacketWriter is satisfied by Framer; it is all WriteTextResultSet and
// WriteBinaryResultSet need to stream a row set.
type PacketWriter interface {
	WritePacket(payload []byte) error
}

// WriteTextResultSet streams a complete text-protocol result set: the
// column count, the column definitions, an EOF gate (unless the client
// negotiated CLIENT_DEPRECATE_EOF), each row, and a terminating OK-or-EOF
// packet.
func WriteTextResultSet(w PacketWriter, rs *ResultSet, capabilities uint32, status uint16, charset uint8) error {
	deprecateEOF := capabilities&common.CLIENT_DEPRECATE_EOF != 0
	if err := w.WritePacket(EncodeColumnCount(len(rs.Columns))); err != nil {
		return err
	}
	for _, col := range rs.Columns {
		if err := w.WritePacket(col.Encode()); err != nil {
			return err
		}
	}
	if !deprecateEOF {
		if err := w.WritePacket(EncodeEOF(status, 0)); err != nil {
			return err
		}
	}
	for _, row := range rs.Rows {
		encoded, err := EncodeTextRow(row, charset)
		if err != nil {
			return err
		}
		if err := w.WritePacket(encoded); err != nil {
			return err
		}
	}
	return w.WritePacket(EncodeOKOrEOF(deprecateEOF, 0, status, 0))
}

// WriteBinaryResultSet streams a complete binary-protocol result set, as
// returned from STMT_EXECUTE.
func WriteBinaryResultSet(w PacketWriter, rs *ResultSet, capabilities uint32, status uint16, charset uint8) error {
	deprecateEOF := capabilities&common.CLIENT_DEPRECATE_EOF != 0
	if err := w.WritePacket(EncodeColumnCount(len(rs.Columns))); err != nil {
		return err
	}
	columnTypes := make([]byte, len(rs.Columns))
	for i, col := range rs.Columns {
		columnTypes[i] = col.Type
		if err := w.WritePacket(col.Encode()); err != nil {
			return err
		}
	}
	if !deprecateEOF {
		if err := w.WritePacket(EncodeEOF(status, 0)); err != nil {
			return err
		}
	}
	for _, row := range rs.Rows {
		encoded, err := EncodeBinaryRow(row, columnTypes, charset)
		if err != nil {
			return err
		}
		if err := w.WritePacket(encoded); err != nil {
			return err
		}
	}
	return w.WritePacket(EncodeOKOrEOF(deprecateEOF, 0, status, 0))
}

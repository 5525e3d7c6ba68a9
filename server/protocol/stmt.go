package protocol

import (
	"encoding/binary"
	"math"
	"regexp"
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

var paramPlaceholderPattern = regexp.MustCompile(`\?`)

// CountParams computes a prepared statement's declared parameter count by
// scanning for `?` tokens. Matches the original's coarse behavior: it does
// not respect SQL string or identifier quoting (spec open question c).
func CountParams(sql string) int {
	return len(paramPlaceholderPattern.FindAllStringIndex(sql, -1))
}

// Cursor types accepted in a COM_STMT_EXECUTE payload's flags byte.
const (
	CursorTypeNoCursor   = 0
	CursorTypeReadOnly   = 1
	CursorTypeForUpdate  = 2
	CursorTypeScrollable = 3
)

// EncodeStmtPrepareOK builds the COM_STMT_PREPARE_OK header packet; the
// caller follows it with numParams parameter column definitions, numColumns
// result column definitions, and an EOF gate per column block (unless
// DEPRECATE_EOF).
func EncodeStmtPrepareOK(statementID uint32, numColumns, numParams uint16, warnings uint16) []byte {
	buf := make([]byte, 0, 12)
	buf = util.WriteByte(buf, 0x00)
	buf = util.WriteUB4(buf, statementID)
	buf = util.WriteUB2(buf, numColumns)
	buf = util.WriteUB2(buf, numParams)
	buf = util.WriteByte(buf, 0) // filler
	buf = util.WriteUB2(buf, warnings)
	return buf
}

// StmtExecuteRequest is the parsed payload of a COM_STMT_EXECUTE packet.
type StmtExecuteRequest struct {
	StatementID uint32
	CursorType  byte
	Params      []interface{}
	// ParamTypes is non-nil only when the client resent parameter types
	// (new_params_bind_flag=1); otherwise the caller must reuse the types
	// from the statement's previous execution.
	ParamTypes []uint16
}

// ParseStmtExecute decodes a COM_STMT_EXECUTE payload (sans the leading
// command byte). paramCount is the statement's declared parameter count;
// priorTypes are the column types bound by a previous execution of the
// same statement, used when the client does not resend them. longData
// indexes parameters the client accumulated via STMT_SEND_LONG_DATA: the
// wire carries no value for them at all (not even a null marker), so they
// are skipped during decode and left nil in the result for the caller to
// fill in from its accumulated buffer.
func ParseStmtExecute(payload []byte, paramCount int, priorTypes []uint16, longData map[int][]byte, charset uint8) (*StmtExecuteRequest, error) {
	if len(payload) < 9 {
		return nil, errors.New("truncated STMT_EXECUTE payload")
	}
	cursor := 0
	cursor, stmtID := util.ReadUB4(payload, cursor)
	cursor, cursorType := util.ReadByte(payload, cursor)
	cursor += 4 // iteration-count, always 1

	req := &StmtExecuteRequest{StatementID: stmtID, CursorType: cursorType}
	if paramCount == 0 {
		return req, nil
	}

	nullBitmapLen := (paramCount + 7) / 8
	if cursor+nullBitmapLen > len(payload) {
		return nil, errors.New("truncated STMT_EXECUTE null bitmap")
	}
	nullBitmap := payload[cursor : cursor+nullBitmapLen]
	cursor += nullBitmapLen

	if cursor >= len(payload) {
		return nil, errors.New("truncated STMT_EXECUTE bind flag")
	}
	cursor, newParamsBound := util.ReadByte(payload, cursor)

	types := priorTypes
	if newParamsBound == 1 {
		types = make([]uint16, paramCount)
		for i := 0; i < paramCount; i++ {
			var lo, hi byte
			cursor, lo = util.ReadByte(payload, cursor)
			cursor, hi = util.ReadByte(payload, cursor)
			types[i] = uint16(lo) | uint16(hi)<<8
		}
		req.ParamTypes = types
	}
	if len(types) < paramCount {
		return nil, errors.New("STMT_EXECUTE: no parameter types bound")
	}

	params := make([]interface{}, paramCount)
	for i := 0; i < paramCount; i++ {
		if _, isLongData := longData[i]; isLongData {
			continue
		}
		if nullBitmap[i/8]&(1<<uint(i%8)) != 0 {
			continue
		}
		var v interface{}
		var err error
		cursor, v, err = decodeBinaryValue(payload, cursor, byte(types[i]), charset)
		if err != nil {
			return nil, err
		}
		params[i] = v
	}
	req.Params = params
	return req, nil
}

// ComQuery is the parsed payload of a COM_QUERY packet.
type ComQuery struct {
	SQL   string
	Attrs map[string]string
}

// ParseComQuery decodes a COM_QUERY payload (sans the command byte). When
// queryAttributes is true (CLIENT_QUERY_ATTRIBUTES negotiated), a block of
// named parameters precedes the SQL text.
func ParseComQuery(payload []byte, queryAttributes bool, charset uint8) (*ComQuery, error) {
	cursor := 0
	attrs := map[string]string{}

	if queryAttributes && cursor < len(payload) {
		next, paramCount, _, err := ReadLenencInt(payload, cursor)
		if err != nil {
			return nil, err
		}
		cursor = next
		next, _, _, err = ReadLenencInt(payload, cursor) // parameter_set_count, always 1
		if err != nil {
			return nil, err
		}
		cursor = next

		if paramCount > 0 {
			nullBitmapLen := (int(paramCount) + 7) / 8
			if cursor+nullBitmapLen > len(payload) {
				return nil, errors.New("truncated query attribute null bitmap")
			}
			cursor += nullBitmapLen

			var newParamsBound byte
			cursor, newParamsBound = util.ReadByte(payload, cursor)

			types := make([]uint16, paramCount)
			names := make([]string, paramCount)
			if newParamsBound == 1 {
				for i := range types {
					var lo, hi byte
					cursor, lo = util.ReadByte(payload, cursor)
					cursor, hi = util.ReadByte(payload, cursor)
					types[i] = uint16(lo) | uint16(hi)<<8

					var name []byte
					next, name, _, err = ReadLenencString(payload, cursor)
					if err != nil {
						return nil, err
					}
					cursor = next
					names[i] = string(name)
				}
			}
			for i := 0; i < int(paramCount); i++ {
				var v interface{}
				cursor, v, err = decodeBinaryValue(payload, cursor, byte(types[i]), charset)
				if err != nil {
					return nil, err
				}
				if v != nil && names[i] != "" {
					attrs[names[i]] = textString(v)
				}
			}
		}
	}

	sql, err := DecodeCharsetText(charset, payload[cursor:])
	if err != nil {
		return nil, err
	}
	return &ComQuery{SQL: sql, Attrs: attrs}, nil
}

func decodeBinaryValue(buf []byte, cursor int, colType byte, charset uint8) (int, interface{}, error) {
	switch colType {
	case common.COLUMN_TYPE_TINY:
		if cursor+1 > len(buf) {
			return cursor, nil, errors.New("truncated TINY param")
		}
		return cursor + 1, int64(int8(buf[cursor])), nil
	case common.COLUMN_TYPE_SHORT, common.COLUMN_TYPE_YEAR:
		if cursor+2 > len(buf) {
			return cursor, nil, errors.New("truncated SHORT param")
		}
		return cursor + 2, int64(int16(binary.LittleEndian.Uint16(buf[cursor:]))), nil
	case common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_INT24:
		if cursor+4 > len(buf) {
			return cursor, nil, errors.New("truncated LONG param")
		}
		return cursor + 4, int64(int32(binary.LittleEndian.Uint32(buf[cursor:]))), nil
	case common.COLUMN_TYPE_LONGLONG:
		if cursor+8 > len(buf) {
			return cursor, nil, errors.New("truncated LONGLONG param")
		}
		return cursor + 8, int64(binary.LittleEndian.Uint64(buf[cursor:])), nil
	case common.COLUMN_TYPE_FLOAT:
		if cursor+4 > len(buf) {
			return cursor, nil, errors.New("truncated FLOAT param")
		}
		bits := binary.LittleEndian.Uint32(buf[cursor:])
		return cursor + 4, float64(math.Float32frombits(bits)), nil
	case common.COLUMN_TYPE_DOUBLE:
		if cursor+8 > len(buf) {
			return cursor, nil, errors.New("truncated DOUBLE param")
		}
		bits := binary.LittleEndian.Uint64(buf[cursor:])
		return cursor + 8, math.Float64frombits(bits), nil
	case common.COLUMN_TYPE_DATE, common.COLUMN_TYPE_DATETIME, common.COLUMN_TYPE_TIMESTAMP:
		return decodeBinaryDatetime(buf, cursor)
	case common.COLUMN_TYPE_TIME:
		return decodeBinaryDuration(buf, cursor)
	case common.COLUMN_TYPE_NULL:
		return cursor, nil, nil
	default:
		next, v, isNull, err := ReadLenencString(buf, cursor)
		if err != nil {
			return cursor, nil, err
		}
		if isNull {
			return next, nil, nil
		}
		s, err := DecodeCharsetText(charset, v)
		if err != nil {
			return cursor, nil, err
		}
		return next, s, nil
	}
}

func decodeBinaryDatetime(buf []byte, cursor int) (int, interface{}, error) {
	if cursor >= len(buf) {
		return cursor, nil, errors.New("truncated datetime param")
	}
	next, length := cursor+1, buf[cursor]
	if length == 0 {
		return next, time.Time{}, nil
	}
	if next+int(length) > len(buf) {
		return cursor, nil, errors.New("truncated datetime param")
	}
	year := int(binary.LittleEndian.Uint16(buf[next:]))
	month := int(buf[next+2])
	day := int(buf[next+3])
	hour, minute, sec, nsec := 0, 0, 0, 0
	if length >= 7 {
		hour = int(buf[next+4])
		minute = int(buf[next+5])
		sec = int(buf[next+6])
	}
	if length >= 11 {
		micros := binary.LittleEndian.Uint32(buf[next+7:])
		nsec = int(micros) * 1000
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, time.UTC)
	return next + int(length), t, nil
}

func decodeBinaryDuration(buf []byte, cursor int) (int, interface{}, error) {
	if cursor >= len(buf) {
		return cursor, nil, errors.New("truncated time param")
	}
	next, length := cursor+1, buf[cursor]
	if length == 0 {
		return next, time.Duration(0), nil
	}
	if next+int(length) > len(buf) {
		return cursor, nil, errors.New("truncated time param")
	}
	neg := buf[next] == 1
	days := int(binary.LittleEndian.Uint32(buf[next+1:]))
	hours := int(buf[next+5])
	mins := int(buf[next+6])
	secs := int(buf[next+7])
	d := time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
	if length >= 12 {
		micros := binary.LittleEndian.Uint32(buf[next+8:])
		d += time.Duration(micros) * time.Microsecond
	}
	if neg {
		d = -d
	}
	return next + int(length), d, nil
}

package protocol

import (
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/server/common"
	"github.com/zhukovaskychina/xmysql-server/util"
)

// EncodingError signals a failure converting bytes to or from a character
// set's text representation.
type EncodingError struct {
	Charset uint8
	Reason  string
}

func (e *EncodingError) Error() string {
	name, ok := common.CharsetName(e.Charset)
	if !ok {
		name = "unknown"
	}
	return "encoding error: charset=" + name + " (" + itoa(int(e.Charset)) + "): " + e.Reason
}

// charsetFamily groups MySQL character-set ordinals by codec behavior.
// Every charset in the same family decodes/encodes identically against
// the engine's internal UTF-8 string representation.
type charsetFamily int

const (
	charsetFamilyUTF8 charsetFamily = iota
	charsetFamilyLatin1
	charsetFamilyASCII
	charsetFamilyBinary
)

// charsetFamilyByID covers the character sets a real client actually
// negotiates against this engine (utf8, utf8mb4, latin1, ascii, binary).
// Ordinals outside this table fall back to the binary family: their bytes
// pass through untouched rather than being guessed at or rejected, since
// CharacterSetMap carries many legacy multi-byte charsets (sjis, gbk, ...)
// this engine does not implement a codec for.
var charsetFamilyByID = map[uint8]charsetFamily{
	common.CharacterSetUtf8:   charsetFamilyUTF8,
	45:                        charsetFamilyUTF8, // utf8mb4
	8:                         charsetFamilyLatin1,
	11:                        charsetFamilyASCII,
	common.CharacterSetBinary: charsetFamilyBinary,
}

func familyFor(charset uint8) charsetFamily {
	if f, ok := charsetFamilyByID[charset]; ok {
		return f
	}
	return charsetFamilyBinary
}

// DecodeCharsetText converts raw wire bytes carrying the given MySQL
// character-set ordinal into a Go string. The engine keeps all text
// internally as UTF-8; bytes that cannot be represented that way under
// the claimed charset produce an *EncodingError rather than being passed
// through silently.
func DecodeCharsetText(charset uint8, raw []byte) (string, error) {
	switch familyFor(charset) {
	case charsetFamilyUTF8:
		if !utf8.Valid(raw) {
			return "", &EncodingError{Charset: charset, Reason: "invalid UTF-8 byte sequence"}
		}
		return string(raw), nil
	case charsetFamilyASCII:
		for _, b := range raw {
			if b > 0x7F {
				return "", &EncodingError{Charset: charset, Reason: "byte above 0x7F in an ascii-charset string"}
			}
		}
		return string(raw), nil
	case charsetFamilyLatin1:
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), nil
	default:
		return string(raw), nil
	}
}

// EncodeCharsetText converts a Go string back into the bytes the given
// MySQL character-set ordinal expects on the wire. A rune outside the
// charset's repertoire produces an *EncodingError instead of being
// dropped or truncated.
func EncodeCharsetText(charset uint8, s string) ([]byte, error) {
	switch familyFor(charset) {
	case charsetFamilyASCII:
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0x7F {
				return nil, &EncodingError{Charset: charset, Reason: "rune outside the ascii repertoire"}
			}
			out = append(out, byte(r))
		}
		return out, nil
	case charsetFamilyLatin1:
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0xFF {
				return nil, &EncodingError{Charset: charset, Reason: "rune outside the latin1 repertoire"}
			}
			out = append(out, byte(r))
		}
		return out, nil
	default:
		return []byte(s), nil
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}

// ReadLenencInt reads a length-encoded integer, reporting whether it was
// the NULL marker (0xFB).
func ReadLenencInt(buf []byte, cursor int) (next int, value uint64, isNull bool, err error) {
	if cursor >= len(buf) {
		return cursor, 0, false, errors.New("truncated length-encoded integer")
	}
	if util.IsNullMarker(buf, cursor) {
		return cursor + 1, 0, true, nil
	}
	b := buf[cursor]
	if b == 0xFF {
		return cursor, 0, false, errors.New("reserved length-encoded integer marker 0xFF")
	}
	next, value = util.ReadLength(buf, cursor)
	return next, value, false, nil
}

// ReadLenencString reads a lenenc-int length followed by that many raw
// bytes.
func ReadLenencString(buf []byte, cursor int) (next int, value []byte, isNull bool, err error) {
	next, n, isNull, err := ReadLenencInt(buf, cursor)
	if err != nil || isNull {
		return next, nil, isNull, err
	}
	if next+int(n) > len(buf) {
		return next, nil, false, errors.New("truncated length-encoded string")
	}
	return next + int(n), buf[next : next+int(n)], false, nil
}

// ReadNullTerminatedString reads bytes up to (and consuming) the first
// zero byte.
func ReadNullTerminatedString(buf []byte, cursor int) (next int, value []byte, err error) {
	for i := cursor; i < len(buf); i++ {
		if buf[i] == 0 {
			return i + 1, buf[cursor:i], nil
		}
	}
	return len(buf), nil, errors.New("unterminated string: missing NUL")
}

// WriteLenencString appends a lenenc-int length followed by the raw bytes.
func WriteLenencString(buf []byte, value []byte) []byte {
	return util.WriteWithLength(buf, value)
}

// WriteNullTerminatedString appends the bytes followed by a zero byte.
func WriteNullTerminatedString(buf []byte, value []byte) []byte {
	return util.WriteWithNull(buf, value)
}

// EncodeText renders a typed Go value as text-protocol bytes in the given
// charset. NULL values are signalled by the caller writing the lenenc
// NULL marker instead of calling this.
func EncodeText(v interface{}, charset uint8) ([]byte, error) {
	return EncodeCharsetText(charset, textString(v))
}

package protocol

import "github.com/zhukovaskychina/xmysql-server/util"

// ColumnDefinition describes one column of a result set, as surfaced by
// both the text and binary protocols.
type ColumnDefinition struct {
	Catalog      string
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	Charset      uint16
	ColumnLength uint32
	Type         byte
	Flags        uint16
	Decimals     byte
}

// NewColumn builds a ColumnDefinition with the common defaults (catalog
// "def", UTF-8 charset) for a named, typed result column.
func NewColumn(name string, sqlType byte) *ColumnDefinition {
	return &ColumnDefinition{
		Catalog: "def",
		Name:    name,
		OrgName: name,
		Charset: 33,
		Type:    sqlType,
	}
}

// Encode renders a ColumnDefinition41 packet payload.
func (c *ColumnDefinition) Encode() []byte {
	buf := make([]byte, 0, 64+len(c.Name))
	buf = util.WriteWithLength(buf, []byte(nonEmpty(c.Catalog, "def")))
	buf = util.WriteWithLength(buf, []byte(c.Schema))
	buf = util.WriteWithLength(buf, []byte(c.Table))
	buf = util.WriteWithLength(buf, []byte(c.OrgTable))
	buf = util.WriteWithLength(buf, []byte(c.Name))
	buf = util.WriteWithLength(buf, []byte(nonEmpty(c.OrgName, c.Name)))

	buf = util.WriteByte(buf, 0x0c) // length of the fixed-length fields block
	buf = util.WriteUB2(buf, c.Charset)
	buf = util.WriteUB4(buf, c.ColumnLength)
	buf = util.WriteByte(buf, c.Type)
	buf = util.WriteUB2(buf, c.Flags)
	buf = util.WriteByte(buf, c.Decimals)
	buf = util.WriteUB2(buf, 0) // filler

	return buf
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

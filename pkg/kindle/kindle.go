// Package kindle is the value codec of the layout e-reader devices actually
// write (.yjr, .yjf, .azw3r, .azw3f, .mbp1, .mbs files).
//
// Tags are signed bytes. Strings are a boolean "absent" flag followed, when
// the flag is clear, by a uint16 byte length and modified UTF-8. Records are
// open-ended: a begin tag, the record name, tagged fields, then an end tag.
// The layout has no list, map or timestamp kinds.
package kindle

import (
	"fmt"
	"math"

	"github.com/rawbytedev/krds/internal/mutf8"
	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/cursor"
	"github.com/rawbytedev/krds/pkg/value"
)

const (
	TagBool        byte = 0
	TagInt         byte = 1
	TagLong        byte = 2
	TagString      byte = 3
	TagDouble      byte = 4
	TagShort       byte = 5
	TagFloat       byte = 6
	TagByte        byte = 7
	TagChar        byte = 9
	TagRecordBegin byte = 0xFE // -2
	TagRecordEnd   byte = 0xFF // -1
)

// DefaultMaxDepth bounds record nesting when no limit is configured.
const DefaultMaxDepth = 10000

// Codec decodes and encodes device-layout values. It is safe for concurrent
// use.
type Codec struct {
	MaxDepth int
}

// New returns a Codec; maxDepth <= 0 selects DefaultMaxDepth.
func New(maxDepth int) *Codec {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Codec{MaxDepth: maxDepth}
}

func (k *Codec) maxDepth() int {
	if k.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return k.MaxDepth
}

// DecodeValue reads one tagged value.
func (k *Codec) DecodeValue(c *cursor.Cursor) (value.Value, error) {
	return k.decode(c, 0)
}

func (k *Codec) decode(c *cursor.Cursor, depth int) (value.Value, error) {
	start := c.Pos()
	tag, err := c.ReadU8()
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case TagBool:
		b, err := c.ReadU8()
		if err != nil {
			return value.Value{}, err
		}
		if b > 1 {
			return value.Value{}, codecerr.New(codecerr.ErrInvalidEncoding, start+1, "boolean byte 0x%02x", b)
		}
		return value.Bool(b == 1), nil
	case TagInt:
		i, err := c.ReadI32()
		return value.Int(i), err
	case TagLong:
		i, err := c.ReadI64()
		return value.Long(i), err
	case TagString:
		return k.DecodeString(c)
	case TagDouble:
		u, err := c.ReadU64()
		return value.Double(math.Float64frombits(u)), err
	case TagShort:
		i, err := c.ReadI16()
		return value.Short(i), err
	case TagFloat:
		u, err := c.ReadU32()
		return value.Float(math.Float32frombits(u)), err
	case TagByte:
		b, err := c.ReadU8()
		return value.Byte(b), err
	case TagChar:
		b, err := c.ReadU8()
		if err != nil {
			return value.Value{}, err
		}
		if b >= 0x80 {
			return value.Value{}, codecerr.New(codecerr.ErrInvalidEncoding, start+1, "char byte 0x%02x is not ASCII", b)
		}
		return value.Char(uint16(b)), nil
	case TagRecordBegin:
		return k.decodeRecord(c, start, depth)
	}
	return value.Value{}, codecerr.New(codecerr.ErrUnknownTypeTag, start, "tag %d", int8(tag))
}

func (k *Codec) decodeRecord(c *cursor.Cursor, start, depth int) (value.Value, error) {
	if depth >= k.maxDepth() {
		return value.Value{}, codecerr.New(codecerr.ErrNestingTooDeep, start, "more than %d nested records", k.maxDepth())
	}
	name, err := k.DecodeName(c)
	if err != nil {
		return value.Value{}, err
	}
	fields := []value.Value{}
	for {
		tag, err := c.PeekTag()
		if err != nil {
			return value.Value{}, codecerr.WithPath(err, name)
		}
		if tag == TagRecordEnd {
			if _, err := c.ReadU8(); err != nil {
				return value.Value{}, codecerr.WithPath(err, name)
			}
			return value.Record(name, fields...), nil
		}
		f, err := k.decode(c, depth+1)
		if err != nil {
			err = codecerr.WithPartial(err, value.Record(name, fields...))
			return value.Value{}, codecerr.WithPath(err, fmt.Sprintf("%s[%d]", name, len(fields)))
		}
		fields = append(fields, f)
	}
}

// DecodeString reads an untagged string payload. A set absent flag yields
// Absent(KindString).
func (k *Codec) DecodeString(c *cursor.Cursor) (value.Value, error) {
	at := c.Pos()
	flag, err := c.ReadU8()
	if err != nil {
		return value.Value{}, err
	}
	switch flag {
	case 1:
		return value.Absent(value.KindString), nil
	case 0:
	default:
		return value.Value{}, codecerr.New(codecerr.ErrInvalidEncoding, at, "string flag 0x%02x", flag)
	}
	n, err := c.ReadU16()
	if err != nil {
		return value.Value{}, err
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return value.Value{}, err
	}
	s, err := mutf8.Decode(b)
	if err != nil {
		return value.Value{}, codecerr.New(codecerr.ErrInvalidEncoding, at+3, "malformed modified UTF-8")
	}
	return value.String(s), nil
}

// DecodeName reads an untagged string that must be present.
func (k *Codec) DecodeName(c *cursor.Cursor) (string, error) {
	at := c.Pos()
	v, err := k.DecodeString(c)
	if err != nil {
		return "", err
	}
	if v.IsAbsent() {
		return "", codecerr.New(codecerr.ErrInvalidEncoding, at, "name is absent")
	}
	return v.AsString(), nil
}

// EncodeValue writes one tagged value.
func (k *Codec) EncodeValue(c *cursor.Cursor, v value.Value) error {
	return k.encode(c, v, 0)
}

func (k *Codec) encode(c *cursor.Cursor, v value.Value, depth int) error {
	at := c.Pos()
	switch v.Kind() {
	case value.KindBool:
		return writeTagged(c, TagBool, func() error { return c.WriteU8(uint8(v.Bits())) })
	case value.KindInt:
		return writeTagged(c, TagInt, func() error { return c.WriteU32(uint32(v.Bits())) })
	case value.KindLong:
		return writeTagged(c, TagLong, func() error { return c.WriteU64(v.Bits()) })
	case value.KindDouble:
		return writeTagged(c, TagDouble, func() error { return c.WriteU64(v.Bits()) })
	case value.KindShort:
		return writeTagged(c, TagShort, func() error { return c.WriteU16(uint16(v.Bits())) })
	case value.KindFloat:
		return writeTagged(c, TagFloat, func() error { return c.WriteU32(uint32(v.Bits())) })
	case value.KindByte:
		return writeTagged(c, TagByte, func() error { return c.WriteU8(v.AsByte()) })
	case value.KindChar:
		if v.AsChar() >= 0x80 {
			return codecerr.New(codecerr.ErrUnrepresentable, at, "char U+%04X is not ASCII", v.AsChar())
		}
		return writeTagged(c, TagChar, func() error { return c.WriteU8(uint8(v.AsChar())) })
	case value.KindString:
		return writeTagged(c, TagString, func() error { return k.EncodeString(c, v) })
	case value.KindAbsent:
		if v.AbsentOf() != value.KindString {
			return codecerr.New(codecerr.ErrUnrepresentable, at, "absent %s", v.AbsentOf())
		}
		return writeTagged(c, TagString, func() error { return k.EncodeString(c, v) })
	case value.KindRecord:
		if depth >= k.maxDepth() {
			return codecerr.New(codecerr.ErrNestingTooDeep, at, "more than %d nested records", k.maxDepth())
		}
		if err := c.WriteU8(TagRecordBegin); err != nil {
			return err
		}
		if err := k.EncodeString(c, value.String(v.Name())); err != nil {
			return codecerr.WithPath(err, v.Name())
		}
		for i, f := range v.Items() {
			if err := k.encode(c, f, depth+1); err != nil {
				return codecerr.WithPath(err, fmt.Sprintf("%s[%d]", v.Name(), i))
			}
		}
		return c.WriteU8(TagRecordEnd)
	}
	return codecerr.New(codecerr.ErrUnrepresentable, at, "kind %s", v.Kind())
}

func writeTagged(c *cursor.Cursor, tag byte, payload func() error) error {
	if err := c.WriteU8(tag); err != nil {
		return err
	}
	return payload()
}

// EncodeString writes an untagged string payload or the absent flag.
func (k *Codec) EncodeString(c *cursor.Cursor, v value.Value) error {
	if v.IsAbsent() {
		return c.WriteU8(1)
	}
	if v.Kind() != value.KindString {
		return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "%s where a string is required", v.Kind())
	}
	s := v.AsString()
	n := mutf8.EncodedLen(s)
	if n > math.MaxUint16 {
		return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "string of %d bytes exceeds 65535", n)
	}
	b, err := mutf8.Append(make([]byte, 0, n), s)
	if err != nil {
		return codecerr.New(codecerr.ErrInvalidEncoding, c.Pos(), "string is not valid UTF-8")
	}
	if err := c.WriteU8(0); err != nil {
		return err
	}
	if err := c.WriteU16(uint16(n)); err != nil {
		return err
	}
	return c.WriteBytes(b)
}

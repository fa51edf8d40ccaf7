// Package wire is the tag-driven value codec of the reference layout.
//
// Every value is a one-byte tag followed by its payload. Fixed-width
// payloads are big-endian. Strings carry an int32 code-point count and
// modified UTF-8 bytes; lists, maps and records carry an int32 element
// count. A negative string length or list/map count is an absent value and
// the exact sentinel is kept so it re-encodes unchanged.
package wire

import (
	"fmt"
	"math"

	"github.com/rawbytedev/krds/internal/common"
	"github.com/rawbytedev/krds/internal/mutf8"
	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/cursor"
	"github.com/rawbytedev/krds/pkg/value"
)

// Tag bytes. The set is closed; anything else is ErrUnknownTypeTag.
const (
	TagBool      byte = 0x00
	TagInt       byte = 0x01
	TagLong      byte = 0x02
	TagString    byte = 0x03
	TagDouble    byte = 0x04
	TagShort     byte = 0x05
	TagFloat     byte = 0x06
	TagByte      byte = 0x07
	TagTimestamp byte = 0x08
	TagChar      byte = 0x09
	TagList      byte = 0x0A
	TagMap       byte = 0x0B
	TagRecord    byte = 0xFE
)

// DefaultMaxDepth bounds container nesting when no limit is configured.
const DefaultMaxDepth = 10000

var tagKinds = map[byte]value.Kind{
	TagBool:      value.KindBool,
	TagInt:       value.KindInt,
	TagLong:      value.KindLong,
	TagString:    value.KindString,
	TagDouble:    value.KindDouble,
	TagShort:     value.KindShort,
	TagFloat:     value.KindFloat,
	TagByte:      value.KindByte,
	TagTimestamp: value.KindTimestamp,
	TagChar:      value.KindChar,
	TagList:      value.KindList,
	TagMap:       value.KindMap,
	TagRecord:    value.KindRecord,
}

var kindTags = func() map[value.Kind]byte {
	m := make(map[value.Kind]byte, len(tagKinds))
	for t, k := range tagKinds {
		m[k] = t
	}
	return m
}()

// KindOf maps a tag byte to the kind it introduces.
func KindOf(tag byte) (value.Kind, bool) {
	k, ok := tagKinds[tag]
	return k, ok
}

// TagOf maps a kind to its tag byte.
func TagOf(k value.Kind) (byte, bool) {
	t, ok := kindTags[k]
	return t, ok
}

// Codec decodes and encodes reference-layout values. It holds no per-call
// state and is safe for concurrent use.
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

func (w *Codec) maxDepth() int {
	if w.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return w.MaxDepth
}

// DecodeValue reads one tagged value.
func (w *Codec) DecodeValue(c *cursor.Cursor) (value.Value, error) {
	return w.decode(c, 0)
}

func (w *Codec) decode(c *cursor.Cursor, depth int) (value.Value, error) {
	start := c.Pos()
	tag, err := c.ReadU8()
	if err != nil {
		return value.Value{}, err
	}
	kind, ok := tagKinds[tag]
	if !ok {
		return value.Value{}, codecerr.New(codecerr.ErrUnknownTypeTag, start, "tag 0x%02x", tag)
	}
	switch kind {
	case value.KindBool:
		b, err := c.ReadU8()
		if err != nil {
			return value.Value{}, err
		}
		if b > 1 {
			return value.Value{}, codecerr.New(codecerr.ErrInvalidEncoding, start+1, "boolean byte 0x%02x", b)
		}
		return value.Bool(b == 1), nil
	case value.KindByte:
		b, err := c.ReadU8()
		return value.Byte(b), err
	case value.KindChar:
		u, err := c.ReadU16()
		return value.Char(u), err
	case value.KindShort:
		i, err := c.ReadI16()
		return value.Short(i), err
	case value.KindInt:
		i, err := c.ReadI32()
		return value.Int(i), err
	case value.KindLong:
		i, err := c.ReadI64()
		return value.Long(i), err
	case value.KindTimestamp:
		i, err := c.ReadI64()
		return value.Timestamp(i), err
	case value.KindFloat:
		u, err := c.ReadU32()
		return value.Float(math.Float32frombits(u)), err
	case value.KindDouble:
		u, err := c.ReadU64()
		return value.Double(math.Float64frombits(u)), err
	case value.KindString:
		return w.DecodeString(c)
	case value.KindList:
		return w.decodeList(c, start, depth)
	case value.KindMap:
		return w.decodeMap(c, start, depth)
	default:
		return w.decodeRecord(c, start, depth)
	}
}

func (w *Codec) enter(start, depth int) error {
	if depth >= w.maxDepth() {
		return codecerr.New(codecerr.ErrNestingTooDeep, start, "more than %d nested containers", w.maxDepth())
	}
	return nil
}

func (w *Codec) decodeList(c *cursor.Cursor, start, depth int) (value.Value, error) {
	count, err := c.ReadI32()
	if err != nil {
		return value.Value{}, err
	}
	if count < 0 {
		return value.AbsentSentinel(value.KindList, count), nil
	}
	if err := w.enter(start, depth); err != nil {
		return value.Value{}, err
	}
	items := make([]value.Value, 0, common.Prealloc(int(count), c.Remaining(), 2))
	for i := 0; i < int(count); i++ {
		it, err := w.decode(c, depth+1)
		if err != nil {
			return value.Value{}, codecerr.WithPath(err, fmt.Sprintf("[%d]", i))
		}
		items = append(items, it)
	}
	return value.List(items...), nil
}

func (w *Codec) decodeMap(c *cursor.Cursor, start, depth int) (value.Value, error) {
	count, err := c.ReadI32()
	if err != nil {
		return value.Value{}, err
	}
	if count < 0 {
		return value.AbsentSentinel(value.KindMap, count), nil
	}
	if err := w.enter(start, depth); err != nil {
		return value.Value{}, err
	}
	pairs := make([]value.Pair, 0, common.Prealloc(int(count), c.Remaining(), 6))
	for i := 0; i < int(count); i++ {
		key, err := w.DecodeName(c)
		if err != nil {
			return value.Value{}, codecerr.WithPath(err, fmt.Sprintf("{%d}", i))
		}
		v, err := w.decode(c, depth+1)
		if err != nil {
			return value.Value{}, codecerr.WithPath(err, key)
		}
		pairs = append(pairs, value.Pair{Key: key, Value: v})
	}
	return value.Map(pairs...), nil
}

func (w *Codec) decodeRecord(c *cursor.Cursor, start, depth int) (value.Value, error) {
	name, err := w.DecodeName(c)
	if err != nil {
		return value.Value{}, err
	}
	countAt := c.Pos()
	count, err := c.ReadI32()
	if err != nil {
		return value.Value{}, codecerr.WithPath(err, name)
	}
	if count < 0 {
		return value.Value{}, codecerr.WithPath(
			codecerr.New(codecerr.ErrInvalidEncoding, countAt, "negative field count %d", count), name)
	}
	if err := w.enter(start, depth); err != nil {
		return value.Value{}, codecerr.WithPath(err, name)
	}
	fields := make([]value.Value, 0, common.Prealloc(int(count), c.Remaining(), 2))
	for i := 0; i < int(count); i++ {
		f, err := w.decode(c, depth+1)
		if err != nil {
			err = codecerr.WithPartial(err, value.Record(name, fields...))
			return value.Value{}, codecerr.WithPath(err, fmt.Sprintf("%s[%d]", name, i))
		}
		fields = append(fields, f)
	}
	return value.Record(name, fields...), nil
}

// DecodeString reads an untagged string payload.
func (w *Codec) DecodeString(c *cursor.Cursor) (value.Value, error) {
	n, err := c.ReadI32()
	if err != nil {
		return value.Value{}, err
	}
	if n < 0 {
		return value.AbsentSentinel(value.KindString, n), nil
	}
	at := c.Pos()
	s, used, err := mutf8.DecodeRunes(c.Peek(c.Remaining()), int(n))
	switch err {
	case nil:
	case mutf8.ErrShort:
		return value.Value{}, codecerr.New(codecerr.ErrTruncatedInput, at, "string of %d code points ends after %d bytes", n, c.Remaining())
	default:
		return value.Value{}, codecerr.New(codecerr.ErrInvalidEncoding, at+used, "malformed modified UTF-8")
	}
	if _, err := c.ReadBytes(used); err != nil {
		return value.Value{}, err
	}
	return value.String(s), nil
}

// DecodeName reads an untagged string that must be present: record names,
// map keys and entry names.
func (w *Codec) DecodeName(c *cursor.Cursor) (string, error) {
	at := c.Pos()
	v, err := w.DecodeString(c)
	if err != nil {
		return "", err
	}
	if v.IsAbsent() {
		return "", codecerr.New(codecerr.ErrInvalidEncoding, at, "name is absent")
	}
	return v.AsString(), nil
}

// Size returns the encoded length of v, tag included. It does not check
// that v is encodable.
func Size(v value.Value) int {
	kind := v.Kind()
	if common.IsFixedKind(kind) {
		return 1 + common.FixedSize(kind)
	}
	switch {
	case kind == value.KindString:
		return 5 + mutf8.EncodedLen(v.AsString())
	case common.IsContainer(kind):
		n := 5
		if kind == value.KindRecord {
			n += 4 + mutf8.EncodedLen(v.Name())
		}
		keys := v.Keys()
		for i, it := range v.Items() {
			if kind == value.KindMap {
				n += 4 + mutf8.EncodedLen(keys[i])
			}
			n += Size(it)
		}
		return n
	}
	return 5
}

// EncodeValue writes one tagged value.
func (w *Codec) EncodeValue(c *cursor.Cursor, v value.Value) error {
	return w.encode(c, v, 0)
}

func (w *Codec) encode(c *cursor.Cursor, v value.Value, depth int) error {
	kind := v.Kind()
	if kind == value.KindAbsent {
		kind = v.AbsentOf()
		if kind != value.KindString && kind != value.KindList && kind != value.KindMap {
			return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "absent %s", kind)
		}
	}
	tag, ok := kindTags[kind]
	if !ok {
		return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "kind %s", kind)
	}
	start := c.Pos()
	if err := c.WriteU8(tag); err != nil {
		return err
	}
	switch v.Kind() {
	case value.KindBool, value.KindByte:
		return c.WriteU8(uint8(v.Bits()))
	case value.KindChar, value.KindShort:
		return c.WriteU16(uint16(v.Bits()))
	case value.KindInt, value.KindFloat:
		return c.WriteU32(uint32(v.Bits()))
	case value.KindLong, value.KindDouble, value.KindTimestamp:
		return c.WriteU64(v.Bits())
	case value.KindString:
		return w.EncodeString(c, v)
	case value.KindAbsent:
		return writeSentinel(c, v)
	case value.KindList:
		if err := w.enter(start, depth); err != nil {
			return err
		}
		if err := writeCount(c, v.Len()); err != nil {
			return err
		}
		for i, it := range v.Items() {
			if err := w.encode(c, it, depth+1); err != nil {
				return codecerr.WithPath(err, fmt.Sprintf("[%d]", i))
			}
		}
		return nil
	case value.KindMap:
		if err := w.enter(start, depth); err != nil {
			return err
		}
		if err := writeCount(c, v.Len()); err != nil {
			return err
		}
		keys := v.Keys()
		for i, it := range v.Items() {
			if err := w.EncodeString(c, value.String(keys[i])); err != nil {
				return codecerr.WithPath(err, keys[i])
			}
			if err := w.encode(c, it, depth+1); err != nil {
				return codecerr.WithPath(err, keys[i])
			}
		}
		return nil
	default:
		if err := w.enter(start, depth); err != nil {
			return codecerr.WithPath(err, v.Name())
		}
		if err := w.EncodeString(c, value.String(v.Name())); err != nil {
			return codecerr.WithPath(err, v.Name())
		}
		if err := writeCount(c, v.Len()); err != nil {
			return err
		}
		for i, f := range v.Items() {
			if err := w.encode(c, f, depth+1); err != nil {
				return codecerr.WithPath(err, fmt.Sprintf("%s[%d]", v.Name(), i))
			}
		}
		return nil
	}
}

// EncodeString writes an untagged string payload or its absent sentinel.
func (w *Codec) EncodeString(c *cursor.Cursor, v value.Value) error {
	if v.IsAbsent() {
		return writeSentinel(c, v)
	}
	if v.Kind() != value.KindString {
		return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "%s where a string is required", v.Kind())
	}
	s := v.AsString()
	b, err := mutf8.Append(make([]byte, 0, mutf8.EncodedLen(s)), s)
	if err != nil {
		return codecerr.New(codecerr.ErrInvalidEncoding, c.Pos(), "string is not valid UTF-8")
	}
	if err := writeCount(c, mutf8.RuneCount(s)); err != nil {
		return err
	}
	return c.WriteBytes(b)
}

func writeCount(c *cursor.Cursor, n int) error {
	if n > math.MaxInt32 {
		return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "count %d exceeds int32", n)
	}
	return c.WriteI32(int32(n))
}

func writeSentinel(c *cursor.Cursor, v value.Value) error {
	if v.Sentinel() >= 0 {
		return codecerr.New(codecerr.ErrUnrepresentable, c.Pos(), "absent sentinel %d is not negative", v.Sentinel())
	}
	return c.WriteI32(v.Sentinel())
}

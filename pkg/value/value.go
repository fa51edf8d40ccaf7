// Package value is the in-memory model of a decoded data store value.
//
// A Value is a tagged variant: exactly one Kind is active and only the
// payload for that kind is meaningful. Containers own their children, so a
// decoded tree never shares nodes and can be mutated freely by its owner.
//
// Records are kept positional. Field names are not part of the format; they
// are attached later by the schema package.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the active case of a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindTimestamp
	KindList
	KindMap
	KindRecord
	KindAbsent
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindBool:      "bool",
	KindByte:      "byte",
	KindChar:      "char",
	KindShort:     "short",
	KindInt:       "int",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindString:    "string",
	KindTimestamp: "timestamp",
	KindList:      "list",
	KindMap:       "map",
	KindRecord:    "record",
	KindAbsent:    "absent",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// DefaultSentinel is the length written for an Absent value built with Absent.
const DefaultSentinel int32 = -1

// Pair is one key/value entry of a Map.
type Pair struct {
	Key   string
	Value Value
}

// Value is one decoded value. The zero Value has KindInvalid.
type Value struct {
	kind     Kind
	bits     uint64
	str      string
	items    []Value
	keys     []string
	of       Kind
	sentinel int32
}

func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

func Byte(b uint8) Value       { return Value{kind: KindByte, bits: uint64(b)} }
func Char(c uint16) Value      { return Value{kind: KindChar, bits: uint64(c)} }
func Short(i int16) Value      { return Value{kind: KindShort, bits: uint64(i)} }
func Int(i int32) Value        { return Value{kind: KindInt, bits: uint64(i)} }
func Long(i int64) Value       { return Value{kind: KindLong, bits: uint64(i)} }
func Timestamp(ms int64) Value { return Value{kind: KindTimestamp, bits: uint64(ms)} }

// Float keeps the exact IEEE-754 bits, so NaN payloads survive a round trip.
func Float(f float32) Value { return Value{kind: KindFloat, bits: uint64(math.Float32bits(f))} }

// Double keeps the exact IEEE-754 bits.
func Double(f float64) Value { return Value{kind: KindDouble, bits: math.Float64bits(f)} }

func String(s string) Value { return Value{kind: KindString, str: s} }

// Time converts t to a millisecond Timestamp.
func Time(t time.Time) Value { return Timestamp(t.UnixMilli()) }

// List builds an ordered list. A nil or empty call yields an empty list,
// which is distinct from Absent(KindList).
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, items: items}
}

// Map builds an ordered map; pair order is kept as given.
func Map(pairs ...Pair) Value {
	v := Value{kind: KindMap, keys: make([]string, len(pairs)), items: make([]Value, len(pairs))}
	for i, p := range pairs {
		v.keys[i] = p.Key
		v.items[i] = p.Value
	}
	return v
}

// Record builds a named positional record.
func Record(name string, fields ...Value) Value {
	if fields == nil {
		fields = []Value{}
	}
	return Value{kind: KindRecord, str: name, items: fields}
}

// Absent is the "null" placeholder for a value of kind of, written with the
// default sentinel.
func Absent(of Kind) Value { return AbsentSentinel(of, DefaultSentinel) }

// AbsentSentinel is Absent with an explicit negative length/count as found on
// the wire. Layouts without a numeric sentinel ignore it.
func AbsentSentinel(of Kind, sentinel int32) Value {
	return Value{kind: KindAbsent, of: of, sentinel: sentinel}
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsValid() bool    { return v.kind != KindInvalid }
func (v Value) IsAbsent() bool   { return v.kind == KindAbsent }
func (v Value) AbsentOf() Kind   { return v.of }
func (v Value) Sentinel() int32  { return v.sentinel }
func (v Value) AsBool() bool     { return v.bits != 0 }
func (v Value) AsByte() uint8    { return uint8(v.bits) }
func (v Value) AsChar() uint16   { return uint16(v.bits) }
func (v Value) AsShort() int16   { return int16(v.bits) }
func (v Value) AsInt() int32     { return int32(v.bits) }
func (v Value) AsLong() int64    { return int64(v.bits) }
func (v Value) AsFloat() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) AsDouble() float64 {
	return math.Float64frombits(v.bits)
}
func (v Value) AsString() string { return v.str }

// Millis returns the payload of a Timestamp.
func (v Value) Millis() int64 { return int64(v.bits) }

// AsTime converts a Timestamp to a time.Time in UTC.
func (v Value) AsTime() time.Time { return time.UnixMilli(int64(v.bits)).UTC() }

// Bits returns the raw payload of a fixed-width kind.
func (v Value) Bits() uint64 { return v.bits }

// Name returns the record name.
func (v Value) Name() string {
	if v.kind != KindRecord {
		return ""
	}
	return v.str
}

// Items returns list elements, record fields or map values. The slice is
// owned by v.
func (v Value) Items() []Value { return v.items }

// Keys returns map keys in order.
func (v Value) Keys() []string { return v.keys }

// Len is the element count of a container, 0 otherwise.
func (v Value) Len() int { return len(v.items) }

// Index returns the i-th element of a container.
func (v Value) Index(i int) Value { return v.items[i] }

// Pairs returns a copy of the map entries in order.
func (v Value) Pairs() []Pair {
	out := make([]Pair, len(v.keys))
	for i, k := range v.keys {
		out[i] = Pair{Key: k, Value: v.items[i]}
	}
	return out
}

// Get looks up the first map entry with key k.
func (v Value) Get(k string) (Value, bool) {
	for i, key := range v.keys {
		if key == k {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Int64 widens any integral kind (including Timestamp) to int64.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindByte:
		return int64(v.AsByte()), true
	case KindChar:
		return int64(v.AsChar()), true
	case KindShort:
		return int64(v.AsShort()), true
	case KindInt:
		return int64(v.AsInt()), true
	case KindLong, KindTimestamp:
		return v.AsLong(), true
	}
	return 0, false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	if v.items != nil {
		items := make([]Value, len(v.items))
		for i, it := range v.items {
			items[i] = it.Clone()
		}
		v.items = items
	}
	if v.keys != nil {
		v.keys = append([]string(nil), v.keys...)
	}
	return v
}

// Equal reports structural equality. Floats compare by bits, Absent values
// compare their stand-in kind and sentinel.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInvalid:
		return true
	case KindString:
		return a.str == b.str
	case KindAbsent:
		return a.of == b.of && a.sentinel == b.sentinel
	case KindList, KindMap, KindRecord:
		if a.str != b.str || len(a.items) != len(b.items) || len(a.keys) != len(b.keys) {
			return false
		}
		for i := range a.keys {
			if a.keys[i] != b.keys[i] {
				return false
			}
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	default:
		return a.bits == b.bits
	}
}

// Equal reports whether v and o are structurally equal.
func (v Value) Equal(o Value) bool { return Equal(v, o) }

// String renders v for debugging. It is not a stable format.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindInvalid:
		sb.WriteString("<invalid>")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.AsBool()))
	case KindByte, KindShort, KindInt, KindLong:
		n, _ := v.Int64()
		fmt.Fprintf(sb, "%s(%d)", v.kind, n)
	case KindChar:
		fmt.Fprintf(sb, "char(%q)", rune(v.AsChar()))
	case KindFloat:
		fmt.Fprintf(sb, "float(%v)", v.AsFloat())
	case KindDouble:
		fmt.Fprintf(sb, "double(%v)", v.AsDouble())
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindTimestamp:
		fmt.Fprintf(sb, "timestamp(%d)", v.Millis())
	case KindAbsent:
		fmt.Fprintf(sb, "absent(%s)", v.of)
	case KindList:
		sb.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			it.format(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, it := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(v.keys[i]))
			sb.WriteString(": ")
			it.format(sb)
		}
		sb.WriteByte('}')
	case KindRecord:
		sb.WriteString(v.str)
		sb.WriteByte('(')
		for i, it := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			it.format(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(v.kind.String())
	}
}

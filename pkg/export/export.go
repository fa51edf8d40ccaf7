// Package export renders decoded documents as JSON, YAML or CBOR.
//
// Records are annotated with field names from a schema registry. Output
// objects keep the order of the document.
package export

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rawbytedev/krds"
	"github.com/rawbytedev/krds/pkg/schema"
	"github.com/rawbytedev/krds/pkg/value"
)

// TimeFormat selects how timestamps are rendered.
type TimeFormat uint8

const (
	// TimeISO renders timestamps as RFC 3339 strings in UTC with
	// millisecond precision; a -1 timestamp field renders as null.
	TimeISO TimeFormat = iota
	// TimeRaw renders timestamps as epoch milliseconds.
	TimeRaw
)

func ParseTimeFormat(s string) (TimeFormat, error) {
	switch s {
	case "", "iso":
		return TimeISO, nil
	case "raw":
		return TimeRaw, nil
	}
	return TimeISO, fmt.Errorf("export: unknown time format %q", s)
}

// ISOLayout is the layout of rendered timestamps.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

type Options struct {
	Registry *schema.Registry // nil selects schema.Default
	Times    TimeFormat
	Logger   *slog.Logger // nil discards
}

type builder struct {
	reg  *schema.Registry
	opts Options
	log  *slog.Logger
}

// Tree converts doc into an ordered object keyed by entry name. A repeated
// entry name gets a "#n" suffix from its second occurrence on.
func Tree(doc *krds.Document, opts Options) (*Object, error) {
	reg := opts.Registry
	if reg == nil {
		reg = schema.Default
	}
	b := &builder{reg: reg.At(doc.Version), opts: opts, log: opts.Logger}
	if b.log == nil {
		b.log = slog.New(slog.DiscardHandler)
	}
	out := NewObject()
	for _, e := range doc.Entries {
		var (
			v   any
			err error
		)
		if e.Value.Kind() == value.KindRecord {
			v, err = b.recordBody(e.Value)
		} else {
			v, err = b.convert(e.Value, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("export: entry %q: %w", e.Name, err)
		}
		out.Add(e.Name, v)
	}
	return out, nil
}

// recordBody renders a record without its name: a single value for
// unwrapped entries, otherwise an object of fields.
func (b *builder) recordBody(v value.Value) (any, error) {
	nr, err := b.reg.Annotate(v)
	if err != nil {
		return nil, err
	}
	for _, m := range nr.Mismatches {
		b.log.Warn("schema mismatch", "record", m.Record, "field", m.Field, "index", m.Index, "detail", m.Detail)
	}
	if nr.Known && nr.Entry.Unwrap && len(nr.Fields) == 1 && !nr.Fields[0].Anonymous {
		return b.convert(nr.Fields[0].Value, nr.Fields[0].Def)
	}
	obj := NewObject()
	for _, f := range nr.Fields {
		fv, err := b.convert(f.Value, f.Def)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", nr.Name, f.Name, err)
		}
		obj.Set(f.Name, fv)
	}
	return obj, nil
}

// convert renders one value. hint carries the schema field when the value is a
// named field.
func (b *builder) convert(v value.Value, hint *schema.Field) (any, error) {
	switch v.Kind() {
	case value.KindAbsent:
		return nil, nil
	case value.KindBool:
		return v.AsBool(), nil
	case value.KindByte:
		return v.AsByte(), nil
	case value.KindChar:
		return string(rune(v.AsChar())), nil
	case value.KindShort:
		return v.AsShort(), nil
	case value.KindInt:
		return v.AsInt(), nil
	case value.KindLong:
		if hint != nil && hint.Timestamp {
			return b.timestamp(v.AsLong(), true), nil
		}
		return v.AsLong(), nil
	case value.KindTimestamp:
		return b.timestamp(v.Millis(), false), nil
	case value.KindFloat:
		return float(float64(v.AsFloat()), v.AsFloat()), nil
	case value.KindDouble:
		return float(v.AsDouble(), v.AsDouble()), nil
	case value.KindString:
		return v.AsString(), nil
	case value.KindList:
		if hint != nil && hint.Classes != nil {
			if obj, ok, err := b.byClass(v, hint); ok || err != nil {
				return obj, err
			}
		}
		out := make([]any, 0, v.Len())
		for i, it := range v.Items() {
			c, err := b.convert(it, b.elemHint(hint))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, c)
		}
		return out, nil
	case value.KindMap:
		obj := NewObject()
		for _, p := range v.Pairs() {
			c, err := b.convert(p.Value, b.groupHint(hint, p.Key))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Key, err)
			}
			obj.Add(p.Key, c)
		}
		return obj, nil
	case value.KindRecord:
		body, err := b.recordBody(v)
		if err != nil || (hint != nil && hint.Inline) {
			return body, err
		}
		obj := NewObject()
		obj.Set(v.Name(), body)
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported kind %s", v.Kind())
}

// elemHint passes group hints down to the maps of a group field and inline
// hints down to the records of a sequence.
func (b *builder) elemHint(hint *schema.Field) *schema.Field {
	if hint != nil && (hint.Shape == schema.ShapeGroup || hint.Inline) {
		return hint
	}
	return nil
}

// byClass keys the items of a classed group by class name. ok is false when
// an item has no known class; the group then renders as a plain list.
func (b *builder) byClass(v value.Value, hint *schema.Field) (*Object, bool, error) {
	out := NewObject()
	for i, item := range v.Items() {
		if item.Kind() != value.KindMap || item.Len() != 2 || item.Index(0).Kind() != value.KindInt {
			return nil, false, nil
		}
		class, ok := hint.Classes[item.Index(0).AsInt()]
		if !ok {
			b.log.Warn("unknown class", "field", hint.Name, "class", item.Index(0).AsInt())
			return nil, false, nil
		}
		c, err := b.convert(item.Index(1), &hint.Group[1])
		if err != nil {
			return nil, false, fmt.Errorf("[%d]: %w", i, err)
		}
		out.Add(class, c)
	}
	return out, true, nil
}

func (b *builder) groupHint(hint *schema.Field, key string) *schema.Field {
	if hint == nil || hint.Shape != schema.ShapeGroup {
		return nil
	}
	for i := range hint.Group {
		if hint.Group[i].Name == key {
			return &hint.Group[i]
		}
	}
	return nil
}

func (b *builder) timestamp(ms int64, unsetIsNull bool) any {
	if b.opts.Times == TimeRaw {
		return ms
	}
	if unsetIsNull && ms == -1 {
		return nil
	}
	return time.UnixMilli(ms).UTC().Format(ISOLayout)
}

// float keeps finite values in their own width and spells out the rest.
func float[T float32 | float64](f float64, orig T) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return orig
}

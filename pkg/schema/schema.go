// Package schema names the positional fields of known records.
//
// The format stores record fields by position only. A Registry maps record
// names to the ordered fields they are expected to carry; Annotate attaches
// those names to a decoded record and Project strips them again for encoding.
//
// Decoding is lenient: a record that disagrees with its schema is still fully
// exposed, with Mismatch warnings and anonymous trailing fields. Encoding is
// strict: Project refuses to leave a gap in the positional layout.
package schema

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/value"
)

// Any accepts a value of every kind.
const Any = value.KindInvalid

var (
	ErrNotRecord       = errors.New("schema: value is not a record")
	ErrInvalidSchema   = errors.New("schema: invalid entry")
	ErrDuplicateSchema = errors.New("schema: duplicate entry")
)

// Shape says how many positional values a field occupies.
type Shape uint8

const (
	// ShapeScalar is one positional value.
	ShapeScalar Shape = iota
	// ShapeSequence is an Int count followed by that many values of Kind,
	// exposed as a List.
	ShapeSequence
	// ShapeGroup is an Int count followed by count repetitions of Group,
	// exposed as a List of Maps keyed by the group's field names.
	ShapeGroup
	// ShapePairs is an Int count followed by count (String key, value)
	// pairs, exposed as a Map.
	ShapePairs
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeSequence:
		return "sequence"
	case ShapeGroup:
		return "group"
	case ShapePairs:
		return "pairs"
	}
	return "shape(" + strconv.Itoa(int(s)) + ")"
}

// Field is one expected field of a record.
type Field struct {
	Name  string
	Kind  value.Kind
	Shape Shape
	Group []Field
	// Optional fields may be missing from the end of a record. Once one is
	// missing every later field must be missing too.
	Optional bool
	// Timestamp marks integer fields holding epoch milliseconds.
	Timestamp bool
	// Inline marks record fields, or sequences of records, whose records
	// emitters render without the record name around them.
	Inline bool
	// Classes names the items of a two-field group by the Int in their
	// first field. Emitters key each item by its class name and render its
	// second field as the value.
	Classes map[int32]string
}

// Entry is the schema of one record name.
type Entry struct {
	Name   string
	Fields []Field
	// Since and Until bound the document versions the entry applies to.
	// Zero means unbounded.
	Since, Until uint16
	// Unwrap marks single-field records that emitters may flatten to their
	// only value.
	Unwrap bool
	// Legacy is an older scalar-only layout of the record. A record whose
	// values match it one to one is annotated with it instead of Fields.
	Legacy []Field
}

// fields returns the field list a record was annotated with.
func (e Entry) fields(legacy bool) []Field {
	if legacy {
		return e.Legacy
	}
	return e.Fields
}

func (e Entry) appliesTo(version uint16) bool {
	if version == 0 {
		return true
	}
	return (e.Since == 0 || version >= e.Since) && (e.Until == 0 || version <= e.Until)
}

// Registry is an immutable set of entries, safe for concurrent use.
type Registry struct {
	entries map[string][]Entry
	version uint16
}

// NewRegistry validates entries and builds a Registry from them.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string][]Entry, len(entries))}
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, err
		}
		for _, prev := range r.entries[e.Name] {
			if overlaps(prev, e) {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateSchema, e.Name)
			}
		}
		r.entries[e.Name] = append(r.entries[e.Name], e)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

func overlaps(a, b Entry) bool {
	lo := func(e Entry) uint16 { return e.Since }
	hi := func(e Entry) uint16 {
		if e.Until == 0 {
			return ^uint16(0)
		}
		return e.Until
	}
	return lo(a) <= hi(b) && lo(b) <= hi(a)
}

func validate(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("%w: empty record name", ErrInvalidSchema)
	}
	if e.Until != 0 && e.Until < e.Since {
		return fmt.Errorf("%w: %q: version range %d..%d", ErrInvalidSchema, e.Name, e.Since, e.Until)
	}
	if err := validateFields(e.Name, e.Fields); err != nil {
		return err
	}
	if err := validateFields(e.Name, e.Legacy); err != nil {
		return err
	}
	for _, f := range e.Legacy {
		if f.Shape != ShapeScalar || f.Optional {
			return fmt.Errorf("%w: %q: legacy field %q is not a required scalar", ErrInvalidSchema, e.Name, f.Name)
		}
	}
	return nil
}

func validateFields(name string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	optional := false
	for _, f := range fields {
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: %q: unnamed field", ErrInvalidSchema, name)
		case seen[f.Name]:
			return fmt.Errorf("%w: %q: field %q repeated", ErrInvalidSchema, name, f.Name)
		case optional && !f.Optional:
			return fmt.Errorf("%w: %q: required field %q after optional ones", ErrInvalidSchema, name, f.Name)
		case f.Shape == ShapeGroup && len(f.Group) == 0:
			return fmt.Errorf("%w: %q: group %q has no fields", ErrInvalidSchema, name, f.Name)
		case f.Classes != nil && (f.Shape != ShapeGroup || len(f.Group) != 2 || f.Group[0].Kind != value.KindInt):
			return fmt.Errorf("%w: %q: classes on %q need a group of an int and a value", ErrInvalidSchema, name, f.Name)
		case f.Shape > ShapePairs:
			return fmt.Errorf("%w: %q: field %q has %s", ErrInvalidSchema, name, f.Name, f.Shape)
		}
		seen[f.Name] = true
		optional = optional || f.Optional
	}
	return nil
}

// At returns a view of r holding only the entries that apply to a document
// of the given version.
func (r *Registry) At(version uint16) *Registry {
	return &Registry{entries: r.entries, version: version}
}

// Lookup returns the entry for a record name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	for _, e := range r.entries[name] {
		if e.appliesTo(r.version) {
			return e, true
		}
	}
	return Entry{}, false
}

// Len is the number of distinct record names known.
func (r *Registry) Len() int { return len(r.entries) }

// AnonymousName is the name exposed for a positional field without schema.
func AnonymousName(index int) string { return "field_" + strconv.Itoa(index) }

// Mismatch is a non-fatal disagreement between a record and its schema.
type Mismatch struct {
	Record string
	Field  string
	Index  int
	Detail string
}

func (m Mismatch) Error() string {
	if m.Field != "" {
		return fmt.Sprintf("schema mismatch in %s.%s (value %d): %s", m.Record, m.Field, m.Index, m.Detail)
	}
	return fmt.Sprintf("schema mismatch in %s (value %d): %s", m.Record, m.Index, m.Detail)
}

func (m Mismatch) Unwrap() error { return codecerr.ErrSchemaMismatch }

// NamedField is one annotated field.
type NamedField struct {
	Name  string
	Value value.Value
	// Index is the position of the first value the field was read from.
	Index int
	// Anonymous fields had no schema field to take their name from.
	Anonymous bool
	// Def is the schema field, nil for anonymous fields.
	Def *Field
}

// NamedRecord is a record with field names attached.
type NamedRecord struct {
	Name       string
	Fields     []NamedField
	Known      bool
	Entry      Entry
	Mismatches []Mismatch
	// Legacy is set when the record matched Entry.Legacy.
	Legacy bool
}

// Get returns the value of the named field.
func (n NamedRecord) Get(name string) (value.Value, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return value.Value{}, false
}

// Set replaces the value of a named field, or adds it when absent. Project
// places added fields according to the schema.
func (n *NamedRecord) Set(name string, v value.Value) {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			n.Fields[i].Value = v
			return
		}
	}
	n.Fields = append(n.Fields, NamedField{Name: name, Value: v, Index: -1})
}

func matches(want value.Kind, v value.Value) bool {
	switch {
	case want == Any:
		return true
	case v.Kind() == want:
		return true
	case v.IsAbsent():
		return v.AbsentOf() == want
	}
	return false
}

// count reads a non-negative Int count that fits in the values left.
func count(vals []value.Value, width int) (int, string) {
	if vals[0].Kind() != value.KindInt {
		return 0, fmt.Sprintf("count is %s, want int", vals[0].Kind())
	}
	n := int(vals[0].AsInt())
	if n < 0 {
		return 0, fmt.Sprintf("negative count %d", n)
	}
	if n > (len(vals)-1)/width {
		return 0, fmt.Sprintf("count %d needs %d values, %d left", n, n*width, len(vals)-1)
	}
	return n, ""
}

// Annotate attaches schema field names to a positional record.
func (r *Registry) Annotate(v value.Value) (NamedRecord, error) {
	if v.Kind() != value.KindRecord {
		return NamedRecord{}, fmt.Errorf("%w: %s", ErrNotRecord, v.Kind())
	}
	vals := v.Items()
	nr := NamedRecord{Name: v.Name()}
	entry, ok := r.Lookup(v.Name())
	if !ok {
		for i, it := range vals {
			nr.Fields = append(nr.Fields, NamedField{Name: AnonymousName(i), Value: it, Index: i, Anonymous: true})
		}
		return nr, nil
	}
	nr.Known, nr.Entry = true, entry
	warn := func(field string, index int, format string, args ...any) {
		nr.Mismatches = append(nr.Mismatches, Mismatch{Record: v.Name(), Field: field, Index: index, Detail: fmt.Sprintf(format, args...)})
	}

	nr.Legacy = len(entry.Legacy) > 0 && fits(entry.Legacy, vals)
	fields := entry.fields(nr.Legacy)

	pos, stopped := 0, false
	for i := range fields {
		f := &fields[i]
		if pos >= len(vals) {
			if !f.Optional {
				warn(f.Name, pos, "record has %d values, field is required", len(vals))
				stopped = true
			}
			break
		}
		fv, used, detail := take(f, vals[pos:], func(format string, args ...any) { warn(f.Name, pos, format, args...) })
		if detail != "" {
			warn(f.Name, pos, "%s", detail)
			stopped = true
			break
		}
		nr.Fields = append(nr.Fields, NamedField{Name: f.Name, Value: fv, Index: pos, Def: f})
		pos += used
	}
	if pos < len(vals) && !stopped {
		warn("", pos, "record has %d values, schema describes %d", len(vals), pos)
	}
	for ; pos < len(vals); pos++ {
		nr.Fields = append(nr.Fields, NamedField{Name: AnonymousName(pos), Value: vals[pos], Index: pos, Anonymous: true})
	}
	return nr, nil
}

// fits reports whether vals match scalar fields one to one.
func fits(fields []Field, vals []value.Value) bool {
	if len(fields) != len(vals) {
		return false
	}
	for i := range fields {
		if !matches(fields[i].Kind, vals[i]) {
			return false
		}
	}
	return true
}

// take consumes the values of one field from the front of vals. A non-empty
// detail means the values do not have the field's shape.
func take(f *Field, vals []value.Value, kindWarn func(string, ...any)) (value.Value, int, string) {
	checkKind := func(want value.Kind, v value.Value, what string) {
		if !matches(want, v) {
			kindWarn("%s is %s, want %s", what, v.Kind(), want)
		}
	}
	switch f.Shape {
	case ShapeSequence:
		n, detail := count(vals, 1)
		if detail != "" {
			return value.Value{}, 0, detail
		}
		items := make([]value.Value, n)
		copy(items, vals[1:1+n])
		for i, it := range items {
			checkKind(f.Kind, it, "element "+strconv.Itoa(i))
		}
		return value.List(items...), 1 + n, ""
	case ShapeGroup:
		width := len(f.Group)
		n, detail := count(vals, width)
		if detail != "" {
			return value.Value{}, 0, detail
		}
		items := make([]value.Value, n)
		for i := 0; i < n; i++ {
			pairs := make([]value.Pair, width)
			for j, g := range f.Group {
				it := vals[1+i*width+j]
				checkKind(g.Kind, it, g.Name)
				pairs[j] = value.Pair{Key: g.Name, Value: it}
			}
			items[i] = value.Map(pairs...)
		}
		return value.List(items...), 1 + n*width, ""
	case ShapePairs:
		n, detail := count(vals, 2)
		if detail != "" {
			return value.Value{}, 0, detail
		}
		pairs := make([]value.Pair, n)
		for i := 0; i < n; i++ {
			k := vals[1+2*i]
			if k.Kind() != value.KindString {
				return value.Value{}, 0, fmt.Sprintf("key %d is %s, want string", i, k.Kind())
			}
			checkKind(f.Kind, vals[2+2*i], "value of "+strconv.Quote(k.AsString()))
			pairs[i] = value.Pair{Key: k.AsString(), Value: vals[2+2*i]}
		}
		return value.Map(pairs...), 1 + 2*n, ""
	default:
		checkKind(f.Kind, vals[0], "value")
		return vals[0], 1, ""
	}
}

func missing(record, field, format string, args ...any) error {
	return codecerr.WithPath(codecerr.New(codecerr.ErrFieldMissing, -1, format, args...), record+"."+field)
}

func unrepresentable(record, field, format string, args ...any) error {
	return codecerr.WithPath(codecerr.New(codecerr.ErrUnrepresentable, -1, format, args...), record+"."+field)
}

// Project turns a named record back into a positional record laid out in
// schema order, followed by any anonymous fields in their order.
func (r *Registry) Project(n NamedRecord) (value.Value, error) {
	var named, anon []NamedField
	for _, f := range n.Fields {
		if f.Anonymous {
			anon = append(anon, f)
		} else {
			named = append(named, f)
		}
	}
	entry, ok := r.Lookup(n.Name)
	if !ok && len(named) > 0 {
		return value.Value{}, unrepresentable(n.Name, named[0].Name, "record has no schema to place named field")
	}

	out := []value.Value{}
	used := make(map[string]bool, len(named))
	gap := ""
	fields := entry.fields(n.Legacy)
	for i := range fields {
		f := &fields[i]
		fv, present := lookupNamed(named, f.Name)
		if !present {
			if len(anon) > 0 && anon[0].Index == len(out) {
				break
			}
			if f.Optional {
				if gap == "" {
					gap = f.Name
				}
				continue
			}
			return value.Value{}, missing(n.Name, f.Name, "required field is not set")
		}
		if gap != "" {
			return value.Value{}, missing(n.Name, gap, "optional field is unset but %q after it is set", f.Name)
		}
		vals, err := put(n.Name, f, fv)
		if err != nil {
			return value.Value{}, err
		}
		out = append(out, vals...)
		used[f.Name] = true
	}
	for _, f := range named {
		if !used[f.Name] {
			return value.Value{}, unrepresentable(n.Name, f.Name, "field cannot be placed")
		}
	}
	for _, f := range anon {
		out = append(out, f.Value)
	}
	return value.Record(n.Name, out...), nil
}

func lookupNamed(fields []NamedField, name string) (value.Value, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return value.Value{}, false
}

// put linearizes one field value according to its shape.
func put(record string, f *Field, v value.Value) ([]value.Value, error) {
	switch f.Shape {
	case ShapeSequence:
		if v.Kind() != value.KindList {
			return nil, unrepresentable(record, f.Name, "sequence field holds %s, want list", v.Kind())
		}
		out := make([]value.Value, 0, 1+v.Len())
		out = append(out, value.Int(int32(v.Len())))
		return append(out, v.Items()...), nil
	case ShapeGroup:
		if v.Kind() != value.KindList {
			return nil, unrepresentable(record, f.Name, "group field holds %s, want list", v.Kind())
		}
		out := make([]value.Value, 0, 1+v.Len()*len(f.Group))
		out = append(out, value.Int(int32(v.Len())))
		for i, item := range v.Items() {
			if item.Kind() != value.KindMap {
				return nil, unrepresentable(record, f.Name, "group item %d is %s, want map", i, item.Kind())
			}
			for _, g := range f.Group {
				gv, ok := item.Get(g.Name)
				if !ok {
					return nil, missing(record, f.Name, "group item %d lacks %q", i, g.Name)
				}
				out = append(out, gv)
			}
		}
		return out, nil
	case ShapePairs:
		if v.Kind() != value.KindMap {
			return nil, unrepresentable(record, f.Name, "pairs field holds %s, want map", v.Kind())
		}
		out := make([]value.Value, 0, 1+2*v.Len())
		out = append(out, value.Int(int32(v.Len())))
		for _, p := range v.Pairs() {
			out = append(out, value.String(p.Key), p.Value)
		}
		return out, nil
	default:
		return []value.Value{v}, nil
	}
}

package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/value"
)

func bookmark() value.Value {
	return value.Record("bookmark", value.Int(42), value.Timestamp(1700000000000))
}

func TestAnnotateBookmark(t *testing.T) {
	nr, err := Default.Annotate(bookmark())
	require.NoError(t, err)
	require.True(t, nr.Known)
	assert.Empty(t, nr.Mismatches)
	require.Len(t, nr.Fields, 2)
	assert.Equal(t, "position", nr.Fields[0].Name)
	assert.Equal(t, "timestamp", nr.Fields[1].Name)

	pos, ok := nr.Get("position")
	require.True(t, ok)
	assert.Equal(t, int32(42), pos.AsInt())

	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(bookmark()))
}

func TestExcessValueIsAnonymous(t *testing.T) {
	rec := value.Record("bookmark", value.Int(42), value.Timestamp(1), value.String("extra"))
	nr, err := Default.Annotate(rec)
	require.NoError(t, err)
	require.Len(t, nr.Mismatches, 1)
	assert.ErrorIs(t, nr.Mismatches[0], codecerr.ErrSchemaMismatch)
	require.Len(t, nr.Fields, 3)
	assert.True(t, nr.Fields[2].Anonymous)
	assert.Equal(t, "field_2", nr.Fields[2].Name)

	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(rec))
}

func TestMissingRequiredField(t *testing.T) {
	rec := value.Record("bookmark", value.Int(42))
	nr, err := Default.Annotate(rec)
	require.NoError(t, err)
	require.Len(t, nr.Mismatches, 1)
	assert.Equal(t, "timestamp", nr.Mismatches[0].Field)

	_, err = Default.Project(nr)
	require.ErrorIs(t, err, codecerr.ErrFieldMissing)
	var ce *codecerr.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"bookmark.timestamp"}, ce.Path)
}

func TestKindMismatchStillNamed(t *testing.T) {
	rec := value.Record("bookmark", value.String("42"), value.Timestamp(1))
	nr, err := Default.Annotate(rec)
	require.NoError(t, err)
	require.Len(t, nr.Mismatches, 1)
	assert.Equal(t, "position", nr.Fields[0].Name)
	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(rec))
}

func TestUnknownRecord(t *testing.T) {
	rec := value.Record("never.seen", value.Int(1), value.Bool(true))
	nr, err := Default.Annotate(rec)
	require.NoError(t, err)
	assert.False(t, nr.Known)
	assert.Empty(t, nr.Mismatches)
	assert.Equal(t, "field_0", nr.Fields[0].Name)
	assert.Equal(t, "field_1", nr.Fields[1].Name)

	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(rec))

	nr.Set("named", value.Int(3))
	_, err = Default.Project(nr)
	require.ErrorIs(t, err, codecerr.ErrUnrepresentable)
}

func TestAnnotateRejectsNonRecord(t *testing.T) {
	_, err := Default.Annotate(value.Int(1))
	require.ErrorIs(t, err, ErrNotRecord)
}

func TestShapes(t *testing.T) {
	reg := MustRegistry(Entry{Name: "shapes", Fields: []Field{
		{Name: "seq", Kind: value.KindDouble, Shape: ShapeSequence},
		{Name: "grp", Shape: ShapeGroup, Group: []Field{
			{Name: "type", Kind: value.KindInt},
			{Name: "when", Kind: value.KindLong, Timestamp: true},
		}},
		{Name: "kv", Kind: Any, Shape: ShapePairs},
		{Name: "tail", Kind: value.KindBool},
	}})
	rec := value.Record("shapes",
		value.Int(2), value.Double(1), value.Double(2),
		value.Int(1), value.Int(7), value.Long(99),
		value.Int(2), value.String("a"), value.Int(1), value.String("b"), value.String("x"),
		value.Bool(true),
	)
	nr, err := reg.Annotate(rec)
	require.NoError(t, err)
	require.Empty(t, nr.Mismatches)
	require.Len(t, nr.Fields, 4)

	seq, _ := nr.Get("seq")
	assert.True(t, seq.Equal(value.List(value.Double(1), value.Double(2))))
	grp, _ := nr.Get("grp")
	assert.True(t, grp.Equal(value.List(value.Map(
		value.Pair{Key: "type", Value: value.Int(7)},
		value.Pair{Key: "when", Value: value.Long(99)},
	))))
	kv, _ := nr.Get("kv")
	assert.True(t, kv.Equal(value.Map(
		value.Pair{Key: "a", Value: value.Int(1)},
		value.Pair{Key: "b", Value: value.String("x")},
	)))

	back, err := reg.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(rec), "projected %s", back)
}

func TestBadCountFallsBackToAnonymous(t *testing.T) {
	reg := MustRegistry(Entry{Name: "r", Fields: []Field{
		{Name: "first", Kind: value.KindString},
		{Name: "seq", Kind: value.KindInt, Shape: ShapeSequence},
	}})
	rec := value.Record("r", value.String("s"), value.Int(5), value.Int(1))
	nr, err := reg.Annotate(rec)
	require.NoError(t, err)
	require.Len(t, nr.Mismatches, 1)
	assert.Equal(t, "seq", nr.Mismatches[0].Field)
	require.Len(t, nr.Fields, 3)
	assert.Equal(t, "first", nr.Fields[0].Name)
	assert.True(t, nr.Fields[1].Anonymous)

	back, err := reg.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(rec))
}

func TestOptionalTail(t *testing.T) {
	base := []value.Value{
		value.String("Bookerly"), value.Int(-1), value.Int(-1), value.Int(-1), value.Int(-1),
		value.Int(-1), value.Int(-1), value.Int(-1), value.Int(-1),
	}
	short := value.Record("font.prefs", base...)
	nr, err := Default.Annotate(short)
	require.NoError(t, err)
	assert.Empty(t, nr.Mismatches)
	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(short))

	longer := value.Record("font.prefs", append(append([]value.Value{}, base...), value.Int(1), value.String("font"))...)
	nr, err = Default.Annotate(longer)
	require.NoError(t, err)
	assert.Empty(t, nr.Mismatches)
	_, ok := nr.Get("userSideloadableFont")
	assert.True(t, ok)

	// dropping "bold" while keeping a later optional field leaves a gap
	var gapped NamedRecord
	gapped.Name = "font.prefs"
	for _, f := range nr.Fields {
		if f.Name != "bold" {
			gapped.Fields = append(gapped.Fields, f)
		}
	}
	_, err = Default.Project(gapped)
	require.ErrorIs(t, err, codecerr.ErrFieldMissing)
}

func TestSetPlacesFieldBySchema(t *testing.T) {
	var nr NamedRecord
	nr.Name = "bookmark"
	nr.Set("timestamp", value.Timestamp(5))
	nr.Set("position", value.Int(1))
	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(value.Record("bookmark", value.Int(1), value.Timestamp(5))))

	nr.Set("position", value.Int(2))
	v, _ := nr.Get("position")
	assert.Equal(t, int32(2), v.AsInt())
}

func TestVersionedEntries(t *testing.T) {
	reg, err := NewRegistry(
		Entry{Name: "r", Until: 1, Fields: []Field{{Name: "a", Kind: value.KindInt}}},
		Entry{Name: "r", Since: 2, Fields: []Field{{Name: "a", Kind: value.KindInt}, {Name: "b", Kind: value.KindInt}}},
	)
	require.NoError(t, err)

	e, ok := reg.At(1).Lookup("r")
	require.True(t, ok)
	assert.Len(t, e.Fields, 1)
	e, ok = reg.At(2).Lookup("r")
	require.True(t, ok)
	assert.Len(t, e.Fields, 2)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryValidation(t *testing.T) {
	_, err := NewRegistry(Entry{Name: "r"}, Entry{Name: "r"})
	assert.ErrorIs(t, err, ErrDuplicateSchema)
	_, err = NewRegistry(Entry{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Fields: []Field{{Name: "a", Optional: true}, {Name: "b"}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Fields: []Field{{Name: "g", Shape: ShapeGroup}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Fields: []Field{{Name: "a"}, {Name: "a"}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Since: 3, Until: 2})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestDefaultTable(t *testing.T) {
	for _, name := range []string{
		"lpr", "fpr", "updated_lpr", "annotation.cache.object", "annotation.personal.highlight",
		"font.prefs", "timer.average.calculator", "page.history.store", "apnx.key", "bookmark",
	} {
		_, ok := Default.Lookup(name)
		assert.True(t, ok, name)
	}
	_, ok := Default.Lookup("nope")
	assert.False(t, ok)

	var nilReg *Registry
	_, ok = nilReg.Lookup("lpr")
	assert.False(t, ok)
}

func TestAnnotationCacheGroup(t *testing.T) {
	tree := value.Record("saved.avl.interval.tree",
		value.Int(1),
		value.Record("annotation.personal.highlight",
			value.String("start"), value.String("end"), value.Long(1), value.Long(2), value.String("")),
	)
	rec := value.Record("annotation.cache.object", value.Int(1), value.Int(1), tree)
	nr, err := Default.Annotate(rec)
	require.NoError(t, err)
	assert.Empty(t, nr.Mismatches)
	anns, ok := nr.Get("annotations")
	require.True(t, ok)
	require.Equal(t, 1, anns.Len())
	typ, _ := anns.Index(0).Get("type")
	assert.Equal(t, int32(1), typ.AsInt())

	inner, err := Default.Annotate(tree)
	require.NoError(t, err)
	assert.Empty(t, inner.Mismatches)

	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(rec))
}

func TestLegacyLayout(t *testing.T) {
	old := value.Record("lpr", value.String("pos123"))
	nr, err := Default.Annotate(old)
	require.NoError(t, err)
	assert.True(t, nr.Legacy)
	assert.Empty(t, nr.Mismatches)
	require.Len(t, nr.Fields, 1)
	assert.Equal(t, "position", nr.Fields[0].Name)
	back, err := Default.Project(nr)
	require.NoError(t, err)
	assert.True(t, back.Equal(old))

	current := value.Record("lpr", value.Byte(2), value.String("pos"), value.Long(-1))
	nr, err = Default.Annotate(current)
	require.NoError(t, err)
	assert.False(t, nr.Legacy)
	assert.Equal(t, "version", nr.Fields[0].Name)

	// a lone int is the current layout with its optional tail missing
	nr, err = Default.Annotate(value.Record("lpr", value.Int(1)))
	require.NoError(t, err)
	assert.False(t, nr.Legacy)
	assert.Empty(t, nr.Mismatches)
}

func TestInlineAndClassesInTable(t *testing.T) {
	e, ok := Default.Lookup("annotation.cache.object")
	require.True(t, ok)
	f := e.Fields[0]
	assert.Equal(t, "annotation.personal.highlight", f.Classes[1])
	assert.True(t, f.Group[1].Inline)

	e, ok = Default.Lookup("timer.model")
	require.True(t, ok)
	assert.True(t, e.Fields[4].Inline)
}

func TestClassesAndLegacyValidation(t *testing.T) {
	classes := map[int32]string{1: "one"}
	_, err := NewRegistry(Entry{Name: "r", Fields: []Field{{Name: "a", Kind: value.KindInt, Classes: classes}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Fields: []Field{{Name: "g", Shape: ShapeGroup, Classes: classes, Group: []Field{
		{Name: "type", Kind: value.KindString}, {Name: "v"},
	}}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Fields: []Field{{Name: "g", Shape: ShapeGroup, Classes: classes, Group: []Field{
		{Name: "type", Kind: value.KindInt}, {Name: "v"},
	}}}})
	assert.NoError(t, err)

	_, err = NewRegistry(Entry{Name: "r", Legacy: []Field{{Name: "s", Shape: ShapeSequence}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = NewRegistry(Entry{Name: "r", Legacy: []Field{{Name: "s", Optional: true}}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "group", ShapeGroup.String())
	assert.Equal(t, "shape(9)", Shape(9).String())
}

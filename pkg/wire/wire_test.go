package wire

import (
	"errors"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/cursor"
	"github.com/rawbytedev/krds/pkg/value"
)

func encode(t testing.TB, w *Codec, v value.Value) []byte {
	t.Helper()
	c := cursor.NewWriter(64)
	require.NoError(t, w.EncodeValue(c, v))
	return c.Bytes()
}

func decode(w *Codec, b []byte) (value.Value, error) {
	c := cursor.New(b)
	v, err := w.DecodeValue(c)
	if err == nil && !c.Done() {
		return v, errors.New("bytes left over")
	}
	return v, err
}

func TestEncodeLayout(t *testing.T) {
	w := New(0)
	cases := []struct {
		name string
		in   value.Value
		want []byte
	}{
		{"bool", value.Bool(true), []byte{TagBool, 1}},
		{"byte", value.Byte(0xAB), []byte{TagByte, 0xAB}},
		{"char", value.Char('A'), []byte{TagChar, 0x00, 0x41}},
		{"short", value.Short(-2), []byte{TagShort, 0xFF, 0xFE}},
		{"int", value.Int(42), []byte{TagInt, 0, 0, 0, 42}},
		{"long", value.Long(1), []byte{TagLong, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"timestamp", value.Timestamp(1700000000000), []byte{TagTimestamp, 0x00, 0x00, 0x01, 0x8B, 0xCF, 0xE5, 0x68, 0x00}},
		{"float", value.Float(1), []byte{TagFloat, 0x3F, 0x80, 0, 0}},
		{"double", value.Double(1), []byte{TagDouble, 0x3F, 0xF0, 0, 0, 0, 0, 0, 0}},
		{"string", value.String("ab"), []byte{TagString, 0, 0, 0, 2, 'a', 'b'}},
		{"string nul", value.String("\x00"), []byte{TagString, 0, 0, 0, 1, 0xC0, 0x80}},
		{"absent string", value.Absent(value.KindString), []byte{TagString, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"empty list", value.List(), []byte{TagList, 0, 0, 0, 0}},
		{"absent list", value.AbsentSentinel(value.KindList, -5), []byte{TagList, 0xFF, 0xFF, 0xFF, 0xFB}},
		{"map", value.Map(value.Pair{Key: "k", Value: value.Bool(false)}), []byte{
			TagMap, 0, 0, 0, 1, 0, 0, 0, 1, 'k', TagBool, 0,
		}},
		{"record", value.Record("r", value.Byte(1)), []byte{
			TagRecord, 0, 0, 0, 1, 'r', 0, 0, 0, 1, TagByte, 1,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := encode(t, w, tc.in)
			assert.Equal(t, tc.want, got)
			back, err := decode(w, got)
			require.NoError(t, err)
			assert.True(t, tc.in.Equal(back), "decoded %s", back)
		})
	}
}

func TestUnknownTagOffset(t *testing.T) {
	w := New(0)
	// list of two: Int 7, then 0xFF where the second tag belongs
	b := []byte{TagList, 0, 0, 0, 2, TagInt, 0, 0, 0, 7, 0xFF}
	_, err := decode(w, b)
	require.ErrorIs(t, err, codecerr.ErrUnknownTypeTag)
	assert.Equal(t, 10, codecerr.OffsetOf(err))

	var ce *codecerr.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"[1]"}, ce.Path)

	_, err = decode(w, []byte{0xFF})
	require.ErrorIs(t, err, codecerr.ErrUnknownTypeTag)
	assert.Equal(t, 0, codecerr.OffsetOf(err))
}

func TestSentinelPreserved(t *testing.T) {
	w := New(0)
	for _, b := range [][]byte{
		{TagString, 0xFF, 0xFF, 0xFF, 0xF9},
		{TagList, 0x80, 0x00, 0x00, 0x00},
		{TagMap, 0xFF, 0xFF, 0xFF, 0xFE},
	} {
		v, err := decode(w, b)
		require.NoError(t, err)
		require.True(t, v.IsAbsent())
		assert.Equal(t, b, encode(t, w, v))
	}
}

func TestNegativeRecordCountInvalid(t *testing.T) {
	_, err := decode(New(0), []byte{TagRecord, 0, 0, 0, 1, 'r', 0xFF, 0xFF, 0xFF, 0xFF})
	require.ErrorIs(t, err, codecerr.ErrInvalidEncoding)
	assert.Equal(t, 6, codecerr.OffsetOf(err))
}

func TestAbsentNameInvalid(t *testing.T) {
	_, err := decode(New(0), []byte{TagRecord, 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0})
	require.ErrorIs(t, err, codecerr.ErrInvalidEncoding)
}

func TestBoolPayloadStrict(t *testing.T) {
	_, err := decode(New(0), []byte{TagBool, 2})
	require.ErrorIs(t, err, codecerr.ErrInvalidEncoding)
	assert.Equal(t, 1, codecerr.OffsetOf(err))
}

func TestInvalidStringKeepsPartialRecord(t *testing.T) {
	b := []byte{
		TagRecord, 0, 0, 0, 1, 'r', 0, 0, 0, 2,
		TagInt, 0, 0, 0, 1,
		TagString, 0, 0, 0, 1, 0x00,
	}
	_, err := decode(New(0), b)
	require.ErrorIs(t, err, codecerr.ErrInvalidEncoding)

	var ce *codecerr.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 20, ce.Offset)
	assert.Equal(t, []string{"r[1]"}, ce.Path)
	assert.True(t, ce.Partial.Equal(value.Record("r", value.Int(1))), "partial %s", ce.Partial)
}

func TestNestingLimit(t *testing.T) {
	nest := func(n int) value.Value {
		v := value.Int(1)
		for i := 0; i < n; i++ {
			v = value.List(v)
		}
		return v
	}
	w := New(3)
	ok := encode(t, w, nest(3))
	_, err := decode(w, ok)
	require.NoError(t, err)

	deep := encode(t, New(0), nest(4))
	_, err = decode(w, deep)
	require.ErrorIs(t, err, codecerr.ErrNestingTooDeep)

	err = w.EncodeValue(cursor.NewWriter(0), nest(4))
	require.ErrorIs(t, err, codecerr.ErrNestingTooDeep)
}

func TestDefaultDepthRejectsHostileInput(t *testing.T) {
	var b []byte
	for i := 0; i < DefaultMaxDepth+1; i++ {
		b = append(b, TagList, 0, 0, 0, 1)
	}
	b = append(b, TagBool, 0)
	_, err := decode(New(0), b)
	require.ErrorIs(t, err, codecerr.ErrNestingTooDeep)
}

func TestUnrepresentable(t *testing.T) {
	w := New(0)
	for _, v := range []value.Value{
		value.Absent(value.KindInt),
		value.AbsentSentinel(value.KindString, 0),
		{},
	} {
		err := w.EncodeValue(cursor.NewWriter(0), v)
		assert.ErrorIs(t, err, codecerr.ErrUnrepresentable, v.String())
	}
	err := w.EncodeValue(cursor.NewWriter(0), value.String("\xff"))
	assert.ErrorIs(t, err, codecerr.ErrInvalidEncoding)
}

func TestTruncationSweep(t *testing.T) {
	w := New(0)
	full := encode(t, w, value.Record("bookmark",
		value.Int(42),
		value.Timestamp(1700000000000),
		value.String("héllo😀"),
		value.List(value.Double(0.5), value.Char('x')),
		value.Map(value.Pair{Key: "k", Value: value.Short(3)}),
	))
	for n := 0; n < len(full); n++ {
		_, err := decode(w, full[:n])
		require.ErrorIs(t, err, codecerr.ErrTruncatedInput, "prefix %d", n)
	}
}

func TestTagTables(t *testing.T) {
	for tag := 0; tag < 256; tag++ {
		k, ok := KindOf(byte(tag))
		if !ok {
			continue
		}
		back, ok := TagOf(k)
		require.True(t, ok)
		assert.Equal(t, byte(tag), back)
	}
	_, ok := KindOf(0xFF)
	assert.False(t, ok)
	_, ok = TagOf(value.KindAbsent)
	assert.False(t, ok)
}

func scalarGen() gopter.Gen {
	return gen.OneGenOf(
		gen.Bool().Map(func(b bool) value.Value { return value.Bool(b) }),
		gen.UInt8().Map(func(b uint8) value.Value { return value.Byte(b) }),
		gen.UInt16().Map(func(c uint16) value.Value { return value.Char(c) }),
		gen.Int16().Map(func(i int16) value.Value { return value.Short(i) }),
		gen.Int32().Map(func(i int32) value.Value { return value.Int(i) }),
		gen.Int64().Map(func(i int64) value.Value { return value.Long(i) }),
		gen.Int64().Map(func(i int64) value.Value { return value.Timestamp(i) }),
		gen.UInt32().Map(func(u uint32) value.Value { return value.Float(math.Float32frombits(u)) }),
		gen.UInt64().Map(func(u uint64) value.Value { return value.Double(math.Float64frombits(u)) }),
		gen.AnyString().Map(func(s string) value.Value { return value.String(strings.ToValidUTF8(s, "?")) }),
		gen.Int32Range(math.MinInt32, -1).Map(func(s int32) value.Value { return value.AbsentSentinel(value.KindString, s) }),
	)
}

func treeGen() gopter.Gen {
	s := scalarGen()
	list := gen.SliceOf(s).Map(func(items []value.Value) value.Value { return value.List(items...) })
	return gen.OneGenOf(
		s,
		list,
		gen.SliceOf(list).Map(func(items []value.Value) value.Value { return value.Record("nested", items...) }),
		gen.MapOf(gen.AlphaString(), s).Map(func(m map[string]value.Value) value.Value {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]value.Pair, len(keys))
			for i, k := range keys {
				pairs[i] = value.Pair{Key: k, Value: m[k]}
			}
			return value.Map(pairs...)
		}),
		gen.Int32Range(math.MinInt32, -1).Map(func(s int32) value.Value { return value.AbsentSentinel(value.KindMap, s) }),
	)
}

func TestRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	w := New(0)

	properties.Property("decode(encode(v)) == v", prop.ForAll(
		func(v value.Value) bool {
			c := cursor.NewWriter(32)
			if w.EncodeValue(c, v) != nil {
				return false
			}
			back, err := decode(w, c.Bytes())
			return err == nil && back.Equal(v)
		},
		treeGen(),
	))

	properties.Property("encode(decode(b)) == b", prop.ForAll(
		func(v value.Value) bool {
			c := cursor.NewWriter(32)
			if w.EncodeValue(c, v) != nil {
				return false
			}
			b := c.Bytes()
			back, err := decode(w, b)
			if err != nil {
				return false
			}
			again := cursor.NewWriter(len(b))
			return w.EncodeValue(again, back) == nil && string(again.Bytes()) == string(b)
		},
		treeGen(),
	))

	properties.Property("Size(v) == len(encode(v))", prop.ForAll(
		func(v value.Value) bool {
			c := cursor.NewWriter(0)
			return w.EncodeValue(c, v) == nil && Size(v) == len(c.Bytes())
		},
		treeGen(),
	))

	properties.TestingRun(t)
}

func FuzzDecodeReencode(f *testing.F) {
	w := New(64)
	f.Add([]byte{TagInt, 0, 0, 0, 42})
	f.Add([]byte{TagString, 0, 0, 0, 1, 0xC0, 0x80})
	f.Add([]byte{TagRecord, 0, 0, 0, 1, 'r', 0, 0, 0, 1, TagList, 0xFF, 0xFF, 0xFF, 0xFE})
	f.Fuzz(func(t *testing.T, b []byte) {
		c := cursor.New(b)
		v, err := w.DecodeValue(c)
		if err != nil {
			return
		}
		out := cursor.NewWriter(len(b))
		require.NoError(t, w.EncodeValue(out, v))
		require.Equal(t, b[:c.Pos()], out.Bytes())
	})
}

func BenchmarkDecodeRecord(b *testing.B) {
	w := New(0)
	data := encode(b, w, value.Record("annotation.personal.note",
		value.String("AaAAABoAAAA:1234"),
		value.String("AaAAABoAAAA:1290"),
		value.Timestamp(1700000000000),
		value.Timestamp(1700000100000),
		value.String(""),
		value.String("a note with some text in it"),
	))
	b.ReportAllocs()
	for b.Loop() {
		_, _ = w.DecodeValue(cursor.New(data))
	}
}

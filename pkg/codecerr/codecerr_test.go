package codecerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/krds/pkg/value"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(ErrUnknownTypeTag, 12, "tag 0x%02x", 0xFF))
	require.ErrorIs(t, err, ErrUnknownTypeTag)
	assert.NotErrorIs(t, err, ErrTruncatedInput)
	assert.Equal(t, 12, OffsetOf(err))
	assert.Equal(t, -1, OffsetOf(errors.New("plain")))
}

func TestErrorRendering(t *testing.T) {
	err := New(ErrInvalidEncoding, 40, "malformed modified UTF-8")
	_ = WithPath(err, "[3]")
	_ = WithPath(err, "bookmark[1]")
	_ = WithEntry(err, "test")
	assert.Equal(t, `krds: invalid encoding at offset 40 (entry "test", path bookmark[1]/[3]): malformed modified UTF-8`, err.Error())

	bare := New(ErrFieldMissing, -1, "")
	assert.Equal(t, "krds: field missing", bare.Error())
}

func TestWithEntryKeepsInnermost(t *testing.T) {
	err := New(ErrTruncatedInput, 0, "x")
	WithEntry(err, "first")
	WithEntry(err, "second")
	assert.Equal(t, "first", err.Entry)
}

func TestWithPartialOnlyForInvalidEncoding(t *testing.T) {
	inner := value.Record("inner", value.Int(1))
	outer := value.Record("outer")

	err := New(ErrInvalidEncoding, 5, "bad")
	WithPartial(err, inner)
	WithPartial(err, outer)
	assert.True(t, err.Partial.Equal(inner))

	trunc := New(ErrTruncatedInput, 5, "short")
	WithPartial(trunc, inner)
	assert.False(t, trunc.Partial.IsValid())
}

func TestHelpersPassThroughForeignErrors(t *testing.T) {
	plain := errors.New("plain")
	assert.Same(t, plain, WithPath(plain, "x"))
	assert.Same(t, plain, WithEntry(plain, "x"))
	assert.Same(t, plain, WithPartial(plain, value.Int(1)))
}

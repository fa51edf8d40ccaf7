// Package codecerr holds the error taxonomy shared by every layer of the
// codec. Callers match kinds with errors.Is against the sentinels and pull
// location details out with errors.As into *Error.
package codecerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rawbytedev/krds/pkg/value"
)

var (
	// ErrTruncatedInput means the buffer ended before a value completed.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrOutOfBounds means a write ran past the end of a fixed buffer.
	ErrOutOfBounds = errors.New("write out of bounds")
	// ErrUnrecognizedFormat means the signature did not match any layout.
	ErrUnrecognizedFormat = errors.New("unrecognized format")
	// ErrUnsupportedVersion means the header version is not understood.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrUnknownTypeTag means a tag byte outside the closed tag set.
	ErrUnknownTypeTag = errors.New("unknown type tag")
	// ErrInvalidEncoding means malformed payload bytes, such as a bad string.
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrNestingTooDeep means containers nested past the configured limit.
	ErrNestingTooDeep = errors.New("nesting too deep")
	// ErrSchemaMismatch is a warning: a record does not match its schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrFieldMissing means a named record lacks a field required to encode it.
	ErrFieldMissing = errors.New("field missing")
	// ErrUnrepresentable means the target layout cannot carry the value.
	ErrUnrepresentable = errors.New("value not representable in layout")
)

// Error is a fatal codec error with the location it was raised at.
type Error struct {
	// Err is one of the sentinels above.
	Err error
	// Offset is the byte offset the failing read or write started at, or -1.
	Offset int
	// Entry is the top-level entry being processed, if any.
	Entry string
	// Path is the nesting path from the entry value down to the failure.
	Path []string
	// Detail is a human-readable description.
	Detail string
	// Partial is the innermost record decoded up to the failure, for
	// diagnosing invalid string payloads. It is invalid when not captured.
	Partial value.Value
}

// New returns an *Error of kind err raised at offset.
func New(err error, offset int, format string, args ...any) *Error {
	return &Error{Err: err, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("krds: ")
	sb.WriteString(e.Err.Error())
	if e.Offset >= 0 {
		fmt.Fprintf(&sb, " at offset %d", e.Offset)
	}
	if e.Entry != "" || len(e.Path) > 0 {
		sb.WriteString(" (")
		if e.Entry != "" {
			fmt.Fprintf(&sb, "entry %q", e.Entry)
			if len(e.Path) > 0 {
				sb.WriteString(", ")
			}
		}
		if len(e.Path) > 0 {
			sb.WriteString("path ")
			sb.WriteString(strings.Join(e.Path, "/"))
		}
		sb.WriteString(")")
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithPath prepends seg to the nesting path of err. Errors that are not an
// *Error pass through unchanged.
func WithPath(err error, seg string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	e.Path = append([]string{seg}, e.Path...)
	return e
}

// WithEntry records the top-level entry name on err.
func WithEntry(err error, name string) error {
	var e *Error
	if errors.As(err, &e) && e.Entry == "" {
		e.Entry = name
	}
	return err
}

// WithPartial attaches the partially decoded record to an invalid-encoding
// error. Only the innermost record is kept.
func WithPartial(err error, partial value.Value) error {
	var e *Error
	if errors.As(err, &e) && errors.Is(e.Err, ErrInvalidEncoding) && !e.Partial.IsValid() {
		e.Partial = partial
	}
	return err
}

// OffsetOf returns the offset recorded on err, or -1.
func OffsetOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Offset
	}
	return -1
}

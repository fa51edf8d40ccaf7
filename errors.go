package krds

import "github.com/rawbytedev/krds/pkg/codecerr"

var (
	ErrTruncatedInput     = codecerr.ErrTruncatedInput
	ErrOutOfBounds        = codecerr.ErrOutOfBounds
	ErrUnrecognizedFormat = codecerr.ErrUnrecognizedFormat
	ErrUnsupportedVersion = codecerr.ErrUnsupportedVersion
	ErrUnknownTypeTag     = codecerr.ErrUnknownTypeTag
	ErrInvalidEncoding    = codecerr.ErrInvalidEncoding
	ErrNestingTooDeep     = codecerr.ErrNestingTooDeep
	ErrSchemaMismatch     = codecerr.ErrSchemaMismatch
	ErrFieldMissing       = codecerr.ErrFieldMissing
	ErrUnrepresentable    = codecerr.ErrUnrepresentable
)

// Error is the positioned error returned by Decode and Encode.
type Error = codecerr.Error

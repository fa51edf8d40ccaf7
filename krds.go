// Package krds decodes and encodes reader data store documents, the binary
// state files e-readers keep next to each book (bookmarks, highlights, notes,
// reading position).
//
// A document is a signature, a version and an ordered list of named entries,
// each holding one tagged value. Decoding then encoding an accepted buffer
// reproduces it byte for byte.
package krds

import (
	"log/slog"

	"github.com/zeebo/blake3"

	"github.com/rawbytedev/krds/pkg/cursor"
	"github.com/rawbytedev/krds/pkg/kindle"
	"github.com/rawbytedev/krds/pkg/value"
	"github.com/rawbytedev/krds/pkg/wire"
)

// DefaultMaxDepth bounds container nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = wire.DefaultMaxDepth

type Options struct {
	Layout   Layout       // LayoutAuto detects on decode
	MaxDepth int          // <= 0 selects DefaultMaxDepth
	Logger   *slog.Logger // nil discards
}

// valueCodec is the per-layout tagged value codec.
type valueCodec interface {
	DecodeValue(c *cursor.Cursor) (value.Value, error)
	EncodeValue(c *cursor.Cursor, v value.Value) error
	DecodeName(c *cursor.Cursor) (string, error)
	EncodeString(c *cursor.Cursor, v value.Value) error
}

// Codec decodes and encodes documents. It holds no per-call state and is
// safe for concurrent use.
type Codec struct {
	opts Options
	log  *slog.Logger
	ref  *wire.Codec
	dev  *kindle.Codec
}

func NewCodec(opts Options) *Codec {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Codec{
		opts: opts,
		log:  log,
		ref:  wire.New(opts.MaxDepth),
		dev:  kindle.New(opts.MaxDepth),
	}
}

var defaultCodec = NewCodec(Options{})

// Decode decodes data with default options.
func Decode(data []byte) (*Document, error) { return defaultCodec.Decode(data) }

// Encode encodes doc with default options.
func Encode(doc *Document) ([]byte, error) { return defaultCodec.Encode(doc) }

// Decode parses a complete document. On error no Document is returned.
func (c *Codec) Decode(data []byte) (*Document, error) {
	layout := c.opts.Layout
	if layout == LayoutAuto {
		var err error
		if layout, err = detect(data); err != nil {
			return nil, err
		}
	} else if err := checkSignature(data, layout); err != nil {
		return nil, err
	}
	c.log.Debug("decoding document", "layout", layout, "size", len(data))
	if layout == LayoutKindle {
		return c.decodeKindle(data)
	}
	return c.decodeReference(data)
}

// Encode writes doc in its layout. A document with LayoutAuto is written
// in the reference layout.
func (c *Codec) Encode(doc *Document) ([]byte, error) {
	if doc.Layout == LayoutKindle {
		return c.encodeKindle(doc)
	}
	return c.encodeReference(doc)
}

// Digest is the BLAKE3-256 digest used to compare encoded documents.
func Digest(data []byte) [32]byte { return blake3.Sum256(data) }

// warnDuplicates logs each entry name seen more than once.
func (c *Codec) warnDuplicates(entries []Entry) {
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		seen[e.Name]++
		if seen[e.Name] == 2 {
			c.log.Warn("duplicate entry name", "entry", e.Name)
		}
	}
}

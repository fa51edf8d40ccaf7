package krds

import (
	"math"

	"github.com/rawbytedev/krds/internal/common"
	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/cursor"
	"github.com/rawbytedev/krds/pkg/kindle"
	"github.com/rawbytedev/krds/pkg/value"
)

// Device layout:
//
//	signature  8 bytes  00 00 00 00 00 1A B1 26
//	version    tagged Int, always 1
//	count      tagged Int
//	records    count tagged records, each an entry named after its record
//	trailer    anything left over

// minRecordSize is begin tag, name flag, name length and end tag.
const minRecordSize = 5

func (c *Codec) decodeKindle(data []byte) (*Document, error) {
	cur := cursor.New(data)
	if _, err := cur.ReadBytes(len(SignatureKindle)); err != nil {
		return nil, err
	}
	at := cur.Pos()
	version, ok, err := readTaggedInt(cur)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, codecerr.New(codecerr.ErrUnrecognizedFormat, at, "version is not an int")
	}
	if version != VersionV1 {
		return nil, codecerr.New(codecerr.ErrUnsupportedVersion, at, "version %d", version)
	}
	at = cur.Pos()
	count, ok, err := readTaggedInt(cur)
	if err != nil {
		return nil, err
	}
	if !ok || count < 0 {
		return nil, codecerr.New(codecerr.ErrInvalidEncoding, at, "entry count is not a non-negative int")
	}

	doc := &Document{Layout: LayoutKindle, Version: VersionV1, Entries: make([]Entry, 0, common.Prealloc(int(count), cur.Remaining(), minRecordSize))}
	for i := 0; i < int(count); i++ {
		at := cur.Pos()
		v, err := c.dev.DecodeValue(cur)
		if err != nil {
			c.log.Debug("decode failed", "offset", codecerr.OffsetOf(err), "entries", len(doc.Entries))
			return nil, err
		}
		if v.Kind() != value.KindRecord {
			return nil, codecerr.New(codecerr.ErrInvalidEncoding, at, "top-level %s, want record", v.Kind())
		}
		doc.Entries = append(doc.Entries, Entry{Name: v.Name(), Value: v})
	}
	c.warnDuplicates(doc.Entries)
	if rest := cur.Remaining(); rest > 0 {
		c.log.Warn("extra data after last entry", "bytes", rest)
		doc.Trailer = append([]byte{}, data[cur.Pos():]...)
	}
	return doc, nil
}

// readTaggedInt reads a tagged value and reports whether it was an Int.
func readTaggedInt(cur *cursor.Cursor) (int32, bool, error) {
	tag, err := cur.ReadU8()
	if err != nil {
		return 0, false, err
	}
	if tag != kindle.TagInt {
		return 0, false, nil
	}
	n, err := cur.ReadI32()
	return n, err == nil, err
}

func (c *Codec) encodeKindle(doc *Document) ([]byte, error) {
	if doc.Version != 0 && doc.Version != VersionV1 {
		return nil, codecerr.New(codecerr.ErrUnsupportedVersion, len(SignatureKindle), "version %d", doc.Version)
	}
	if len(doc.Entries) > math.MaxInt32 {
		return nil, codecerr.New(codecerr.ErrUnrepresentable, -1, "%d entries", len(doc.Entries))
	}
	cur := cursor.NewWriter(256)
	if err := cur.WriteBytes(SignatureKindle); err != nil {
		return nil, err
	}
	if err := c.dev.EncodeValue(cur, value.Int(VersionV1)); err != nil {
		return nil, err
	}
	if err := c.dev.EncodeValue(cur, value.Int(int32(len(doc.Entries)))); err != nil {
		return nil, err
	}
	for _, e := range doc.Entries {
		if e.Value.Kind() != value.KindRecord || e.Value.Name() != e.Name {
			err := codecerr.New(codecerr.ErrUnrepresentable, cur.Pos(), "entry must be a record named %q", e.Name)
			return nil, codecerr.WithEntry(err, e.Name)
		}
		if err := c.dev.EncodeValue(cur, e.Value); err != nil {
			return nil, codecerr.WithEntry(err, e.Name)
		}
	}
	if err := cur.WriteBytes(doc.Trailer); err != nil {
		return nil, err
	}
	return cur.Bytes(), nil
}

package krds

import (
	"github.com/rawbytedev/krds/pkg/codecerr"
	"github.com/rawbytedev/krds/pkg/cursor"
	"github.com/rawbytedev/krds/pkg/value"
	"github.com/rawbytedev/krds/pkg/wire"
)

// Reference layout:
//
//	signature  6 bytes  00 00 00 1A B1 26
//	version    uint16 BE
//	entries    (name string, tag, value)* up to the end of the buffer

func (c *Codec) decodeReference(data []byte) (*Document, error) {
	cur := cursor.New(data)
	if _, err := cur.ReadBytes(len(SignatureReference)); err != nil {
		return nil, err
	}
	at := cur.Pos()
	version, err := cur.ReadU16()
	if err != nil {
		return nil, err
	}
	if version != VersionV1 {
		return nil, codecerr.New(codecerr.ErrUnsupportedVersion, at, "version %d", version)
	}
	doc := &Document{Layout: LayoutReference, Version: version, Entries: []Entry{}}
	if err := c.decodeEntries(cur, c.ref, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Codec) decodeEntries(cur *cursor.Cursor, vc valueCodec, doc *Document) error {
	for !cur.Done() {
		name, err := vc.DecodeName(cur)
		if err != nil {
			return err
		}
		v, err := vc.DecodeValue(cur)
		if err != nil {
			return codecerr.WithEntry(err, name)
		}
		doc.Entries = append(doc.Entries, Entry{Name: name, Value: v})
	}
	c.warnDuplicates(doc.Entries)
	return nil
}

func (c *Codec) encodeReference(doc *Document) ([]byte, error) {
	version := doc.Version
	if version == 0 {
		version = VersionV1
	}
	if version != VersionV1 {
		return nil, codecerr.New(codecerr.ErrUnsupportedVersion, len(SignatureReference), "version %d", version)
	}
	if len(doc.Trailer) > 0 {
		return nil, codecerr.New(codecerr.ErrUnrepresentable, -1, "reference layout has no trailer")
	}
	size := len(SignatureReference) + 2
	for _, e := range doc.Entries {
		size += 4 + len(e.Name) + wire.Size(e.Value)
	}
	cur := cursor.NewWriter(size)
	if err := cur.WriteBytes(SignatureReference); err != nil {
		return nil, err
	}
	if err := cur.WriteU16(version); err != nil {
		return nil, err
	}
	for _, e := range doc.Entries {
		if err := c.ref.EncodeString(cur, value.String(e.Name)); err != nil {
			return nil, codecerr.WithEntry(err, e.Name)
		}
		if err := c.ref.EncodeValue(cur, e.Value); err != nil {
			return nil, codecerr.WithEntry(err, e.Name)
		}
	}
	return cur.Bytes(), nil
}

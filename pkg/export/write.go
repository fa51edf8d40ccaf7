package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"
)

type Format uint8

const (
	FormatJSON Format = iota
	FormatYAML
	FormatCBOR
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cbor":
		return FormatCBOR, nil
	}
	return FormatJSON, fmt.Errorf("export: unknown format %q", s)
}

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	}
	return "json"
}

// Ext is the file extension of the format, with its dot.
func (f Format) Ext() string { return "." + f.String() }

// Write renders obj to w in format f.
func Write(w io.Writer, f Format, obj *Object) error {
	switch f {
	case FormatYAML:
		return WriteYAML(w, obj)
	case FormatCBOR:
		return WriteCBOR(w, obj)
	}
	return WriteJSON(w, obj)
}

// WriteJSON writes obj indented by four spaces, followed by a newline.
func WriteJSON(w io.Writer, obj *Object) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(obj)
}

func WriteYAML(w io.Writer, obj *Object) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(obj); err != nil {
		return err
	}
	return enc.Close()
}

func WriteCBOR(w io.Writer, obj *Object) error {
	b, err := obj.MarshalCBOR()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

type Compression uint8

const (
	CompressNone Compression = iota
	CompressZstd
	CompressLZ4
)

func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressNone, nil
	case "zstd":
		return CompressZstd, nil
	case "lz4":
		return CompressLZ4, nil
	}
	return CompressNone, fmt.Errorf("export: unknown compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompressZstd:
		return "zstd"
	case CompressLZ4:
		return "lz4"
	}
	return "none"
}

// Ext is the suffix added to compressed output files, empty for none.
func (c Compression) Ext() string {
	switch c {
	case CompressZstd:
		return ".zst"
	case CompressLZ4:
		return ".lz4"
	}
	return ""
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Compress wraps w so that everything written is compressed with c. The
// returned writer must be closed to flush the stream; closing does not
// close w.
func Compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressNone:
		return nopCloser{w}, nil
	case CompressZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("export: zstd: %w", err)
		}
		return zw, nil
	case CompressLZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("export: unknown compression %d", c)
}

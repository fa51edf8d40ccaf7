// Package cursor is a bounds-checked big-endian read/write position over a
// byte buffer. It has no knowledge of the format; it only moves bytes.
//
// Every operation either completes and advances by its exact width, or fails
// and leaves the position untouched.
package cursor

import (
	"encoding/binary"

	"github.com/rawbytedev/krds/pkg/codecerr"
)

// Cursor reads or writes sequentially over a buffer.
type Cursor struct {
	buf      []byte
	pos      int
	growable bool
}

// New returns a cursor over buf starting at offset 0. Writes are confined to
// len(buf).
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// NewWriter returns an empty cursor whose buffer grows as it is written.
func NewWriter(sizeHint int) *Cursor {
	return &Cursor{buf: make([]byte, 0, sizeHint), growable: true}
}

// Pos is the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len is the buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining is the number of bytes between the position and the end.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Done reports whether the position is at the end of the buffer.
func (c *Cursor) Done() bool { return c.pos == len(c.buf) }

// Bytes returns the whole buffer. For a writer this is everything written.
func (c *Cursor) Bytes() []byte { return c.buf }

// Seek moves the position to pos, which must lie within the buffer.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return codecerr.New(codecerr.ErrOutOfBounds, pos, "seek outside [0, %d]", len(c.buf))
	}
	c.pos = pos
	return nil
}

func (c *Cursor) need(n int) error {
	if n < 0 {
		return codecerr.New(codecerr.ErrInvalidEncoding, c.pos, "negative length %d", n)
	}
	if c.Remaining() < n {
		return codecerr.New(codecerr.ErrTruncatedInput, c.pos, "need %d bytes, have %d", n, c.Remaining())
	}
	return nil
}

// ReadBytes returns the next n bytes. The slice aliases the buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// Peek returns up to n upcoming bytes without consuming them.
func (c *Cursor) Peek(n int) []byte {
	if n > c.Remaining() {
		n = c.Remaining()
	}
	return c.buf[c.pos : c.pos+n]
}

// PeekTag returns the next byte without consuming it.
func (c *Cursor) PeekTag() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	return c.buf[c.pos], nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *Cursor) ReadU64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

func (c *Cursor) ReadI64() (int64, error) {
	v, err := c.ReadU64()
	return int64(v), err
}

// reserve makes room for n bytes at the position and returns them.
func (c *Cursor) reserve(n int) ([]byte, error) {
	end := c.pos + n
	if end > len(c.buf) {
		if !c.growable {
			return nil, codecerr.New(codecerr.ErrOutOfBounds, c.pos, "write of %d bytes, %d left", n, c.Remaining())
		}
		if end > cap(c.buf) {
			grown := make([]byte, len(c.buf), 2*cap(c.buf)+n)
			copy(grown, c.buf)
			c.buf = grown
		}
		c.buf = c.buf[:end]
	}
	b := c.buf[c.pos:end]
	c.pos = end
	return b, nil
}

func (c *Cursor) WriteU8(v uint8) error {
	b, err := c.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (c *Cursor) WriteU16(v uint16) error {
	b, err := c.reserve(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b, v)
	return nil
}

func (c *Cursor) WriteU32(v uint32) error {
	b, err := c.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b, v)
	return nil
}

func (c *Cursor) WriteU64(v uint64) error {
	b, err := c.reserve(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b, v)
	return nil
}

func (c *Cursor) WriteI32(v int32) error { return c.WriteU32(uint32(v)) }

func (c *Cursor) WriteBytes(p []byte) error {
	b, err := c.reserve(len(p))
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}

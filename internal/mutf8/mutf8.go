// Package mutf8 converts between Go strings and modified UTF-8, the string
// encoding of Java's DataOutput: U+0000 is written as C0 80 and supplementary
// characters as a surrogate pair of two 3-byte sequences.
//
// Decoding is strict. Only the canonical form is accepted, so any accepted
// byte sequence re-encodes to the same bytes.
package mutf8

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrShort means the input ended inside a sequence or before n code points.
	ErrShort = errors.New("mutf8: input too short")
	// ErrInvalid means a non-canonical or malformed sequence.
	ErrInvalid = errors.New("mutf8: invalid sequence")
)

// unit decodes one 1-, 2- or 3-byte sequence at the start of b into a UTF-16
// code unit.
func unit(b []byte) (uint16, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrShort
	}
	c := b[0]
	switch {
	case c == 0:
		return 0, 0, ErrInvalid
	case c < 0x80:
		return uint16(c), 1, nil
	case c&0xE0 == 0xC0:
		if len(b) < 2 {
			return 0, 0, ErrShort
		}
		if b[1]&0xC0 != 0x80 {
			return 0, 0, ErrInvalid
		}
		u := uint16(c&0x1F)<<6 | uint16(b[1]&0x3F)
		if u != 0 && u < 0x80 {
			return 0, 0, ErrInvalid
		}
		return u, 2, nil
	case c&0xF0 == 0xE0:
		if len(b) < 3 {
			return 0, 0, ErrShort
		}
		if b[1]&0xC0 != 0x80 || b[2]&0xC0 != 0x80 {
			return 0, 0, ErrInvalid
		}
		u := uint16(c&0x0F)<<12 | uint16(b[1]&0x3F)<<6 | uint16(b[2]&0x3F)
		if u < 0x800 {
			return 0, 0, ErrInvalid
		}
		return u, 3, nil
	}
	return 0, 0, ErrInvalid
}

func isHigh(u uint16) bool { return u >= 0xD800 && u < 0xDC00 }
func isLow(u uint16) bool  { return u >= 0xDC00 && u < 0xE000 }

// next decodes one code point, joining a surrogate pair into a single rune.
func next(b []byte) (rune, int, error) {
	u, n, err := unit(b)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case isLow(u):
		return 0, 0, ErrInvalid
	case !isHigh(u):
		return rune(u), n, nil
	}
	lo, m, err := unit(b[n:])
	if err != nil {
		return 0, 0, err
	}
	if !isLow(lo) {
		return 0, 0, ErrInvalid
	}
	return utf16.DecodeRune(rune(u), rune(lo)), n + m, nil
}

// DecodeRunes decodes exactly count code points from the start of b and
// returns the string and the number of bytes consumed. On error the offset
// of the failing sequence is returned instead.
func DecodeRunes(b []byte, count int) (string, int, error) {
	out := make([]byte, 0, min(count, len(b)))
	off := 0
	for i := 0; i < count; i++ {
		r, n, err := next(b[off:])
		if err != nil {
			return "", off, err
		}
		out = utf8.AppendRune(out, r)
		off += n
	}
	return string(out), off, nil
}

// Decode decodes all of b.
func Decode(b []byte) (string, error) {
	out := make([]byte, 0, len(b))
	for off := 0; off < len(b); {
		r, n, err := next(b[off:])
		if err != nil {
			if err == ErrShort {
				err = ErrInvalid
			}
			return "", err
		}
		out = utf8.AppendRune(out, r)
		off += n
	}
	return string(out), nil
}

func appendUnit(dst []byte, u uint16) []byte {
	switch {
	case u == 0:
		return append(dst, 0xC0, 0x80)
	case u < 0x80:
		return append(dst, byte(u))
	case u < 0x800:
		return append(dst, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
	default:
		return append(dst, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
	}
}

// Append appends the modified UTF-8 form of s to dst. s must be valid UTF-8.
func Append(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return dst, ErrInvalid
	}
	for _, r := range s {
		if r < 0x10000 {
			dst = appendUnit(dst, uint16(r))
			continue
		}
		hi, lo := utf16.EncodeRune(r)
		dst = appendUnit(dst, uint16(hi))
		dst = appendUnit(dst, uint16(lo))
	}
	return dst, nil
}

// EncodedLen is the byte length of the modified UTF-8 form of a valid s.
func EncodedLen(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r == 0:
			n += 2
		case r < 0x80:
			n++
		case r < 0x800:
			n += 2
		case r < 0x10000:
			n += 3
		default:
			n += 6
		}
	}
	return n
}

// RuneCount is the number of code points the length prefix counts.
func RuneCount(s string) int { return utf8.RuneCountInString(s) }

package krds

import (
	"bytes"
	"fmt"

	"github.com/rawbytedev/krds/pkg/codecerr"
)

var (
	// SignatureReference opens a reference-layout document.
	SignatureReference = []byte{0x00, 0x00, 0x00, 0x1A, 0xB1, 0x26}
	// SignatureKindle opens the layout reader devices write.
	SignatureKindle = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x1A, 0xB1, 0x26}
)

// VersionV1 is the only document version understood.
const VersionV1 = 1

// Layout selects the container layout of a document.
type Layout uint8

const (
	// LayoutAuto detects the layout from the signature on decode and
	// encodes as LayoutReference.
	LayoutAuto Layout = iota
	LayoutReference
	LayoutKindle
)

func (l Layout) String() string {
	switch l {
	case LayoutAuto:
		return "auto"
	case LayoutReference:
		return "reference"
	case LayoutKindle:
		return "kindle"
	}
	return fmt.Sprintf("layout(%d)", uint8(l))
}

// ParseLayout is the inverse of Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "auto":
		return LayoutAuto, nil
	case "reference":
		return LayoutReference, nil
	case "kindle":
		return LayoutKindle, nil
	}
	return LayoutAuto, fmt.Errorf("krds: unknown layout %q", s)
}

func (l Layout) signature() []byte {
	if l == LayoutKindle {
		return SignatureKindle
	}
	return SignatureReference
}

// checkSignature matches data against one layout's signature. A buffer that
// ends inside a matching prefix is truncated rather than unrecognized.
func checkSignature(data []byte, l Layout) error {
	sig := l.signature()
	if bytes.HasPrefix(data, sig) {
		return nil
	}
	if len(data) < len(sig) && bytes.HasPrefix(sig, data) {
		return codecerr.New(codecerr.ErrTruncatedInput, len(data), "need %d signature bytes, have %d", len(sig), len(data))
	}
	return codecerr.New(codecerr.ErrUnrecognizedFormat, 0, "no %s signature", l)
}

// detect picks the layout whose signature data starts with.
func detect(data []byte) (Layout, error) {
	for _, l := range []Layout{LayoutKindle, LayoutReference} {
		if bytes.HasPrefix(data, l.signature()) {
			return l, nil
		}
	}
	for _, l := range []Layout{LayoutKindle, LayoutReference} {
		sig := l.signature()
		if len(data) < len(sig) && bytes.HasPrefix(sig, data) {
			return LayoutAuto, codecerr.New(codecerr.ErrTruncatedInput, len(data), "need %d signature bytes, have %d", len(sig), len(data))
		}
	}
	return LayoutAuto, codecerr.New(codecerr.ErrUnrecognizedFormat, 0, "unknown signature % x", firstBytes(data, len(SignatureKindle)))
}

func firstBytes(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

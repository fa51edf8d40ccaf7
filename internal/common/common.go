package common

import (
	"github.com/rawbytedev/krds/pkg/value"
)

// IsFixedKind reports whether values of kind k have a fixed payload width.
func IsFixedKind(k value.Kind) bool {
	return FixedSize(k) > 0
}

// FixedSize returns the payload width of fixed-width kinds in the reference
// layout, or -1 for variable-width kinds.
func FixedSize(k value.Kind) int {
	switch k {
	case value.KindBool, value.KindByte:
		return 1
	case value.KindChar, value.KindShort:
		return 2
	case value.KindInt, value.KindFloat:
		return 4
	case value.KindLong, value.KindDouble, value.KindTimestamp:
		return 8
	default:
		return -1
	}
}

// IsContainer reports whether k nests other values.
func IsContainer(k value.Kind) bool {
	return k == value.KindList || k == value.KindMap || k == value.KindRecord
}

// Prealloc caps a declared element count at what the remaining bytes could
// hold when every element takes at least minWidth bytes.
func Prealloc(count, remaining, minWidth int) int {
	if minWidth < 1 {
		minWidth = 1
	}
	if limit := remaining / minWidth; count > limit {
		return limit
	}
	return count
}

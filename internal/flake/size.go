package flake

import (
	"fmt"

	"github.com/fluree/flurecore/internal/sid"
)

// SizeSID returns the on-disk size of a SID: 4 bytes overhead plus the
// UTF-8 byte length of its name (spec.md §6.3).
func SizeSID(s sid.SID) int {
	return 4 + len(s.Name)
}

// datatype local names recognized for size_o dispatch (spec.md §6.3). The
// comparison is on local name only; callers pass xsd-namespaced SIDs.
const (
	dtAnyURI            = "anyURI"
	dtString             = "string"
	dtNormalizedString   = "normalizedString"
	dtToken              = "token"
	dtLanguage           = "language"
	dtLong               = "long"
	dtDouble             = "double"
	dtInt                = "int"
	dtFloat              = "float"
	dtShort              = "short"
	dtByte               = "byte"
	dtBoolean            = "boolean"
)

// SizeObject returns size_o(o, dt) per spec.md §6.3.
func SizeObject(o Object, dt sid.SID) int {
	switch dt.Name {
	case dtAnyURI:
		return SizeSID(o.SID)
	case dtString, dtNormalizedString, dtToken, dtLanguage:
		return 2 * len(asString(o.Literal))
	case dtLong, dtDouble:
		return 8
	case dtInt, dtFloat:
		return 4
	case dtShort:
		return 2
	case dtByte, dtBoolean:
		return 1
	default:
		return 2 * len(fmt.Sprintf("%v", o.Literal))
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Size returns the total on-disk size of a flake: SID sizes for s, p, dt,
// the datatype-specific object size, 8 bytes for t, 1 byte for op, and the
// metadata size (spec.md §6.3).
func Size(f Flake) int {
	total := SizeSID(f.S) + SizeSID(f.P) + SizeSID(f.DT) + SizeObject(f.O, f.DT)
	total += 8 // t
	total += 1 // op
	total += sizeMeta(f.M)
	return total
}

func sizeMeta(m *Meta) int {
	if m == nil {
		return 0
	}
	n := 0
	if m.ListIndex != nil {
		n += 4
	}
	n += len(m.Lang)
	n += len(m.Reasoned)
	return n
}

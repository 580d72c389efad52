package flake

import (
	"cmp"
	"fmt"

	"github.com/fluree/flurecore/internal/sid"
)

// Index identifies one of the four comparator families of spec.md §3.3.
type Index int

const (
	SPOT Index = iota
	POST
	OPST
	TSPO
)

func (i Index) String() string {
	switch i {
	case SPOT:
		return "spot"
	case POST:
		return "post"
	case OPST:
		return "opst"
	case TSPO:
		return "tspo"
	default:
		return "unknown"
	}
}

// AllIndexes lists every index variant in a stable order.
var AllIndexes = []Index{SPOT, POST, OPST, TSPO}

func cmpSID(a, b sid.SID) int {
	if a.NS != b.NS {
		return cmp.Compare(a.NS, b.NS)
	}
	return cmp.Compare(a.Name, b.Name)
}

// cmpObject is type-aware: identical dt compares naturally; string vs
// string with differing dt compares by string value with dt as tiebreak;
// number vs number compares numerically with dt as tiebreak; otherwise
// falls back to dt ordering (spec.md §3.3).
func cmpObject(ao Object, adt sid.SID, bo Object, bdt sid.SID) int {
	if adt == bdt {
		return cmpSameDtObject(ao, bo)
	}
	as, aIsStr := ao.Literal.(string)
	bs, bIsStr := bo.Literal.(string)
	if !ao.IsSID && !bo.IsSID && aIsStr && bIsStr {
		if c := cmp.Compare(as, bs); c != 0 {
			return c
		}
		return cmpSID(adt, bdt)
	}
	an, aIsNum := asFloat(ao.Literal)
	bn, bIsNum := asFloat(bo.Literal)
	if !ao.IsSID && !bo.IsSID && aIsNum && bIsNum {
		if c := cmp.Compare(an, bn); c != 0 {
			return c
		}
		return cmpSID(adt, bdt)
	}
	return cmpSID(adt, bdt)
}

func cmpSameDtObject(a, b Object) int {
	if a.IsSID || b.IsSID {
		return cmpSID(a.SID, b.SID)
	}
	if as, ok := a.Literal.(string); ok {
		if bs, ok := b.Literal.(string); ok {
			return cmp.Compare(as, bs)
		}
	}
	if an, ok := asFloat(a.Literal); ok {
		if bn, ok := asFloat(b.Literal); ok {
			return cmp.Compare(an, bn)
		}
	}
	if ab, ok := a.Literal.(bool); ok {
		if bb, ok := b.Literal.(bool); ok {
			return cmp.Compare(boolToInt(ab), boolToInt(bb))
		}
	}
	return cmp.Compare(fmt.Sprint(a.Literal), fmt.Sprint(b.Literal))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func cmpMeta(a, b *Meta) int {
	av, bv := metaListIndex(a), metaListIndex(b)
	if av != bv {
		return cmp.Compare(av, bv)
	}
	al, bl := metaLang(a), metaLang(b)
	return cmp.Compare(al, bl)
}

func metaListIndex(m *Meta) int {
	if m == nil || m.ListIndex == nil {
		return -1
	}
	return *m.ListIndex
}

func metaLang(m *Meta) string {
	if m == nil {
		return ""
	}
	return m.Lang
}

// Compare orders two flakes under the given index's comparator.
func Compare(idx Index, a, b Flake) int {
	switch idx {
	case SPOT:
		if c := cmpSID(a.S, b.S); c != 0 {
			return c
		}
		if c := cmpSID(a.P, b.P); c != 0 {
			return c
		}
		if c := cmpObject(a.O, a.DT, b.O, b.DT); c != 0 {
			return c
		}
	case POST:
		if c := cmpSID(a.P, b.P); c != 0 {
			return c
		}
		if c := cmpObject(a.O, a.DT, b.O, b.DT); c != 0 {
			return c
		}
		if c := cmpSID(a.S, b.S); c != 0 {
			return c
		}
	case OPST:
		if c := cmpObject(a.O, a.DT, b.O, b.DT); c != 0 {
			return c
		}
		if c := cmpSID(a.P, b.P); c != 0 {
			return c
		}
		if c := cmpSID(a.S, b.S); c != 0 {
			return c
		}
	case TSPO:
		if c := cmp.Compare(a.T, b.T); c != 0 {
			return c
		}
		if c := cmpSID(a.S, b.S); c != 0 {
			return c
		}
		if c := cmpSID(a.P, b.P); c != 0 {
			return c
		}
		if c := cmpObject(a.O, a.DT, b.O, b.DT); c != 0 {
			return c
		}
	}
	if idx != TSPO {
		if c := cmp.Compare(a.T, b.T); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(boolToInt(a.Op), boolToInt(b.Op)); c != 0 {
		return c
	}
	return cmpMeta(a.M, b.M)
}

// Comparator returns a less-than predicate for idx, suitable for use as
// a sortedset ordering function.
func Comparator(idx Index) func(a, b Flake) bool {
	return func(a, b Flake) bool { return Compare(idx, a, b) < 0 }
}

// BelongsToOPST reports whether a flake is eligible for the OPST index:
// only flakes whose datatype is anyURI (i.e. reference edges) appear
// there (spec.md §3.3).
func BelongsToOPST(f Flake, anyURI sid.SID) bool {
	return f.DT == anyURI
}

package flake

import (
	"testing"

	"github.com/fluree/flurecore/internal/sid"
	"github.com/stretchr/testify/require"
)

func mkSID(ns uint32, name string) sid.SID { return sid.SID{NS: ns, Name: name} }

func TestEqualStatementIgnoresVersioning(t *testing.T) {
	s, p := mkSID(1, "alice"), mkSID(1, "name")
	dt := mkSID(sid.NSXSD, "string")
	a := Create(s, p, LitObject("Alice"), dt, 1, true, nil)
	b := Create(s, p, LitObject("Alice"), dt, 2, false, nil)
	require.True(t, EqualStatement(a, b))
}

func TestFlipInvertsOpAndOptionallyT(t *testing.T) {
	f := Create(mkSID(1, "a"), mkSID(1, "p"), LitObject("x"), mkSID(sid.NSXSD, "string"), 1, true, nil)
	flipped := Flip(f)
	require.False(t, flipped.Op)
	require.Equal(t, int64(1), flipped.T)

	flippedT := Flip(f, 5)
	require.Equal(t, int64(5), flippedT.T)
	require.True(t, f.Op, "original flake must not be mutated")
}

func TestCompareSPOTOrdersBySubjectThenPredicate(t *testing.T) {
	dt := mkSID(sid.NSXSD, "string")
	a := Create(mkSID(1, "a"), mkSID(1, "p1"), LitObject("x"), dt, 1, true, nil)
	b := Create(mkSID(1, "b"), mkSID(1, "p0"), LitObject("x"), dt, 1, true, nil)
	require.Negative(t, Compare(SPOT, a, b))
}

func TestCompareOPSTOrdersByObjectFirst(t *testing.T) {
	anyURI := mkSID(sid.NSXSD, "anyURI")
	a := Create(mkSID(1, "s1"), mkSID(1, "p"), SIDObject(mkSID(1, "o-a")), anyURI, 1, true, nil)
	b := Create(mkSID(1, "s0"), mkSID(1, "p"), SIDObject(mkSID(1, "o-b")), anyURI, 1, true, nil)
	require.Negative(t, Compare(OPST, a, b))
}

func TestSizeAccounting(t *testing.T) {
	dt := mkSID(sid.NSXSD, "long")
	f := Create(mkSID(1, "alice"), mkSID(1, "age"), LitObject(int64(42)), dt, 1, true, nil)
	// s(4+5) + p(4+3) + dt(4+4) + o(8) + t(8) + op(1)
	require.Equal(t, 9+7+8+8+8+1, Size(f))
}

func TestBelongsToOPST(t *testing.T) {
	anyURI := mkSID(sid.NSXSD, "anyURI")
	str := mkSID(sid.NSXSD, "string")
	ref := Create(mkSID(1, "s"), mkSID(1, "p"), SIDObject(mkSID(1, "o")), anyURI, 1, true, nil)
	lit := Create(mkSID(1, "s"), mkSID(1, "p"), LitObject("x"), str, 1, true, nil)
	require.True(t, BelongsToOPST(ref, anyURI))
	require.False(t, BelongsToOPST(lit, anyURI))
}

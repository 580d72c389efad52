package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
)

func testFlake(name string, t int64) flake.Flake {
	s := sid.SID{NS: 10, Name: "alice"}
	p := sid.SID{NS: 10, Name: name}
	o := flake.LitObject(int64(42))
	dt := sid.SID{NS: sid.NSXSD, Name: "long"}
	return flake.Create(s, p, o, dt, t, true, nil)
}

func TestEncodeDecodeLeafRoundTrips(t *testing.T) {
	set := sortedSetOf(flake.SPOT, testFlake("age", 1), testFlake("name", 1))
	l := &Leaf{
		IDValue:    EmptyID,
		Cmp:        flake.SPOT,
		First:      testFlake("age", 1),
		IsLeftmost: true,
		Flakes:     set,
		TValue:     1,
	}
	l.RecomputeSize()

	data, err := EncodeLeaf(l)
	require.NoError(t, err)

	decoded, err := DecodeLeaf("addr-123", data)
	require.NoError(t, err)

	require.Equal(t, "addr-123", decoded.ID())
	require.Equal(t, l.Cmp, decoded.Cmp)
	require.Equal(t, l.IsLeftmost, decoded.IsLeftmost)
	require.Equal(t, l.SizeBytesVal, decoded.SizeBytesVal)
	require.Equal(t, l.Flakes.Len(), decoded.Flakes.Len())
	require.True(t, decoded.Flakes.Has(testFlake("age", 1)))
}

func TestEncodeDecodeLeafPreservesRHS(t *testing.T) {
	set := sortedSetOf(flake.SPOT, testFlake("age", 1))
	rhs := testFlake("zzz", 1)
	l := &Leaf{
		IDValue: EmptyID,
		Cmp:     flake.SPOT,
		First:   testFlake("age", 1),
		RHS:     &rhs,
		Flakes:  set,
	}
	data, err := EncodeLeaf(l)
	require.NoError(t, err)

	decoded, err := DecodeLeaf("addr", data)
	require.NoError(t, err)
	require.NotNil(t, decoded.RHS)
	require.True(t, flake.EqualStatement(*decoded.RHS, rhs))
}

func TestEncodeDecodeBranchRoundTrips(t *testing.T) {
	rhs := testFlake("zzz", 1)
	b := &Branch{
		IDValue:    EmptyID,
		Cmp:        flake.SPOT,
		First:      testFlake("age", 1),
		IsLeftmost: true,
		Children: []ChildRef{
			{ID: "child-a", FirstFlake: testFlake("age", 1), Leftmost: true, SizeBytes: 10, T: 1},
			{ID: "child-b", FirstFlake: testFlake("name", 1), RHSFlake: &rhs, Leftmost: false, SizeBytes: 20, T: 1},
		},
		TValue: 1,
	}
	b.RecomputeSize()

	data, err := EncodeBranch(b)
	require.NoError(t, err)

	decoded, err := DecodeBranch("addr-456", data)
	require.NoError(t, err)

	require.Equal(t, "addr-456", decoded.ID())
	require.Len(t, decoded.Children, 2)
	require.Equal(t, "child-a", decoded.Children[0].ID)
	require.True(t, decoded.Children[0].Leftmost)
	require.False(t, decoded.Children[1].Leftmost)
	require.NotNil(t, decoded.Children[1].RHSFlake)
	require.Equal(t, b.SizeBytesVal, decoded.SizeBytesVal)
	require.True(t, decoded.ValidateLeftmost())
}

func sortedSetOf(idx flake.Index, items ...flake.Flake) *sortedset.Set[flake.Flake] {
	s := newFlakeSet(idx)
	return s.ConjAll(items)
}

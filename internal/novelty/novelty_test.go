package novelty

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
)

func person(name string, t int64) flake.Flake {
	s := sid.SID{NS: 10, Name: name}
	p := sid.SID{NS: 10, Name: "age"}
	o := flake.LitObject(int64(30))
	dt := sid.SID{NS: sid.NSXSD, Name: "long"}
	return flake.Create(s, p, o, dt, t, true, nil)
}

func TestEmptyBufferIsEmpty(t *testing.T) {
	b := Empty()
	require.Equal(t, 0, b.Len())
	require.Equal(t, 0, b.Size())
}

func TestUpdateGrowsEligibleIndexViews(t *testing.T) {
	b := Empty()
	f := person("alice", 1)
	b2 := b.Update(f)

	require.Equal(t, 1, b2.Len())
	require.Greater(t, b2.Size(), 0)
	require.Equal(t, 0, b.Len(), "Update must not mutate the receiver")

	for _, idx := range []flake.Index{flake.SPOT, flake.POST, flake.TSPO} {
		matches := b2.Subrange(idx, sortedset.GTE, f)
		require.Contains(t, matches, f)
	}
	require.Equal(t, 0, b2.ForIndex(flake.OPST).Len(), "literal-valued flakes are not OPST-eligible")
}

func TestUpdateIsAdditiveAcrossCalls(t *testing.T) {
	b := Empty().Update(person("alice", 1)).Update(person("bob", 2))
	require.Equal(t, 2, b.Len())
}

func TestAllReturnsEveryFlake(t *testing.T) {
	b := Empty().Update(person("alice", 1), person("bob", 1))
	require.Len(t, b.All(), 2)
}

func TestEmptyThroughDropsOnlyIndexedFlakes(t *testing.T) {
	b := Empty().Update(person("alice", 1), person("bob", 2), person("carol", 3))
	after := b.EmptyThrough(2)

	require.Equal(t, 1, after.Len())
	require.Equal(t, 3, b.Len(), "EmptyThrough must not mutate the receiver")
	remaining := after.All()
	require.Equal(t, int64(3), remaining[0].T)
}

func TestEmptyThroughAllDropsEverything(t *testing.T) {
	b := Empty().Update(person("alice", 1))
	after := b.EmptyThrough(1)
	require.Equal(t, 0, after.Len())
	require.Equal(t, 0, after.Size())
}

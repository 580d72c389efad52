package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
	"github.com/fluree/flurecore/internal/store/memstore"
)

type fakeNovelty struct {
	flakes []flake.Flake
}

func (n *fakeNovelty) Subrange(idx flake.Index, test sortedset.Test, pivot flake.Flake) []flake.Flake {
	set := newFlakeSet(idx).ConjAll(n.flakes)
	return set.Subrange(test, pivot)
}

func subj(name string, t int64) flake.Flake {
	s := sid.SID{NS: 10, Name: name}
	p := sid.SID{NS: 10, Name: "knows"}
	o := flake.LitObject(int64(1))
	dt := sid.SID{NS: sid.NSXSD, Name: "long"}
	return flake.Create(s, p, o, dt, t, true, nil)
}

func TestResolverResolvesLeafOnly(t *testing.T) {
	items := []flake.Flake{subj("alice", 1), subj("bob", 1), subj("carol", 1)}
	set := newFlakeSet(flake.SPOT).ConjAll(items)
	root := &Leaf{Cmp: flake.SPOT, IsLeftmost: true, Flakes: set}

	r := &Resolver{Conn: memstore.New()}
	out, err := r.Resolve(context.Background(), root, flake.SPOT, sortedset.GTE, subj("alice", 1))
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestResolverMergesNoveltyAdditionsAndRetractions(t *testing.T) {
	items := []flake.Flake{subj("alice", 1)}
	set := newFlakeSet(flake.SPOT).ConjAll(items)
	root := &Leaf{Cmp: flake.SPOT, IsLeftmost: true, Flakes: set}

	retraction := flake.Flip(subj("alice", 1), 2)
	novelty := &fakeNovelty{flakes: []flake.Flake{subj("dave", 2), retraction}}

	r := &Resolver{Conn: memstore.New(), Novelty: novelty}
	out, err := r.Resolve(context.Background(), root, flake.SPOT, sortedset.GTE, subj("alice", 1))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range out {
		names[f.S.Name] = true
	}
	require.False(t, names["alice"], "retracted statement must be excluded")
	require.True(t, names["dave"], "novelty addition must be included")
}

func TestResolverAppliesFilters(t *testing.T) {
	items := []flake.Flake{subj("alice", 1), subj("bob", 1)}
	set := newFlakeSet(flake.SPOT).ConjAll(items)
	root := &Leaf{Cmp: flake.SPOT, IsLeftmost: true, Flakes: set}

	r := &Resolver{Conn: memstore.New()}
	onlyBob := func(f flake.Flake) bool { return f.S.Name == "bob" }
	out, err := r.Resolve(context.Background(), root, flake.SPOT, sortedset.GTE, subj("alice", 1), onlyBob)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "bob", out[0].S.Name)
}

func TestResolverFuelExhaustion(t *testing.T) {
	items := []flake.Flake{subj("alice", 1), subj("bob", 1), subj("carol", 1)}
	set := newFlakeSet(flake.SPOT).ConjAll(items)
	root := &Leaf{Cmp: flake.SPOT, IsLeftmost: true, Flakes: set}

	r := &Resolver{Conn: memstore.New(), Fuel: 1}
	_, err := r.Resolve(context.Background(), root, flake.SPOT, sortedset.GTE, subj("alice", 1))
	require.Error(t, err)
}

func TestResolverWalksBranchViaStore(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()

	leafItems := []flake.Flake{subj("alice", 1), subj("bob", 1)}
	leaf := &Leaf{Cmp: flake.SPOT, IsLeftmost: true, Flakes: newFlakeSet(flake.SPOT).ConjAll(leafItems)}
	leafData, err := EncodeLeaf(leaf)
	require.NoError(t, err)
	wr, err := conn.IndexFileWrite(ctx, "test-ledger", store.KindLeaf, leafData)
	require.NoError(t, err)

	branch := &Branch{
		Cmp:        flake.SPOT,
		IsLeftmost: true,
		Children: []ChildRef{
			{ID: wr.Address, Kind: store.KindLeaf, FirstFlake: subj("alice", 1), Leftmost: true},
		},
	}

	r := &Resolver{Conn: conn}
	out, err := r.Resolve(ctx, branch, flake.SPOT, sortedset.GTE, subj("alice", 1))
	require.NoError(t, err)
	require.Len(t, out, 2)
}

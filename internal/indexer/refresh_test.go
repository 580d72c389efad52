package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/novelty"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/store/memstore"
)

func person(name string, t int64) flake.Flake {
	s := sid.SID{NS: 10, Name: name}
	p := sid.SID{NS: 10, Name: "age"}
	o := flake.LitObject(int64(30))
	dt := sid.SID{NS: sid.NSXSD, Name: "long"}
	return flake.Create(s, p, o, dt, t, true, nil)
}

func TestRefreshBuildsTreeFromEmpty(t *testing.T) {
	r := &Refresher{Conn: memstore.New(), Ledger: "test", Tuning: index.DefaultTuning()}
	nov := novelty.Empty().Update(person("alice", 1), person("bob", 1))

	res, err := r.Refresh(context.Background(), flake.SPOT, nil, nov)
	require.NoError(t, err)
	require.NotEmpty(t, res.Root.ID())
	require.Empty(t, res.Garbage)

	leaf, ok := res.Root.(*index.Leaf)
	require.True(t, ok)
	require.Equal(t, 2, leaf.Flakes.Len())
}

func TestRefreshFoldsSecondNoveltyBatchAndGarbageCollectsPriorRoot(t *testing.T) {
	conn := memstore.New()
	r := &Refresher{Conn: conn, Ledger: "test", Tuning: index.DefaultTuning()}

	nov1 := novelty.Empty().Update(person("alice", 1))
	res1, err := r.Refresh(context.Background(), flake.SPOT, nil, nov1)
	require.NoError(t, err)

	nov2 := novelty.Empty().Update(person("bob", 2))
	res2, err := r.Refresh(context.Background(), flake.SPOT, res1.Root, nov2)
	require.NoError(t, err)

	require.Contains(t, res2.Garbage, res1.Root.ID())
	leaf := res2.Root.(*index.Leaf)
	require.Equal(t, 2, leaf.Flakes.Len())
}

func TestRefreshAppliesRetraction(t *testing.T) {
	conn := memstore.New()
	r := &Refresher{Conn: conn, Ledger: "test", Tuning: index.DefaultTuning()}

	nov1 := novelty.Empty().Update(person("alice", 1))
	res1, err := r.Refresh(context.Background(), flake.SPOT, nil, nov1)
	require.NoError(t, err)

	retraction := flake.Flip(person("alice", 1))
	nov2 := novelty.Empty().Update(retraction)
	res2, err := r.Refresh(context.Background(), flake.SPOT, res1.Root, nov2)
	require.NoError(t, err)

	leaf := res2.Root.(*index.Leaf)
	require.Equal(t, 0, leaf.Flakes.Len())
}

func TestRefreshDispatchesLifecycleEvents(t *testing.T) {
	var seen []EventType
	bus := NewBus()
	bus.Register(funcWatcher{id: "w", fn: func(e Event) { seen = append(seen, e.Type) }})

	r := &Refresher{Conn: memstore.New(), Ledger: "test", Tuning: index.DefaultTuning(), Bus: bus}
	nov := novelty.Empty().Update(person("alice", 1))
	_, err := r.Refresh(context.Background(), flake.SPOT, nil, nov)
	require.NoError(t, err)
	require.Equal(t, []EventType{EventIndexStart, EventIndexEnd}, seen)
}

type funcWatcher struct {
	id string
	fn func(Event)
}

func (f funcWatcher) ID() string { return f.id }
func (f funcWatcher) Notify(_ context.Context, e Event) {
	f.fn(e)
}

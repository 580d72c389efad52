package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/indexer"
	"github.com/fluree/flurecore/internal/store/memstore"
)

func seedSnapshot(t *testing.T) *db.DB {
	t.Helper()
	conn := memstore.New()
	base := db.New(conn, "main")

	asm := &commit.Assembler{Conn: conn}
	out, err := asm.Stage(context.Background(), base, commit.DataDoc{
		T: ptr64(1),
		Assert: []commit.Node{
			{
				"@id":                      "https://example.org/alice",
				"@type":                    "https://example.org/User",
				"https://example.org/name":  "Alice",
				"https://example.org/knows": map[string]any{"@id": "https://example.org/bob"},
			},
			{"@id": "https://example.org/bob", "@type": "https://example.org/User"},
		},
		Namespaces: []string{"https://example.org/"},
	}, "tester", "seed")
	require.NoError(t, err)
	return out
}

func TestCheckIndexParityOnFreshNovelty(t *testing.T) {
	snap := seedSnapshot(t)
	f := checkIndexParity(context.Background(), snap)
	require.True(t, f.OK, f.Detail)
}

func TestCheckSIDRoundTripOnFreshNovelty(t *testing.T) {
	snap := seedSnapshot(t)
	f := checkSIDRoundTrip(context.Background(), snap)
	require.True(t, f.OK, f.Detail)
}

func TestCheckLeafBoundsOnFreshNovelty(t *testing.T) {
	snap := seedSnapshot(t)
	f := checkLeafBounds(context.Background(), snap)
	require.True(t, f.OK, f.Detail)
}

// TestInvariantsSurviveARealIndexRefresh mirrors fdb index's own body
// (building per-family refreshes and re-pointing the root table), then
// re-runs all three doctor checks against the persisted trees rather
// than the novelty overlay alone.
func TestInvariantsSurviveARealIndexRefresh(t *testing.T) {
	ctx := context.Background()
	snap := seedSnapshot(t)

	refresher := &indexer.Refresher{Conn: snap.Conn, Ledger: snap.Ledger, Tuning: index.DefaultTuning()}
	for _, idx := range flake.AllIndexes {
		root, err := snap.ResolveRoot(ctx, idx)
		require.NoError(t, err)
		res, err := refresher.Refresh(ctx, idx, root, snap.Novelty)
		require.NoError(t, err)
		snap.Roots[idx] = index.RefFor(res.Root)
	}
	snap.Novelty = snap.Novelty.EmptyThrough(snap.T)

	require.True(t, checkIndexParity(ctx, snap).OK)
	require.True(t, checkSIDRoundTrip(ctx, snap).OK)
	require.True(t, checkLeafBounds(ctx, snap).OK)
}

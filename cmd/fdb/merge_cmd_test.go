package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/merge"
	"github.com/fluree/flurecore/internal/store/memstore"
)

// TestMergeCommandReplaysForeignChain mirrors runMerge's body against a
// foreign ledger's commit chain, the way internal/merge's own tests seed
// a chain through commit.Assembler.Stage.
func TestMergeCommandReplaysForeignChain(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()
	asm := &commit.Assembler{Conn: conn}

	origin := db.New(conn, "main")
	origin, err := asm.Stage(ctx, origin, commit.DataDoc{
		T:          ptr64(1),
		Assert:     []commit.Node{{"@id": "https://example.org/alice", "https://example.org/name": "Alice"}},
		Namespaces: []string{"https://example.org/"},
	}, "alice", "commit 1")
	require.NoError(t, err)

	local, err := loadSnapshot(ctx, conn, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), local.T)

	m := &merge.Merger{Conn: conn}
	merged, err := m.Merge(ctx, local, origin.CommitAddr)
	require.NoError(t, err)
	require.Equal(t, int64(1), merged.T)
}

func ptr64(v int64) *int64 { return &v }

package merge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/store/memstore"
)

func ptr(t int64) *int64 { return &t }

func personNode(id, name string) commit.Node {
	return commit.Node{"@id": id, "https://example.org/name": name}
}

func TestMergeReplaysForeignChainOntoLocalSnapshot(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()
	asm := &commit.Assembler{Conn: conn}

	origin := db.New(conn, "main")
	origin, err := asm.Stage(ctx, origin, commit.DataDoc{
		T:          ptr(1),
		Assert:     []commit.Node{personNode("https://example.org/alice", "Alice")},
		Namespaces: []string{"https://example.org/"},
	}, "alice", "commit 1")
	require.NoError(t, err)

	origin, err = asm.Stage(ctx, origin, commit.DataDoc{
		T:      ptr(2),
		Assert: []commit.Node{personNode("https://example.org/bob", "Bob")},
	}, "alice", "commit 2")
	require.NoError(t, err)

	origin, err = asm.Stage(ctx, origin, commit.DataDoc{
		T:      ptr(3),
		Assert: []commit.Node{personNode("https://example.org/carol", "Carol")},
	}, "alice", "commit 3")
	require.NoError(t, err)

	local := db.New(conn, "main")
	merger := &Merger{Conn: conn}
	merged, err := merger.Merge(ctx, local, origin.CommitAddr)
	require.NoError(t, err)

	require.Equal(t, int64(3), merged.T)
	require.Equal(t, origin.Novelty.Len(), merged.Novelty.Len())
}

func TestMergeIsNoopWhenAlreadyCurrent(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()
	asm := &commit.Assembler{Conn: conn}

	base := db.New(conn, "main")
	base, err := asm.Stage(ctx, base, commit.DataDoc{
		T:          ptr(1),
		Assert:     []commit.Node{personNode("https://example.org/alice", "Alice")},
		Namespaces: []string{"https://example.org/"},
	}, "alice", "commit 1")
	require.NoError(t, err)

	merger := &Merger{Conn: conn}
	out, err := merger.Merge(ctx, base, base.CommitAddr)
	require.NoError(t, err)
	require.Same(t, base, out)
}

func TestMergeRejectsNonContiguousChain(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()

	dataAddr := writeRaw(t, conn, commit.DataDoc{T: ptr(1), Assert: []commit.Node{personNode("https://example.org/alice", "Alice")}, Namespaces: []string{"https://example.org/"}})
	brokenDoc := commit.Document{Data: commit.DataRef{Address: dataAddr}, V: 1}
	brokenDocBytes, err := json.Marshal(brokenDoc)
	require.NoError(t, err)
	res, err := conn.CWrite(ctx, "main", brokenDocBytes)
	require.NoError(t, err)

	// A second commit claiming t=3 (skipping t=2) chained from the t=1
	// commit above — the contiguity check must catch the gap.
	dataAddr2 := writeRaw(t, conn, commit.DataDoc{T: ptr(3), Assert: []commit.Node{personNode("https://example.org/bob", "Bob")}})
	brokenDoc2 := commit.Document{Data: commit.DataRef{Address: dataAddr2}, Previous: &commit.PrevRef{Address: res.Address}, V: 1}
	brokenDoc2Bytes, err := json.Marshal(brokenDoc2)
	require.NoError(t, err)
	res2, err := conn.CWrite(ctx, "main", brokenDoc2Bytes)
	require.NoError(t, err)

	local := db.New(conn, "main")
	merger := &Merger{Conn: conn}
	_, err = merger.Merge(ctx, local, res2.Address)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.InvalidCommit))
}

func writeRaw(t *testing.T, conn *memstore.Store, d commit.DataDoc) string {
	t.Helper()
	raw, err := commit.MarshalDataDoc(d)
	require.NoError(t, err)
	res, err := conn.CWrite(context.Background(), "main", raw)
	require.NoError(t, err)
	return res.Address
}

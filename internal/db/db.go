// Package db implements the DB value snapshot described in spec.md §3.7:
// an immutable `{t, commit, indexes, novelty, schema, namespaces, policy,
// stats}` tuple, plus the orchestration that ties the index tree, the
// novelty buffer, and the indexer's refresh pipeline together — created
// by load/merge/stage, never mutated, superseded by a newer snapshot.
// This mirrors the teacher's value-object style throughout
// internal/storage: small immutable structs with explicit With*
// constructors rather than in-place mutation.
package db

import (
	"context"
	"encoding/json"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/indexer"
	"github.com/fluree/flurecore/internal/novelty"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
)

// ReindexMinBytes is the default novelty-size refresh trigger (spec.md
// §6.4 reindex_min_bytes).
const ReindexMinBytes = 100_000

// Stats summarizes a snapshot's size, the way the teacher's storage
// layer reports row/byte counts for operator visibility.
type Stats struct {
	FlakeCount int64
	SizeBytes  int64
}

// DB is an immutable snapshot (spec.md §3.7). PolicyCtx is opaque here
// (internal/policy would otherwise import internal/db, and internal/db
// import internal/policy, a cycle) — internal/policy.WrapPolicy returns a
// DB whose PolicyCtx field holds a *policy.Context only internal/policy
// knows how to interpret.
type DB struct {
	Conn   store.Conn
	Ledger string

	T          int64
	CommitAddr string

	Roots      map[flake.Index]index.ChildRef
	Novelty    *novelty.Buffer
	Namespaces *sid.Codec
	Schema     *Schema
	PolicyCtx  any
	Stats      Stats
}

// New returns a brand-new, empty snapshot: t=0, every index empty,
// novelty empty, namespaces seeded with the well-known prefixes.
func New(conn store.Conn, ledger string) *DB {
	roots := make(map[flake.Index]index.ChildRef, len(flake.AllIndexes))
	for _, idx := range flake.AllIndexes {
		roots[idx] = index.ChildRef{ID: index.EmptyID, Kind: store.KindLeaf, Leftmost: true}
	}
	return &DB{
		Conn:       conn,
		Ledger:     ledger,
		Roots:      roots,
		Novelty:    novelty.Empty(),
		Namespaces: sid.New(),
		Schema:     NewSchema(),
	}
}

func (db *DB) clone() *DB {
	roots := make(map[flake.Index]index.ChildRef, len(db.Roots))
	for k, v := range db.Roots {
		roots[k] = v
	}
	out := *db
	out.Roots = roots
	return &out
}

// Root returns the ChildRef for one comparator family's tree root.
func (db *DB) Root(idx flake.Index) index.ChildRef { return db.Roots[idx] }

// ResolveRoot reads and decodes idx's root node from the store.
func (db *DB) ResolveRoot(ctx context.Context, idx flake.Index) (index.Node, error) {
	return index.ResolveChild(ctx, db.Conn, db.Roots[idx])
}

// Resolver builds an index.Resolver reading through this snapshot's
// connection and novelty overlay.
func (db *DB) Resolver(fuel int) *index.Resolver {
	return &index.Resolver{Conn: db.Conn, Ledger: db.Ledger, Novelty: db.Novelty, Fuel: fuel}
}

// Range resolves every flake in idx matching test/pivot, unioned with
// novelty, passing filters (spec.md §4.3.1).
func (db *DB) Range(ctx context.Context, idx flake.Index, test sortedset.Test, pivot flake.Flake, filters ...index.Filter) ([]flake.Flake, error) {
	root, err := db.ResolveRoot(ctx, idx)
	if err != nil {
		return nil, err
	}
	return db.Resolver(0).Resolve(ctx, root, idx, test, pivot, filters...)
}

// MergeFlakes is merge_flakes(db, t', flakes) (spec.md §4.5 step 7):
// assoc t', fold flakes into novelty, hydrate schema. Returns a new
// snapshot; the receiver is untouched.
func (db *DB) MergeFlakes(t int64, flakes []flake.Flake) *DB {
	out := db.clone()
	out.T = t
	out.Novelty = db.Novelty.Update(flakes...)
	out.Schema = db.Schema.WithFlakes(flakes)
	out.Stats = Stats{
		FlakeCount: db.Stats.FlakeCount + int64(len(flakes)),
		SizeBytes:  db.Stats.SizeBytes + sumSize(flakes),
	}
	return out
}

func sumSize(flakes []flake.Flake) int64 {
	var total int64
	for _, f := range flakes {
		total += int64(flake.Size(f))
	}
	return total
}

// WithNamespaces returns a copy of db using ns as its namespace codec.
func (db *DB) WithNamespaces(ns *sid.Codec) *DB {
	out := db.clone()
	out.Namespaces = ns
	return out
}

// WithCommit returns a copy of db recording addr as its latest commit.
func (db *DB) WithCommit(addr string) *DB {
	out := db.clone()
	out.CommitAddr = addr
	return out
}

// WithPolicy returns a copy of db carrying pc as its PolicyCtx, the
// result of internal/policy's wrap_policy (spec.md §4.10). pc is stored
// opaquely to avoid a db<->policy import cycle.
func (db *DB) WithPolicy(pc any) *DB {
	out := db.clone()
	out.PolicyCtx = pc
	return out
}

// RefreshResult reports the outcome of a MaybeRefresh call.
type RefreshResult struct {
	Refreshed bool
	Garbage   []string
}

// MaybeRefresh triggers an indexer refresh across all four comparator
// families when novelty has grown past reindexMinBytes (spec.md §4.3.2,
// "Triggered when novelty.size > reindex_min_bytes"), folding each
// family's novelty into its persistent tree, producing new roots, and
// dropping the now-indexed prefix of novelty via EmptyThrough — the
// partial-drop half of empty_novelty(db, t) that a full indexer run
// (as opposed to a single direct Refresher.Refresh call) requires.
func (db *DB) MaybeRefresh(ctx context.Context, refresher *indexer.Refresher, tuning index.Tuning, reindexMinBytes int) (*DB, RefreshResult, error) {
	if reindexMinBytes < 0 {
		reindexMinBytes = ReindexMinBytes
	}
	if db.Novelty.Size() <= reindexMinBytes {
		return db, RefreshResult{}, nil
	}

	refresher.Tuning = tuning
	newRoots := make(map[flake.Index]index.ChildRef, len(flake.AllIndexes))
	var garbage []string
	for _, idx := range flake.AllIndexes {
		root, err := index.ResolveChild(ctx, db.Conn, db.Roots[idx])
		if err != nil {
			return nil, RefreshResult{}, ferr.Wrap(ferr.IndexingError, err, "resolving root for %s before refresh", idx)
		}
		res, err := refresher.Refresh(ctx, idx, root, db.Novelty)
		if err != nil {
			return nil, RefreshResult{}, err
		}
		newRoots[idx] = index.RefFor(res.Root)
		garbage = append(garbage, res.Garbage...)
	}

	out := db.clone()
	out.Roots = newRoots
	out.Novelty = db.Novelty.EmptyThrough(db.T)
	return out, RefreshResult{Refreshed: true, Garbage: garbage}, nil
}

// CommitMeta is the decoded form of a commit document's own metadata,
// used by Load to reconstruct a snapshot's root table from storage
// without rescanning the whole tree.
type CommitMeta struct {
	T      int64                           `json:"t"`
	Roots  map[flake.Index]index.ChildRef  `json:"roots"`
	Schema *Schema                         `json:"schema,omitempty"`
}

// MarshalCommitMeta serializes db's root table, t, and schema into the
// small sidecar record Load uses to reconstruct a snapshot, avoiding a
// full-tree rescan on every load.
func (db *DB) MarshalCommitMeta() ([]byte, error) {
	return json.Marshal(CommitMeta{T: db.T, Roots: db.Roots, Schema: db.Schema})
}

// Load reconstructs a snapshot from a previously-written commit address,
// restoring index roots and schema directly rather than rescanning the
// tree — cheap, since the commit metadata record is small.
func Load(ctx context.Context, conn store.Conn, ledger, commitAddr string) (*DB, error) {
	data, err := conn.CRead(ctx, commitAddr)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageError, err, "reading commit %s", commitAddr)
	}
	if data == nil {
		return nil, ferr.New(ferr.InvalidCommit, "no commit found at %s", commitAddr)
	}
	var meta CommitMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, ferr.Wrap(ferr.InvalidCommit, err, "decoding commit %s", commitAddr)
	}

	out := New(conn, ledger)
	out.T = meta.T
	out.CommitAddr = commitAddr
	if meta.Roots != nil {
		out.Roots = meta.Roots
	}
	if meta.Schema != nil {
		out.Schema = meta.Schema
	}
	return out, nil
}

// Package merge implements the merge/reify pipeline of spec.md §4.6:
// given a foreign ledger's latest commit, walk its `previous` chain
// backwards to the local snapshot's frontier, validate t-contiguity at
// every hop, and replay each missing commit through the commit
// assembler to converge on a single successor snapshot.
//
// Grounded on no direct teacher analog (beads has no foreign-replica
// replay); built in the same small-struct, explicit-method style as
// internal/commit, reusing its Assembler rather than re-implementing
// commit application.
package merge

import (
	"context"
	"encoding/json"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/store"
)

// Commit is one hop of a traced chain: a commit document's own address
// plus its decoded Document and the DataDoc it references (fetched once
// during tracing so t-contiguity can be validated without a second
// round trip at replay time).
type Commit struct {
	Address string
	Doc     *commit.Document
	Data    commit.DataDoc
}

// Merger replays a foreign commit chain onto a local DB snapshot
// (spec.md §4.6).
type Merger struct {
	Conn store.Conn
}

// Merge traces latest's commit chain back to base.T+1 and replays each
// missing commit oldest-first, returning the converged snapshot. A
// latest commit already at or behind base.T is a no-op.
func (m *Merger) Merge(ctx context.Context, base *db.DB, latest string) (*db.DB, error) {
	_, _, latestData, err := readCommit(ctx, m.Conn, latest)
	if err != nil {
		return nil, err
	}
	if latestData.T == nil {
		return nil, ferr.New(ferr.InvalidCommit, "commit %s carries no t", latest)
	}
	if *latestData.T <= base.T {
		return base, nil
	}

	chain, err := traceCommits(ctx, m.Conn, latest, base.T+1)
	if err != nil {
		return nil, err
	}

	asm := &commit.Assembler{Conn: m.Conn}
	out := base
	for _, c := range chain {
		out, err = asm.Assemble(ctx, out, c.Doc)
		if err != nil {
			return nil, ferr.Wrap(ferr.InvalidCommit, err, "replaying commit %s", c.Address)
		}
	}
	return out, nil
}

// readCommit fetches and decodes a commit document and the data
// document it references, the unit of work one hop of trace_commits
// operates on.
func readCommit(ctx context.Context, conn store.Conn, addr string) (*commit.Document, string, commit.DataDoc, error) {
	raw, err := conn.CRead(ctx, addr)
	if err != nil {
		return nil, "", commit.DataDoc{}, ferr.Wrap(ferr.StorageError, err, "reading commit %s", addr)
	}
	if raw == nil {
		return nil, "", commit.DataDoc{}, ferr.New(ferr.InvalidCommit, "no commit found at %s", addr)
	}
	var doc commit.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", commit.DataDoc{}, ferr.Wrap(ferr.InvalidCommit, err, "decoding commit %s", addr)
	}
	if doc.Data.Address == "" {
		return nil, "", commit.DataDoc{}, ferr.New(ferr.InvalidCommit, "commit %s carries no data address", addr)
	}

	dataRaw, err := conn.CRead(ctx, doc.Data.Address)
	if err != nil {
		return nil, "", commit.DataDoc{}, ferr.Wrap(ferr.StorageError, err, "reading data document for commit %s", addr)
	}
	if dataRaw == nil {
		return nil, "", commit.DataDoc{}, ferr.New(ferr.InvalidCommit, "no data document found at %s", doc.Data.Address)
	}
	var data commit.DataDoc
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return nil, "", commit.DataDoc{}, ferr.Wrap(ferr.InvalidCommit, err, "decoding data document for commit %s", addr)
	}
	return &doc, doc.Data.Address, data, nil
}

// traceCommits implements spec.md §4.6 step 1: walk backwards from
// latest via `previous` links until floor is reached, validating that
// each hop's t is exactly one less than the hop before it. Returns the
// chain oldest-first, ready for sequential replay.
func traceCommits(ctx context.Context, conn store.Conn, latest string, floor int64) ([]Commit, error) {
	var chain []Commit // accumulated newest-first; reversed before return
	addr := latest
	expectT := int64(-1)

	for {
		if addr == "" {
			return nil, ferr.New(ferr.InvalidCommit, "commit chain ended before reaching t=%d", floor)
		}
		doc, _, data, err := readCommit(ctx, conn, addr)
		if err != nil {
			return nil, err
		}
		if data.T == nil {
			return nil, ferr.New(ferr.InvalidCommit, "commit %s carries no t", addr)
		}
		t := *data.T
		if expectT >= 0 && t != expectT {
			return nil, ferr.New(ferr.InvalidCommit, "commit chain non-contiguous: expected t=%d at %s, found t=%d", expectT, addr, t)
		}

		chain = append(chain, Commit{Address: addr, Doc: doc, Data: data})
		if t == floor {
			break
		}
		if t < floor {
			return nil, ferr.New(ferr.InvalidCommit, "commit chain passed floor t=%d without hitting it (found t=%d at %s)", floor, t, addr)
		}
		if doc.Previous == nil {
			return nil, ferr.New(ferr.InvalidCommit, "commit chain ended at t=%d before reaching floor t=%d", t, floor)
		}
		expectT = t - 1
		addr = doc.Previous.Address
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

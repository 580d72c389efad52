// Package novelty implements the per-ledger novelty buffer of spec.md
// §4.4: an in-memory overlay of flakes asserted since the last refresh,
// kept as four sorted sets (one per comparator family) alongside a
// running byte-size total. Indexing folds a novelty buffer into the
// persistent tree and returns a fresh, empty one; nothing here ever
// touches a store.Conn.
package novelty

import (
	"github.com/fluree/flurecore/internal/datatype"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/sortedset"
)

var anyURI = datatype.DatatypeSID(datatype.AnyURI)

var _ index.Novelty = (*Buffer)(nil)

// Buffer holds four index-ordered views of the novelty flakes plus their
// total byte size, satisfying index.Novelty for the range resolver. SPOT,
// POST and TSPO hold every flake; OPST holds only xsd:anyURI-typed ones.
type Buffer struct {
	spot *sortedset.Set[flake.Flake]
	post *sortedset.Set[flake.Flake]
	opst *sortedset.Set[flake.Flake]
	tspo *sortedset.Set[flake.Flake]
	size int
}

// Empty returns a novelty buffer with no flakes, the state every fresh
// ledger (or freshly-indexed ledger) starts from.
func Empty() *Buffer {
	return &Buffer{
		spot: sortedset.New[flake.Flake](flake.Comparator(flake.SPOT)),
		post: sortedset.New[flake.Flake](flake.Comparator(flake.POST)),
		opst: sortedset.New[flake.Flake](flake.Comparator(flake.OPST)),
		tspo: sortedset.New[flake.Flake](flake.Comparator(flake.TSPO)),
	}
}

func (b *Buffer) setFor(idx flake.Index) *sortedset.Set[flake.Flake] {
	switch idx {
	case flake.SPOT:
		return b.spot
	case flake.POST:
		return b.post
	case flake.OPST:
		return b.opst
	default:
		return b.tspo
	}
}

// Size reports the buffer's total byte footprint (spec.md §4.4).
func (b *Buffer) Size() int { return b.size }

// Len reports how many flakes the buffer currently holds (SPOT holds
// every flake; OPST may hold fewer).
func (b *Buffer) Len() int { return b.spot.Len() }

// Update folds new flakes into the index views (OPST only for
// xsd:anyURI-typed flakes). Size only ever grows via Update; it shrinks
// only through Empty() or EmptyThrough after a refresh.
func (b *Buffer) Update(flakes ...flake.Flake) *Buffer {
	if len(flakes) == 0 {
		return b
	}
	var opstEligible []flake.Flake
	for _, f := range flakes {
		if flake.BelongsToOPST(f, anyURI) {
			opstEligible = append(opstEligible, f)
		}
	}
	out := &Buffer{
		spot: b.spot.ConjAll(flakes),
		post: b.post.ConjAll(flakes),
		opst: b.opst.ConjAll(opstEligible),
		tspo: b.tspo.ConjAll(flakes),
		size: b.size,
	}
	for _, f := range flakes {
		out.size += flake.Size(f)
	}
	return out
}

// Subrange returns this buffer's flakes matching test/pivot under idx,
// satisfying the index.Novelty interface.
func (b *Buffer) Subrange(idx flake.Index, test sortedset.Test, pivot flake.Flake) []flake.Flake {
	return b.setFor(idx).Subrange(test, pivot)
}

// All returns every flake currently in the buffer, in SPOT order.
func (b *Buffer) All() []flake.Flake {
	return b.spot.Slice()
}

// ForIndex returns the buffer's sorted set for one comparator family,
// for callers (the indexer) that need direct access during a refresh.
func (b *Buffer) ForIndex(idx flake.Index) *sortedset.Set[flake.Flake] {
	return b.setFor(idx)
}

// EmptyThrough drops every flake with t' <= through, the partial-drop
// variant of empty_novelty(db, t) (spec.md §4.4): once an indexer refresh
// has folded flakes up to and including through into the persistent
// tree, they no longer need to live in novelty, but anything staged
// after the refresh started must survive it.
func (b *Buffer) EmptyThrough(through int64) *Buffer {
	keep := func(f flake.Flake) bool { return f.T > through }
	out := &Buffer{
		spot: filterSet(b.spot, flake.SPOT, keep),
		post: filterSet(b.post, flake.POST, keep),
		opst: filterSet(b.opst, flake.OPST, keep),
		tspo: filterSet(b.tspo, flake.TSPO, keep),
	}
	out.spot.Each(func(f flake.Flake) bool {
		out.size += flake.Size(f)
		return true
	})
	return out
}

func filterSet(s *sortedset.Set[flake.Flake], idx flake.Index, keep func(flake.Flake) bool) *sortedset.Set[flake.Flake] {
	out := sortedset.New[flake.Flake](flake.Comparator(idx))
	var kept []flake.Flake
	s.Each(func(f flake.Flake) bool {
		if keep(f) {
			kept = append(kept, f)
		}
		return true
	})
	return out.ConjAll(kept)
}

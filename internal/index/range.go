package index

import (
	"context"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
)

// Novelty is the subset of a novelty buffer's surface that index_range
// needs: the in-memory overlay of flakes not yet folded into the tree
// (spec.md §4.4). internal/novelty implements this.
type Novelty interface {
	Subrange(idx flake.Index, test sortedset.Test, pivot flake.Flake) []flake.Flake
}

// Filter decides whether a resolved flake should be included in a range
// result; used for both caller-supplied predicates and policy enforcement.
type Filter func(flake.Flake) bool

// Resolver walks a persistent index tree, resolving branches from a
// store.Conn on demand and unioning leaf contents with the live novelty
// overlay (spec.md §4.3.1).
type Resolver struct {
	Conn    store.Conn
	Ledger  string
	Novelty Novelty
	// Fuel caps the number of flakes one Resolve call may return (counted
	// after bounds checks and filters); the next matching flake past the
	// cap fails with FuelExhausted. Zero means unlimited.
	Fuel int
}

// Resolve fetches all flakes in (root, idx) matching test/pivot (or the
// whole tree if pivot is the zero value and test is unset — callers pass
// sortedset.GTE with the tree's minimum bound for a full scan), applying
// filters in order and stopping early once fuel is exhausted.
func (r *Resolver) Resolve(ctx context.Context, root Node, idx flake.Index, test sortedset.Test, pivot flake.Flake, filters ...Filter) ([]flake.Flake, error) {
	budget := r.Fuel
	var out []flake.Flake

	var walk func(n Node) error
	walk = func(n Node) error {
		switch node := n.(type) {
		case *Leaf:
			matches := node.Flakes.Subrange(test, pivot)
			if r.Novelty != nil {
				matches = mergeNovelty(matches, r.Novelty.Subrange(idx, test, pivot), idx)
			}
			for _, f := range matches {
				if !node.InBounds(f) {
					continue
				}
				if !passesAll(f, filters) {
					continue
				}
				if budget > 0 {
					if len(out) >= budget {
						return ferr.New(ferr.FuelExhausted, "index range exhausted fuel budget of %d", r.Fuel)
					}
				}
				out = append(out, f)
			}
			return nil
		case *Branch:
			for _, child := range node.Children {
				resolved, err := r.resolveChild(ctx, child)
				if err != nil {
					return err
				}
				if err := walk(resolved); err != nil {
					return err
				}
			}
			return nil
		default:
			return ferr.New(ferr.IndexingError, "index range: unknown node type")
		}
	}

	if root == nil {
		root = emptyLeaf(idx)
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveChild(ctx context.Context, c ChildRef) (Node, error) {
	if c.Resolved != nil {
		return c.Resolved, nil
	}
	return ResolveChild(ctx, r.Conn, c)
}

// ResolveChild reads and decodes the node a ChildRef points to, dispatching
// on its Kind. Shared by the range resolver and the indexer's refresh
// pipeline so both read a child node the same way.
func ResolveChild(ctx context.Context, conn store.Conn, c ChildRef) (Node, error) {
	if c.ID == EmptyID || c.ID == "" {
		return emptyLeaf(flake.SPOT), nil
	}
	data, err := conn.IndexFileRead(ctx, c.ID)
	if err != nil {
		return nil, ferr.Wrap(ferr.IndexingError, err, "resolving child node %s", c.ID)
	}
	switch c.Kind {
	case store.KindLeaf:
		l, err := DecodeLeaf(c.ID, data)
		if err != nil {
			return nil, ferr.Wrap(ferr.IndexingError, err, "decoding leaf %s", c.ID)
		}
		return l, nil
	case store.KindBranch:
		b, err := DecodeBranch(c.ID, data)
		if err != nil {
			return nil, ferr.Wrap(ferr.IndexingError, err, "decoding branch %s", c.ID)
		}
		return b, nil
	default:
		return nil, ferr.New(ferr.IndexingError, "child %s carries unresolvable kind %v", c.ID, c.Kind)
	}
}

func passesAll(f flake.Flake, filters []Filter) bool {
	for _, fn := range filters {
		if fn != nil && !fn(f) {
			return false
		}
	}
	return true
}

// mergeNovelty unions tree-resolved matches with novelty matches under
// idx's comparator (only identical flakes collapse into one). Novelty
// flakes are applied in comparator order: an assert is added, and a
// retraction (Op=false) removes every flake of the same statement
// collected so far instead of being added — the novelty reconciliation
// rule of spec.md §4.4.
func mergeNovelty(treeMatches, noveltyMatches []flake.Flake, idx flake.Index) []flake.Flake {
	if len(noveltyMatches) == 0 {
		return treeMatches
	}
	set := newFlakeSet(idx).ConjAll(treeMatches)
	for _, nf := range noveltyMatches {
		if !nf.Op {
			set = removeStatement(set, idx, nf)
			continue
		}
		set = set.Conj(nf)
	}
	return set.Slice()
}

func removeStatement(set *sortedset.Set[flake.Flake], idx flake.Index, retraction flake.Flake) *sortedset.Set[flake.Flake] {
	var toRemove []flake.Flake
	set.Each(func(f flake.Flake) bool {
		if flake.EqualStatement(f, retraction) {
			toRemove = append(toRemove, f)
		}
		return true
	})
	return set.DisjAll(toRemove)
}

func emptyLeaf(idx flake.Index) *Leaf {
	return &Leaf{IDValue: EmptyID, Cmp: idx, IsLeftmost: true, Flakes: newFlakeSet(idx)}
}

package indexer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/novelty"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
	"github.com/fluree/flurecore/internal/telemetry"
)

// Refresher folds a novelty buffer into a ledger's persistent index
// trees, one comparator family at a time, writing every touched node
// through a store.Conn and reporting the garbage left behind (spec.md
// §4.3.2 "Indexing" and §4.3.3 "Garbage collection").
type Refresher struct {
	Conn   store.Conn
	Ledger string
	Tuning index.Tuning
	Bus    *Bus
}

// Result is the outcome of refreshing one comparator family's tree.
type Result struct {
	Root    index.Node
	Garbage []string
}

// Refresh folds nov's flakes for idx into root (nil/EmptyID for a brand
// new tree), returning the new root and the addresses of every node the
// refresh made obsolete.
func (r *Refresher) Refresh(ctx context.Context, idx flake.Index, root index.Node, nov *novelty.Buffer) (Result, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "indexer.Refresh", traceAttrs(r.Ledger, idx)...)
	defer span.End()

	if r.Bus != nil {
		r.Bus.Dispatch(ctx, Event{Type: EventIndexStart, Ledger: r.Ledger})
	}

	novFlakes := nov.ForIndex(idx).Slice()
	span.AddEvent("indexer.start", traceEventAttrs(len(novFlakes))...)
	newRoot, garbage, err := r.refreshSubtree(ctx, root, idx, novFlakes)

	if r.Bus != nil {
		ev := Event{Type: EventIndexEnd, Ledger: r.Ledger, Err: err}
		if err == nil {
			ev.NewRootID = newRoot.ID()
			ev.GarbageIDs = garbage
		}
		r.Bus.Dispatch(ctx, ev)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.AddEvent("indexer.end", attribute.Int("garbage_count", len(garbage)))
	if telemetry.Instruments.IndexedFlakes != nil {
		telemetry.Instruments.IndexedFlakes.Add(ctx, int64(len(novFlakes)))
	}
	return Result{Root: newRoot, Garbage: garbage}, nil
}

func traceAttrs(ledger string, idx flake.Index) []trace.SpanStartOption {
	return []trace.SpanStartOption{trace.WithAttributes(
		attribute.String("ledger", ledger),
		attribute.Int("index", int(idx)),
	)}
}

func traceEventAttrs(novCount int) []trace.EventOption {
	return []trace.EventOption{trace.WithAttributes(attribute.Int("novelty_flakes", novCount))}
}

// Close notifies watchers that this refresher is shutting down.
func (r *Refresher) Close(ctx context.Context) {
	if r.Bus != nil {
		r.Bus.Dispatch(ctx, Event{Type: EventClose, Ledger: r.Ledger})
	}
}

func (r *Refresher) refreshSubtree(ctx context.Context, node index.Node, idx flake.Index, novFlakes []flake.Flake) (index.Node, []string, error) {
	if len(novFlakes) == 0 {
		if node == nil {
			return emptyRoot(idx), nil, nil
		}
		return node, nil, nil
	}
	switch n := node.(type) {
	case nil:
		return r.buildFromEmpty(ctx, idx, novFlakes)
	case *index.Leaf:
		return r.refreshLeaf(ctx, n, novFlakes)
	case *index.Branch:
		return r.refreshBranch(ctx, n, idx, novFlakes)
	default:
		return nil, nil, ferr.New(ferr.IndexingError, "indexer: unknown node type for %s", r.Ledger)
	}
}

func emptyRoot(idx flake.Index) index.Node {
	return &index.Leaf{IDValue: index.EmptyID, Cmp: idx, IsLeftmost: true, Flakes: newSet(idx)}
}

func newSet(idx flake.Index) *sortedset.Set[flake.Flake] {
	return sortedset.New[flake.Flake](flake.Comparator(idx))
}

func (r *Refresher) buildFromEmpty(ctx context.Context, idx flake.Index, novFlakes []flake.Flake) (index.Node, []string, error) {
	set := newSet(idx)
	var asserts []flake.Flake
	for _, f := range novFlakes {
		if f.Op {
			asserts = append(asserts, f)
		}
	}
	set = set.ConjAll(asserts)
	leaf := &index.Leaf{IDValue: index.EmptyID, Cmp: idx, IsLeftmost: true, Flakes: set}
	if leaf.Flakes.Len() > 0 {
		leaf.First = leaf.Flakes.Slice()[0]
	}
	return r.finishLeaf(ctx, leaf)
}

func (r *Refresher) refreshLeaf(ctx context.Context, leaf *index.Leaf, novFlakes []flake.Flake) (index.Node, []string, error) {
	oldID := leaf.ID()
	cp := *leaf
	leaf = &cp
	set := leaf.Flakes
	for _, f := range novFlakes {
		if f.Op {
			set = set.Conj(f)
		} else {
			set = removeStatement(set, f)
		}
	}
	leaf.Flakes = set
	if leaf.Flakes.Len() > 0 && !leaf.IsLeftmost {
		leaf.First = leaf.Flakes.Slice()[0]
	}
	node, garbage, err := r.finishLeaf(ctx, leaf)
	if err != nil {
		return nil, nil, err
	}
	if oldID != "" && oldID != index.EmptyID {
		garbage = append(garbage, oldID)
	}
	return node, garbage, nil
}

// finishLeaf rebalances and writes a leaf (possibly splitting it into a
// branch of leaves), returning the node ready to be referenced by a
// parent — or to be the tree's new root.
func (r *Refresher) finishLeaf(ctx context.Context, leaf *index.Leaf) (index.Node, []string, error) {
	leaf.RecomputeSize()
	pieces := index.RebalanceLeaf(leaf, r.Tuning)
	if len(pieces) == 1 {
		written, err := r.writeLeaf(ctx, pieces[0])
		if err != nil {
			return nil, nil, err
		}
		return written, nil, nil
	}

	branch := &index.Branch{Cmp: leaf.Cmp, IsLeftmost: leaf.IsLeftmost, TValue: leaf.TValue}
	for _, p := range pieces {
		written, err := r.writeLeaf(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		branch.Children = append(branch.Children, childRefFor(written, store.KindLeaf))
	}
	branch.RecomputeSize()
	wb, err := r.writeBranch(ctx, branch)
	if err != nil {
		return nil, nil, err
	}
	return wb, nil, nil
}

func (r *Refresher) refreshBranch(ctx context.Context, branch *index.Branch, idx flake.Index, novFlakes []flake.Flake) (index.Node, []string, error) {
	oldID := branch.ID()
	children := branch.Children

	type childOutcome struct {
		ref     index.ChildRef
		garbage []string
	}
	outcomes := make([]childOutcome, len(children))

	g, gctx := errgroup.WithContext(ctx)
	for i := range children {
		i := i
		c := children[i]
		lo, hi := childBound(children, i)
		assigned := filterNovelty(novFlakes, idx, lo, hi)
		if len(assigned) == 0 {
			outcomes[i] = childOutcome{ref: c}
			continue
		}
		g.Go(func() error {
			childNode, err := index.ResolveChild(gctx, r.Conn, c)
			if err != nil {
				return err
			}
			newNode, childGarbage, err := r.refreshSubtree(gctx, childNode, idx, assigned)
			if err != nil {
				return err
			}
			ref := childRefFor(newNode, kindOf(newNode))
			ref.Leftmost = c.Leftmost
			if c.ID != "" && c.ID != index.EmptyID && c.ID != ref.ID {
				childGarbage = append(childGarbage, c.ID)
			}
			outcomes[i] = childOutcome{ref: ref, garbage: childGarbage}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var garbage []string
	newChildren := make([]index.ChildRef, len(outcomes))
	for i, o := range outcomes {
		newChildren[i] = o.ref
		garbage = append(garbage, o.garbage...)
	}
	branch.Children = newChildren
	branch.RecomputeSize()

	pieces := index.RebalanceChildren(branch, r.Tuning)
	if oldID != "" && oldID != index.EmptyID {
		garbage = append(garbage, oldID)
	}

	if len(pieces) == 1 {
		written, err := r.writeBranch(ctx, pieces[0])
		if err != nil {
			return nil, nil, err
		}
		return written, garbage, nil
	}

	parent := &index.Branch{Cmp: branch.Cmp, IsLeftmost: branch.IsLeftmost}
	for _, p := range pieces {
		written, err := r.writeBranch(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		parent.Children = append(parent.Children, childRefFor(written, store.KindBranch))
	}
	parent.RecomputeSize()
	wp, err := r.writeBranch(ctx, parent)
	if err != nil {
		return nil, nil, err
	}
	return wp, garbage, nil
}

func (r *Refresher) writeLeaf(ctx context.Context, l *index.Leaf) (*index.Leaf, error) {
	data, err := index.EncodeLeaf(l)
	if err != nil {
		return nil, ferr.Wrap(ferr.IndexingError, err, "encoding leaf")
	}
	wr, err := r.Conn.IndexFileWrite(ctx, r.Ledger, store.KindLeaf, data)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageError, err, "writing leaf")
	}
	l.IDValue = wr.Address
	return l, nil
}

func (r *Refresher) writeBranch(ctx context.Context, b *index.Branch) (*index.Branch, error) {
	data, err := index.EncodeBranch(b)
	if err != nil {
		return nil, ferr.Wrap(ferr.IndexingError, err, "encoding branch")
	}
	wr, err := r.Conn.IndexFileWrite(ctx, r.Ledger, store.KindBranch, data)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageError, err, "writing branch")
	}
	b.IDValue = wr.Address
	return b, nil
}

func kindOf(n index.Node) store.Kind {
	if _, ok := n.(*index.Branch); ok {
		return store.KindBranch
	}
	return store.KindLeaf
}

func childRefFor(n index.Node, kind store.Kind) index.ChildRef {
	return index.ChildRef{
		ID:         n.ID(),
		Kind:       kind,
		FirstFlake: n.FirstFlake(),
		RHSFlake:   n.RHSFlake(),
		Leftmost:   n.Leftmost(),
		SizeBytes:  n.SizeBytes(),
		T:          n.T(),
		Resolved:   n,
	}
}

// childBound derives the inclusive [lo, hi] novelty bound a branch's i'th child is
// responsible for: unbounded below for the leftmost child, bounded above
// by the child's own RHS or, failing that, by the next child's FirstFlake.
func childBound(children []index.ChildRef, i int) (lo, hi *flake.Flake) {
	c := children[i]
	if !c.Leftmost {
		f := c.FirstFlake
		lo = &f
	}
	if c.RHSFlake != nil {
		hi = c.RHSFlake
	} else if i+1 < len(children) {
		f := children[i+1].FirstFlake
		hi = &f
	}
	return lo, hi
}

func filterNovelty(novFlakes []flake.Flake, idx flake.Index, lo, hi *flake.Flake) []flake.Flake {
	var out []flake.Flake
	for _, f := range novFlakes {
		if lo != nil && flake.Compare(idx, f, *lo) < 0 {
			continue
		}
		if hi != nil && flake.Compare(idx, f, *hi) > 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

func removeStatement(set *sortedset.Set[flake.Flake], retraction flake.Flake) *sortedset.Set[flake.Flake] {
	var toRemove []flake.Flake
	set.Each(func(f flake.Flake) bool {
		if flake.EqualStatement(f, retraction) {
			toRemove = append(toRemove, f)
		}
		return true
	})
	return set.DisjAll(toRemove)
}

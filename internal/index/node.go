// Package index implements the persistent B-tree described in spec.md
// §3.4/§4.3: one tree per comparator (SPOT/POST/OPST/TSPO), with leaves
// holding sorted flake sets and branches routing by comparator. Nodes are
// content-addressed once written; an empty tree is the sentinel EmptyID.
package index

import (
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
)

// EmptyID is the sentinel address of an empty tree, before any node has
// ever been written for it.
const EmptyID = ":empty"

// ChildRef is a branch's pointer to one child node: either a resolved
// content address or a still-in-memory placeholder awaiting a write.
type ChildRef struct {
	ID         string
	Kind       store.Kind
	FirstFlake flake.Flake
	RHSFlake   *flake.Flake
	Leftmost   bool
	SizeBytes  int
	T          int64
	// Resolved caches a loaded child so repeated resolution within one
	// refresh pass doesn't re-hit the store; nil until Resolve populates it.
	Resolved Node `json:"-"`
}

// Node is implemented by Leaf and Branch.
type Node interface {
	node()
	Comparator() flake.Index
	FirstFlake() flake.Flake
	RHSFlake() *flake.Flake
	Leftmost() bool
	SizeBytes() int
	T() int64
	ID() string
}

// Leaf holds a sorted set of flakes bounded by [first, rhs].
type Leaf struct {
	IDValue       string
	Cmp           flake.Index
	First         flake.Flake
	RHS           *flake.Flake
	IsLeftmost    bool
	Flakes        *sortedset.Set[flake.Flake]
	TValue        int64
	SizeBytesVal  int
}

func (*Leaf) node() {}

func (l *Leaf) Comparator() flake.Index    { return l.Cmp }
func (l *Leaf) FirstFlake() flake.Flake    { return l.First }
func (l *Leaf) RHSFlake() *flake.Flake     { return l.RHS }
func (l *Leaf) Leftmost() bool             { return l.IsLeftmost }
func (l *Leaf) SizeBytes() int             { return l.SizeBytesVal }
func (l *Leaf) T() int64                   { return l.TValue }
func (l *Leaf) ID() string                 { return l.IDValue }

// RecomputeSize sums size_flake over the leaf's contents, enforcing
// invariant #6 of spec.md §8.
func (l *Leaf) RecomputeSize() {
	total := 0
	l.Flakes.Each(func(f flake.Flake) bool {
		total += flake.Size(f)
		return true
	})
	l.SizeBytesVal = total
}

// Branch routes to children by comparator-ordered first-flake.
type Branch struct {
	IDValue      string
	Cmp          flake.Index
	First        flake.Flake
	RHS          *flake.Flake
	IsLeftmost   bool
	Children     []ChildRef // sorted ascending by FirstFlake under Cmp
	TValue       int64
	SizeBytesVal int
}

func (*Branch) node() {}

func (b *Branch) Comparator() flake.Index { return b.Cmp }
func (b *Branch) FirstFlake() flake.Flake { return b.First }
func (b *Branch) RHSFlake() *flake.Flake  { return b.RHS }
func (b *Branch) Leftmost() bool          { return b.IsLeftmost }
func (b *Branch) SizeBytes() int          { return b.SizeBytesVal }
func (b *Branch) T() int64                { return b.TValue }
func (b *Branch) ID() string              { return b.IDValue }

// RecomputeSize sums SizeBytes over children.
func (b *Branch) RecomputeSize() {
	total := 0
	for _, c := range b.Children {
		total += c.SizeBytes
	}
	b.SizeBytesVal = total
}

// RefFor builds the ChildRef a parent (or a db snapshot's root table)
// would hold for n, deriving Kind from n's concrete type. A nil node is
// treated as the empty tree.
func RefFor(n Node) ChildRef {
	if n == nil {
		return ChildRef{ID: EmptyID, Kind: store.KindLeaf, Leftmost: true}
	}
	kind := store.KindLeaf
	if _, ok := n.(*Branch); ok {
		kind = store.KindBranch
	}
	return ChildRef{
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

// ValidateLeftmost enforces "exactly one leftmost child per branch"
// (spec.md §3.4 invariant).
func (b *Branch) ValidateLeftmost() bool {
	count := 0
	for _, c := range b.Children {
		if c.Leftmost {
			count++
		}
	}
	return count == 1 || len(b.Children) == 0
}

// InBounds reports whether f satisfies the leaf's [first, rhs] bound
// under its comparator — invariant #6 of spec.md §8. Leftmost leaves
// have no lower bound; non-leftmost leaves require f >= First. A leaf
// with no RHS has no upper bound; otherwise f <= RHS is required.
func (l *Leaf) InBounds(f flake.Flake) bool {
	if !l.IsLeftmost && flake.Compare(l.Cmp, f, l.First) < 0 {
		return false
	}
	if l.RHS != nil && flake.Compare(l.Cmp, f, *l.RHS) > 0 {
		return false
	}
	return true
}

package index

import (
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sortedset"
)

func newFlakeSet(cmp flake.Index) *sortedset.Set[flake.Flake] {
	return sortedset.New[flake.Flake](flake.Comparator(cmp))
}

// Tuning mirrors spec.md §6.4's default tuning knobs. Zero fields fall
// back to the documented defaults via withDefaults.
type Tuning struct {
	OverflowBytes    int
	UnderflowBytes   int
	OverflowChildren int
}

// DefaultTuning returns spec.md §6.4's defaults.
func DefaultTuning() Tuning {
	return Tuning{OverflowBytes: 500_000, UnderflowBytes: 50_000, OverflowChildren: 500}
}

func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if t.OverflowBytes <= 0 {
		t.OverflowBytes = d.OverflowBytes
	}
	if t.UnderflowBytes <= 0 {
		t.UnderflowBytes = d.UnderflowBytes
	}
	if t.OverflowChildren <= 0 {
		t.OverflowChildren = d.OverflowChildren
	}
	return t
}

// RebalanceLeaf splits a leaf when it exceeds overflow_bytes, walking
// flakes in comparator order and cutting whenever the next flake would
// exceed overflow_bytes/2 (spec.md §4.3.2 step 3). Each split piece
// inherits leftmost? only on the first piece; the rhs_flake of the last
// piece equals the original leaf's rhs_flake. A leaf within bounds is
// returned unchanged as a single-element slice.
func RebalanceLeaf(l *Leaf, tuning Tuning) []*Leaf {
	tuning = tuning.withDefaults()
	l.RecomputeSize()
	if l.SizeBytesVal <= tuning.OverflowBytes {
		return []*Leaf{l}
	}

	all := l.Flakes.Slice()
	if len(all) <= 1 {
		return []*Leaf{l}
	}

	half := tuning.OverflowBytes / 2
	var pieces []*Leaf
	var cur []flake.Flake
	curBytes := 0
	for _, f := range all {
		fsz := flake.Size(f)
		if curBytes > 0 && curBytes+fsz > half {
			pieces = append(pieces, buildLeafPiece(l, cur, len(pieces) == 0))
			cur = nil
			curBytes = 0
		}
		cur = append(cur, f)
		curBytes += fsz
	}
	if len(cur) > 0 {
		pieces = append(pieces, buildLeafPiece(l, cur, len(pieces) == 0))
	}

	// Fix up first/rhs boundaries across the split sequence and assign
	// leftmost only to the very first piece.
	for i, p := range pieces {
		if i > 0 {
			p.IsLeftmost = false
			p.First = pieces[i-1].RHS_orFirst()
		}
		if i < len(pieces)-1 {
			last := p.Flakes.Slice()
			rhs := last[len(last)-1]
			p.RHS = &rhs
		} else {
			p.RHS = l.RHS
		}
		p.RecomputeSize()
	}
	return pieces
}

// RHS_orFirst returns the leaf's rhs flake if set, else its first flake;
// used to derive the next piece's lower bound during a split.
func (l *Leaf) RHS_orFirst() flake.Flake {
	if l.RHS != nil {
		return *l.RHS
	}
	return l.First
}

func buildLeafPiece(orig *Leaf, items []flake.Flake, isFirst bool) *Leaf {
	set := newFlakeSet(orig.Cmp).ConjAll(items)
	first := items[0]
	return &Leaf{
		IDValue:    EmptyID,
		Cmp:        orig.Cmp,
		First:      first,
		IsLeftmost: isFirst && orig.IsLeftmost,
		Flakes:     set,
		TValue:     orig.TValue,
	}
}

// RebalanceChildren groups a branch's children into chunks of
// overflow_children/2 once the branch exceeds overflow_children, emitting
// one branch per chunk and re-marking the leftmost child of the whole
// sequence (spec.md §4.3.2 step 2).
func RebalanceChildren(b *Branch, tuning Tuning) []*Branch {
	tuning = tuning.withDefaults()
	if len(b.Children) <= tuning.OverflowChildren {
		return []*Branch{b}
	}

	chunkSize := tuning.OverflowChildren / 2
	if chunkSize < 1 {
		chunkSize = 1
	}
	var out []*Branch
	for start := 0; start < len(b.Children); start += chunkSize {
		end := start + chunkSize
		if end > len(b.Children) {
			end = len(b.Children)
		}
		chunk := append([]ChildRef(nil), b.Children[start:end]...)
		nb := &Branch{
			IDValue:    EmptyID,
			Cmp:        b.Cmp,
			First:      chunk[0].FirstFlake,
			IsLeftmost: false,
			Children:   chunk,
			TValue:     b.TValue,
		}
		nb.RecomputeSize()
		out = append(out, nb)
	}
	// Re-mark: only the very first branch of the re-chunked sequence is
	// leftmost, and only if the original branch was.
	for i, nb := range out {
		nb.IsLeftmost = i == 0 && b.IsLeftmost
		if i < len(out)-1 {
			last := nb.Children[len(nb.Children)-1]
			rhs := last.FirstFlake
			if last.RHSFlake != nil {
				rhs = *last.RHSFlake
			}
			nb.RHS = &rhs
		} else {
			nb.RHS = b.RHS
		}
	}
	return out
}

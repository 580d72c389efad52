// Package sortedset provides the ordered flake container used by every
// index leaf, branch, and novelty set (spec.md §3.4/§3.5/§4.2). It wraps
// google/btree's generic BTreeG the way the teacher's storage layer wraps
// a SQL engine behind a narrow interface: callers get subrange, split, and
// nearest-match operations without knowing the backing tree's internals.
package sortedset

import (
	"github.com/google/btree"
)

// Test identifies the inequality used when resolving a subrange boundary,
// matching spec.md §4.2's `subrange(test, flake)` contract.
type Test int

const (
	GTE Test = iota
	GT
	LTE
	LT
)

// Set is an immutable-feeling, persistent ordered set of T under a given
// Less function. Mutating operations (Conj/Disj) return a new Set sharing
// structure with the receiver, via btree's copy-on-write Clone.
type Set[T any] struct {
	tree *btree.BTreeG[T]
	less func(a, b T) bool
}

// New creates an empty Set ordered by less.
func New[T any](less func(a, b T) bool) *Set[T] {
	return &Set[T]{tree: btree.NewG[T](32, less), less: less}
}

// Len reports the number of elements.
func (s *Set[T]) Len() int { return s.tree.Len() }

// Conj returns a new set with item added (or replacing an equal item).
func (s *Set[T]) Conj(item T) *Set[T] {
	clone := s.tree.Clone()
	clone.ReplaceOrInsert(item)
	return &Set[T]{tree: clone, less: s.less}
}

// ConjAll adds many items at once, as a single transient batch — mirrors
// spec.md §4.2's "batched conj_all via transient variants for indexer
// performance": one clone instead of one per item.
func (s *Set[T]) ConjAll(items []T) *Set[T] {
	clone := s.tree.Clone()
	for _, it := range items {
		clone.ReplaceOrInsert(it)
	}
	return &Set[T]{tree: clone, less: s.less}
}

// Disj returns a new set with item removed, if present.
func (s *Set[T]) Disj(item T) *Set[T] {
	clone := s.tree.Clone()
	clone.Delete(item)
	return &Set[T]{tree: clone, less: s.less}
}

// DisjAll removes many items as a single transient batch.
func (s *Set[T]) DisjAll(items []T) *Set[T] {
	clone := s.tree.Clone()
	for _, it := range items {
		clone.Delete(it)
	}
	return &Set[T]{tree: clone, less: s.less}
}

// Has reports whether an equal item is present.
func (s *Set[T]) Has(item T) bool {
	_, ok := s.tree.Get(item)
	return ok
}

// Each calls fn for every item in ascending order; fn returning false
// stops iteration early.
func (s *Set[T]) Each(fn func(T) bool) {
	s.tree.Ascend(fn)
}

// Slice materializes the set in ascending order.
func (s *Set[T]) Slice() []T {
	out := make([]T, 0, s.tree.Len())
	s.tree.Ascend(func(item T) bool {
		out = append(out, item)
		return true
	})
	return out
}

// Nearest returns the closest item satisfying test relative to pivot, or
// the zero value and false if none exists (spec.md §4.2 `nearest`).
func (s *Set[T]) Nearest(test Test, pivot T) (T, bool) {
	var zero T
	var found T
	ok := false
	switch test {
	case GTE:
		s.tree.AscendGreaterOrEqual(pivot, func(item T) bool {
			found, ok = item, true
			return false
		})
	case GT:
		s.tree.AscendGreaterOrEqual(pivot, func(item T) bool {
			if s.less(pivot, item) {
				found, ok = item, true
				return false
			}
			return true
		})
	case LTE:
		s.tree.DescendLessOrEqual(pivot, func(item T) bool {
			found, ok = item, true
			return false
		})
	case LT:
		s.tree.DescendLessOrEqual(pivot, func(item T) bool {
			if s.less(item, pivot) {
				found, ok = item, true
				return false
			}
			return true
		})
	}
	if !ok {
		return zero, false
	}
	return found, true
}

// Subrange returns the items satisfying test relative to pivot (spec.md
// §4.2 `subrange(test, flake)`).
func (s *Set[T]) Subrange(test Test, pivot T) []T {
	var out []T
	switch test {
	case GTE:
		s.tree.AscendGreaterOrEqual(pivot, func(item T) bool { out = append(out, item); return true })
	case GT:
		s.tree.AscendGreaterOrEqual(pivot, func(item T) bool {
			if s.less(pivot, item) {
				out = append(out, item)
			}
			return true
		})
	case LTE:
		s.tree.DescendLessOrEqual(pivot, func(item T) bool { out = append(out, item); return true })
		reverse(out)
	case LT:
		s.tree.DescendLessOrEqual(pivot, func(item T) bool {
			if s.less(item, pivot) {
				out = append(out, item)
			}
			return true
		})
		reverse(out)
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// SubrangeBounds returns the items in [lo, hi] inclusive, ordered
// ascending (spec.md §4.2 `subrange(lo, hi)`).
func (s *Set[T]) SubrangeBounds(lo, hi T) []T {
	var out []T
	s.tree.AscendRange(lo, hi, func(item T) bool { out = append(out, item); return true })
	if len(out) == 0 || s.less(out[len(out)-1], hi) {
		// AscendRange's hi bound is exclusive; append hi itself if present
		// and equal (neither less than the other).
		if v, ok := s.tree.Get(hi); ok {
			out = append(out, v)
		}
	}
	return out
}

// SplitKey partitions the set relative to key into (lower, equal?,
// upper), per spec.md §4.2 `split_key`.
func (s *Set[T]) SplitKey(key T) (lower *Set[T], equal *T, upper *Set[T]) {
	var lowerItems, upperItems []T
	var eq *T
	s.tree.Ascend(func(item T) bool {
		switch {
		case s.less(item, key):
			lowerItems = append(lowerItems, item)
		case s.less(key, item):
			upperItems = append(upperItems, item)
		default:
			v := item
			eq = &v
		}
		return true
	})
	lower = New[T](s.less).ConjAll(lowerItems)
	upper = New[T](s.less).ConjAll(upperItems)
	return lower, eq, upper
}

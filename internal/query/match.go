package query

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/telemetry"
)

var rdfType = sid.SID{NS: sid.NSRDF, Name: "type"}

// Matcher resolves a Clause against a DB snapshot, per spec.md §4.7.2.
type Matcher struct {
	DB *db.DB

	// Fuel bounds the number of flakes this matcher may visit across an
	// entire Search call; zero means unbounded.
	Fuel int64

	fuel atomic.Int64
}

// Search runs the full where-clause reduction of spec.md §4.7.2: start
// from values (or a single blank solution if values is empty) and fold
// each pattern over the running solution set in order.
func (m *Matcher) Search(ctx context.Context, where Clause, values []Solution) ([]Solution, error) {
	m.fuel.Store(m.Fuel)
	sols := values
	if len(sols) == 0 {
		sols = []Solution{{}}
	}
	return m.runClause(ctx, where, sols)
}

func (m *Matcher) runClause(ctx context.Context, clause Clause, sols []Solution) ([]Solution, error) {
	for _, pat := range clause {
		next, err := m.matchPattern(ctx, pat, sols)
		if err != nil {
			return nil, err
		}
		sols = next
	}
	return sols, nil
}

func (m *Matcher) matchPattern(ctx context.Context, pat Pattern, sols []Solution) ([]Solution, error) {
	switch pat.Kind {
	case KindTuple:
		return m.matchFanOut(ctx, sols, func(sol Solution) ([]Solution, error) {
			return m.matchTuple(ctx, pat.S, pat.P, pat.O, sol)
		})
	case KindClass:
		return m.matchFanOut(ctx, sols, func(sol Solution) ([]Solution, error) {
			return m.matchClass(ctx, pat.S, pat.Class, sol)
		})
	case KindGraph:
		// Only a single implicit alias (the matcher's own DB) is
		// supported, so :graph is transparent: its inner clause runs
		// against the same solutions as any other pattern.
		return m.runClause(ctx, pat.GraphClause, sols)
	case KindOptional:
		return m.matchFanOut(ctx, sols, func(sol Solution) ([]Solution, error) {
			out, err := m.runClause(ctx, pat.Inner, []Solution{sol})
			if err != nil {
				return nil, err
			}
			if len(out) == 0 {
				return []Solution{sol}, nil
			}
			return out, nil
		})
	case KindUnion:
		return m.matchFanOut(ctx, sols, func(sol Solution) ([]Solution, error) {
			return m.matchUnion(ctx, pat.Branches, sol)
		})
	case KindBind:
		return m.matchFanOut(ctx, sols, func(sol Solution) ([]Solution, error) {
			match, err := pat.BindFn(sol)
			if err != nil {
				return nil, err
			}
			out := sol.Clone()
			out[pat.BindVar] = match
			return []Solution{out}, nil
		})
	case KindFilter:
		return m.matchFanOut(ctx, sols, func(sol Solution) ([]Solution, error) {
			ok, err := pat.FilterFn(sol)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return []Solution{sol}, nil
		})
	default:
		return nil, ferr.New(ferr.InvalidConfig, "unknown pattern kind %q", pat.Kind)
	}
}

// matchFanOut runs fn over every input solution concurrently (an
// errgroup all-or-nothing fan-out with one goroutine per solution, per spec.md §4.7.3's "a
// single error closes downstream channels"), then flattens the results
// back in input order to preserve the across-patterns ordering
// guarantee of spec.md §4.7.2.
func (m *Matcher) matchFanOut(ctx context.Context, sols []Solution, fn func(Solution) ([]Solution, error)) ([]Solution, error) {
	results := make([][]Solution, len(sols))
	g, gctx := errgroup.WithContext(ctx)
	for i, sol := range sols {
		i, sol := i, sol
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			out, err := fn(sol)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Solution
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// matchUnion runs each branch clause against sol using an
// error-aggregating pool with no goroutine limit, concatenating in
// declaration order.
func (m *Matcher) matchUnion(ctx context.Context, branches []Clause, sol Solution) ([]Solution, error) {
	results := make([][]Solution, len(branches))
	p := pool.New().WithErrors()
	for i, branch := range branches {
		i, branch := i, branch
		p.Go(func() error {
			out, err := m.runClause(ctx, branch, []Solution{sol})
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	var out []Solution
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// matchTuple implements spec.md §4.7.2's :tuple dispatch: substitute
// bound variables, pick the comparator family matching whichever of
// S/P/O is bound, and emit one output solution per matching flake.
func (m *Matcher) matchTuple(ctx context.Context, sTerm, pTerm, oTerm Term, sol Solution) ([]Solution, error) {
	s, sBound := resolve(sTerm, sol)
	p, pBound := resolve(pTerm, sol)
	o, oBound := resolve(oTerm, sol)

	idx, pivot := chooseIndex(s, sBound, p, pBound, o, oBound)
	filter := tupleFilter(s, sBound, p, pBound, o, oBound)

	flakes, err := m.rangeWithFuel(ctx, idx, pivot, filter)
	if err != nil {
		return nil, err
	}

	out := make([]Solution, 0, len(flakes))
	for _, f := range flakes {
		next := sol.Clone()
		if sTerm.IsVar && !sBound {
			next[sTerm.Var] = Match{IsSID: true, SID: f.S}
		}
		if pTerm.IsVar && !pBound {
			next[pTerm.Var] = Match{IsSID: true, SID: f.P}
		}
		if oTerm.IsVar && !oBound {
			next[oTerm.Var] = matchFromObject(f.O, f.DT)
		}
		out = append(out, next)
	}
	return out, nil
}

// matchClass implements spec.md §4.7.2's :class dispatch: like :tuple
// with predicate fixed to rdf:type and the object fanned out over
// class plus every registered subclass, de-duplicating by subject.
func (m *Matcher) matchClass(ctx context.Context, sTerm Term, class sid.SID, sol Solution) ([]Solution, error) {
	s, sBound := resolve(sTerm, sol)
	classes := append([]sid.SID{class}, m.DB.Schema.Subclasses[class]...)

	seen := map[sid.SID]bool{}
	var out []Solution
	for _, cl := range classes {
		pivot := flake.Flake{P: rdfType, O: flake.SIDObject(cl)}
		filter := func(f flake.Flake) bool {
			if f.P != rdfType || !f.O.IsSID || f.O.SID != cl {
				return false
			}
			if sBound && s.Const.IsSID && f.S != s.Const.SID {
				return false
			}
			return true
		}
		flakes, err := m.rangeWithFuel(ctx, flake.POST, pivot, filter)
		if err != nil {
			return nil, err
		}
		for _, f := range flakes {
			if seen[f.S] {
				continue
			}
			seen[f.S] = true
			next := sol.Clone()
			if sTerm.IsVar && !sBound {
				next[sTerm.Var] = Match{IsSID: true, SID: f.S}
			}
			out = append(out, next)
		}
	}
	return out, nil
}

// chooseIndex picks the comparator family whose leading component is
// bound, per spec.md §4.7.2's "compute the optimal index from which
// components are bound." Subject binding takes priority, then
// predicate, then object; an entirely unbound tuple falls back to SPOT.
func chooseIndex(s Term, sBound bool, p Term, pBound bool, o Term, oBound bool) (flake.Index, flake.Flake) {
	pivot := flake.Flake{}
	if sBound {
		pivot.S = s.Const.SID
	}
	if pBound {
		pivot.P = p.Const.SID
	}
	if oBound {
		pivot.O = o.Const.toObject()
	}

	switch {
	case sBound:
		return flake.SPOT, pivot
	case pBound:
		return flake.POST, pivot
	case oBound:
		return flake.OPST, pivot
	default:
		return flake.SPOT, pivot
	}
}

func tupleFilter(s Term, sBound bool, p Term, pBound bool, o Term, oBound bool) func(flake.Flake) bool {
	return func(f flake.Flake) bool {
		if sBound && f.S != s.Const.SID {
			return false
		}
		if pBound && f.P != p.Const.SID {
			return false
		}
		if oBound {
			want := o.Const
			if want.IsSID {
				if !f.O.IsSID || f.O.SID != want.SID {
					return false
				}
			} else if f.O.IsSID || f.O.Literal != want.Value {
				return false
			}
		}
		return true
	}
}

// rangeWithFuel wraps db.Range with spec.md §4.7.3's fuel accounting:
// every flake visited (matching or not — the index walk itself costs
// fuel) decrements the shared counter, raising FuelExhausted once it
// runs out.
func (m *Matcher) rangeWithFuel(ctx context.Context, idx flake.Index, pivot flake.Flake, filter func(flake.Flake) bool) ([]flake.Flake, error) {
	counted := filter
	if m.Fuel > 0 {
		counted = func(f flake.Flake) bool {
			if m.fuel.Add(-1) < 0 {
				return false
			}
			return filter(f)
		}
	}
	out, err := m.DB.Range(ctx, idx, sortedset.GTE, pivot, counted)
	if err != nil {
		return nil, err
	}
	if m.Fuel > 0 && m.fuel.Load() < 0 {
		if telemetry.Instruments.FuelExhausted != nil {
			telemetry.Instruments.FuelExhausted.Add(ctx, 1)
		}
		return nil, ferr.New(ferr.FuelExhausted, "query fuel exhausted")
	}
	return out, nil
}

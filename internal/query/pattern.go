// Package query implements the graph-pattern matcher of spec.md §4.7:
// a where-clause is a sequence of tuple/class/graph/union/optional/
// bind/filter patterns reduced left to right over a stream of partial
// solutions, resolved against a DB snapshot's index tree.
//
// Grounded on no direct teacher analog (beads has no pattern-matching
// query layer); the fan-out points (union branches, per-solution tuple
// resolution) are built on the same concurrency libraries the teacher's
// own worker-pool code (internal/worker) uses — sourcegraph/conc for
// error-aggregating fan-out and golang.org/x/sync/errgroup for simple
// all-or-nothing fan-out, neither with a goroutine limit — rather than hand-rolled goroutine/
// sync.WaitGroup bookkeeping.
package query

import (
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
)

// Match is one variable binding within a Solution: either an IRI (a
// resolved SID) or a literal value with its datatype, per spec.md
// §4.7.1's "bound value+datatype, or a bound SID with alias qualifier."
type Match struct {
	IsSID bool
	SID   sid.SID
	DT    sid.SID
	Value any
}

func matchFromObject(o flake.Object, dt sid.SID) Match {
	if o.IsSID {
		return Match{IsSID: true, SID: o.SID, DT: dt}
	}
	return Match{DT: dt, Value: o.Literal}
}

func (m Match) toObject() flake.Object {
	if m.IsSID {
		return flake.SIDObject(m.SID)
	}
	return flake.LitObject(m.Value)
}

// Solution is one partial variable assignment, `var -> match`.
type Solution map[string]Match

// Clone returns a shallow copy safe to extend independently.
func (s Solution) Clone() Solution {
	out := make(Solution, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Term is one slot of a tuple pattern: either a variable (to be bound
// or, if already bound in the input solution, substituted) or a
// constant match.
type Term struct {
	Var   string
	Const Match
	IsVar bool
}

// Var constructs a variable term.
func Var(name string) Term { return Term{Var: name, IsVar: true} }

// IRI constructs a constant SID term.
func IRI(s sid.SID) Term { return Term{Const: Match{IsSID: true, SID: s}} }

// Lit constructs a constant literal term.
func Lit(v any, dt sid.SID) Term { return Term{Const: Match{DT: dt, Value: v}} }

// resolve substitutes a term against an input solution: a bound
// variable becomes a constant match; an unbound variable and a literal
// constant pass through unchanged.
func resolve(t Term, sol Solution) (Term, bool) {
	if !t.IsVar {
		return t, true
	}
	if m, ok := sol[t.Var]; ok {
		return Term{Const: m}, true
	}
	return t, false // unbound variable
}

// Kind names one of spec.md §4.7.1's seven pattern types.
type Kind string

const (
	KindTuple    Kind = "tuple"
	KindClass    Kind = "class"
	KindGraph    Kind = "graph"
	KindUnion    Kind = "union"
	KindOptional Kind = "optional"
	KindBind     Kind = "bind"
	KindFilter   Kind = "filter"
)

// Clause is a where-clause: a pattern list reduced sequentially.
type Clause []Pattern

// BindFunc computes a bound variable's value from the current solution.
type BindFunc func(Solution) (Match, error)

// FilterFunc reports whether the current solution survives a :filter
// pattern.
type FilterFunc func(Solution) (bool, error)

// Pattern is one where-clause entry. Only the fields relevant to Kind
// are populated, following the same tagged-union-by-struct shape
// internal/commit.Node values use for JSON-LD nodes.
type Pattern struct {
	Kind Kind

	// :tuple / :class
	S, P, O Term
	Class   sid.SID // :class only — rdf:type target, expanded via subclasses

	// :graph
	GraphAlias  string
	GraphClause Clause

	// :union
	Branches []Clause

	// :optional
	Inner Clause

	// :bind
	BindVar  string
	BindFn   BindFunc

	// :filter
	FilterFn FilterFunc
}

// Tuple is a convenience constructor for a :tuple pattern.
func Tuple(s, p, o Term) Pattern { return Pattern{Kind: KindTuple, S: s, P: p, O: o} }

// ClassPattern is a convenience constructor for a :class pattern.
func ClassPattern(s Term, class sid.SID) Pattern {
	return Pattern{Kind: KindClass, S: s, Class: class}
}

// Union is a convenience constructor for a :union pattern.
func Union(branches ...Clause) Pattern { return Pattern{Kind: KindUnion, Branches: branches} }

// Optional is a convenience constructor for an :optional pattern.
func Optional(inner Clause) Pattern { return Pattern{Kind: KindOptional, Inner: inner} }

// Bind is a convenience constructor for a :bind pattern.
func Bind(v string, fn BindFunc) Pattern { return Pattern{Kind: KindBind, BindVar: v, BindFn: fn} }

// Filter is a convenience constructor for a :filter pattern.
func Filter(fn FilterFunc) Pattern { return Pattern{Kind: KindFilter, FilterFn: fn} }

// Graph is a convenience constructor for a :graph pattern. Only a
// single implicit alias (the current DB) is supported; multi-alias
// federation is out of scope (see DESIGN.md).
func Graph(alias string, inner Clause) Pattern {
	return Pattern{Kind: KindGraph, GraphAlias: alias, GraphClause: inner}
}

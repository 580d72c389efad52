// Package flake implements the atomic statement type described in
// spec.md §3.2: a seven-tuple (s, p, o, dt, t, op, m) plus the four
// comparator families of §3.3 and the size accounting of §6.3.
package flake

import (
	"fmt"

	"github.com/fluree/flurecore/internal/sid"
)

// Meta carries optional per-flake metadata: list index, language tag, and
// reasoner provenance, per spec.md §3.2.
type Meta struct {
	ListIndex *int   `json:"i,omitempty"`
	Lang      string `json:"lang,omitempty"`
	Reasoned  string `json:"reasoned,omitempty"`
}

// Object is the flake's object value. When DT is anyURI it holds a SID;
// otherwise it holds a literal Go value (string, int64, float64, bool,
// or a pr_str-able value for exotic datatypes).
type Object struct {
	SID     sid.SID
	Literal any
	IsSID   bool
}

func SIDObject(s sid.SID) Object   { return Object{SID: s, IsSID: true} }
func LitObject(v any) Object       { return Object{Literal: v} }

// Flake is the atomic, immutable statement.
type Flake struct {
	S  sid.SID
	P  sid.SID
	O  Object
	DT sid.SID
	T  int64
	Op bool
	M  *Meta
}

// Create builds a flake. Pure: no side effects, no store interaction.
func Create(s, p sid.SID, o Object, dt sid.SID, t int64, op bool, m *Meta) Flake {
	return Flake{S: s, P: p, O: o, DT: dt, T: t, Op: op, M: m}
}

// Flip returns a flake with Op inverted (assert<->retract), optionally at
// a new transaction number. Pure — does not mutate f.
func Flip(f Flake, t ...int64) Flake {
	out := f
	out.Op = !f.Op
	if len(t) > 0 {
		out.T = t[0]
	}
	return out
}

// EqualStatement reports whether two flakes describe the same statement,
// i.e. equal on (s,p,o,dt) only — the identity spec.md §3.2 defines for
// "at most one assert flake is live at a given t".
func EqualStatement(a, b Flake) bool {
	return a.S == b.S && a.P == b.P && a.DT == b.DT && objectEqual(a.O, b.O)
}

func objectEqual(a, b Object) bool {
	if a.IsSID != b.IsSID {
		return false
	}
	if a.IsSID {
		return a.SID == b.SID
	}
	return fmt.Sprint(a.Literal) == fmt.Sprint(b.Literal)
}

// Package shacl implements the SHACL validation engine of spec.md §4.9:
// compiling node-shape records from their declaring flakes, resolving
// the focus nodes a shape targets, and evaluating property-shape
// constraints against each focus node's value nodes.
//
// Grounded on no direct teacher analog (beads has no constraint-shape
// concept); compiled shapes are memoized the way the teacher's
// internal/cache wraps frequently-rebuilt lookups behind an LRU, reusing
// that same library here (hashicorp/golang-lru/v2) per the expanded
// spec's explicit dependency-wiring instruction.
package shacl

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
)

// Well-known sh: predicates, per spec.md §4.9.1.
var (
	rdfType = sid.SID{NS: sid.NSRDF, Name: "type"}

	shTargetClass       = sid.SID{NS: sid.NSSH, Name: "targetClass"}
	shTargetNode        = sid.SID{NS: sid.NSSH, Name: "targetNode"}
	shTargetSubjectsOf  = sid.SID{NS: sid.NSSH, Name: "targetSubjectsOf"}
	shTargetObjectsOf   = sid.SID{NS: sid.NSSH, Name: "targetObjectsOf"}
	shClosed            = sid.SID{NS: sid.NSSH, Name: "closed"}
	shIgnoredProperties = sid.SID{NS: sid.NSSH, Name: "ignoredProperties"}
	shProperty          = sid.SID{NS: sid.NSSH, Name: "property"}

	shPath                         = sid.SID{NS: sid.NSSH, Name: "path"}
	shMinCount                     = sid.SID{NS: sid.NSSH, Name: "minCount"}
	shMaxCount                     = sid.SID{NS: sid.NSSH, Name: "maxCount"}
	shMinInclusive                 = sid.SID{NS: sid.NSSH, Name: "minInclusive"}
	shMaxInclusive                 = sid.SID{NS: sid.NSSH, Name: "maxInclusive"}
	shMinExclusive                 = sid.SID{NS: sid.NSSH, Name: "minExclusive"}
	shMaxExclusive                 = sid.SID{NS: sid.NSSH, Name: "maxExclusive"}
	shMinLength                    = sid.SID{NS: sid.NSSH, Name: "minLength"}
	shMaxLength                    = sid.SID{NS: sid.NSSH, Name: "maxLength"}
	shPattern                      = sid.SID{NS: sid.NSSH, Name: "pattern"}
	shFlags                        = sid.SID{NS: sid.NSSH, Name: "flags"}
	shIn                           = sid.SID{NS: sid.NSSH, Name: "in"}
	shHasValue                     = sid.SID{NS: sid.NSSH, Name: "hasValue"}
	shDatatype                     = sid.SID{NS: sid.NSSH, Name: "datatype"}
	shNodeKind                     = sid.SID{NS: sid.NSSH, Name: "nodeKind"}
	shClass                        = sid.SID{NS: sid.NSSH, Name: "class"}
	shNode                         = sid.SID{NS: sid.NSSH, Name: "node"}
	shQualifiedValueShape          = sid.SID{NS: sid.NSSH, Name: "qualifiedValueShape"}
	shQualifiedMinCount            = sid.SID{NS: sid.NSSH, Name: "qualifiedMinCount"}
	shQualifiedMaxCount            = sid.SID{NS: sid.NSSH, Name: "qualifiedMaxCount"}
	shQualifiedValueShapesDisjoint = sid.SID{NS: sid.NSSH, Name: "qualifiedValueShapesDisjoint"}
	shEquals                       = sid.SID{NS: sid.NSSH, Name: "equals"}
	shDisjoint                     = sid.SID{NS: sid.NSSH, Name: "disjoint"}
	shLessThan                     = sid.SID{NS: sid.NSSH, Name: "lessThan"}
	shLessThanOrEquals             = sid.SID{NS: sid.NSSH, Name: "lessThanOrEquals"}
	shNot                          = sid.SID{NS: sid.NSSH, Name: "not"}
)

// Node-kind vocabulary (spec.md §4.9.3).
const (
	NodeKindBlankNode        = "BlankNode"
	NodeKindIRI              = "IRI"
	NodeKindLiteral          = "Literal"
	NodeKindBlankNodeOrIRI   = "BlankNodeOrIRI"
	NodeKindIRIOrLiteral     = "IRIOrLiteral"
	NodeKindBlankNodeOrLiteral = "BlankNodeOrLiteral"
)

// PropertyShape is one `sh:property` entry of a node shape.
type PropertyShape struct {
	Path []sid.SID

	MinCount, MaxCount *int64

	MinInclusive, MaxInclusive *flake.Object
	MinExclusive, MaxExclusive *flake.Object

	MinLength, MaxLength *int64
	Pattern, Flags       string

	In       []flake.Object
	HasValue *flake.Object
	Datatype *sid.SID
	NodeKind string
	Class    *sid.SID
	Node     *sid.SID

	QualifiedValueShape           *sid.SID
	QualifiedMinCount             *int64
	QualifiedMaxCount             *int64
	QualifiedValueShapesDisjoint  bool

	PairConstraint string // "equals" | "disjoint" | "lessThan" | "lessThanOrEquals"
	RHSProperty    []sid.SID

	LogicalConstraint string // "not"
}

// Shape is a compiled node-shape record (spec.md §4.9.1).
type Shape struct {
	SID sid.SID

	TargetClass      []sid.SID
	TargetNode       []sid.SID
	TargetSubjectsOf []sid.SID
	TargetObjectsOf  []sid.SID

	Closed            bool
	IgnoredProperties map[sid.SID]bool

	Property []PropertyShape
}

// Compiler compiles and memoizes node-shape records, keyed by shape SID
// (spec.md §4.9.1 "shape cache is keyed by shape-SID").
type Compiler struct {
	cache *lru.Cache[sid.SID, *Shape]
}

// NewCompiler returns a Compiler backed by an LRU of the given size.
func NewCompiler(size int) (*Compiler, error) {
	cache, err := lru.New[sid.SID, *Shape](size)
	if err != nil {
		return nil, ferr.Wrap(ferr.InvalidConfig, err, "constructing shape cache")
	}
	return &Compiler{cache: cache}, nil
}

// Invalidate evicts a shape, used when its defining flakes change.
func (c *Compiler) Invalidate(shapeSID sid.SID) {
	c.cache.Remove(shapeSID)
}

// Compile returns the compiled Shape for shapeSID, building and caching
// it on first use.
func (c *Compiler) Compile(ctx context.Context, d *db.DB, shapeSID sid.SID) (*Shape, error) {
	if s, ok := c.cache.Get(shapeSID); ok {
		return s, nil
	}
	s, err := compileShape(ctx, d, shapeSID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(shapeSID, s)
	return s, nil
}

func compileShape(ctx context.Context, d *db.DB, shapeSID sid.SID) (*Shape, error) {
	flakes, err := subjectFlakes(ctx, d, shapeSID)
	if err != nil {
		return nil, err
	}

	s := &Shape{SID: shapeSID, IgnoredProperties: map[sid.SID]bool{}}
	var propertyShapeSIDs []sid.SID

	for _, f := range flakes {
		switch f.P {
		case shTargetClass:
			if f.O.IsSID {
				s.TargetClass = append(s.TargetClass, f.O.SID)
			}
		case shTargetNode:
			if f.O.IsSID {
				s.TargetNode = append(s.TargetNode, f.O.SID)
			}
		case shTargetSubjectsOf:
			if f.O.IsSID {
				s.TargetSubjectsOf = append(s.TargetSubjectsOf, f.O.SID)
			}
		case shTargetObjectsOf:
			if f.O.IsSID {
				s.TargetObjectsOf = append(s.TargetObjectsOf, f.O.SID)
			}
		case shClosed:
			if b, ok := f.O.Literal.(bool); ok {
				s.Closed = b
			}
		case shIgnoredProperties:
			if f.O.IsSID {
				s.IgnoredProperties[f.O.SID] = true
			}
		case shProperty:
			if f.O.IsSID {
				propertyShapeSIDs = append(propertyShapeSIDs, f.O.SID)
			}
		}
	}

	for _, psid := range propertyShapeSIDs {
		ps, err := compilePropertyShape(ctx, d, psid)
		if err != nil {
			return nil, err
		}
		s.Property = append(s.Property, ps)
	}
	return s, nil
}

func compilePropertyShape(ctx context.Context, d *db.DB, psid sid.SID) (PropertyShape, error) {
	flakes, err := subjectFlakes(ctx, d, psid)
	if err != nil {
		return PropertyShape{}, err
	}

	var ps PropertyShape
	for _, f := range flakes {
		switch f.P {
		case shPath:
			if f.O.IsSID {
				ps.Path = append(ps.Path, f.O.SID)
			}
		case shMinCount:
			ps.MinCount = int64Ptr(f.O.Literal)
		case shMaxCount:
			ps.MaxCount = int64Ptr(f.O.Literal)
		case shMinInclusive:
			o := f.O
			ps.MinInclusive = &o
		case shMaxInclusive:
			o := f.O
			ps.MaxInclusive = &o
		case shMinExclusive:
			o := f.O
			ps.MinExclusive = &o
		case shMaxExclusive:
			o := f.O
			ps.MaxExclusive = &o
		case shMinLength:
			ps.MinLength = int64Ptr(f.O.Literal)
		case shMaxLength:
			ps.MaxLength = int64Ptr(f.O.Literal)
		case shPattern:
			if str, ok := f.O.Literal.(string); ok {
				ps.Pattern = str
			}
		case shFlags:
			if str, ok := f.O.Literal.(string); ok {
				ps.Flags = str
			}
		case shIn:
			ps.In = append(ps.In, f.O)
		case shHasValue:
			o := f.O
			ps.HasValue = &o
		case shDatatype:
			if f.O.IsSID {
				dt := f.O.SID
				ps.Datatype = &dt
			}
		case shNodeKind:
			if f.O.IsSID {
				ps.NodeKind = f.O.SID.Name
			}
		case shClass:
			if f.O.IsSID {
				cls := f.O.SID
				ps.Class = &cls
			}
		case shNode:
			if f.O.IsSID {
				n := f.O.SID
				ps.Node = &n
			}
		case shQualifiedValueShape:
			if f.O.IsSID {
				qvs := f.O.SID
				ps.QualifiedValueShape = &qvs
			}
		case shQualifiedMinCount:
			ps.QualifiedMinCount = int64Ptr(f.O.Literal)
		case shQualifiedMaxCount:
			ps.QualifiedMaxCount = int64Ptr(f.O.Literal)
		case shQualifiedValueShapesDisjoint:
			if b, ok := f.O.Literal.(bool); ok {
				ps.QualifiedValueShapesDisjoint = b
			}
		case shEquals:
			ps.PairConstraint = "equals"
			if f.O.IsSID {
				ps.RHSProperty = []sid.SID{f.O.SID}
			}
		case shDisjoint:
			ps.PairConstraint = "disjoint"
			if f.O.IsSID {
				ps.RHSProperty = []sid.SID{f.O.SID}
			}
		case shLessThan:
			ps.PairConstraint = "lessThan"
			if f.O.IsSID {
				ps.RHSProperty = []sid.SID{f.O.SID}
			}
		case shLessThanOrEquals:
			ps.PairConstraint = "lessThanOrEquals"
			if f.O.IsSID {
				ps.RHSProperty = []sid.SID{f.O.SID}
			}
		case shNot:
			ps.LogicalConstraint = "not"
			if f.O.IsSID {
				ps.Node = &f.O.SID
			}
		}
	}
	return ps, nil
}

func int64Ptr(v any) *int64 {
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case float64:
		i := int64(n)
		return &i
	default:
		return nil
	}
}

// subjectFlakes resolves every flake with subject subj, via an SPOT scan
// bounded below by subj and filtered to an exact subject match. Fuel is
// unbounded here: shape/schema flakes are assumed small relative to
// ordinary data.
func subjectFlakes(ctx context.Context, d *db.DB, subj sid.SID) ([]flake.Flake, error) {
	pivot := flake.Flake{S: subj}
	return d.Range(ctx, flake.SPOT, sortedset.GTE, pivot, func(f flake.Flake) bool { return f.S == subj })
}

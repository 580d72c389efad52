package shacl

import (
	"context"
	"fmt"
	"regexp"

	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
)

// Violation describes one constraint failure (spec.md §4.9.4).
type Violation struct {
	Focus      sid.SID
	Path       []sid.SID
	Constraint string
	Message    string
}

// Report aggregates every violation found during one Validate call.
type Report struct {
	Conforms   bool
	Violations []Violation
}

// Validate resolves shapeSID's targets and checks every focus node
// against every property shape, per spec.md §4.9.2-§4.9.3.
func Validate(ctx context.Context, d *db.DB, c *Compiler, shapeSID sid.SID) (*Report, error) {
	shape, err := c.Compile(ctx, d, shapeSID)
	if err != nil {
		return nil, err
	}
	focusNodes, err := resolveFocusNodes(ctx, d, shape)
	if err != nil {
		return nil, err
	}

	rep := &Report{Conforms: true}
	for _, focus := range focusNodes {
		flakes, err := subjectFlakes(ctx, d, focus)
		if err != nil {
			return nil, err
		}
		if shape.Closed {
			checkClosed(shape, focus, flakes, rep)
		}
		for _, ps := range shape.Property {
			if err := checkPropertyShape(ctx, d, shape, ps, focus, flakes, rep); err != nil {
				return nil, err
			}
		}
	}
	if len(rep.Violations) > 0 {
		rep.Conforms = false
	}
	return rep, nil
}

// ValidateOrErr is the transactional entrypoint (spec.md §4.9.4): a
// non-conformant report is returned wrapped as a ferr.ShaclViolation so
// a commit pipeline can reject the transaction in one step.
func ValidateOrErr(ctx context.Context, d *db.DB, c *Compiler, shapeSID sid.SID) error {
	rep, err := Validate(ctx, d, c, shapeSID)
	if err != nil {
		return err
	}
	if !rep.Conforms {
		return ferr.New(ferr.ShaclViolation, "shape %s: %d violation(s), first: %s", shapeSID.Name, len(rep.Violations), rep.Violations[0].Message)
	}
	return nil
}

// resolveFocusNodes implements spec.md §4.9.2: the union of
// sh:targetNode, every subject whose rdf:type (transitively, through
// rdfs:subClassOf) is one of sh:targetClass, every subject of a
// sh:targetSubjectsOf predicate, and every object of a
// sh:targetObjectsOf predicate.
func resolveFocusNodes(ctx context.Context, d *db.DB, shape *Shape) ([]sid.SID, error) {
	seen := map[sid.SID]bool{}
	var out []sid.SID
	add := func(s sid.SID) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, n := range shape.TargetNode {
		add(n)
	}

	for _, cls := range shape.TargetClass {
		classes := append([]sid.SID{cls}, d.Schema.Subclasses[cls]...)
		for _, cl := range classes {
			flakes, err := d.Range(ctx, flake.POST, sortedset.GTE, flake.Flake{P: rdfType, O: flake.SIDObject(cl)}, func(f flake.Flake) bool {
				return f.P == rdfType && f.O.IsSID && f.O.SID == cl
			})
			if err != nil {
				return nil, err
			}
			for _, f := range flakes {
				add(f.S)
			}
		}
	}

	for _, p := range shape.TargetSubjectsOf {
		flakes, err := d.Range(ctx, flake.POST, sortedset.GTE, flake.Flake{P: p}, func(f flake.Flake) bool { return f.P == p })
		if err != nil {
			return nil, err
		}
		for _, f := range flakes {
			add(f.S)
		}
	}

	for _, p := range shape.TargetObjectsOf {
		flakes, err := d.Range(ctx, flake.POST, sortedset.GTE, flake.Flake{P: p}, func(f flake.Flake) bool { return f.P == p })
		if err != nil {
			return nil, err
		}
		for _, f := range flakes {
			if f.O.IsSID {
				add(f.O.SID)
			}
		}
	}

	return out, nil
}

func checkClosed(shape *Shape, focus sid.SID, flakes []flake.Flake, rep *Report) {
	allowed := map[sid.SID]bool{rdfType: true}
	for p := range shape.IgnoredProperties {
		allowed[p] = true
	}
	for _, ps := range shape.Property {
		for _, p := range ps.Path {
			allowed[p] = true
		}
	}
	for _, f := range flakes {
		if !allowed[f.P] {
			rep.Violations = append(rep.Violations, Violation{
				Focus:      focus,
				Path:       []sid.SID{f.P},
				Constraint: "closed",
				Message:    fmt.Sprintf("%s: unexpected property %s on closed shape", focus.Name, f.P.Name),
			})
		}
	}
}

// pathValues returns the value nodes reached at focus via ps.Path. Only
// single-hop paths are supported; a multi-segment path beyond the first
// is treated as a property-pair reference, not traversed.
func pathValues(flakes []flake.Flake, path []sid.SID) []flake.Object {
	if len(path) == 0 {
		return nil
	}
	p := path[0]
	var out []flake.Object
	for _, f := range flakes {
		if f.P == p {
			out = append(out, f.O)
		}
	}
	return out
}

func checkPropertyShape(ctx context.Context, d *db.DB, shape *Shape, ps PropertyShape, focus sid.SID, flakes []flake.Flake, rep *Report) error {
	var valueFlakes []flake.Flake
	if len(ps.Path) > 0 {
		p := ps.Path[0]
		for _, f := range flakes {
			if f.P == p {
				valueFlakes = append(valueFlakes, f)
			}
		}
	}
	values := make([]flake.Object, len(valueFlakes))
	for i, f := range valueFlakes {
		values[i] = f.O
	}

	violate := func(constraint, format string, args ...any) {
		rep.Violations = append(rep.Violations, Violation{
			Focus:      focus,
			Path:       ps.Path,
			Constraint: constraint,
			Message:    fmt.Sprintf(format, args...),
		})
	}

	if ps.MinCount != nil && int64(len(values)) < *ps.MinCount {
		violate("minCount", "%s: expected at least %d value(s), got %d", focus.Name, *ps.MinCount, len(values))
	}
	if ps.MaxCount != nil && int64(len(values)) > *ps.MaxCount {
		violate("maxCount", "%s: expected at most %d value(s), got %d", focus.Name, *ps.MaxCount, len(values))
	}

	for _, vf := range valueFlakes {
		v := vf.O
		if ps.Datatype != nil && vf.DT != *ps.Datatype {
			violate("datatype", "%s: value datatype %s does not match required %s", focus.Name, vf.DT.Name, ps.Datatype.Name)
		}
		if ps.NodeKind != "" {
			checkNodeKind(ps.NodeKind, v, focus, violate)
		}
		if ps.MinInclusive != nil && compareObjects(v, *ps.MinInclusive) < 0 {
			violate("minInclusive", "%s: value below minimum", focus.Name)
		}
		if ps.MaxInclusive != nil && compareObjects(v, *ps.MaxInclusive) > 0 {
			violate("maxInclusive", "%s: value above maximum", focus.Name)
		}
		if ps.MinExclusive != nil && compareObjects(v, *ps.MinExclusive) <= 0 {
			violate("minExclusive", "%s: value not above exclusive minimum", focus.Name)
		}
		if ps.MaxExclusive != nil && compareObjects(v, *ps.MaxExclusive) >= 0 {
			violate("maxExclusive", "%s: value not below exclusive maximum", focus.Name)
		}
		if str, ok := v.Literal.(string); ok {
			if ps.MinLength != nil && int64(len(str)) < *ps.MinLength {
				violate("minLength", "%s: value shorter than minLength", focus.Name)
			}
			if ps.MaxLength != nil && int64(len(str)) > *ps.MaxLength {
				violate("maxLength", "%s: value longer than maxLength", focus.Name)
			}
			if ps.Pattern != "" {
				re, err := regexp.Compile(ps.Pattern)
				if err == nil && !re.MatchString(str) {
					violate("pattern", "%s: value does not match pattern %q", focus.Name, ps.Pattern)
				}
			}
		}
		if len(ps.In) > 0 && !objectInSet(v, ps.In) {
			violate("in", "%s: value not among sh:in set", focus.Name)
		}
		if ps.Class != nil {
			ok, err := valueHasClass(ctx, d, v, *ps.Class)
			if err != nil {
				return err
			}
			if !ok {
				violate("class", "%s: value is not a member of class %s", focus.Name, ps.Class.Name)
			}
		}
	}

	if ps.HasValue != nil && !objectInSet(*ps.HasValue, values) {
		violate("hasValue", "%s: required value not present", focus.Name)
	}

	if ps.PairConstraint != "" && len(ps.RHSProperty) > 0 {
		rhs := pathValues(flakes, ps.RHSProperty)
		checkPairConstraint(ps.PairConstraint, values, rhs, focus, violate)
	}

	if ps.QualifiedValueShape != nil {
		count := int64(0)
		qc := newAdHocCompiler()
		for _, v := range values {
			if !v.IsSID {
				continue
			}
			ok, err := conformsToShape(ctx, d, qc, *ps.QualifiedValueShape, v.SID)
			if err != nil {
				return err
			}
			if ok {
				count++
			}
		}
		if ps.QualifiedMinCount != nil && count < *ps.QualifiedMinCount {
			violate("qualifiedMinCount", "%s: too few values conform to qualified shape", focus.Name)
		}
		if ps.QualifiedMaxCount != nil && count > *ps.QualifiedMaxCount {
			violate("qualifiedMaxCount", "%s: too many values conform to qualified shape", focus.Name)
		}
	}

	if ps.LogicalConstraint == "not" && ps.Node != nil {
		ok, err := conformsToShape(ctx, d, newAdHocCompiler(), *ps.Node, focus)
		if err != nil {
			return err
		}
		if ok {
			violate("not", "%s: must not conform to shape %s", focus.Name, ps.Node.Name)
		}
	}

	return nil
}

func checkNodeKind(kind string, v flake.Object, focus sid.SID, violate func(string, string, ...any)) {
	isIRI := v.IsSID
	isLit := !v.IsSID
	ok := false
	switch kind {
	case NodeKindIRI, NodeKindBlankNode:
		ok = isIRI
	case NodeKindLiteral:
		ok = isLit
	case NodeKindBlankNodeOrIRI, NodeKindIRIOrLiteral, NodeKindBlankNodeOrLiteral:
		ok = true
	}
	if !ok {
		violate("nodeKind", "%s: value node-kind mismatch, expected %s", focus.Name, kind)
	}
}

func compareObjects(a, b flake.Object) int {
	af, aok := asFloat(a.Literal)
	bf, bok := asFloat(b.Literal)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprint(a.Literal)
	bs := fmt.Sprint(b.Literal)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func objectInSet(v flake.Object, set []flake.Object) bool {
	for _, s := range set {
		if s.IsSID && v.IsSID && s.SID == v.SID {
			return true
		}
		if !s.IsSID && !v.IsSID && fmt.Sprint(s.Literal) == fmt.Sprint(v.Literal) {
			return true
		}
	}
	return false
}

func checkPairConstraint(kind string, lhs, rhs []flake.Object, focus sid.SID, violate func(string, string, ...any)) {
	switch kind {
	case "equals":
		if !sameSet(lhs, rhs) {
			violate("equals", "%s: values do not equal the compared property's values", focus.Name)
		}
	case "disjoint":
		for _, l := range lhs {
			if objectInSet(l, rhs) {
				violate("disjoint", "%s: values are not disjoint from the compared property's values", focus.Name)
				return
			}
		}
	case "lessThan", "lessThanOrEquals":
		for _, l := range lhs {
			for _, r := range rhs {
				c := compareObjects(l, r)
				if c > 0 || (kind == "lessThan" && c == 0) {
					violate(kind, "%s: value is not %s the compared property's value", focus.Name, kind)
				}
			}
		}
	}
}

func sameSet(a, b []flake.Object) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !objectInSet(v, b) {
			return false
		}
	}
	return true
}

// valueHasClass reports whether v (an IRI-valued object) carries an
// rdf:type matching cls, directly or through a subclass edge.
func valueHasClass(ctx context.Context, d *db.DB, v flake.Object, cls sid.SID) (bool, error) {
	if !v.IsSID {
		return false, nil
	}
	flakes, err := subjectFlakes(ctx, d, v.SID)
	if err != nil {
		return false, err
	}
	classes := append([]sid.SID{cls}, d.Schema.Subclasses[cls]...)
	for _, f := range flakes {
		if f.P != rdfType || !f.O.IsSID {
			continue
		}
		for _, cl := range classes {
			if f.O.SID == cl {
				return true, nil
			}
		}
	}
	return false, nil
}

// conformsToShape checks a single node directly against shapeSID's
// property constraints, bypassing target resolution: sh:qualifiedValueShape
// and sh:not apply a shape to a specific value node, not to the node
// shape's own declared targets (spec.md §4.9.3).
func conformsToShape(ctx context.Context, d *db.DB, c *Compiler, shapeSID, node sid.SID) (bool, error) {
	shape, err := c.Compile(ctx, d, shapeSID)
	if err != nil {
		return false, err
	}
	flakes, err := subjectFlakes(ctx, d, node)
	if err != nil {
		return false, err
	}
	rep := &Report{Conforms: true}
	if shape.Closed {
		checkClosed(shape, node, flakes, rep)
	}
	for _, ps := range shape.Property {
		if err := checkPropertyShape(ctx, d, shape, ps, node, flakes, rep); err != nil {
			return false, err
		}
	}
	return len(rep.Violations) == 0, nil
}

// newAdHocCompiler backs a single qualified-value-shape check with its
// own tiny cache; qualified shapes are typically evaluated far less
// often than top-level shapes, so sharing the caller's Compiler isn't
// worth the plumbing.
func newAdHocCompiler() *Compiler {
	c, _ := NewCompiler(8)
	return c
}

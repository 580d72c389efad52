// Package policy implements the visibility/modification policy engine
// of spec.md §4.10: compiling `f:Policy` subjects into role-gated
// view/modify rules, resolving an identity's roles, and evaluating
// `sh:equals`-style identity paths that scope a rule to "only the
// identity this node belongs to."
//
// Grounded on no direct teacher analog (beads has no per-identity
// visibility model); built in internal/shacl's own compile-then-evaluate
// shape, reusing internal/db.Schema's subclass graph for target-class
// expansion the same way internal/shacl does.
package policy

import (
	"context"
	"log"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/telemetry"
)

// Well-known f: predicates a policy document is built from, per
// spec.md §4.10.
var (
	rdfType = sid.SID{NS: sid.NSRDF, Name: "type"}

	fPolicy      = sid.SID{NS: sid.NSFluree, Name: "Policy"}
	fTargetClass = sid.SID{NS: sid.NSFluree, Name: "targetClass"}
	fTargetNode  = sid.SID{NS: sid.NSFluree, Name: "targetNode"}
	fAllow       = sid.SID{NS: sid.NSFluree, Name: "allow"}
	fTargetRole  = sid.SID{NS: sid.NSFluree, Name: "targetRole"}
	fAction      = sid.SID{NS: sid.NSFluree, Name: "action"}
	fProperty    = sid.SID{NS: sid.NSFluree, Name: "property"}
	fPredicate   = sid.SID{NS: sid.NSFluree, Name: "predicate"}
	fEquals      = sid.SID{NS: sid.NSFluree, Name: "equals"}
	fList        = sid.SID{NS: sid.NSFluree, Name: "list"}
	fRole        = sid.SID{NS: sid.NSFluree, Name: "role"}

	// identitySentinel is the well-known placeholder for `f:$identity`
	// inside an equals-path's f:list: the literal token a policy author
	// writes to mean "start the walk from the acting identity," never a
	// real subject in the graph.
	identitySentinel = sid.SID{NS: sid.NSFluree, Name: "$identity"}
)

const (
	ActionView   = "view"
	ActionModify = "modify"
)

// AllowRule is one `f:allow` entry: a role permitted a given action.
type AllowRule struct {
	Role   sid.SID
	Action string
}

// PropertyRule is one `f:property` entry: a predicate-scoped rule,
// optionally narrowed by an equals-path that must resolve to the
// flake's own subject.
type PropertyRule struct {
	Predicate sid.SID
	Equals    []sid.SID // path hops after the $identity sentinel is stripped
}

// Policy is a compiled `f:Policy` subject.
type Policy struct {
	SID         sid.SID
	TargetClass []sid.SID
	TargetNode  []sid.SID
	Allow       []AllowRule
	Property    []PropertyRule
}

// Context is the per-identity policy state spec.md §4.10 calls
// `db.policy`: the identity, its resolved roles, the policies that
// apply to it, and a memoization cache for evaluated equals-paths.
type Context struct {
	Identity sid.SID
	Roles    map[sid.SID]bool
	Policies []*Policy

	cache map[pathCacheKey]pathResult
}

type pathCacheKey struct {
	from sid.SID
	path string // the hop names joined, cheap enough for the short paths policies declare
}

func cacheKeyFor(from sid.SID, path []sid.SID) pathCacheKey {
	var b strings.Builder
	for _, p := range path {
		b.WriteString(p.String())
		b.WriteByte('|')
	}
	return pathCacheKey{from: from, path: b.String()}
}

type pathResult struct {
	target sid.SID
	ok     bool
}

// WrapPolicy implements spec.md §4.10's `wrap_policy`: resolves
// identity's roles from the DB, compiles every `f:Policy` subject, and
// returns a DB snapshot carrying the resulting Context in PolicyCtx.
func WrapPolicy(ctx context.Context, d *db.DB, identity sid.SID) (*db.DB, error) {
	roleFlakes, err := d.Range(ctx, flake.SPOT, sortedset.GTE, flake.Flake{S: identity, P: fRole}, func(f flake.Flake) bool {
		return f.S == identity && f.P == fRole
	})
	if err != nil {
		return nil, err
	}
	roles := map[sid.SID]bool{}
	for _, f := range roleFlakes {
		if f.O.IsSID {
			roles[f.O.SID] = true
		}
	}

	policySubjFlakes, err := d.Range(ctx, flake.POST, sortedset.GTE, flake.Flake{P: rdfType, O: flake.SIDObject(fPolicy)}, func(f flake.Flake) bool {
		return f.P == rdfType && f.O.IsSID && f.O.SID == fPolicy
	})
	if err != nil {
		return nil, err
	}

	var policies []*Policy
	for _, f := range policySubjFlakes {
		p, err := compilePolicy(ctx, d, f.S)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	pc := &Context{
		Identity: identity,
		Roles:    roles,
		Policies: policies,
		cache:    map[pathCacheKey]pathResult{},
	}
	return d.WithPolicy(pc), nil
}

func compilePolicy(ctx context.Context, d *db.DB, subj sid.SID) (*Policy, error) {
	flakes, err := subjectFlakes(ctx, d, subj)
	if err != nil {
		return nil, err
	}

	p := &Policy{SID: subj}
	var allowSIDs, propertySIDs []sid.SID
	for _, f := range flakes {
		switch f.P {
		case fTargetClass:
			if f.O.IsSID {
				p.TargetClass = append(p.TargetClass, f.O.SID)
			}
		case fTargetNode:
			if f.O.IsSID {
				p.TargetNode = append(p.TargetNode, f.O.SID)
			}
		case fAllow:
			if f.O.IsSID {
				allowSIDs = append(allowSIDs, f.O.SID)
			}
		case fProperty:
			if f.O.IsSID {
				propertySIDs = append(propertySIDs, f.O.SID)
			}
		}
	}

	for _, asid := range allowSIDs {
		rule, err := compileAllowRule(ctx, d, asid)
		if err != nil {
			return nil, err
		}
		p.Allow = append(p.Allow, rule)
	}
	for _, psid := range propertySIDs {
		rule, err := compilePropertyRule(ctx, d, psid)
		if err != nil {
			return nil, err
		}
		p.Property = append(p.Property, rule)
	}
	return p, nil
}

func compileAllowRule(ctx context.Context, d *db.DB, subj sid.SID) (AllowRule, error) {
	flakes, err := subjectFlakes(ctx, d, subj)
	if err != nil {
		return AllowRule{}, err
	}
	var rule AllowRule
	for _, f := range flakes {
		switch f.P {
		case fTargetRole:
			if f.O.IsSID {
				rule.Role = f.O.SID
			}
		case fAction:
			if s, ok := f.O.Literal.(string); ok {
				rule.Action = s
			}
		}
	}
	return rule, nil
}

func compilePropertyRule(ctx context.Context, d *db.DB, subj sid.SID) (PropertyRule, error) {
	flakes, err := subjectFlakes(ctx, d, subj)
	if err != nil {
		return PropertyRule{}, err
	}
	var rule PropertyRule
	for _, f := range flakes {
		switch f.P {
		case fPredicate:
			if f.O.IsSID {
				rule.Predicate = f.O.SID
			}
		case fEquals:
			if f.O.IsSID {
				listFlakes, err := subjectFlakes(ctx, d, f.O.SID)
				if err != nil {
					return PropertyRule{}, err
				}
				var path []sid.SID
				for _, lf := range listFlakes {
					if lf.P == fList && lf.O.IsSID && lf.O.SID != identitySentinel {
						path = append(path, lf.O.SID)
					}
				}
				rule.Equals = path
			}
		}
	}
	return rule, nil
}

// subjectFlakes fetches every flake with subject subj via an SPOT scan,
// the same pattern internal/shacl uses for shape compilation.
func subjectFlakes(ctx context.Context, d *db.DB, subj sid.SID) ([]flake.Flake, error) {
	return d.Range(ctx, flake.SPOT, sortedset.GTE, flake.Flake{S: subj}, func(f flake.Flake) bool { return f.S == subj })
}

// AllowIRI implements spec.md §4.10's `allow_iri?`: whether pc permits
// identity to view subj at all, ignoring any per-predicate narrowing.
// A nil Context (no policy wrapped) means unrestricted access.
func AllowIRI(ctx context.Context, d *db.DB, pc *Context, subj sid.SID) (bool, error) {
	if pc == nil {
		return true, nil
	}
	applicable, err := applicablePolicies(ctx, d, pc, subj)
	if err != nil {
		return false, err
	}
	if len(applicable) == 0 {
		return true, nil
	}
	for _, p := range applicable {
		for _, rule := range p.Allow {
			if rule.Action == ActionView && pc.Roles[rule.Role] {
				return true, nil
			}
		}
	}
	return false, nil
}

// AllowedForFlake reports whether f is visible to (or, for a staged
// transaction, modifiable by) pc's identity, honoring any per-predicate
// equals-path narrowing (spec.md §4.10's property rules).
func AllowedForFlake(ctx context.Context, d *db.DB, pc *Context, f flake.Flake, action string) (bool, error) {
	if pc == nil {
		return true, nil
	}
	applicable, err := applicablePolicies(ctx, d, pc, f.S)
	if err != nil {
		return false, err
	}
	if len(applicable) == 0 {
		return true, nil
	}

	nodeAllowed := false
	for _, p := range applicable {
		for _, rule := range p.Allow {
			if rule.Action == action && pc.Roles[rule.Role] {
				nodeAllowed = true
			}
		}
	}
	if !nodeAllowed {
		return false, nil
	}

	for _, p := range applicable {
		for _, prop := range p.Property {
			if prop.Predicate != f.P || len(prop.Equals) == 0 {
				continue
			}
			target, ok, err := evalEqualsPath(ctx, d, pc, prop.Equals)
			if err != nil {
				return false, err
			}
			if !ok || target != f.S {
				return false, nil
			}
		}
	}
	return true, nil
}

// Allowed implements spec.md §4.10's `allowed?`: every flake in a
// staged transaction's novelty delta must be permitted for pc's
// identity to modify, or the whole transaction is rejected with
// ferr.PolicyViolation (never silently filtered — that behavior is
// reserved for query-time visibility, per spec.md §7's propagation
// policy).
func Allowed(ctx context.Context, d *db.DB, pc *Context, flakes []flake.Flake) error {
	for _, f := range flakes {
		ok, err := AllowedForFlake(ctx, d, pc, f, ActionModify)
		if err != nil {
			return err
		}
		if !ok {
			return ferr.New(ferr.PolicyViolation, "identity %s may not modify %s %s", pc.Identity.Name, f.S.Name, f.P.Name)
		}
	}
	return nil
}

// FilterVisible implements the query-time half of spec.md §7's
// propagation policy: forbidden flakes are dropped, never erred.
func FilterVisible(ctx context.Context, d *db.DB, pc *Context, flakes []flake.Flake) ([]flake.Flake, error) {
	if pc == nil {
		return flakes, nil
	}
	out := make([]flake.Flake, 0, len(flakes))
	for _, f := range flakes {
		ok, err := AllowedForFlake(ctx, d, pc, f, ActionView)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func applicablePolicies(ctx context.Context, d *db.DB, pc *Context, subj sid.SID) ([]*Policy, error) {
	var classes []sid.SID
	typeFlakes, err := subjectFlakes(ctx, d, subj)
	if err != nil {
		return nil, err
	}
	for _, f := range typeFlakes {
		if f.P == rdfType && f.O.IsSID {
			classes = append(classes, f.O.SID)
			classes = append(classes, d.Schema.Subclasses[f.O.SID]...)
		}
	}

	var out []*Policy
	for _, p := range pc.Policies {
		matched := false
		for _, n := range p.TargetNode {
			if n == subj {
				matched = true
			}
		}
		if !matched {
			for _, tc := range p.TargetClass {
				for _, cl := range classes {
					if tc == cl {
						matched = true
					}
				}
			}
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

// evalEqualsPath implements spec.md §4.10's equals-path evaluation:
// walk from the identity SID, at each hop taking the first anyURI-typed
// object and logging a warning when more than one candidate exists, per
// the Open Question this spec resolves in favor of the documented
// "first object, log on non-singleton" tolerance.
func evalEqualsPath(ctx context.Context, d *db.DB, pc *Context, path []sid.SID) (sid.SID, bool, error) {
	if len(path) == 0 {
		return sid.SID{}, false, nil
	}
	ctx, span := telemetry.Tracer.Start(ctx, "policy.evalEqualsPath",
		trace.WithAttributes(attribute.String("identity", pc.Identity.Name), attribute.Int("hops", len(path))))
	defer span.End()

	key := cacheKeyFor(pc.Identity, path)
	if r, ok := pc.cache[key]; ok {
		span.AddEvent("policy.cache_hit")
		return r.target, r.ok, nil
	}

	current := pc.Identity
	for _, hop := range path {
		flakes, err := subjectFlakes(ctx, d, current)
		if err != nil {
			return sid.SID{}, false, err
		}
		var next sid.SID
		found := false
		candidates := 0
		for _, f := range flakes {
			if f.P == hop && f.O.IsSID {
				candidates++
				if !found {
					next = f.O.SID
					found = true
				}
			}
		}
		if !found {
			pc.cache[key] = pathResult{ok: false}
			return sid.SID{}, false, nil
		}
		if candidates > 1 {
			log.Printf("policy: equals-path hop %s from %s has %d candidate objects, using the first", hop.Name, current.Name, candidates)
		}
		current = next
	}

	pc.cache[key] = pathResult{target: current, ok: true}
	return current, true, nil
}

package db

import (
	"encoding/json"
	"sync"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
)

// rdfType / rdfsSubClassOf / shNodeShape / shPath / shDatatype are the
// well-known predicates schema hydration watches for, per spec.md §4.5
// step 7's "re-index shape and vocab predicates".
var (
	rdfType       = sid.SID{NS: sid.NSRDF, Name: "type"}
	rdfsSubClass  = sid.SID{NS: sid.NSRDFS, Name: "subClassOf"}
	shNodeShape   = sid.SID{NS: sid.NSSH, Name: "NodeShape"}
	shPath        = sid.SID{NS: sid.NSSH, Name: "path"}
	shDatatype    = sid.SID{NS: sid.NSSH, Name: "datatype"}
)

// Schema is the vocabulary/shape index hydrated incrementally as commits
// are assembled (spec.md §4.5 step 7): subclass edges for query's
// :class pattern expansion, the set of subjects that are shape
// declarations, and a predicate -> required-datatype map derived from
// sh:path/sh:datatype pairs on property shapes, used by the commit
// assembler to coerce literal values to a shape-declared datatype even
// when the inbound document left the type implicit (spec.md §9 scenario
// S4).
//
// Schema values are immutable; WithFlakes returns a new Schema sharing
// no mutable state with the receiver, matching every other DB-adjacent
// snapshot type's copy-on-write discipline.
type Schema struct {
	mu sync.RWMutex

	Subclasses map[sid.SID][]sid.SID
	ShapeSIDs  map[sid.SID]bool

	shapePath     map[sid.SID]sid.SID // property-shape subject -> sh:path object
	shapeDatatype map[sid.SID]sid.SID // property-shape subject -> sh:datatype object

	PredicateDatatype map[sid.SID]sid.SID
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		Subclasses:        map[sid.SID][]sid.SID{},
		ShapeSIDs:          map[sid.SID]bool{},
		shapePath:          map[sid.SID]sid.SID{},
		shapeDatatype:      map[sid.SID]sid.SID{},
		PredicateDatatype:  map[sid.SID]sid.SID{},
	}
}

// WithFlakes folds newly-asserted flakes into a copy of the schema,
// recognizing rdfs:subClassOf edges, sh:NodeShape declarations, and
// sh:path/sh:datatype property-shape pairs. Retracted flakes are not
// un-hydrated (schema is a best-effort accelerator, not a source of
// truth — the index tree itself remains authoritative for conformance).
func (s *Schema) WithFlakes(flakes []flake.Flake) *Schema {
	s.mu.RLock()
	out := &Schema{
		Subclasses:        cloneMultiMap(s.Subclasses),
		ShapeSIDs:          cloneBoolMap(s.ShapeSIDs),
		shapePath:          cloneSIDMap(s.shapePath),
		shapeDatatype:      cloneSIDMap(s.shapeDatatype),
		PredicateDatatype:  cloneSIDMap(s.PredicateDatatype),
	}
	s.mu.RUnlock()

	for _, f := range flakes {
		if !f.Op {
			continue
		}
		switch f.P {
		case rdfType:
			if f.O.IsSID && f.O.SID == shNodeShape {
				out.ShapeSIDs[f.S] = true
			}
		case rdfsSubClass:
			if f.O.IsSID {
				out.Subclasses[f.O.SID] = appendUnique(out.Subclasses[f.O.SID], f.S)
			}
		case shPath:
			if f.O.IsSID {
				out.shapePath[f.S] = f.O.SID
				if dt, ok := out.shapeDatatype[f.S]; ok {
					out.PredicateDatatype[f.O.SID] = dt
				}
			}
		case shDatatype:
			if f.O.IsSID {
				out.shapeDatatype[f.S] = f.O.SID
				if path, ok := out.shapePath[f.S]; ok {
					out.PredicateDatatype[path] = f.O.SID
				}
			}
		}
	}
	return out
}

// SubclassesOf returns the transitive closure of direct subclasses of
// cls, used by the query matcher's :class pattern expansion (spec.md
// §4.7.2).
func (s *Schema) SubclassesOf(cls sid.SID) []sid.SID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[sid.SID]bool{cls: true}
	queue := []sid.SID{cls}
	var out []sid.SID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range s.Subclasses[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// RequiredDatatype reports the shape-declared datatype for a predicate,
// if one was hydrated from a sh:path/sh:datatype property-shape pair.
func (s *Schema) RequiredDatatype(pred sid.SID) (sid.SID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dt, ok := s.PredicateDatatype[pred]
	return dt, ok
}

// sid.SID is a struct, which encoding/json cannot use as a map key
// directly, so Schema's wire form flattens each map to a slice of pairs.
type sidPair struct {
	K sid.SID `json:"k"`
	V sid.SID `json:"v"`
}

type sidListPair struct {
	K sid.SID   `json:"k"`
	V []sid.SID `json:"v"`
}

type sidBoolPair struct {
	K sid.SID `json:"k"`
	V bool    `json:"v"`
}

type wireSchema struct {
	Subclasses        []sidListPair `json:"subclasses,omitempty"`
	ShapeSIDs         []sidBoolPair `json:"shape_sids,omitempty"`
	PredicateDatatype []sidPair     `json:"predicate_datatype,omitempty"`
}

// MarshalJSON implements the struct-keyed-map workaround above.
func (s *Schema) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var w wireSchema
	for k, v := range s.Subclasses {
		w.Subclasses = append(w.Subclasses, sidListPair{K: k, V: v})
	}
	for k, v := range s.ShapeSIDs {
		w.ShapeSIDs = append(w.ShapeSIDs, sidBoolPair{K: k, V: v})
	}
	for k, v := range s.PredicateDatatype {
		w.PredicateDatatype = append(w.PredicateDatatype, sidPair{K: k, V: v})
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements the struct-keyed-map workaround above.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var w wireSchema
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Subclasses = map[sid.SID][]sid.SID{}
	for _, p := range w.Subclasses {
		s.Subclasses[p.K] = p.V
	}
	s.ShapeSIDs = map[sid.SID]bool{}
	for _, p := range w.ShapeSIDs {
		s.ShapeSIDs[p.K] = p.V
	}
	s.PredicateDatatype = map[sid.SID]sid.SID{}
	for _, p := range w.PredicateDatatype {
		s.PredicateDatatype[p.K] = p.V
	}
	s.shapePath = map[sid.SID]sid.SID{}
	s.shapeDatatype = map[sid.SID]sid.SID{}
	return nil
}

func appendUnique(list []sid.SID, s sid.SID) []sid.SID {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func cloneMultiMap(m map[sid.SID][]sid.SID) map[sid.SID][]sid.SID {
	out := make(map[sid.SID][]sid.SID, len(m))
	for k, v := range m {
		out[k] = append([]sid.SID(nil), v...)
	}
	return out
}

func cloneBoolMap(m map[sid.SID]bool) map[sid.SID]bool {
	out := make(map[sid.SID]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSIDMap(m map[sid.SID]sid.SID) map[sid.SID]sid.SID {
	out := make(map[sid.SID]sid.SID, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

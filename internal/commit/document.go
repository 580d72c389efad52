// Package commit implements the commit assembler of spec.md §4.5:
// translating an inbound JSON-LD commit document and the data document it
// references into flakes, folding them into a DB snapshot, and emitting
// the commit's own metadata flakes. Grounded on no direct teacher analog
// (beads has no JSON-LD ingestion); built in the teacher's small-struct,
// explicit-constructor style seen throughout internal/storage, reusing
// internal/datatype for coercion and internal/sid for IRI interning.
package commit

import "encoding/json"

// Node is a single JSON-LD node as decoded from an inbound document:
// "@id" and "@type" are recognized specially; every other key is a
// predicate IRI mapped to one or more values.
type Node map[string]any

// DataRef is the `f:data` reference on a commit document (spec.md §6.2).
// It carries only the address of the data document; it holds no inline
// summary fields (flake count, size, t), so a reader must fetch D to
// learn them.
type DataRef struct {
	Address string `json:"address"`
}

// PrevRef is the `f:previous` reference on a commit document.
type PrevRef struct {
	Address string `json:"address"`
}

// IndexRoots is the optional `f:index` root-per-comparator snapshot a
// commit may carry (spec.md §3.6).
type IndexRoots struct {
	SPOT string `json:"spot,omitempty"`
	POST string `json:"post,omitempty"`
	OPST string `json:"opst,omitempty"`
	TSPO string `json:"tspo,omitempty"`
}

// Document is a commit document (spec.md §3.6/§6.2).
type Document struct {
	Data     DataRef     `json:"data"`
	Previous *PrevRef    `json:"previous,omitempty"`
	Issuer   string      `json:"issuer,omitempty"`
	Message  string      `json:"message,omitempty"`
	Time     string      `json:"time,omitempty"`
	V        int         `json:"v"`
	Index    *IndexRoots `json:"index,omitempty"`
}

// DataDoc is the data document a commit's `f:data.address` points to: the
// inline JSON-LD assert/retract node lists plus the new namespaces they
// introduce (spec.md §6.2's `f:data` shape).
type DataDoc struct {
	T          *int64 `json:"t"`
	Assert     []Node `json:"assert,omitempty"`
	Retract    []Node `json:"retract,omitempty"`
	Namespaces []string `json:"namespaces,omitempty"`
}

// MarshalDataDoc is a small helper for callers (Assembler.Stage, tests)
// assembling a data document to hand to the assembler.
func MarshalDataDoc(d DataDoc) ([]byte, error) { return json.Marshal(d) }

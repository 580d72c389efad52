package commit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fluree/flurecore/internal/datatype"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/store"
	"github.com/fluree/flurecore/internal/telemetry"
)

var (
	rdfType = sid.SID{NS: sid.NSRDF, Name: "type"}
	anyURI  = datatype.DatatypeSID(datatype.AnyURI)
)

// fluree-namespace metadata predicates (spec.md §4.5 step 6).
var (
	metaAddress  = sid.SID{NS: sid.NSFluree, Name: "address"}
	metaPrevious = sid.SID{NS: sid.NSFluree, Name: "previous"}
	metaIssuer   = sid.SID{NS: sid.NSFluree, Name: "issuer"}
	metaMessage  = sid.SID{NS: sid.NSFluree, Name: "message"}
	metaTime     = sid.SID{NS: sid.NSFluree, Name: "time"}
	metaV        = sid.SID{NS: sid.NSFluree, Name: "v"}
	metaFlakes   = sid.SID{NS: sid.NSFluree, Name: "flakes"}
	metaSize     = sid.SID{NS: sid.NSFluree, Name: "size"}
)

// Assembler translates commit documents into flakes and merges them into
// a DB snapshot, per spec.md §4.5. It is shared by staging a local
// transaction and by internal/merge's replay of a foreign commit chain.
type Assembler struct {
	Conn store.Conn
}

// Assemble runs the full 8-step pipeline of spec.md §4.5 against base,
// returning the resulting snapshot.
func (a *Assembler) Assemble(ctx context.Context, base *db.DB, doc *Document) (*db.DB, error) {
	if doc.Data.Address == "" {
		return nil, ferr.New(ferr.InvalidCommit, "commit carries no data address")
	}

	// Step 1: fetch D.
	raw, err := a.Conn.CRead(ctx, doc.Data.Address)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageError, err, "reading data document %s", doc.Data.Address)
	}
	if raw == nil {
		return nil, ferr.New(ferr.InvalidCommit, "no data document found at %s", doc.Data.Address)
	}
	var data DataDoc
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ferr.Wrap(ferr.InvalidCommit, err, "decoding data document %s", doc.Data.Address)
	}

	// Step 2: t' = D.t; enforce contiguity.
	if data.T == nil {
		return nil, ferr.New(ferr.InvalidCommit, "data document %s carries no t", doc.Data.Address)
	}
	want := base.T + 1
	if *data.T != want {
		return nil, ferr.New(ferr.InvalidCommit, "commit t %d is not contiguous with db.t %d (want %d)", *data.T, base.T, want)
	}
	t := *data.T

	// Step 3: extend namespaces.
	namespaces, err := base.Namespaces.WithNamespaces(data.Namespaces)
	if err != nil {
		return nil, ferr.Wrap(ferr.InvalidCommit, err, "extending namespaces")
	}

	// Step 4: enrich assertion nodes with nested-ref datatype context.
	enrich(data.Assert)

	// Step 5: translate nodes into flakes.
	assertFlakes, err := translateNodes(data.Assert, t, true, namespaces, sid.ModeLenient, base.Schema)
	if err != nil {
		return nil, err
	}
	retractFlakes, err := translateNodes(data.Retract, t, false, namespaces, sid.ModeStrict, base.Schema)
	if err != nil {
		return nil, err
	}
	all := append(assertFlakes, retractFlakes...)
	if len(all) == 0 {
		return nil, ferr.New(ferr.EmptyCommit, "commit produced no flakes (no asserts or retracts)")
	}

	// Step 6: write the commit document itself — content-addressed, so
	// replaying the identical bytes elsewhere (internal/merge) yields
	// the same address — then emit metadata flakes naming it. Writing
	// before building the metadata flakes (rather than pre-deriving an
	// id) avoids any self-reference: C's serialized bytes never embed
	// its own address, only D's.
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, ferr.Wrap(ferr.InvalidCommit, err, "encoding commit document")
	}
	wr, err := a.Conn.CWrite(ctx, base.Ledger, docBytes)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageError, err, "writing commit document")
	}
	commitAddr := wr.Address
	all = append(all, metaFlakesFor(commitAddr, doc, t, all)...)

	// Step 7: merge_flakes — assoc t', update novelty, hydrate schema.
	merged := base.WithNamespaces(namespaces).MergeFlakes(t, all)
	if telemetry.Instruments.NoveltyBytes != nil {
		telemetry.Instruments.NoveltyBytes.Add(ctx, int64(merged.Novelty.Size()-base.Novelty.Size()))
	}

	// Step 8: return db'.
	return merged.WithCommit(commitAddr), nil
}

// Stage is a convenience entry point for locally originating a commit:
// it writes data as the referenced data document, chains a commit
// document from base's current commit address, and runs the result
// through Assemble.
func (a *Assembler) Stage(ctx context.Context, base *db.DB, data DataDoc, issuer, message string) (*db.DB, error) {
	raw, err := MarshalDataDoc(data)
	if err != nil {
		return nil, ferr.Wrap(ferr.InvalidCommit, err, "encoding data document")
	}
	wr, err := a.Conn.CWrite(ctx, base.Ledger, raw)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageError, err, "writing data document")
	}

	doc := &Document{
		Data:    DataRef{Address: wr.Address},
		Issuer:  issuer,
		Message: message,
		Time:    time.Now().UTC().Format(time.RFC3339),
		V:       1,
	}
	if base.CommitAddr != "" {
		doc.Previous = &PrevRef{Address: base.CommitAddr}
	}
	return a.Assemble(ctx, base, doc)
}

func metaFlakesFor(commitAddr string, doc *Document, t int64, dataFlakes []flake.Flake) []flake.Flake {
	subj := sid.SID{NS: sid.NSFluree, Name: commitAddr}
	var out []flake.Flake
	add := func(pred sid.SID, value any, dt string) {
		out = append(out, flake.Create(subj, pred, flake.LitObject(value), datatype.DatatypeSID(dt), t, true, nil))
	}
	add(metaAddress, doc.Data.Address, datatype.String)
	if doc.Previous != nil {
		add(metaPrevious, doc.Previous.Address, datatype.String)
	}
	if doc.Issuer != "" {
		add(metaIssuer, doc.Issuer, datatype.String)
	}
	if doc.Message != "" {
		add(metaMessage, doc.Message, datatype.String)
	}
	if doc.Time != "" {
		add(metaTime, doc.Time, datatype.String)
	}
	add(metaV, int64(doc.V), datatype.Long)
	add(metaFlakes, int64(len(dataFlakes)), datatype.Long)

	var size int64
	for _, f := range dataFlakes {
		size += int64(flake.Size(f))
	}
	add(metaSize, size, datatype.Long)
	return out
}

// enrich implements spec.md §4.5 step 4: for each nested ref object
// ({"@id": x, ...}) whose id matches a top-level node in nodes, merge
// the top-level node's own properties into the ref in place so it
// carries full datatype context for any consumer that inspects the
// nested object directly (e.g. a nested SHACL sh:node validation).
func enrich(nodes []Node) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if id, ok := n["@id"].(string); ok {
			byID[id] = n
		}
	}
	for _, n := range nodes {
		for k, v := range n {
			if k == "@id" || k == "@type" {
				continue
			}
			switch vv := v.(type) {
			case map[string]any:
				mergeRefInto(Node(vv), byID)
			case []any:
				for _, item := range vv {
					if m, ok := item.(map[string]any); ok {
						mergeRefInto(Node(m), byID)
					}
				}
			}
		}
	}
}

func mergeRefInto(ref Node, byID map[string]Node) {
	id, ok := ref["@id"].(string)
	if !ok {
		return
	}
	top, ok := byID[id]
	if !ok {
		return
	}
	for k, v := range top {
		if k == "@id" {
			continue
		}
		if _, exists := ref[k]; !exists {
			ref[k] = v
		}
	}
}

// translateNodes implements spec.md §4.5 step 5: one call translates an
// entire assert or retract node list into flakes under the given op and
// encode mode (ModeLenient for asserts — namespaces were just extended —
// ModeStrict for retracts, so a retraction referencing a namespace the
// db has never seen fails with UnknownNamespace rather than silently
// minting one).
func translateNodes(nodes []Node, t int64, op bool, codec *sid.Codec, mode sid.Mode, schema *db.Schema) ([]flake.Flake, error) {
	var out []flake.Flake
	for _, n := range nodes {
		id, ok := n["@id"].(string)
		if !ok {
			return nil, ferr.New(ferr.InvalidCommit, "node missing @id")
		}
		subj, err := codec.Encode(id, mode)
		if err != nil {
			return nil, ferr.Wrap(ferr.UnknownNamespace, err, "encoding subject %s", id)
		}

		if types := normalizeToSlice(n["@type"]); len(types) > 0 {
			for _, tv := range types {
				typeIRI, ok := tv.(string)
				if !ok {
					continue
				}
				typeSID, err := codec.Encode(typeIRI, mode)
				if err != nil {
					return nil, ferr.Wrap(ferr.UnknownNamespace, err, "encoding type %s", typeIRI)
				}
				out = append(out, flake.Create(subj, rdfType, flake.SIDObject(typeSID), anyURI, t, op, nil))
			}
		}

		for k, v := range n {
			if k == "@id" || k == "@type" {
				continue
			}
			pid, err := codec.Encode(k, mode)
			if err != nil {
				return nil, ferr.Wrap(ferr.UnknownNamespace, err, "encoding predicate %s", k)
			}
			flakes, err := translateProperty(subj, pid, v, t, op, codec, mode, schema)
			if err != nil {
				return nil, err
			}
			out = append(out, flakes...)
		}
	}
	return out, nil
}

func translateProperty(subj, pid sid.SID, raw any, t int64, op bool, codec *sid.Codec, mode sid.Mode, schema *db.Schema) ([]flake.Flake, error) {
	if listObj, ok := raw.(map[string]any); ok {
		if list, ok := listObj["@list"]; ok {
			items := normalizeToSlice(list)
			var out []flake.Flake
			for i, item := range items {
				idx := i
				f, err := valueFlake(subj, pid, item, t, op, codec, mode, schema, &idx)
				if err != nil {
					return nil, err
				}
				out = append(out, f)
			}
			return out, nil
		}
	}

	items := normalizeToSlice(raw)
	var out []flake.Flake
	for _, item := range items {
		f, err := valueFlake(subj, pid, item, t, op, codec, mode, schema, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func normalizeToSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

func valueFlake(subj, pid sid.SID, item any, t int64, op bool, codec *sid.Codec, mode sid.Mode, schema *db.Schema, listIndex *int) (flake.Flake, error) {
	m := metaFor(listIndex, "")

	if node, ok := item.(map[string]any); ok {
		if refID, ok := node["@id"].(string); ok {
			refSID, err := codec.Encode(refID, mode)
			if err != nil {
				return flake.Flake{}, ferr.Wrap(ferr.UnknownNamespace, err, "encoding ref %s", refID)
			}
			return flake.Create(subj, pid, flake.SIDObject(refSID), anyURI, t, op, m), nil
		}

		val := node["@value"]
		declaredDT, _ := node["@type"].(string)
		lang, _ := node["@language"].(string)
		if lang != "" {
			m = metaFor(listIndex, lang)
		}
		return literalFlake(subj, pid, val, declaredDT, lang, t, op, m, schema)
	}

	return literalFlake(subj, pid, item, "", "", t, op, m, schema)
}

func metaFor(listIndex *int, lang string) *flake.Meta {
	if listIndex == nil && lang == "" {
		return nil
	}
	m := &flake.Meta{Lang: lang}
	if listIndex != nil {
		i := *listIndex
		m.ListIndex = &i
	}
	return m
}

func literalFlake(subj, pid sid.SID, val any, declaredDT, lang string, t int64, op bool, m *flake.Meta, schema *db.Schema) (flake.Flake, error) {
	// An explicit @type always wins; a shape-declared datatype only
	// fills in when the document left the type implicit (spec.md §9
	// scenario S4), and a bare inference is the last resort.
	requiredDT := localName(declaredDT)
	if requiredDT == "" {
		if dt, ok := schema.RequiredDatatype(pid); ok && dt.NS == sid.NSXSD {
			requiredDT = dt.Name
		}
	}
	if requiredDT == "" {
		requiredDT = datatype.Infer(val, lang != "")
	}

	coerced, err := datatype.Coerce(val, requiredDT)
	if err != nil {
		return flake.Flake{}, err
	}
	return flake.Create(subj, pid, flake.LitObject(coerced), datatype.DatatypeSID(requiredDT), t, op, m), nil
}

// localName strips a full IRI down to its trailing segment, the local
// name coercion and datatype lookups operate on.
func localName(iri string) string {
	if iri == "" {
		return ""
	}
	if idx := strings.LastIndexAny(iri, "#/"); idx >= 0 {
		return iri[idx+1:]
	}
	return iri
}

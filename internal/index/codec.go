package index

import (
	"encoding/json"
	"fmt"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
)

// wireSID/wireObject/wireFlake are the JSON-serializable mirrors of the
// flake package's types; kept private to this package so the content
// address of a node depends only on this stable wire format, not on Go's
// internal struct layout.
type wireSID struct {
	NS   uint32 `json:"ns"`
	Name string `json:"name"`
}

func toWireSID(s sid.SID) wireSID { return wireSID{NS: s.NS, Name: s.Name} }
func (w wireSID) toSID() sid.SID  { return sid.SID{NS: w.NS, Name: w.Name} }

type wireObject struct {
	SID     *wireSID `json:"sid,omitempty"`
	Literal any      `json:"lit,omitempty"`
}

func toWireObject(o flake.Object) wireObject {
	if o.IsSID {
		w := toWireSID(o.SID)
		return wireObject{SID: &w}
	}
	return wireObject{Literal: o.Literal}
}

func (w wireObject) toObject() flake.Object {
	if w.SID != nil {
		return flake.SIDObject(w.SID.toSID())
	}
	return flake.LitObject(w.Literal)
}

type wireMeta struct {
	ListIndex *int   `json:"i,omitempty"`
	Lang      string `json:"lang,omitempty"`
	Reasoned  string `json:"reasoned,omitempty"`
}

type wireFlake struct {
	S  wireSID    `json:"s"`
	P  wireSID    `json:"p"`
	O  wireObject `json:"o"`
	DT wireSID    `json:"dt"`
	T  int64      `json:"t"`
	Op bool       `json:"op"`
	M  *wireMeta  `json:"m,omitempty"`
}

func toWireFlake(f flake.Flake) wireFlake {
	wf := wireFlake{S: toWireSID(f.S), P: toWireSID(f.P), O: toWireObject(f.O), DT: toWireSID(f.DT), T: f.T, Op: f.Op}
	if f.M != nil {
		wf.M = &wireMeta{ListIndex: f.M.ListIndex, Lang: f.M.Lang, Reasoned: f.M.Reasoned}
	}
	return wf
}

func (w wireFlake) toFlake() flake.Flake {
	var m *flake.Meta
	if w.M != nil {
		m = &flake.Meta{ListIndex: w.M.ListIndex, Lang: w.M.Lang, Reasoned: w.M.Reasoned}
	}
	return flake.Create(w.S.toSID(), w.P.toSID(), w.O.toObject(), w.DT.toSID(), w.T, w.Op, m)
}

type wireLeaf struct {
	Cmp       flake.Index `json:"cmp"`
	First     wireFlake   `json:"first"`
	RHS       *wireFlake  `json:"rhs,omitempty"`
	Leftmost  bool        `json:"leftmost"`
	Flakes    []wireFlake `json:"flakes"`
	T         int64       `json:"t"`
	SizeBytes int         `json:"size_bytes"`
}

// EncodeLeaf serializes a leaf to its canonical wire bytes.
func EncodeLeaf(l *Leaf) ([]byte, error) {
	wl := wireLeaf{Cmp: l.Cmp, First: toWireFlake(l.First), Leftmost: l.IsLeftmost, T: l.TValue, SizeBytes: l.SizeBytesVal}
	if l.RHS != nil {
		w := toWireFlake(*l.RHS)
		wl.RHS = &w
	}
	l.Flakes.Each(func(f flake.Flake) bool {
		wl.Flakes = append(wl.Flakes, toWireFlake(f))
		return true
	})
	return json.Marshal(wl)
}

// DecodeLeaf parses a leaf from its wire bytes, re-establishing id.
func DecodeLeaf(id string, data []byte) (*Leaf, error) {
	var wl wireLeaf
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("index: decode leaf: %w", err)
	}
	set := sortedset.New[flake.Flake](flake.Comparator(wl.Cmp))
	items := make([]flake.Flake, 0, len(wl.Flakes))
	for _, wf := range wl.Flakes {
		items = append(items, wf.toFlake())
	}
	set = set.ConjAll(items)
	l := &Leaf{IDValue: id, Cmp: wl.Cmp, First: wl.First.toFlake(), IsLeftmost: wl.Leftmost, Flakes: set, TValue: wl.T, SizeBytesVal: wl.SizeBytes}
	if wl.RHS != nil {
		f := wl.RHS.toFlake()
		l.RHS = &f
	}
	return l, nil
}

type wireChildRef struct {
	ID         string     `json:"id"`
	Kind       store.Kind `json:"kind"`
	FirstFlake wireFlake  `json:"first"`
	RHSFlake   *wireFlake `json:"rhs,omitempty"`
	Leftmost   bool       `json:"leftmost"`
	SizeBytes  int        `json:"size_bytes"`
	T          int64      `json:"t"`
}

type wireBranch struct {
	Cmp       flake.Index    `json:"cmp"`
	First     wireFlake      `json:"first"`
	RHS       *wireFlake     `json:"rhs,omitempty"`
	Leftmost  bool           `json:"leftmost"`
	Children  []wireChildRef `json:"children"`
	T         int64          `json:"t"`
	SizeBytes int            `json:"size_bytes"`
}

// EncodeBranch serializes a branch to its canonical wire bytes. All
// children must already carry resolved (non-placeholder) IDs.
func EncodeBranch(b *Branch) ([]byte, error) {
	wb := wireBranch{Cmp: b.Cmp, First: toWireFlake(b.First), Leftmost: b.IsLeftmost, T: b.TValue, SizeBytes: b.SizeBytesVal}
	if b.RHS != nil {
		w := toWireFlake(*b.RHS)
		wb.RHS = &w
	}
	for _, c := range b.Children {
		wc := wireChildRef{ID: c.ID, Kind: c.Kind, FirstFlake: toWireFlake(c.FirstFlake), Leftmost: c.Leftmost, SizeBytes: c.SizeBytes, T: c.T}
		if c.RHSFlake != nil {
			w := toWireFlake(*c.RHSFlake)
			wc.RHSFlake = &w
		}
		wb.Children = append(wb.Children, wc)
	}
	return json.Marshal(wb)
}

// DecodeBranch parses a branch from its wire bytes.
func DecodeBranch(id string, data []byte) (*Branch, error) {
	var wb wireBranch
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("index: decode branch: %w", err)
	}
	b := &Branch{IDValue: id, Cmp: wb.Cmp, First: wb.First.toFlake(), IsLeftmost: wb.Leftmost, TValue: wb.T, SizeBytesVal: wb.SizeBytes}
	if wb.RHS != nil {
		f := wb.RHS.toFlake()
		b.RHS = &f
	}
	for _, wc := range wb.Children {
		c := ChildRef{ID: wc.ID, Kind: wc.Kind, FirstFlake: wc.FirstFlake.toFlake(), Leftmost: wc.Leftmost, SizeBytes: wc.SizeBytes, T: wc.T}
		if wc.RHSFlake != nil {
			f := wc.RHSFlake.toFlake()
			c.RHSFlake = &f
		}
		b.Children = append(b.Children, c)
	}
	return b, nil
}

// Package sid implements the Subject ID codec: the per-database mapping
// between IRIs and compact (namespace-code, name) pairs described in
// spec.md §3.1 / §4.1.
//
// The codec is modeled on the teacher's namespace-prefix bookkeeping in
// internal/namespace, generalized from issue-ID prefixes to arbitrary IRI
// namespaces. Lookups go straight to the codec's two maps; there is no
// decode cache.
package sid

import (
	"strings"
	"sync"

	"github.com/fluree/flurecore/internal/ferr"
)

// SID is a compact Subject ID: a namespace code plus a local name.
type SID struct {
	NS   uint32
	Name string
}

func (s SID) String() string { return s.Name }

// Well-known namespace codes, reserved at seed time the way the teacher
// reserves a stable "bd" issue prefix. These never change once assigned.
const (
	NSRDF uint32 = iota
	NSRDFS
	NSXSD
	NSSH
	NSFluree
	nsSeed // first code available for user-introduced namespaces
)

var seedPrefixes = map[string]uint32{
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#":   NSRDF,
	"http://www.w3.org/2000/01/rdf-schema#":         NSRDFS,
	"http://www.w3.org/2001/XMLSchema#":             NSXSD,
	"http://www.w3.org/ns/shacl#":                   NSSH,
	"https://ns.flur.ee/ledger#":                    NSFluree,
}

// splitIRI separates an IRI into a namespace prefix and local name using
// the last '#' or '/' separator, matching common IRI conventions.
func splitIRI(iri string) (ns, name string) {
	if idx := strings.LastIndexByte(iri, '#'); idx >= 0 {
		return iri[:idx+1], iri[idx+1:]
	}
	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 {
		return iri[:idx+1], iri[idx+1:]
	}
	return "", iri
}

// Mode controls whether Codec.Encode may allocate new namespace codes.
type Mode int

const (
	// ModeLenient allocates a new namespace code for any unknown prefix.
	ModeLenient Mode = iota
	// ModeStrict fails with ferr.UnknownNamespace when the prefix is
	// unknown; used when encoding retraction flakes (spec.md §4.1).
	ModeStrict
)

// Codec is a single database's append-only IRI <-> SID mapping. It is safe
// for concurrent reads; writes (namespace allocation) take a mutex. Codec
// values are copy-on-write: With* returns a new Codec sharing no mutable
// state with the receiver, matching the "namespace map is append-only and
// copy-on-write per DB snapshot" concurrency invariant in spec.md §5.
type Codec struct {
	mu         sync.RWMutex
	namespaces map[string]uint32 // IRI namespace -> code
	codes      map[uint32]string // code -> IRI namespace
	maxCode    uint32
}

// New returns a Codec seeded with the well-known namespace prefixes.
func New() *Codec {
	c := &Codec{
		namespaces: make(map[string]uint32, len(seedPrefixes)+8),
		codes:      make(map[uint32]string, len(seedPrefixes)+8),
		maxCode:    nsSeed - 1,
	}
	for ns, code := range seedPrefixes {
		c.namespaces[ns] = code
		c.codes[code] = ns
	}
	return c
}

// Clone returns a deep-enough copy suitable for copy-on-write extension.
func (c *Codec) Clone() *Codec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &Codec{
		namespaces: make(map[string]uint32, len(c.namespaces)),
		codes:      make(map[uint32]string, len(c.codes)),
		maxCode:    c.maxCode,
	}
	for k, v := range c.namespaces {
		out.namespaces[k] = v
	}
	for k, v := range c.codes {
		out.codes[k] = v
	}
	return out
}

// Encode maps an IRI to a SID, allocating a new namespace code if needed
// and permitted by mode.
func (c *Codec) Encode(iri string, mode Mode) (SID, error) {
	ns, name := splitIRI(iri)

	c.mu.RLock()
	code, ok := c.namespaces[ns]
	c.mu.RUnlock()
	if ok {
		return SID{NS: code, Name: name}, nil
	}

	if mode == ModeStrict {
		return SID{}, ferr.New(ferr.UnknownNamespace, "namespace %q not present in codec (strict mode)", ns)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check under write lock in case of a racing allocation.
	if code, ok := c.namespaces[ns]; ok {
		return SID{NS: code, Name: name}, nil
	}
	c.maxCode++
	code = c.maxCode
	c.namespaces[ns] = code
	c.codes[code] = ns
	return SID{NS: code, Name: name}, nil
}

// Decode maps a SID back to its original IRI.
func (c *Codec) Decode(s SID) (string, error) {
	c.mu.RLock()
	ns, ok := c.codes[s.NS]
	c.mu.RUnlock()
	if !ok {
		return "", ferr.New(ferr.UnknownNamespace, "namespace code %d not present in codec", s.NS)
	}
	return ns + s.Name, nil
}

// WithNamespaces extends the codec with any new IRIs, assigning codes in
// sorted order of their namespace prefix so that replaying the same set of
// new namespaces always yields the same codes (spec.md §4.1,
// with_namespaces). Returns a new Codec; the receiver is untouched.
func (c *Codec) WithNamespaces(newIRIs []string) (*Codec, error) {
	prefixes := make(map[string]struct{})
	for _, iri := range newIRIs {
		ns, _ := splitIRI(iri)
		prefixes[ns] = struct{}{}
	}
	sorted := make([]string, 0, len(prefixes))
	for ns := range prefixes {
		sorted = append(sorted, ns)
	}
	sortStrings(sorted)

	out := c.Clone()
	for _, ns := range sorted {
		if _, ok := out.namespaces[ns]; ok {
			continue
		}
		out.maxCode++
		out.namespaces[ns] = out.maxCode
		out.codes[out.maxCode] = ns
	}
	return out, nil
}

func sortStrings(s []string) {
	// Simple insertion sort is fine: namespace sets per commit are tiny.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// MaxNamespaceCode reports the highest allocated namespace code.
func (c *Codec) MaxNamespaceCode() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxCode
}

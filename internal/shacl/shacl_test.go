package shacl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/store/memstore"
)

func ptr(t int64) *int64 { return &t }

func stageShapes(t *testing.T, conn *memstore.Store, assert []commit.Node, ns []string) *db.DB {
	t.Helper()
	asm := &commit.Assembler{Conn: conn}
	base := db.New(conn, "main")
	out, err := asm.Stage(context.Background(), base, commit.DataDoc{
		T:          ptr(1),
		Assert:     assert,
		Namespaces: ns,
	}, "tester", "seed shapes")
	require.NoError(t, err)
	return out
}

// TestValidateFlagsMinCountViolation exercises the count-constraint
// taxonomy (spec.md §4.9.3): a person shape requiring at least one
// ex:name value rejects a person node that has none.
func TestValidateFlagsMinCountViolation(t *testing.T) {
	conn := memstore.New()
	ns := []string{"https://example.org/", "http://www.w3.org/ns/shacl#"}

	d := stageShapes(t, conn, []commit.Node{
		{
			"@id":                "https://example.org/PersonShape",
			"@type":              "http://www.w3.org/ns/shacl#NodeShape",
			"http://www.w3.org/ns/shacl#targetClass": map[string]any{"@id": "https://example.org/Person"},
			"http://www.w3.org/ns/shacl#property":    map[string]any{"@id": "https://example.org/PersonShape/name"},
		},
		{
			"@id": "https://example.org/PersonShape/name",
			"http://www.w3.org/ns/shacl#path":     map[string]any{"@id": "https://example.org/name"},
			"http://www.w3.org/ns/shacl#minCount": float64(1),
		},
		{
			"@id":   "https://example.org/dave",
			"@type": "https://example.org/Person",
		},
	}, ns)

	shapeSID, err := d.Namespaces.Encode("https://example.org/PersonShape", sid.ModeStrict)
	require.NoError(t, err)

	c, err := NewCompiler(16)
	require.NoError(t, err)
	rep, err := Validate(context.Background(), d, c, shapeSID)
	require.NoError(t, err)
	require.False(t, rep.Conforms)
	require.Len(t, rep.Violations, 1)
	require.Equal(t, "minCount", rep.Violations[0].Constraint)
}

// TestValidateFlagsClosedShapeViolation covers scenario S5: a closed
// shape rejects a node carrying an undeclared property.
func TestValidateFlagsClosedShapeViolation(t *testing.T) {
	conn := memstore.New()
	ns := []string{"https://example.org/", "http://www.w3.org/ns/shacl#"}

	d := stageShapes(t, conn, []commit.Node{
		{
			"@id":   "https://example.org/StrictShape",
			"@type": "http://www.w3.org/ns/shacl#NodeShape",
			"http://www.w3.org/ns/shacl#targetClass": map[string]any{"@id": "https://example.org/Strict"},
			"http://www.w3.org/ns/shacl#property":    map[string]any{"@id": "https://example.org/StrictShape/name"},
			"http://www.w3.org/ns/shacl#closed":      true,
		},
		{
			"@id": "https://example.org/StrictShape/name",
			"http://www.w3.org/ns/shacl#path": map[string]any{"@id": "https://example.org/name"},
		},
		{
			"@id":                     "https://example.org/erin",
			"@type":                   "https://example.org/Strict",
			"https://example.org/name": "Erin",
			"https://example.org/extra": "surprise",
		},
	}, ns)

	shapeSID, err := d.Namespaces.Encode("https://example.org/StrictShape", sid.ModeStrict)
	require.NoError(t, err)

	c, err := NewCompiler(16)
	require.NoError(t, err)
	rep, err := Validate(context.Background(), d, c, shapeSID)
	require.NoError(t, err)
	require.False(t, rep.Conforms)

	found := false
	for _, v := range rep.Violations {
		if v.Constraint == "closed" {
			found = true
		}
	}
	require.True(t, found, "expected a closed-shape violation mentioning the undeclared property")
}

// TestValidateConformsWhenConstraintsSatisfied is the conformance
// baseline: a well-formed node passes minCount/datatype checks.
func TestValidateConformsWhenConstraintsSatisfied(t *testing.T) {
	conn := memstore.New()
	ns := []string{"https://example.org/", "http://www.w3.org/ns/shacl#", "http://www.w3.org/2001/XMLSchema#"}

	d := stageShapes(t, conn, []commit.Node{
		{
			"@id":   "https://example.org/AgeShape",
			"@type": "http://www.w3.org/ns/shacl#NodeShape",
			"http://www.w3.org/ns/shacl#targetClass": map[string]any{"@id": "https://example.org/Person"},
			"http://www.w3.org/ns/shacl#property":    map[string]any{"@id": "https://example.org/AgeShape/age"},
		},
		{
			"@id": "https://example.org/AgeShape/age",
			"http://www.w3.org/ns/shacl#path":     map[string]any{"@id": "https://example.org/age"},
			"http://www.w3.org/ns/shacl#datatype":  map[string]any{"@id": "http://www.w3.org/2001/XMLSchema#integer"},
			"http://www.w3.org/ns/shacl#minCount": float64(1),
		},
		{
			"@id":                    "https://example.org/frank",
			"@type":                  "https://example.org/Person",
			"https://example.org/age": map[string]any{"@value": float64(40), "@type": "http://www.w3.org/2001/XMLSchema#integer"},
		},
	}, ns)

	shapeSID, err := d.Namespaces.Encode("https://example.org/AgeShape", sid.ModeStrict)
	require.NoError(t, err)

	c, err := NewCompiler(16)
	require.NoError(t, err)
	rep, err := Validate(context.Background(), d, c, shapeSID)
	require.NoError(t, err)
	require.True(t, rep.Conforms)
	require.Empty(t, rep.Violations)
}

// TestCompilerCachesShape ensures a second Compile call for the same
// shape SID returns a pointer-identical Shape, exercising the LRU cache.
func TestCompilerCachesShape(t *testing.T) {
	conn := memstore.New()
	ns := []string{"https://example.org/", "http://www.w3.org/ns/shacl#"}
	d := stageShapes(t, conn, []commit.Node{
		{"@id": "https://example.org/EmptyShape", "@type": "http://www.w3.org/ns/shacl#NodeShape"},
	}, ns)

	shapeSID, err := d.Namespaces.Encode("https://example.org/EmptyShape", sid.ModeStrict)
	require.NoError(t, err)

	c, err := NewCompiler(16)
	require.NoError(t, err)
	s1, err := c.Compile(context.Background(), d, shapeSID)
	require.NoError(t, err)
	s2, err := c.Compile(context.Background(), d, shapeSID)
	require.NoError(t, err)
	require.Same(t, s1, s2)
}

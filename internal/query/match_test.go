package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/store/memstore"
)

func ptr(t int64) *int64 { return &t }

func seedPeople(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()
	conn := memstore.New()
	asm := &commit.Assembler{Conn: conn}
	base := db.New(conn, "main")
	out, err := asm.Stage(ctx, base, commit.DataDoc{
		T: ptr(1),
		Assert: []commit.Node{
			{"@id": "https://example.org/alice", "@type": "https://example.org/Person", "https://example.org/name": "Alice", "https://example.org/age": float64(30)},
			{"@id": "https://example.org/bob", "@type": "https://example.org/Person", "https://example.org/name": "Bob", "https://example.org/age": float64(25)},
			{"@id": "https://example.org/acme", "@type": "https://example.org/Org", "https://example.org/name": "Acme"},
		},
		Namespaces: []string{"https://example.org/"},
	}, "tester", "seed")
	require.NoError(t, err)
	return out
}

func TestMatchTupleBindsObjectVariable(t *testing.T) {
	d := seedPeople(t)
	alice, err := d.Namespaces.Encode("https://example.org/alice", sid.ModeStrict)
	require.NoError(t, err)
	namePred, err := d.Namespaces.Encode("https://example.org/name", sid.ModeStrict)
	require.NoError(t, err)

	m := &Matcher{DB: d}
	sols, err := m.Search(context.Background(), Clause{
		Tuple(IRI(alice), IRI(namePred), Var("name")),
	}, nil)
	require.NoError(t, err)
	require.Len(t, sols, 1)
	require.Equal(t, "Alice", sols[0]["name"].Value)
}

func TestMatchClassExpandsSubjectsOfType(t *testing.T) {
	d := seedPeople(t)
	personCls, err := d.Namespaces.Encode("https://example.org/Person", sid.ModeStrict)
	require.NoError(t, err)

	m := &Matcher{DB: d}
	sols, err := m.Search(context.Background(), Clause{
		ClassPattern(Var("p"), personCls),
	}, nil)
	require.NoError(t, err)
	require.Len(t, sols, 2)
}

func TestMatchOptionalFallsBackWhenInnerEmpty(t *testing.T) {
	d := seedPeople(t)
	alice, err := d.Namespaces.Encode("https://example.org/alice", sid.ModeStrict)
	require.NoError(t, err)
	unusedPred, err := d.Namespaces.Encode("https://example.org/nickname", sid.ModeLenient)
	require.NoError(t, err)

	m := &Matcher{DB: d}
	sols, err := m.Search(context.Background(), Clause{
		Optional(Clause{Tuple(IRI(alice), IRI(unusedPred), Var("nick"))}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, sols, 1)
	_, bound := sols[0]["nick"]
	require.False(t, bound)
}

func TestMatchUnionConcatenatesBranches(t *testing.T) {
	d := seedPeople(t)
	alice, err := d.Namespaces.Encode("https://example.org/alice", sid.ModeStrict)
	require.NoError(t, err)
	bob, err := d.Namespaces.Encode("https://example.org/bob", sid.ModeStrict)
	require.NoError(t, err)
	namePred, err := d.Namespaces.Encode("https://example.org/name", sid.ModeStrict)
	require.NoError(t, err)

	m := &Matcher{DB: d}
	sols, err := m.Search(context.Background(), Clause{
		Union(
			Clause{Tuple(IRI(alice), IRI(namePred), Var("name"))},
			Clause{Tuple(IRI(bob), IRI(namePred), Var("name"))},
		),
	}, nil)
	require.NoError(t, err)
	require.Len(t, sols, 2)
}

func TestMatchFilterDropsNonMatchingSolutions(t *testing.T) {
	d := seedPeople(t)
	personCls, err := d.Namespaces.Encode("https://example.org/Person", sid.ModeStrict)
	require.NoError(t, err)
	namePred, err := d.Namespaces.Encode("https://example.org/name", sid.ModeStrict)
	require.NoError(t, err)

	m := &Matcher{DB: d}
	sols, err := m.Search(context.Background(), Clause{
		ClassPattern(Var("p"), personCls),
		Tuple(Var("p"), IRI(namePred), Var("name")),
		Filter(func(s Solution) (bool, error) {
			return s["name"].Value == "Alice", nil
		}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, sols, 1)
	require.Equal(t, "Alice", sols[0]["name"].Value)
}

func TestMatchClassExhaustsFuel(t *testing.T) {
	d := seedPeople(t)
	personCls, err := d.Namespaces.Encode("https://example.org/Person", sid.ModeStrict)
	require.NoError(t, err)

	m := &Matcher{DB: d, Fuel: 1}
	_, err = m.Search(context.Background(), Clause{
		ClassPattern(Var("p"), personCls),
	}, nil)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.FuelExhausted))
}

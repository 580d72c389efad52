package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/commit"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/store/memstore"
)

func ptr(t int64) *int64 { return &t }

// TestWrapPolicyScopesSSNToOwningIdentity exercises scenario S6: a
// policy grants role userRole full view access, then narrows
// schema:ssn to only the subject the identity's own ex:user edge points
// to.
func TestWrapPolicyScopesSSNToOwningIdentity(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()
	asm := &commit.Assembler{Conn: conn}
	ns := []string{
		"https://example.org/",
		"https://ns.flur.ee/ledger#",
		"http://schema.org/",
	}

	base := db.New(conn, "main")
	base, err := asm.Stage(ctx, base, commit.DataDoc{
		T: ptr(1),
		Assert: []commit.Node{
			{
				"@id":                              "https://example.org/policy1",
				"@type":                             "https://ns.flur.ee/ledger#Policy",
				"https://ns.flur.ee/ledger#allow":    map[string]any{"@id": "https://example.org/policy1/allowAll"},
				"https://ns.flur.ee/ledger#property":  map[string]any{"@id": "https://example.org/policy1/ssnRule"},
			},
			{
				"@id":                             "https://example.org/policy1/allowAll",
				"https://ns.flur.ee/ledger#targetRole": map[string]any{"@id": "https://example.org/userRole"},
				"https://ns.flur.ee/ledger#action":     "view",
			},
			{
				"@id":                              "https://example.org/policy1/ssnRule",
				"https://ns.flur.ee/ledger#predicate": map[string]any{"@id": "http://schema.org/ssn"},
				"https://ns.flur.ee/ledger#equals":    map[string]any{"@id": "https://example.org/policy1/ssnRule/path"},
			},
			{
				"@id": "https://example.org/policy1/ssnRule/path",
				"https://ns.flur.ee/ledger#list": []any{
					map[string]any{"@id": "https://ns.flur.ee/ledger#$identity"},
					map[string]any{"@id": "https://example.org/user"},
				},
			},
			{
				"@id": "https://example.org/policy1",
				"https://ns.flur.ee/ledger#targetClass": map[string]any{"@id": "https://example.org/Person"},
			},
			{
				"@id":                       "did:alice",
				"https://ns.flur.ee/ledger#role": map[string]any{"@id": "https://example.org/userRole"},
				"https://example.org/user":       map[string]any{"@id": "https://example.org/alice"},
			},
			{
				"@id":                    "https://example.org/alice",
				"@type":                  "https://example.org/Person",
				"http://schema.org/ssn":     "111-22-3333",
			},
			{
				"@id":                    "https://example.org/john",
				"@type":                  "https://example.org/Person",
				"http://schema.org/ssn":     "999-88-7777",
			},
		},
		Namespaces: ns,
	}, "tester", "seed policy")
	require.NoError(t, err)

	aliceIdentity, err := base.Namespaces.Encode("did:alice", sid.ModeStrict)
	require.NoError(t, err)

	wrapped, err := WrapPolicy(ctx, base, aliceIdentity)
	require.NoError(t, err)
	pc := wrapped.PolicyCtx.(*Context)
	require.Len(t, pc.Policies, 1)

	ssnPred, err := base.Namespaces.Encode("http://schema.org/ssn", sid.ModeStrict)
	require.NoError(t, err)
	aliceSubj, err := base.Namespaces.Encode("https://example.org/alice", sid.ModeStrict)
	require.NoError(t, err)
	johnSubj, err := base.Namespaces.Encode("https://example.org/john", sid.ModeStrict)
	require.NoError(t, err)

	aliceSSN := flake.Create(aliceSubj, ssnPred, flake.LitObject("111-22-3333"), sid.SID{}, 1, true, nil)
	johnSSN := flake.Create(johnSubj, ssnPred, flake.LitObject("999-88-7777"), sid.SID{}, 1, true, nil)

	visible, err := FilterVisible(ctx, wrapped, pc, []flake.Flake{aliceSSN, johnSSN})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, aliceSubj, visible[0].S)
}

// TestAllowedRejectsModificationOutsideGrantedRole covers the
// transactional half of spec.md §4.10: a flake on a node no policy
// grants modify access to is rejected with ferr.PolicyViolation.
func TestAllowedRejectsModificationOutsideGrantedRole(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()
	asm := &commit.Assembler{Conn: conn}
	ns := []string{"https://example.org/", "https://ns.flur.ee/ledger#"}

	base := db.New(conn, "main")
	base, err := asm.Stage(ctx, base, commit.DataDoc{
		T: ptr(1),
		Assert: []commit.Node{
			{
				"@id":                              "https://example.org/viewOnlyPolicy",
				"@type":                             "https://ns.flur.ee/ledger#Policy",
				"https://ns.flur.ee/ledger#targetClass": map[string]any{"@id": "https://example.org/Person"},
				"https://ns.flur.ee/ledger#allow":       map[string]any{"@id": "https://example.org/viewOnlyPolicy/rule"},
			},
			{
				"@id":                              "https://example.org/viewOnlyPolicy/rule",
				"https://ns.flur.ee/ledger#targetRole": map[string]any{"@id": "https://example.org/viewerRole"},
				"https://ns.flur.ee/ledger#action":     "view",
			},
			{
				"@id":                             "did:viewer",
				"https://ns.flur.ee/ledger#role": map[string]any{"@id": "https://example.org/viewerRole"},
			},
			{
				"@id":   "https://example.org/gina",
				"@type": "https://example.org/Person",
			},
		},
		Namespaces: ns,
	}, "tester", "seed policy")
	require.NoError(t, err)

	viewerIdentity, err := base.Namespaces.Encode("did:viewer", sid.ModeStrict)
	require.NoError(t, err)
	wrapped, err := WrapPolicy(ctx, base, viewerIdentity)
	require.NoError(t, err)
	pc := wrapped.PolicyCtx.(*Context)

	ginaSubj, err := base.Namespaces.Encode("https://example.org/gina", sid.ModeStrict)
	require.NoError(t, err)
	namePred, err := base.Namespaces.Encode("https://example.org/name", sid.ModeLenient)
	require.NoError(t, err)
	newFlake := flake.Create(ginaSubj, namePred, flake.LitObject("Gina"), sid.SID{}, 2, true, nil)

	err = Allowed(ctx, wrapped, pc, []flake.Flake{newFlake})
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.PolicyViolation))
}

// TestAllowIRIDefaultsToUnrestrictedWithoutPolicy ensures a nil policy
// context (no wrap_policy call) never restricts access.
func TestAllowIRIDefaultsToUnrestrictedWithoutPolicy(t *testing.T) {
	ctx := context.Background()
	conn := memstore.New()
	d := db.New(conn, "main")
	ok, err := AllowIRI(ctx, d, nil, sid.SID{})
	require.NoError(t, err)
	require.True(t, ok)
}

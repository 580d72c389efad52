//go:build integration

// Integration coverage for sqlstore's server-mode path against a real
// Dolt sql-server, grounded on the teacher's cmd/bd test_dolt_server_test.go
// (which stands up a dedicated Dolt server for cmd/bd's suite) but using
// testcontainers-go/modules/dolt instead of shelling out to the dolt
// binary, since that module is already part of the dependency set and
// gives per-test container isolation for free.
package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/fluree/flurecore/internal/store"
)

func TestServerModeRoundTripAgainstRealDolt(t *testing.T) {
	ctx := context.Background()
	container, err := dolt.Run(ctx, "dolthub/dolt-sql-server:latest")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := OpenServer(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	res, err := s.CWrite(ctx, "main", []byte(`{"hello":"dolt"}`))
	require.NoError(t, err)

	data, err := s.CRead(ctx, res.Address)
	require.NoError(t, err)
	require.JSONEq(t, `{"hello":"dolt"}`, string(data))

	require.NoError(t, s.Push(ctx, "ledgers/main/head", res.Address))
	head, err := s.Lookup(ctx, "ledgers/main/head")
	require.NoError(t, err)
	require.Equal(t, res.Address, head)

	var _ store.Conn = s
}

package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/store"
	"github.com/fluree/flurecore/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

type flakyConn struct {
	store.Conn
	failures int
	calls    int
}

func (f *flakyConn) CRead(ctx context.Context, address string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	return f.Conn.CRead(ctx, address)
}

func TestRetriesTransientErrors(t *testing.T) {
	inner := &flakyConn{Conn: memstore.New(), failures: 2}
	c := Wrap(inner)
	_, err := c.CRead(context.Background(), "fluree:memory://x")
	require.NoError(t, err)
	require.Equal(t, 3, inner.calls)
}

type permanentFailConn struct {
	store.Conn
}

func (permanentFailConn) CRead(context.Context, string) ([]byte, error) {
	return nil, errors.New("permission denied")
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	c := Wrap(permanentFailConn{})
	_, err := c.CRead(context.Background(), "x")
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.StorageError))
}

// Package retry wraps a store.Conn with transient-failure retries, the
// way the teacher's internal/storage/dolt retries server-mode queries: an
// exponential backoff that retries only errors classified as transient
// (connection-refused, dropped connections, read-only windows) and gives
// up immediately on everything else.
package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/fluree/flurecore/internal/ferr"
	"github.com/fluree/flurecore/internal/store"
)

// Conn wraps a store.Conn, retrying transient StorageErrors.
type Conn struct {
	inner store.Conn
	newBO func() backoff.BackOff
}

// Wrap returns a retrying Conn around inner.
func Wrap(inner store.Conn) *Conn {
	return &Conn{inner: inner, newBO: func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		return backoff.WithMaxRetries(bo, 5)
	}}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"connection refused", "lost connection", "read only", "bad connection", "timeout"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

func (c *Conn) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		err := op()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, c.newBO())
}

func asStorageError(err error) error {
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return ferr.Wrap(ferr.StorageError, err, "storage operation failed after retries")
}

func (c *Conn) CRead(ctx context.Context, address string) ([]byte, error) {
	var out []byte
	err := c.retry(ctx, func() error {
		var e error
		out, e = c.inner.CRead(ctx, address)
		return e
	})
	if err != nil {
		return nil, asStorageError(err)
	}
	return out, nil
}

func (c *Conn) CWrite(ctx context.Context, ledger string, data []byte) (store.WriteResult, error) {
	var out store.WriteResult
	err := c.retry(ctx, func() error {
		var e error
		out, e = c.inner.CWrite(ctx, ledger, data)
		return e
	})
	if err != nil {
		return store.WriteResult{}, asStorageError(err)
	}
	return out, nil
}

func (c *Conn) IndexFileRead(ctx context.Context, address string) ([]byte, error) {
	var out []byte
	err := c.retry(ctx, func() error {
		var e error
		out, e = c.inner.IndexFileRead(ctx, address)
		return e
	})
	if err != nil {
		return nil, asStorageError(err)
	}
	return out, nil
}

func (c *Conn) IndexFileWrite(ctx context.Context, ledger string, kind store.Kind, data []byte) (store.WriteResult, error) {
	var out store.WriteResult
	err := c.retry(ctx, func() error {
		var e error
		out, e = c.inner.IndexFileWrite(ctx, ledger, kind, data)
		return e
	})
	if err != nil {
		return store.WriteResult{}, asStorageError(err)
	}
	return out, nil
}

func (c *Conn) Push(ctx context.Context, headPath, address string) error {
	err := c.retry(ctx, func() error { return c.inner.Push(ctx, headPath, address) })
	if err != nil {
		return asStorageError(err)
	}
	return nil
}

func (c *Conn) Lookup(ctx context.Context, headPath string) (string, error) {
	var out string
	err := c.retry(ctx, func() error {
		var e error
		out, e = c.inner.Lookup(ctx, headPath)
		return e
	})
	if err != nil {
		return "", asStorageError(err)
	}
	return out, nil
}

var _ store.Conn = (*Conn)(nil)

package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockAcquireRelease(t *testing.T) {
	l := NewLock()
	tok, err := l.Acquire()
	require.NoError(t, err)
	require.True(t, l.Held())

	_, err = l.Acquire()
	require.Error(t, err, "a second acquire must fail while held")

	l.Release(tok)
	require.False(t, l.Held())
}

func TestLockStaleReleaseIsNoop(t *testing.T) {
	l := NewLock()
	tok1, err := l.Acquire()
	require.NoError(t, err)
	l.Release(tok1)

	tok2, err := l.Acquire()
	require.NoError(t, err)

	l.Release(tok1) // stale, must not affect tok2's hold
	require.True(t, l.Held())

	l.Release(tok2)
	require.False(t, l.Held())
}

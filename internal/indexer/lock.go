package indexer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fluree/flurecore/internal/ferr"
)

// Lock is the single-slot indexer lock of spec.md §4.3.2's Concurrency
// note: at most one refresh may run per ledger at a time. A caller
// acquires the slot with a fresh tempid; only the holder of that exact
// tempid may release it, so a stale release (from a refresh that was
// itself superseded) cannot clobber a newer holder's slot.
type Lock struct {
	mu      sync.Mutex
	held    bool
	tempID  string
}

// NewLock returns an unheld indexer lock.
func NewLock() *Lock { return &Lock{} }

// Acquire claims the slot, returning a tempid the caller must present to
// Release. Returns IndexingError if the slot is already held.
func (l *Lock) Acquire() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return "", ferr.New(ferr.IndexingError, "indexer is already running for this ledger")
	}
	l.held = true
	l.tempID = uuid.NewString()
	return l.tempID, nil
}

// Release frees the slot if tempID matches the current holder; a
// mismatched tempID (a stale release) is a silent no-op, since the slot
// has already moved on to a newer holder.
func (l *Lock) Release(tempID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held && l.tempID == tempID {
		l.held = false
		l.tempID = ""
	}
}

// Held reports whether the slot is currently claimed.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

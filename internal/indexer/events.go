// Package indexer implements the refresh/rebalance pipeline of spec.md
// §4.3.2/§4.3.3: folding a novelty buffer into the persistent index trees,
// writing the resulting nodes through a store.Conn, and notifying
// registered watchers as a refresh starts, ends, or the indexer closes.
// The watcher registry is modeled on the teacher's internal/eventbus.Bus:
// a small synchronous dispatcher, sequential in registration order,
// resilient to handler panics.
package indexer

import (
	"context"
	"log"
	"sync"
)

// EventType names the indexer lifecycle events a watcher can observe.
type EventType string

const (
	EventIndexStart EventType = "index-start"
	EventIndexEnd   EventType = "index-end"
	EventClose      EventType = "close"
)

// Event carries the ledger a lifecycle event pertains to, plus the new
// root address and garbage IDs once EventIndexEnd fires.
type Event struct {
	Type       EventType
	Ledger     string
	NewRootID  string
	GarbageIDs []string
	Err        error
}

// Watcher observes indexer lifecycle events.
type Watcher interface {
	ID() string
	Notify(ctx context.Context, event Event)
}

// Bus dispatches lifecycle events to registered watchers, sequentially in
// registration order; a panicking watcher is recovered and logged and
// never stops the dispatch chain, matching the teacher's "resilient to handler errors"
// eventbus invariant.
type Bus struct {
	mu       sync.RWMutex
	watchers []Watcher
}

// NewBus returns an empty watcher bus.
func NewBus() *Bus { return &Bus{} }

// Register adds w to the bus. Safe for concurrent use.
func (b *Bus) Register(w Watcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, w)
}

// Unregister removes the watcher with the given ID, reporting whether one
// was found.
func (b *Bus) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.watchers {
		if w.ID() == id {
			b.watchers = append(b.watchers[:i], b.watchers[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch notifies every registered watcher of event, in registration
// order. A watcher whose Notify blocks delays the rest of the chain;
// callers that need fire-and-forget semantics should make Notify
// non-blocking themselves.
func (b *Bus) Dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	watchers := append([]Watcher(nil), b.watchers...)
	b.mu.RUnlock()

	for _, w := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("indexer: watcher %q panicked on %s: %v", w.ID(), event.Type, r)
				}
			}()
			w.Notify(ctx, event)
		}()
	}
}

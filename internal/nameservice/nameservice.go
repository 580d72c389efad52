// Package nameservice implements spec.md §6.1's push/lookup head
// publication over NATS JetStream, adapting the teacher's
// internal/eventbus package: EnsureStreams' "create the stream if it
// doesn't already exist" idempotent setup, and Bus.SetJetStream/
// publishToJetStream's fire-and-forget publish-after-local-dispatch
// shape — reworked here as a KeyValue-backed head store (JetStream's KV
// bucket, built on the same stream machinery) rather than an append-only
// event log, since a name service needs "what is the current head,"
// not a replayable history.
package nameservice

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// BucketHeads is the JetStream KV bucket name-service heads live in.
const BucketHeads = "FLURECORE_HEADS"

// kvContext is the subset of nats.JetStreamContext this package depends
// on, so tests can supply a fake without a running NATS server.
type kvContext interface {
	KeyValue(bucket string) (nats.KeyValue, error)
	CreateKeyValue(cfg *nats.KeyValueConfig) (nats.KeyValue, error)
}

// kvStore is the subset of nats.KeyValue NameService drives; any
// nats.KeyValue satisfies it, and tests can supply a narrower fake.
type kvStore interface {
	Put(key string, value []byte) (uint64, error)
	Get(key string) (nats.KeyValueEntry, error)
	Watch(keys string, opts ...nats.WatchOpt) (nats.KeyWatcher, error)
}

// NameService is a store.Conn's Push/Lookup pair backed by a JetStream
// KeyValue bucket, usable standalone (to publish heads for watchers
// across processes) or composed into a store.Conn implementation.
type NameService struct {
	kv kvStore
}

// Connect opens (creating if necessary) the heads KV bucket against js,
// mirroring EnsureStreams' idempotent "create if StreamInfo/KeyValue
// lookup fails" pattern.
func Connect(js kvContext) (*NameService, error) {
	kv, err := js.KeyValue(BucketHeads)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: BucketHeads})
		if err != nil {
			return nil, fmt.Errorf("nameservice: create bucket %s: %w", BucketHeads, err)
		}
	}
	return &NameService{kv: kv}, nil
}

func sanitizeKey(headPath string) string {
	out := make([]rune, 0, len(headPath))
	for _, r := range headPath {
		if r == '/' {
			out = append(out, '.')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// Push publishes address as headPath's current head.
func (n *NameService) Push(_ context.Context, headPath, address string) error {
	_, err := n.kv.Put(sanitizeKey(headPath), []byte(address))
	if err != nil {
		return fmt.Errorf("nameservice: push %s: %w", headPath, err)
	}
	return nil
}

// Lookup resolves headPath's current head address, "" if unset.
func (n *NameService) Lookup(_ context.Context, headPath string) (string, error) {
	entry, err := n.kv.Get(sanitizeKey(headPath))
	if err == nats.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("nameservice: lookup %s: %w", headPath, err)
	}
	return string(entry.Value()), nil
}

// Watch subscribes to every head update under prefix, invoking fn with
// each update's bucket key (the headPath with every '/' replaced by '.')
// and address — the indexer watcher fan-out of spec.md
// §4.3.3, adapted from eventbus's JetStream publish path run in reverse
// (consuming rather than producing).
func (n *NameService) Watch(ctx context.Context, prefix string, fn func(headPath, address string)) error {
	w, err := n.kv.Watch(sanitizeKey(prefix) + ".>")
	if err != nil {
		return fmt.Errorf("nameservice: watch %s: %w", prefix, err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				continue // initial-state marker
			}
			fn(entry.Key(), string(entry.Value()))
		}
	}
}

// pushLookup is the Push/Lookup subset of store.Conn (spec.md §6.1);
// NameService satisfies it for composition into a store.Conn backend,
// which pairs it with its own CRead/CWrite/IndexFile* blob methods.
type pushLookup interface {
	Push(ctx context.Context, headPath, address string) error
	Lookup(ctx context.Context, headPath string) (string, error)
}

var _ pushLookup = (*NameService)(nil)

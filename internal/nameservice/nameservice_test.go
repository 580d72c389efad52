package nameservice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

type fakeKVEntry struct {
	key   string
	value []byte
}

func (e fakeKVEntry) Bucket() string             { return BucketHeads }
func (e fakeKVEntry) Key() string                { return e.key }
func (e fakeKVEntry) Value() []byte              { return e.value }
func (e fakeKVEntry) Revision() uint64           { return 1 }
func (e fakeKVEntry) Created() time.Time         { return time.Time{} }
func (e fakeKVEntry) Delta() uint64              { return 0 }
func (e fakeKVEntry) Operation() nats.KeyValueOp { return nats.KeyValuePut }

type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Put(key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return 1, nil
}

func (f *fakeKV) Get(key string) (nats.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return fakeKVEntry{key: key, value: v}, nil
}

func (f *fakeKV) Watch(keys string, opts ...nats.WatchOpt) (nats.KeyWatcher, error) {
	return nil, nil
}

func TestPushLookupRoundTrip(t *testing.T) {
	n := &NameService{kv: newFakeKV()}
	ctx := context.Background()

	require.NoError(t, n.Push(ctx, "ledgers/main/head", "fluree:s3://bucket/addr"))
	addr, err := n.Lookup(ctx, "ledgers/main/head")
	require.NoError(t, err)
	require.Equal(t, "fluree:s3://bucket/addr", addr)
}

func TestLookupMissingReturnsEmpty(t *testing.T) {
	n := &NameService{kv: newFakeKV()}
	addr, err := n.Lookup(context.Background(), "nope")
	require.NoError(t, err)
	require.Equal(t, "", addr)
}

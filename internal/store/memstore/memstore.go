// Package memstore implements an in-process store.Conn backed by maps.
// It is the default adapter for tests and the `fluree:memory://` method,
// mirroring the teacher's internal/storage/memory package: a minimal,
// dependency-free backend used where a real object store would be
// overkill.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluree/flurecore/internal/store"
)

// Store is a thread-safe in-memory store.Conn.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	heads map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte), heads: make(map[string]string)}
}

func (s *Store) CRead(_ context.Context, address string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[address]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (s *Store) CWrite(_ context.Context, ledger string, data []byte) (store.WriteResult, error) {
	return s.write(ledger, data, store.HashHex)
}

func (s *Store) IndexFileRead(ctx context.Context, address string) ([]byte, error) {
	return s.CRead(ctx, address)
}

func (s *Store) IndexFileWrite(_ context.Context, ledger string, kind store.Kind, data []byte) (store.WriteResult, error) {
	return s.write(fmt.Sprintf("%s/%s", ledger, kind), data, store.HashBase32)
}

func (s *Store) write(ledger string, data []byte, hash func([]byte) string) (store.WriteResult, error) {
	h := hash(data)
	addr := store.Address(store.MethodMemory, fmt.Sprintf("%s/%s", ledger, h))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[addr] = data
	return store.WriteResult{Hash: h, Address: addr, Size: len(data)}, nil
}

func (s *Store) Push(_ context.Context, headPath, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heads[headPath] = address
	return nil
}

func (s *Store) Lookup(_ context.Context, headPath string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.heads[headPath]
	if !ok {
		return "", nil
	}
	return addr, nil
}

var _ store.Conn = (*Store)(nil)

// Package localstore implements the `fluree:file://` method: a
// content-addressed store.Conn rooted at a local directory. Grounded on
// the teacher's internal/storage/local_provider.go, which resolves a
// beads directory relative to a project root; here the root is an
// explicit base directory handed to New.
package localstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluree/flurecore/internal/store"
)

// Store is a filesystem-backed store.Conn.
type Store struct {
	base string
}

// New returns a Store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create base dir: %w", err)
	}
	return &Store{base: baseDir}, nil
}

func (s *Store) path(ledger, sub, hash string) string {
	return filepath.Join(s.base, ledger, sub, hash[:2], hash)
}

func (s *Store) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derived from content hash, not user input
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read %s: %w", path, err)
	}
	return data, nil
}

func (s *Store) writeAt(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("localstore: mkdir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil // content-addressed: identical content already present
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 -- content-addressed blob, not sensitive
		return fmt.Errorf("localstore: write temp: %w", err)
	}
	return os.Rename(tmp, path)
}

func addressFor(ledger, sub, hash string) string {
	return store.Address(store.MethodFile, filepath.Join(ledger, sub, hash[:2], hash))
}

func (s *Store) pathFromAddress(address string) (string, error) {
	rel, err := addressRelPath(address)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.base, rel), nil
}

func addressRelPath(address string) (string, error) {
	const prefix = "fluree:file://"
	if len(address) <= len(prefix) || address[:len(prefix)] != prefix {
		return "", fmt.Errorf("localstore: not a file:// address: %s", address)
	}
	return address[len(prefix):], nil
}

func (s *Store) CRead(_ context.Context, address string) ([]byte, error) {
	rel, err := addressRelPath(address)
	if err != nil {
		return nil, err
	}
	return s.read(filepath.Join(s.base, rel))
}

func (s *Store) CWrite(_ context.Context, ledger string, data []byte) (store.WriteResult, error) {
	hash := store.HashHex(data)
	path := s.path(ledger, "commit", hash)
	if err := s.writeAt(path, data); err != nil {
		return store.WriteResult{}, err
	}
	return store.WriteResult{Hash: hash, Address: addressFor(ledger, "commit", hash), Size: len(data)}, nil
}

func (s *Store) IndexFileRead(ctx context.Context, address string) ([]byte, error) {
	return s.CRead(ctx, address)
}

func (s *Store) IndexFileWrite(_ context.Context, ledger string, kind store.Kind, data []byte) (store.WriteResult, error) {
	hash := store.HashBase32(data)
	path := s.path(ledger, string(kind), hash)
	if err := s.writeAt(path, data); err != nil {
		return store.WriteResult{}, err
	}
	return store.WriteResult{Hash: hash, Address: addressFor(ledger, string(kind), hash), Size: len(data)}, nil
}

func (s *Store) Push(_ context.Context, headPath, address string) error {
	full := filepath.Join(s.base, "_heads", headPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("localstore: mkdir head: %w", err)
	}
	return os.WriteFile(full, []byte(address), 0o644) // #nosec G306
}

func (s *Store) Lookup(_ context.Context, headPath string) (string, error) {
	full := filepath.Join(s.base, "_heads", headPath)
	data, err := os.ReadFile(full) // #nosec G304
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("localstore: read head: %w", err)
	}
	return string(data), nil
}

var _ store.Conn = (*Store)(nil)

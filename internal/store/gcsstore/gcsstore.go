// Package gcsstore implements the `fluree:gcs://` method: a
// content-addressed store.Conn backed by a Google Cloud Storage bucket.
// Grounded on internal/store/s3store's object-store adapter shape, swapped
// to cloud.google.com/go/storage's object-handle API rather than a
// REST/XML client of its own.
package gcsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	fstore "github.com/fluree/flurecore/internal/store"
)

// BucketHandle is the subset of *storage.BucketHandle this package
// depends on, so tests can supply a fake without a live bucket.
type BucketHandle interface {
	Object(name string) *storage.ObjectHandle
}

// Store is a GCS-backed store.Conn.
type Store struct {
	bucket BucketHandle
	prefix string
}

// New returns a Store writing into bucket under prefix (may be empty).
func New(bucket BucketHandle, prefix string) *Store {
	return &Store{bucket: bucket, prefix: prefix}
}

func (s *Store) name(parts ...string) string {
	name := ""
	for _, p := range parts {
		if name != "" {
			name += "/"
		}
		name += p
	}
	if s.prefix != "" {
		return s.prefix + "/" + name
	}
	return name
}

func (s *Store) get(ctx context.Context, name string) ([]byte, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gcsstore: open %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: read %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) put(ctx context.Context, name string, data []byte) error {
	obj := s.bucket.Object(name)
	if _, err := obj.Attrs(ctx); err == nil {
		return nil // content-addressed: identical object already present
	}
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcsstore: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil // lost a race with a concurrent identical write
		}
		return fmt.Errorf("gcsstore: close %s: %w", name, err)
	}
	return nil
}

func addressFor(name string) string {
	return fstore.Address(fstore.MethodGCS, name)
}

func nameFromAddress(address string) (string, error) {
	const prefix = "fluree:gcs://"
	if len(address) <= len(prefix) || address[:len(prefix)] != prefix {
		return "", fmt.Errorf("gcsstore: not a gcs:// address: %s", address)
	}
	return address[len(prefix):], nil
}

func (s *Store) CRead(ctx context.Context, address string) ([]byte, error) {
	name, err := nameFromAddress(address)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, name)
}

func (s *Store) CWrite(ctx context.Context, ledger string, data []byte) (fstore.WriteResult, error) {
	hash := fstore.HashHex(data)
	name := s.name(ledger, "commit", hash)
	if err := s.put(ctx, name, data); err != nil {
		return fstore.WriteResult{}, err
	}
	return fstore.WriteResult{Hash: hash, Address: addressFor(name), Size: len(data)}, nil
}

func (s *Store) IndexFileRead(ctx context.Context, address string) ([]byte, error) {
	return s.CRead(ctx, address)
}

func (s *Store) IndexFileWrite(ctx context.Context, ledger string, kind fstore.Kind, data []byte) (fstore.WriteResult, error) {
	hash := fstore.HashBase32(data)
	name := s.name(ledger, string(kind), hash)
	if err := s.put(ctx, name, data); err != nil {
		return fstore.WriteResult{}, err
	}
	return fstore.WriteResult{Hash: hash, Address: addressFor(name), Size: len(data)}, nil
}

func (s *Store) Push(ctx context.Context, headPath, address string) error {
	name := s.name("_heads", headPath)
	w := s.bucket.Object(name).NewWriter(ctx)
	if _, err := w.Write([]byte(address)); err != nil {
		w.Close()
		return fmt.Errorf("gcsstore: push %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcsstore: push %s: %w", name, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, headPath string) (string, error) {
	data, err := s.get(ctx, s.name("_heads", headPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ fstore.Conn = (*Store)(nil)

// Package s3store implements the `fluree:s3://` method: a
// content-addressed store.Conn backed by an S3 bucket. Grounded on
// internal/store/localstore's ledger/kind/hash layout (keys here carry
// no two-character shard directory) and the aws-sdk-go-v2 client
// shape the rest of the pack reaches for when a component needs an
// object-store backend, rather than hand-rolling a REST client over
// net/http.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"

	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fluree/flurecore/internal/store"
)

// API is the subset of *s3.Client this package depends on, so tests can
// supply a fake without standing up a real bucket.
type API interface {
	GetObject(ctx context.Context, in *s3v2.GetObjectInput, opts ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3v2.PutObjectInput, opts ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3v2.HeadObjectInput, opts ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error)
}

// Store is an S3-backed store.Conn.
type Store struct {
	api    API
	bucket string
	prefix string
}

// New returns a Store writing into bucket under prefix (may be empty).
func New(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) key(parts ...string) string {
	key := ""
	for _, p := range parts {
		if key != "" {
			key += "/"
		}
		key += p
	}
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3v2.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("s3store: get %s: %w", key, err)
	}
	defer out.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("s3store: read body %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.api.HeadObject(ctx, &s3v2.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return nil // content-addressed: identical object already present
	}
	_, err = s.api.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", key, err)
	}
	return nil
}

func addressFor(key string) string {
	return store.Address(store.MethodS3, key)
}

func keyFromAddress(address string) (string, error) {
	const prefix = "fluree:s3://"
	if len(address) <= len(prefix) || address[:len(prefix)] != prefix {
		return "", fmt.Errorf("s3store: not an s3:// address: %s", address)
	}
	return address[len(prefix):], nil
}

func (s *Store) CRead(ctx context.Context, address string) ([]byte, error) {
	key, err := keyFromAddress(address)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, key)
}

func (s *Store) CWrite(ctx context.Context, ledger string, data []byte) (store.WriteResult, error) {
	hash := store.HashHex(data)
	key := s.key(ledger, "commit", hash)
	if err := s.put(ctx, key, data); err != nil {
		return store.WriteResult{}, err
	}
	return store.WriteResult{Hash: hash, Address: addressFor(key), Size: len(data)}, nil
}

func (s *Store) IndexFileRead(ctx context.Context, address string) ([]byte, error) {
	return s.CRead(ctx, address)
}

func (s *Store) IndexFileWrite(ctx context.Context, ledger string, kind store.Kind, data []byte) (store.WriteResult, error) {
	hash := store.HashBase32(data)
	key := s.key(ledger, string(kind), hash)
	if err := s.put(ctx, key, data); err != nil {
		return store.WriteResult{}, err
	}
	return store.WriteResult{Hash: hash, Address: addressFor(key), Size: len(data)}, nil
}

func (s *Store) Push(ctx context.Context, headPath, address string) error {
	key := s.key("_heads", headPath)
	_, err := s.api.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader([]byte(address)),
	})
	if err != nil {
		return fmt.Errorf("s3store: push %s: %w", key, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, headPath string) (string, error) {
	data, err := s.get(ctx, s.key("_heads", headPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ store.Conn = (*Store)(nil)

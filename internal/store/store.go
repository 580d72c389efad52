// Package store defines the connection/storage contract (spec.md §6.1):
// the narrow interface every backing adapter (local filesystem, object
// store, content-addressed network) must satisfy. This mirrors the
// teacher's internal/storage.Storage/Provider split — a small interface
// the rest of the core depends on, with concrete adapters living in
// sibling packages (store/localstore, store/s3store, store/gcsstore,
// store/sqlstore) that the core never imports directly.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind distinguishes the artifact categories written through
// IndexFileWrite (spec.md §6.1).
type Kind string

const (
	KindLeaf    Kind = "leaf"
	KindBranch  Kind = "branch"
	KindRoot    Kind = "root"
	KindGarbage Kind = "garbage"
)

// WriteResult is returned by every write operation: the content hash, the
// fully-qualified address it was stored under, and its byte size.
type WriteResult struct {
	Hash    string
	Address string
	Size    int
}

// Conn is the connection/storage contract external collaborators
// implement (spec.md §6.1). The core only ever talks to this interface;
// concrete transports (file, s3, memory, remote) are out of scope for the
// core itself but their adapters live alongside it for completeness.
type Conn interface {
	// CRead reads a commit/data document by address. Returns nil, nil if
	// the address does not exist.
	CRead(ctx context.Context, address string) ([]byte, error)
	// CWrite content-addresses and stores a commit/data document under a
	// ledger name.
	CWrite(ctx context.Context, ledger string, data []byte) (WriteResult, error)
	// IndexFileRead reads an index node (leaf/branch/root/garbage) by
	// address.
	IndexFileRead(ctx context.Context, address string) ([]byte, error)
	// IndexFileWrite content-addresses and stores an index node.
	IndexFileWrite(ctx context.Context, ledger string, kind Kind, data []byte) (WriteResult, error)
	// Push publishes a new head address under a name-service path.
	Push(ctx context.Context, headPath string, address string) error
	// Lookup resolves a name-service path to its current head address.
	Lookup(ctx context.Context, headPath string) (string, error)
}

// Method is the addressing scheme prefix used in `fluree:<method>://` per
// spec.md §6.1.
type Method string

const (
	MethodFile   Method = "file"
	MethodIPFS   Method = "ipfs"
	MethodMemory Method = "memory"
	MethodS3     Method = "s3"
	MethodGCS    Method = "gcs"
	MethodRemote Method = "remote"
)

// Address formats a content hash into a fluree:<method>://<path> address.
func Address(method Method, path string) string {
	return fmt.Sprintf("fluree:%s://%s", method, path)
}

// HashHex returns the lowercase hex SHA-256 digest of data, the default
// encoding for commit/data document addresses (spec.md §6.1).
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBase32 returns the base32 digest used for index node artifacts,
// matching the teacher's convention of a denser encoding for
// high-volume, machine-only addresses.
func HashBase32(data []byte) string {
	sum := sha256.Sum256(data)
	return base32Encode(sum[:])
}

const base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

func base32Encode(b []byte) string {
	var out []byte
	var bits uint
	var value uint32
	for _, c := range b {
		value = (value << 8) | uint32(c)
		bits += 8
		for bits >= 5 {
			out = append(out, base32Alphabet[(value>>(bits-5))&31])
			bits -= 5
		}
	}
	if bits > 0 {
		out = append(out, base32Alphabet[(value<<(5-bits))&31])
	}
	return string(out)
}

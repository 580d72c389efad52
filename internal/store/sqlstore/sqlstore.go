// Package sqlstore implements the `fluree:remote://` method over a
// database/sql connection: a content-addressed store.Conn backed by two
// tables, blobs and heads. Grounded on the teacher's
// internal/storage/dolt package, which opens the same underlying Dolt
// database two ways — embedded via github.com/dolthub/driver (CGO, no
// server) or server mode via github.com/go-sql-driver/mysql (pure Go,
// multi-writer) — behind one DoltStore type; OpenEmbedded/OpenServer here
// mirror that split for a plain content-addressed blob store rather than
// Dolt's versioned row history.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"

	"github.com/fluree/flurecore/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS fluree_blobs (
	address VARCHAR(512) PRIMARY KEY,
	data    LONGBLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS fluree_heads (
	head_path VARCHAR(512) PRIMARY KEY,
	address   VARCHAR(512) NOT NULL
);
`

// Store is a database/sql-backed store.Conn.
type Store struct {
	db *sql.DB
}

// OpenEmbedded opens (creating if necessary) an embedded Dolt database
// rooted at dir, requiring CGO.
func OpenEmbedded(ctx context.Context, dir string) (*Store, error) {
	dsn := fmt.Sprintf("file://%s?commitname=flurecore&commitemail=flurecore@local", dir)
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open embedded dolt at %s: %w", dir, err)
	}
	return open(ctx, db)
}

// OpenServer connects to a running dolt/MySQL-compatible sql-server at
// dsn (user:pass@tcp(host:port)/dbname), requiring no CGO.
func OpenServer(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open server dsn: %w", err)
	}
	return open(ctx, db)
}

func open(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	for _, stmt := range splitSchema(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func splitSchema(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			if stmt := trimSpace(s[start:i]); stmt != "" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\n' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\n' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// Close releases the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

func addressFor(ledger, sub, hash string) string {
	return store.Address(store.MethodRemote, fmt.Sprintf("%s/%s/%s", ledger, sub, hash))
}

func (s *Store) get(ctx context.Context, address string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM fluree_blobs WHERE address = ?", address).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: select %s: %w", address, err)
	}
	return data, nil
}

func (s *Store) put(ctx context.Context, address string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fluree_blobs (address, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE address = address",
		address, data)
	if err != nil {
		return fmt.Errorf("sqlstore: insert %s: %w", address, err)
	}
	return nil
}

func (s *Store) CRead(ctx context.Context, address string) ([]byte, error) {
	return s.get(ctx, address)
}

func (s *Store) CWrite(ctx context.Context, ledger string, data []byte) (store.WriteResult, error) {
	hash := store.HashHex(data)
	addr := addressFor(ledger, "commit", hash)
	if err := s.put(ctx, addr, data); err != nil {
		return store.WriteResult{}, err
	}
	return store.WriteResult{Hash: hash, Address: addr, Size: len(data)}, nil
}

func (s *Store) IndexFileRead(ctx context.Context, address string) ([]byte, error) {
	return s.get(ctx, address)
}

func (s *Store) IndexFileWrite(ctx context.Context, ledger string, kind store.Kind, data []byte) (store.WriteResult, error) {
	hash := store.HashBase32(data)
	addr := addressFor(ledger, string(kind), hash)
	if err := s.put(ctx, addr, data); err != nil {
		return store.WriteResult{}, err
	}
	return store.WriteResult{Hash: hash, Address: addr, Size: len(data)}, nil
}

func (s *Store) Push(ctx context.Context, headPath, address string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fluree_heads (head_path, address) VALUES (?, ?) ON DUPLICATE KEY UPDATE address = VALUES(address)",
		headPath, address)
	if err != nil {
		return fmt.Errorf("sqlstore: push %s: %w", headPath, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, headPath string) (string, error) {
	var address string
	err := s.db.QueryRowContext(ctx, "SELECT address FROM fluree_heads WHERE head_path = ?", headPath).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlstore: lookup %s: %w", headPath, err)
	}
	return address, nil
}

var _ store.Conn = (*Store)(nil)

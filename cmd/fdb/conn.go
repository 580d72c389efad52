package main

import (
	"context"
	"fmt"

	"github.com/fluree/flurecore/internal/config"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/store"
	"github.com/fluree/flurecore/internal/store/localstore"
	"github.com/fluree/flurecore/internal/store/memstore"
	"github.com/fluree/flurecore/internal/store/sqlstore"
)

// loadSnapshot loads commitAddr if non-empty, otherwise returns a
// brand-new empty snapshot for ledgerName.
func loadSnapshot(ctx context.Context, conn store.Conn, commitAddr string) (*db.DB, error) {
	if commitAddr == "" {
		return db.New(conn, ledgerName), nil
	}
	return db.Load(ctx, conn, ledgerName, commitAddr)
}

// loadConfig reads --config (YAML or TOML, by extension) into a
// config.Config, falling back to defaults when configPath is empty.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	if isTOML(configPath) {
		return config.LoadTOML(configPath)
	}
	return config.LoadYAML(configPath)
}

func isTOML(path string) bool {
	return len(path) > 5 && path[len(path)-5:] == ".toml"
}

// openConn builds the store.Conn named by --storage. The CLI only wires
// the adapters an operator can point at with a bare path (memory, the
// local filesystem, and dolt's embedded mode) — s3/gcs/sql-server need
// credentials and endpoint configuration out of scope for a minimal
// operator surface; those adapters are exercised directly as libraries.
func openConn(ctx context.Context) (store.Conn, error) {
	switch storageMethod {
	case "memory", "":
		return memstore.New(), nil
	case "file":
		path := storagePath
		if path == "" {
			path = "./fdb-data"
		}
		return localstore.New(path)
	case "dolt":
		path := storagePath
		if path == "" {
			path = "./fdb-dolt"
		}
		return sqlstore.OpenEmbedded(ctx, path)
	default:
		return nil, fmt.Errorf("fdb: unknown storage adapter %q (want memory, file, or dolt)", storageMethod)
	}
}

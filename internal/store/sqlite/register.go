// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite

import (
	"context"
	"database/sql"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
	store.RegisterBackend("sqlite", func(cfg store.StorageConfig) (store.Engine, error) {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "data/vectors.db"
		}
		return NewEngine(dsn)
	})
}

// Compile-time interface checks.
var (
	_ store.Engine    = (*Engine)(nil)
	_ store.Partition = (*Partition)(nil)
)

// Engine stores every partition of a deployment in one SQLite database.
// Similarity indexes are vec0 virtual tables registered in a catalog table.
type Engine struct {
	db *sql.DB
}

// NewEngine opens (or creates) a SQLite database at dbPath and initialises
// the record, embedding and search index catalog tables.
func NewEngine(dbPath string) (*Engine, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "migrating record tables: %w", err)
	}

	return &Engine{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
	partition TEXT NOT NULL,
	id        TEXT NOT NULL,
	source_id TEXT NOT NULL,
	kind      TEXT NOT NULL,
	doc       TEXT NOT NULL,
	PRIMARY KEY (partition, id)
);

CREATE INDEX IF NOT EXISTS idx_records_source ON records(partition, source_id);

CREATE TABLE IF NOT EXISTS embeddings (
	partition TEXT    NOT NULL,
	id        TEXT    NOT NULL,
	dim       INTEGER NOT NULL,
	vec       BLOB    NOT NULL,
	PRIMARY KEY (partition, id)
);

CREATE TABLE IF NOT EXISTS search_indexes (
	partition  TEXT NOT NULL,
	name       TEXT NOT NULL,
	id         TEXT NOT NULL,
	vec_table  TEXT NOT NULL,
	definition TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created    TEXT NOT NULL,
	PRIMARY KEY (partition, name)
);
`
	_, err := db.Exec(ddl)
	return err
}

// OpenPartition returns a handle scoped to the named partition.
func (e *Engine) OpenPartition(_ context.Context, name string) (store.Partition, error) {
	if name == "" {
		return nil, scouterr.New(scouterr.CodeStoreInvalidInput, "partition name is required")
	}
	return &Partition{db: e.db, name: name}, nil
}

// Close closes the underlying database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Partition is the record collection of one library inside the shared database.
type Partition struct {
	db   *sql.DB
	name string
}

// Name returns the partition name.
func (p *Partition) Name() string { return p.name }

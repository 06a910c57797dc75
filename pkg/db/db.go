// Package db is the relational backing store: the data version, the alias
// table, the reference sequences, sample metadata and the compressed
// columns the in-memory snapshot is built from.
package db

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// MergedDataset is the data_version row that tracks the served data.
const MergedDataset = "merged"

var ErrNoDataVersion = errors.New("db: no data version recorded")

type LapisDB struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the SQLite database at path and makes sure
// the schema exists.
func Open(path string) (*LapisDB, error) {
	// modernc wants URI filenames to start with file:
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &LapisDB{db: db}, nil
}

func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (l *LapisDB) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

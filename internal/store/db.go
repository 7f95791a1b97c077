package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// pragmas applied to every connection of the state database.
var pragmas = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_synchronous":  {"NORMAL"},
	"_txlock":       {"immediate"},
}

// DB is the per-profile state database (state.db). It only holds feed
// checkpoints and cached contact lookups; message history stays on the
// gateway, so the file can be deleted at any time.
type DB struct {
	*sql.DB
	path string
}

func dsn(path string) string {
	return "file:" + path + "?" + pragmas.Encode()
}

// Open opens the state database at path, creating it if needed.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the database file.
func (db *DB) Path() string { return db.path }

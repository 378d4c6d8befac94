package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite is a KV in a local SQLite file (pure-Go modernc driver).
type SQLite struct {
	sqlKV
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS sitecn_kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	get: `SELECT value FROM sitecn_kv WHERE key = ?`,
	set: `INSERT INTO sitecn_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	remove:   `DELETE FROM sitecn_kv WHERE key = ?`,
	classify: classifySQLite,
}

// OpenSQLite opens (or creates) the database at path and ensures the table
// exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Serialize access through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 2000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &SQLite{sqlKV{db: db, d: sqliteDialect}}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func classifySQLite(op, key string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "SQLITE_FULL"), strings.Contains(msg, "database or disk is full"):
		return StorageQuotaError{Key: key, Err: err}
	case strings.Contains(msg, "SQLITE_BUSY"), strings.Contains(msg, "SQLITE_LOCKED"),
		strings.Contains(msg, "database is locked"):
		return StorageUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("sqlite %s: %w", op, err)
}


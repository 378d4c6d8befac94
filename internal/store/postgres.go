package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres is a KV in a Postgres table, reached through pgx's database/sql
// driver.
type Postgres struct {
	sqlKV
}

var openDB = sql.Open

var postgresDialect = dialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS sitecn_kv (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	get: `SELECT value FROM sitecn_kv WHERE key = $1`,
	set: `INSERT INTO sitecn_kv (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
	remove:   `DELETE FROM sitecn_kv WHERE key = $1`,
	classify: classifyPostgres,
}

// OpenPostgres connects to conn, pings it and ensures the table exists.
func OpenPostgres(ctx context.Context, conn string) (*Postgres, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, StorageUnavailableError{Op: "ping", Err: err}
	}
	return newPostgres(ctx, db)
}

func newPostgres(ctx context.Context, db *sql.DB) (*Postgres, error) {
	p := &Postgres{sqlKV{db: db, d: postgresDialect}}
	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func classifyPostgres(op, key string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "53100": // disk_full
			return StorageQuotaError{Key: key, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"), // connection exceptions
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			pgErr.Code == "57P01", pgErr.Code == "57P03", pgErr.Code == "40001":
			return StorageUnavailableError{Op: op, Err: err}
		}
		return fmt.Errorf("postgres %s: %w", op, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return StorageUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}

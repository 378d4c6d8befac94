package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// dialect holds the per-backend statements and error classification.
type dialect struct {
	name     string
	schema   string
	get      string
	set      string
	remove   string
	classify func(op, key string, err error) error
}

// sqlKV implements KV over database/sql in a single table.
type sqlKV struct {
	db *sql.DB
	d  dialect
}

func (s *sqlKV) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return s.d.classify("schema", "", err)
	}
	return nil
}

func (s *sqlKV) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.d.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.d.classify("get", key, err)
	}
	return v, nil
}

func (s *sqlKV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.d.set, key, value, time.Now().UTC().Unix()); err != nil {
		return s.d.classify("set", key, err)
	}
	return nil
}

func (s *sqlKV) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.d.remove, key); err != nil {
		return s.d.classify("remove", key, err)
	}
	return nil
}

func (s *sqlKV) Close() error { return s.db.Close() }

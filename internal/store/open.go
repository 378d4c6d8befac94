package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sitecnd/internal/common/fsutil"
)

// Open selects a backend from dsn and wraps it with retries:
//
//	""  or "memory:"                 in-process map
//	"sqlite:<path>", "*.db"         SQLite file ("~" expanded)
//	"postgres://", "postgresql://"  Postgres
func Open(ctx context.Context, dsn string, log zerolog.Logger) (KV, error) {
	kv, err := openBackend(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewRetrying(kv, RetryConfig{Logger: log}), nil
}

func openBackend(ctx context.Context, dsn string) (KV, error) {
	switch {
	case dsn == "" || dsn == "memory:":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		return openSQLiteFile(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return openSQLiteFile(ctx, dsn)
	}
	return nil, fmt.Errorf("unsupported store %q", dsn)
}

func openSQLiteFile(ctx context.Context, path string) (KV, error) {
	p, err := fsutil.PrepareFile(path)
	if err != nil {
		return nil, err
	}
	return OpenSQLite(ctx, p)
}

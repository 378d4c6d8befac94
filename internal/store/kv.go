// Package store persists per-site state behind a small key/value interface
// with memory, SQLite and Postgres backends.
package store

import (
	"context"
	"errors"
	"fmt"
)

// KV is a byte-valued key/value store. Get returns nil, nil for a missing
// key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// StorageUnavailableError is a transient backend failure (locked database,
// lost connection).
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e StorageUnavailableError) Unwrap() error { return e.Err }

// StorageQuotaError means the backend refused a write for lack of space.
type StorageQuotaError struct {
	Key string
	Err error
}

func (e StorageQuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded writing %s: %v", e.Key, e.Err)
}

func (e StorageQuotaError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a StorageUnavailableError.
func IsUnavailable(err error) bool {
	var e StorageUnavailableError
	return errors.As(err, &e)
}

// IsQuota reports whether err is a StorageQuotaError.
func IsQuota(err error) bool {
	var e StorageQuotaError
	return errors.As(err, &e)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return IsUnavailable(err) || IsQuota(err)
}

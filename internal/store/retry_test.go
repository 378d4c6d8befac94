package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger { return zerolog.New(io.Discard) }

// flakyKV fails the first n calls with err, then delegates.
type flakyKV struct {
	*Memory
	n     int
	err   error
	calls int
}

func (f *flakyKV) fail() error {
	f.calls++
	if f.calls <= f.n {
		return f.err
	}
	return nil
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, v []byte) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Memory.Set(ctx, key, v)
}

func newTestRetrying(kv KV, retries uint64) *Retrying {
	return NewRetrying(kv, RetryConfig{
		MaxRetries: retries,
		Logger:     testLogger(),
		newBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})
}

func TestRetryingRecoversFromTransientErrors(t *testing.T) {
	f := &flakyKV{Memory: NewMemory(), n: 2, err: StorageUnavailableError{Op: "set", Err: errors.New("locked")}}
	r := newTestRetrying(f, 3)
	require.NoError(t, r.Set(context.Background(), "k", []byte("v")))
	require.Equal(t, 3, f.calls)

	v, err := r.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(v))
}

func TestRetryingGivesUpAfterMaxRetries(t *testing.T) {
	f := &flakyKV{Memory: NewMemory(), n: 10, err: StorageQuotaError{Key: "k", Err: errors.New("full")}}
	r := newTestRetrying(f, 2)
	err := r.Set(context.Background(), "k", []byte("v"))
	require.True(t, IsQuota(err))
	require.Equal(t, 3, f.calls)
}

func TestRetryingDoesNotRetryPermanentErrors(t *testing.T) {
	f := &flakyKV{Memory: NewMemory(), n: 10, err: errors.New("syntax error")}
	r := newTestRetrying(f, 3)
	_, err := r.Get(context.Background(), "k")
	require.EqualError(t, err, "syntax error")
	require.Equal(t, 1, f.calls)
}

package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryConfig bounds the retries of transient failures.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          zerolog.Logger
	// newBackOff overrides the schedule in tests.
	newBackOff func() backoff.BackOff
}

// Default retry schedule for storage calls.
const (
	DefaultStoreRetries     = 3
	DefaultStoreInitialWait = 50 * time.Millisecond
	DefaultStoreMaxWait     = 500 * time.Millisecond
)

// Retrying wraps a KV and retries StorageUnavailableError and
// StorageQuotaError with exponential backoff. Other errors return at once.
type Retrying struct {
	KV
	cfg RetryConfig
}

// NewRetrying wraps kv. Zero config fields take the package defaults.
func NewRetrying(kv KV, cfg RetryConfig) *Retrying {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultStoreRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultStoreInitialWait
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultStoreMaxWait
	}
	return &Retrying{KV: kv, cfg: cfg}
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if r.cfg.newBackOff != nil {
		b = r.cfg.newBackOff()
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = r.cfg.InitialInterval
		eb.MaxInterval = r.cfg.MaxInterval
		eb.MaxElapsedTime = 0
		b = eb
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)
}

func (r *Retrying) do(ctx context.Context, op, key string, fn func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.policy(ctx), func(err error, wait time.Duration) {
		r.cfg.Logger.Debug().Err(err).Str("op", op).Str("key", key).Int("attempt", attempt).Dur("wait", wait).Msg("retrying storage call")
	})
}

func (r *Retrying) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := r.do(ctx, "get", key, func() error {
		v, err := r.KV.Get(ctx, key)
		out = v
		return err
	})
	return out, err
}

func (r *Retrying) Set(ctx context.Context, key string, value []byte) error {
	return r.do(ctx, "set", key, func() error { return r.KV.Set(ctx, key, value) })
}

func (r *Retrying) Remove(ctx context.Context, key string) error {
	return r.do(ctx, "remove", key, func() error { return r.KV.Remove(ctx, key) })
}

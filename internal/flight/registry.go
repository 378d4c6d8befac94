// Package flight runs at most one operation per key at a time. Callers that
// arrive while a key is busy wait for the in-flight result instead of
// starting a duplicate.
package flight

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PanicError is returned to every waiter when the operation panicked.
type PanicError struct{ Value any }

func (e PanicError) Error() string { return fmt.Sprintf("operation panicked: %v", e.Value) }

// Registry deduplicates concurrent operations by key.
type Registry[T any] struct {
	group singleflight.Group

	mu  sync.Mutex
	ops map[string]*op
}

type op struct {
	cancel context.CancelCauseFunc
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{ops: make(map[string]*op)}
}

// Run invokes fn unless an operation for key is already in flight, in which
// case it waits for that operation's outcome. shared reports whether the
// result was delivered to more than one caller.
//
// fn runs on a context detached from ctx: a caller giving up only stops its
// own wait. The operation is cancelled by Cancel or when fn returns.
func (r *Registry[T]) Run(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (v T, shared bool, err error) {
	base := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (val any, err error) {
		opCtx, cancel := context.WithCancelCause(base)
		o := r.register(key, cancel)
		defer func() {
			if p := recover(); p != nil {
				err = PanicError{Value: p}
			}
			r.unregister(key, o)
			cancel(nil)
		}()
		return fn(opCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		out, _ := res.Val.(T)
		return out, res.Shared, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Cancel cancels the in-flight operation for key and clears its registration
// so the next caller starts fresh. It reports whether an operation was found.
func (r *Registry[T]) Cancel(key string) bool {
	return r.CancelCause(key, nil)
}

// CancelCause is Cancel with a cause visible to fn via context.Cause.
func (r *Registry[T]) CancelCause(key string, cause error) bool {
	r.mu.Lock()
	o, ok := r.ops[key]
	if ok {
		delete(r.ops, key)
	}
	r.mu.Unlock()
	r.group.Forget(key)
	if ok {
		o.cancel(cause)
	}
	return ok
}

// InFlight reports whether an operation is registered for key.
func (r *Registry[T]) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ops[key]
	return ok
}

// Len returns the number of registered operations.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func (r *Registry[T]) register(key string, cancel context.CancelCauseFunc) *op {
	o := &op{cancel: cancel}
	r.mu.Lock()
	r.ops[key] = o
	r.mu.Unlock()
	return o
}

// unregister removes o unless it was already replaced or cancelled.
func (r *Registry[T]) unregister(key string, o *op) {
	r.mu.Lock()
	if cur, ok := r.ops[key]; ok && cur == o {
		delete(r.ops, key)
	}
	r.mu.Unlock()
}

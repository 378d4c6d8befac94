package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sitecnd/internal/agent"
	"sitecnd/internal/clock"
	"sitecnd/pkg/types"
)

// scriptedAgent returns results in order; the last one repeats. A nil
// script entry blocks until the context ends.
type scriptedAgent struct {
	mu       sync.Mutex
	script   []func(ctx context.Context) (types.Snapshot, error)
	timeouts []time.Duration
	calls    atomic.Int32
	started  chan struct{}
}

func (a *scriptedAgent) ExtractOnce(ctx context.Context, tabID int, domain string, timeout time.Duration) (types.Snapshot, error) {
	n := int(a.calls.Add(1))
	a.mu.Lock()
	a.timeouts = append(a.timeouts, timeout)
	step := a.script[len(a.script)-1]
	if n <= len(a.script) {
		step = a.script[n-1]
	}
	a.mu.Unlock()
	if a.started != nil && n == 1 {
		close(a.started)
	}
	return step(ctx)
}

func timeoutStep(context.Context) (types.Snapshot, error) {
	return types.Snapshot{}, agent.TimeoutError{Domain: "example.com", After: time.Second}
}

func okStep(context.Context) (types.Snapshot, error) {
	return types.Snapshot{Domain: "example.com", Computed: types.Computed{BodyBg: "#fafafa"}}, nil
}

func blockStep(ctx context.Context) (types.Snapshot, error) {
	<-ctx.Done()
	return types.Snapshot{}, ctx.Err()
}

type fixedLocator struct {
	mu     sync.Mutex
	domain string
}

func (l *fixedLocator) Locate(context.Context, int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.domain
}

func (l *fixedLocator) set(d string) {
	l.mu.Lock()
	l.domain = d
	l.mu.Unlock()
}

type sessionLog struct {
	mu        sync.Mutex
	destroyed []string
}

func (s *sessionLog) DestroySession(domain string) {
	s.mu.Lock()
	s.destroyed = append(s.destroyed, domain)
	s.mu.Unlock()
}

func (s *sessionLog) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.destroyed...)
}

func newOrchestrator(a Agent, loc Locator, clk clock.Clock, sessions SessionDestroyer) *Orchestrator {
	return New(Config{Agent: a, Targets: loc, Sessions: sessions, Clock: clk, Logger: zerolog.Nop()})
}

func TestPolicyDefaults(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, 2*time.Second, p.Backoff(1))
	require.Equal(t, 4*time.Second, p.Backoff(2))
	require.Equal(t, 6*time.Second, p.Timeout(1))
	require.Equal(t, 7*time.Second, p.Timeout(2))
	require.Equal(t, 8*time.Second, p.Timeout(3))
	require.Equal(t, 8*time.Second, p.Timeout(9))
	require.Equal(t, 32*time.Second, p.Budget())
}

func TestPolicyScheduleDoublesWithoutJitter(t *testing.T) {
	p := Policy{BackoffUnit: 100 * time.Millisecond}.withDefaults()
	eb := p.schedule()
	for attempt := 1; attempt <= 5; attempt++ {
		want := p.BackoffUnit << uint(attempt)
		require.Equal(t, want, eb.NextBackOff(), "attempt %d", attempt)
		require.Equal(t, want, p.Backoff(attempt))
	}
	require.Equal(t, p.BackoffUnit<<maxBackoffShift, p.Backoff(40))
}

func TestExtractRetriesUntilExhausted(t *testing.T) {
	clk := clock.NewFake()
	clk.AutoAdvance = true
	a := &scriptedAgent{script: []func(context.Context) (types.Snapshot, error){timeoutStep}}
	o := newOrchestrator(a, &fixedLocator{domain: "example.com"}, clk, nil)

	_, err := o.Extract(context.Background(), 1, "example.com")
	require.True(t, IsExhausted(err))
	var ex ExhaustedError
	require.ErrorAs(t, err, &ex)
	require.Equal(t, 3, ex.Attempts)
	require.True(t, agent.IsTimeout(err))
	require.Equal(t, int32(3), a.calls.Load())
	require.Equal(t, []time.Duration{6 * time.Second, 7 * time.Second, 8 * time.Second}, a.timeouts)

	waits := clk.Waits()
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
	for i := 1; i < len(waits); i++ {
		require.GreaterOrEqual(t, waits[i], waits[i-1])
	}
	require.False(t, o.InFlight("example.com"))
}

func TestExtractSucceedsOnSecondAttempt(t *testing.T) {
	clk := clock.NewFake()
	clk.AutoAdvance = true
	a := &scriptedAgent{script: []func(context.Context) (types.Snapshot, error){timeoutStep, okStep}}
	o := newOrchestrator(a, &fixedLocator{domain: "example.com"}, clk, nil)

	snap, err := o.Extract(context.Background(), 1, "example.com")
	require.NoError(t, err)
	require.Equal(t, "#fafafa", snap.Computed.BodyBg)
	require.Equal(t, int32(2), a.calls.Load())
}

func TestExtractStopsWhenTargetChanges(t *testing.T) {
	clk := clock.NewFake()
	clk.AutoAdvance = true
	loc := &fixedLocator{domain: "example.com"}
	a := &scriptedAgent{script: []func(context.Context) (types.Snapshot, error){
		func(ctx context.Context) (types.Snapshot, error) {
			loc.set("other.org")
			return timeoutStep(ctx)
		},
	}}
	o := newOrchestrator(a, loc, clk, nil)

	_, err := o.Extract(context.Background(), 1, "example.com")
	require.True(t, IsTargetChanged(err))
	var tc TargetChangedError
	require.ErrorAs(t, err, &tc)
	require.Equal(t, "other.org", tc.Current)
	require.Equal(t, int32(1), a.calls.Load())
}

func TestConcurrentExtractsShareOneRun(t *testing.T) {
	release := make(chan struct{})
	a := &scriptedAgent{started: make(chan struct{}), script: []func(context.Context) (types.Snapshot, error){
		func(ctx context.Context) (types.Snapshot, error) {
			<-release
			return okStep(ctx)
		},
	}}
	o := newOrchestrator(a, &fixedLocator{domain: "example.com"}, clock.NewFake(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Extract(context.Background(), 1, "example.com")
			errs <- err
		}()
	}
	<-a.started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), a.calls.Load())
}

func TestConnectionClosedCancelsExtraction(t *testing.T) {
	clk := clock.NewFake()
	sessions := &sessionLog{}
	a := &scriptedAgent{started: make(chan struct{}), script: []func(context.Context) (types.Snapshot, error){blockStep}}
	o := newOrchestrator(a, &fixedLocator{domain: "foo.com"}, clk, sessions)

	done := make(chan error, 1)
	go func() {
		_, err := o.Extract(context.Background(), 7, "foo.com")
		done <- err
	}()
	<-a.started
	require.Equal(t, 1, clk.Pending())

	o.OnConnectionClosed(8)
	require.True(t, o.InFlight("foo.com"))

	o.OnConnectionClosed(7)
	require.False(t, o.InFlight("foo.com"))
	select {
	case err := <-done:
		require.True(t, IsCancelled(err), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("extraction not cancelled")
	}
	require.Equal(t, 0, clk.Pending())
	require.Equal(t, []string{"foo.com"}, sessions.list())
}

func TestWatchdogStopsAbandonedExtraction(t *testing.T) {
	clk := clock.NewFake()
	a := &scriptedAgent{started: make(chan struct{}), script: []func(context.Context) (types.Snapshot, error){blockStep}}
	o := newOrchestrator(a, &fixedLocator{domain: "slow.com"}, clk, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Extract(context.Background(), 1, "slow.com")
		done <- err
	}()
	<-a.started
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, 5*time.Millisecond)

	clk.Advance(o.Policy().Budget())
	select {
	case err := <-done:
		require.True(t, IsExhausted(err), "got %v", err)
		require.False(t, IsCancelled(err))
		var wd interface{ Timeout() bool }
		require.True(t, errors.As(err, &wd) && wd.Timeout())
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
	require.False(t, o.InFlight("slow.com"))
}

// Package extract runs snapshot extractions with retries, one at a time per
// domain, and tears them down when their tab goes away.
package extract

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/internal/flight"
	"sitecnd/pkg/types"
)

var extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sitecnd",
	Subsystem: "extract",
	Name:      "extractions_total",
	Help:      "Completed extractions by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(extractions)
}

// Agent performs a single extraction attempt.
type Agent interface {
	ExtractOnce(ctx context.Context, tabID int, domain string, timeout time.Duration) (types.Snapshot, error)
}

// Locator reports the domain a tab currently shows.
type Locator interface {
	Locate(ctx context.Context, tabID int) string
}

// SessionDestroyer drops the model session tied to a domain.
type SessionDestroyer interface {
	DestroySession(domain string)
}

// Config wires an Orchestrator.
type Config struct {
	Agent    Agent
	Targets  Locator
	Sessions SessionDestroyer
	Policy   Policy
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Orchestrator deduplicates and retries extractions.
type Orchestrator struct {
	agent    Agent
	targets  Locator
	sessions SessionDestroyer
	policy   Policy
	clk      clock.Clock
	log      zerolog.Logger
	reg      *flight.Registry[types.Snapshot]

	mu     sync.Mutex
	active map[string]*extraction
}

type extraction struct {
	tabID    int
	domain   string
	watchdog clock.Timer
	torn     bool
}

// New returns an Orchestrator.
func New(cfg Config) *Orchestrator {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Orchestrator{
		agent:    cfg.Agent,
		targets:  cfg.Targets,
		sessions: cfg.Sessions,
		policy:   cfg.Policy.withDefaults(),
		clk:      clk,
		log:      cfg.Logger,
		reg:      flight.New[types.Snapshot](),
		active:   make(map[string]*extraction),
	}
}

// Policy returns the effective retry policy.
func (o *Orchestrator) Policy() Policy { return o.policy }

// Extract returns a snapshot of domain from tabID. Concurrent calls for the
// same domain share one extraction.
func (o *Orchestrator) Extract(ctx context.Context, tabID int, domain string) (types.Snapshot, error) {
	snap, shared, err := o.reg.Run(ctx, domain, func(opCtx context.Context) (types.Snapshot, error) {
		e := o.track(tabID, domain)
		defer o.untrack(e)

		snap, err := o.extractWithRetry(opCtx, tabID, domain)
		if err != nil && opCtx.Err() != nil {
			o.mu.Lock()
			torn := e.torn
			o.mu.Unlock()
			if torn {
				return types.Snapshot{}, CancelledError{Domain: domain}
			}
		}
		return snap, err
	})
	if shared {
		o.log.Debug().Str("domain", domain).Msg("joined in-flight extraction")
	}
	return snap, err
}

// InFlight reports whether an extraction for domain is running.
func (o *Orchestrator) InFlight(domain string) bool { return o.reg.InFlight(domain) }

func (o *Orchestrator) extractWithRetry(ctx context.Context, tabID int, domain string) (types.Snapshot, error) {
	var last error
	pauses := o.policy.schedule()
	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if cur := o.targets.Locate(ctx, tabID); cur != domain {
			extractions.WithLabelValues("target_changed").Inc()
			return types.Snapshot{}, TargetChangedError{Domain: domain, Current: cur}
		}
		snap, err := o.agent.ExtractOnce(ctx, tabID, domain, o.policy.Timeout(attempt))
		if err == nil {
			extractions.WithLabelValues("ok").Inc()
			return snap, nil
		}
		if ctx.Err() != nil {
			return types.Snapshot{}, o.stopped(ctx, domain, attempt)
		}
		last = err
		o.log.Debug().Err(err).Str("domain", domain).Int("attempt", attempt).Msg("extract attempt failed")
		if attempt == o.policy.MaxAttempts {
			break
		}
		select {
		case <-o.clk.After(pauses.NextBackOff()):
		case <-ctx.Done():
			return types.Snapshot{}, o.stopped(ctx, domain, attempt)
		}
	}
	extractions.WithLabelValues("exhausted").Inc()
	return types.Snapshot{}, ExhaustedError{Domain: domain, Attempts: o.policy.MaxAttempts, Last: last}
}

func (o *Orchestrator) stopped(ctx context.Context, domain string, attempt int) error {
	if cause := context.Cause(ctx); cause != nil {
		if wd, ok := cause.(watchdogError); ok {
			extractions.WithLabelValues("watchdog").Inc()
			return ExhaustedError{Domain: domain, Attempts: attempt, Last: wd}
		}
	}
	extractions.WithLabelValues("cancelled").Inc()
	return ctx.Err()
}

// OnConnectionClosed cancels every extraction started from tabID and
// destroys the model sessions of the affected domains.
func (o *Orchestrator) OnConnectionClosed(tabID int) {
	o.mu.Lock()
	var domains []string
	for d, e := range o.active {
		if e.tabID != tabID {
			continue
		}
		e.torn = true
		if e.watchdog != nil {
			e.watchdog.Stop()
		}
		delete(o.active, d)
		domains = append(domains, d)
	}
	o.mu.Unlock()

	for _, d := range domains {
		o.reg.Cancel(d)
		if o.sessions != nil {
			o.sessions.DestroySession(d)
		}
		o.log.Info().Int("tab_id", tabID).Str("domain", d).Msg("extraction cancelled by tab teardown")
	}
}

func (o *Orchestrator) track(tabID int, domain string) *extraction {
	e := &extraction{tabID: tabID, domain: domain}
	e.watchdog = o.clk.AfterFunc(o.policy.Budget(), func() { o.expire(e) })
	o.mu.Lock()
	o.active[domain] = e
	o.mu.Unlock()
	return e
}

func (o *Orchestrator) untrack(e *extraction) {
	if e.watchdog != nil {
		e.watchdog.Stop()
	}
	o.mu.Lock()
	if cur, ok := o.active[e.domain]; ok && cur == e {
		delete(o.active, e.domain)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) expire(e *extraction) {
	o.mu.Lock()
	cur, ok := o.active[e.domain]
	if !ok || cur != e {
		o.mu.Unlock()
		return
	}
	delete(o.active, e.domain)
	o.mu.Unlock()
	o.log.Warn().Str("domain", e.domain).Dur("budget", o.policy.Budget()).Msg("extraction watchdog fired")
	o.reg.CancelCause(e.domain, watchdogError{domain: e.domain})
}

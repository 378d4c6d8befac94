// Package agent talks to the per-tab content agent: it probes for it,
// injects it when missing, and correlates extraction responses.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/pkg/types"
)

// State is a step of a single extraction attempt.
type State int

const (
	StateUnprobed State = iota
	StateProbing
	StateAlive
	StateAbsent
	StateInjecting
	StateInjected
	StateInjectFailed
	StateAwaiting
	StateResolved
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateUnprobed:
		return "unprobed"
	case StateProbing:
		return "probing"
	case StateAlive:
		return "agent_alive"
	case StateAbsent:
		return "agent_absent"
	case StateInjecting:
		return "injecting"
	case StateInjected:
		return "injected"
	case StateInjectFailed:
		return "inject_failed"
	case StateAwaiting:
		return "awaiting_response"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Channel moves commands to a tab's agent.
type Channel interface {
	// Probe reports whether an agent is listening in the tab.
	Probe(ctx context.Context, tabID int) bool
	// Inject installs the agent into the tab and returns once it listens.
	Inject(ctx context.Context, tabID int) error
	Send(ctx context.Context, tabID int, cmd types.AgentCommand) error
}

// Config wires a Protocol.
type Config struct {
	Channel Channel
	Clock   clock.Clock
	Logger  zerolog.Logger
	// OnState observes attempt transitions. Optional.
	OnState func(tabID int, domain string, s State)
}

// Protocol runs extraction attempts against content agents.
type Protocol struct {
	ch      Channel
	clk     clock.Clock
	log     zerolog.Logger
	onState func(int, string, State)

	mu      sync.Mutex
	waiters map[string]*waiter
}

type waiter struct {
	cmdID string
	resp  chan types.AgentResponse
}

// NewProtocol returns a Protocol. A nil clock means the wall clock.
func NewProtocol(cfg Config) *Protocol {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Protocol{
		ch:      cfg.Channel,
		clk:     clk,
		log:     cfg.Logger,
		onState: cfg.OnState,
		waiters: make(map[string]*waiter),
	}
}

// ExtractOnce performs one probe, inject-if-needed, request, await cycle.
// A page without style data yields an empty snapshot and no error.
func (p *Protocol) ExtractOnce(ctx context.Context, tabID int, domain string, timeout time.Duration) (types.Snapshot, error) {
	p.step(tabID, domain, StateProbing)
	if p.ch.Probe(ctx, tabID) {
		p.step(tabID, domain, StateAlive)
	} else {
		p.step(tabID, domain, StateAbsent)
		p.step(tabID, domain, StateInjecting)
		if err := p.ch.Inject(ctx, tabID); err != nil {
			p.step(tabID, domain, StateInjectFailed)
			return types.Snapshot{}, InjectionError{TabID: tabID, Err: err}
		}
		p.step(tabID, domain, StateInjected)
	}

	cmd := types.AgentCommand{
		ID:     uuid.NewString(),
		Kind:   types.CommandExtractSnapshot,
		TabID:  tabID,
		Domain: domain,
	}
	// The listener must exist before the command is sent.
	w := p.listen(domain, cmd.ID)
	defer p.unlisten(domain, w)

	if err := p.ch.Send(ctx, tabID, cmd); err != nil {
		return types.Snapshot{}, AbsentError{TabID: tabID, Err: err}
	}
	p.step(tabID, domain, StateAwaiting)

	select {
	case resp := <-w.resp:
		p.step(tabID, domain, StateResolved)
		if resp.Status == "error" {
			return types.Snapshot{}, AgentError{Domain: domain, Reason: resp.Error}
		}
		if resp.Snapshot == nil {
			return types.Snapshot{Domain: domain}, nil
		}
		snap := *resp.Snapshot
		snap.Domain = domain
		return snap, nil
	case <-p.clk.After(timeout):
		p.step(tabID, domain, StateTimedOut)
		return types.Snapshot{}, TimeoutError{Domain: domain, After: timeout}
	case <-ctx.Done():
		return types.Snapshot{}, ctx.Err()
	}
}

// Deliver routes an agent response to the waiting attempt for its domain.
// It returns false for responses nobody waits for; those are counted and
// discarded.
func (p *Protocol) Deliver(tabID int, resp types.AgentResponse) bool {
	p.mu.Lock()
	w, ok := p.waiters[resp.Domain]
	if ok {
		delete(p.waiters, resp.Domain)
	}
	p.mu.Unlock()
	if !ok {
		lateResponses.Inc()
		p.log.Debug().Int("tab_id", tabID).Str("domain", resp.Domain).Msg("discarding unmatched agent response")
		return false
	}
	w.resp <- resp
	return true
}

// Waiting reports whether an attempt awaits a response for domain.
func (p *Protocol) Waiting(domain string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.waiters[domain]
	return ok
}

func (p *Protocol) listen(domain, cmdID string) *waiter {
	w := &waiter{cmdID: cmdID, resp: make(chan types.AgentResponse, 1)}
	p.mu.Lock()
	p.waiters[domain] = w
	p.mu.Unlock()
	return w
}

func (p *Protocol) unlisten(domain string, w *waiter) {
	p.mu.Lock()
	if cur, ok := p.waiters[domain]; ok && cur == w {
		delete(p.waiters, domain)
	}
	p.mu.Unlock()
}

func (p *Protocol) step(tabID int, domain string, s State) {
	switch s {
	case StateResolved, StateTimedOut, StateInjectFailed:
		attempts.WithLabelValues(s.String()).Inc()
	}
	p.log.Debug().Int("tab_id", tabID).Str("domain", domain).Stringer("state", s).Msg("extract attempt")
	if p.onState != nil {
		p.onState(tabID, domain, s)
	}
}

package manager

import (
	"context"
	"time"
)

// maxCreateRounds bounds how often a caller rejoins creation when a
// concurrent caller created a session with another system prompt.
const maxCreateRounds = 3

// GetOrCreateSession returns the session for domain, creating it on first
// use. Concurrent callers share one creation. A session primed with a
// different system prompt is replaced.
func (m *Manager) GetOrCreateSession(ctx context.Context, domain, systemPrompt string) (*Instance, error) {
	for round := 0; round < maxCreateRounds; round++ {
		if inst := m.reuse(domain, systemPrompt); inst != nil {
			return inst, nil
		}
		inst, _, err := m.creating.Run(ctx, domain, func(ctx context.Context) (*Instance, error) {
			return m.create(ctx, domain, systemPrompt)
		})
		if err != nil {
			return nil, err
		}
		if inst.SystemPrompt == systemPrompt {
			return inst, nil
		}
	}
	return nil, tooBusyError{domain: domain}
}

// reuse returns a ready instance with a matching system prompt.
func (m *Manager) reuse(domain, systemPrompt string) *Instance {
	m.mu.RLock()
	inst := m.instances[domain]
	ok := inst != nil && inst.State == StateReady && inst.SystemPrompt == systemPrompt
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	// Upgrade to write lock to safely mutate LastUsed and re-check state
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur := m.instances[domain]; cur == inst && inst.State == StateReady {
		inst.LastUsed = m.clk.Now()
		return inst
	}
	return nil
}

func (m *Manager) create(ctx context.Context, domain, systemPrompt string) (*Instance, error) {
	if inst := m.reuse(domain, systemPrompt); inst != nil {
		return inst, nil
	}
	startTs := m.clk.Now()
	sess, err := m.model.CreateSession(ctx, systemPrompt)
	if err != nil {
		m.log.Warn().Err(err).Str("domain", domain).Msg("create session failed")
		return nil, err
	}
	now := m.clk.Now()
	inst := &Instance{
		Domain:       domain,
		SystemPrompt: systemPrompt,
		State:        StateReady,
		Created:      now,
		LastUsed:     now,
		session:      sess,
		genCh:        make(chan struct{}, 1),
		queueCh:      make(chan struct{}, m.maxQueueDepth),
	}

	m.mu.Lock()
	old := m.instances[domain]
	m.instances[domain] = inst
	if old != nil {
		old.State = StateDraining
	}
	n := len(m.instances)
	m.mu.Unlock()
	activeSessions.Set(float64(n))

	if old != nil {
		m.log.Info().Str("domain", domain).Msg("system prompt changed, replacing session")
		m.publish(Event{Name: EventSessionReplaced, Domain: domain})
		go m.drainAndDestroy(old)
	}
	m.log.Debug().Str("domain", domain).Dur("took", now.Sub(startTs)).Msg("session created")
	m.publish(Event{Name: EventSessionCreated, Domain: domain, Fields: map[string]any{"dur_ms": int(now.Sub(startTs) / time.Millisecond)}})
	return inst, nil
}

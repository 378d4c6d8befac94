package manager

import (
	"time"
)

// DestroySession removes the session for domain and destroys it once its
// in-flight prompt finished or DrainTimeout elapsed. It is best-effort and
// idempotent.
func (m *Manager) DestroySession(domain string) {
	m.mu.Lock()
	inst := m.instances[domain]
	if inst == nil {
		m.mu.Unlock()
		return
	}
	delete(m.instances, domain)
	inst.State = StateDraining
	n := len(m.instances)
	m.mu.Unlock()
	activeSessions.Set(float64(n))

	m.creating.Cancel(domain)
	m.drainAndDestroy(inst)
}

// drainAndDestroy waits up to drainTimeout for in-flight and queued prompts
// to finish, then destroys the session.
func (m *Manager) drainAndDestroy(inst *Instance) {
	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.log.Warn().Str("domain", inst.Domain).Int("inflight", inflight).Int("queue", qlen).Msg("destroying busy session")
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if inst.session != nil {
		if err := inst.session.Destroy(); err != nil {
			m.log.Debug().Err(err).Str("domain", inst.Domain).Msg("session destroy failed")
		}
	}
	m.publish(Event{Name: EventSessionDestroyed, Domain: inst.Domain})
}

package manager

import "context"

// Acquire reserves a queue slot and then the single in-flight slot of inst.
// Returns a release func to be deferred. A session serves one prompt at a
// time; later callers wait in FIFO-ish order up to MaxWait per stage.
func (m *Manager) Acquire(ctx context.Context, inst *Instance) (func(), error) {
	if inst == nil {
		return func() {}, sessionClosedError{domain: "(none)"}
	}
	if m.draining(inst) {
		return func() {}, sessionClosedError{domain: inst.Domain}
	}

	// Try to reserve a queue slot with timeout
	select {
	case inst.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-m.clk.After(m.maxWait):
		return func() {}, tooBusyError{domain: inst.Domain}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	select {
	case inst.genCh <- struct{}{}:
		acquired = true
		// update last used
		m.mu.Lock()
		inst.LastUsed = m.clk.Now()
		m.mu.Unlock()
		return func() { <-inst.genCh; <-inst.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-m.clk.After(m.maxWait):
		return func() {}, tooBusyError{domain: inst.Domain}
	}
}

// Prompt runs one non-streaming prompt on inst while holding its slot.
func (m *Manager) Prompt(ctx context.Context, inst *Instance, text string) (string, error) {
	release, err := m.Acquire(ctx, inst)
	if err != nil {
		return "", err
	}
	defer release()
	if m.draining(inst) {
		return "", sessionClosedError{domain: inst.Domain}
	}
	return inst.session.Prompt(ctx, text)
}

func (m *Manager) draining(inst *Instance) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inst.State == StateDraining
}

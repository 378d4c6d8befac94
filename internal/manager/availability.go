package manager

import (
	"context"

	"sitecnd/pkg/types"
)

// Availability returns the cached availability without probing.
func (m *Manager) Availability() types.Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availability
}

// ProbeAvailability asks the model for its availability. Without force, a
// probe within ProbeThrottle of the previous one is skipped and the cached
// value returned. A changed value is cached, persisted and published as
// availability_changed; an unchanged one is silent. Probe failures count as
// unavailable.
func (m *Manager) ProbeAvailability(ctx context.Context, force bool) types.Availability {
	m.probeMu.Lock()
	now := m.clk.Now()
	if !force && m.probed && now.Sub(m.lastProbe) <= m.probeThrottle {
		m.probeMu.Unlock()
		return m.Availability()
	}
	m.lastProbe = now
	m.probed = true

	a, err := m.model.Availability(ctx)
	if err != nil || !a.Valid() {
		m.log.Debug().Err(err).Str("availability", string(a)).Msg("availability probe failed")
		a = types.AvailabilityUnavailable
	}
	probesTotal.WithLabelValues(string(a)).Inc()
	m.mu.Lock()
	prev := m.availability
	m.availability = a
	m.mu.Unlock()
	m.probeMu.Unlock()

	if a == prev {
		return a
	}
	m.log.Info().Str("from", string(prev)).Str("to", string(a)).Msg("model availability changed")
	m.publish(Event{Name: EventAvailabilityChanged, Fields: map[string]any{"availability": a, "previous": prev}})
	if m.store != nil {
		if err := m.store.SetModelAvailability(ctx, a); err != nil {
			m.log.Warn().Err(err).Msg("persist availability")
		}
	}
	return a
}

// StartPolling starts the interval probe loop. It reports false when the
// loop was already running.
func (m *Manager) StartPolling() bool {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	if m.pollStop != nil {
		return false
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.pollStop, m.pollDone = stop, done
	ticker := m.clk.NewTicker(m.pollInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				m.ProbeAvailability(context.Background(), false)
			case <-stop:
				return
			}
		}
	}()
	m.log.Debug().Dur("interval", m.pollInterval).Msg("availability polling started")
	m.publish(Event{Name: EventPollStart, Fields: map[string]any{"interval": m.pollInterval.String()}})
	return true
}

// StopPolling stops the probe loop and waits for it to exit. It reports
// false when no loop was running.
func (m *Manager) StopPolling() bool {
	m.pollMu.Lock()
	stop, done := m.pollStop, m.pollDone
	m.pollStop, m.pollDone = nil, nil
	m.pollMu.Unlock()
	if stop == nil {
		return false
	}
	close(stop)
	<-done
	m.log.Debug().Msg("availability polling stopped")
	m.publish(Event{Name: EventPollStop})
	return true
}

// Polling reports whether the probe loop is running.
func (m *Manager) Polling() bool {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	return m.pollStop != nil
}

package manager

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/internal/flight"
	"sitecnd/pkg/types"
)

// Manager owns the model sessions, one per domain, and the cached model
// availability.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	creating  *flight.Registry[*Instance]

	model     LanguageModel
	modelPath string
	store     AvailabilityStore
	publisher EventPublisher
	log       zerolog.Logger
	clk       clock.Clock
	startTime time.Time

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	// Availability probing; probeMu serializes probes, mu guards the value.
	probeMu       sync.Mutex
	availability  types.Availability
	lastProbe     time.Time
	probed        bool
	probeThrottle time.Duration

	// Poll loop, present iff pollStop != nil.
	pollMu       sync.Mutex
	pollStop     chan struct{}
	pollDone     chan struct{}
	pollInterval time.Duration
}

// New returns a Manager over model with package defaults.
func New(model LanguageModel, logger zerolog.Logger) *Manager {
	// Delegate to NewWithConfig to centralize defaults and option parsing
	return NewWithConfig(ManagerConfig{Model: model, Logger: logger})
}

// SetEventPublisher replaces the event sink. nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		m.publisher = noopPublisher{}
		return
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	p.Publish(e)
}

// Ready reports whether the last probe found the model available.
func (m *Manager) Ready() bool {
	return m.Availability() == types.AvailabilityAvailable
}

// Instance returns the live session for domain, if any.
func (m *Manager) Instance(domain string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[domain]
	return inst, ok
}

// Close stops polling and destroys every session.
func (m *Manager) Close() {
	m.StopPolling()
	m.mu.RLock()
	domains := make([]string, 0, len(m.instances))
	for d := range m.instances {
		domains = append(domains, d)
	}
	m.mu.RUnlock()
	for _, d := range domains {
		m.DestroySession(d)
	}
	if c, ok := m.model.(io.Closer); ok {
		if err := c.Close(); err != nil {
			m.log.Debug().Err(err).Msg("close model")
		}
	}
}

package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/internal/flight"
	"sitecnd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 4
	defaultMaxWait       = 2 * time.Minute
	defaultDrainTimeout  = 5 * time.Second
	defaultProbeThrottle = 2 * time.Second
	defaultPollInterval  = 15 * time.Second
)

// AvailabilityStore persists the last probed availability.
type AvailabilityStore interface {
	SetModelAvailability(ctx context.Context, a types.Availability) error
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Model is the runtime. When nil, the llama adapter is built from the
	// Llama* fields.
	Model         LanguageModel
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	ProbeThrottle time.Duration
	PollInterval  time.Duration
	Store         AvailabilityStore
	Publisher     EventPublisher
	Clock         clock.Clock
	Logger        zerolog.Logger
	// Inference / llama.cpp configuration (no envs; set by callers)
	LlamaModelPath string
	LlamaCtx       int
	LlamaThreads   int
	Params         GenParams
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		instances:    make(map[string]*Instance),
		creating:     flight.New[*Instance](),
		availability: types.AvailabilityUnavailable,
		store:        cfg.Store,
		log:          cfg.Logger,
		modelPath:    cfg.LlamaModelPath,
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if cfg.ProbeThrottle <= 0 {
		m.probeThrottle = defaultProbeThrottle
	} else {
		m.probeThrottle = cfg.ProbeThrottle
	}
	if cfg.PollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	} else {
		m.pollInterval = cfg.PollInterval
	}
	if cfg.Clock == nil {
		m.clk = clock.Real()
	} else {
		m.clk = cfg.Clock
	}
	m.SetEventPublisher(cfg.Publisher)
	if cfg.Model != nil {
		m.model = cfg.Model
	} else {
		m.model = NewLlamaModel(LlamaConfig{
			ModelPath: cfg.LlamaModelPath,
			CtxSize:   cfg.LlamaCtx,
			Threads:   cfg.LlamaThreads,
			Params:    cfg.Params,
		})
	}
	m.startTime = m.clk.Now()
	return m
}

// Package app assembles the daemon from its parts.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/agent"
	"sitecnd/internal/clock"
	"sitecnd/internal/config"
	"sitecnd/internal/coordinator"
	"sitecnd/internal/events"
	"sitecnd/internal/extract"
	"sitecnd/internal/manager"
	"sitecnd/internal/registry"
	"sitecnd/internal/store"
	"sitecnd/internal/tabs"
	"sitecnd/internal/target"
	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

// App is a running daemon. It implements httpapi.Service.
type App struct {
	log     zerolog.Logger
	maxPoll time.Duration

	kv       store.KV
	sites    *store.Sites
	tabs     *tabs.Store
	bridge   *agent.Bridge
	protocol *agent.Protocol
	resolver *target.Resolver
	orch     *extract.Orchestrator
	mgr      *manager.Manager
	broker   *events.Broker
	coord    *coordinator.Coordinator
}

// Options replaces parts of the default wiring. Tests pass a fake model.
type Options struct {
	Model manager.LanguageModel
	Clock clock.Clock
}

// New opens the store and wires every component from cfg.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*App, error) {
	cfg.ApplyDefaults()
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	kv, err := store.Open(ctx, cfg.Store, log.With().Str("component", "store").Logger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{
		log:     log,
		maxPoll: cfg.Agent.MaxPoll.D(),
		kv:      kv,
		sites:   store.NewSites(kv, clk, log.With().Str("component", "sites").Logger()),
		tabs:    tabs.NewStore(),
		broker:  events.NewBroker(),
	}
	a.bridge = agent.NewBridge(agent.BridgeConfig{
		MaxPending: cfg.Agent.MaxPending,
		LiveWindow: cfg.Agent.LiveWindow.D(),
		InjectWait: cfg.Agent.InjectWait.D(),
		Clock:      clk,
		Logger:     log.With().Str("component", "bridge").Logger(),
	})
	a.protocol = agent.NewProtocol(agent.Config{
		Channel: a.bridge,
		Clock:   clk,
		Logger:  log.With().Str("component", "agent").Logger(),
	})

	modelPath := ""
	if cfg.Model.Path != "" {
		if modelPath, err = registry.ResolveModelPath(cfg.Model.Path, cfg.Model.Name); err != nil {
			log.Warn().Err(err).Str("model_path", cfg.Model.Path).Msg("model not found; serving heuristic output only")
		}
	}
	a.mgr = manager.NewWithConfig(manager.ManagerConfig{
		Model:          opts.Model,
		MaxQueueDepth:  cfg.Model.MaxQueueDepth,
		MaxWait:        cfg.Model.MaxWait.D(),
		DrainTimeout:   cfg.Model.DrainTimeout.D(),
		ProbeThrottle:  cfg.Model.ProbeThrottle.D(),
		PollInterval:   cfg.Model.PollInterval.D(),
		Store:          a.sites,
		Clock:          clk,
		Logger:         log.With().Str("component", "manager").Logger(),
		LlamaModelPath: modelPath,
		LlamaCtx:       cfg.Model.CtxSize,
		LlamaThreads:   cfg.Model.Threads,
		Params:         manager.GenParams{Temperature: cfg.Model.Temperature, MaxTokens: cfg.Model.MaxTokens},
	})

	// The resolver notifies through the coordinator, which is built after it.
	a.resolver = target.New(target.Config{
		Tabs:           a.tabs,
		Notify:         func(ctx context.Context, d string) { a.coord.NotifyActiveDomain(ctx, d) },
		HasSubscribers: func() bool { return a.coord.HasSubscribers() },
		Logger:         log.With().Str("component", "target").Logger(),
	})
	a.orch = extract.New(extract.Config{
		Agent:    a.protocol,
		Targets:  a.resolver,
		Sessions: a.mgr,
		Policy: extract.Policy{
			MaxAttempts:    cfg.Extract.MaxAttempts,
			BackoffUnit:    cfg.Extract.BackoffUnit.D(),
			TimeoutBase:    cfg.Extract.TimeoutBase.D(),
			TimeoutStep:    cfg.Extract.TimeoutStep.D(),
			TimeoutCeiling: cfg.Extract.TimeoutCeiling.D(),
			WatchdogSlack:  cfg.Extract.WatchdogSlack.D(),
		},
		Clock:  clk,
		Logger: log.With().Str("component", "extract").Logger(),
	})
	themes := theme.NewRegistry(theme.RegistryConfig{
		URL:    cfg.Themes.RegistryURL,
		TTL:    cfg.Themes.TTL.D(),
		Clock:  clk,
		Logger: log.With().Str("component", "themes").Logger(),
	})
	a.coord = coordinator.New(coordinator.Config{
		Broker:          a.broker,
		Tabs:            a.tabs,
		Targets:         a.resolver,
		Extractor:       a.orch,
		Sessions:        a.mgr,
		Host:            a.bridge,
		Sites:           a.sites,
		Themes:          themes,
		Clock:           clk,
		Logger:          log.With().Str("component", "coordinator").Logger(),
		GenerateTimeout: cfg.GenerateTimeout.D(),
	})
	a.mgr.SetEventPublisher(a.coord)

	if last := a.sites.ModelAvailability(ctx); last != nil {
		log.Info().Str("availability", string(last.Value)).Time("at", time.UnixMilli(last.At)).Msg("last known model availability")
	}
	return a, nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.coord.Close()
	a.mgr.Close()
	return a.kv.Close()
}

// Handle routes one inbound message.
func (a *App) Handle(ctx context.Context, msg types.Message) (coordinator.Reply, error) {
	return a.coord.Handle(ctx, msg)
}

// OnTabEvent applies a browser tab signal.
func (a *App) OnTabEvent(ctx context.Context, ev types.TabEvent) error {
	return a.coord.OnTabEvent(ctx, ev)
}

// Subscribe registers a side panel observer.
func (a *App) Subscribe(ctx context.Context, id string) (string, types.Availability) {
	return a.coord.Subscribe(ctx, id)
}

// Unsubscribe removes a side panel observer.
func (a *App) Unsubscribe(id string) { a.coord.Unsubscribe(id) }

// Events streams broadcasts until ctx ends.
func (a *App) Events(ctx context.Context) <-chan events.Envelope { return a.broker.Subscribe(ctx) }

// PollAgent hands queued commands to the agent in tabID.
func (a *App) PollAgent(ctx context.Context, tabID int, wait time.Duration) []types.AgentCommand {
	return a.bridge.Poll(ctx, tabID, a.clampPoll(wait))
}

// PollHost hands queued tab-level commands to the host shim.
func (a *App) PollHost(ctx context.Context, wait time.Duration) []types.AgentCommand {
	return a.bridge.PollHost(ctx, a.clampPoll(wait))
}

// DeliverAgent passes an agent response to the waiting attempt.
func (a *App) DeliverAgent(tabID int, resp types.AgentResponse) bool {
	return a.protocol.Deliver(tabID, resp)
}

// Status reports model, polling and subscriber state.
func (a *App) Status() types.StatusResponse {
	st := a.mgr.Status()
	st.Subscribers = a.coord.Subscribers()
	return st
}

// Ready reports whether the model can serve prompts.
func (a *App) Ready() bool { return a.mgr.Ready() }

func (a *App) clampPoll(wait time.Duration) time.Duration {
	if wait < 0 {
		return 0
	}
	if a.maxPoll > 0 && wait > a.maxPoll {
		return a.maxPoll
	}
	return wait
}

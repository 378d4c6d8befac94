// Package coordinator routes inbound messages to the target resolver, the
// extraction orchestrator and the model session manager, and turns every
// outcome into a broadcast.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/internal/manager"
	"sitecnd/internal/store"
	"sitecnd/internal/tabs"
	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

// DefaultGenerateTimeout bounds one model call.
const DefaultGenerateTimeout = 2 * time.Minute

// Broadcaster fans a message out to every observer.
type Broadcaster interface {
	Publish(msg types.Message) int
}

// Extractor produces page snapshots. See extract.Orchestrator.
type Extractor interface {
	Extract(ctx context.Context, tabID int, domain string) (types.Snapshot, error)
	OnConnectionClosed(tabID int)
}

// Targets resolves domains. See target.Resolver.
type Targets interface {
	ResolveCurrent(ctx context.Context) string
	ResolveForTab(ctx context.Context, tabID int) string
	OnURLChanged(ctx context.Context, tabID int, rawURL string, active bool)
	OnTargetChange(ctx context.Context, tabID int)
	Forget(tabID int)
}

// Sessions is the model side. See manager.Manager.
type Sessions interface {
	GetOrCreateSession(ctx context.Context, domain, systemPrompt string) (*manager.Instance, error)
	Acquire(ctx context.Context, inst *manager.Instance) (func(), error)
	Prompt(ctx context.Context, inst *manager.Instance, text string) (string, error)
	ProbeAvailability(ctx context.Context, force bool) types.Availability
	Availability() types.Availability
	StartPolling() bool
	StopPolling() bool
}

// Host reaches content agents and the tab host. See agent.Bridge.
type Host interface {
	Send(ctx context.Context, tabID int, cmd types.AgentCommand) error
	InsertCSS(tabID int, domain, css string)
	RemoveCSS(tabID int, domain, css string)
	Drop(tabID int)
}

// Config wires a Coordinator. Themes may be nil.
type Config struct {
	Broker          Broadcaster
	Tabs            *tabs.Store
	Targets         Targets
	Extractor       Extractor
	Sessions        Sessions
	Host            Host
	Sites           *store.Sites
	Themes          *theme.Registry
	Clock           clock.Clock
	Logger          zerolog.Logger
	GenerateTimeout time.Duration
}

// Coordinator owns the subscriber set and the in-flight request table.
type Coordinator struct {
	broker    Broadcaster
	tabs      *tabs.Store
	targets   Targets
	extractor Extractor
	sessions  Sessions
	host      Host
	sites     *store.Sites
	themes    *theme.Registry
	clk       clock.Clock
	log       zerolog.Logger
	genWait   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subsMu sync.Mutex
	subs   map[string]struct{}

	mu      sync.Mutex
	pending map[string]string // request key -> op id
}

// New returns a Coordinator. Close stops its background work.
func New(cfg Config) *Coordinator {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	wait := cfg.GenerateTimeout
	if wait <= 0 {
		wait = DefaultGenerateTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		broker:    cfg.Broker,
		tabs:      cfg.Tabs,
		targets:   cfg.Targets,
		extractor: cfg.Extractor,
		sessions:  cfg.Sessions,
		host:      cfg.Host,
		sites:     cfg.Sites,
		themes:    cfg.Themes,
		clk:       clk,
		log:       cfg.Logger,
		genWait:   wait,
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[string]struct{}),
		pending:   make(map[string]string),
	}
}

// Close cancels background requests and waits for them to finish.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until every background request has emitted its result.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Publish implements manager.EventPublisher. Availability changes become
// modelStatus broadcasts.
func (c *Coordinator) Publish(e manager.Event) {
	if e.Name != manager.EventAvailabilityChanged {
		return
	}
	a, _ := e.Fields["availability"].(types.Availability)
	if a == "" {
		return
	}
	c.broadcast(types.KindModelStatus, types.ModelStatusPayload{Availability: a})
}

// NotifyActiveDomain broadcasts a target change. It is the resolver's
// notify hook.
func (c *Coordinator) NotifyActiveDomain(_ context.Context, domain string) {
	c.broadcast(types.KindActiveDomain, types.ActiveDomainPayload{Domain: domain})
}

func (c *Coordinator) broadcast(kind types.Kind, payload any) {
	msg := types.NewMessage(kind, payload)
	msg.Origin = types.OriginBackground
	n := c.broker.Publish(msg)
	c.log.Debug().Str("kind", string(kind)).Int("observers", n).Msg("broadcast")
}

// async runs fn in the background on the coordinator's context. A panic is
// converted into the terminal event built by fail.
func (c *Coordinator) async(kind types.Kind, domain string, fn func(ctx context.Context), fail func(info types.ErrorInfo)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				panicsTotal.WithLabelValues(string(kind)).Inc()
				c.log.Error().Interface("panic", r).Str("kind", string(kind)).Str("domain", domain).Msg("request handler panicked")
				fail(internalError())
			}
		}()
		fn(c.ctx)
	}()
}

// claim registers key as in flight. A request equal to one still running
// joins it and gets its op id back with ok false.
func (c *Coordinator) claim(key, opID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.pending[key]; ok {
		return id, false
	}
	c.pending[key] = opID
	return opID, true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

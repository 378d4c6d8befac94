package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/pkg/types"
)

// Defaults for the polling bridge.
const (
	DefaultMaxPending = 5
	DefaultLiveWindow = 10 * time.Second
	DefaultInjectWait = 3 * time.Second

	hostQueueName  = "host"
	agentQueueName = "agent"
)

var errNoArrival = errors.New("agent did not connect after injection")

// BridgeConfig tunes a Bridge. Zero values take the package defaults.
type BridgeConfig struct {
	MaxPending int
	// LiveWindow is how recently an agent must have polled to count as alive.
	LiveWindow time.Duration
	// InjectWait bounds how long Inject waits for a fresh agent to poll.
	InjectWait time.Duration
	Clock      clock.Clock
	Logger     zerolog.Logger
}

// Bridge is a queue-and-poll transport. Agents and the tab host long-poll
// for commands; the daemon enqueues them. Each queue keeps at most
// MaxPending commands and drops the oldest on overflow.
type Bridge struct {
	maxPending int
	liveWindow time.Duration
	injectWait time.Duration
	clk        clock.Clock
	log        zerolog.Logger

	mu     sync.Mutex
	agents map[int]*queue
	host   *queue
}

type queue struct {
	cmds     []types.AgentCommand
	notify   chan struct{}
	lastPoll time.Time
	polling  int
	arrived  []chan struct{}
}

func newQueue() *queue { return &queue{notify: make(chan struct{}, 1)} }

// NewBridge returns an empty bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	b := &Bridge{
		maxPending: cfg.MaxPending,
		liveWindow: cfg.LiveWindow,
		injectWait: cfg.InjectWait,
		clk:        cfg.Clock,
		log:        cfg.Logger,
		agents:     make(map[int]*queue),
		host:       newQueue(),
	}
	if b.maxPending <= 0 {
		b.maxPending = DefaultMaxPending
	}
	if b.liveWindow <= 0 {
		b.liveWindow = DefaultLiveWindow
	}
	if b.injectWait <= 0 {
		b.injectWait = DefaultInjectWait
	}
	if b.clk == nil {
		b.clk = clock.Real()
	}
	return b
}

// Poll is called by the agent in tabID. It returns queued commands, waiting
// up to wait for one to arrive.
func (b *Bridge) Poll(ctx context.Context, tabID int, wait time.Duration) []types.AgentCommand {
	b.mu.Lock()
	q, ok := b.agents[tabID]
	if !ok {
		q = newQueue()
		b.agents[tabID] = q
	}
	q.lastPoll = b.clk.Now()
	q.polling++
	for _, ch := range q.arrived {
		close(ch)
	}
	q.arrived = nil
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		q.polling--
		q.lastPoll = b.clk.Now()
		b.mu.Unlock()
	}()
	return b.drain(ctx, q, wait)
}

// PollHost is called by the tab host for tab-level commands.
func (b *Bridge) PollHost(ctx context.Context, wait time.Duration) []types.AgentCommand {
	return b.drain(ctx, b.host, wait)
}

func (b *Bridge) drain(ctx context.Context, q *queue, wait time.Duration) []types.AgentCommand {
	if out := b.take(q); len(out) > 0 || wait <= 0 {
		return out
	}
	select {
	case <-q.notify:
	case <-b.clk.After(wait):
	case <-ctx.Done():
	}
	return b.take(q)
}

func (b *Bridge) take(q *queue) []types.AgentCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := q.cmds
	q.cmds = nil
	return out
}

// Probe reports whether an agent for tabID is polling or polled recently.
func (b *Bridge) Probe(_ context.Context, tabID int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alive(tabID) != nil
}

// alive returns the queue of a live agent for tabID, or nil. It requires b.mu.
func (b *Bridge) alive(tabID int) *queue {
	q, ok := b.agents[tabID]
	if !ok {
		return nil
	}
	if q.polling > 0 || b.clk.Now().Sub(q.lastPoll) < b.liveWindow {
		return q
	}
	return nil
}

// Inject asks the host to install the agent into tabID and waits for the
// agent's first poll.
func (b *Bridge) Inject(ctx context.Context, tabID int) error {
	arrived := make(chan struct{})
	b.mu.Lock()
	q, ok := b.agents[tabID]
	if !ok {
		q = newQueue()
		b.agents[tabID] = q
	}
	q.arrived = append(q.arrived, arrived)
	b.mu.Unlock()

	b.SendHost(types.AgentCommand{Kind: types.CommandInject, TabID: tabID})

	select {
	case <-arrived:
		return nil
	case <-b.clk.After(b.injectWait):
		return errNoArrival
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues cmd for the agent in tabID. It fails with ErrNoAgent when the
// agent is not alive.
func (b *Bridge) Send(_ context.Context, tabID int, cmd types.AgentCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.alive(tabID)
	if q == nil {
		return ErrNoAgent
	}
	b.push(q, cmd, agentQueueName)
	return nil
}

// SendHost queues a tab-level command for the host.
func (b *Bridge) SendHost(cmd types.AgentCommand) {
	b.mu.Lock()
	b.push(b.host, cmd, hostQueueName)
	b.mu.Unlock()
}

// InsertCSS asks the host to insert css into tabID.
func (b *Bridge) InsertCSS(tabID int, domain, css string) {
	b.SendHost(types.AgentCommand{Kind: types.CommandInsertCSS, TabID: tabID, Domain: domain, CSS: css})
}

// RemoveCSS asks the host to remove previously inserted css from tabID.
func (b *Bridge) RemoveCSS(tabID int, domain, css string) {
	b.SendHost(types.AgentCommand{Kind: types.CommandRemoveCSS, TabID: tabID, Domain: domain, CSS: css})
}

// Drop forgets the agent queue for a removed tab.
func (b *Bridge) Drop(tabID int) {
	b.mu.Lock()
	delete(b.agents, tabID)
	b.mu.Unlock()
}

// push requires b.mu.
func (b *Bridge) push(q *queue, cmd types.AgentCommand, name string) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if len(q.cmds) >= b.maxPending {
		dropped := q.cmds[0]
		q.cmds = q.cmds[1:]
		droppedCommands.WithLabelValues(name).Inc()
		b.log.Warn().Str("queue", name).Str("command_id", dropped.ID).Str("kind", dropped.Kind).Msg("command queue overflow, dropping oldest")
	}
	q.cmds = append(q.cmds, cmd)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

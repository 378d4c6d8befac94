package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/agent"
	"sitecnd/internal/clock"
	"sitecnd/internal/extract"
	"sitecnd/internal/manager"
	"sitecnd/internal/store"
	"sitecnd/internal/tabs"
	"sitecnd/internal/target"
	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

// recorder is a Broadcaster that keeps every message in order.
type recorder struct {
	mu   sync.Mutex
	msgs []types.Message
}

func (r *recorder) Publish(msg types.Message) int {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return 1
}

func (r *recorder) kind(k types.Kind) []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Message
	for _, m := range r.msgs {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) generations(t *testing.T) []types.GenerationResult {
	t.Helper()
	var out []types.GenerationResult
	for _, m := range r.kind(types.KindSiteCSSGenerated) {
		var g types.GenerationResult
		if err := json.Unmarshal(m.Payload, &g); err != nil {
			t.Fatalf("decode generation: %v", err)
		}
		out = append(out, g)
	}
	return out
}

func (r *recorder) chats(t *testing.T) []types.ChatResponsePayload {
	t.Helper()
	var out []types.ChatResponsePayload
	for _, m := range r.kind(types.KindChatResponse) {
		var p types.ChatResponsePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			t.Fatalf("decode chat: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func (r *recorder) doneFor(exchangeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.Kind != types.KindChatResponse {
			continue
		}
		var p types.ChatResponsePayload
		if json.Unmarshal(m.Payload, &p) == nil && p.ExchangeID == exchangeID && p.Done {
			return true
		}
	}
	return false
}

// scriptedAgent plays one step per ExtractOnce call; the last step repeats.
type scriptedAgent struct {
	mu      sync.Mutex
	steps   []func(ctx context.Context) (types.Snapshot, error)
	calls   atomic.Int32
	started chan struct{}
}

func (a *scriptedAgent) ExtractOnce(ctx context.Context, tabID int, domain string, timeout time.Duration) (types.Snapshot, error) {
	n := int(a.calls.Add(1))
	a.mu.Lock()
	step := a.steps[len(a.steps)-1]
	if n <= len(a.steps) {
		step = a.steps[n-1]
	}
	a.mu.Unlock()
	if a.started != nil && n == 1 {
		close(a.started)
	}
	return step(ctx)
}

func timeoutStep(context.Context) (types.Snapshot, error) {
	return types.Snapshot{}, agent.TimeoutError{Domain: "example.com", After: time.Second}
}

func snapshotStep(context.Context) (types.Snapshot, error) {
	return types.Snapshot{Computed: types.Computed{BodyBg: "#fafafa", BodyColor: "#111111", LinkColor: "#2563eb"}}, nil
}

func blockStep(ctx context.Context) (types.Snapshot, error) {
	<-ctx.Done()
	return types.Snapshot{}, ctx.Err()
}

// fakeModel hands out fakeSessions answering with reply.
type fakeModel struct {
	mu        sync.Mutex
	avail     types.Availability
	reply     []string
	creates   atomic.Int32
	sessions  []*fakeSession
	panicking bool
	gate      chan struct{}
	started   chan int
	onStart   func(n int)
	starts    atomic.Int32
}

func (m *fakeModel) Availability(context.Context) (types.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avail, nil
}

func (m *fakeModel) CreateSession(_ context.Context, system string) (manager.Session, error) {
	m.creates.Add(1)
	s := &fakeSession{m: m, system: system}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	return s, nil
}

type fakeSession struct {
	m       *fakeModel
	system  string
	mu      sync.Mutex
	prompts []string
}

func (s *fakeSession) Prompt(ctx context.Context, text string) (string, error) {
	return s.PromptStreaming(ctx, text, nil)
}

func (s *fakeSession) PromptStreaming(ctx context.Context, text string, onChunk func(string) error) (string, error) {
	if s.m.panicking {
		panic("model exploded")
	}
	n := int(s.m.starts.Add(1))
	s.mu.Lock()
	s.prompts = append(s.prompts, text)
	s.mu.Unlock()
	if s.m.onStart != nil {
		s.m.onStart(n)
	}
	if s.m.started != nil {
		s.m.started <- n
	}
	if n == 1 && s.m.gate != nil {
		select {
		case <-s.m.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	for _, c := range s.m.reply {
		if onChunk != nil {
			if err := onChunk(c); err != nil {
				return "", err
			}
		}
	}
	return strings.Join(s.m.reply, ""), nil
}

func (s *fakeSession) Destroy() error { return nil }

// fakeHost records CSS and commands sent to tabs.
type fakeHost struct {
	mu       sync.Mutex
	inserted []string
	removed  []string
	sent     []types.AgentCommand
	dropped  []int
}

func (h *fakeHost) Send(_ context.Context, tabID int, cmd types.AgentCommand) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, cmd)
	return nil
}

func (h *fakeHost) InsertCSS(tabID int, domain, css string) {
	h.mu.Lock()
	h.inserted = append(h.inserted, domain+"|"+css)
	h.mu.Unlock()
}

func (h *fakeHost) RemoveCSS(tabID int, domain, css string) {
	h.mu.Lock()
	h.removed = append(h.removed, domain+"|"+css)
	h.mu.Unlock()
}

func (h *fakeHost) Drop(tabID int) {
	h.mu.Lock()
	h.dropped = append(h.dropped, tabID)
	h.mu.Unlock()
}

type harness struct {
	c     *Coordinator
	rec   *recorder
	tabs  *tabs.Store
	orch  *extract.Orchestrator
	mgr   *manager.Manager
	model *fakeModel
	agent *scriptedAgent
	host  *fakeHost
	sites *store.Sites
	clk   *clock.Fake
}

const cssReply = "<analysis>calm blues</analysis><css>:root{--primary:#2563eb}</css>"

func strp(s string) *string { return &s }

// newHarness wires real components around scripted edges. Tab 1 shows
// https://example.com/ and is active in the focused window.
func newHarness(t *testing.T, steps ...func(ctx context.Context) (types.Snapshot, error)) *harness {
	t.Helper()
	if len(steps) == 0 {
		steps = append(steps, snapshotStep)
	}
	h := &harness{
		rec:   &recorder{},
		tabs:  tabs.NewStore(),
		model: &fakeModel{avail: types.AvailabilityAvailable, reply: []string{cssReply}},
		agent: &scriptedAgent{steps: steps},
		host:  &fakeHost{},
		clk:   clock.NewFake(),
	}
	h.clk.AutoAdvance = true
	log := zerolog.Nop()
	h.sites = store.NewSites(store.NewMemory(), h.clk, log)
	h.mgr = manager.NewWithConfig(manager.ManagerConfig{Model: h.model, Store: h.sites, Logger: log, DrainTimeout: 50 * time.Millisecond})

	var c *Coordinator
	res := target.New(target.Config{
		Tabs:           h.tabs,
		Notify:         func(ctx context.Context, d string) { c.NotifyActiveDomain(ctx, d) },
		HasSubscribers: func() bool { return c.HasSubscribers() },
		Logger:         log,
	})
	h.orch = extract.New(extract.Config{Agent: h.agent, Targets: res, Sessions: h.mgr, Clock: h.clk, Logger: log})
	c = New(Config{
		Broker:    h.rec,
		Tabs:      h.tabs,
		Targets:   res,
		Extractor: h.orch,
		Sessions:  h.mgr,
		Host:      h.host,
		Sites:     h.sites,
		Themes:    theme.NewRegistry(theme.RegistryConfig{URL: "http://127.0.0.1:0/registry.json", Logger: log}),
		Clock:     h.clk,
		Logger:    log,
	})
	h.c = c
	h.mgr.SetEventPublisher(c)
	t.Cleanup(func() {
		c.Close()
		h.mgr.Close()
	})

	h.tabs.Apply(types.TabEvent{Type: types.TabActivated, TabID: 1, WindowID: 1, Focused: true})
	h.tabs.Apply(types.TabEvent{Type: types.TabUpdated, TabID: 1, WindowID: 1, URL: strp("https://example.com/"), Active: true})
	return h
}

func (h *harness) send(t *testing.T, kind types.Kind, payload any) Reply {
	t.Helper()
	r, err := h.c.Handle(context.Background(), types.NewMessage(kind, payload))
	if err != nil {
		t.Fatalf("handle %s: %v", kind, err)
	}
	return r
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")

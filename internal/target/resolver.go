// Package target resolves which site (domain) a request refers to and tells
// observers when that changes.
package target

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sitecnd/internal/tabs"
)

// NoTab is passed when a signal carries no tab id.
const NoTab = -1

// TabSource is the read side of the browser tab table.
type TabSource interface {
	Get(ctx context.Context, id int) (tabs.Tab, bool)
	ActiveInFocusedWindow(ctx context.Context) (tabs.Tab, bool)
	Active(ctx context.Context) []tabs.Tab
}

// Config wires a Resolver.
type Config struct {
	Tabs TabSource
	// Notify receives a domain each time the target for a scope changes.
	Notify func(ctx context.Context, domain string)
	// HasSubscribers gates Notify. Nil means always notify.
	HasSubscribers func() bool
	Logger         zerolog.Logger
}

// Resolver tracks the last known domain per tab and the last value
// broadcast per scope.
type Resolver struct {
	src            TabSource
	notify         func(ctx context.Context, domain string)
	hasSubscribers func() bool
	log            zerolog.Logger

	mu            sync.Mutex
	lastKnown     map[int]string
	knownOrder    []int
	lastBroadcast map[int]string
	lastGlobal    string
}

// New returns a Resolver over cfg.Tabs.
func New(cfg Config) *Resolver {
	return &Resolver{
		src:            cfg.Tabs,
		notify:         cfg.Notify,
		hasSubscribers: cfg.HasSubscribers,
		log:            cfg.Logger,
		lastKnown:      make(map[int]string),
		lastBroadcast:  make(map[int]string),
	}
}

// Normalize returns the lower-cased host of an http(s) URL, or "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ResolveCurrent returns the domain of the active tab in the last focused
// window, then of any active tab, then any cached domain. "" when nothing
// resolves.
func (r *Resolver) ResolveCurrent(ctx context.Context) string {
	if t, ok := r.src.ActiveInFocusedWindow(ctx); ok {
		if d := Normalize(t.URL); d != "" {
			return d
		}
		if d := r.cached(t.ID); d != "" {
			return d
		}
	}
	for _, t := range r.src.Active(ctx) {
		if d := Normalize(t.URL); d != "" {
			return d
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.knownOrder {
		if d := r.lastKnown[id]; d != "" {
			return d
		}
	}
	return ""
}

// ResolveForTab returns the domain for tabID, falling back to ResolveCurrent.
func (r *Resolver) ResolveForTab(ctx context.Context, tabID int) string {
	if tabID != NoTab {
		if d := r.Locate(ctx, tabID); d != "" {
			return d
		}
	}
	return r.ResolveCurrent(ctx)
}

// Locate returns the tab's current domain, directly from its URL or from the
// last known value. It refreshes the cache on a direct hit.
func (r *Resolver) Locate(ctx context.Context, tabID int) string {
	if t, ok := r.src.Get(ctx, tabID); ok {
		if d := Normalize(t.URL); d != "" {
			r.remember(tabID, d)
			return d
		}
	}
	return r.cached(tabID)
}

// OnURLChanged records a URL change for tabID. Non-http URLs clear the
// cached domain. Active tabs trigger a change broadcast.
func (r *Resolver) OnURLChanged(ctx context.Context, tabID int, rawURL string, active bool) {
	if d := Normalize(rawURL); d != "" {
		r.remember(tabID, d)
	} else {
		r.mu.Lock()
		r.dropKnown(tabID)
		r.mu.Unlock()
	}
	if active {
		r.OnTargetChange(ctx, tabID)
	}
}

// OnTargetChange recomputes the target for tabID and broadcasts it if it
// differs from the last value sent for that scope.
func (r *Resolver) OnTargetChange(ctx context.Context, tabID int) {
	scope := tabID
	domain := ""
	if tabID != NoTab {
		domain = r.Locate(ctx, tabID)
	} else if t, ok := r.src.ActiveInFocusedWindow(ctx); ok {
		scope = t.ID
	}
	if domain == "" {
		domain = r.ResolveCurrent(ctx)
	}
	if domain == "" {
		return
	}
	r.broadcastIfChanged(ctx, scope, domain)
}

// Forget drops every cached value for tabID.
func (r *Resolver) Forget(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropKnown(tabID)
	delete(r.lastBroadcast, tabID)
}

// dropKnown requires r.mu.
func (r *Resolver) dropKnown(tabID int) {
	delete(r.lastKnown, tabID)
	for i, id := range r.knownOrder {
		if id == tabID {
			r.knownOrder = append(r.knownOrder[:i], r.knownOrder[i+1:]...)
			break
		}
	}
}

// broadcastIfChanged emits domain for scope unless it repeats the previous
// value. Nothing is recorded while nobody is subscribed, so the first
// subscriber sees the next change.
func (r *Resolver) broadcastIfChanged(ctx context.Context, scope int, domain string) {
	if r.hasSubscribers != nil && !r.hasSubscribers() {
		return
	}
	r.mu.Lock()
	if scope != NoTab {
		if r.lastBroadcast[scope] == domain {
			r.mu.Unlock()
			return
		}
		r.lastBroadcast[scope] = domain
	} else {
		if r.lastGlobal == domain {
			r.mu.Unlock()
			return
		}
		r.lastGlobal = domain
	}
	r.mu.Unlock()

	r.log.Debug().Int("tab_id", scope).Str("domain", domain).Msg("active domain changed")
	if r.notify != nil {
		r.notify(ctx, domain)
	}
}

func (r *Resolver) cached(tabID int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastKnown[tabID]
}

func (r *Resolver) remember(tabID int, domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lastKnown[tabID]; !ok {
		r.knownOrder = append(r.knownOrder, tabID)
	}
	r.lastKnown[tabID] = domain
}

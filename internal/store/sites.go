package store

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/pkg/types"
)

// Key layout.
const (
	keyPrefix            = "sitecn:"
	modelAvailabilityKey = keyPrefix + "modelAvailability"
)

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]{0,251}[a-z0-9])?(:[0-9]{1,5})?$`)

// SiteKey returns the key of a site entry, or "" for an invalid domain.
func SiteKey(domain string) string { return domainKey("site", domain) }

// ChatKey returns the key of a chat transcript, or "" for an invalid domain.
func ChatKey(domain string) string { return domainKey("chat", domain) }

// SnapshotKey returns the key of a cached snapshot, or "" for an invalid domain.
func SnapshotKey(domain string) string { return domainKey("snapshot", domain) }

func domainKey(kind, domain string) string {
	if !domainPattern.MatchString(domain) {
		return ""
	}
	return keyPrefix + kind + ":" + domain
}

// SiteEntry is the persisted theme state of one site.
type SiteEntry struct {
	Enabled   bool   `json:"enabled"`
	CSS       string `json:"css,omitempty"`
	Mode      string `json:"mode,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (e SiteEntry) valid() bool {
	switch e.Mode {
	case "", "light", "dark", "both":
		return true
	}
	return false
}

// ModelAvailability is the cached result of the last availability probe.
type ModelAvailability struct {
	Value types.Availability `json:"value"`
	At    int64              `json:"at"`
}

// Sites is the typed view of the store. Reads never fail: missing, invalid
// or unreadable values come back as their zero value and are logged.
type Sites struct {
	kv  KV
	clk clock.Clock
	log zerolog.Logger

	// rmw serializes read-modify-write sequences.
	rmw sync.Mutex
}

// NewSites wraps kv. A nil clock means the wall clock.
func NewSites(kv KV, clk clock.Clock, log zerolog.Logger) *Sites {
	if clk == nil {
		clk = clock.Real()
	}
	return &Sites{kv: kv, clk: clk, log: log}
}

// KV returns the underlying store.
func (s *Sites) KV() KV { return s.kv }

func (s *Sites) read(ctx context.Context, key string, v any) bool {
	if key == "" {
		return false
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("storage read failed")
		return false
	}
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding malformed value")
		return false
	}
	return true
}

func (s *Sites) write(ctx context.Context, key string, v any) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, raw)
}

// SiteEntry returns the entry for domain, or nil.
func (s *Sites) SiteEntry(ctx context.Context, domain string) *SiteEntry {
	var e SiteEntry
	if !s.read(ctx, SiteKey(domain), &e) || !e.valid() {
		return nil
	}
	return &e
}

// SetSiteEntry stores entry for domain, stamping UpdatedAt.
func (s *Sites) SetSiteEntry(ctx context.Context, domain string, entry SiteEntry) error {
	entry.UpdatedAt = s.clk.Now().UTC().Format(time.RFC3339)
	return s.write(ctx, SiteKey(domain), entry)
}

// SiteChange is the outcome of a site entry update. Prev is the entry read
// under the same lock, nil when the domain had none.
type SiteChange struct {
	Prev  *SiteEntry
	Entry SiteEntry
}

// SetSiteCSS stores css for domain and enables it, keeping the mode.
func (s *Sites) SetSiteCSS(ctx context.Context, domain, css string) (SiteChange, error) {
	return s.update(ctx, domain, func(e *SiteEntry) {
		e.CSS = css
		e.Enabled = true
	})
}

// EnableSiteCSS marks the stored css of domain as enabled.
func (s *Sites) EnableSiteCSS(ctx context.Context, domain string) (SiteChange, error) {
	return s.update(ctx, domain, func(e *SiteEntry) { e.Enabled = true })
}

// DisableSiteCSS marks the stored css of domain as disabled.
func (s *Sites) DisableSiteCSS(ctx context.Context, domain string) (SiteChange, error) {
	return s.update(ctx, domain, func(e *SiteEntry) { e.Enabled = false })
}

func (s *Sites) update(ctx context.Context, domain string, fn func(*SiteEntry)) (SiteChange, error) {
	s.rmw.Lock()
	defer s.rmw.Unlock()
	ch := SiteChange{Prev: s.SiteEntry(ctx, domain)}
	if ch.Prev != nil {
		ch.Entry = *ch.Prev
	}
	fn(&ch.Entry)
	ch.Entry.UpdatedAt = s.clk.Now().UTC().Format(time.RFC3339)
	return ch, s.write(ctx, SiteKey(domain), ch.Entry)
}

// SiteStylesheet returns the stored css of domain, or "".
func (s *Sites) SiteStylesheet(ctx context.Context, domain string) string {
	if e := s.SiteEntry(ctx, domain); e != nil {
		return e.CSS
	}
	return ""
}

// ChatTranscript returns the stored chat of domain, possibly empty.
func (s *Sites) ChatTranscript(ctx context.Context, domain string) []types.ChatMessage {
	var msgs []types.ChatMessage
	if !s.read(ctx, ChatKey(domain), &msgs) {
		return []types.ChatMessage{}
	}
	for _, m := range msgs {
		if !m.Role.Valid() {
			s.log.Warn().Str("domain", domain).Str("role", string(m.Role)).Msg("discarding transcript with invalid role")
			return []types.ChatMessage{}
		}
	}
	return msgs
}

// SetChatTranscript replaces the chat of domain.
func (s *Sites) SetChatTranscript(ctx context.Context, domain string, msgs []types.ChatMessage) error {
	return s.write(ctx, ChatKey(domain), msgs)
}

// AppendChatMessage appends msg to the chat of domain and returns the new
// transcript. Messages with an unknown role are ignored.
func (s *Sites) AppendChatMessage(ctx context.Context, domain string, msg types.ChatMessage) ([]types.ChatMessage, error) {
	s.rmw.Lock()
	defer s.rmw.Unlock()
	cur := s.ChatTranscript(ctx, domain)
	if !msg.Role.Valid() {
		return cur, nil
	}
	next := append(cur, msg)
	if err := s.SetChatTranscript(ctx, domain, next); err != nil {
		return cur, err
	}
	return next, nil
}

// Snapshot returns the last snapshot cached for domain, or nil.
func (s *Sites) Snapshot(ctx context.Context, domain string) *types.Snapshot {
	var snap types.Snapshot
	if !s.read(ctx, SnapshotKey(domain), &snap) {
		return nil
	}
	return &snap
}

// SetSnapshot caches snap as the latest known style data of domain.
func (s *Sites) SetSnapshot(ctx context.Context, domain string, snap types.Snapshot) error {
	snap.Domain = domain
	return s.write(ctx, SnapshotKey(domain), snap)
}

// ModelAvailability returns the cached availability, or nil.
func (s *Sites) ModelAvailability(ctx context.Context) *ModelAvailability {
	var a ModelAvailability
	if !s.read(ctx, modelAvailabilityKey, &a) || !a.Value.Valid() {
		return nil
	}
	return &a
}

// SetModelAvailability caches a with the current time.
func (s *Sites) SetModelAvailability(ctx context.Context, a types.Availability) error {
	return s.write(ctx, modelAvailabilityKey, ModelAvailability{Value: a, At: s.clk.Now().UnixMilli()})
}

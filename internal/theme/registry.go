package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
)

// Registry defaults.
const (
	DefaultRegistryURL = "https://tweakcn.com/r/registry.json"
	DefaultRegistryTTL = 24 * time.Hour
	defaultFetchWait   = 10 * time.Second
)

// CSSVars are the custom properties of a base theme. Theme applies to both
// modes.
type CSSVars struct {
	Theme map[string]string `json:"theme,omitempty"`
	Light map[string]string `json:"light,omitempty"`
	Dark  map[string]string `json:"dark,omitempty"`
}

// Theme is one registry entry.
type Theme struct {
	Name    string  `json:"name"`
	CSSVars CSSVars `json:"cssVars"`
}

// Vars returns the merged variables of one mode with oklch colors turned
// into hsl triplets.
func (t Theme) Vars(dark bool) map[string]string {
	mode := t.CSSVars.Light
	if dark {
		mode = t.CSSVars.Dark
	}
	out := make(map[string]string, len(t.CSSVars.Theme)+len(mode))
	for k, v := range t.CSSVars.Theme {
		out[k] = ToCSSValue(v)
	}
	for k, v := range mode {
		out[k] = ToCSSValue(v)
	}
	return out
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	URL    string
	TTL    time.Duration
	Client *http.Client
	Clock  clock.Clock
	Logger zerolog.Logger
	// Builtin themes are always available and lose to fetched entries of
	// the same name.
	Builtin []Theme
}

// Registry caches the remote theme registry. A failed fetch keeps the
// previous items.
type Registry struct {
	cfg RegistryConfig

	mu        sync.RWMutex
	items     map[string]Theme
	fetchedAt time.Time
	fetchMu   sync.Mutex
}

// NewRegistry returns a Registry seeded with the built-in themes.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.URL == "" {
		cfg.URL = DefaultRegistryURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRegistryTTL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultFetchWait}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Builtin == nil {
		cfg.Builtin = BuiltinThemes()
	}
	r := &Registry{cfg: cfg, items: map[string]Theme{}}
	for _, t := range cfg.Builtin {
		r.items[SanitizeName(t.Name)] = t
	}
	return r
}

type registryDoc struct {
	Items []Theme `json:"items"`
}

// Refresh fetches the registry when the cache is older than the TTL, or
// always with force.
func (r *Registry) Refresh(ctx context.Context, force bool) error {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()
	r.mu.RLock()
	fresh := !r.fetchedAt.IsZero() && r.cfg.Clock.Now().Sub(r.fetchedAt) < r.cfg.TTL
	r.mu.RUnlock()
	if fresh && !force {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch theme registry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch theme registry: HTTP %d", resp.StatusCode)
	}
	var doc registryDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode theme registry: %w", err)
	}

	next := make(map[string]Theme, len(r.cfg.Builtin)+len(doc.Items))
	for _, t := range r.cfg.Builtin {
		next[SanitizeName(t.Name)] = t
	}
	for _, t := range doc.Items {
		if key := SanitizeName(t.Name); key != "" {
			next[key] = t
		}
	}
	r.mu.Lock()
	r.items = next
	r.fetchedAt = r.cfg.Clock.Now()
	r.mu.Unlock()
	r.cfg.Logger.Debug().Int("themes", len(doc.Items)).Msg("theme registry refreshed")
	return nil
}

// Lookup returns the theme named name, refreshing a stale cache first.
// Empty names and unknown themes return false.
func (r *Registry) Lookup(ctx context.Context, name string) (Theme, bool) {
	key := SanitizeName(name)
	if key == "" {
		return Theme{}, false
	}
	if err := r.Refresh(ctx, false); err != nil {
		r.cfg.Logger.Warn().Err(err).Msg("theme registry unavailable; using cached themes")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[key]
	return t, ok
}

// Closest suggests the known theme nearest to name by edit distance.
func (r *Registry) Closest(name string) (string, bool) {
	key := SanitizeName(name)
	if key == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	best, bestDist := "", -1
	for k, t := range r.items {
		d := levenshtein.ComputeDistance(key, k)
		if bestDist < 0 || d < bestDist || (d == bestDist && t.Name < best) {
			best, bestDist = t.Name, d
		}
	}
	limit := len(key) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}

// Names lists the known theme names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, t.Name)
	}
	sort.Strings(out)
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeName lower-cases name and joins its alphanumeric runs with '-'.
func SanitizeName(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// BuiltinThemes are served when the remote registry cannot be reached.
func BuiltinThemes() []Theme {
	return []Theme{
		{
			Name: "Default",
			CSSVars: CSSVars{
				Theme: map[string]string{"radius": "0.5rem"},
				Light: map[string]string{"background": "#ffffff", "foreground": "#09090b", "primary": "#18181b", "border": "#e4e4e7"},
				Dark:  map[string]string{"background": "#09090b", "foreground": "#fafafa", "primary": "#fafafa", "border": "#27272a"},
			},
		},
		{
			Name: "Catppuccin",
			CSSVars: CSSVars{
				Theme: map[string]string{"radius": "0.35rem"},
				Light: map[string]string{"background": "#eff1f5", "foreground": "#4c4f69", "primary": "#8839ef", "border": "#bcc0cc"},
				Dark:  map[string]string{"background": "#1e1e2e", "foreground": "#cdd6f4", "primary": "#cba6f7", "border": "#313244"},
			},
		},
		{
			Name: "Solar Dusk",
			CSSVars: CSSVars{
				Theme: map[string]string{"radius": "0.3rem"},
				Light: map[string]string{"background": "#fdfbf7", "foreground": "#4a3b33", "primary": "#b45309", "border": "#e4d9bc"},
				Dark:  map[string]string{"background": "#1c1917", "foreground": "#f5f5f4", "primary": "#f97316", "border": "#44403c"},
			},
		},
	}
}

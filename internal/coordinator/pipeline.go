package coordinator

import (
	"context"

	"sitecnd/internal/agent"
	"sitecnd/internal/extract"
	"sitecnd/internal/manager"
	"sitecnd/internal/target"
	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

// snapshot returns the style data of domain: the one supplied with the
// request, or a fresh extraction from tabID. Extracted data is cached as
// the domain's latest partial data.
func (c *Coordinator) snapshot(ctx context.Context, domain string, tabID int, given *types.Snapshot) (*types.Snapshot, error) {
	if given != nil {
		s := *given
		s.Domain = domain
		return &s, nil
	}
	if tabID == target.NoTab {
		return nil, agent.AbsentError{TabID: tabID, Err: agent.ErrNoAgent}
	}
	s, err := c.extractor.Extract(ctx, tabID, domain)
	// A joined extraction torn down by another tab is retried from this one.
	for tries := 0; extract.IsCancelled(err) && c.tabOpen(ctx, tabID); tries++ {
		if tries == maxRejoins {
			return nil, agent.AbsentError{TabID: tabID, Err: agent.ErrNoAgent}
		}
		c.log.Debug().Str("domain", domain).Int("tab_id", tabID).Msg("shared extraction torn down; extracting again")
		s, err = c.extractor.Extract(ctx, tabID, domain)
	}
	if err != nil {
		return nil, err
	}
	if !s.Empty() {
		if err := c.sites.SetSnapshot(ctx, domain, s); err != nil {
			c.log.Warn().Err(err).Str("domain", domain).Msg("cache snapshot")
		}
	}
	return &s, nil
}

const maxRejoins = 2

func (c *Coordinator) tabOpen(ctx context.Context, tabID int) bool {
	_, ok := c.tabs.Get(ctx, tabID)
	return ok
}

// cachedSnapshot returns the last non-empty snapshot stored for domain.
func (c *Coordinator) cachedSnapshot(ctx context.Context, domain string) *types.Snapshot {
	s := c.sites.Snapshot(ctx, domain)
	if s == nil || s.Empty() {
		return nil
	}
	return s
}

// ask runs one prompt on the session of domain.
func (c *Coordinator) ask(ctx context.Context, domain, text string) (string, error) {
	inst, err := c.session(ctx, domain)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.genWait)
	defer cancel()
	return c.sessions.Prompt(ctx, inst, text)
}

// session returns the ready session of domain after checking availability.
func (c *Coordinator) session(ctx context.Context, domain string) (*manager.Instance, error) {
	if a := c.sessions.ProbeAvailability(ctx, false); a != types.AvailabilityAvailable {
		return nil, manager.ErrModelUnavailable(string(a))
	}
	return c.sessions.GetOrCreateSession(ctx, domain, theme.SystemPrompt(domain))
}

func (c *Coordinator) baseTheme(ctx context.Context, name string) *theme.Theme {
	if name == "" || c.themes == nil {
		return nil
	}
	if t, ok := c.themes.Lookup(ctx, name); ok {
		return &t
	}
	ev := c.log.Info().Str("base_theme", name)
	if alt, ok := c.themes.Closest(name); ok {
		ev = ev.Str("closest", alt)
	}
	ev.Msg("unknown base theme; generating without one")
	return nil
}

func (c *Coordinator) promptInput(ctx context.Context, domain string, snap *types.Snapshot, base, text string) theme.PromptInput {
	return theme.PromptInput{
		Domain:         domain,
		Snapshot:       snap,
		SiteStylesheet: c.sites.SiteStylesheet(ctx, domain),
		BaseTheme:      c.baseTheme(ctx, base),
		UserText:       text,
	}
}

func errInfo(err error) *types.ErrorInfo {
	info := Categorize(err)
	return &info
}

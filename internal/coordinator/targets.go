package coordinator

import (
	"context"

	"sitecnd/internal/tabs"
	"sitecnd/internal/target"
)

func (c *Coordinator) activeDomain(ctx context.Context, tabID *int) string {
	if tabID != nil {
		return c.targets.ResolveForTab(ctx, *tabID)
	}
	return c.targets.ResolveCurrent(ctx)
}

// resolve returns the domain a request refers to and the tab to read it
// from. The tab is target.NoTab when no open tab shows the domain.
func (c *Coordinator) resolve(ctx context.Context, domain string, tabID *int) (string, int) {
	if domain == "" {
		domain = c.activeDomain(ctx, tabID)
	}
	if domain == "" {
		return "", target.NoTab
	}
	if tabID != nil {
		return domain, *tabID
	}
	if t, ok := c.tabs.ActiveInFocusedWindow(ctx); ok && target.Normalize(t.URL) == domain {
		return domain, t.ID
	}
	best := target.NoTab
	for _, t := range c.matchingTabs(ctx, domain) {
		if t.Active {
			return domain, t.ID
		}
		if best == target.NoTab {
			best = t.ID
		}
	}
	return domain, best
}

// matchingTabs lists open tabs whose page belongs to domain.
func (c *Coordinator) matchingTabs(ctx context.Context, domain string) []tabs.Tab {
	var out []tabs.Tab
	for _, t := range c.tabs.All(ctx) {
		if target.Normalize(t.URL) == domain {
			out = append(out, t)
		}
	}
	return out
}

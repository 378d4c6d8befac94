package coordinator

import (
	"context"
	"fmt"

	"sitecnd/internal/target"
	"sitecnd/pkg/types"
)

// OnTabEvent applies a browser tab signal. Navigation re-targets and
// probes availability; removal tears down everything tied to the tab.
func (c *Coordinator) OnTabEvent(ctx context.Context, ev types.TabEvent) error {
	switch ev.Type {
	case types.TabRemoved:
		c.tabs.Apply(ev)
		c.extractor.OnConnectionClosed(ev.TabID)
		c.targets.Forget(ev.TabID)
		c.host.Drop(ev.TabID)
		c.log.Debug().Int("tab_id", ev.TabID).Msg("tab removed")
		return nil

	case types.TabActivated:
		c.tabs.Apply(ev)
		c.targets.OnTargetChange(ctx, ev.TabID)

	case types.TabUpdated:
		tab, _ := c.tabs.Apply(ev)
		switch {
		case ev.URL != nil:
			c.targets.OnURLChanged(ctx, ev.TabID, *ev.URL, tab.Active)
		case ev.Status == "complete":
			c.targets.OnTargetChange(ctx, ev.TabID)
			c.restoreCSS(ctx, ev.TabID, tab.URL)
		}

	case types.TabCommitted:
		c.tabs.Apply(ev)
		c.targets.OnTargetChange(ctx, ev.TabID)

	default:
		return BadRequestError{Reason: fmt.Sprintf("unknown tab event %q", ev.Type)}
	}
	c.sessions.ProbeAvailability(ctx, false)
	return nil
}

// restoreCSS re-inserts the enabled stylesheet of the page's domain after
// a load completed.
func (c *Coordinator) restoreCSS(ctx context.Context, tabID int, rawURL string) {
	domain := target.Normalize(rawURL)
	if domain == "" {
		return
	}
	if e := c.sites.SiteEntry(ctx, domain); e != nil && e.Enabled && e.CSS != "" {
		c.host.InsertCSS(tabID, domain, e.CSS)
	}
}

package coordinator

import (
	"context"
	"strings"

	"sitecnd/internal/store"
	"sitecnd/pkg/types"
)

// Accepted changeTheme values.
var themeModes = map[string]bool{"light": true, "dark": true, "system": true}

func (c *Coordinator) siteCSS(ctx context.Context, kind types.Kind, req types.SiteCSSRequest) (types.SiteCSSStatusPayload, error) {
	domain, _ := c.resolve(ctx, req.Domain, nil)
	if domain == "" {
		return types.SiteCSSStatusPayload{}, BadRequestError{Reason: "no target site"}
	}
	var (
		ch  store.SiteChange
		err error
	)
	switch kind {
	case types.KindRequestSiteCSSStatus:
		var entry store.SiteEntry
		if prev := c.sites.SiteEntry(ctx, domain); prev != nil {
			entry = *prev
		}
		return status(domain, entry), nil
	case types.KindSetSiteCSS:
		if strings.TrimSpace(req.CSS) == "" {
			return types.SiteCSSStatusPayload{}, BadRequestError{Reason: "css is required"}
		}
		ch, err = c.sites.SetSiteCSS(ctx, domain, req.CSS)
	case types.KindEnableSiteCSS:
		ch, err = c.sites.EnableSiteCSS(ctx, domain)
	case types.KindDisableSiteCSS:
		ch, err = c.sites.DisableSiteCSS(ctx, domain)
	}
	if err != nil {
		return types.SiteCSSStatusPayload{}, err
	}

	prev, entry := ch.Prev, ch.Entry
	// Pages keep whatever was inserted before; take the old sheet out first.
	if prev != nil && prev.Enabled && prev.CSS != "" && (!entry.Enabled || prev.CSS != entry.CSS) {
		c.applyToTabs(ctx, domain, prev.CSS, false)
	}
	if entry.Enabled && entry.CSS != "" && (prev == nil || !prev.Enabled || prev.CSS != entry.CSS) {
		c.applyToTabs(ctx, domain, entry.CSS, true)
	}
	c.broadcast(types.KindSiteCSSApplied, types.SiteCSSAppliedPayload{Domain: domain, Enabled: entry.Enabled, CSS: entry.CSS})
	return status(domain, entry), nil
}

func status(domain string, e store.SiteEntry) types.SiteCSSStatusPayload {
	return types.SiteCSSStatusPayload{Domain: domain, Enabled: e.Enabled, HasCSS: e.CSS != ""}
}

// applyToTabs inserts or removes css in every open tab of domain.
func (c *Coordinator) applyToTabs(ctx context.Context, domain, css string, insert bool) {
	for _, t := range c.matchingTabs(ctx, domain) {
		if insert {
			c.host.InsertCSS(t.ID, domain, css)
		} else {
			c.host.RemoveCSS(t.ID, domain, css)
		}
	}
}

func (c *Coordinator) siteChat(ctx context.Context, domain string) types.SiteChatPayload {
	domain, _ = c.resolve(ctx, domain, nil)
	if domain == "" {
		return types.SiteChatPayload{Messages: []types.ChatMessage{}}
	}
	return types.SiteChatPayload{Domain: domain, Messages: c.sites.ChatTranscript(ctx, domain)}
}

func (c *Coordinator) appendSiteChat(ctx context.Context, req types.AppendSiteChatRequest) (types.SiteChatPayload, error) {
	if req.Message == nil {
		return types.SiteChatPayload{}, BadRequestError{Reason: "message is required"}
	}
	if !req.Message.Role.Valid() {
		return types.SiteChatPayload{}, BadRequestError{Reason: "unknown chat role " + string(req.Message.Role)}
	}
	domain, _ := c.resolve(ctx, req.Domain, nil)
	if domain == "" {
		return types.SiteChatPayload{}, BadRequestError{Reason: "no target site"}
	}
	msgs, err := c.sites.AppendChatMessage(ctx, domain, *req.Message)
	if err != nil {
		return types.SiteChatPayload{}, err
	}
	p := types.SiteChatPayload{Domain: domain, Messages: msgs}
	c.broadcast(types.KindSiteChat, p)
	return p, nil
}

// changeTheme forwards a light/dark switch to the agents of active tabs.
func (c *Coordinator) changeTheme(ctx context.Context, mode string) error {
	if !themeModes[mode] {
		return BadRequestError{Reason: "theme must be light, dark or system"}
	}
	for _, t := range c.tabs.Active(ctx) {
		cmd := types.AgentCommand{Kind: types.CommandChangeTheme, TabID: t.ID, Domain: c.targets.ResolveForTab(ctx, t.ID), Theme: mode}
		if err := c.host.Send(ctx, t.ID, cmd); err != nil {
			c.log.Debug().Err(err).Int("tab_id", t.ID).Msg("change theme not delivered")
		}
	}
	return nil
}

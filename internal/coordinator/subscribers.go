package coordinator

import (
	"context"

	"github.com/google/uuid"

	"sitecnd/pkg/types"
)

// Subscribe adds id (a fresh one when empty) to the subscriber set and
// forces an availability probe. The first subscriber starts polling.
func (c *Coordinator) Subscribe(ctx context.Context, id string) (string, types.Availability) {
	if id == "" {
		id = uuid.NewString()
	}
	c.subsMu.Lock()
	_, had := c.subs[id]
	c.subs[id] = struct{}{}
	if !had && len(c.subs) == 1 {
		c.sessions.StartPolling()
	}
	n := len(c.subs)
	c.subsMu.Unlock()
	subscribersGauge.Set(float64(n))
	if !had {
		c.log.Info().Str("subscriber", id).Int("subscribers", n).Msg("side panel subscribed")
	}
	return id, c.sessions.ProbeAvailability(ctx, true)
}

// Unsubscribe removes id. The last one leaving stops polling.
func (c *Coordinator) Unsubscribe(id string) {
	c.subsMu.Lock()
	_, had := c.subs[id]
	delete(c.subs, id)
	if had && len(c.subs) == 0 {
		c.sessions.StopPolling()
	}
	n := len(c.subs)
	c.subsMu.Unlock()
	subscribersGauge.Set(float64(n))
	if had {
		c.log.Info().Str("subscriber", id).Int("subscribers", n).Msg("side panel unsubscribed")
	}
}

// HasSubscribers reports whether any side panel is subscribed.
func (c *Coordinator) HasSubscribers() bool {
	return c.Subscribers() > 0
}

// Subscribers is the size of the subscriber set.
func (c *Coordinator) Subscribers() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}

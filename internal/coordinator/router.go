package coordinator

import (
	"context"

	"sitecnd/pkg/types"
)

// Reply is the synchronous answer to an inbound message. Exactly one field
// is set: Message for request/response kinds, Ack for kinds whose result
// arrives as a broadcast.
type Reply struct {
	Message *types.Message
	Ack     *types.Ack
}

// quiet kinds are logged at debug level.
var quiet = map[types.Kind]bool{
	types.KindRequestModelStatus:   true,
	types.KindRequestSiteCSSStatus: true,
	types.KindRequestActiveDomain:  true,
}

// Handle routes one inbound message.
func (c *Coordinator) Handle(ctx context.Context, msg types.Message) (Reply, error) {
	ev := c.log.Info()
	if quiet[msg.Kind] {
		ev = c.log.Debug()
	}
	ev.Str("kind", string(msg.Kind)).Str("origin", msg.Origin).Msg("inbound message")

	reply, err := c.route(ctx, msg)
	result := "ok"
	if err != nil {
		result = "error"
		if IsBadRequest(err) {
			result = "rejected"
		}
	}
	inboundTotal.WithLabelValues(string(msg.Kind), result).Inc()
	return reply, err
}

func (c *Coordinator) route(ctx context.Context, msg types.Message) (Reply, error) {
	switch msg.Kind {
	case types.KindRequestActiveDomain:
		var req types.ActiveDomainRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		return reply(types.KindActiveDomain, types.ActiveDomainPayload{Domain: c.activeDomain(ctx, req.TabID)}), nil

	case types.KindRequestModelStatus:
		a := c.sessions.ProbeAvailability(ctx, false)
		return reply(types.KindModelStatus, types.ModelStatusPayload{Availability: a}), nil

	case types.KindGenerateSiteCSS:
		var req types.GenerateRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		return ack(c.startGenerate(ctx, req)), nil

	case types.KindAnalyzeSiteStyles:
		var req types.AnalyzeRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		return ack(c.startAnalyze(ctx, req)), nil

	case types.KindChatPrompt:
		var req types.ChatPromptRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		id, err := c.startChat(ctx, req)
		if err != nil {
			return Reply{}, err
		}
		return ack(id), nil

	case types.KindSidepanelSubscribe:
		var req types.SubscribeRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		id, a := c.Subscribe(ctx, req.ID)
		return reply(types.KindModelStatus, types.ModelStatusPayload{Availability: a, SubscriberID: id}), nil

	case types.KindSidepanelUnsubscribe:
		var req types.SubscribeRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		if req.ID == "" {
			return Reply{}, BadRequestError{Reason: "subscriber id is required"}
		}
		c.Unsubscribe(req.ID)
		return Reply{Ack: &types.Ack{Accepted: true}}, nil

	case types.KindSetSiteCSS, types.KindEnableSiteCSS, types.KindDisableSiteCSS, types.KindRequestSiteCSSStatus:
		var req types.SiteCSSRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		st, err := c.siteCSS(ctx, msg.Kind, req)
		if err != nil {
			return Reply{}, err
		}
		return reply(types.KindSiteCSSStatus, st), nil

	case types.KindAppendSiteChat:
		var req types.AppendSiteChatRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		p, err := c.appendSiteChat(ctx, req)
		if err != nil {
			return Reply{}, err
		}
		return reply(types.KindSiteChat, p), nil

	case types.KindRequestSiteChat:
		var req types.SiteCSSRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		p := c.siteChat(ctx, req.Domain)
		c.broadcast(types.KindSiteChat, p)
		return reply(types.KindSiteChat, p), nil

	case types.KindChangeTheme:
		var req types.ChangeThemeRequest
		if err := decode(msg, &req); err != nil {
			return Reply{}, err
		}
		if err := c.changeTheme(ctx, req.Theme); err != nil {
			return Reply{}, err
		}
		return Reply{Ack: &types.Ack{Accepted: true}}, nil
	}
	return Reply{}, UnknownKindError{Kind: msg.Kind}
}

func decode(msg types.Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return BadRequestError{Reason: "invalid payload: " + err.Error()}
	}
	return nil
}

func reply(kind types.Kind, payload any) Reply {
	m := types.NewMessage(kind, payload)
	m.Origin = types.OriginBackground
	return Reply{Message: &m}
}

func ack(opID string) Reply {
	return Reply{Ack: &types.Ack{Accepted: true, OpID: opID}}
}

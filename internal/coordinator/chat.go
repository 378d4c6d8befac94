package coordinator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

// startChat schedules one chat exchange and returns its exchange id.
func (c *Coordinator) startChat(ctx context.Context, req types.ChatPromptRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", BadRequestError{Reason: "chat text is required"}
	}
	exchangeID := uuid.NewString()
	domain, _ := c.resolve(ctx, req.Domain, req.TabID)
	if domain == "" {
		c.finishChat(types.ChatResponsePayload{ExchangeID: exchangeID, Seq: 1, Done: true, Error: errInfo(targetUnresolvedError{})})
		return exchangeID, nil
	}
	seq := 0
	c.async(types.KindChatPrompt, domain, func(ctx context.Context) {
		c.chat(ctx, exchangeID, domain, text, &seq)
	}, func(info types.ErrorInfo) {
		c.finishChat(types.ChatResponsePayload{ExchangeID: exchangeID, Domain: domain, Seq: seq + 1, Done: true, Error: &info})
	})
	return exchangeID, nil
}

// chat streams one exchange on the persistent session of domain. The
// session slot is held until the terminal event is out, so the next prompt
// for domain starts after it.
func (c *Coordinator) chat(ctx context.Context, exchangeID, domain, text string, seq *int) {
	done := types.ChatResponsePayload{ExchangeID: exchangeID, Domain: domain, Done: true}

	inst, err := c.session(ctx, domain)
	if err != nil {
		*seq++
		done.Seq = *seq
		done.Content = Categorize(err).Message
		done.Error = errInfo(err)
		c.finishChat(done)
		return
	}
	release, err := c.sessions.Acquire(ctx, inst)
	if err != nil {
		*seq++
		done.Seq = *seq
		done.Content = Categorize(err).Message
		done.Error = errInfo(err)
		c.finishChat(done)
		return
	}
	defer release()

	in := c.promptInput(ctx, domain, c.cachedSnapshot(ctx, domain), "", text)
	pctx, cancel := context.WithTimeout(ctx, c.genWait)
	defer cancel()

	var acc strings.Builder
	_, err = inst.Session().PromptStreaming(pctx, theme.ChatPrompt(in), func(delta string) error {
		acc.WriteString(delta)
		*seq++
		c.broadcast(types.KindChatResponse, types.ChatResponsePayload{
			ExchangeID: exchangeID,
			Domain:     domain,
			Seq:        *seq,
			Content:    acc.String(),
			Delta:      delta,
		})
		return nil
	})
	*seq++
	done.Seq = *seq
	done.Content = acc.String()
	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("chat prompt failed")
		done.Error = errInfo(err)
		c.finishChat(done)
		return
	}

	done.CSS = theme.ExtractCSS(done.Content)
	msgs, err := c.sites.AppendChatMessage(ctx, domain, types.ChatMessage{Role: types.RoleAssistant, Content: done.Content})
	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("persist chat reply")
	} else {
		c.broadcast(types.KindSiteChat, types.SiteChatPayload{Domain: domain, Messages: msgs})
	}
	c.finishChat(done)
}

func (c *Coordinator) finishChat(p types.ChatResponsePayload) {
	status := types.StatusOK
	if p.Error != nil {
		status = types.StatusError
	}
	outcomesTotal.WithLabelValues(string(types.KindChatPrompt), string(status)).Inc()
	c.broadcast(types.KindChatResponse, p)
}

package coordinator

import (
	"context"

	"github.com/google/uuid"

	"sitecnd/internal/extract"
	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

// startGenerate schedules a theme generation and returns its op id. An
// identical request still in flight is joined instead of repeated.
func (c *Coordinator) startGenerate(ctx context.Context, req types.GenerateRequest) string {
	opID := uuid.NewString()
	domain, tabID := c.resolve(ctx, req.Domain, req.TabID)
	if domain == "" {
		c.finishGenerate(types.GenerationResult{OpID: opID, Status: types.StatusError, Error: errInfo(targetUnresolvedError{})})
		return opID
	}
	key := "generate\x00" + domain + "\x00" + req.BaseThemeName + "\x00" + req.Prompt
	if id, ok := c.claim(key, opID); !ok {
		c.log.Debug().Str("domain", domain).Str("op_id", id).Msg("joined in-flight generation")
		return id
	}
	c.async(types.KindGenerateSiteCSS, domain, func(ctx context.Context) {
		defer c.release(key)
		if res, ok := c.generate(ctx, opID, domain, tabID, req); ok {
			c.finishGenerate(res)
		}
	}, func(info types.ErrorInfo) {
		c.finishGenerate(types.GenerationResult{OpID: opID, Domain: domain, Status: types.StatusError, Error: &info})
	})
	return opID
}

// generate runs the pipeline. It reports false when the request was
// cancelled by tab teardown and must not be answered.
func (c *Coordinator) generate(ctx context.Context, opID, domain string, tabID int, req types.GenerateRequest) (types.GenerationResult, bool) {
	res := types.GenerationResult{OpID: opID, Domain: domain}

	snap, err := c.snapshot(ctx, domain, tabID, req.Snapshot)
	if extract.IsCancelled(err) {
		c.log.Info().Str("domain", domain).Str("op_id", opID).Msg("generation cancelled by tab teardown")
		return res, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("extraction failed")
		if cached := c.cachedSnapshot(ctx, domain); cached != nil {
			return generated(res, types.StatusWarning, theme.FallbackCSS(cached), types.SourceHeuristic, err), true
		}
		res.Status = types.StatusError
		res.Error = errInfo(err)
		return res, true
	}

	in := c.promptInput(ctx, domain, snap, req.BaseThemeName, req.Prompt)
	text, err := c.ask(ctx, domain, theme.GeneratePrompt(in))
	css := theme.ExtractCSS(text)
	if err == nil && css == "" {
		err = emptyOutputError{domain: domain}
	}
	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("generation failed")
		if !snap.Empty() {
			return generated(res, types.StatusWarning, theme.FallbackCSS(snap), types.SourceHeuristic, err), true
		}
		res.Status = types.StatusError
		res.Error = errInfo(err)
		return res, true
	}
	return generated(res, types.StatusOK, css, types.SourceModel, nil), true
}

func generated(res types.GenerationResult, status types.ResultStatus, css, source string, warn error) types.GenerationResult {
	res.Status = status
	res.CSS = css
	res.Source = source
	if warn != nil {
		res.Warning = errInfo(warn)
	}
	return res
}

func (c *Coordinator) finishGenerate(res types.GenerationResult) {
	outcomesTotal.WithLabelValues(string(types.KindGenerateSiteCSS), string(res.Status)).Inc()
	c.broadcast(types.KindSiteCSSGenerated, res)
}

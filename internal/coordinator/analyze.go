package coordinator

import (
	"context"

	"github.com/google/uuid"

	"sitecnd/internal/extract"
	"sitecnd/internal/theme"
	"sitecnd/pkg/types"
)

const (
	analysisFailed    = "Analysis failed"
	analysisHeuristic = "The model could not analyze this page; the stylesheet below is derived from the page colors."
)

func (c *Coordinator) startAnalyze(ctx context.Context, req types.AnalyzeRequest) string {
	opID := uuid.NewString()
	domain, tabID := c.resolve(ctx, req.Domain, req.TabID)
	if domain == "" {
		c.finishAnalyze(types.AnalysisResult{OpID: opID, Status: types.StatusError, Analysis: analysisFailed, Error: errInfo(targetUnresolvedError{})})
		return opID
	}
	key := "analyze\x00" + domain + "\x00" + req.BaseThemeName + "\x00" + req.Notes
	if id, ok := c.claim(key, opID); !ok {
		return id
	}
	c.async(types.KindAnalyzeSiteStyles, domain, func(ctx context.Context) {
		defer c.release(key)
		if res, ok := c.analyze(ctx, opID, domain, tabID, req); ok {
			c.finishAnalyze(res)
		}
	}, func(info types.ErrorInfo) {
		c.finishAnalyze(types.AnalysisResult{OpID: opID, Domain: domain, Status: types.StatusError, Analysis: analysisFailed, Error: &info})
	})
	return opID
}

func (c *Coordinator) analyze(ctx context.Context, opID, domain string, tabID int, req types.AnalyzeRequest) (types.AnalysisResult, bool) {
	res := types.AnalysisResult{OpID: opID, Domain: domain}
	fallback := func(snap *types.Snapshot, err error) types.AnalysisResult {
		if snap != nil && !snap.Empty() {
			res.Status = types.StatusWarning
			res.Analysis = analysisHeuristic
			res.CSS = theme.FallbackCSS(snap)
			res.Source = types.SourceHeuristic
			res.Warning = errInfo(err)
			return res
		}
		res.Status = types.StatusError
		res.Analysis = analysisFailed
		res.Error = errInfo(err)
		return res
	}

	snap, err := c.snapshot(ctx, domain, tabID, req.Snapshot)
	if extract.IsCancelled(err) {
		return res, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("extraction failed")
		return fallback(c.cachedSnapshot(ctx, domain), err), true
	}

	in := c.promptInput(ctx, domain, snap, req.BaseThemeName, req.Notes)
	text, err := c.ask(ctx, domain, theme.AnalyzePrompt(in))
	css := theme.ExtractCSS(text)
	if err == nil && css == "" {
		err = emptyOutputError{domain: domain}
	}
	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("analysis failed")
		return fallback(snap, err), true
	}
	res.Status = types.StatusOK
	res.Analysis = theme.ExtractTag(text, "analysis")
	res.CSS = css
	res.Source = types.SourceModel
	return res, true
}

func (c *Coordinator) finishAnalyze(res types.AnalysisResult) {
	outcomesTotal.WithLabelValues(string(types.KindAnalyzeSiteStyles), string(res.Status)).Inc()
	c.broadcast(types.KindSiteAnalysis, res)
}

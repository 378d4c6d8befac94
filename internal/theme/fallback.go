// Package theme builds prompts for the language model, parses its replies,
// derives heuristic CSS from page snapshots and resolves base themes from a
// remote registry.
package theme

import (
	"fmt"

	"sitecnd/pkg/types"
)

// Heuristic defaults used when the snapshot lacks a value.
const (
	DefaultBackground = "#111111"
	DefaultForeground = "#f5f5f5"
	DefaultPrimary    = "#4f46e5"
	DefaultBorder     = "220 13% 91%"
)

// FallbackCSS derives a minimal stylesheet from snap. The output depends
// only on snap; a nil snapshot yields the defaults.
func FallbackCSS(snap *types.Snapshot) string {
	bg, fg, link, border := DefaultBackground, DefaultForeground, DefaultPrimary, DefaultBorder
	if snap != nil {
		bg = orDefault(snap.Computed.BodyBg, bg)
		fg = orDefault(snap.Computed.BodyColor, fg)
		link = orDefault(snap.Computed.LinkColor, link)
		border = orDefault(snap.CSSVariables["--border"], border)
	}
	return fmt.Sprintf(":root{--background:%s;--foreground:%s;--primary:%s;--primary-foreground:#ffffff;--border:%s}\n"+
		".dark{--background:#0a0a0a;--foreground:#e5e7eb;--primary:%s;--primary-foreground:#111827;}",
		bg, fg, link, border, link)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

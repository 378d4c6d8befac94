package theme

import (
	"regexp"
	"strings"
)

var tagPatterns = map[string]*regexp.Regexp{}

func tagPattern(tag string) *regexp.Regexp {
	if re, ok := tagPatterns[tag]; ok {
		return re
	}
	return regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
}

func init() {
	for _, t := range []string{"css", "analysis", "theme-palette"} {
		tagPatterns[t] = tagPattern(t)
	}
}

// ExtractTag returns the trimmed body of the first <tag>...</tag> block in
// text, or "" when there is none. Tags match case-insensitively.
func ExtractTag(text, tag string) string {
	m := tagPattern(tag).FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractCSS returns the stylesheet of a model reply: the <css> block, or
// the <theme-palette> block for replies that use that wrapper.
func ExtractCSS(text string) string {
	if css := ExtractTag(text, "css"); css != "" {
		return css
	}
	return ExtractTag(text, "theme-palette")
}

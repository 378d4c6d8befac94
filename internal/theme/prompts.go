package theme

import (
	"encoding/json"
	"fmt"

	"sitecnd/pkg/types"
)

const systemPromptTemplate = `You are a site theme designer for %s. Every user message is a JSON object describing one task, the page's style snapshot, the stylesheet currently applied and, optionally, a base theme. Never ask for the JSON; it is already in the message.

Ground colors in the snapshot (cssVariables, computed colors, paletteSamples). Use real hex values and keep contrast accessible. Derive --radius from the most common non-zero radius sample. When a base theme is given, move the palette toward it while respecting the page structure.

Reply with:
<analysis>
A short explanation of the direction and key color choices.
</analysis>
<css>
:root { --background: ...; --foreground: ...; --primary: ...; --primary-foreground: ...; --secondary: ...; --accent: ...; --muted: ...; --border: ...; --input: ...; --ring: ...; --radius: ...; }
.dark { ... }
</css>`

// SystemPrompt is the initial prompt of the model session of domain.
func SystemPrompt(domain string) string {
	return fmt.Sprintf(systemPromptTemplate, domain)
}

// Task names sent to the model.
const (
	TaskGenerate = "generate"
	TaskAnalyze  = "analyze"
	TaskChat     = "chat"
)

// PromptInput is the context of one model turn.
type PromptInput struct {
	Domain         string
	Snapshot       *types.Snapshot
	SiteStylesheet string
	BaseTheme      *Theme
	UserText       string
}

type promptBase struct {
	Name    string  `json:"name"`
	CSSVars CSSVars `json:"cssVars"`
}

type promptDoc struct {
	Task           string          `json:"task"`
	Instructions   string          `json:"instructions"`
	Domain         string          `json:"domain"`
	Snapshot       *types.Snapshot `json:"snapshot"`
	SiteStylesheet string          `json:"siteStylesheet"`
	BaseTheme      *promptBase     `json:"baseTheme"`
	User           struct {
		Text string `json:"text"`
	} `json:"user"`
}

var taskInstructions = map[string]string{
	TaskGenerate: "Create a new theme for the site following the user text.",
	TaskAnalyze:  "Study the current design and output a cleaned-up theme that keeps the site's identity. Output both sections.",
	TaskChat:     "Answer the user conversationally. Include a <css> block only when proposing a stylesheet change.",
}

func buildPrompt(task string, in PromptInput) string {
	doc := promptDoc{
		Task:           task,
		Instructions:   taskInstructions[task],
		Domain:         in.Domain,
		Snapshot:       in.Snapshot,
		SiteStylesheet: in.SiteStylesheet,
	}
	doc.User.Text = in.UserText
	if in.BaseTheme != nil {
		doc.BaseTheme = &promptBase{Name: in.BaseTheme.Name, CSSVars: in.BaseTheme.CSSVars}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprintf(`{"task":%q,"domain":%q}`, task, in.Domain)
	}
	return string(b)
}

// GeneratePrompt builds the user prompt of a theme generation.
func GeneratePrompt(in PromptInput) string { return buildPrompt(TaskGenerate, in) }

// AnalyzePrompt builds the user prompt of a style analysis.
func AnalyzePrompt(in PromptInput) string { return buildPrompt(TaskAnalyze, in) }

// ChatPrompt builds the user prompt of one chat turn.
func ChatPrompt(in PromptInput) string { return buildPrompt(TaskChat, in) }

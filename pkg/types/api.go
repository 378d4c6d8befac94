package types

// ActiveDomainRequest asks for the domain of a tab, or of the active tab when TabID is nil.
type ActiveDomainRequest struct {
	TabID *int `json:"tabId,omitempty" example:"12"`
}

// ActiveDomainPayload carries a resolved domain. Empty means nothing resolved.
type ActiveDomainPayload struct {
	// example: example.com
	Domain string `json:"domain" example:"example.com"`
}

// ModelStatusPayload reports model availability.
type ModelStatusPayload struct {
	// example: available
	Availability Availability `json:"availability" example:"available"`
	// Set on the reply to sidepanelSubscribe.
	SubscriberID string `json:"subscriber_id,omitempty"`
}

// GenerateRequest asks for a theme for a site.
type GenerateRequest struct {
	// Optional domain; the active tab is used when empty.
	Domain string `json:"domain,omitempty" example:"example.com"`
	// Optional originating tab.
	TabID *int `json:"tabId,omitempty" example:"12"`
	// Optional snapshot; extracted from the page when nil.
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	// Optional base theme from the registry.
	// example: catppuccin
	BaseThemeName string `json:"baseThemeName,omitempty" example:"catppuccin"`
	// Optional free-form instructions.
	Prompt string `json:"prompt,omitempty" example:"warm dark palette"`
}

// AnalyzeRequest asks for an analysis of a site's current styles.
type AnalyzeRequest struct {
	Domain        string    `json:"domain,omitempty" example:"example.com"`
	TabID         *int      `json:"tabId,omitempty" example:"12"`
	Snapshot      *Snapshot `json:"snapshot,omitempty"`
	BaseThemeName string    `json:"baseThemeName,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// Sources of a generated stylesheet.
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// ResultStatus is the terminal outcome of a generation-like operation.
type ResultStatus string

const (
	StatusOK      ResultStatus = "ok"
	StatusWarning ResultStatus = "warning"
	StatusError   ResultStatus = "error"
)

// ErrorInfo is a categorized, human-readable failure.
type ErrorInfo struct {
	// example: timeout
	Code string `json:"code" example:"timeout"`
	// example: The page did not respond in time.
	Message string `json:"message" example:"The page did not respond in time."`
}

// GenerationResult is the single terminal event of a generateSiteCss request.
type GenerationResult struct {
	OpID   string       `json:"op_id"`
	Domain string       `json:"domain"`
	Status ResultStatus `json:"status"`
	CSS    string       `json:"css,omitempty"`
	// example: model
	Source  string     `json:"source,omitempty" example:"model"`
	Warning *ErrorInfo `json:"warning,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// AnalysisResult is the single terminal event of an analyzeSiteStyles request.
type AnalysisResult struct {
	OpID     string       `json:"op_id"`
	Domain   string       `json:"domain"`
	Status   ResultStatus `json:"status"`
	Analysis string       `json:"analysis"`
	CSS      string       `json:"css"`
	Source   string       `json:"source,omitempty" example:"model"`
	Warning  *ErrorInfo   `json:"warning,omitempty"`
	Error    *ErrorInfo   `json:"error,omitempty"`
}

// ChatPromptRequest is one user turn of a site chat.
type ChatPromptRequest struct {
	Domain string `json:"domain,omitempty"`
	TabID  *int   `json:"tabId,omitempty"`
	Text   string `json:"text" example:"Use a serif font for headings"`
}

// ChatResponsePayload is a streamed chat update. Seq grows within an exchange and
// exactly one payload per exchange has Done set.
type ChatResponsePayload struct {
	ExchangeID string     `json:"exchange_id"`
	Domain     string     `json:"domain"`
	Seq        int        `json:"seq"`
	Content    string     `json:"content"`
	Delta      string     `json:"delta,omitempty"`
	Done       bool       `json:"done"`
	CSS        string     `json:"css,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`
}

// SubscribeRequest registers or removes a side panel observer.
type SubscribeRequest struct {
	ID string `json:"id,omitempty" example:"panel-1"`
}

// SiteCSSRequest targets the saved CSS of a domain.
type SiteCSSRequest struct {
	Domain string `json:"domain,omitempty" example:"example.com"`
	CSS    string `json:"css,omitempty"`
}

// SiteCSSStatusPayload reports whether a domain has saved CSS and whether it is enabled.
type SiteCSSStatusPayload struct {
	Domain  string `json:"domain"`
	Enabled bool   `json:"enabled"`
	HasCSS  bool   `json:"hasCss"`
}

// SiteCSSAppliedPayload is broadcast after saved CSS changed state.
type SiteCSSAppliedPayload struct {
	Domain  string `json:"domain"`
	Enabled bool   `json:"enabled"`
	CSS     string `json:"css,omitempty"`
}

// AppendSiteChatRequest appends one message to a site chat transcript.
type AppendSiteChatRequest struct {
	Domain  string       `json:"domain,omitempty"`
	Message *ChatMessage `json:"message"`
}

// SiteChatPayload carries a full chat transcript.
type SiteChatPayload struct {
	Domain   string        `json:"domain"`
	Messages []ChatMessage `json:"messages"`
}

// ChangeThemeRequest switches the light/dark mode of pages.
type ChangeThemeRequest struct {
	// example: dark
	Theme string `json:"theme" example:"dark"`
}

// Ack acknowledges an asynchronous request; its result arrives as a broadcast.
type Ack struct {
	Accepted bool   `json:"accepted"`
	OpID     string `json:"op_id,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SessionStatus describes one live model session.
type SessionStatus struct {
	Domain   string `json:"domain" example:"example.com"`
	State    string `json:"state" example:"ready"`
	Created  int64  `json:"created"`
	LastUsed int64  `json:"last_used"`
	QueueLen int    `json:"queue_len"`
	Inflight int    `json:"inflight"`
}

// StatusResponse is the daemon status document served on /v1/status.
type StatusResponse struct {
	Availability Availability    `json:"availability" example:"available"`
	Polling      bool            `json:"polling"`
	Subscribers  int             `json:"subscribers"`
	Sessions     []SessionStatus `json:"sessions"`
	Error        string          `json:"error,omitempty"`
}

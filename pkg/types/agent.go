package types

// Agent command kinds queued for content agents and for the tab host.
const (
	CommandExtractSnapshot = "extractSiteSnapshot"
	CommandChangeTheme     = "changeTheme"
	CommandInject          = "injectAgent"
	CommandInsertCSS       = "insertCss"
	CommandRemoveCSS       = "removeCss"
)

// AgentCommand is delivered to a polling agent or host.
type AgentCommand struct {
	ID     string `json:"id"`
	Kind   string `json:"kind" example:"extractSiteSnapshot"`
	TabID  int    `json:"tabId"`
	Domain string `json:"domain,omitempty"`
	CSS    string `json:"css,omitempty"`
	Theme  string `json:"theme,omitempty"`
}

// AgentResponse is posted by a content agent for an extraction request.
// Status "ok" with a nil Snapshot means the page had no style data.
type AgentResponse struct {
	Domain   string    `json:"domain" example:"example.com"`
	Status   string    `json:"status" example:"ok"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Tab event types posted by the browser shim.
const (
	TabActivated = "activated"
	TabUpdated   = "updated"
	TabCommitted = "committed"
	TabRemoved   = "removed"
)

// TabEvent is a tab lifecycle or navigation signal.
type TabEvent struct {
	Type     string  `json:"type" example:"updated"`
	TabID    int     `json:"tabId" example:"12"`
	WindowID int     `json:"windowId,omitempty"`
	URL      *string `json:"url,omitempty"`
	Status   string  `json:"status,omitempty" example:"complete"`
	Active   bool    `json:"active,omitempty"`
	Focused  bool    `json:"focused,omitempty"`
}

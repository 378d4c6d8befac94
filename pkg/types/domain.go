package types

// Availability is the readiness of the on-device language model.
type Availability string

const (
	AvailabilityUnavailable  Availability = "unavailable"
	AvailabilityDownloadable Availability = "downloadable"
	AvailabilityDownloading  Availability = "downloading"
	AvailabilityAvailable    Availability = "available"
)

// Valid reports whether a is one of the known states.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityUnavailable, AvailabilityDownloadable, AvailabilityDownloading, AvailabilityAvailable:
		return true
	}
	return false
}

// Snapshot is the style data captured from a page by the content agent.
// It is read-only once received.
type Snapshot struct {
	// Domain the snapshot was taken from.
	// example: example.com
	Domain string `json:"domain" example:"example.com"`
	// CSS custom properties found on :root.
	CSSVariables map[string]string `json:"cssVariables,omitempty"`
	// Computed baseline values.
	Computed Computed `json:"computed"`
	// Font families in use.
	Fonts Fonts `json:"fonts"`
	// Sample colors seen on the page.
	// example: ["#ffffff","#111827"]
	PaletteSamples []string `json:"paletteSamples,omitempty"`
}

// Computed holds a few computed style values of well-known elements.
type Computed struct {
	BodyBg              string   `json:"bodyBg,omitempty" example:"#ffffff"`
	BodyColor           string   `json:"bodyColor,omitempty" example:"#111827"`
	LinkColor           string   `json:"linkColor,omitempty" example:"#2563eb"`
	HeadingsColor       string   `json:"headingsColor,omitempty" example:"#0f172a"`
	BorderRadiusSamples []string `json:"borderRadiusSamples,omitempty"`
	ShadowSamples       []string `json:"shadowSamples,omitempty"`
}

// Fonts lists font families.
type Fonts struct {
	Families []string `json:"families,omitempty"`
}

// Empty reports whether the snapshot carries no style data at all.
func (s Snapshot) Empty() bool {
	c := s.Computed
	return len(s.CSSVariables) == 0 && len(s.PaletteSamples) == 0 && len(s.Fonts.Families) == 0 &&
		c.BodyBg == "" && c.BodyColor == "" && c.LinkColor == "" && c.HeadingsColor == "" &&
		len(c.BorderRadiusSamples) == 0 && len(c.ShadowSamples) == 0
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of a site's chat transcript.
type ChatMessage struct {
	Role    ChatRole `json:"role" example:"user"`
	Content string   `json:"content" example:"Make it darker"`
}

// Valid reports whether r is a known role.
func (r ChatRole) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

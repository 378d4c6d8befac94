package types

import "encoding/json"

// Kind names a message on the wire.
type Kind string

// Inbound request kinds.
const (
	KindRequestActiveDomain  Kind = "requestActiveDomain"
	KindRequestModelStatus   Kind = "requestModelStatus"
	KindGenerateSiteCSS      Kind = "generateSiteCss"
	KindAnalyzeSiteStyles    Kind = "analyzeSiteStyles"
	KindChatPrompt           Kind = "chatPrompt"
	KindSidepanelSubscribe   Kind = "sidepanelSubscribe"
	KindSidepanelUnsubscribe Kind = "sidepanelUnsubscribe"
	KindSetSiteCSS           Kind = "setSiteCss"
	KindEnableSiteCSS        Kind = "enableSiteCss"
	KindDisableSiteCSS       Kind = "disableSiteCss"
	KindRequestSiteCSSStatus Kind = "requestSiteCssStatus"
	KindAppendSiteChat       Kind = "appendSiteChat"
	KindRequestSiteChat      Kind = "requestSiteChat"
	KindChangeTheme          Kind = "changeTheme"
)

// Outbound (response and broadcast) kinds.
const (
	KindActiveDomain     Kind = "activeDomain"
	KindModelStatus      Kind = "modelStatus"
	KindSiteCSSGenerated Kind = "siteCssGenerated"
	KindSiteAnalysis     Kind = "siteAnalysis"
	KindChatResponse     Kind = "chatResponse"
	KindSiteCSSStatus    Kind = "siteCssStatus"
	KindSiteChat         Kind = "siteChat"
	KindSiteCSSApplied   Kind = "siteCssApplied"
)

// Origin tags.
const (
	OriginBackground = "background"
	OriginSidepanel  = "sidepanel"
)

// Message is the transport-agnostic envelope for every request, response and broadcast.
type Message struct {
	Kind    Kind            `json:"kind" example:"generateSiteCss"`
	Payload json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
	// Origin tags the sender, e.g. "sidepanel" or "background".
	Origin string `json:"origin,omitempty" example:"sidepanel"`
}

// NewMessage marshals payload into a Message. A nil payload yields an empty object.
func NewMessage(kind Kind, payload any) Message {
	if payload == nil {
		return Message{Kind: kind, Payload: json.RawMessage("{}")}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte("{}")
	}
	return Message{Kind: kind, Payload: b}
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

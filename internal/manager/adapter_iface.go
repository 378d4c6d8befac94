package manager

import (
	"context"

	"sitecnd/pkg/types"
)

// LanguageModel abstracts the on-device model runtime used by the Manager.
type LanguageModel interface {
	// Availability reports whether sessions can be created right now.
	Availability(ctx context.Context) (types.Availability, error)
	// CreateSession starts a conversation primed with systemPrompt.
	CreateSession(ctx context.Context, systemPrompt string) (Session, error)
}

// Session is one conversation with the model. It keeps its own history so
// later prompts see earlier turns. A session serves one prompt at a time.
type Session interface {
	Prompt(ctx context.Context, text string) (string, error)
	// PromptStreaming invokes onChunk with each piece of output in order and
	// returns the full text. It must return when ctx is cancelled.
	PromptStreaming(ctx context.Context, text string, onChunk func(string) error) (string, error)
	Destroy() error
}

// GenParams captures generation parameters passed to the runtime.
type GenParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

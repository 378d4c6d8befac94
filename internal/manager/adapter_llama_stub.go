//go:build !llama

package manager

// This file provides a no-CGO stub for the llama adapter. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The stub reports the model as unavailable so the daemon degrades to
// heuristic output.

import (
	"context"

	"sitecnd/pkg/types"
)

var llamaBuilt = false

// LlamaConfig configures the in-process llama runtime.
type LlamaConfig struct {
	ModelPath string
	CtxSize   int
	Threads   int
	Params    GenParams
}

type llamaModel struct {
	cfg LlamaConfig
}

// NewLlamaModel returns a LanguageModel that is never available.
func NewLlamaModel(cfg LlamaConfig) LanguageModel {
	return &llamaModel{cfg: cfg}
}

func (a *llamaModel) Availability(ctx context.Context) (types.Availability, error) {
	return types.AvailabilityUnavailable, nil
}

func (a *llamaModel) CreateSession(ctx context.Context, systemPrompt string) (Session, error) {
	// Fail fast: llama runtime not available in this build.
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

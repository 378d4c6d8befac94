//go:build llama

package manager

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"sitecnd/pkg/types"
)

// The rpath of $ORIGIN lets the loader find libllama.so next to the binary;
// -L points the linker at ./bin when building with -tags=llama.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// LlamaConfig configures the in-process llama runtime.
type LlamaConfig struct {
	ModelPath string
	CtxSize   int
	Threads   int
	Params    GenParams
}

// llamaModel loads the model file once and shares it between sessions.
// go-llama.cpp predictions are not concurrent, so mu serializes them.
type llamaModel struct {
	cfg LlamaConfig

	mu      sync.Mutex
	model   *llama.LLama
	loadErr error
}

// NewLlamaModel returns the go-llama.cpp backed LanguageModel.
func NewLlamaModel(cfg LlamaConfig) LanguageModel {
	return &llamaModel{cfg: cfg}
}

func (a *llamaModel) Availability(ctx context.Context) (types.Availability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		return types.AvailabilityAvailable, nil
	}
	if a.loadErr != nil {
		return types.AvailabilityUnavailable, nil
	}
	if strings.TrimSpace(a.cfg.ModelPath) == "" {
		return types.AvailabilityUnavailable, nil
	}
	if _, err := os.Stat(a.cfg.ModelPath); err != nil {
		return types.AvailabilityUnavailable, nil
	}
	// File present, loaded on first session.
	return types.AvailabilityAvailable, nil
}

func (a *llamaModel) CreateSession(ctx context.Context, systemPrompt string) (Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadLocked(); err != nil {
		return nil, err
	}
	return &llamaSession{owner: a, system: systemPrompt}, nil
}

func (a *llamaModel) loadLocked() error {
	if a.model != nil {
		return nil
	}
	if a.loadErr != nil {
		return a.loadErr
	}
	if strings.TrimSpace(a.cfg.ModelPath) == "" {
		return ErrModelUnavailable("model path is empty")
	}
	// Configure model options
	mo := []llama.ModelOption{
		llama.SetContext(a.cfg.CtxSize),
	}
	m, err := llama.New(a.cfg.ModelPath, mo...)
	if err != nil {
		a.loadErr = err
		return ErrDependencyUnavailable("load model: " + err.Error())
	}
	a.model = m
	return nil
}

// Close frees the loaded model.
func (a *llamaModel) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		a.model.Free()
		a.model = nil
	}
	return nil
}

type turn struct {
	user, assistant string
}

// llamaSession keeps the conversation and replays it as the prompt prefix.
type llamaSession struct {
	owner     *llamaModel
	system    string
	history   []turn
	destroyed bool
}

func (s *llamaSession) Prompt(ctx context.Context, text string) (string, error) {
	return s.PromptStreaming(ctx, text, nil)
}

func (s *llamaSession) PromptStreaming(ctx context.Context, text string, onChunk func(string) error) (string, error) {
	if s.destroyed {
		return "", errors.New("session destroyed")
	}
	a := s.owner
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model == nil {
		return "", errors.New("llama model not initialized")
	}

	// Bridge token streaming to onChunk and respect cancellation
	a.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if onChunk == nil {
			return true
		}
		return onChunk(tok) == nil
	})
	po := mapGenParamsToPredictOptions(a.cfg.Params, a.cfg.Threads)
	out, err := a.model.Predict(s.transcript(text), po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	s.history = append(s.history, turn{user: text, assistant: out})
	return out, nil
}

func (s *llamaSession) transcript(next string) string {
	var b strings.Builder
	b.WriteString(s.system)
	b.WriteString("\n\n")
	for _, t := range s.history {
		b.WriteString("User: ")
		b.WriteString(t.user)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.assistant)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(next)
	b.WriteString("\nAssistant: ")
	return b.String()
}

func (s *llamaSession) Destroy() error {
	s.destroyed = true
	s.history = nil
	return nil
}

// helpers
func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// mapGenParamsToPredictOptions converts our params into go-llama.cpp options
func mapGenParamsToPredictOptions(params GenParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, zn(params.MaxTokens, 1024))),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(params.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	stop := params.Stop
	if len(stop) == 0 {
		stop = []string{"\nUser:"}
	}
	po = append(po, llama.SetStopWords(stop...))
	return po
}

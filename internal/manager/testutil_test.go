package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/clock"
	"sitecnd/pkg/types"
)

// fakeModel is a lightweight in-memory LanguageModel used for tests.
type fakeModel struct {
	mu        sync.Mutex
	avail     types.Availability
	availErr  error
	createErr error
	// createGate, when set, blocks CreateSession until closed.
	createGate chan struct{}
	chunks     []string

	probes   atomic.Int32
	creates  atomic.Int32
	sessions []*fakeSession
}

func (f *fakeModel) setAvailability(a types.Availability) {
	f.mu.Lock()
	f.avail = a
	f.mu.Unlock()
}

func (f *fakeModel) Availability(ctx context.Context) (types.Availability, error) {
	f.probes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail, f.availErr
}

func (f *fakeModel) CreateSession(ctx context.Context, systemPrompt string) (Session, error) {
	f.creates.Add(1)
	if f.createGate != nil {
		<-f.createGate
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := &fakeSession{system: systemPrompt, chunks: f.chunks}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

type fakeSession struct {
	system    string
	chunks    []string
	prompts   []string
	destroyed atomic.Bool
}

func (s *fakeSession) Prompt(ctx context.Context, text string) (string, error) {
	return s.PromptStreaming(ctx, text, nil)
}

func (s *fakeSession) PromptStreaming(ctx context.Context, text string, onChunk func(string) error) (string, error) {
	if s.destroyed.Load() {
		return "", errors.New("destroyed")
	}
	s.prompts = append(s.prompts, text)
	for _, c := range s.chunks {
		if onChunk != nil {
			if err := onChunk(c); err != nil {
				return "", err
			}
		}
	}
	return strings.Join(s.chunks, ""), nil
}

func (s *fakeSession) Destroy() error {
	s.destroyed.Store(true)
	return nil
}

type fakeStore struct {
	mu     sync.Mutex
	writes []types.Availability
}

func (s *fakeStore) SetModelAvailability(ctx context.Context, a types.Availability) error {
	s.mu.Lock()
	s.writes = append(s.writes, a)
	s.mu.Unlock()
	return nil
}

func newTestManager(model *fakeModel, clk clock.Clock, pub EventPublisher) *Manager {
	return NewWithConfig(ManagerConfig{
		Model:        model,
		Clock:        clk,
		Publisher:    pub,
		DrainTimeout: 50 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

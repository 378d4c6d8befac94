package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sitecnd/internal/app"
	"sitecnd/internal/config"
	"sitecnd/internal/events"
	"sitecnd/internal/httpapi"
	"sitecnd/internal/manager"
	"sitecnd/pkg/types"
)

const cssReply = "<analysis>soft contrast</analysis><css>:root{--primary:#0f766e}</css>"

// staticModel answers every prompt with reply.
type staticModel struct{ reply string }

func (m staticModel) Availability(context.Context) (types.Availability, error) {
	return types.AvailabilityAvailable, nil
}

func (m staticModel) CreateSession(context.Context, string) (manager.Session, error) {
	return staticSession{reply: m.reply}, nil
}

type staticSession struct{ reply string }

func (s staticSession) Prompt(ctx context.Context, text string) (string, error) {
	return s.PromptStreaming(ctx, text, nil)
}

func (s staticSession) PromptStreaming(_ context.Context, _ string, onChunk func(string) error) (string, error) {
	if onChunk != nil {
		if err := onChunk(s.reply); err != nil {
			return "", err
		}
	}
	return s.reply, nil
}

func (staticSession) Destroy() error { return nil }

// newServer runs the whole daemon over an in-memory store.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Store = "memory:"
	cfg.Themes.RegistryURL = "http://127.0.0.1:0/registry.json"
	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{Model: staticModel{reply: cssReply}})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(a))
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, v any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func sendMessage(t *testing.T, base string, kind types.Kind, payload any) (*http.Response, []byte) {
	t.Helper()
	return httpPostJSON(t, base+"/v1/messages", types.NewMessage(kind, payload))
}

// openStream returns a channel of envelopes read from /v1/events.
func openStream(t *testing.T, ctx context.Context, url string) <-chan events.Envelope {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status %d", resp.StatusCode)
	}
	out := make(chan events.Envelope, 64)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var env events.Envelope
			if json.Unmarshal(sc.Bytes(), &env) == nil {
				out <- env
			}
		}
	}()
	return out
}

// next returns the first envelope of kind, skipping others.
func next(t *testing.T, stream <-chan events.Envelope, kind types.Kind) events.Envelope {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case env, ok := <-stream:
			if !ok {
				t.Fatalf("stream closed waiting for %s", kind)
			}
			if env.Kind == kind {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// runAgent plays the in-page agent and host shim for tabID until ctx ends.
// Snapshot requests are answered with snap.
func runAgent(ctx context.Context, base string, tabID int, snap types.Snapshot) {
	poll := func(url string) []types.AgentCommand {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil
		}
		defer resp.Body.Close()
		var cmds []types.AgentCommand
		_ = json.NewDecoder(resp.Body).Decode(&cmds)
		return cmds
	}
	agentURL := base + "/v1/agents/" + strconv.Itoa(tabID) + "/commands?wait=200ms"
	go func() {
		for ctx.Err() == nil {
			poll(base + "/v1/host/commands?wait=200ms")
		}
	}()
	for ctx.Err() == nil {
		for _, cmd := range poll(agentURL) {
			if cmd.Kind != types.CommandExtractSnapshot {
				continue
			}
			body, _ := json.Marshal(types.AgentResponse{Domain: cmd.Domain, Status: "ok", Snapshot: &snap})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/agents/"+strconv.Itoa(tabID)+"/responses", bytes.NewReader(body))
			if err != nil {
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			if resp, err := http.DefaultClient.Do(req); err == nil {
				_ = resp.Body.Close()
			}
		}
	}
}

func strp(s string) *string { return &s }

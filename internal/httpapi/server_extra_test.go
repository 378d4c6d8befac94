package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sitecnd/internal/coordinator"
	"sitecnd/pkg/types"
)

func TestMessageLogsPerRequestLevel(t *testing.T) {
	buf := captureLogs(t)

	svc := newMock()
	svc.reply = coordinator.Reply{Ack: &types.Ack{Accepted: true, OpID: "op"}}
	if w := postJSON(NewMux(svc), "/v1/messages?log=info", `{"kind":"analyzeSiteStyles"}`); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with info logging, got %d", w.Code)
	}
	if !strings.Contains(buf.String(), `"kind":"analyzeSiteStyles"`) || !strings.Contains(buf.String(), `"status":202`) {
		t.Fatalf("info request not logged: %s", buf.String())
	}

	buf.Reset()
	svc.handleErr = coordinator.BadRequestError{Reason: "x"}
	if w := postJSON(NewMux(svc), "/v1/messages?log=off", `{"kind":"analyzeSiteStyles"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if buf.Len() != 0 {
		t.Fatalf("logged with log=off: %s", buf.String())
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	// Enable CORS temporarily
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	h := NewMux(newMock())
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

func TestWaitParam(t *testing.T) {
	cases := map[string]int64{"": 0, "1500ms": 1500, "4": 4000, "soon": 0}
	for in, wantMs := range cases {
		r := httptest.NewRequest(http.MethodGet, "/v1/host/commands?wait="+in, nil)
		if got := waitParam(r).Milliseconds(); got != wantMs {
			t.Fatalf("waitParam(%q) = %dms, want %dms", in, got, wantMs)
		}
	}
}

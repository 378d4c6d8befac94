package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the daemon binary")
	}
	binPath := filepath.Join(t.TempDir(), "sitecnd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/sitecnd")
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

func startServer(t *testing.T, bin string, extra ...string) string {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := append([]string{"serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--store", "memory:", "--log-format", "console"}, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), "SITECND_MODEL_PATH=")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _, _ = cmd.Process.Wait() })

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return base
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	base := startServer(t, bin)

	// No model in a default build: not ready, but still serving.
	resp, body := get(t, base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	resp, body = postJSON(t, base+"/v1/messages", `{"kind":"requestModelStatus"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("requestModelStatus %d %s", resp.StatusCode, string(body))
	}
	var msg struct {
		Kind    string `json:"kind"`
		Payload struct {
			Availability string `json:"availability"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode: %v body=%s", err, string(body))
	}
	if msg.Kind != "modelStatus" || msg.Payload.Availability != "unavailable" {
		t.Fatalf("unexpected reply: %s", string(body))
	}

	resp, body = postJSON(t, base+"/v1/tabs/events", `{"type":"updated","tabId":4,"windowId":1,"url":"https://example.com/","active":true}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("tab event %d %s", resp.StatusCode, string(body))
	}
	resp, body = postJSON(t, base+"/v1/messages", `{"kind":"setSiteCss","payload":{"domain":"example.com","css":"body{color:red}"}}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"hasCss":true`) {
		t.Fatalf("setSiteCss %d %s", resp.StatusCode, string(body))
	}

	resp, body = get(t, base+"/v1/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/v1/status %d %s", resp.StatusCode, string(body))
	}
	resp, body = get(t, base+"/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "sitecnd_") {
		t.Fatalf("/metrics %d", resp.StatusCode)
	}
}

func TestBlackbox_UnknownKind_400(t *testing.T) {
	bin := buildBinary(t)
	base := startServer(t, bin)

	resp, body := postJSON(t, base+"/v1/messages", `{"kind":"nope"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_Version(t *testing.T) {
	bin := buildBinary(t)
	out, err := exec.Command(bin, "version").Output()
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		t.Fatal("empty version")
	}
}

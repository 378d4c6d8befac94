package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, f := range names {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("gguf"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
}

func TestGGUFScanner_ScanFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.GGUF", "a.gguf", "not-model.txt", "model.bin")
	if err := os.Mkdir(filepath.Join(dir, "nested.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := NewGGUFScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "a.gguf" || models[1].ID != "b.GGUF" {
		t.Fatalf("unexpected order: %+v", models)
	}
	for _, m := range models {
		if !strings.HasSuffix(strings.ToLower(m.ID), ".gguf") || m.Size != 4 {
			t.Fatalf("unexpected model: %+v", m)
		}
	}
}

func TestGGUFScanner_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "sitecnd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	touch(t, hTmp, "x.gguf")
	tildePath := "~/" + filepath.Base(hTmp)
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	}
	models, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.gguf", "a.gguf")

	got, err := ResolveModelPath(dir, "")
	if err != nil || got != filepath.Join(dir, "a.gguf") {
		t.Fatalf("dir: got %q, %v", got, err)
	}
	got, err = ResolveModelPath(dir, "b.gguf")
	if err != nil || got != filepath.Join(dir, "b.gguf") {
		t.Fatalf("prefer: got %q, %v", got, err)
	}
	file := filepath.Join(dir, "b.gguf")
	if got, err := ResolveModelPath(file, ""); err != nil || got != file {
		t.Fatalf("file: got %q, %v", got, err)
	}
	if _, err := ResolveModelPath(dir, "c.gguf"); err == nil {
		t.Fatalf("expected error for missing preferred model")
	}
	if _, err := ResolveModelPath(t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
	if _, err := ResolveModelPath("", ""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

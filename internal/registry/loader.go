// Package registry locates GGUF model files for the in-process runtime.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sitecnd/internal/common/fsutil"
)

// Model is one GGUF file found on disk.
type Model struct {
	ID   string
	Path string
	Size int64
}

// Scanner lists model files in a directory.
type Scanner interface {
	Scan(dir string) ([]Model, error)
}

type ggufScanner struct{}

// NewGGUFScanner returns a Scanner matching *.gguf, case-insensitively.
func NewGGUFScanner() Scanner { return ggufScanner{} }

// Scan returns the GGUF files directly inside dir sorted by ID. ID is the
// file name including the extension.
func (ggufScanner) Scan(dir string) ([]Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			continue
		}
		m := Model{ID: e.Name(), Path: filepath.Join(abs, e.Name())}
		if info, err := e.Info(); err == nil {
			m.Size = info.Size()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir is NewGGUFScanner().Scan(dir).
func LoadDir(dir string) ([]Model, error) { return NewGGUFScanner().Scan(dir) }

// ResolveModelPath turns a configured model path into a file. A file is
// returned as is; a directory yields its first GGUF file, or the one whose
// ID equals prefer when set.
func ResolveModelPath(path, prefer string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no model path configured")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("model path: %w", err)
	}
	if !info.IsDir() {
		return p, nil
	}
	models, err := LoadDir(p)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("no .gguf model in %s", p)
	}
	if prefer != "" {
		for _, m := range models {
			if m.ID == prefer {
				return m.Path, nil
			}
		}
		return "", fmt.Errorf("model %q not found in %s", prefer, p)
	}
	return models[0].Path, nil
}

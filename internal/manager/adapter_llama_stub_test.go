//go:build !llama

package manager

import (
	"context"
	"testing"

	"sitecnd/pkg/types"
)

func TestLlamaStubIsUnavailable(t *testing.T) {
	m := NewLlamaModel(LlamaConfig{ModelPath: "model.gguf"})
	a, err := m.Availability(context.Background())
	if err != nil || a != types.AvailabilityUnavailable {
		t.Fatalf("got %s, %v", a, err)
	}
	if _, err := m.CreateSession(context.Background(), "sys"); !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSanityCheckReportsMissingTag(t *testing.T) {
	mgr := NewWithConfig(ManagerConfig{LlamaModelPath: "model.gguf"})
	r := mgr.SanityCheck()
	if r.LlamaBuilt || r.Error == "" {
		t.Fatalf("unexpected report %+v", r)
	}
}

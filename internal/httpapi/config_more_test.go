package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetMessageTimeout_NormalizesNegativeToZero(t *testing.T) {
	defer SetMessageTimeout(0)
	SetMessageTimeout(-5 * time.Second)
	if messageTimeout != 0 {
		t.Fatalf("expected 0, got %v", messageTimeout)
	}
	SetMessageTimeout(3 * time.Second)
	if messageTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", messageTimeout)
	}
}

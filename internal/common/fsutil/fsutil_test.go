package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"/var/lib/sitecnd.db", "/var/lib/sitecnd.db"},
		{"~", home},
		{"~/", home},
		{"~/.sitecnd/sitecnd.db", filepath.Join(home, ".sitecnd", "sitecnd.db")},
		{"~alice/x", "~alice/x"},
		{"relative/~/x", "relative/~/x"},
	}
	for _, c := range cases {
		got, err := ExpandHome(c.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEnsureParentDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "state.db")
	if err := EnsureParentDir(target); err != nil {
		t.Fatalf("err: %v", err)
	}
	if fi, err := os.Stat(filepath.Dir(target)); err != nil || !fi.IsDir() {
		t.Fatalf("parent of %q not created: %v", target, err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("file itself must not be created")
	}
	if err := EnsureParentDir("state.db"); err != nil {
		t.Fatalf("bare file name: %v", err)
	}
}

func TestPrepareFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	p, err := PrepareFile("~/.sitecnd/sitecnd.db")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != filepath.Join(home, ".sitecnd", "sitecnd.db") {
		t.Fatalf("path = %q", p)
	}
	if _, err := os.Stat(filepath.Join(home, ".sitecnd")); err != nil {
		t.Fatalf("dir missing: %v", err)
	}
}

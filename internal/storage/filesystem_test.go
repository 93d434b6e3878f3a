package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndResolveRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	path, err := store.Write("task-1.png", payload)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(path) != store.BasePath() {
		t.Fatalf("wrote outside base path: %s", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %v", got)
	}

	resolved, err := store.Resolve("task-1.png")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolve = %s, want %s", resolved, path)
	}
}

func TestResolveRejectsUnsafeNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	bad := []string{
		"",
		"..",
		"../escape.png",
		"nested/task.png",
		"/etc/passwd",
		".hidden.png",
		"task-1.exe",
		"task-1",
		"task 1.png",
	}
	for _, name := range bad {
		if _, err := store.Resolve(name); err == nil {
			t.Errorf("Resolve(%q) accepted an unsafe name", name)
		}
	}
}

func TestNewFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatalf("blank base path accepted")
	}
}

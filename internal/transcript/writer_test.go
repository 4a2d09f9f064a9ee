package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesParentDirAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".runs", "codex-20260101T000000Z.log")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := w.Write([]byte("hello ")); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("unexpected transcript contents: %q", data)
	}
}

func TestTailReturnsMinOfFileSizeAndMaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.log")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	got, err := Tail(path, 4)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if string(got) != "6789" {
		t.Fatalf("expected last 4 bytes, got %q", got)
	}

	all, err := Tail(path, 1000)
	if err != nil {
		t.Fatalf("Tail full: %v", err)
	}
	if string(all) != "0123456789" {
		t.Fatalf("expected full contents when maxBytes exceeds size, got %q", all)
	}
}

func TestTailMissingFileReturnsNilNoError(t *testing.T) {
	got, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing file, got %q", got)
	}
}

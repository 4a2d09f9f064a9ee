package creds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckReadinessCodexByAPIKey(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteEnv(dir, map[string]string{"OPENAI_API_KEY": "sk-x"}); err != nil {
		t.Fatalf("WriteEnv: %v", err)
	}
	r := CheckReadiness("codex", dir)
	if !r.Ready {
		t.Fatalf("expected codex ready with OPENAI_API_KEY set: %+v", r)
	}
}

func TestCheckReadinessCodexBySubdir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "codex")
	if err := os.MkdirAll(sub, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "auth.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := CheckReadiness("codex", dir)
	if !r.Ready {
		t.Fatalf("expected codex ready with non-empty codex/ subdir: %+v", r)
	}
}

func TestCheckReadinessNotReadyListsReasons(t *testing.T) {
	r := CheckReadiness("gemini", t.TempDir())
	if r.Ready {
		t.Fatalf("expected not ready for empty creds dir")
	}
	if len(r.Reasons) == 0 {
		t.Fatalf("expected reasons to be populated")
	}
}

func TestCheckReadinessOpencodeAnyKey(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteEnv(dir, map[string]string{"ANTHROPIC_API_KEY": "x"}); err != nil {
		t.Fatalf("WriteEnv: %v", err)
	}
	r := CheckReadiness("opencode", dir)
	if !r.Ready {
		t.Fatalf("expected opencode ready with ANTHROPIC_API_KEY set: %+v", r)
	}
}

func TestCheckReadinessIsPure(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteEnv(dir, map[string]string{"GEMINI_API_KEY": "x"}); err != nil {
		t.Fatalf("WriteEnv: %v", err)
	}
	a := CheckReadiness("gemini", dir)
	b := CheckReadiness("gemini", dir)
	if a.Ready != b.Ready || len(a.Reasons) != len(b.Reasons) {
		t.Fatalf("expected two consecutive invocations to agree: %+v vs %+v", a, b)
	}
}

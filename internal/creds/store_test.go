package creds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadEnvMissingFileYieldsEmptyMap(t *testing.T) {
	env, err := ReadEnv(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env) != 0 {
		t.Fatalf("expected empty map, got %v", env)
	}
}

func TestWriteEnvThenReadEnvRoundTrips(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteEnv(dir, map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"NOTE":           "has space",
	})
	if err != nil {
		t.Fatalf("WriteEnv: %v", err)
	}
	if written["OPENAI_API_KEY"] != "sk-test" {
		t.Fatalf("unexpected overlay result: %v", written)
	}

	read, err := ReadEnv(dir)
	if err != nil {
		t.Fatalf("ReadEnv: %v", err)
	}
	if read["OPENAI_API_KEY"] != "sk-test" || read["NOTE"] != "has space" {
		t.Fatalf("round trip mismatch: %v", read)
	}
}

func TestWriteEnvOverlayPreservesExistingKeys(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteEnv(dir, map[string]string{"A": "1", "B": "2"}); err != nil {
		t.Fatalf("seed WriteEnv: %v", err)
	}
	updated, err := WriteEnv(dir, map[string]string{"B": "3"})
	if err != nil {
		t.Fatalf("overlay WriteEnv: %v", err)
	}
	if updated["A"] != "1" || updated["B"] != "3" {
		t.Fatalf("overlay did not preserve untouched key: %v", updated)
	}
}

func TestWriteEnvEmptyStringClearsValueButKeepsKey(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteEnv(dir, map[string]string{"A": "1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	updated, err := WriteEnv(dir, map[string]string{"A": ""})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	val, ok := updated["A"]
	if !ok {
		t.Fatalf("expected key A to remain present after clearing, got %v", updated)
	}
	if val != "" {
		t.Fatalf("expected empty value, got %q", val)
	}
}

func TestReadEnvStripsQuotesAndIgnoresComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# a comment\nFOO=\"bar baz\"\nBAR='single'\nNOEQUALS\nBAZ=plain\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	env, err := ReadEnv(dir)
	if err != nil {
		t.Fatalf("ReadEnv: %v", err)
	}
	if env["FOO"] != "bar baz" || env["BAR"] != "single" || env["BAZ"] != "plain" {
		t.Fatalf("unexpected parse result: %v", env)
	}
	if _, ok := env["NOEQUALS"]; ok {
		t.Fatalf("expected line without '=' to be ignored")
	}
}


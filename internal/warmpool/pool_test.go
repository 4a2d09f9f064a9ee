package warmpool

import (
	"testing"

	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
)

func TestNameIsDeterministicForSameFingerprint(t *testing.T) {
	fp := dockerdriver.MountFingerprint{Engine: dockerdriver.EngineCodex, WorkspacePath: "/tmp/ws", CredsPath: "/tmp/cr"}
	a := Name(fp)
	b := Name(fp)
	if a != b {
		t.Fatalf("expected deterministic name, got %q and %q", a, b)
	}
}

func TestNameDiffersAcrossFingerprints(t *testing.T) {
	a := Name(dockerdriver.MountFingerprint{Engine: dockerdriver.EngineCodex, WorkspacePath: "/tmp/ws", CredsPath: "/tmp/cr"})
	b := Name(dockerdriver.MountFingerprint{Engine: dockerdriver.EngineGemini, WorkspacePath: "/tmp/ws", CredsPath: "/tmp/cr"})
	if a == b {
		t.Fatalf("expected distinct names for distinct engines, got %q", a)
	}
}

func TestNameIsStableUnderPathNormalization(t *testing.T) {
	a := Name(dockerdriver.MountFingerprint{Engine: dockerdriver.EngineCodex, WorkspacePath: "/tmp/ws/", CredsPath: "/tmp/cr"})
	b := Name(dockerdriver.MountFingerprint{Engine: dockerdriver.EngineCodex, WorkspacePath: "/tmp/ws", CredsPath: "/tmp/cr"})
	if a != b {
		t.Fatalf("expected trailing-slash fingerprint to normalize to same name, got %q vs %q", a, b)
	}
}

func TestNameHasWarmPrefix(t *testing.T) {
	name := Name(dockerdriver.MountFingerprint{Engine: dockerdriver.EngineOpencode, WorkspacePath: "/a", CredsPath: "/b"})
	if len(name) < len("cliboard-warm-") || name[:len("cliboard-warm-")] != "cliboard-warm-" {
		t.Fatalf("expected cliboard-warm- prefix, got %q", name)
	}
}

// Package dockerdriver is the Container Driver (spec §4.3): a thin
// capability interface over the Docker Engine API. Every other component
// consumes the verbs defined here; the one other package importing
// github.com/docker/docker is internal/warmpool, for the api/types
// container listing type its List returns.
//
// Grounded on the teacher's agents/shared/docker package (client.go,
// dyad.go, container_core.go, host.go), generalized from a fixed
// actor/critic container pair to the single-container-per-Run model
// spec §3 describes.
package dockerdriver

import (
	"path/filepath"
	"strings"
)

// Engine is the closed enumeration from spec §3. No other value is ever
// accepted at the boundary; ParseEngine is the sole entry point that
// produces one.
type Engine string

const (
	EngineCodex    Engine = "codex"
	EngineGemini   Engine = "gemini"
	EngineOpencode Engine = "opencode"
)

// ParseEngine validates a caller-supplied engine string against the
// closed enumeration.
func ParseEngine(raw string) (Engine, bool) {
	switch Engine(strings.TrimSpace(raw)) {
	case EngineCodex:
		return EngineCodex, true
	case EngineGemini:
		return EngineGemini, true
	case EngineOpencode:
		return EngineOpencode, true
	default:
		return "", false
	}
}

// MountFingerprint is the tuple identifying interchangeable container
// configurations (spec §3). Two fingerprints are equal iff all fields
// are byte-equal after path normalization.
type MountFingerprint struct {
	Engine        Engine
	WorkspacePath string
	CredsPath     string
	ReadOnlyRoot  bool
	UIDGid        string // optional "u:g"; empty means unset
}

// Normalize returns a copy of fp with both paths filepath.Clean'd, which
// is what equality and label-derivation are defined over.
func (fp MountFingerprint) Normalize() MountFingerprint {
	fp.WorkspacePath = filepath.Clean(strings.TrimSpace(fp.WorkspacePath))
	fp.CredsPath = filepath.Clean(strings.TrimSpace(fp.CredsPath))
	fp.UIDGid = strings.TrimSpace(fp.UIDGid)
	return fp
}

// Equal reports fingerprint equality per spec §3: byte-equal after
// normalization.
func (fp MountFingerprint) Equal(other MountFingerprint) bool {
	a, b := fp.Normalize(), other.Normalize()
	return a == b
}

// Labels renders the fingerprint as the Docker label schema from spec §6
// (the "adz.*" prefix is pinned byte-for-byte by the spec and kept as
// written). warm=true is added by the warm pool manager, runId by the
// orchestrator — Labels only emits the fingerprint-derived subset common
// to both fresh and warm containers.
func (fp MountFingerprint) Labels() map[string]string {
	fp = fp.Normalize()
	readonly := "0"
	if fp.ReadOnlyRoot {
		readonly = "1"
	}
	return map[string]string{
		LabelEngine:    string(fp.Engine),
		LabelWorkspace: fp.WorkspacePath,
		LabelCreds:     fp.CredsPath,
		LabelReadOnly:  readonly,
		LabelUIDGid:    fp.UIDGid,
	}
}

// Label keys, pinned byte-for-byte per spec §6.
const (
	LabelEngine    = "adz.engine"
	LabelWorkspace = "adz.workspace"
	LabelCreds     = "adz.creds"
	LabelRunID     = "adz.runId"
	LabelWarm      = "adz.warm"
	LabelReadOnly  = "adz.readonly"
	LabelUIDGid    = "adz.uidgid"
)

// RunSpec is everything CreateFresh/ExecInWarm need beyond the
// fingerprint: extra environment, explicit argv, and the image to use
// for fresh containers.
type RunSpec struct {
	Fingerprint MountFingerprint
	Image       string
	ExtraEnv    map[string]string
	Argv        []string
}

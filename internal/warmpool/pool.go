// Package warmpool implements the Warm Pool Manager (spec §4.4): it
// finds, creates, lists, and destroys the long-lived containers the Run
// Orchestrator execs into for interchangeable (same MountFingerprint)
// Runs.
//
// Grounded on the teacher's agents/shared/docker/dyad.go, whose
// EnsureDyad/DyadContainerName/RemoveDyad trio does the same
// find-by-name-else-create dance for a fixed actor/critic pair; Manager
// generalizes that to one container keyed by an arbitrary
// MountFingerprint instead of a dyad name.
package warmpool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"

	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
)

// Manager finds or creates warm containers for a given MountFingerprint
// and destroys them on request (the /warm/:id and bulk teardown
// endpoints call Destroy).
type Manager struct {
	client *dockerdriver.Client
	image  string
}

// New constructs a Manager. image is the default runner image used when
// creating a new warm container (spec §4.4 create).
func New(client *dockerdriver.Client, image string) *Manager {
	return &Manager{client: client, image: image}
}

// Name derives a stable, deterministic container name from fp, so that
// repeated Ensure calls for the same fingerprint always resolve to the
// same name (spec §3 "warm containers are found by MountFingerprint,
// not by name").
func Name(fp dockerdriver.MountFingerprint) string {
	fp = fp.Normalize()
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(fp.Engine), fp.WorkspacePath, fp.CredsPath, fp.UIDGid, boolStr(fp.ReadOnlyRoot),
	}, "\x00")))
	return "cliboard-warm-" + hex.EncodeToString(sum[:])[:16]
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Find looks up an existing warm container for fp by label match,
// independent of its name (spec §4.4 find). A not-found result is
// ("", false, nil).
func (m *Manager) Find(ctx context.Context, fp dockerdriver.MountFingerprint) (string, bool, error) {
	labels := fp.Labels()
	labels[dockerdriver.LabelWarm] = "true"
	id, info, err := m.client.ContainerByLabels(ctx, labels)
	if err != nil {
		return "", false, err
	}
	if id == "" || info == nil || info.State == nil || !info.State.Running {
		return "", false, nil
	}
	return id, true, nil
}

// Ensure returns an existing warm container for fp, creating and
// starting one if none exists (spec §4.4 ensure).
func (m *Manager) Ensure(ctx context.Context, fp dockerdriver.MountFingerprint) (string, error) {
	if id, ok, err := m.Find(ctx, fp); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	name := Name(fp)
	spec := dockerdriver.BuildWarmSpec(name, fp, m.image)
	id, stream, err := m.client.CreateFresh(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("create warm container: %w", err)
	}
	// Warm containers are execed into later (ExecInWarm); the attach
	// opened by CreateFresh has no reader and must be closed here.
	if stream != nil {
		_ = stream.Close()
	}
	return id, nil
}

// List returns every warm container currently known to the daemon,
// across all fingerprints, for the /warm listing endpoint and the bulk
// teardown endpoints' includeWarm sweep.
func (m *Manager) List(ctx context.Context) ([]types.Container, error) {
	return m.client.ListByLabel(ctx, true, map[string]string{dockerdriver.LabelWarm: "true"})
}

// Destroy force-stops and removes a warm container, used by the
// DELETE /warm/:id endpoint and the bulk teardown endpoints.
func (m *Manager) Destroy(ctx context.Context, containerID string) error {
	_ = m.client.KillContainer(ctx, containerID, "KILL")
	return m.client.RemoveContainer(ctx, containerID, true)
}

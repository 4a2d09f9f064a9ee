package dockerdriver

import (
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/mount"
)

// BuildRunMounts renders the bind-mount set spec §4.3 requires: the
// workspace bound rw at /workspace and the credentials pocket bound rw
// at /home/agent/.creds.
//
// Grounded on the teacher's container_core.go BuildContainerCoreMounts:
// the same "clean source, clean target, append if non-empty" shape,
// narrowed from that function's three-way workspace/mirror/host-si mount
// plan to this spec's two-bind model. The read-only-root tmpfs /tmp
// (spec §4.3) is a simple size+option string, not a bind source/target
// pair, so it is built separately by TmpfsOptions below and attached to
// HostConfig.Tmpfs rather than HostConfig.Mounts.
func BuildRunMounts(fp MountFingerprint) []mount.Mount {
	// Normalize cleans an empty path to ".", so emptiness is judged on
	// the caller's values before normalizing.
	hasWorkspace := strings.TrimSpace(fp.WorkspacePath) != ""
	hasCreds := strings.TrimSpace(fp.CredsPath) != ""
	fp = fp.Normalize()
	mounts := make([]mount.Mount, 0, 2)
	if hasWorkspace {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: fp.WorkspacePath,
			Target: "/workspace",
		})
	}
	if hasCreds {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: fp.CredsPath,
			Target: "/home/agent/.creds",
		})
	}
	return mounts
}

// TmpfsOptions returns the HostConfig.Tmpfs entry for /tmp used when a
// fingerprint requests a read-only root filesystem (spec §4.3: 256MiB,
// noexec, nosuid).
func TmpfsOptions() map[string]string {
	return map[string]string{
		"/tmp": "size=268435456,noexec,nosuid",
	}
}

// TranscriptsDir is the fixed in-workspace location for Run transcripts
// (spec §3 Run.transcriptPath invariant).
func TranscriptsDir(workspaceHost string) string {
	return filepath.Join(filepath.Clean(strings.TrimSpace(workspaceHost)), ".runs")
}

package dockerdriver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

// ContainerSpec bundles the three Docker create-call inputs, mirroring
// the teacher's dyad.go ContainerSpec (Name/Config/HostConfig/NetworkConfig),
// generalized from a hard-coded actor/critic pair to a single spec shared
// by fresh-run and warm-pool containers.
type ContainerSpec struct {
	Name          string
	Config        *container.Config
	HostConfig    *container.HostConfig
	NetworkConfig *network.NetworkingConfig
}

// BuildFreshSpec renders the ContainerSpec for a brand-new Run container
// (spec §4.3 createFresh / §4.7 step 4). The image's default entrypoint
// is used unless rs.Argv is set, in which case Argv is appended as Cmd.
func BuildFreshSpec(containerName string, rs RunSpec, runID string) ContainerSpec {
	fp := rs.Fingerprint.Normalize()
	labels := fp.Labels()
	labels[LabelRunID] = runID

	cfg := &container.Config{
		Image:        rs.Image,
		WorkingDir:   "/workspace",
		Env:          buildEnv(fp.Engine, rs.ExtraEnv),
		Labels:       labels,
		Tty:          true,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}
	if len(rs.Argv) > 0 {
		cfg.Cmd = append([]string(nil), rs.Argv...)
	}
	if fp.UIDGid != "" {
		cfg.User = fp.UIDGid
	}

	hostCfg := &container.HostConfig{
		Mounts:     BuildRunMounts(fp),
		AutoRemove: false, // the orchestrator removes explicitly so it can read final status first
	}
	if fp.ReadOnlyRoot {
		hostCfg.ReadonlyRootfs = true
		hostCfg.Tmpfs = TmpfsOptions()
	}

	return ContainerSpec{
		Name:       containerName,
		Config:     cfg,
		HostConfig: hostCfg,
	}
}

// BuildWarmSpec renders the ContainerSpec for a warm pool container: an
// indefinite foreground sleep keeps the (TTY-less) container alive so
// exec sessions can attach a real command later (spec §3 WarmContainer).
func BuildWarmSpec(containerName string, fp MountFingerprint, image string) ContainerSpec {
	fp = fp.Normalize()
	labels := fp.Labels()
	labels[LabelWarm] = "true"

	cfg := &container.Config{
		Image:      image,
		WorkingDir: "/workspace",
		Env:        buildEnv(fp.Engine, nil),
		Labels:     labels,
		Entrypoint: []string{"sleep"},
		Cmd:        []string{"infinity"},
	}
	if fp.UIDGid != "" {
		cfg.User = fp.UIDGid
	}

	hostCfg := &container.HostConfig{
		Mounts: BuildRunMounts(fp),
	}
	if fp.ReadOnlyRoot {
		hostCfg.ReadonlyRootfs = true
		hostCfg.Tmpfs = TmpfsOptions()
	}

	return ContainerSpec{
		Name:       containerName,
		Config:     cfg,
		HostConfig: hostCfg,
	}
}

func buildEnv(engine Engine, extra map[string]string) []string {
	env := []string{
		"ENGINE=" + string(engine),
		"TERM=xterm-256color",
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return env
}

package dockerdriver

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Client wraps the Docker Engine API client with the narrow verb set the
// Run Orchestrator and Warm Pool Manager need. It holds the module's only
// Docker Engine API client connection.
//
// Grounded on the teacher's agents/shared/docker/client.go: NewClient's
// FromEnv-then-colima-fallback probe is carried over unchanged since
// daemon discovery has nothing to do with the dyad/run distinction.
type Client struct {
	api *client.Client
}

// NewClient constructs a Client, preferring the environment-configured
// Docker host and falling back to an auto-detected colima socket when
// the default ping fails and no DOCKER_HOST was explicitly set.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	if err := pingClient(cli); err == nil {
		return &Client{api: cli}, nil
	} else if strings.TrimSpace(envDockerHost()) != "" {
		_ = cli.Close()
		return nil, err
	}
	_ = cli.Close()
	if host, ok := AutoDockerHost(); ok {
		alt, altErr := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
		if altErr != nil {
			return nil, err
		}
		if pingErr := pingClient(alt); pingErr == nil {
			return &Client{api: alt}, nil
		}
		_ = alt.Close()
	}
	return nil, err
}

func pingClient(cli *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}

// Ping reports whether the daemon is reachable, for the /health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// ContainerByName looks up a container by its exact name. A not-found
// result is (""  , nil, nil), not an error.
func (c *Client) ContainerByName(ctx context.Context, name string) (string, *types.ContainerJSON, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil, errors.New("container name required")
	}
	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return info.ID, &info, nil
}

// ContainerByLabels finds a running (preferred) or otherwise most-recent
// container matching all of labels. Label-based identity fully
// determines the result, per the MountFingerprint invariant (spec §4.4).
func (c *Client) ContainerByLabels(ctx context.Context, labels map[string]string) (string, *types.ContainerJSON, error) {
	args := filters.NewArgs()
	for key, val := range labels {
		if key == "" || val == "" {
			continue
		}
		args.Add("label", key+"="+val)
	}
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return "", nil, err
	}
	if len(list) == 0 {
		return "", nil, nil
	}
	selected := list[0]
	for _, item := range list {
		if item.State == "running" {
			selected = item
			break
		}
	}
	info, err := c.api.ContainerInspect(ctx, selected.ID)
	if err != nil {
		return "", nil, err
	}
	return info.ID, &info, nil
}

// ListByLabel lists containers (running and stopped when all=true)
// matching labels.
func (c *Client) ListByLabel(ctx context.Context, all bool, labels map[string]string) ([]types.Container, error) {
	args := filters.NewArgs()
	for key, val := range labels {
		if key == "" || val == "" {
			continue
		}
		args.Add("label", key+"="+val)
	}
	return c.api.ContainerList(ctx, container.ListOptions{All: all, Filters: args})
}

func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	return c.api.ContainerStart(ctx, containerID, container.StartOptions{})
}

func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	return c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force, RemoveVolumes: true})
}

func (c *Client) StopContainer(ctx context.Context, containerID string, grace time.Duration) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	seconds := int(grace.Seconds())
	return c.api.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds})
}

func (c *Client) KillContainer(ctx context.Context, containerID, signal string) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	if signal == "" {
		signal = "KILL"
	}
	return c.api.ContainerKill(ctx, containerID, signal)
}

// Wait blocks until the container exits (or is already stopped) and
// returns its exit code.
func (c *Client) Wait(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := c.api.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, err
	case status := <-statusCh:
		return status.StatusCode, nil
	}
}

func (c *Client) Inspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	return c.api.ContainerInspect(ctx, containerID)
}

// ImageEntrypoint resolves image's configured Entrypoint+Cmd, used by
// ExecInWarm to reproduce "start the image's entrypoint" (spec §4.3
// execInWarm) when the caller supplies no explicit argv — a Docker exec
// has no entrypoint of its own, so the driver must look the image's up.
func (c *Client) ImageEntrypoint(ctx context.Context, image string) ([]string, error) {
	info, _, err := c.api.ImageInspectWithRaw(ctx, image)
	if err != nil {
		return nil, err
	}
	if info.Config == nil {
		return nil, nil
	}
	cmd := append(append([]string(nil), info.Config.Entrypoint...), info.Config.Cmd...)
	return cmd, nil
}

func envDockerHost() string {
	return strings.TrimSpace(os.Getenv("DOCKER_HOST"))
}

// ExecOneShot runs argv inside containerID to completion without
// attaching a TTY, used for the orchestrator's best-effort in-container
// signal delivery (spec §4.7 kill/close warm-exec paths: "exec a
// best-effort signal-9 against the engine process names"). Only a
// failure to create or attach the exec is returned; the exit code of
// argv is not checked, so a nonzero exit is not reported.
func (c *Client) ExecOneShot(ctx context.Context, containerID string, argv []string) error {
	resp, err := c.api.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return err
	}
	hijack, err := c.api.ContainerExecAttach(ctx, resp.ID, types.ExecStartCheck{})
	if err != nil {
		return err
	}
	defer hijack.Close()
	_, _ = io.Copy(io.Discard, hijack.Reader)
	return nil
}

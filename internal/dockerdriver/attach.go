package dockerdriver

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
)

// TTYStream is a bidirectional byte channel over a container's pseudo-TTY,
// shared by the fresh-create and warm-exec attach paths (spec §4.3,
// §9 "TTY multiplexing"). It generalizes the teacher client.go's
// ExecWithTTY, which eagerly io.Copy'd into a caller-supplied io.Writer;
// here the orchestrator owns the read loop so it can fan bytes out to
// the transcript, listeners, and the artifact scanner concurrently.
type TTYStream struct {
	hijack    types.HijackedResponse
	resize    func(ctx context.Context, cols, rows uint) error
	isExec    bool
	inspect   func(ctx context.Context) (running bool, exitCode int, err error)
}

// Read satisfies io.Reader, yielding raw TTY output bytes.
func (s *TTYStream) Read(p []byte) (int, error) { return s.hijack.Reader.Read(p) }

// Write satisfies io.Writer, sending raw bytes to the container's stdin.
func (s *TTYStream) Write(p []byte) (int, error) { return s.hijack.Conn.Write(p) }

// Close tears down the hijacked connection. It does not stop or remove
// the underlying container/exec — that is Stop/Kill/Remove's job.
func (s *TTYStream) Close() error {
	s.hijack.Close()
	return nil
}

// CloseWrite half-closes the write side, signalling EOF on stdin without
// tearing down the read side. Orchestrator.Stop's warm-exec path does not
// call it: that path only writes Ctrl-C and "exit\n" to the stream.
func (s *TTYStream) CloseWrite() error {
	if cw, ok := s.hijack.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Resize routes to the exec handle for warm-exec or the container for
// fresh Runs (spec §4.3 resize).
func (s *TTYStream) Resize(ctx context.Context, cols, rows uint) error {
	if s.resize == nil {
		return nil
	}
	return s.resize(ctx, cols, rows)
}

var _ io.ReadWriteCloser = (*TTYStream)(nil)

// CreateFresh creates, starts, and attaches a brand-new container per
// spec.ContainerSpec, returning its id and an attached TTYStream.
func (c *Client) CreateFresh(ctx context.Context, spec ContainerSpec) (string, *TTYStream, error) {
	resp, err := c.api.ContainerCreate(ctx, spec.Config, spec.HostConfig, spec.NetworkConfig, nil, spec.Name)
	if err != nil {
		return "", nil, err
	}
	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", nil, err
	}
	hijack, err := c.api.ContainerAttach(ctx, resp.ID, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", nil, err
	}
	containerID := resp.ID
	stream := &TTYStream{
		hijack: hijack,
		resize: func(ctx context.Context, cols, rows uint) error {
			return c.api.ContainerResize(ctx, containerID, container.ResizeOptions{Width: cols, Height: rows})
		},
		inspect: func(ctx context.Context) (bool, int, error) {
			info, err := c.api.ContainerInspect(ctx, containerID)
			if err != nil {
				return false, 0, err
			}
			if info.State == nil {
				return false, 0, errors.New("container state unavailable")
			}
			return info.State.Running, info.State.ExitCode, nil
		},
	}
	return containerID, stream, nil
}

// ExecInWarm starts rs's argv as an exec session inside an already-running
// warm container, returning the exec id and an attached TTYStream
// (spec §4.3 execInWarm).
func (c *Client) ExecInWarm(ctx context.Context, warmContainerID string, rs RunSpec) (string, *TTYStream, error) {
	if strings.TrimSpace(warmContainerID) == "" {
		return "", nil, errors.New("warm container id required")
	}
	argv := rs.Argv
	if len(argv) == 0 {
		// spec §4.3: "start the image's entrypoint inside the warm
		// container" — an exec has no entrypoint of its own, so fall
		// back to whatever the image itself declares.
		entrypoint, err := c.ImageEntrypoint(ctx, rs.Image)
		if err != nil {
			return "", nil, err
		}
		if len(entrypoint) == 0 {
			return "", nil, errors.New("image declares no entrypoint or cmd for exec")
		}
		argv = entrypoint
	}
	execResp, err := c.api.ContainerExecCreate(ctx, warmContainerID, types.ExecConfig{
		Cmd:          argv,
		Env:          buildEnv(rs.Fingerprint.Engine, rs.ExtraEnv),
		WorkingDir:   "/workspace",
		Tty:          true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", nil, err
	}
	hijack, err := c.api.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{Tty: true})
	if err != nil {
		return "", nil, err
	}
	execID := execResp.ID
	stream := &TTYStream{
		hijack: hijack,
		isExec: true,
		resize: func(ctx context.Context, cols, rows uint) error {
			return c.api.ContainerExecResize(ctx, execID, container.ResizeOptions{Width: cols, Height: rows})
		},
		inspect: func(ctx context.Context) (bool, int, error) {
			info, err := c.api.ContainerExecInspect(ctx, execID)
			if err != nil {
				return false, 0, err
			}
			return info.Running, info.ExitCode, nil
		},
	}
	return execID, stream, nil
}

// StreamStatus blocks briefly to resolve whether the process behind
// stream has exited, returning its exit code when it has. Callers poll
// this after the TTYStream's Read loop returns io.EOF.
func (s *TTYStream) StreamStatus(ctx context.Context) (running bool, exitCode int, err error) {
	if s.inspect == nil {
		return false, 0, nil
	}
	return s.inspect(ctx)
}

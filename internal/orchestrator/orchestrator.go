// Package orchestrator implements the Run Orchestrator (spec §4.7): the
// core state machine that turns a start request into either a fresh
// container or a warm-exec, multiplexes its TTY stream to the
// transcript, listeners, and artifact scanner, and guarantees cleanup on
// every exit path.
//
// Grounded on the teacher's agents/shared/docker/dyad.go for the
// create-or-reuse decision shape and container_core.go for the
// attach/wait/teardown sequencing; generalized from a fixed actor/critic
// pair with no listener fan-out to an arbitrary number of concurrent
// Runs each with its own dynamic listener set, transcript, and artifact
// feed — none of which the teacher's dyad model needed.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Mgeezy9/CLIBoard/internal/apierr"
	"github.com/Mgeezy9/CLIBoard/internal/artifact"
	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
	"github.com/Mgeezy9/CLIBoard/internal/eventbus"
	"github.com/Mgeezy9/CLIBoard/internal/transcript"
	"github.com/Mgeezy9/CLIBoard/internal/warmpool"
)

// Mode distinguishes a Run whose container the Orchestrator owns
// outright from one execed into a shared warm container (spec §3 Run).
type Mode string

const (
	ModeFresh    Mode = "fresh"
	ModeWarmExec Mode = "warm-exec"
)

// Status is the closed set of Run lifecycle states (spec §4.7 state
// machine). Only "running" Runs exist in the registry (spec §3
// invariant).
type Status string

const (
	StatusRunning     Status = "running"
	StatusExited      Status = "exited"
	StatusStopped     Status = "stopped"
	StatusKilled      Status = "killed"
	StatusIdleStopped Status = "idle-stopped"
	StatusClosed      Status = "closed"
)

// killNames is the process-name set the warm-exec kill/close paths
// target inside the container (spec §4.7 kill: "engine process names").
var killNames = []string{"codex", "gemini", "opencode"}

// StartRequest is the Orchestrator's Start input (spec §4.7).
type StartRequest struct {
	Fingerprint dockerdriver.MountFingerprint
	ExtraEnv    map[string]string
	PreferWarm  bool
	Argv        []string
}

// StartResult is Start's success output.
type StartResult struct {
	RunID         string
	ContainerName string
	Warm          bool
}

// Summary is a snapshot row for the /runs listing (spec §4.7 list).
type Summary struct {
	RunID     string    `json:"runId"`
	Engine    string    `json:"engine"`
	Workspace string    `json:"workspace"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// Meta is the /runs/:id/meta response (spec §4.7 meta).
type Meta struct {
	Summary
	ContainerName string            `json:"containerName"`
	Mode          Mode              `json:"mode"`
	Mounts        map[string]string `json:"mounts"`
}

type listener struct {
	ch chan []byte
}

// run is the Orchestrator's internal record for one Run (spec §3 Run).
// Mutation happens with the run's mu held or via atomics on lastActivity,
// while registry membership changes with the Orchestrator's mu held,
// matching spec §5's "owned map with a single serialization point".
type run struct {
	id             string
	fingerprint    dockerdriver.MountFingerprint
	containerID    string // fresh: the run container; warm-exec: the warm container
	execID         string // set iff mode == ModeWarmExec
	containerName  string
	mode           Mode
	image          string
	startedAt      time.Time
	status         Status
	transcriptPath string
	stream         *dockerdriver.TTYStream
	tw             *transcript.Writer
	lastActivity   int64 // unix nano, atomic

	mu        sync.Mutex
	listeners map[uint64]*listener
	nextLID   uint64

	closedOnce sync.Once
	terminalCh chan struct{}
}

// Orchestrator owns the Run registry and coordinates the Container
// Driver, Warm Pool Manager, Transcript Writer, Artifact Scanner, and
// Event Bus for every active Run (spec §4.7, §5).
type Orchestrator struct {
	client  *dockerdriver.Client
	pool    *warmpool.Manager
	scanner *artifact.Scanner
	bus     *eventbus.Bus
	image   string
	logger  *log.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// New constructs an Orchestrator. image is the runner image for every
// fresh container and the image whose entrypoint warm-exec Runs start;
// StartRequest has no per-Run image override.
func New(client *dockerdriver.Client, pool *warmpool.Manager, scanner *artifact.Scanner, bus *eventbus.Bus, image string, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		client:  client,
		pool:    pool,
		scanner: scanner,
		bus:     bus,
		image:   image,
		logger:  logger,
		runs:    map[string]*run{},
	}
}

// newRunID generates a collision-free opaque id (spec §3 Run identity).
// Grounded on the teacher's agents/manager, whose indirect google/uuid
// dependency had no direct call site in the copied tree; promoted here
// to a direct dependency for the one place this module needs a random
// identifier.
func newRunID() string {
	return uuid.NewString()
}

// Start implements spec §4.7's sequence 1-6: transcript open, fingerprint
// build (by the caller, since Path Guard validation happens in the
// front-end before reaching here), warm-pool consult, container driver
// attach, registry insert, output pump launch.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	fp := req.Fingerprint.Normalize()
	runID := newRunID()

	transcriptPath := filepath.Join(dockerdriver.TranscriptsDir(fp.WorkspacePath), fmt.Sprintf("%s-%s.log", fp.Engine, timestampSafe()))
	tw, err := transcript.Open(transcriptPath)
	if err != nil {
		return StartResult{}, apierr.Wrap(apierr.KindRuntimeError, err)
	}

	image := o.image
	rs := dockerdriver.RunSpec{Fingerprint: fp, Image: image, ExtraEnv: req.ExtraEnv, Argv: req.Argv}

	preferWarm := req.PreferWarm
	var (
		containerID   string
		execID        string
		containerName string
		mode          Mode
		stream        *dockerdriver.TTYStream
	)

	if preferWarm {
		if warmID, ok, findErr := o.pool.Find(ctx, fp); findErr == nil && ok {
			execID, stream, err = o.client.ExecInWarm(ctx, warmID, rs)
			if err != nil {
				_ = tw.Close()
				return StartResult{}, apierr.Wrap(apierr.KindRuntimeError, err)
			}
			containerID = warmID
			containerName = warmpool.Name(fp)
			mode = ModeWarmExec
		}
	}

	if mode == "" {
		containerName = fmt.Sprintf("adz-%s-%s-%s", fp.Engine, timestampSafe(), runID[:8])
		spec := dockerdriver.BuildFreshSpec(containerName, rs, runID)
		containerID, stream, err = o.client.CreateFresh(ctx, spec)
		if err != nil {
			_ = tw.Close()
			return StartResult{}, apierr.Wrap(apierr.KindRuntimeError, err)
		}
		mode = ModeFresh
	}

	r := &run{
		id:             runID,
		fingerprint:    fp,
		containerID:    containerID,
		execID:         execID,
		containerName:  containerName,
		mode:           mode,
		image:          image,
		startedAt:      time.Now(),
		status:         StatusRunning,
		transcriptPath: transcriptPath,
		stream:         stream,
		tw:             tw,
		listeners:      map[uint64]*listener{},
		terminalCh:     make(chan struct{}),
	}
	atomic.StoreInt64(&r.lastActivity, time.Now().UnixNano())

	o.mu.Lock()
	o.runs[runID] = r
	o.mu.Unlock()

	o.bus.Publish(lifecycleEvent("run-started", r))
	go o.pump(r)

	return StartResult{RunID: runID, ContainerName: containerName, Warm: mode == ModeWarmExec}, nil
}

func timestampSafe() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

// pump is the per-Run output pump (spec §4.7 step 6-8): reads the attach
// stream until EOF, fanning each chunk to the transcript, listeners, and
// artifact scanner, then resolves the terminal status and tears down.
func (o *Orchestrator) pump(r *run) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.stream.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			atomic.StoreInt64(&r.lastActivity, time.Now().UnixNano())
			if _, werr := r.tw.Write(chunk); werr != nil {
				o.logger.Printf("run %s: transcript write failed: %v", r.id, werr)
			}
			r.broadcast(chunk)
			for _, ev := range o.scanner.Feed(r.id, string(r.fingerprint.Engine), r.fingerprint.WorkspacePath, chunk) {
				o.bus.Publish(ev)
			}
		}
		if err != nil {
			break
		}
	}
	for _, ev := range o.scanner.Flush(r.id, string(r.fingerprint.Engine), r.fingerprint.WorkspacePath) {
		o.bus.Publish(ev)
	}
	o.finishOnStreamEnd(r)
}

// finishOnStreamEnd implements spec §4.7 steps 7-8: resolve exit status,
// flush the transcript, emit the terminal marker, remove the Run.
func (o *Orchestrator) finishOnStreamEnd(r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := StatusExited

	if r.mode == ModeFresh {
		_, _ = o.client.Wait(ctx, r.containerID)
		_ = o.client.RemoveContainer(ctx, r.containerID, true)
	}

	r.broadcast([]byte(fmt.Sprintf("[[PROCESS EXITED]] status=%s\n", status)))
	o.terminate(r, status, "run-exited")
}

// broadcast fans chunk out to every current listener without blocking
// (spec §4.7 step 6, §4.8 "slow listeners never stall the pump").
func (r *run) broadcast(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		select {
		case l.ch <- chunk:
		default:
		}
	}
}

// terminate finalizes r exactly once: closes listener channels, marks
// the registry entry removed, and emits the terminal LifecycleEvent
// (spec §4.7 "terminal transitions are single-firing").
func (o *Orchestrator) terminate(r *run, status Status, eventName string) {
	r.closedOnce.Do(func() {
		r.mu.Lock()
		r.status = status
		for id, l := range r.listeners {
			close(l.ch)
			delete(r.listeners, id)
		}
		r.mu.Unlock()

		_ = r.tw.Close()
		o.scanner.Forget(r.id)

		o.mu.Lock()
		delete(o.runs, r.id)
		o.mu.Unlock()

		o.bus.Publish(lifecycleEvent(eventName, r))
		close(r.terminalCh)
	})
}

func lifecycleEvent(name string, r *run) map[string]any {
	return map[string]any{
		"type":      name,
		"runId":     r.id,
		"engine":    string(r.fingerprint.Engine),
		"workspace": r.fingerprint.WorkspacePath,
		"warm":      r.mode == ModeWarmExec,
		"timestamp": time.Now().UTC(),
	}
}

// Input writes bytes to r's attach stream (spec §4.7 input).
func (o *Orchestrator) Input(runID string, data []byte) error {
	r, ok := o.lookup(runID)
	if !ok {
		return apierr.New(apierr.KindNotFound, "run not found: "+runID)
	}
	atomic.StoreInt64(&r.lastActivity, time.Now().UnixNano())
	if _, err := r.stream.Write(data); err != nil {
		return apierr.Wrap(apierr.KindWriteFailed, err)
	}
	return nil
}

// Resize routes a terminal resize to the exec or container handle that
// owns the PTY (spec §4.7 resize: errors are cosmetic and swallowed).
func (o *Orchestrator) Resize(ctx context.Context, runID string, cols, rows uint) {
	r, ok := o.lookup(runID)
	if !ok {
		return
	}
	_ = r.stream.Resize(ctx, cols, rows)
}

// Listen attaches a new listener to runID, returning a transcript tail
// (up to maxTail bytes) followed by a live-chunk channel (spec §5
// "listeners that attach after Run start receive a tail ... then live
// chunks; duplicates inside the overlap are acceptable").
func (o *Orchestrator) Listen(runID string, maxTail int64) (tail []byte, ch <-chan []byte, remove func(), err error) {
	r, ok := o.lookup(runID)
	if !ok {
		return nil, nil, nil, apierr.New(apierr.KindNotFound, "run not found: "+runID)
	}
	tail, _ = transcript.Tail(r.transcriptPath, maxTail)

	r.mu.Lock()
	id := r.nextLID
	r.nextLID++
	l := &listener{ch: make(chan []byte, 256)}
	r.listeners[id] = l
	r.mu.Unlock()

	remove = func() {
		r.mu.Lock()
		if existing, ok := r.listeners[id]; ok {
			delete(r.listeners, id)
			close(existing.ch)
		}
		r.mu.Unlock()
	}
	return tail, l.ch, remove, nil
}

// Stop performs a graceful teardown (spec §4.7 stop). If runID is absent
// from the registry, it attempts the label-based fallback cleanup and
// reports whether it removed anything.
func (o *Orchestrator) Stop(ctx context.Context, runID string) (fallback bool, err error) {
	r, ok := o.lookup(runID)
	if !ok {
		return o.fallbackTeardown(ctx, runID, true)
	}

	if r.mode == ModeWarmExec {
		_, _ = r.stream.Write([]byte{0x03})
		_, _ = r.stream.Write([]byte("exit\n"))
	} else {
		_ = o.client.StopContainer(ctx, r.containerID, 2*time.Second)
		_ = o.client.RemoveContainer(ctx, r.containerID, true)
	}
	r.broadcast([]byte("[[PROCESS EXITED]] status=stopped\n"))
	o.terminate(r, StatusStopped, "run-stopped")
	return false, nil
}

// Kill performs an immediate teardown (spec §4.7 kill).
func (o *Orchestrator) Kill(ctx context.Context, runID string) (fallback bool, err error) {
	r, ok := o.lookup(runID)
	if !ok {
		return o.fallbackTeardown(ctx, runID, false)
	}

	if r.mode == ModeWarmExec {
		o.killProcesses(ctx, r.containerID, killNames)
	} else {
		_ = o.client.KillContainer(ctx, r.containerID, "KILL")
		_ = o.client.RemoveContainer(ctx, r.containerID, true)
	}
	r.broadcast([]byte("[[PROCESS EXITED]] status=killed\n"))
	o.terminate(r, StatusKilled, "run-killed")
	return false, nil
}

// Close performs an unconditional teardown used by UI shutdown (spec
// §4.7 close): like Kill but the attach stream is torn down first and a
// broader process match is used inside warm containers.
func (o *Orchestrator) Close(ctx context.Context, runID string) (fallback bool, err error) {
	r, ok := o.lookup(runID)
	if !ok {
		return o.fallbackTeardown(ctx, runID, false)
	}

	_ = r.stream.Close()
	if r.mode == ModeWarmExec {
		o.killProcesses(ctx, r.containerID, append(append([]string(nil), killNames...), "entrypoint"))
	} else {
		_ = o.client.KillContainer(ctx, r.containerID, "KILL")
		_ = o.client.RemoveContainer(ctx, r.containerID, true)
	}
	o.terminate(r, StatusClosed, "run-closed")
	return false, nil
}

func (o *Orchestrator) killProcesses(ctx context.Context, containerID string, names []string) {
	pattern := pkillPattern(names)
	if pattern == "" {
		return
	}
	_ = o.client.ExecOneShot(ctx, containerID, []string{"pkill", "-9", "-f", pattern})
}

// pkillPattern renders names as a pkill -f alternation pattern.
func pkillPattern(names []string) string {
	if len(names) == 0 {
		return ""
	}
	pattern := names[0]
	for _, n := range names[1:] {
		pattern += "|" + n
	}
	return pattern
}

// fallbackTeardown implements spec §4.7's "If the Run is absent from the
// registry but a container with matching runId label exists, perform the
// same teardown" and §7's {ok:true, fallback:true} contract.
func (o *Orchestrator) fallbackTeardown(ctx context.Context, runID string, graceful bool) (bool, error) {
	id, _, err := o.client.ContainerByLabels(ctx, map[string]string{dockerdriver.LabelRunID: runID})
	if err != nil {
		return false, apierr.Wrap(apierr.KindRuntimeError, err)
	}
	if id == "" {
		return false, apierr.New(apierr.KindNotFound, "run not found: "+runID)
	}
	if graceful {
		_ = o.client.StopContainer(ctx, id, 2*time.Second)
	} else {
		_ = o.client.KillContainer(ctx, id, "KILL")
	}
	_ = o.client.RemoveContainer(ctx, id, true)
	return true, nil
}

// List returns a snapshot of every running Run (spec §4.7 list). Status
// for fresh Runs is re-resolved from the driver; warm-exec keeps its
// last stored value.
func (o *Orchestrator) List(ctx context.Context) []Summary {
	o.mu.Lock()
	snapshot := make([]*run, 0, len(o.runs))
	for _, r := range o.runs {
		snapshot = append(snapshot, r)
	}
	o.mu.Unlock()

	out := make([]Summary, 0, len(snapshot))
	for _, r := range snapshot {
		status := r.status
		if r.mode == ModeFresh {
			if info, err := o.client.Inspect(ctx, r.containerID); err == nil && info.State != nil && !info.State.Running {
				status = StatusExited
			}
		}
		out = append(out, Summary{
			RunID:     r.id,
			Engine:    string(r.fingerprint.Engine),
			Workspace: r.fingerprint.WorkspacePath,
			Status:    status,
			StartedAt: r.startedAt,
		})
	}
	return out
}

// Meta returns static descriptors plus mounts for runID (spec §4.7 meta).
func (o *Orchestrator) Meta(ctx context.Context, runID string) (Meta, error) {
	r, ok := o.lookup(runID)
	if !ok {
		return Meta{}, apierr.New(apierr.KindNotFound, "run not found: "+runID)
	}
	mounts := map[string]string{
		"/workspace":        r.fingerprint.WorkspacePath,
		"/home/agent/.creds": r.fingerprint.CredsPath,
	}
	return Meta{
		Summary: Summary{
			RunID:     r.id,
			Engine:    string(r.fingerprint.Engine),
			Workspace: r.fingerprint.WorkspacePath,
			Status:    r.status,
			StartedAt: r.startedAt,
		},
		ContainerName: r.containerName,
		Mode:          r.mode,
		Mounts:        mounts,
	}, nil
}

// ArtifactFiles returns the newest file-kind artifacts the Artifact
// Scanner has observed for runID (spec SPEC_FULL §5 /runs/:id/artifacts
// ring buffer), for as long as runID remains in the registry.
func (o *Orchestrator) ArtifactFiles(runID string) ([]string, error) {
	if _, ok := o.lookup(runID); !ok {
		return nil, apierr.New(apierr.KindNotFound, "run not found: "+runID)
	}
	return o.scanner.RecentFiles(runID), nil
}

// IdleSeconds reports how long runID has gone without activity, for the
// Idle Reaper (spec §4.9).
func (o *Orchestrator) IdleSeconds(runID string) (float64, bool) {
	r, ok := o.lookup(runID)
	if !ok {
		return 0, false
	}
	last := time.Unix(0, atomic.LoadInt64(&r.lastActivity))
	return time.Since(last).Seconds(), true
}

// RunningIDs returns every Run id currently in the registry, for the
// Idle Reaper's sweep (spec §4.9).
func (o *Orchestrator) RunningIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	return ids
}

// StopIdle performs the idle-timeout teardown path (spec §4.9): writes
// the auto-stop marker, then runs the same sequence as Stop but emits
// run-idle-stopped in place of run-stopped.
func (o *Orchestrator) StopIdle(ctx context.Context, runID string) error {
	r, ok := o.lookup(runID)
	if !ok {
		return apierr.New(apierr.KindNotFound, "run not found: "+runID)
	}
	marker := []byte("[[AUTO-STOP]] idle timeout exceeded\n")
	_, _ = r.tw.Write(marker)
	r.broadcast(marker)

	if r.mode == ModeWarmExec {
		_, _ = r.stream.Write([]byte{0x03})
		_, _ = r.stream.Write([]byte("exit\n"))
	} else {
		_ = o.client.StopContainer(ctx, r.containerID, 2*time.Second)
		_ = o.client.RemoveContainer(ctx, r.containerID, true)
	}
	o.terminate(r, StatusIdleStopped, "run-idle-stopped")
	return nil
}

func (o *Orchestrator) lookup(runID string) (*run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[runID]
	return r, ok
}

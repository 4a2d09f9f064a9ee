// Package reaper implements the Idle Reaper (spec §4.9): a periodic
// sweep that stops Runs which have produced no activity for longer than
// a configured timeout.
//
// No package in the teacher repo runs a ticker-driven sweep over a
// registry of live sessions (its dyad/container model has no per-Run
// idle concept), so Reaper is written fresh, in the same
// time.Ticker-plus-context-cancellation idiom the teacher's other
// long-running loops use for graceful shutdown.
package reaper

import (
	"context"
	"log"
	"time"
)

const sweepInterval = 30 * time.Second

// Orchestrator is the subset of *orchestrator.Orchestrator the Reaper
// needs, kept as an interface so this package doesn't import
// orchestrator and so tests can supply a fake registry.
type Orchestrator interface {
	RunningIDs() []string
	IdleSeconds(runID string) (float64, bool)
	StopIdle(ctx context.Context, runID string) error
}

// Reaper periodically stops Runs idle for at least timeoutSec seconds.
// timeoutSec == 0 disables the sweep entirely (spec §5 "IDLE_TIMEOUT_SEC
// = 0 disables the reaper globally").
type Reaper struct {
	orch       Orchestrator
	timeoutSec int
	logger     *log.Logger
}

// New constructs a Reaper. logger may be nil (defaults to log.Default).
func New(orch Orchestrator, timeoutSec int, logger *log.Logger) *Reaper {
	if logger == nil {
		logger = log.Default()
	}
	return &Reaper{orch: orch, timeoutSec: timeoutSec, logger: logger}
}

// Run blocks, sweeping every 30s until ctx is cancelled. A disabled
// Reaper (timeoutSec == 0) returns immediately without starting a
// ticker.
func (r *Reaper) Run(ctx context.Context) {
	if r.timeoutSec <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	for _, runID := range r.orch.RunningIDs() {
		idle, ok := r.orch.IdleSeconds(runID)
		if !ok || idle < float64(r.timeoutSec) {
			continue
		}
		if err := r.orch.StopIdle(ctx, runID); err != nil {
			r.logger.Printf("reaper: stop idle run %s: %v", runID, err)
		}
	}
}

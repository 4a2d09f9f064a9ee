package reaper

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeOrchestrator struct {
	mu      sync.Mutex
	idle    map[string]float64
	stopped []string
}

func (f *fakeOrchestrator) RunningIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.idle))
	for id := range f.idle {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeOrchestrator) IdleSeconds(runID string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.idle[runID]
	return v, ok
}

func (f *fakeOrchestrator) StopIdle(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, runID)
	delete(f.idle, runID)
	return nil
}

func TestSweepStopsOnlyRunsPastTimeout(t *testing.T) {
	fake := &fakeOrchestrator{idle: map[string]float64{
		"stale": 120,
		"fresh": 5,
	}}
	r := New(fake, 60, nil)
	r.sweep(context.Background())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.stopped) != 1 || fake.stopped[0] != "stale" {
		t.Fatalf("expected only the stale run stopped, got %v", fake.stopped)
	}
	if _, stillIdle := fake.idle["fresh"]; !stillIdle {
		t.Fatalf("expected fresh run to remain")
	}
}

func TestRunDoesNothingWhenTimeoutIsZero(t *testing.T) {
	fake := &fakeOrchestrator{idle: map[string]float64{"a": 999}}
	r := New(fake, 0, nil)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected disabled reaper's Run to return immediately")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.stopped) != 0 {
		t.Fatalf("expected no stops when disabled, got %v", fake.stopped)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	fake := &fakeOrchestrator{idle: map[string]float64{}}
	r := New(fake, 30, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}

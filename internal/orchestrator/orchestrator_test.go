package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
)

func TestNewRunIDIsNonEmptyAndUnique(t *testing.T) {
	a := newRunID()
	b := newRunID()
	if a == "" || b == "" {
		t.Fatalf("expected non-empty run ids, got %q %q", a, b)
	}
	if a == b {
		t.Fatalf("expected distinct run ids across calls")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("expected a valid uuid, got %q: %v", a, err)
	}
}

func TestTimestampSafeHasNoColonsOrSpaces(t *testing.T) {
	ts := timestampSafe()
	for _, r := range ts {
		if r == ':' || r == ' ' {
			t.Fatalf("expected filename-safe timestamp, got %q", ts)
		}
	}
	if _, err := time.Parse("20060102T150405Z", ts); err != nil {
		t.Fatalf("expected parseable timestamp, got %q: %v", ts, err)
	}
}

func TestPkillPatternJoinsWithAlternation(t *testing.T) {
	got := pkillPattern([]string{"codex", "gemini", "opencode"})
	want := "codex|gemini|opencode"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPkillPatternEmptyForNoNames(t *testing.T) {
	if got := pkillPattern(nil); got != "" {
		t.Fatalf("expected empty pattern for no names, got %q", got)
	}
}

func TestLifecycleEventCarriesFingerprintFields(t *testing.T) {
	r := &run{
		id:          "run-1",
		fingerprint: dockerdriver.MountFingerprint{Engine: dockerdriver.EngineCodex, WorkspacePath: "/tmp/ws"},
		mode:        ModeWarmExec,
	}
	ev := lifecycleEvent("run-started", r)
	if ev["runId"] != "run-1" || ev["engine"] != "codex" || ev["workspace"] != "/tmp/ws" || ev["warm"] != true {
		t.Fatalf("unexpected lifecycle event: %+v", ev)
	}
}

func TestRunBroadcastDeliversToBufferedListenerWithoutBlocking(t *testing.T) {
	r := &run{listeners: map[uint64]*listener{}}
	l1 := &listener{ch: make(chan []byte, 1)}
	l2 := &listener{ch: make(chan []byte, 0)} // unbuffered: must not block broadcast
	r.listeners[0] = l1
	r.listeners[1] = l2

	r.broadcast([]byte("hello"))

	select {
	case got := <-l1.ch:
		if string(got) != "hello" {
			t.Fatalf("unexpected chunk: %q", got)
		}
	default:
		t.Fatal("expected buffered listener to receive chunk")
	}
}

func TestKillNamesIsTheClosedEngineSet(t *testing.T) {
	want := map[string]bool{"codex": true, "gemini": true, "opencode": true}
	if len(killNames) != len(want) {
		t.Fatalf("expected %d kill names, got %d", len(want), len(killNames))
	}
	for _, n := range killNames {
		if !want[n] {
			t.Fatalf("unexpected kill name %q", n)
		}
	}
}

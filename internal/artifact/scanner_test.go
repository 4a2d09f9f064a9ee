package artifact

import "testing"

func TestFeedClassifiesURL(t *testing.T) {
	s := New()
	events := s.Feed("run-1", "codex", "/workspace", []byte("see https://example.com/docs for details\n"))
	if len(events) != 1 || events[0].Kind != KindURL || events[0].Value != "https://example.com/docs" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFeedClassifiesPRInsteadOfURL(t *testing.T) {
	s := New()
	events := s.Feed("run-1", "codex", "/workspace", []byte("opened https://github.com/acme/widgets/pull/42\n"))
	if len(events) != 1 || events[0].Kind != KindPR {
		t.Fatalf("expected single PR event, got %+v", events)
	}
}

func TestFeedClassifiesFilePath(t *testing.T) {
	s := New()
	events := s.Feed("run-1", "codex", "/workspace", []byte("wrote /workspace/src/main.go\n"))
	if len(events) != 1 || events[0].Kind != KindFile || events[0].Value != "/workspace/src/main.go" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFeedClassifiesAuthWarning(t *testing.T) {
	s := New()
	events := s.Feed("run-1", "codex", "/workspace", []byte("Error: Unauthorized (401)\n"))
	var kinds []Kind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	found := false
	for _, k := range kinds {
		if k == KindAuthWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected authWarning event, got %+v", events)
	}
}

func TestFeedBuffersPartialLineAcrossCalls(t *testing.T) {
	s := New()
	if events := s.Feed("run-1", "codex", "/workspace", []byte("see https://exa")); len(events) != 0 {
		t.Fatalf("expected no events for incomplete line, got %+v", events)
	}
	events := s.Feed("run-1", "codex", "/workspace", []byte("mple.com/x\n"))
	if len(events) != 1 || events[0].Value != "https://example.com/x" {
		t.Fatalf("expected reassembled url across chunk boundary, got %+v", events)
	}
}

func TestFeedIsolatesResidualsByRunID(t *testing.T) {
	s := New()
	s.Feed("run-a", "codex", "/workspace", []byte("https://a.test/"))
	events := s.Feed("run-b", "codex", "/workspace", []byte("https://b.test/x\n"))
	if len(events) != 1 || events[0].Value != "https://b.test/x" {
		t.Fatalf("run-b should be unaffected by run-a's residual, got %+v", events)
	}
}

func TestFlushClassifiesTrailingPartialLine(t *testing.T) {
	s := New()
	s.Feed("run-1", "codex", "/workspace", []byte("done: /workspace/out.txt"))
	events := s.Flush("run-1", "codex", "/workspace")
	if len(events) != 1 || events[0].Kind != KindFile {
		t.Fatalf("expected flush to classify trailing partial line, got %+v", events)
	}
	if again := s.Flush("run-1", "codex", "/workspace"); len(again) != 0 {
		t.Fatalf("expected residual cleared after flush, got %+v", again)
	}
}

func TestForgetDropsResidualWithoutEmitting(t *testing.T) {
	s := New()
	s.Feed("run-1", "codex", "/workspace", []byte("https://example.com/dangling"))
	s.Forget("run-1")
	if events := s.Flush("run-1", "codex", "/workspace"); len(events) != 0 {
		t.Fatalf("expected no events after Forget, got %+v", events)
	}
}

func TestStripANSIRemovesCSIAndOSCSequences(t *testing.T) {
	in := "\x1b[31mred\x1b[0m text \x1b]0;title\x07done"
	got := stripANSI(in)
	if got != "red text done" {
		t.Fatalf("unexpected stripped output: %q", got)
	}
}

func TestClassifyLineStripsANSIBeforeMatching(t *testing.T) {
	s := New()
	line := "\x1b[32msee https://example.com/ok\x1b[0m\n"
	events := s.Feed("run-1", "codex", "/workspace", []byte(line))
	if len(events) != 1 || events[0].Value != "https://example.com/ok" {
		t.Fatalf("expected ANSI-stripped url match, got %+v", events)
	}
}

func TestBlankLineProducesNoEvents(t *testing.T) {
	s := New()
	events := s.Feed("run-1", "codex", "/workspace", []byte("   \n\n"))
	if len(events) != 0 {
		t.Fatalf("expected no events for blank lines, got %+v", events)
	}
}

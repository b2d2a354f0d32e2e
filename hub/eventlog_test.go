package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventLogAppendKeepsOrder(t *testing.T) {
	l := newEventLog(10 * time.Minute)

	l.append("a.app1.1", time.UnixMilli(100), json.RawMessage(`1`))
	l.append("b.app1.1", time.UnixMilli(200), json.RawMessage(`2`))
	l.append("c.app1.1", time.UnixMilli(300), json.RawMessage(`3`))

	got := l.backlogSince(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp < got[i-1].Timestamp {
			t.Fatalf("events out of order at %d: %d < %d", i, got[i].Timestamp, got[i-1].Timestamp)
		}
	}
}

func TestEventLogBacklogSinceIsStrict(t *testing.T) {
	l := newEventLog(10 * time.Minute)
	l.append("a.app1.1", time.UnixMilli(100), nil)
	l.append("b.app1.1", time.UnixMilli(200), nil)

	got := l.backlogSince(100)
	if len(got) != 1 || got[0].Timestamp != 200 {
		t.Fatalf("expected only the t=200 event, got %v", got)
	}
	if got := l.backlogSince(200); len(got) != 0 {
		t.Fatalf("expected empty backlog, got %v", got)
	}
}

func TestEventLogPruneFrontTruncation(t *testing.T) {
	retention := 10 * time.Minute
	l := newEventLog(retention)
	base := time.UnixMilli(1_000_000)

	l.append("a.app1.1", base, nil)
	l.append("b.app1.1", base.Add(time.Second), nil)
	l.append("c.app1.1", base.Add(2*time.Second), nil)

	// At exactly base+retention the first entry is still within the window.
	l.prune(base.Add(retention))
	if l.len() != 3 {
		t.Fatalf("prune removed an in-window event: %d left", l.len())
	}

	l.prune(base.Add(retention + time.Millisecond))
	if l.len() != 2 {
		t.Fatalf("expected 2 events after prune, got %d", l.len())
	}
	if got := l.backlogSince(0); got[0].Topic != "b.app1.1" {
		t.Fatalf("wrong event pruned, front is %q", got[0].Topic)
	}

	l.prune(base.Add(time.Hour))
	if l.len() != 0 {
		t.Fatalf("expected empty log, got %d", l.len())
	}
}

func TestEventLogPruneReleasesPayloads(t *testing.T) {
	retention := 10 * time.Minute
	l := newEventLog(retention)
	base := time.UnixMilli(1_000_000)

	l.append("a.app1.1", base, json.RawMessage(`"old"`))
	l.append("b.app1.1", base.Add(retention+time.Second), json.RawMessage(`"new"`))

	l.prune(base.Add(retention + time.Second))
	if l.len() != 1 {
		t.Fatalf("expected 1 event after prune, got %d", l.len())
	}

	// Pruning copies survivors down and clears the vacated tail, so the old
	// payload is gone from the backing array rather than merely hidden by
	// the slice bounds.
	backing := l.events[:cap(l.events)]
	for i := l.len(); i < len(backing); i++ {
		if backing[i].Data != nil || backing[i].Topic != "" {
			t.Fatalf("pruned entry still pinned at %d: %+v", i, backing[i])
		}
	}

	l.append("c.app1.1", base.Add(retention+2*time.Second), json.RawMessage(`"next"`))
	got := l.backlogSince(0)
	if len(got) != 2 || got[0].Topic != "b.app1.1" || got[1].Topic != "c.app1.1" {
		t.Fatalf("unexpected backlog after prune and append: %v", got)
	}
}

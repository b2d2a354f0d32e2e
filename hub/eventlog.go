package hub

import (
	"encoding/json"
	"slices"
	"sort"
	"time"
)

// Event is a published, immutable broker entry. Topic is a dot-delimited
// string like "instantmessage.<app>.<user>"; Data is an opaque JSON value.
type Event struct {
	Topic     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// eventLog is the append-only, front-truncated event store. Entries are kept
// sorted by timestamp ascending; append relies on the process clock being
// non-decreasing, which is a documented constraint rather than an enforced
// invariant. Not safe for concurrent use; the hub serializes all access.
type eventLog struct {
	retention time.Duration
	events    []Event
}

func newEventLog(retention time.Duration) *eventLog {
	return &eventLog{retention: retention}
}

// append stamps and stores a new entry at the tail.
func (l *eventLog) append(topic string, now time.Time, data json.RawMessage) Event {
	ev := Event{Topic: topic, Timestamp: now.UnixMilli(), Data: data}
	l.events = append(l.events, ev)
	return ev
}

// prune drops the contiguous front run of entries older than the retention
// window. Cost is proportional to the number pruned: sortedness means the
// first in-window entry ends the scan.
func (l *eventLog) prune(now time.Time) {
	cutoff := now.Add(-l.retention).UnixMilli()
	i := 0
	for i < len(l.events) && l.events[i].Timestamp < cutoff {
		i++
	}
	if i > 0 {
		// Copy down and zero the vacated tail so pruned payloads do not
		// stay reachable through the backing array.
		l.events = slices.Delete(l.events, 0, i)
	}
}

// backlogSince returns the entries with timestamp strictly greater than
// since, ascending. The returned slice aliases the log; callers copy what
// they keep.
func (l *eventLog) backlogSince(since int64) []Event {
	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp > since
	})
	return l.events[i:]
}

func (l *eventLog) len() int { return len(l.events) }

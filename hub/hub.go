// Package hub implements the core event-routing engine: the expiring event
// log, the registry of parked long-poll sessions, and the matcher that
// resolves sessions as events are published.
//
// The event log and the pending registry form one consistency domain guarded
// by a single mutex: a publish's match scan observes a stable snapshot of
// parked sessions, and a subscribing caller either sees a backlog entry or is
// registered in time to be matched, never both and never neither. The
// critical section performs no network calls: the online mark inside it only
// manages tracker timer state, and offline marks are deferred until the lock
// is released.
//
// Topic matching is a plain string-prefix test, so the filter
// "instantmessage.app1" also matches "instantmessage.app12345". Access
// control upstream constrains which filters can be requested; the matcher
// itself does not interpret topic segments.
package hub

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/notifd/notifd/internal/metrics"
)

const (
	defaultRetention   = 10 * time.Minute
	defaultPollTimeout = 25 * time.Second
)

// Presence receives connection-lifecycle notifications. MarkOnline fires when
// a session parks; MarkOffline fires on every teardown path (match, timeout,
// disconnect), uniformly treating "this long poll just ended" the same way.
type Presence interface {
	MarkOnline(token string)
	MarkOffline(token string)
}

// Hub owns the event log and the pending registry.
type Hub struct {
	retention   time.Duration
	pollTimeout time.Duration
	now         func() time.Time
	presence    Presence
	log         *slog.Logger

	mu      sync.Mutex
	events  *eventLog
	pending []*Session
}

// Option configures a Hub.
type Option func(*Hub)

// WithRetention sets the event retention window.
func WithRetention(d time.Duration) Option {
	return func(h *Hub) { h.retention = d }
}

// WithPollTimeout sets the standard long-poll park duration.
func WithPollTimeout(d time.Duration) Option {
	return func(h *Hub) { h.pollTimeout = d }
}

// WithPresence installs the presence sink for connection lifecycle events.
func WithPresence(p Presence) Option {
	return func(h *Hub) { h.presence = p }
}

// WithLogger sets the slog logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// New builds a Hub with an empty log and registry.
func New(opts ...Option) *Hub {
	h := &Hub{
		retention:   defaultRetention,
		pollTimeout: defaultPollTimeout,
		now:         time.Now,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.events = newEventLog(h.retention)
	return h
}

// Publish appends an event, prunes expired entries, and resolves every parked
// session whose filter set matches the new topic. One event may resolve many
// sessions in the same pass; each resolved session receives exactly this one
// event. Always succeeds.
func (h *Hub) Publish(topic string, data json.RawMessage) Event {
	h.mu.Lock()
	now := h.now()
	ev := h.events.append(topic, now, data)
	h.events.prune(now)
	metrics.EventsLogged.Set(float64(h.events.len()))

	var resolved []*Session
	keep := h.pending[:0]
	for _, s := range h.pending {
		if topicMatches(ev.Topic, s.Topics) && s.done.CompareAndSwap(false, true) {
			s.timer.Stop()
			resolved = append(resolved, s)
			continue
		}
		keep = append(keep, s)
	}
	h.pending = keep
	h.mu.Unlock()

	for _, s := range resolved {
		metrics.SessionsPending.Dec()
		metrics.Deliveries.WithLabelValues("match").Inc()
		s.ch <- Result{Events: []Event{ev}, Timestamp: ev.Timestamp}
		if h.presence != nil {
			h.presence.MarkOffline(s.Token)
		}
	}
	if len(resolved) > 0 {
		h.log.Debug("event matched parked sessions",
			slog.String("topic", ev.Topic),
			slog.Int("sessions", len(resolved)))
	}
	return ev
}

// Subscribe answers a consumer call. If the backlog already holds matching
// events newer than the cursor they are returned and no session is created.
// Otherwise a session is parked with a timeout (zero when NoWait is set, so
// the empty answer arrives on the next timer tick) and the presence sink is
// notified. The backlog check and the registration happen in one critical
// section.
func (h *Hub) Subscribe(req SubscribeRequest) ([]Event, *Session) {
	h.mu.Lock()
	now := h.now()
	h.events.prune(now)
	metrics.EventsLogged.Set(float64(h.events.len()))

	var immediate []Event
	for _, ev := range h.events.backlogSince(req.Since) {
		if topicMatches(ev.Topic, req.Topics) {
			immediate = append(immediate, ev)
		}
	}
	if len(immediate) > 0 {
		h.mu.Unlock()
		metrics.Deliveries.WithLabelValues("immediate").Inc()
		return immediate, nil
	}

	s := newSession(req, now)
	if h.presence != nil {
		// Marked before the timer is armed so a zero-timeout park can never
		// issue its offline mark first. MarkOnline only adjusts timer state
		// and runs any external call on its own goroutine, so it is safe
		// inside the critical section.
		h.presence.MarkOnline(req.Token)
	}
	timeout := h.pollTimeout
	if req.NoWait {
		timeout = 0
	}
	s.timer = time.AfterFunc(timeout, func() { h.expire(s) })
	h.pending = append(h.pending, s)
	h.mu.Unlock()

	metrics.SessionsPending.Inc()
	return nil, s
}

// expire is the timer path: the session answers with an empty result stamped
// at the current time. A no-op if the match or disconnect path won first.
func (h *Hub) expire(s *Session) {
	h.mu.Lock()
	if !s.done.CompareAndSwap(false, true) {
		h.mu.Unlock()
		return
	}
	h.removeLocked(s)
	now := h.now().UnixMilli()
	h.mu.Unlock()

	metrics.SessionsPending.Dec()
	metrics.Deliveries.WithLabelValues("timeout").Inc()
	s.ch <- Result{Timestamp: now}
	if h.presence != nil {
		h.presence.MarkOffline(s.Token)
	}
}

// Cancel is the disconnect path: the session is dropped without a result.
// Idempotent against the other two paths; whichever of the three fires first
// performs the side effects and the rest are silent no-ops.
func (h *Hub) Cancel(s *Session) {
	h.mu.Lock()
	if !s.done.CompareAndSwap(false, true) {
		h.mu.Unlock()
		return
	}
	s.timer.Stop()
	h.removeLocked(s)
	h.mu.Unlock()

	metrics.SessionsPending.Dec()
	metrics.Deliveries.WithLabelValues("closed").Inc()
	if h.presence != nil {
		h.presence.MarkOffline(s.Token)
	}
}

func (h *Hub) removeLocked(s *Session) {
	for i, p := range h.pending {
		if p == s {
			h.pending = append(h.pending[:i], h.pending[i+1:]...)
			return
		}
	}
}

// HasPendingToken reports whether any parked session references token. The
// presence tracker consults this as a debounce timer fires.
func (h *Hub) HasPendingToken(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.pending {
		if s.Token == token {
			return true
		}
	}
	return false
}

// Stats reports registry and log sizes for the stat endpoint.
type Stats struct {
	Pending int
	Events  int
}

// Stats returns current counts.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Pending: len(h.pending), Events: h.events.len()}
}

// PendingTokens returns the tokens of currently parked sessions, in
// registration order.
func (h *Hub) PendingTokens() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	tokens := make([]string, len(h.pending))
	for i, s := range h.pending {
		tokens[i] = s.Token
	}
	return tokens
}

// topicMatches reports whether topic starts with any of the filters.
func topicMatches(topic string, filters []string) bool {
	for _, f := range filters {
		if strings.HasPrefix(topic, f) {
			return true
		}
	}
	return false
}

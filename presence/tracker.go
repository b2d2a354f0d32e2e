// Package presence tracks coarse per-user online/offline state as a side
// effect of long-poll connection lifecycle. Long-poll sessions are inherently
// short-lived and reconnect immediately, so the offline transition is
// debounced: a disconnect arms a short timer, and a reconnect within the
// window cancels it without any external traffic.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notifd/notifd/auth"
	"github.com/notifd/notifd/internal/metrics"
)

const (
	defaultDelay         = 10 * time.Second
	defaultUpdateTimeout = 10 * time.Second
)

// Updater issues the external presence state change. Calls are fire-and-forget
// from the tracker's perspective; failures are logged, never retried.
type Updater interface {
	UpdatePresence(ctx context.Context, token string, online bool) error
}

// Tracker holds at most one pending-offline timer per token. A token is
// considered online exactly while no such timer exists for it after a
// MarkOnline; no explicit online state is stored.
//
// Only user-shaped tokens are tracked; panel tokens pass through both marks
// unchanged.
type Tracker struct {
	updater       Updater
	delay         time.Duration
	updateTimeout time.Duration
	log           *slog.Logger

	// hasSession, when set, is consulted as a timer fires: if a parked
	// session still references the token through some other path, the
	// offline update is skipped.
	hasSession func(token string) bool

	mu     sync.Mutex
	timers map[string]*time.Timer

	updates sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDelay sets the offline debounce window.
func WithDelay(d time.Duration) Option {
	return func(t *Tracker) { t.delay = d }
}

// WithUpdateTimeout bounds each external presence call.
func WithUpdateTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.updateTimeout = d }
}

// WithLogger sets the slog logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// New builds a Tracker issuing state changes through updater.
func New(updater Updater, opts ...Option) *Tracker {
	t := &Tracker{
		updater:       updater,
		delay:         defaultDelay,
		updateTimeout: defaultUpdateTimeout,
		log:           slog.Default(),
		timers:        make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetSessionCheck installs the pending-session probe consulted when a
// debounce timer fires. Called once during wiring, before any traffic.
func (t *Tracker) SetSessionCheck(fn func(token string) bool) {
	t.hasSession = fn
}

// MarkOnline records that a connection for token just started. If an offline
// timer is pending this is the reconnect path: the timer is cancelled and no
// external call is made, since the subject never went offline. Otherwise an
// online update is issued.
func (t *Tracker) MarkOnline(token string) {
	if !auth.IsUserToken(token) {
		return
	}

	t.mu.Lock()
	if tm, ok := t.timers[token]; ok {
		tm.Stop()
		delete(t.timers, token)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.update(token, true)
}

// MarkOffline records that a connection for token just ended. Any existing
// timer is re-armed; the offline update is issued only if the window elapses
// with no intervening MarkOnline and no pending session for the token.
func (t *Tracker) MarkOffline(token string) {
	if !auth.IsUserToken(token) {
		return
	}

	t.mu.Lock()
	if tm, ok := t.timers[token]; ok {
		tm.Stop()
	}
	t.timers[token] = time.AfterFunc(t.delay, func() { t.offlineElapsed(token) })
	t.mu.Unlock()
}

func (t *Tracker) offlineElapsed(token string) {
	t.mu.Lock()
	delete(t.timers, token)
	t.mu.Unlock()

	// The lock is released before probing the session registry so the two
	// locks are never held together.
	if t.hasSession != nil && t.hasSession(token) {
		return
	}
	t.update(token, false)
}

func (t *Tracker) update(token string, online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	metrics.PresenceUpdates.WithLabelValues(state).Inc()

	t.updates.Add(1)
	go func() {
		defer t.updates.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.updateTimeout)
		defer cancel()
		if err := t.updater.UpdatePresence(ctx, token, online); err != nil {
			t.log.Warn("presence update failed",
				slog.String("state", state),
				slog.String("err", err.Error()))
		}
	}()
}

// PendingOfflineTokens returns the tokens with an armed offline timer, for
// the stat endpoint.
func (t *Tracker) PendingOfflineTokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := make([]string, 0, len(t.timers))
	for token := range t.timers {
		tokens = append(tokens, token)
	}
	return tokens
}

// Close cancels all armed timers and waits for in-flight updates to finish.
func (t *Tracker) Close() {
	t.mu.Lock()
	for token, tm := range t.timers {
		tm.Stop()
		delete(t.timers, token)
	}
	t.mu.Unlock()
	t.updates.Wait()
}

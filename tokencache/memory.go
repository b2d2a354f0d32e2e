// Package tokencache caches token-validation verdicts in front of an
// auth.Verifier, trading staleness for upstream call volume: a revoked token
// keeps its cached verdict for up to the TTL. Both the valid-subject and the
// invalid-token verdicts are cached; upstream failures never are.
//
// Two implementations mirror the memory/redis split used for the platform's
// other caches: Memory for single-process deployments, Redis when verdicts
// should survive restarts or be shared.
package tokencache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/notifd/notifd/auth"
	"github.com/notifd/notifd/internal/metrics"
)

// verdict is a cached outcome: either subject info or an invalid-token mark.
type verdict struct {
	Info    *auth.TokenInfo `json:"info,omitempty"`
	Invalid bool            `json:"invalid,omitempty"`
}

// Memory is an in-process TTL cache implementing auth.Verifier.
//
// Concurrent resolves of the same uncached token may each issue their own
// upstream call; validation is idempotent and the duplicate fill is benign,
// so no single-flight coordination is attempted.
type Memory struct {
	verifier auth.Verifier
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	verdict
	fetchedAt time.Time
}

// NewMemory wraps verifier with an in-process cache holding verdicts for ttl.
func NewMemory(verifier auth.Verifier, ttl time.Duration) *Memory {
	return &Memory{
		verifier: verifier,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]memoryEntry),
	}
}

// CheckToken implements auth.Verifier.
func (c *Memory) CheckToken(ctx context.Context, token string) (*auth.TokenInfo, error) {
	c.mu.RLock()
	e, ok := c.entries[token]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
		return e.verdict.replay()
	}
	metrics.TokenCacheLookups.WithLabelValues("miss").Inc()

	info, err := c.verifier.CheckToken(ctx, token)
	switch {
	case err == nil:
		c.store(token, verdict{Info: info})
	case errors.Is(err, auth.ErrInvalidToken):
		c.store(token, verdict{Invalid: true})
	default:
		// No verdict obtained; leave any stale entry untouched so the next
		// call retries the upstream.
		return nil, err
	}
	return info, err
}

func (c *Memory) store(token string, v verdict) {
	c.mu.Lock()
	c.entries[token] = memoryEntry{verdict: v, fetchedAt: c.now()}
	c.mu.Unlock()
}

// replay turns a cached verdict back into the Verifier return shape.
func (v verdict) replay() (*auth.TokenInfo, error) {
	if v.Invalid {
		return nil, auth.ErrInvalidToken
	}
	info := *v.Info
	return &info, nil
}

var _ auth.Verifier = (*Memory)(nil)

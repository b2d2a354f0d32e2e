package hub

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SubscribeRequest carries the validated parameters of one consumer call.
type SubscribeRequest struct {
	// Topics are the requested prefix filters, already access-checked.
	Topics []string
	// Token is the caller's opaque credential, used for presence and stats.
	Token string
	// Since is the backlog cursor in epoch milliseconds.
	Since int64
	// NoWait parks with a zero timeout: a single non-blocking poll that
	// still triggers presence-online semantics.
	NoWait bool
}

// Result is the terminal answer for a parked session: the delivered events
// (empty on timeout) and the cursor the client passes back as Since on its
// next call.
type Result struct {
	Events    []Event
	Timestamp int64
}

// Session is a parked long-poll subscriber. It is owned by the hub's registry
// for its whole lifetime and is destroyed exactly once, through one of three
// mutually exclusive paths: matched by a publish, timer expiry, or connection
// close. The done guard makes the losing paths no-ops.
type Session struct {
	ID      string
	Topics  []string
	Token   string
	Created time.Time

	timer *time.Timer
	done  atomic.Bool
	ch    chan Result
}

func newSession(req SubscribeRequest, now time.Time) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Topics:  req.Topics,
		Token:   req.Token,
		Created: now,
		ch:      make(chan Result, 1),
	}
}

// Done yields the session's result. At most one value is ever sent; the
// channel stays open and empty if the session is cancelled by disconnect.
func (s *Session) Done() <-chan Result {
	return s.ch
}

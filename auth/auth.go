// Package auth defines the token-validation boundary: the subject behind a
// validated token, the Verifier interface implemented by the upstream client
// and the caches that wrap it, and the failure taxonomy handlers map to HTTP
// statuses.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidToken indicates the upstream rejected the token outright.
var ErrInvalidToken = errors.New("invalid auth token")

// ErrUpstreamUnavailable indicates the validation upstream could not produce
// a verdict (network failure, non-200 response, malformed body). It is never
// cached; the next resolve retries.
var ErrUpstreamUnavailable = errors.New("token validation upstream unavailable")

// SubjectType distinguishes the two kinds of principals the platform issues
// tokens for.
type SubjectType string

const (
	// SubjectUser is an end-user client scoped to a single app.
	SubjectUser SubjectType = "user"
	// SubjectPanel is an operator panel administering one or more apps.
	SubjectPanel SubjectType = "panel"
)

// TokenInfo describes the subject behind a validated token. Instances are
// replaced wholesale on cache refresh, never mutated.
type TokenInfo struct {
	Active bool        `json:"active"`
	Type   SubjectType `json:"type"`

	// App and User identify the scope of a user subject.
	App  string `json:"app,omitempty"`
	User int64  `json:"user,omitempty"`

	// Apps lists the apps a panel subject administers.
	Apps []string `json:"apps,omitempty"`
}

// Verifier validates an opaque token. Implementations return ErrInvalidToken
// for rejected tokens and wrap ErrUpstreamUnavailable when no verdict could
// be obtained. An inactive subject is a successful verdict with Active false.
type Verifier interface {
	CheckToken(ctx context.Context, token string) (*TokenInfo, error)
}

var uidPattern = regexp.MustCompile(`user\.(\d+)\.`)

// IsUserToken reports whether token belongs to an end user. Tokens are shaped
// "user.<uid>.<secret>" for users; anything else is treated as a panel or
// service credential and is exempt from presence tracking.
func IsUserToken(token string) bool {
	return strings.HasPrefix(token, "user")
}

// UIDFromToken extracts the user id embedded in a user-shaped token. The
// second return is false for panel tokens and malformed strings.
func UIDFromToken(token string) (int64, bool) {
	m := uidPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	uid, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return uid, true
}

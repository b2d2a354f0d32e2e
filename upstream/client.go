// Package upstream is the HTTP client for the platform API: token validation
// and presence property updates. It is the only component that leaves the
// process on the request path.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notifd/notifd/auth"
)

const maxResponseBody = 1 << 20

// Client talks to the platform API at a fixed base endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (timeouts, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the slog logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client for the API rooted at endpoint, e.g.
// "https://api.example.com/v1".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type checkTokenResponse struct {
	Meta struct {
		Status int `json:"status"`
	} `json:"meta"`
	Data auth.TokenInfo `json:"data"`
}

// CheckToken implements auth.Verifier against GET /auth/checktoken. An HTTP
// 200 with meta status 200 yields the subject info (possibly inactive); meta
// status 400 yields auth.ErrInvalidToken; every other outcome wraps
// auth.ErrUpstreamUnavailable.
func (c *Client) CheckToken(ctx context.Context, token string) (*auth.TokenInfo, error) {
	u := c.endpoint + "/auth/checktoken?auth_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build checktoken request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: checktoken HTTP %d", auth.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body checkTokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode checktoken body: %v", auth.ErrUpstreamUnavailable, err)
	}

	switch body.Meta.Status {
	case http.StatusOK:
		info := body.Data
		return &info, nil
	case http.StatusBadRequest:
		return nil, auth.ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: checktoken meta status %d", auth.ErrUpstreamUnavailable, body.Meta.Status)
	}
}

type propertyOp struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// UpdatePresence posts the subject's $online property through
// POST /users/$self_user/setproperties. The token itself scopes the call; the
// literal $self_user / $self_app placeholders are resolved upstream.
func (c *Client) UpdatePresence(ctx context.Context, token string, online bool) error {
	ops, err := json.Marshal([]propertyOp{{Op: "update_or_create", Key: "$online", Value: online}})
	if err != nil {
		return fmt.Errorf("marshal operations: %w", err)
	}

	form := url.Values{
		"app":        {"$self_app"},
		"operations": {string(ops)},
	}
	u := c.endpoint + "/users/$self_user/setproperties?auth_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build setproperties request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("setproperties: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("setproperties HTTP %d", resp.StatusCode)
	}
	return nil
}

var _ auth.Verifier = (*Client)(nil)

package longpollhttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notifd/notifd/auth"
	"github.com/notifd/notifd/hub"
	"github.com/notifd/notifd/internal/logctx"
)

// Option configures a handler.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the slog logger used by the handler. If not provided,
// slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// SubscribeHandler serves the consumer-facing long-poll endpoint.
type SubscribeHandler struct {
	hub      *hub.Hub
	verifier auth.Verifier
	log      *slog.Logger
	now      func() time.Time
}

// NewSubscribeHandler builds the subscribe endpoint over h, resolving tokens
// through verifier (normally a tokencache wrapping the upstream client).
func NewSubscribeHandler(h *hub.Hub, verifier auth.Verifier, opts ...Option) *SubscribeHandler {
	cfg := newConfig(opts)
	return &SubscribeHandler{
		hub:      h,
		verifier: verifier,
		log:      slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		now:      time.Now,
	}
}

func (h *SubscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	q := r.URL.Query()
	rawTopics := q.Get("events")
	token := q.Get("auth_token")
	if rawTopics == "" || token == "" {
		writeError(w, http.StatusBadRequest)
		return
	}

	// A missing, zero, or unparseable cursor defaults to the call time. A
	// negative cursor is kept as-is and simply matches the whole backlog.
	since, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	if err != nil || since == 0 {
		since = h.now().UnixMilli()
	}

	info, err := h.verifier.CheckToken(ctx, token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusForbidden)
		return
	case err != nil:
		h.log.ErrorContext(ctx, "token validation unavailable", slog.String("err", err.Error()))
		writeError(w, http.StatusBadGateway)
		return
	case !info.Active:
		writeError(w, http.StatusForbidden)
		return
	}

	topics := strings.Split(rawTopics, ",")
	if !auth.CheckAccess(info, topics) {
		h.log.WarnContext(ctx, "subscription to disallowed topic refused",
			slog.String("subject", string(info.Type)))
		writeError(w, http.StatusForbidden)
		return
	}

	events, sess := h.hub.Subscribe(hub.SubscribeRequest{
		Topics: topics,
		Token:  token,
		Since:  since,
		NoWait: q.Get("no_wait") != "",
	})
	if sess == nil {
		writeEvents(w, events, events[len(events)-1].Timestamp)
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID: sess.ID,
		Subject:   string(info.Type),
		UID:       info.User,
	})
	h.log.DebugContext(ctx, "session parked", slog.Int("topics", len(topics)))

	select {
	case res := <-sess.Done():
		writeEvents(w, res.Events, res.Timestamp)
	case <-r.Context().Done():
		// Client went away; the hub drops the session and the presence
		// debounce starts. Nothing can be written to the closed connection.
		h.hub.Cancel(sess)
	}
}

var _ http.Handler = (*SubscribeHandler)(nil)

package longpollhttp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"

	"github.com/notifd/notifd/auth"
	"github.com/notifd/notifd/hub"
	"github.com/notifd/notifd/presence"
)

var (
	plainMediaType = contenttype.NewMediaType("text/plain")
	jsonMediaType  = contenttype.NewMediaType("application/json")
	statMediaTypes = []contenttype.MediaType{plainMediaType, jsonMediaType}
)

// StatHandler exposes broker introspection: pending-session and event counts,
// and with ?users, the user ids behind parked sessions and armed offline
// timers (derived from token shape).
type StatHandler struct {
	hub     *hub.Hub
	tracker *presence.Tracker
	log     *slog.Logger
}

// NewStatHandler builds the stat endpoint over h and tracker.
func NewStatHandler(h *hub.Hub, tracker *presence.Tracker, opts ...Option) *StatHandler {
	cfg := newConfig(opts)
	return &StatHandler{hub: h, tracker: tracker, log: cfg.logger}
}

func (h *StatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("users") {
		h.serveUsers(w)
		return
	}

	stats := h.hub.Stats()
	if accepted, _, err := contenttype.GetAcceptableMediaType(r, statMediaTypes); err == nil && accepted.Matches(jsonMediaType) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{
			"pending": stats.Pending,
			"events":  stats.Events,
		})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Pending: %d, Events: %d", stats.Pending, stats.Events)
}

func (h *StatHandler) serveUsers(w http.ResponseWriter) {
	pending := uidsFromTokens(h.hub.PendingTokens())
	offline := uidsFromTokens(h.tracker.PendingOfflineTokens())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]int64{
		"pending":         pending,
		"offlinetimeouts": offline,
	})
}

func uidsFromTokens(tokens []string) []int64 {
	uids := make([]int64, 0, len(tokens))
	for _, token := range tokens {
		if uid, ok := auth.UIDFromToken(token); ok {
			uids = append(uids, uid)
		}
	}
	return uids
}

var _ http.Handler = (*StatHandler)(nil)

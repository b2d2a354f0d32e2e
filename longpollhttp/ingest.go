package longpollhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/notifd/notifd/hub"
	"github.com/notifd/notifd/internal/metrics"
)

// maxIngestBody caps producer POST bodies.
const maxIngestBody = 1 << 20

// IngestHandler accepts published events from producers: a form-encoded POST
// with an `event` topic string and a `data` JSON payload. The payload is
// validated but otherwise opaque.
type IngestHandler struct {
	hub *hub.Hub
	log *slog.Logger
}

// NewIngestHandler builds the producer-facing ingest endpoint over h.
func NewIngestHandler(h *hub.Hub, opts ...Option) *IngestHandler {
	cfg := newConfig(opts)
	return &IngestHandler{hub: h, log: cfg.logger}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest)
		return
	}

	topic := r.PostFormValue("event")
	data := r.PostFormValue("data")
	if topic == "" || data == "" || !json.Valid([]byte(data)) {
		writeError(w, http.StatusBadRequest)
		return
	}

	ev := h.hub.Publish(topic, json.RawMessage(data))
	metrics.EventsPublished.Inc()
	h.log.Debug("event published",
		slog.String("topic", ev.Topic),
		slog.Int64("timestamp", ev.Timestamp))

	_, _ = w.Write([]byte("ok"))
}

var _ http.Handler = (*IngestHandler)(nil)

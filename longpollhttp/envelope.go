package longpollhttp

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/notifd/notifd/hub"
)

type envelope struct {
	Meta meta    `json:"meta"`
	Data payload `json:"data"`
}

type meta struct {
	Status int `json:"status"`
}

type payload struct {
	Events    []hub.Event `json:"events"`
	Timestamp int64       `json:"timestamp"`
}

// writeEvents completes a consumer response with the standard envelope. The
// timestamp is the cursor the client echoes back on its next call.
func writeEvents(w http.ResponseWriter, events []hub.Event, timestamp int64) {
	if events == nil {
		events = []hub.Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(envelope{Meta: meta{Status: http.StatusOK}, Data: payload{Events: events, Timestamp: timestamp}})
}

// writeError completes a consumer response with one of the documented plain
// bodies.
func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	switch status {
	case http.StatusBadRequest:
		_, _ = io.WriteString(w, "Bad Request")
	case http.StatusForbidden:
		_, _ = io.WriteString(w, "Access denied")
	case http.StatusBadGateway:
		_, _ = io.WriteString(w, "Something wrong")
	}
}

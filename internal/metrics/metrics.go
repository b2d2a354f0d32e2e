// Package metrics holds the process-wide Prometheus collectors, registered
// on the default registry and served from the stat listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts events accepted by the ingest endpoint.
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "notifd",
		Name:      "events_published_total",
		Help:      "Events accepted by the ingest endpoint.",
	})

	// EventsLogged tracks the current size of the event log.
	EventsLogged = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notifd",
		Name:      "events_logged",
		Help:      "Events currently retained in the log.",
	})

	// SessionsPending tracks long-poll sessions currently parked.
	SessionsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notifd",
		Name:      "sessions_pending",
		Help:      "Long-poll sessions currently parked.",
	})

	// Deliveries counts resolved subscribe calls by outcome: immediate,
	// match, timeout, closed.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifd",
		Name:      "deliveries_total",
		Help:      "Resolved subscribe calls by outcome.",
	}, []string{"outcome"})

	// TokenCacheLookups counts token cache lookups by result (hit, miss).
	TokenCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifd",
		Name:      "token_cache_lookups_total",
		Help:      "Token cache lookups by result.",
	}, []string{"result"})

	// PresenceUpdates counts external presence updates issued, by state.
	PresenceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifd",
		Name:      "presence_updates_total",
		Help:      "External presence updates issued, by state (online, offline).",
	}, []string{"state"})
)

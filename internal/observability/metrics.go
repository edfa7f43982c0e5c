package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "samples_accepted_total", Help: "GPS samples that passed validation"})
	SamplesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "samples_rejected_total", Help: "GPS samples rejected at ingestion"},
		[]string{"reason"},
	)
	SamplesPersisted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "samples_persisted_total", Help: "GPS samples written through to storage"})
	SamplesThrottled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "samples_throttled_total", Help: "GPS samples dropped by the movement/interval gates"})

	AcceptAttempts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "trip_accept_attempts_total", Help: "Trip acceptance attempts"})
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "trip_accept_conflicts_total", Help: "Trip acceptance attempts lost to another driver"})

	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "feed_events_total", Help: "Change feed events processed"},
		[]string{"table", "type"},
	)
	FeedResyncs        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "feed_resyncs_total", Help: "Full resynchronizations triggered"})
	ConnectedObservers = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "dispatch", Name: "connected_observers", Help: "Dashboard observers currently connected"})
)

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollsTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "livetrack", Name: "polls_total", Help: "Total live-data polls issued"})
	PollFailures       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "livetrack", Name: "poll_failures_total", Help: "Polls that failed and kept last-known-good state"})
	PollOverlapSkips   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "livetrack", Name: "poll_overlap_skips_total", Help: "Refresh triggers skipped because a poll was already in flight"})
	PollStaleDrops     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "livetrack", Name: "poll_stale_drops_total", Help: "Poll responses dropped for arriving after a newer one was applied"})
	ActivitiesNotified = promauto.NewCounter(prometheus.CounterOpts{Namespace: "livetrack", Name: "activities_notified_total", Help: "Activity events that raised a toast"})
	SOSSent            = promauto.NewCounter(prometheus.CounterOpts{Namespace: "livetrack", Name: "sos_sent_total", Help: "SOS alerts sent"})
	RidersTracked      = promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: "livetrack", Name: "riders_tracked", Help: "Riders with a live position in the gateway store, per ride"}, []string{"ride_id"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "livetrack", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "livetrack",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardrecon_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewardrecon_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	// PostbacksTotal counts postbacks by vendor and outcome
	// (applied, duplicate, invalid, bad_signature, unavailable).
	PostbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardrecon_postbacks_total",
			Help: "Vendor postbacks by vendor, kind and outcome",
		},
		[]string{"vendor", "kind", "outcome"},
	)

	ReconcileRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardrecon_store_retries_total",
			Help: "Store transactions retried after a write conflict",
		},
		[]string{"op"},
	)

	PointsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardrecon_points_total",
			Help: "Absolute points moved by vendor and kind",
		},
		[]string{"vendor", "kind"},
	)
)

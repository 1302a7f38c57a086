// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repochat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ActivityEvents counts Activity Logger calls by kind and outcome
	// (success, invalid, sink_error, unconfigured).
	ActivityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repochat_activity_events_total",
			Help: "Activity log writes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// ProviderChecks counts re-authentication attempts by outcome.
	ProviderChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repochat_provider_reauth_total",
			Help: "Stored provider token checks by outcome",
		},
		[]string{"outcome"},
	)
)

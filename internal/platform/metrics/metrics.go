package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-level Prometheus metrics. Store- and
// recorder-local metrics live next to their owners as package-level
// collectors; this struct covers the session core.
type Metrics struct {
	TokenPairsIssued   prometheus.Counter
	TokensRefreshed    prometheus.Counter
	RefreshFailures    *prometheus.CounterVec
	TheftResponses     prometheus.Counter
	RefreshDurationMs  prometheus.Histogram
	SessionsRevoked    prometheus.Counter
	SuspiciousActors   prometheus.Gauge
	CoordinatorShared  prometheus.Counter
	CoordinatorTimeout prometheus.Counter
}

// New creates and registers all session-core metrics.
func New() *Metrics {
	return &Metrics{
		TokenPairsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_token_pairs_issued_total",
			Help: "Total number of access/refresh token pairs issued at login",
		}),
		TokensRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_tokens_refreshed_total",
			Help: "Total number of successful refresh token rotations",
		}),
		RefreshFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_refresh_failures_total",
			Help: "Refresh failures by reason",
		}, []string{"reason"}),
		TheftResponses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_theft_responses_total",
			Help: "Total number of rotated-token reuse detections (full user revocation)",
		}),
		RefreshDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_refresh_duration_ms",
			Help:    "Latency of refresh rotations in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
		SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_sessions_revoked_total",
			Help: "Total number of refresh records revoked via logout or security events",
		}),
		SuspiciousActors: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_suspicious_actors",
			Help: "Number of actors over the failure threshold at last evaluation",
		}),
		CoordinatorShared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_coordinator_shared_total",
			Help: "Refresh calls that joined an in-flight rotation instead of starting one",
		}),
		CoordinatorTimeout: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_coordinator_timeouts_total",
			Help: "Refresh rotations abandoned because they exceeded the refresh timeout",
		}),
	}
}

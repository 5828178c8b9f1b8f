package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the harness.
type Metrics struct {
	SessionsReused   prometheus.Counter
	SessionsLoggedIn prometheus.Counter

	FixturesCreated *prometheus.CounterVec
	FixturesDeleted *prometheus.CounterVec

	Verifications *prometheus.CounterVec
	SweepDeleted  *prometheus.CounterVec
	RateLimited   prometheus.Counter

	RPCDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsReused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "groundtruth_sessions_reused_total",
			Help: "Cached sessions handed out without hitting the login endpoint",
		}),
		SessionsLoggedIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "groundtruth_sessions_logged_in_total",
			Help: "Fresh logins performed on cache miss, expiry or invalidation",
		}),
		FixturesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "groundtruth_fixtures_created_total",
			Help: "Entities created through the application API",
		}, []string{"kind"}),
		FixturesDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "groundtruth_fixtures_deleted_total",
			Help: "Tracked entities removed during teardown",
		}, []string{"kind"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "groundtruth_verifications_total",
			Help: "Field comparisons against the system of record by outcome",
		}, []string{"outcome"}),
		SweepDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "groundtruth_sweep_deleted_total",
			Help: "Residue rows removed by the marker sweep",
		}, []string{"table"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "groundtruth_rate_limited_total",
			Help: "Requests the application rejected with 429",
		}),
		RPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groundtruth_rpc_duration_seconds",
			Help:    "Latency of application RPC calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure", "status"}),
	}
}

// ObserveVerification counts one comparison outcome.
func (m *Metrics) ObserveVerification(pass bool) {
	outcome := "fail"
	if pass {
		outcome = "pass"
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

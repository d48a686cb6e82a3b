// Package metrics exposes Prometheus instrumentation for the auth backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the auth backend
type Metrics struct {
	ChallengesIssued    prometheus.Counter
	WalletVerifications *prometheus.CounterVec
	SessionsIssued      *prometheus.CounterVec
	SessionsRevoked     prometheus.Counter
	IdentityProbes      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletauth_challenges_issued_total",
			Help: "Total number of wallet challenges issued",
		}),
		WalletVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "walletauth_wallet_verifications_total",
			Help: "Wallet signature verifications by result",
		}, []string{"result"}),
		SessionsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "walletauth_sessions_issued_total",
			Help: "Sessions issued by grant type",
		}, []string{"grant"}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletauth_sessions_revoked_total",
			Help: "Total number of sessions revoked by logout",
		}),
		IdentityProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "walletauth_identity_probes_total",
			Help: "auth_uid_test probes by outcome",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "walletauth_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveRequest records the duration of one HTTP request
func (m *Metrics) ObserveRequest(route, status string, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}

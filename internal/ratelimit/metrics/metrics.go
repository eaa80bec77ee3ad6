// Package metrics exposes Prometheus collectors for the rate limiter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the rate limiter collectors.
type Metrics struct {
	ChecksTotal  *prometheus.CounterVec
	DeniedTotal  *prometheus.CounterVec
	FailOpen     *prometheus.CounterVec
	FailClosed   *prometheus.CounterVec
	LockoutsSet  prometheus.Counter
	TrustUpdates prometheus.Counter
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_ratelimit_checks_total",
			Help: "Admission checks by strategy and action.",
		}, []string{"strategy", "action"}),
		DeniedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_ratelimit_denied_total",
			Help: "Denied requests by strategy and action.",
		}, []string{"strategy", "action"}),
		FailOpen: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_ratelimit_fail_open_total",
			Help: "Requests allowed without a check because the store was unreachable.",
		}, []string{"action"}),
		FailClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_ratelimit_fail_closed_total",
			Help: "Requests denied because the store was unreachable and the action runs fail-closed.",
		}, []string{"action"}),
		LockoutsSet: factory.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_ratelimit_lockouts_total",
			Help: "Progressive-penalty lockouts imposed.",
		}),
		TrustUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_ratelimit_trust_updates_total",
			Help: "Trust profile adjustments by the adaptive strategy.",
		}),
	}
}

// RecordCheck counts one admission check and, when denied, the denial.
func (m *Metrics) RecordCheck(strategy, action string, allowed bool) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(strategy, action).Inc()
	if !allowed {
		m.DeniedTotal.WithLabelValues(strategy, action).Inc()
	}
}

// Package metrics exposes Prometheus collectors for data-subject-rights
// processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gdpr collectors.
type Metrics struct {
	Requests        *prometheus.CounterVec
	ConsentChanges  *prometheus.CounterVec
	ErasedTables    prometheus.Counter
	ManualReviews   prometheus.Counter
	ExportBytes     *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_gdpr_requests_total",
			Help: "Data subject requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ConsentChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_gdpr_consent_changes_total",
			Help: "Consent grants and withdrawals by type.",
		}, []string{"consent_type", "granted"}),
		ErasedTables: factory.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_gdpr_erased_tables_total",
			Help: "Tables successfully cleared during erasure requests.",
		}),
		ManualReviews: factory.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_gdpr_manual_reviews_total",
			Help: "Erasure requests escalated to manual review after partial failure.",
		}),
		ExportBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_gdpr_export_bytes_total",
			Help: "Portability export payload size by format.",
		}, []string{"format"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "werkstattguard_gdpr_request_duration_seconds",
			Help:    "Processing time per data subject request kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(kind, outcome).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(seconds)
}

// Package metrics exposes Prometheus collectors for the audit subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for audit logging.
type Metrics struct {
	EventsLogged    *prometheus.CounterVec
	WriteFailures   prometheus.Counter
	TamperDetected  prometheus.Counter
	AlertsSent      prometheus.Counter
	AlertFailures   prometheus.Counter
	ImmutableCopies prometheus.Counter
}

// New creates and registers all audit metrics.
func New() *Metrics {
	return &Metrics{
		EventsLogged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "werkstattguard_audit_events_total",
			Help: "Total audit events logged, labeled by category and severity",
		}, []string{"category", "severity"}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_audit_write_failures_total",
			Help: "Total audit events that could not be persisted",
		}),
		TamperDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_audit_tamper_detected_total",
			Help: "Total audit records whose checksum failed re-verification",
		}),
		AlertsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_audit_alerts_sent_total",
			Help: "Total high/critical events pushed to the alert sink",
		}),
		AlertFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_audit_alert_failures_total",
			Help: "Total alert deliveries that failed",
		}),
		ImmutableCopies: promauto.NewCounter(prometheus.CounterOpts{
			Name: "werkstattguard_audit_immutable_copies_total",
			Help: "Total events duplicated into the immutable store",
		}),
	}
}

// RecordEvent increments the logged-events counter.
func (m *Metrics) RecordEvent(category, severity string) {
	if m == nil {
		return
	}
	m.EventsLogged.WithLabelValues(category, severity).Inc()
}

// Package alert delivers critical security notifications to an operator-facing
// sink. The default sink is the structured log; deployments with incident
// tooling wire the Kafka notifier instead.
package alert

import (
	"context"
	"log/slog"
	"time"
)

// Alert describes a security condition that warrants operator attention.
type Alert struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Severity  string         `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	RiskScore int            `json:"risk_score"`
	Details   map[string]any `json:"details,omitempty"`
}

// Notifier pushes alerts to a sink. Implementations must be safe for
// concurrent use and must not block the audit write path indefinitely.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log. It is the fallback sink
// when no external alerting system is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	if n.logger == nil {
		return nil
	}
	n.logger.WarnContext(ctx, "security alert",
		"alert_id", a.ID,
		"event_type", a.EventType,
		"severity", a.Severity,
		"user_id", a.UserID,
		"ip_address", a.IPAddress,
		"risk_score", a.RiskScore,
	)
	return nil
}

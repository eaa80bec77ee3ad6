package alert

import (
	"context"
	"log/slog"

	"werkstattguard/pkg/platform/circuit"
)

// FallbackNotifier delivers alerts through a primary notifier and falls back
// to a secondary one when the primary trips its circuit breaker. Alerts are
// never dropped on a broker outage; they degrade to the fallback sink until
// the primary recovers.
type FallbackNotifier struct {
	primary  Notifier
	fallback Notifier
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewFallbackNotifier wraps primary with a circuit breaker that routes to
// fallback while open. The breaker opens after 5 consecutive failures and
// closes after 3 consecutive successful probes.
func NewFallbackNotifier(primary, fallback Notifier, logger *slog.Logger) *FallbackNotifier {
	return &FallbackNotifier{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("alert-primary"),
		logger:   logger,
	}
}

// Notify sends the alert via the primary notifier. While the circuit is open
// each call still probes the primary so the circuit can close again once the
// sink recovers; failures are delivered to the fallback instead.
func (n *FallbackNotifier) Notify(ctx context.Context, a Alert) error {
	if n.breaker.IsOpen() {
		if err := n.primary.Notify(ctx, a); err == nil {
			if _, change := n.breaker.RecordSuccess(); change.Closed && n.logger != nil {
				n.logger.Info("alert primary recovered", "breaker", n.breaker.Name())
			}
			return nil
		}
		n.breaker.RecordFailure()
		return n.fallback.Notify(ctx, a)
	}

	err := n.primary.Notify(ctx, a)
	if err == nil {
		n.breaker.RecordSuccess()
		return nil
	}

	useFallback, change := n.breaker.RecordFailure()
	if change.Opened && n.logger != nil {
		n.logger.Warn("alert primary tripped, routing to fallback",
			"breaker", n.breaker.Name(),
			"error", err,
		)
	}
	if useFallback {
		return n.fallback.Notify(ctx, a)
	}
	return err
}

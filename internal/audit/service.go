package audit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"werkstattguard/internal/audit/metrics"
	"werkstattguard/internal/platform/alert"
	dErrors "werkstattguard/pkg/domain-errors"
)

// Logger is the tamper-evident audit logger. It assigns ids and timestamps,
// scores risk, computes the integrity checksum, persists the record, and
// escalates high/critical events to the immutable store and the alert sink.
//
// A failed primary write is never swallowed: the failure is recorded in the
// system-error log and the error is returned to the caller.
type Logger struct {
	store    Store
	checksum *Checksummer
	notifier alert.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the structured logger for operational errors.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithNotifier sets the alert sink for high/critical events.
func WithNotifier(n alert.Notifier) Option {
	return func(l *Logger) {
		l.notifier = n
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) {
		l.metrics = m
	}
}

// WithClock overrides the time source. Tests use this for determinism.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// New creates an audit logger. The salt keys the integrity checksum and must
// be a deployment secret.
func New(store Store, salt []byte, opts ...Option) (*Logger, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit store is required")
	}
	if len(salt) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit checksum salt is required")
	}

	l := &Logger{
		store:    store,
		checksum: NewChecksummer(salt),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LogEvent records one security-relevant action. The caller supplies the
// event content; id, timestamp, risk score, and checksum are assigned here.
// The checksum is computed over the fully populated record, after id and
// timestamp are finalized.
func (l *Logger) LogEvent(ctx context.Context, e Event) (*Event, error) {
	if e.EventType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event type is required")
	}
	if e.Category == "" {
		e.Category = CategorySystem
	}
	if !e.Category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid event category")
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	if !e.Severity.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid event severity")
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeUnknown
	}
	if !e.Outcome.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid event outcome")
	}
	if e.Action == "" {
		e.Action = e.EventType
	}

	e.ID = l.newID()
	// Microsecond precision survives a timestamptz round trip; nanoseconds
	// would make every post-read verification fail.
	e.Timestamp = l.now().UTC().Truncate(time.Microsecond)

	details, err := NormalizeDetails(e.Details)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "event details are not serializable")
	}
	e.Details = details

	e.RiskScore = riskScore(e)

	sum, err := l.checksum.Compute(e)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute event checksum")
	}
	e.Checksum = sum

	if err := l.store.Append(ctx, e); err != nil {
		l.recordWriteFailure(ctx, "append_audit_event", err)
		return nil, dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "failed to persist audit event")
	}
	if l.metrics != nil {
		l.metrics.RecordEvent(string(e.Category), string(e.Severity))
	}

	if e.Severity == SeverityHigh || e.Severity == SeverityCritical {
		l.escalate(ctx, e)
	}

	return &e, nil
}

// escalate duplicates the event into the immutable store and pushes an
// alert. The primary record is already durable at this point, so failures
// here are recorded but do not fail the logging call.
func (l *Logger) escalate(ctx context.Context, e Event) {
	if err := l.store.AppendImmutable(ctx, e); err != nil {
		l.recordWriteFailure(ctx, "append_immutable_event", err)
	} else if l.metrics != nil {
		l.metrics.ImmutableCopies.Inc()
	}

	if l.notifier == nil {
		return
	}
	a := alert.Alert{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		EventType: e.EventType,
		Severity:  string(e.Severity),
		UserID:    e.UserID,
		IPAddress: e.IPAddress,
		RiskScore: e.RiskScore,
		Details:   e.Details,
	}
	if err := l.notifier.Notify(ctx, a); err != nil {
		if l.metrics != nil {
			l.metrics.AlertFailures.Inc()
		}
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "failed to deliver security alert",
				"event_id", e.ID, "error", err)
		}
		return
	}
	if l.metrics != nil {
		l.metrics.AlertsSent.Inc()
	}
}

// recordWriteFailure attempts to leave a trace of an audit write failure in
// the system-error log. If even that fails, the structured log is the last
// resort.
func (l *Logger) recordWriteFailure(ctx context.Context, operation string, cause error) {
	if l.metrics != nil {
		l.metrics.WriteFailures.Inc()
	}
	if l.logger != nil {
		l.logger.ErrorContext(ctx, "audit write failed",
			"operation", operation, "error", cause)
	}
	se := SystemError{
		Timestamp: l.now().UTC(),
		Operation: operation,
		Message:   cause.Error(),
	}
	if err := l.store.AppendSystemError(ctx, se); err != nil && l.logger != nil {
		l.logger.ErrorContext(ctx, "system-error log write failed",
			"operation", operation, "error", err)
	}
}

// Trail returns all events for a user in [from, to], each annotated with a
// tamper flag from checksum re-verification. Detected mismatches are
// reported, never hidden or corrected.
func (l *Logger) Trail(ctx context.Context, userID string, from, to time.Time) ([]TrailEntry, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	events, err := l.store.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}

	entries := make([]TrailEntry, 0, len(events))
	for _, e := range events {
		tampered := !l.checksum.Verify(e)
		if tampered {
			if l.metrics != nil {
				l.metrics.TamperDetected.Inc()
			}
			if l.logger != nil {
				l.logger.WarnContext(ctx, "audit record failed integrity check",
					"event_id", e.ID, "user_id", userID)
			}
		}
		entries = append(entries, TrailEntry{Event: e, TamperDetected: tampered})
	}
	return entries, nil
}

// Search returns events matching the filter.
func (l *Logger) Search(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid category filter")
	}
	if filter.Severity != "" && !filter.Severity.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid severity filter")
	}
	if filter.Outcome != "" && !filter.Outcome.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid outcome filter")
	}

	events, err := l.store.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit search failed")
	}
	return events, nil
}

// SecurityMetrics aggregates event volume over the trailing number of days:
// counts by category, severity, and outcome, the most active users and IPs,
// and the events meeting the suspicious bar.
func (l *Logger) SecurityMetrics(ctx context.Context, days int) (*Summary, error) {
	if days <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "days must be positive")
	}

	to := l.now().UTC()
	from := to.AddDate(0, 0, -days)
	events, err := l.store.Search(ctx, Filter{From: from, To: to})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load events for metrics")
	}

	summary := &Summary{
		From:        from,
		To:          to,
		TotalEvents: len(events),
		ByCategory:  make(map[Category]int),
		BySeverity:  make(map[Severity]int),
		ByOutcome:   make(map[Outcome]int),
	}

	userCounts := make(map[string]int)
	ipCounts := make(map[string]int)
	for _, e := range events {
		summary.ByCategory[e.Category]++
		summary.BySeverity[e.Severity]++
		summary.ByOutcome[e.Outcome]++
		if e.UserID != "" {
			userCounts[e.UserID]++
		}
		if e.IPAddress != "" {
			ipCounts[e.IPAddress]++
		}
		if IsSuspicious(e) {
			summary.Suspicious = append(summary.Suspicious, e)
		}
	}

	summary.TopUsers = topActors(userCounts, 10)
	summary.TopIPs = topActors(ipCounts, 10)
	return summary, nil
}

// topActors returns the n highest-volume actors, ties broken alphabetically
// for stable output.
func topActors(counts map[string]int, n int) []ActorCount {
	out := make([]ActorCount, 0, len(counts))
	for actor, count := range counts {
		out = append(out, ActorCount{Actor: actor, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Actor < out[j].Actor
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

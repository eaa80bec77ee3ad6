package audit

import (
	"context"
	"strings"
	"time"
)

const (
	// failureEscalationWindow is how far back repeated authentication
	// failures for the same identifier count toward escalation.
	failureEscalationWindow = 15 * time.Minute

	// failureEscalationThreshold is the failure count within the window at
	// which auth events are promoted to high severity and flagged
	// suspicious.
	failureEscalationThreshold = 3

	// bulkAccessThreshold is the record count above which a data access is
	// treated as a bulk read and promoted to high severity.
	bulkAccessThreshold = 100
)

// DetailBulkAccess marks a data-access event that crossed the bulk read
// threshold.
const DetailBulkAccess = "bulk_access"

// DetailRecordCount carries how many records a data-access event touched.
const DetailRecordCount = "record_count"

// AuthEvent describes a login, registration, logout, MFA, or password
// operation to be audited.
type AuthEvent struct {
	EventType  string // e.g. "auth_login", "auth_register", "auth_mfa"
	UserID     string
	Identifier string // username or email the caller presented
	SessionID  string
	IPAddress  string
	UserAgent  string
	Outcome    Outcome
	Details    map[string]any
}

// LogAuthEvent records an authentication event. Failed and denied attempts
// are cross-checked against recent failures for the same identifier: from
// the third failure inside a 15 minute window the event is promoted to high
// severity and flagged as suspicious activity.
func (l *Logger) LogAuthEvent(ctx context.Context, ae AuthEvent) (*Event, error) {
	details := cloneDetails(ae.Details)
	if ae.Identifier != "" {
		details[DetailIdentifier] = ae.Identifier
	}

	severity := SeverityLow
	if ae.Outcome == OutcomeFailed || ae.Outcome == OutcomeDenied {
		severity = SeverityMedium
		if ae.Identifier != "" {
			since := l.now().UTC().Add(-failureEscalationWindow)
			count, err := l.store.CountRecentAuthFailures(ctx, ae.Identifier, since)
			if err != nil {
				// Escalation is best-effort; the event itself must still
				// be recorded.
				if l.logger != nil {
					l.logger.WarnContext(ctx, "failed to count recent auth failures",
						"error", err)
				}
			} else if count+1 >= failureEscalationThreshold {
				severity = SeverityHigh
				details[DetailSuspicious] = true
			}
		}
	}

	return l.LogEvent(ctx, Event{
		EventType: ae.EventType,
		Category:  CategoryAuthentication,
		Severity:  severity,
		UserID:    ae.UserID,
		SessionID: ae.SessionID,
		IPAddress: ae.IPAddress,
		UserAgent: ae.UserAgent,
		Action:    strings.TrimPrefix(ae.EventType, "auth_"),
		Outcome:   ae.Outcome,
		Details:   details,
	})
}

// DataAccessEvent describes a read or write against workshop data.
type DataAccessEvent struct {
	UserID       string
	SessionID    string
	IPAddress    string
	ResourceType string
	ResourceID   string
	Action       string // "read", "export", "update", ...
	RecordCount  int
	Outcome      Outcome
	Details      map[string]any
}

// LogDataAccess records access to workshop data. Reads touching more than
// 100 records are promoted to high severity and flagged as bulk access.
func (l *Logger) LogDataAccess(ctx context.Context, de DataAccessEvent) (*Event, error) {
	details := cloneDetails(de.Details)
	severity := SeverityLow
	if de.RecordCount > 0 {
		details[DetailRecordCount] = de.RecordCount
	}
	if de.RecordCount > bulkAccessThreshold {
		severity = SeverityHigh
		details[DetailBulkAccess] = true
	}

	return l.LogEvent(ctx, Event{
		EventType:    "data_access",
		Category:     CategoryDataAccess,
		Severity:     severity,
		UserID:       de.UserID,
		SessionID:    de.SessionID,
		IPAddress:    de.IPAddress,
		ResourceType: de.ResourceType,
		ResourceID:   de.ResourceID,
		Action:       de.Action,
		Outcome:      de.Outcome,
		Details:      details,
	})
}

// ComplianceEvent describes a data-protection action such as a consent
// change, an export, or an erasure.
type ComplianceEvent struct {
	EventType  string // e.g. "gdpr_erasure_request", "consent_withdrawn"
	UserID     string
	IPAddress  string
	ResourceID string
	Action     string
	Outcome    Outcome
	Details    map[string]any
}

// LogComplianceEvent records a compliance action at medium severity.
// Compliance records double as evidence of regulatory obligations being met.
func (l *Logger) LogComplianceEvent(ctx context.Context, ce ComplianceEvent) (*Event, error) {
	return l.LogEvent(ctx, Event{
		EventType:  ce.EventType,
		Category:   CategoryCompliance,
		Severity:   SeverityMedium,
		UserID:     ce.UserID,
		IPAddress:  ce.IPAddress,
		ResourceID: ce.ResourceID,
		Action:     ce.Action,
		Outcome:    ce.Outcome,
		Details:    cloneDetails(ce.Details),
	})
}

// SecurityEvent describes a detected threat or policy violation, such as a
// rate limit breach or a tamper detection.
type SecurityEvent struct {
	EventType string
	Severity  Severity
	UserID    string
	IPAddress string
	Action    string
	Outcome   Outcome
	Details   map[string]any
}

// LogSecurityEvent records a security event. Severity defaults to medium
// when the caller does not grade it.
func (l *Logger) LogSecurityEvent(ctx context.Context, se SecurityEvent) (*Event, error) {
	severity := se.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	return l.LogEvent(ctx, Event{
		EventType: se.EventType,
		Category:  CategorySecurity,
		Severity:  severity,
		UserID:    se.UserID,
		IPAddress: se.IPAddress,
		Action:    se.Action,
		Outcome:   se.Outcome,
		Details:   cloneDetails(se.Details),
	})
}

// LogSystemEvent records an operational event (startup, configuration
// change, scheduled job) at low severity.
func (l *Logger) LogSystemEvent(ctx context.Context, eventType, action string, details map[string]any) (*Event, error) {
	return l.LogEvent(ctx, Event{
		EventType: eventType,
		Category:  CategorySystem,
		Severity:  SeverityLow,
		Action:    action,
		Outcome:   OutcomeSuccess,
		Details:   cloneDetails(details),
	})
}

// cloneDetails copies the caller's map so escalation annotations never
// mutate caller-owned state.
func cloneDetails(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

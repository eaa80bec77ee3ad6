// Package audit provides durable, tamper-evident recording of every
// security-relevant action, plus querying and aggregate metrics.
//
// Events are append-only: created once, never mutated, never deleted.
// Retention is a data-retention-policy concern, not this package's.
package audit

import "time"

// Category classifies the domain of an audit event.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryDataAccess     Category = "data_access"
	CategorySecurity       Category = "security_event"
	CategorySystem         Category = "system_event"
	CategoryPrivacy        Category = "privacy_event"
	CategoryCompliance     Category = "compliance_event"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryAuthentication, CategoryAuthorization, CategoryDataAccess,
		CategorySecurity, CategorySystem, CategoryPrivacy, CategoryCompliance:
		return true
	}
	return false
}

// Severity grades how serious an event is. High and critical events are
// duplicated into the immutable store and pushed to the alert sink.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Outcome records how the audited action concluded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeDenied  Outcome = "denied"
	OutcomeUnknown Outcome = "unknown"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeDenied, OutcomeUnknown:
		return true
	}
	return false
}

// Event is one record per security-relevant action.
//
// The checksum is a keyed hash over all other fields, computed at write time
// after the id and timestamp are assigned, and re-verified at read time. A
// mismatch signals tampering and is surfaced, never silently corrected.
type Event struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Category      Category       `json:"category"`
	Severity      Severity       `json:"severity"`
	UserID        string         `json:"user_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	IPAddress     string         `json:"ip_address,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	ResourceType  string         `json:"resource_type,omitempty"`
	ResourceID    string         `json:"resource_id,omitempty"`
	Action        string         `json:"action"`
	Outcome       Outcome        `json:"outcome"`
	Details       map[string]any `json:"details,omitempty"`
	RiskScore     int            `json:"risk_score"`
	Geolocation   string         `json:"geolocation,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Checksum      string         `json:"checksum"`
}

// DetailSuspicious marks an event as part of a suspicious pattern inside the
// details map; risk scoring and metrics key off it.
const DetailSuspicious = "suspicious_activity"

// DetailIdentifier carries the login identifier (username or email) for
// authentication events so failure streaks can be correlated across users.
const DetailIdentifier = "identifier"

// TrailEntry is an event annotated with the result of checksum
// re-verification.
type TrailEntry struct {
	Event          Event `json:"event"`
	TamperDetected bool  `json:"tamper_detected"`
}

// Filter selects events for Search. Zero values mean "no constraint".
type Filter struct {
	UserID       string
	EventType    string
	Category     Category
	Severity     Severity
	IPAddress    string
	Outcome      Outcome
	From         time.Time
	To           time.Time
	MinRiskScore int
	MaxRiskScore int
	Limit        int
}

// Matches reports whether an event satisfies every set constraint.
func (f Filter) Matches(e Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.IPAddress != "" && e.IPAddress != f.IPAddress {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.MinRiskScore > 0 && e.RiskScore < f.MinRiskScore {
		return false
	}
	if f.MaxRiskScore > 0 && e.RiskScore > f.MaxRiskScore {
		return false
	}
	return true
}

// ActorCount pairs an actor (user or IP) with its event volume.
type ActorCount struct {
	Actor string `json:"actor"`
	Count int    `json:"count"`
}

// Summary aggregates event volume over a reporting window.
type Summary struct {
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	TotalEvents int              `json:"total_events"`
	ByCategory  map[Category]int `json:"by_category"`
	BySeverity  map[Severity]int `json:"by_severity"`
	ByOutcome   map[Outcome]int  `json:"by_outcome"`
	TopUsers    []ActorCount     `json:"top_users"`
	TopIPs      []ActorCount     `json:"top_ips"`
	Suspicious  []Event          `json:"suspicious"`
}

// SystemError is the secondary record written when the audit trail itself
// cannot be persisted. A missing audit trail is a security incident; the
// failure must leave a trace somewhere.
type SystemError struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
}

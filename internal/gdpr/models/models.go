// Package models holds the data-subject-rights domain types.
package models

import "time"

// ConsentType keys a consent decision, e.g. "marketing" or "analytics".
type ConsentType string

const (
	ConsentMarketing     ConsentType = "marketing"
	ConsentAnalytics     ConsentType = "analytics"
	ConsentNewsletter    ConsentType = "newsletter"
	ConsentDataSharing   ConsentType = "data_sharing"
	ConsentProfiling     ConsentType = "profiling"
	ConsentNotifications ConsentType = "notifications"
)

func (c ConsentType) IsValid() bool {
	switch c {
	case ConsentMarketing, ConsentAnalytics, ConsentNewsletter,
		ConsentDataSharing, ConsentProfiling, ConsentNotifications:
		return true
	}
	return false
}

// ConsentRecord is the current consent state for one (user, type) pair.
// Exactly one of GrantedAt and WithdrawnAt is set, matching Granted. Only
// current state lives here; the change history is the compliance audit
// trail.
type ConsentRecord struct {
	UserID      string         `json:"user_id"`
	Type        ConsentType    `json:"consent_type"`
	Granted     bool           `json:"granted"`
	GrantedAt   *time.Time     `json:"granted_at,omitempty"`
	WithdrawnAt *time.Time     `json:"withdrawn_at,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Version     string         `json:"version,omitempty"`
	LegalBasis  string         `json:"legal_basis,omitempty"`
	Purpose     string         `json:"purpose,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// User is the identity record checked during data-subject-request
// verification.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Address      string     `json:"address,omitempty"`
	LastIP       string     `json:"last_ip,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Anonymized   bool       `json:"anonymized,omitempty"`
	AnonymizedAt *time.Time `json:"anonymized_at,omitempty"`
}

// Session is one login session included in an access export.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// WorkshopRecord is one workshop data row. Fields holds the raw columns,
// with sensitive fields in their encrypted envelope form at rest.
type WorkshopRecord struct {
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// CommunicationEntry is one message sent to the user.
type CommunicationEntry struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	Channel string    `json:"channel"`
	Subject string    `json:"subject"`
	SentAt  time.Time `json:"sent_at"`
}

// RetentionObligation is an active legal hold that blocks erasure, e.g. a
// tax-record retention window.
type RetentionObligation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	LegalBase string    `json:"legal_base"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectionRecord captures an Article 21 objection to one processing type.
type ObjectionRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ProcessingType string    `json:"processing_type"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExportPackage is the Article 15 access bundle: everything the controller
// holds about the subject, decrypted where the subject is entitled to
// plaintext.
type ExportPackage struct {
	UserID         string               `json:"user_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Profile        *User                `json:"profile"`
	Consents       []ConsentRecord      `json:"consents"`
	Sessions       []Session            `json:"sessions"`
	WorkshopData   []WorkshopRecord     `json:"workshop_data"`
	AuditTrail     []AuditTrailEntry    `json:"audit_trail"`
	Communications []CommunicationEntry `json:"communications"`
}

// AuditTrailEntry is the export-facing slice of an audit event.
type AuditTrailEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// ErasureResult reports what an Article 17 request actually deleted.
// Callers must be able to see which tables failed, partial deletion is
// tolerated rather than rolled back.
type ErasureResult struct {
	RequestID            string    `json:"request_id"`
	UserID               string    `json:"user_id"`
	DeletedTables        []string  `json:"deleted_tables"`
	FailedTables         []string  `json:"failed_tables,omitempty"`
	RequiresManualReview bool      `json:"requires_manual_review"`
	CompletedAt          time.Time `json:"completed_at"`
}

// ExportFormat selects the Article 20 portability encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatXML  ExportFormat = "xml"
)

func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatXML:
		return true
	}
	return false
}

// PortabilityExport is the Article 20 result: the encoded data plus a
// signed receipt the subject can present as proof of the export.
type PortabilityExport struct {
	UserID      string       `json:"user_id"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"content_type"`
	Data        []byte       `json:"data"`
	Receipt     string       `json:"receipt"`
	GeneratedAt time.Time    `json:"generated_at"`
}

package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Checksummer computes and verifies the keyed integrity hash over audit
// events. The salt is a deployment secret; without it a tamperer cannot
// recompute a valid checksum after modifying a record.
type Checksummer struct {
	salt []byte
}

// NewChecksummer creates a checksummer keyed with the given salt.
func NewChecksummer(salt []byte) *Checksummer {
	return &Checksummer{salt: salt}
}

// Compute returns the hex-encoded HMAC-SHA256 over the canonical form of the
// event. The event's Checksum field is excluded from the input; all other
// fields participate, so it must only be called once the id and timestamp
// are finalized.
func (c *Checksummer) Compute(e Event) (string, error) {
	canonical, err := canonicalize(e)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	mac := hmac.New(sha256.New, c.salt)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the checksum over the event's current content and
// compares it with the stored one in constant time. False means the record
// was modified after write.
func (c *Checksummer) Verify(e Event) bool {
	expected, err := c.Compute(e)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(e.Checksum)) == 1
}

// canonicalize produces a deterministic byte serialization of every field
// except the checksum. encoding/json sorts map keys, including inside the
// details map, which gives stable output for equal content.
func canonicalize(e Event) ([]byte, error) {
	fields := map[string]any{
		"id":             e.ID,
		"timestamp":      e.Timestamp.UTC().Format(time.RFC3339Nano),
		"event_type":     e.EventType,
		"category":       string(e.Category),
		"severity":       string(e.Severity),
		"user_id":        e.UserID,
		"session_id":     e.SessionID,
		"ip_address":     e.IPAddress,
		"user_agent":     e.UserAgent,
		"resource_type":  e.ResourceType,
		"resource_id":    e.ResourceID,
		"action":         e.Action,
		"outcome":        string(e.Outcome),
		"details":        e.Details,
		"risk_score":     e.RiskScore,
		"geolocation":    e.Geolocation,
		"correlation_id": e.CorrelationID,
	}
	return json.Marshal(fields)
}

// NormalizeDetails rounds the details map through JSON so the in-memory
// representation matches what any store will hand back on read (numbers as
// float64, nested maps as map[string]any). Without this, a freshly written
// event and its read-back copy would canonicalize differently and every
// verification would fail.
func NormalizeDetails(details map[string]any) (map[string]any, error) {
	if details == nil {
		return nil, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return normalized, nil
}

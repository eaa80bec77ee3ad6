package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return Event{
		ID:           "e7c9c1f2-0001-4a00-9000-000000000001",
		Timestamp:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		EventType:    "auth_login",
		Category:     CategoryAuthentication,
		Severity:     SeverityLow,
		UserID:       "user-42",
		IPAddress:    "203.0.113.7",
		Action:       "login",
		Outcome:      OutcomeSuccess,
		Details:      map[string]any{"identifier": "hans.mueller", "mfa": true},
		RiskScore:    2,
		Geolocation:  "DE",
	}
}

func TestChecksummer_ComputeDeterministic(t *testing.T) {
	c := NewChecksummer([]byte("test-salt"))

	e := testEvent()
	a, err := c.Compute(e)
	require.NoError(t, err)
	b, err := c.Compute(e)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded SHA-256 HMAC")
}

func TestChecksummer_SaltChangesChecksum(t *testing.T) {
	e := testEvent()

	a, err := NewChecksummer([]byte("salt-a")).Compute(e)
	require.NoError(t, err)
	b, err := NewChecksummer([]byte("salt-b")).Compute(e)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestChecksummer_VerifyDetectsAnyFieldChange(t *testing.T) {
	c := NewChecksummer([]byte("test-salt"))

	base := testEvent()
	sum, err := c.Compute(base)
	require.NoError(t, err)
	base.Checksum = sum
	require.True(t, c.Verify(base))

	mutations := map[string]func(*Event){
		"outcome":    func(e *Event) { e.Outcome = OutcomeDenied },
		"user_id":    func(e *Event) { e.UserID = "user-43" },
		"timestamp":  func(e *Event) { e.Timestamp = e.Timestamp.Add(time.Second) },
		"risk_score": func(e *Event) { e.RiskScore = 1 },
		"details":    func(e *Event) { e.Details["mfa"] = false },
		"ip_address": func(e *Event) { e.IPAddress = "203.0.113.8" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := testEvent()
			e.Details = map[string]any{"identifier": "hans.mueller", "mfa": true}
			e.Checksum = sum
			mutate(&e)
			assert.False(t, c.Verify(e), "mutation of %s must break verification", name)
		})
	}
}

func TestChecksummer_VerifySurvivesJSONRoundTrip(t *testing.T) {
	c := NewChecksummer([]byte("test-salt"))

	e := testEvent()
	// Stores return numbers as float64 and nested objects as generic maps.
	// Normalization at write time makes both forms canonicalize identically.
	e.Details = map[string]any{"record_count": 12, "nested": map[string]any{"a": 1}}
	normalized, err := NormalizeDetails(e.Details)
	require.NoError(t, err)
	e.Details = normalized

	sum, err := c.Compute(e)
	require.NoError(t, err)
	e.Checksum = sum

	assert.True(t, c.Verify(e))
	assert.IsType(t, float64(0), e.Details["record_count"])
}

func TestNormalizeDetails_NilStaysNil(t *testing.T) {
	got, err := NormalizeDetails(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

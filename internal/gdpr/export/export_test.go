package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"werkstattguard/internal/gdpr/models"
	dErrors "werkstattguard/pkg/domain-errors"
)

func samplePackage() *models.ExportPackage {
	generated := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)
	granted := generated.Add(-30 * 24 * time.Hour)
	return &models.ExportPackage{
		UserID:      "user-1",
		GeneratedAt: generated,
		Profile: &models.User{
			ID:        "user-1",
			Email:     "kunde@werkstatt.example",
			Name:      "Hans Mueller",
			CreatedAt: generated.Add(-365 * 24 * time.Hour),
		},
		Consents: []models.ConsentRecord{
			{UserID: "user-1", Type: models.ConsentMarketing, Granted: true, GrantedAt: &granted,
				Metadata: map[string]any{"campaign": "spring"}},
		},
		Sessions: []models.Session{
			{ID: "sess-1", UserID: "user-1", CreatedAt: generated.Add(-time.Hour)},
		},
		WorkshopData: []models.WorkshopRecord{
			{ID: "wr-1", UserID: "user-1", Fields: map[string]any{"vehicle": "VW Golf VII"}},
		},
		AuditTrail: []models.AuditTrailEntry{
			{Timestamp: generated.Add(-time.Minute), EventType: "consent_granted", Action: "record_consent", Outcome: "success"},
		},
		Communications: []models.CommunicationEntry{
			{ID: "mail-1", UserID: "user-1", Channel: "email", Subject: "Rechnung 2026-113", SentAt: generated},
		},
	}
}

func TestEncodeJSON_RoundTrips(t *testing.T) {
	data, err := Encode(samplePackage(), models.FormatJSON)
	require.NoError(t, err)

	var decoded models.ExportPackage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "user-1", decoded.UserID)
	require.NotNil(t, decoded.Profile)
	assert.Equal(t, "kunde@werkstatt.example", decoded.Profile.Email)
	assert.Len(t, decoded.Consents, 1)
	assert.Len(t, decoded.WorkshopData, 1)
}

func TestEncodeCSV_OneRowPerDataPoint(t *testing.T) {
	data, err := Encode(samplePackage(), models.FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)

	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"category", "field", "value"}, rows[0])
	assert.Contains(t, rows, []string{"profile", "email", "kunde@werkstatt.example"})
	assert.Contains(t, rows, []string{"consent", "marketing", "true"})
	assert.Contains(t, rows, []string{"workshop_data:wr-1", "vehicle", "VW Golf VII"})
	assert.Contains(t, rows, []string{"communication", "email", "Rechnung 2026-113"})
}

func TestEncodeXML_FlattensMaps(t *testing.T) {
	data, err := Encode(samplePackage(), models.FormatXML)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "<?xml"))
	assert.Contains(t, text, "<export>")
	assert.Contains(t, text, `<consent type="marketing">`)
	assert.Contains(t, text, `<record id="wr-1">`)
	assert.Contains(t, text, `<field name="vehicle">VW Golf VII</field>`)
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, err := Encode(samplePackage(), "yaml")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestReceipt_SignAndVerify(t *testing.T) {
	signer, err := NewReceiptSigner([]byte("receipt-key"))
	require.NoError(t, err)

	payload := []byte(`{"user_id":"user-1"}`)
	issued := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)
	receipt, err := signer.Sign("user-1", models.FormatJSON, payload, issued)
	require.NoError(t, err)

	claims, err := signer.Verify(receipt)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "json", claims.Format)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), claims.PayloadSHA)
}

func TestReceipt_RejectsForeignKey(t *testing.T) {
	signer, err := NewReceiptSigner([]byte("receipt-key"))
	require.NoError(t, err)
	other, err := NewReceiptSigner([]byte("other-key"))
	require.NoError(t, err)

	receipt, err := signer.Sign("user-1", models.FormatJSON, []byte("{}"), time.Now())
	require.NoError(t, err)

	_, err = other.Verify(receipt)
	assert.Error(t, err)
}

func TestReceipt_RejectsTamperedToken(t *testing.T) {
	signer, err := NewReceiptSigner([]byte("receipt-key"))
	require.NoError(t, err)

	receipt, err := signer.Sign("user-1", models.FormatJSON, []byte("{}"), time.Now())
	require.NoError(t, err)

	parts := strings.Split(receipt, ".")
	require.Len(t, parts, 3)
	parts[1] = parts[1][:len(parts[1])-2] + "xx"
	_, err = signer.Verify(strings.Join(parts, "."))
	assert.Error(t, err)
}

func TestNewReceiptSigner_RequiresKey(t *testing.T) {
	_, err := NewReceiptSigner(nil)
	assert.Error(t, err)
}

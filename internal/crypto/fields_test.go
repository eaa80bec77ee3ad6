package crypto

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	m, err := NewManager(key, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return m
}

func TestEncryptRecord_ReplacesSensitiveFieldsAndSetsMarkers(t *testing.T) {
	m := testManager(t)

	record := map[string]any{
		"name":        "Werkstatt Müller GmbH",
		"owner_email": "hans.mueller@werkstatt.example",
		"phone":       "+49 170 1234567",
	}

	encrypted, err := m.EncryptRecord(record)
	require.NoError(t, err)

	// Untouched fields stay as-is; absent sensitive fields gain no markers.
	assert.Equal(t, "Werkstatt Müller GmbH", encrypted["name"])
	assert.NotContains(t, encrypted, "address"+MarkerSuffix)

	assert.Equal(t, true, encrypted["owner_email"+MarkerSuffix])
	assert.Equal(t, true, encrypted["phone"+MarkerSuffix])

	for _, field := range []string{"owner_email", "phone"} {
		env, ok := encrypted[field].(*Envelope)
		require.True(t, ok, "field %s must be replaced with an envelope", field)
		assert.NotEmpty(t, env.Ciphertext)
		assert.NotEmpty(t, env.IV)
		assert.NotEmpty(t, env.AuthTag)
		assert.NotEqual(t, record[field], env.Ciphertext)
	}

	// Original record is not mutated.
	assert.Equal(t, "hans.mueller@werkstatt.example", record["owner_email"])
}

func TestDecryptRecord_RestoresPlaintextAndDropsMarkers(t *testing.T) {
	m := testManager(t)

	record := map[string]any{
		"name":        "Werkstatt Müller GmbH",
		"owner_email": "hans.mueller@werkstatt.example",
		"phone":       "+49 170 1234567",
	}

	encrypted, err := m.EncryptRecord(record)
	require.NoError(t, err)

	decrypted := m.DecryptRecord(encrypted)
	assert.Equal(t, "hans.mueller@werkstatt.example", decrypted["owner_email"])
	assert.Equal(t, "+49 170 1234567", decrypted["phone"])
	assert.NotContains(t, decrypted, "owner_email"+MarkerSuffix)
	assert.NotContains(t, decrypted, "phone"+MarkerSuffix)
}

func TestDecryptRecord_AfterJSONRoundTrip(t *testing.T) {
	m := testManager(t)

	encrypted, err := m.EncryptRecord(map[string]any{"tax_id": "DE123456789"})
	require.NoError(t, err)

	// Simulate persistence: envelopes come back as generic maps.
	raw, err := json.Marshal(encrypted)
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))

	decrypted := m.DecryptRecord(stored)
	assert.Equal(t, "DE123456789", decrypted["tax_id"])
}

func TestDecryptRecord_BadFieldLeftEncrypted(t *testing.T) {
	m := testManager(t)

	encrypted, err := m.EncryptRecord(map[string]any{
		"owner_email": "a@b.example",
		"phone":       "+49 170 1234567",
	})
	require.NoError(t, err)

	// Corrupt one field; the other must still decrypt.
	encrypted["phone"] = &Envelope{
		Ciphertext: "Z2FyYmFnZQ==",
		IV:         "AAAAAAAAAAAAAAAAAAAAAA==",
		AuthTag:    "AAAAAAAAAAAAAAAAAAAAAA==",
		Algorithm:  Algorithm,
	}

	decrypted := m.DecryptRecord(encrypted)
	assert.Equal(t, "a@b.example", decrypted["owner_email"])

	// Failed field keeps its envelope and marker.
	_, stillEncrypted := decrypted["phone"].(*Envelope)
	assert.True(t, stillEncrypted)
	assert.Equal(t, true, decrypted["phone"+MarkerSuffix])
}

func TestEncryptRecord_NonStringSensitiveField(t *testing.T) {
	m := testManager(t)
	_, err := m.EncryptRecord(map[string]any{"tax_id": 12345})
	assert.Error(t, err)
}

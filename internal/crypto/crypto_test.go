package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "werkstattguard/pkg/domain-errors"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t)

	for _, plaintext := range []string{
		"hans.mueller@werkstatt.example",
		"",
		"+49 170 1234567",
		"Bankverbindung: DE89 3704 0044 0532 0130 00",
	} {
		env, err := Encrypt(plaintext, key)
		require.NoError(t, err)
		assert.Equal(t, Algorithm, env.Algorithm)
		assert.NotEmpty(t, env.IV)
		assert.NotEmpty(t, env.AuthTag)

		got, err := Decrypt(env, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	key := testKey(t)

	a, err := Encrypt("same plaintext", key)
	require.NoError(t, err)
	b, err := Encrypt("same plaintext", key)
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV, "IV must never be reused")
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEncrypt_RejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt("data", []byte("short"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCryptoFailure))
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	env, err := Encrypt("secret", testKey(t))
	require.NoError(t, err)

	got, err := Decrypt(env, testKey(t))
	require.Error(t, err, "wrong key must never yield plaintext")
	assert.Empty(t, got)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCryptoFailure))
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	key := testKey(t)
	env, err := Encrypt("secret data that must stay intact", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	raw[0] ^= 0x01
	env.Ciphertext = base64.StdEncoding.EncodeToString(raw)

	_, err = Decrypt(env, key)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCryptoFailure))
}

func TestDecrypt_TamperedTagFails(t *testing.T) {
	key := testKey(t)
	env, err := Encrypt("secret", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.AuthTag)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	env.AuthTag = base64.StdEncoding.EncodeToString(raw)

	_, err = Decrypt(env, key)
	require.Error(t, err)
}

func TestDecrypt_NilEnvelope(t *testing.T) {
	_, err := Decrypt(nil, testKey(t))
	require.Error(t, err)
}

func TestGenerators_LengthAndUniqueness(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 32)

	iv1, err := GenerateIV()
	require.NoError(t, err)
	iv2, err := GenerateIV()
	require.NoError(t, err)
	assert.Len(t, iv1, 16)
	assert.NotEqual(t, iv1, iv2)
}

func TestNewManager_RejectsShortKey(t *testing.T) {
	_, err := NewManager([]byte("too short"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCryptoFailure))
}

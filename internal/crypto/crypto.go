// Package crypto implements symmetric authenticated encryption for sensitive
// workshop fields at rest, plus password hashing and verification.
//
// All randomness comes from crypto/rand; there is no fallback source. Decrypt
// verifies the GCM authentication tag before returning data and fails closed
// on any mismatch.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"log/slog"

	dErrors "werkstattguard/pkg/domain-errors"
)

// Algorithm identifies the only cipher this module produces. Stored inside
// every envelope so future algorithm migrations can dispatch on it.
const Algorithm = "aes-256-gcm"

const (
	keySize  = 32 // 256-bit keys
	ivSize   = 16 // 128-bit IV, generated fresh per call
	saltSize = 32
	tagSize  = 16
)

// Envelope carries a ciphertext with the parameters needed to decrypt it.
// All byte fields are base64-encoded for storage alongside JSON records.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Algorithm  string `json:"algorithm"`
}

// Encrypt seals plaintext under a 256-bit key with AES-GCM and a fresh
// random 128-bit IV. The authentication tag is returned separately from the
// ciphertext.
func Encrypt(plaintext string, key []byte) (*Envelope, error) {
	if len(key) != keySize {
		return nil, dErrors.New(dErrors.CodeCryptoFailure, "encryption key must be 256 bits")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to initialize cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to initialize GCM")
	}

	iv, err := GenerateIV()
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(tag),
		Algorithm:  Algorithm,
	}, nil
}

// Decrypt opens an envelope, verifying the authentication tag before
// returning any data. A wrong key or tampered ciphertext/tag fails with a
// crypto_failure error; partial plaintext is never returned.
func Decrypt(env *Envelope, key []byte) (string, error) {
	if env == nil {
		return "", dErrors.New(dErrors.CodeCryptoFailure, "nothing to decrypt")
	}
	if len(key) != keySize {
		return "", dErrors.New(dErrors.CodeCryptoFailure, "decryption key must be 256 bits")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed ciphertext")
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed IV")
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed auth tag")
	}
	if len(iv) != ivSize || len(tag) != tagSize {
		return "", dErrors.New(dErrors.CodeCryptoFailure, "invalid IV or auth tag length")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to initialize cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to initialize GCM")
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		// Tag verification failed: wrong key or tampered data. Fail closed.
		return "", dErrors.Wrap(err, dErrors.CodeCryptoFailure, "authentication failed")
	}
	return string(plaintext), nil
}

// GenerateKey returns a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	return randomBytes(keySize, "key")
}

// GenerateSalt returns a new random 256-bit salt.
func GenerateSalt() ([]byte, error) {
	return randomBytes(saltSize, "salt")
}

// GenerateIV returns a new random 128-bit initialization vector.
func GenerateIV() ([]byte, error) {
	return randomBytes(ivSize, "iv")
}

func randomBytes(n int, what string) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "could not generate "+what)
	}
	return buf, nil
}

// Manager encrypts and decrypts sensitive fields under a single master key.
// It is safe for concurrent use; all methods are pure apart from logging.
type Manager struct {
	key    []byte
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger used to report per-field
// decryption failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates an encryption manager for the given 256-bit master key.
func NewManager(masterKey []byte, opts ...Option) (*Manager, error) {
	if len(masterKey) != keySize {
		return nil, dErrors.New(dErrors.CodeCryptoFailure, "master key must be 256 bits")
	}
	m := &Manager{key: masterKey}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Encrypt seals plaintext under the master key.
func (m *Manager) Encrypt(plaintext string) (*Envelope, error) {
	return Encrypt(plaintext, m.key)
}

// Decrypt opens an envelope sealed under the master key.
func (m *Manager) Decrypt(env *Envelope) (string, error) {
	return Decrypt(env, m.key)
}

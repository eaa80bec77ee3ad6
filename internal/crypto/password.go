package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"

	dErrors "werkstattguard/pkg/domain-errors"
)

// DefaultIterations is the PBKDF2 iteration count used for new hashes.
// Existing hashes carry their own count, so raising this default does not
// break verification of previously stored credentials.
const DefaultIterations = 100_000

const passwordHashSize = 64

// PasswordHash is the persisted form of a derived password. The iteration
// count must be stored with the hash so verification stays correct when the
// default changes.
type PasswordHash struct {
	Hash       string `json:"hash"`
	Salt       string `json:"salt"`
	Iterations int    `json:"iterations"`
}

// HashPassword derives a 64-byte PBKDF2-SHA256 hash. When salt is nil a new
// random 256-bit salt is generated.
func HashPassword(password string, salt []byte) (*PasswordHash, error) {
	if password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	}
	if salt == nil {
		var err error
		salt, err = GenerateSalt()
		if err != nil {
			return nil, err
		}
	}

	derived := pbkdf2.Key([]byte(password), salt, DefaultIterations, passwordHashSize, sha256.New)
	return &PasswordHash{
		Hash:       hex.EncodeToString(derived),
		Salt:       hex.EncodeToString(salt),
		Iterations: DefaultIterations,
	}, nil
}

// VerifyPassword re-derives the hash with the stored salt and iteration count
// and compares in constant time. A short-circuiting comparison would leak how
// many leading bytes matched.
func VerifyPassword(password, hash, salt string, iterations int) (bool, error) {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed salt")
	}
	expected, err := hex.DecodeString(hash)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed hash")
	}
	if iterations <= 0 {
		return false, dErrors.New(dErrors.CodeCryptoFailure, "iteration count must be positive")
	}

	derived := pbkdf2.Key([]byte(password), saltBytes, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(derived, expected) == 1, nil
}

// DeriveKey stretches a passphrase into a 256-bit key via PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte, iterations int) ([]byte, error) {
	if len(salt) == 0 {
		return nil, dErrors.New(dErrors.CodeCryptoFailure, "salt is required for key derivation")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New), nil
}

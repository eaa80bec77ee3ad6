package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"werkstattguard/internal/gdpr/models"
)

// receiptIssuer identifies the service in export receipts.
const receiptIssuer = "werkstattguard"

// ReceiptClaims binds a portability export to its content hash, so the data
// subject can later prove what was handed over and when.
type ReceiptClaims struct {
	Format     string `json:"fmt"`
	PayloadSHA string `json:"payload_sha256"`
	jwt.RegisteredClaims
}

// ReceiptSigner issues and verifies signed export receipts.
type ReceiptSigner struct {
	key []byte
}

// NewReceiptSigner creates a signer over an HMAC key.
func NewReceiptSigner(key []byte) (*ReceiptSigner, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("receipt signing key is required")
	}
	return &ReceiptSigner{key: key}, nil
}

// Sign issues a receipt for one encoded export.
func (s *ReceiptSigner) Sign(userID string, format models.ExportFormat, payload []byte, issuedAt time.Time) (string, error) {
	sum := sha256.Sum256(payload)
	claims := ReceiptClaims{
		Format:     string(format),
		PayloadSHA: hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   receiptIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign export receipt: %w", err)
	}
	return token, nil
}

// Verify parses a receipt and returns its claims.
func (s *ReceiptSigner) Verify(receipt string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}
	_, err := jwt.ParseWithClaims(receipt, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithIssuer(receiptIssuer))
	if err != nil {
		return nil, fmt.Errorf("verify export receipt: %w", err)
	}
	return claims, nil
}

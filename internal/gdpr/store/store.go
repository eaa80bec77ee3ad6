// Package store persists consent records, objections, retention
// obligations, and the user data touched by data-subject requests.
package store

import (
	"context"
	"time"

	"werkstattguard/internal/gdpr/models"
	dErrors "werkstattguard/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "gdpr record not found")

//go:generate mockgen -source=store.go -destination=../mocks/store_mocks.go -package=mocks

// ConsentStore persists current consent state, one row per (user, type).
type ConsentStore interface {
	// Upsert inserts or replaces the record for its (user, type) pair.
	Upsert(ctx context.Context, record *models.ConsentRecord) error

	// FindByUserAndType returns the record, or ErrNotFound.
	FindByUserAndType(ctx context.Context, userID string, consentType models.ConsentType) (*models.ConsentRecord, error)

	// ListByUser returns all of a user's consent records.
	ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error)

	// DeleteByUser removes all of a user's consent records.
	DeleteByUser(ctx context.Context, userID string) error
}

// UserStore looks up and mutates identity records.
type UserStore interface {
	// FindByID returns the user, or ErrNotFound.
	FindByID(ctx context.Context, userID string) (*models.User, error)

	// Update overwrites the user record. Used by anonymization.
	Update(ctx context.Context, user *models.User) error

	// Delete removes the user record. Last step of erasure.
	Delete(ctx context.Context, userID string) error
}

// DataStore reads and deletes the per-user rows outside the consent and
// identity tables.
type DataStore interface {
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	ListWorkshopRecords(ctx context.Context, userID string) ([]models.WorkshopRecord, error)
	ListCommunications(ctx context.Context, userID string) ([]models.CommunicationEntry, error)

	DeleteSessions(ctx context.Context, userID string) error
	DeleteAuditEvents(ctx context.Context, userID string) error
	DeleteWorkshopRecords(ctx context.Context, userID string) error
	DeleteAuthFactors(ctx context.Context, userID string) error
}

// RetentionStore lists legal holds that block erasure.
type RetentionStore interface {
	// ListActive returns the obligations still in force at the given time.
	ListActive(ctx context.Context, userID string, now time.Time) ([]models.RetentionObligation, error)
}

// ObjectionStore persists Article 21 objections.
type ObjectionStore interface {
	SaveObjection(ctx context.Context, objection *models.ObjectionRecord) error
	ListObjections(ctx context.Context, userID string) ([]models.ObjectionRecord, error)
}

package audit

import (
	"context"
	"time"

	dErrors "werkstattguard/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "audit record not found")
)

// Store persists audit events. Implementations must treat both event tables
// as append-only; there is no update or delete operation by design.
type Store interface {
	// Append inserts an event into the primary audit table.
	Append(ctx context.Context, event Event) error

	// AppendImmutable duplicates a high/critical event into the append-only
	// immutable table, which carries its own hash column.
	AppendImmutable(ctx context.Context, event Event) error

	// AppendSystemError records a failure of the audit subsystem itself in a
	// separate log, so a failed primary write still leaves a trace.
	AppendSystemError(ctx context.Context, se SystemError) error

	// ListByUser returns a user's events inside [from, to], newest first.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Event, error)

	// Search returns events matching the filter, newest first.
	Search(ctx context.Context, filter Filter) ([]Event, error)

	// CountRecentAuthFailures counts failed or denied authentication events
	// for a login identifier since the given time.
	CountRecentAuthFailures(ctx context.Context, identifier string, since time.Time) (int, error)
}

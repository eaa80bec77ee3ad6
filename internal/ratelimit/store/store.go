// Package store persists rate limit state. State is ephemeral: it may be
// recomputed from zero with no correctness loss beyond temporarily
// permissive behavior.
package store

import (
	"context"
	"time"

	"werkstattguard/internal/ratelimit/models"
)

// WindowStore keeps sliding-window attempt timestamps per key.
type WindowStore interface {
	// Observe prunes timestamps older than now-window, records the current
	// attempt, and returns the resulting count plus the oldest surviving
	// timestamp. Denied attempts are recorded too: how far past the limit a
	// caller keeps pushing drives violation severity.
	Observe(ctx context.Context, key string, now time.Time, window time.Duration) (count int, oldest time.Time, err error)
}

// BucketStore keeps token-bucket state per key.
type BucketStore interface {
	// Take refills the bucket for the elapsed wall-clock time, then spends
	// cost tokens if available. It returns the tokens remaining after the
	// call and whether the spend succeeded. The refill-then-spend sequence
	// is atomic per key.
	Take(ctx context.Context, key string, capacity, refillRate, cost float64, now time.Time) (remaining float64, allowed bool, err error)
}

// PenaltyStore keeps progressive-penalty counters per key.
type PenaltyStore interface {
	// GetPenalty returns the state for a key, or nil when none exists.
	GetPenalty(ctx context.Context, key string) (*models.PenaltyState, error)

	// SavePenalty overwrites the state for a key.
	SavePenalty(ctx context.Context, key string, state models.PenaltyState) error
}

// TrustStore keeps per-identifier trust profiles for the adaptive strategy.
type TrustStore interface {
	// GetTrust returns the profile for an identifier, or nil when the
	// identifier has never been seen.
	GetTrust(ctx context.Context, identifier string) (*models.TrustProfile, error)

	// SaveTrust overwrites the profile.
	SaveTrust(ctx context.Context, profile models.TrustProfile) error
}

// Store bundles all strategy state interfaces. The in-memory implementation
// is only correct for a single instance; multi-instance deployments must use
// the Redis implementation so all replicas share one view of the counters.
type Store interface {
	WindowStore
	BucketStore
	PenaltyStore
	TrustStore
}

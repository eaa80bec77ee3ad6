package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"werkstattguard/internal/ratelimit/models"
)

func TestInMemoryStore_ObservePrunesOldAttempts(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	window := time.Minute

	count, oldest, err := s.Observe(ctx, "k", base, window)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, base, oldest)

	count, _, err = s.Observe(ctx, "k", base.Add(10*time.Second), window)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The first attempt ages out of the window.
	count, oldest, err = s.Observe(ctx, "k", base.Add(window).Add(time.Second), window)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, base.Add(10*time.Second), oldest)
}

func TestInMemoryStore_ObserveIsolatesKeys(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	count, _, err := s.Observe(ctx, "a", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, _, err = s.Observe(ctx, "b", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInMemoryStore_TakeRefillsLazily(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	// New bucket starts full.
	remaining, allowed, err := s.Take(ctx, "k", 3, 1, 1, base)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.InDelta(t, 2, remaining, 1e-9)

	_, allowed, err = s.Take(ctx, "k", 3, 1, 1, base)
	require.NoError(t, err)
	assert.True(t, allowed)
	_, allowed, err = s.Take(ctx, "k", 3, 1, 1, base)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Empty now; same-instant spend fails.
	remaining, allowed, err = s.Take(ctx, "k", 3, 1, 1, base)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.InDelta(t, 0, remaining, 1e-9)

	// One refill interval later exactly one token is back.
	_, allowed, err = s.Take(ctx, "k", 3, 1, 1, base.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, allowed)
	_, allowed, err = s.Take(ctx, "k", 3, 1, 1, base.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestInMemoryStore_TakeCapsAtCapacity(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	_, _, err := s.Take(ctx, "k", 2, 10, 1, base)
	require.NoError(t, err)

	// A long idle period must not overfill the bucket.
	remaining, allowed, err := s.Take(ctx, "k", 2, 10, 1, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.InDelta(t, 1, remaining, 1e-9)
}

func TestInMemoryStore_PenaltyRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	got, err := s.GetPenalty(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := models.PenaltyState{Violations: 2, LastViolation: time.Now().UTC()}
	require.NoError(t, s.SavePenalty(ctx, "k", state))

	got, err = s.GetPenalty(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state, *got)
}

func TestInMemoryStore_TrustRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	got, err := s.GetTrust(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	profile := models.TrustProfile{Identifier: "user-1", Score: 0.61, UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveTrust(ctx, profile))

	got, err = s.GetTrust(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, profile, *got)
}

package store

import (
	"context"
	"sync"
	"time"

	"werkstattguard/internal/ratelimit/models"
)

// InMemoryStore keeps all strategy state in process memory. Correct for a
// single instance and for tests; replicated deployments need RedisStore.
type InMemoryStore struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	buckets   map[string]*models.Bucket
	penalties map[string]models.PenaltyState
	trust     map[string]models.TrustProfile
}

// NewInMemoryStore creates an empty in-memory rate limit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		windows:   make(map[string][]time.Time),
		buckets:   make(map[string]*models.Bucket),
		penalties: make(map[string]models.PenaltyState),
		trust:     make(map[string]models.TrustProfile),
	}
}

func (s *InMemoryStore) Observe(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.windows[key][:0]
	for _, ts := range s.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.windows[key] = kept

	return len(kept), kept[0], nil
}

func (s *InMemoryStore) Take(ctx context.Context, key string, capacity, refillRate, cost float64, now time.Time) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &models.Bucket{Tokens: capacity, LastRefill: now}
		s.buckets[key] = b
	}

	elapsed := now.Sub(b.LastRefill).Seconds()
	if elapsed > 0 {
		b.Tokens += elapsed * refillRate
		if b.Tokens > capacity {
			b.Tokens = capacity
		}
		b.LastRefill = now
	}

	if b.Tokens < cost {
		return b.Tokens, false, nil
	}
	b.Tokens -= cost
	return b.Tokens, true, nil
}

func (s *InMemoryStore) GetPenalty(ctx context.Context, key string) (*models.PenaltyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.penalties[key]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) SavePenalty(ctx context.Context, key string, state models.PenaltyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.penalties[key] = state
	return nil
}

func (s *InMemoryStore) GetTrust(ctx context.Context, identifier string) (*models.TrustProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.trust[identifier]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (s *InMemoryStore) SaveTrust(ctx context.Context, profile models.TrustProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trust[profile.Identifier] = profile
	return nil
}

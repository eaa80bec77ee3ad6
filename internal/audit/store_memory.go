package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps events in process memory. Correct for a single
// instance and for tests; multi-instance deployments need the Postgres store.
type InMemoryStore struct {
	mu           sync.RWMutex
	events       []Event
	immutable    []Event
	systemErrors []SystemError
}

// NewInMemoryStore creates an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) AppendImmutable(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.immutable = append(s.immutable, event)
	return nil
}

func (s *InMemoryStore) AppendSystemError(ctx context.Context, se SystemError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemErrors = append(s.systemErrors, se)
	return nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Event, error) {
	return s.Search(ctx, Filter{UserID: userID, From: from, To: to})
}

func (s *InMemoryStore) Search(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountRecentAuthFailures(ctx context.Context, identifier string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.events {
		if e.Category != CategoryAuthentication {
			continue
		}
		if e.Outcome != OutcomeFailed && e.Outcome != OutcomeDenied {
			continue
		}
		if e.Timestamp.Before(since) {
			continue
		}
		if id, ok := e.Details[DetailIdentifier].(string); ok && id == identifier {
			count++
		}
	}
	return count, nil
}

// ImmutableEvents returns a snapshot of the immutable duplicates. Test helper.
func (s *InMemoryStore) ImmutableEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.immutable))
	copy(out, s.immutable)
	return out
}

// SystemErrors returns a snapshot of recorded subsystem failures. Test helper.
func (s *InMemoryStore) SystemErrors() []SystemError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SystemError, len(s.systemErrors))
	copy(out, s.systemErrors)
	return out
}

// Tamper overwrites a stored event's field by id, bypassing append-only
// semantics. Exists only so tests can simulate post-write modification.
func (s *InMemoryStore) Tamper(id string, mutate func(*Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			mutate(&s.events[i])
			return true
		}
	}
	return false
}

package store

import (
	"context"
	"sync"
	"time"

	"werkstattguard/internal/gdpr/models"
)

// InMemoryStore implements every gdpr store interface in process memory.
// Correct for a single instance and for tests.
type InMemoryStore struct {
	mu             sync.RWMutex
	consents       map[string]map[models.ConsentType]models.ConsentRecord
	users          map[string]models.User
	sessions       map[string][]models.Session
	workshopData   map[string][]models.WorkshopRecord
	communications map[string][]models.CommunicationEntry
	authFactors    map[string][]string
	obligations    map[string][]models.RetentionObligation
	objections     map[string][]models.ObjectionRecord

	auditDeleter func(ctx context.Context, userID string) error
	failures     map[string]error
}

// NewInMemoryStore creates an empty in-memory gdpr store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		consents:       make(map[string]map[models.ConsentType]models.ConsentRecord),
		users:          make(map[string]models.User),
		sessions:       make(map[string][]models.Session),
		workshopData:   make(map[string][]models.WorkshopRecord),
		communications: make(map[string][]models.CommunicationEntry),
		authFactors:    make(map[string][]string),
		obligations:    make(map[string][]models.RetentionObligation),
		objections:     make(map[string][]models.ObjectionRecord),
		failures:       make(map[string]error),
	}
}

func (s *InMemoryStore) Upsert(ctx context.Context, record *models.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType, ok := s.consents[record.UserID]
	if !ok {
		byType = make(map[models.ConsentType]models.ConsentRecord)
		s.consents[record.UserID] = byType
	}
	byType[record.Type] = *record
	return nil
}

func (s *InMemoryStore) FindByUserAndType(ctx context.Context, userID string, consentType models.ConsentType) (*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.consents[userID][consentType]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConsentRecord
	for _, record := range s.consents[userID] {
		out = append(out, record)
	}
	return out, nil
}

func (s *InMemoryStore) DeleteByUser(ctx context.Context, userID string) error {
	if err := s.failure("consents"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consents, userID)
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *InMemoryStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, userID string) error {
	if err := s.failure("users"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

func (s *InMemoryStore) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Session(nil), s.sessions[userID]...), nil
}

func (s *InMemoryStore) ListWorkshopRecords(ctx context.Context, userID string) ([]models.WorkshopRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.WorkshopRecord(nil), s.workshopData[userID]...), nil
}

func (s *InMemoryStore) ListCommunications(ctx context.Context, userID string) ([]models.CommunicationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CommunicationEntry(nil), s.communications[userID]...), nil
}

func (s *InMemoryStore) DeleteSessions(ctx context.Context, userID string) error {
	if err := s.failure("sessions"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *InMemoryStore) DeleteAuditEvents(ctx context.Context, userID string) error {
	if err := s.failure("audit_events"); err != nil {
		return err
	}
	return s.callAuditDeleter(ctx, userID)
}

func (s *InMemoryStore) DeleteWorkshopRecords(ctx context.Context, userID string) error {
	if err := s.failure("workshop_data"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workshopData, userID)
	return nil
}

func (s *InMemoryStore) DeleteAuthFactors(ctx context.Context, userID string) error {
	if err := s.failure("auth_factors"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authFactors, userID)
	return nil
}

func (s *InMemoryStore) ListActive(ctx context.Context, userID string, now time.Time) ([]models.RetentionObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.RetentionObligation
	for _, o := range s.obligations[userID] {
		if o.ExpiresAt.After(now) {
			active = append(active, o)
		}
	}
	return active, nil
}

func (s *InMemoryStore) SaveObjection(ctx context.Context, objection *models.ObjectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objections[objection.UserID] = append(s.objections[objection.UserID], *objection)
	return nil
}

func (s *InMemoryStore) ListObjections(ctx context.Context, userID string) ([]models.ObjectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ObjectionRecord(nil), s.objections[userID]...), nil
}

func (s *InMemoryStore) callAuditDeleter(ctx context.Context, userID string) error {
	s.mu.RLock()
	deleter := s.auditDeleter
	s.mu.RUnlock()
	if deleter == nil {
		return nil
	}
	return deleter(ctx, userID)
}

// Seed helpers for tests and local development.

// AddUser stores an identity record.
func (s *InMemoryStore) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// AddSession stores a session row.
func (s *InMemoryStore) AddSession(session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = append(s.sessions[session.UserID], session)
}

// AddWorkshopRecord stores a workshop data row.
func (s *InMemoryStore) AddWorkshopRecord(record models.WorkshopRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workshopData[record.UserID] = append(s.workshopData[record.UserID], record)
}

// AddCommunication stores a communication entry.
func (s *InMemoryStore) AddCommunication(entry models.CommunicationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communications[entry.UserID] = append(s.communications[entry.UserID], entry)
}

// AddObligation stores a retention obligation.
func (s *InMemoryStore) AddObligation(obligation models.RetentionObligation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations[obligation.UserID] = append(s.obligations[obligation.UserID], obligation)
}

// SetAuditDeleter wires the audit purge callback used by DeleteAuditEvents.
func (s *InMemoryStore) SetAuditDeleter(f func(ctx context.Context, userID string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditDeleter = f
}

// FailTable makes deletes against one logical table return the given error.
// Test helper for partial-deletion scenarios.
func (s *InMemoryStore) FailTable(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[table] = err
}

func (s *InMemoryStore) failure(table string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[table]
}

// HasUser reports whether the user record still exists.
func (s *InMemoryStore) HasUser(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// SessionCount returns how many sessions remain for a user.
func (s *InMemoryStore) SessionCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[userID])
}

// WorkshopRecordCount returns how many workshop rows remain for a user.
func (s *InMemoryStore) WorkshopRecordCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workshopData[userID])
}

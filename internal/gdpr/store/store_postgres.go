package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"werkstattguard/internal/gdpr/models"
)

// PostgresStore persists gdpr state in PostgreSQL. One store covers every
// interface because erasure needs to reach across all subject tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed gdpr store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, record *models.ConsentRecord) error {
	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return fmt.Errorf("encode consent metadata: %w", err)
	}
	query := `
		INSERT INTO consent_records (
			user_id, consent_type, granted, granted_at, withdrawn_at,
			ip_address, user_agent, version, legal_basis, purpose, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, consent_type) DO UPDATE SET
			granted      = EXCLUDED.granted,
			granted_at   = EXCLUDED.granted_at,
			withdrawn_at = EXCLUDED.withdrawn_at,
			ip_address   = EXCLUDED.ip_address,
			user_agent   = EXCLUDED.user_agent,
			version      = EXCLUDED.version,
			legal_basis  = EXCLUDED.legal_basis,
			purpose      = EXCLUDED.purpose,
			metadata     = EXCLUDED.metadata
	`
	_, err = s.db.ExecContext(ctx, query,
		record.UserID,
		string(record.Type),
		record.Granted,
		record.GrantedAt,
		record.WithdrawnAt,
		nullString(record.IPAddress),
		nullString(record.UserAgent),
		nullString(record.Version),
		nullString(record.LegalBasis),
		nullString(record.Purpose),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUserAndType(ctx context.Context, userID string, consentType models.ConsentType) (*models.ConsentRecord, error) {
	query := consentSelect + " WHERE user_id = $1 AND consent_type = $2"
	record, err := scanConsent(s.db.QueryRowContext(ctx, query, userID, string(consentType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find consent record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error) {
	query := consentSelect + " WHERE user_id = $1 ORDER BY consent_type"
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	defer rows.Close()

	var records []models.ConsentRecord
	for rows.Next() {
		record, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM consent_records WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete consent records: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, email, name, phone, address, last_ip, created_at,
		       anonymized, anonymized_at
		FROM users
		WHERE id = $1
	`
	var (
		u            models.User
		name         sql.NullString
		phone        sql.NullString
		address      sql.NullString
		lastIP       sql.NullString
		anonymizedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&u.ID, &u.Email, &name, &phone, &address, &lastIP,
		&u.CreatedAt, &u.Anonymized, &anonymizedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.Name = name.String
	u.Phone = phone.String
	u.Address = address.String
	u.LastIP = lastIP.String
	u.CreatedAt = u.CreatedAt.UTC()
	if anonymizedAt.Valid {
		ts := anonymizedAt.Time.UTC()
		u.AnonymizedAt = &ts
	}
	return &u, nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			email = $2, name = $3, phone = $4, address = $5, last_ip = $6,
			anonymized = $7, anonymized_at = $8
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		nullString(user.Name),
		nullString(user.Phone),
		nullString(user.Address),
		nullString(user.LastIP),
		user.Anonymized,
		user.AnonymizedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, created_at, last_seen_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var (
			sess      models.Session
			ipAddress sql.NullString
			userAgent sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &ipAddress, &userAgent,
			&sess.CreatedAt, &sess.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.IPAddress = ipAddress.String
		sess.UserAgent = userAgent.String
		sess.CreatedAt = sess.CreatedAt.UTC()
		sess.LastSeenAt = sess.LastSeenAt.UTC()
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) ListWorkshopRecords(ctx context.Context, userID string) ([]models.WorkshopRecord, error) {
	query := `
		SELECT id, user_id, fields
		FROM workshop_data
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list workshop records: %w", err)
	}
	defer rows.Close()

	var records []models.WorkshopRecord
	for rows.Next() {
		var (
			record models.WorkshopRecord
			fields []byte
		)
		if err := rows.Scan(&record.ID, &record.UserID, &fields); err != nil {
			return nil, fmt.Errorf("scan workshop record: %w", err)
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &record.Fields); err != nil {
				return nil, fmt.Errorf("decode workshop record fields: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workshop records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) ListCommunications(ctx context.Context, userID string) ([]models.CommunicationEntry, error) {
	query := `
		SELECT id, user_id, channel, subject, sent_at
		FROM communications
		WHERE user_id = $1
		ORDER BY sent_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	var entries []models.CommunicationEntry
	for rows.Next() {
		var entry models.CommunicationEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Channel,
			&entry.Subject, &entry.SentAt); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		entry.SentAt = entry.SentAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communications: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) DeleteSessions(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAuditEvents(ctx context.Context, userID string) error {
	// Only the mutable trail is purged. The immutable table holds
	// escalated security events and stays out of erasure scope.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete audit events: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteWorkshopRecords(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workshop_data WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete workshop records: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAuthFactors(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_factors WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete auth factors: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context, userID string, now time.Time) ([]models.RetentionObligation, error) {
	query := `
		SELECT id, user_id, name, legal_base, expires_at
		FROM retention_obligations
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY expires_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list retention obligations: %w", err)
	}
	defer rows.Close()

	var obligations []models.RetentionObligation
	for rows.Next() {
		var (
			o         models.RetentionObligation
			legalBase sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.Name, &legalBase, &o.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan retention obligation: %w", err)
		}
		o.LegalBase = legalBase.String
		o.ExpiresAt = o.ExpiresAt.UTC()
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention obligations: %w", err)
	}
	return obligations, nil
}

func (s *PostgresStore) SaveObjection(ctx context.Context, objection *models.ObjectionRecord) error {
	query := `
		INSERT INTO objections (id, user_id, processing_type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		objection.ID,
		objection.UserID,
		objection.ProcessingType,
		nullString(objection.Reason),
		objection.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert objection: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListObjections(ctx context.Context, userID string) ([]models.ObjectionRecord, error) {
	query := `
		SELECT id, user_id, processing_type, reason, created_at
		FROM objections
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list objections: %w", err)
	}
	defer rows.Close()

	var objections []models.ObjectionRecord
	for rows.Next() {
		var (
			o      models.ObjectionRecord
			reason sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProcessingType, &reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan objection: %w", err)
		}
		o.Reason = reason.String
		o.CreatedAt = o.CreatedAt.UTC()
		objections = append(objections, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objections: %w", err)
	}
	return objections, nil
}

const consentSelect = `
	SELECT user_id, consent_type, granted, granted_at, withdrawn_at,
	       ip_address, user_agent, version, legal_basis, purpose, metadata
	FROM consent_records
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsent(row rowScanner) (*models.ConsentRecord, error) {
	var (
		record      models.ConsentRecord
		grantedAt   sql.NullTime
		withdrawnAt sql.NullTime
		ipAddress   sql.NullString
		userAgent   sql.NullString
		version     sql.NullString
		legalBasis  sql.NullString
		purpose     sql.NullString
		metadata    []byte
	)
	err := row.Scan(
		&record.UserID, &record.Type, &record.Granted, &grantedAt, &withdrawnAt,
		&ipAddress, &userAgent, &version, &legalBasis, &purpose, &metadata,
	)
	if err != nil {
		return nil, err
	}

	if grantedAt.Valid {
		ts := grantedAt.Time.UTC()
		record.GrantedAt = &ts
	}
	if withdrawnAt.Valid {
		ts := withdrawnAt.Time.UTC()
		record.WithdrawnAt = &ts
	}
	record.IPAddress = ipAddress.String
	record.UserAgent = userAgent.String
	record.Version = version.String
	record.LegalBasis = legalBasis.String
	record.Purpose = purpose.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode consent metadata: %w", err)
		}
	}
	return &record, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

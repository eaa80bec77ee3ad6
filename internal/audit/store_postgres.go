package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PostgresStore persists audit events in PostgreSQL. Both event tables are
// insert-only; the schema grants no UPDATE or DELETE to the application role.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	details, err := marshalDetails(event.Details)
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}
	query := `
		INSERT INTO audit_events (
			id, ts, event_type, category, severity, user_id, session_id,
			ip_address, user_agent, resource_type, resource_id, action,
			outcome, details, risk_score, geolocation, correlation_id, checksum
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		string(event.Category),
		string(event.Severity),
		nullString(event.UserID),
		nullString(event.SessionID),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		nullString(event.ResourceType),
		nullString(event.ResourceID),
		event.Action,
		string(event.Outcome),
		details,
		event.RiskScore,
		nullString(event.Geolocation),
		nullString(event.CorrelationID),
		event.Checksum,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendImmutable(ctx context.Context, event Event) error {
	details, err := marshalDetails(event.Details)
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}
	query := `
		INSERT INTO audit_events_immutable (
			id, ts, event_type, category, severity, user_id, session_id,
			ip_address, user_agent, resource_type, resource_id, action,
			outcome, details, risk_score, geolocation, correlation_id, checksum
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		string(event.Category),
		string(event.Severity),
		nullString(event.UserID),
		nullString(event.SessionID),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		nullString(event.ResourceType),
		nullString(event.ResourceID),
		event.Action,
		string(event.Outcome),
		details,
		event.RiskScore,
		nullString(event.Geolocation),
		nullString(event.CorrelationID),
		event.Checksum,
	)
	if err != nil {
		return fmt.Errorf("insert immutable audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendSystemError(ctx context.Context, se SystemError) error {
	query := `
		INSERT INTO audit_system_errors (ts, operation, message)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.ExecContext(ctx, query, se.Timestamp, se.Operation, se.Message); err != nil {
		return fmt.Errorf("insert audit system error: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Event, error) {
	return s.Search(ctx, Filter{UserID: userID, From: from, To: to})
}

func (s *PostgresStore) Search(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if filter.Category != "" {
		add("category = $%d", string(filter.Category))
	}
	if filter.Severity != "" {
		add("severity = $%d", string(filter.Severity))
	}
	if filter.IPAddress != "" {
		add("ip_address = $%d", filter.IPAddress)
	}
	if filter.Outcome != "" {
		add("outcome = $%d", string(filter.Outcome))
	}
	if !filter.From.IsZero() {
		add("ts >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("ts <= $%d", filter.To)
	}
	if filter.MinRiskScore > 0 {
		add("risk_score >= $%d", filter.MinRiskScore)
	}
	if filter.MaxRiskScore > 0 {
		add("risk_score <= $%d", filter.MaxRiskScore)
	}

	query := `
		SELECT id, ts, event_type, category, severity, user_id, session_id,
		       ip_address, user_agent, resource_type, resource_id, action,
		       outcome, details, risk_score, geolocation, correlation_id, checksum
		FROM audit_events
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) CountRecentAuthFailures(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_events
		WHERE category = $1
		  AND outcome IN ($2, $3)
		  AND ts >= $4
		  AND details->>$5 = $6
	`
	var count int
	err := s.db.QueryRowContext(ctx, query,
		string(CategoryAuthentication),
		string(OutcomeFailed),
		string(OutcomeDenied),
		since,
		DetailIdentifier,
		identifier,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent auth failures: %w", err)
	}
	return count, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e             Event
		userID        sql.NullString
		sessionID     sql.NullString
		ipAddress     sql.NullString
		userAgent     sql.NullString
		resourceType  sql.NullString
		resourceID    sql.NullString
		geolocation   sql.NullString
		correlationID sql.NullString
		details       []byte
	)
	err := rows.Scan(
		&e.ID, &e.Timestamp, &e.EventType, &e.Category, &e.Severity,
		&userID, &sessionID, &ipAddress, &userAgent, &resourceType,
		&resourceID, &e.Action, &e.Outcome, &details, &e.RiskScore,
		&geolocation, &correlationID, &e.Checksum,
	)
	if err != nil {
		return Event{}, err
	}

	e.UserID = userID.String
	e.SessionID = sessionID.String
	e.IPAddress = ipAddress.String
	e.UserAgent = userAgent.String
	e.ResourceType = resourceType.String
	e.ResourceID = resourceID.String
	e.Geolocation = geolocation.String
	e.CorrelationID = correlationID.String
	e.Timestamp = e.Timestamp.UTC()

	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return Event{}, fmt.Errorf("decode event details: %w", err)
		}
	}
	return e, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	return json.Marshal(details)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

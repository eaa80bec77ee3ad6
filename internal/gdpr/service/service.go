// Package service implements the data-subject-rights workflows: consent,
// access, erasure, portability, objection, and anonymization. Every request
// that discloses or destroys data verifies the subject's identity first.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"werkstattguard/internal/audit"
	"werkstattguard/internal/crypto"
	"werkstattguard/internal/gdpr/export"
	"werkstattguard/internal/gdpr/metrics"
	"werkstattguard/internal/gdpr/models"
	"werkstattguard/internal/gdpr/store"
	"werkstattguard/internal/platform/privacy"
	"werkstattguard/internal/platform/tracer"
	dErrors "werkstattguard/pkg/domain-errors"
)

// ComplianceAuditor records compliance and access events in the shared
// audit trail.
type ComplianceAuditor interface {
	LogComplianceEvent(ctx context.Context, ce audit.ComplianceEvent) (*audit.Event, error)
	LogDataAccess(ctx context.Context, de audit.DataAccessEvent) (*audit.Event, error)
	Trail(ctx context.Context, userID string, from, to time.Time) ([]audit.TrailEntry, error)
}

// Stores bundles the persistence collaborators.
type Stores struct {
	Consents   store.ConsentStore
	Users      store.UserStore
	Data       store.DataStore
	Retention  store.RetentionStore
	Objections store.ObjectionStore
}

// auditTrailWindow is how much history an access export includes.
const auditTrailWindow = 90 * 24 * time.Hour

// erasureSteps is the fixed deletion order, chosen to respect foreign-key
// dependencies: the user row goes last so every child table can still
// reference it while being cleared.
var erasureSteps = []string{
	"sessions",
	"consents",
	"audit_events",
	"workshop_data",
	"auth_factors",
	"users",
}

// Manager executes data-subject requests.
type Manager struct {
	stores   Stores
	crypto   *crypto.Manager
	auditor  ComplianceAuditor
	receipts *export.ReceiptSigner
	validate *validator.Validate
	tracer   tracer.Tracer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithTracer sets the tracer for request spans.
func WithTracer(t tracer.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithReceiptSigner enables signed receipts on portability exports.
func WithReceiptSigner(s *export.ReceiptSigner) Option {
	return func(m *Manager) { m.receipts = s }
}

// WithClock overrides the time source. Tests use this for determinism.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a gdpr manager. The crypto manager decrypts workshop data for
// exports; the auditor is mandatory because every request must leave a
// compliance trace.
func New(stores Stores, cryptoMgr *crypto.Manager, auditor ComplianceAuditor, opts ...Option) (*Manager, error) {
	if stores.Consents == nil || stores.Users == nil || stores.Data == nil ||
		stores.Retention == nil || stores.Objections == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "all gdpr stores are required")
	}
	if cryptoMgr == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "crypto manager is required")
	}
	if auditor == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "compliance auditor is required")
	}

	m := &Manager{
		stores:   stores,
		crypto:   cryptoMgr,
		auditor:  auditor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   tracer.NewNoop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RecordConsent upserts the current consent state for one (user, type) pair
// and writes the change into the compliance audit trail. Exactly one of
// granted_at and withdrawn_at is set, matching the granted flag.
func (m *Manager) RecordConsent(ctx context.Context, req models.RecordConsentRequest) (*models.ConsentRecord, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid consent request")
	}
	if !req.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown consent type %q", req.Type))
	}

	now := m.now().UTC()
	record := &models.ConsentRecord{
		UserID:     req.UserID,
		Type:       req.Type,
		Granted:    req.Granted,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		Version:    req.Version,
		LegalBasis: req.LegalBasis,
		Purpose:    req.Purpose,
		Metadata:   req.Metadata,
	}
	if req.Granted {
		record.GrantedAt = &now
	} else {
		record.WithdrawnAt = &now
	}

	if err := m.stores.Consents.Upsert(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent record")
	}
	if m.metrics != nil {
		m.metrics.ConsentChanges.WithLabelValues(string(req.Type), fmt.Sprint(req.Granted)).Inc()
	}

	eventType := "consent_granted"
	if !req.Granted {
		eventType = "consent_withdrawn"
	}
	m.logCompliance(ctx, audit.ComplianceEvent{
		EventType: eventType,
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
		Action:    "record_consent",
		Outcome:   audit.OutcomeSuccess,
		Details: map[string]any{
			"consent_type": string(req.Type),
			"granted":      req.Granted,
			"version":      req.Version,
		},
	})

	return record, nil
}

// GetUserConsents returns current consent state, scoped to one type when
// given.
func (m *Manager) GetUserConsents(ctx context.Context, userID string, consentType models.ConsentType) ([]models.ConsentRecord, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if consentType != "" {
		record, err := m.stores.Consents.FindByUserAndType(ctx, userID, consentType)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent record")
		}
		return []models.ConsentRecord{*record}, nil
	}

	records, err := m.stores.Consents.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent records")
	}
	return records, nil
}

// ProcessDataAccessRequest serves an Article 15 request: verify identity,
// then assemble everything held about the subject into one package. The
// per-category reads run concurrently; workshop data is decrypted with
// partial-failure tolerance so one bad field never blocks the export.
func (m *Manager) ProcessDataAccessRequest(ctx context.Context, req models.AccessRequest) (pkg *models.ExportPackage, err error) {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, tracer.SpanDataAccess,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubjectID(req.UserID)))
	defer func() {
		span.End(err)
		m.recordRequest("access", err, start)
	}()

	if err = m.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid access request")
	}
	if _, err = m.verifyIdentity(ctx, req.UserID, req.Email); err != nil {
		return nil, err
	}

	pkg, err = m.assembleExport(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if _, err = m.auditor.LogDataAccess(ctx, audit.DataAccessEvent{
		UserID:       req.UserID,
		ResourceType: "user_profile",
		Action:       "gdpr_access_export",
		RecordCount:  len(pkg.WorkshopData) + len(pkg.Sessions) + len(pkg.Consents),
		Outcome:      audit.OutcomeSuccess,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "failed to audit access request")
	}
	return pkg, nil
}

// assembleExport gathers every export category concurrently.
func (m *Manager) assembleExport(ctx context.Context, userID string) (*models.ExportPackage, error) {
	pkg := &models.ExportPackage{
		UserID:      userID,
		GeneratedAt: m.now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := m.stores.Users.FindByID(gctx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		pkg.Profile = user
		return nil
	})
	g.Go(func() error {
		consents, err := m.stores.Consents.ListByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("load consents: %w", err)
		}
		pkg.Consents = consents
		return nil
	})
	g.Go(func() error {
		sessions, err := m.stores.Data.ListSessions(gctx, userID)
		if err != nil {
			return fmt.Errorf("load sessions: %w", err)
		}
		pkg.Sessions = sessions
		return nil
	})
	g.Go(func() error {
		records, err := m.stores.Data.ListWorkshopRecords(gctx, userID)
		if err != nil {
			return fmt.Errorf("load workshop data: %w", err)
		}
		for i := range records {
			records[i].Fields = m.crypto.DecryptRecord(records[i].Fields)
		}
		pkg.WorkshopData = records
		return nil
	})
	g.Go(func() error {
		entries, err := m.auditor.Trail(gctx, userID, m.now().Add(-auditTrailWindow), m.now())
		if err != nil {
			return fmt.Errorf("load audit trail: %w", err)
		}
		for _, entry := range entries {
			pkg.AuditTrail = append(pkg.AuditTrail, models.AuditTrailEntry{
				Timestamp: entry.Event.Timestamp,
				EventType: entry.Event.EventType,
				Action:    entry.Event.Action,
				Outcome:   string(entry.Event.Outcome),
				IPAddress: entry.Event.IPAddress,
			})
		}
		return nil
	})
	g.Go(func() error {
		comms, err := m.stores.Data.ListCommunications(gctx, userID)
		if err != nil {
			return fmt.Errorf("load communications: %w", err)
		}
		pkg.Communications = comms
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assemble export package")
	}
	return pkg, nil
}

// ProcessRightToBeForgotten serves an Article 17 request. Identity is
// verified, active retention obligations block the request by name, and the
// request is durably audited before the first delete so even a fully failed
// deletion leaves a trace. Tables are cleared in dependency order;
// per-table failures are logged and skipped, and any failure escalates the
// result to manual review.
func (m *Manager) ProcessRightToBeForgotten(ctx context.Context, req models.ErasureRequest) (result *models.ErasureResult, err error) {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, tracer.SpanErasure,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubjectID(req.UserID)))
	defer func() {
		span.End(err)
		m.recordRequest("erasure", err, start)
	}()

	if err = m.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid erasure request")
	}
	if _, err = m.verifyIdentity(ctx, req.UserID, req.Email); err != nil {
		return nil, err
	}

	obligations, err := m.stores.Retention.ListActive(ctx, req.UserID, m.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check retention obligations")
	}
	if len(obligations) > 0 {
		names := make([]string, len(obligations))
		for i, o := range obligations {
			names[i] = o.Name
		}
		// Naming the blocking obligation is deliberate: the subject needs
		// an actionable reason, and a legal hold is not a secret.
		return nil, dErrors.New(dErrors.CodeNotEligible,
			fmt.Sprintf("erasure blocked by active retention obligations: %s", strings.Join(names, ", ")))
	}

	requestID := m.newID()

	// The audit entry must be durable before any delete begins.
	if _, err = m.auditor.LogComplianceEvent(ctx, audit.ComplianceEvent{
		EventType:  "gdpr_erasure_request",
		UserID:     req.UserID,
		ResourceID: requestID,
		Action:     "erase",
		Outcome:    audit.OutcomeSuccess,
		Details: map[string]any{
			"reason": req.Reason,
			"tables": erasureSteps,
		},
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "erasure aborted: could not audit the request")
	}

	result = &models.ErasureResult{
		RequestID: requestID,
		UserID:    req.UserID,
	}
	for _, table := range erasureSteps {
		if delErr := m.deleteTable(ctx, table, req.UserID); delErr != nil {
			result.FailedTables = append(result.FailedTables, table)
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "erasure step failed",
					"table", table, "error", delErr)
			}
			continue
		}
		result.DeletedTables = append(result.DeletedTables, table)
		if m.metrics != nil {
			m.metrics.ErasedTables.Inc()
		}
	}

	result.RequiresManualReview = len(result.FailedTables) > 0
	result.CompletedAt = m.now().UTC()
	span.SetAttributes(
		tracer.Int64(tracer.AttrTableCount, int64(len(result.DeletedTables))),
		tracer.Bool(tracer.AttrManualReview, result.RequiresManualReview),
	)
	if result.RequiresManualReview && m.metrics != nil {
		m.metrics.ManualReviews.Inc()
	}

	outcome := audit.OutcomeSuccess
	if result.RequiresManualReview {
		outcome = audit.OutcomeFailed
	}
	m.logCompliance(ctx, audit.ComplianceEvent{
		EventType:  "gdpr_erasure_completed",
		UserID:     req.UserID,
		ResourceID: requestID,
		Action:     "erase",
		Outcome:    outcome,
		Details: map[string]any{
			"deleted_tables":         result.DeletedTables,
			"failed_tables":          result.FailedTables,
			"requires_manual_review": result.RequiresManualReview,
		},
	})

	return result, nil
}

func (m *Manager) deleteTable(ctx context.Context, table, userID string) error {
	switch table {
	case "sessions":
		return m.stores.Data.DeleteSessions(ctx, userID)
	case "consents":
		return m.stores.Consents.DeleteByUser(ctx, userID)
	case "audit_events":
		return m.stores.Data.DeleteAuditEvents(ctx, userID)
	case "workshop_data":
		return m.stores.Data.DeleteWorkshopRecords(ctx, userID)
	case "auth_factors":
		return m.stores.Data.DeleteAuthFactors(ctx, userID)
	case "users":
		return m.stores.Users.Delete(ctx, userID)
	default:
		return fmt.Errorf("unknown erasure table %q", table)
	}
}

// ProcessDataPortabilityRequest serves an Article 20 request: the export
// package encoded in the requested format, plus a signed receipt when a
// signer is configured.
func (m *Manager) ProcessDataPortabilityRequest(ctx context.Context, req models.PortabilityRequest) (out *models.PortabilityExport, err error) {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, tracer.SpanPortability,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubjectID(req.UserID)),
		tracer.String(tracer.AttrExportFormat, string(req.Format)))
	defer func() {
		span.End(err)
		m.recordRequest("portability", err, start)
	}()

	if err = m.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid portability request")
	}
	if !req.Format.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}
	if _, err = m.stores.Users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	pkg, err := m.assembleExport(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	data, err := export.Encode(pkg, req.Format)
	if err != nil {
		return nil, err
	}

	out = &models.PortabilityExport{
		UserID:      req.UserID,
		Format:      req.Format,
		ContentType: export.ContentType(req.Format),
		Data:        data,
		GeneratedAt: m.now().UTC(),
	}
	if m.receipts != nil {
		receipt, signErr := m.receipts.Sign(req.UserID, req.Format, data, out.GeneratedAt)
		if signErr != nil {
			return nil, dErrors.Wrap(signErr, dErrors.CodeInternal, "failed to sign export receipt")
		}
		out.Receipt = receipt
	}
	if m.metrics != nil {
		m.metrics.ExportBytes.WithLabelValues(string(req.Format)).Add(float64(len(data)))
	}

	m.logCompliance(ctx, audit.ComplianceEvent{
		EventType: "gdpr_portability_export",
		UserID:    req.UserID,
		Action:    "export",
		Outcome:   audit.OutcomeSuccess,
		Details: map[string]any{
			"format": string(req.Format),
			"bytes":  len(data),
		},
	})
	return out, nil
}

// ProcessObjectionToProcessing serves an Article 21 request: one objection
// record per processing type, with the matching consent withdrawn in the
// same operation so objections and consent state never drift apart.
func (m *Manager) ProcessObjectionToProcessing(ctx context.Context, req models.ObjectionRequest) ([]models.ObjectionRecord, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid objection request")
	}
	if _, err := m.stores.Users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	now := m.now().UTC()
	recorded := make([]models.ObjectionRecord, 0, len(req.Types))
	for _, processingType := range req.Types {
		objection := models.ObjectionRecord{
			ID:             m.newID(),
			UserID:         req.UserID,
			ProcessingType: processingType,
			Reason:         req.Reason,
			CreatedAt:      now,
		}
		if err := m.stores.Objections.SaveObjection(ctx, &objection); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save objection")
		}
		recorded = append(recorded, objection)

		// Withdraw the matching consent when the objected type maps to one.
		if consentType := models.ConsentType(processingType); consentType.IsValid() {
			withdrawn := now
			record := &models.ConsentRecord{
				UserID:      req.UserID,
				Type:        consentType,
				Granted:     false,
				WithdrawnAt: &withdrawn,
				LegalBasis:  "art21_objection",
			}
			if err := m.stores.Consents.Upsert(ctx, record); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw consent")
			}
		}

		m.logCompliance(ctx, audit.ComplianceEvent{
			EventType:  "gdpr_processing_objection",
			UserID:     req.UserID,
			ResourceID: objection.ID,
			Action:     "object",
			Outcome:    audit.OutcomeSuccess,
			Details: map[string]any{
				"processing_type": processingType,
				"reason":          req.Reason,
			},
		})
	}
	return recorded, nil
}

// AnonymizeUserData is the alternative to deletion when a legal hold blocks
// erasure: identifying fields are replaced with marked placeholders and the
// record is tagged anonymized. The original identifier mapping survives
// only inside the anonymization audit entry.
func (m *Manager) AnonymizeUserData(ctx context.Context, userID string) (usr *models.User, err error) {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, tracer.SpanAnonymization,
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubjectID(userID)))
	defer func() {
		span.End(err)
		m.recordRequest("anonymization", err, start)
	}()

	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	user, err := m.stores.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	originalEmail := user.Email
	now := m.now().UTC()

	user.Email = privacy.AnonymizeEmail(user.Email)
	user.Name = "ANONYMIZED"
	user.Phone = "ANONYMIZED"
	user.Address = "ANONYMIZED"
	user.LastIP = privacy.AnonymizeIP(user.LastIP)
	user.Anonymized = true
	user.AnonymizedAt = &now

	if err = m.stores.Users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save anonymized user")
	}

	// The original mapping is preserved only here, for legal traceability.
	m.logCompliance(ctx, audit.ComplianceEvent{
		EventType: "gdpr_anonymization",
		UserID:    userID,
		Action:    "anonymize",
		Outcome:   audit.OutcomeSuccess,
		Details: map[string]any{
			"original_email": originalEmail,
		},
	})
	return user, nil
}

// verifyIdentity matches userID and email against the identity store. The
// error never reveals which half was wrong, a lookup miss and an email
// mismatch are indistinguishable to the caller.
func (m *Manager) verifyIdentity(ctx context.Context, userID, email string) (*models.User, error) {
	user, err := m.stores.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errVerificationFailed()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
	}
	if !strings.EqualFold(user.Email, email) {
		return nil, errVerificationFailed()
	}
	return user, nil
}

func errVerificationFailed() error {
	return dErrors.New(dErrors.CodeVerificationFailed, "identity verification failed")
}

// logCompliance writes a compliance event, logging rather than failing when
// the audit write breaks after the operation itself already succeeded.
func (m *Manager) logCompliance(ctx context.Context, ce audit.ComplianceEvent) {
	if _, err := m.auditor.LogComplianceEvent(ctx, ce); err != nil && m.logger != nil {
		m.logger.ErrorContext(ctx, "failed to write compliance audit entry",
			"event_type", ce.EventType, "error", err)
	}
}

func (m *Manager) recordRequest(kind string, err error, start time.Time) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.metrics.RecordRequest(kind, outcome, m.now().Sub(start).Seconds())
}

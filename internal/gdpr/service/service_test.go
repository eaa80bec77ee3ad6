package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"werkstattguard/internal/audit"
	"werkstattguard/internal/crypto"
	"werkstattguard/internal/gdpr/export"
	"werkstattguard/internal/gdpr/mocks"
	"werkstattguard/internal/gdpr/models"
	"werkstattguard/internal/gdpr/service"
	"werkstattguard/internal/gdpr/store"
	dErrors "werkstattguard/pkg/domain-errors"
)

var fixedNow = time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)

const (
	testUserID = "user-1"
	testEmail  = "kunde@werkstatt-mueller.de"
)

type GDPRServiceSuite struct {
	suite.Suite

	ctx     context.Context
	store   *store.InMemoryStore
	audits  *audit.InMemoryStore
	auditor *audit.Logger
	crypto  *crypto.Manager
	mgr     *service.Manager
}

func TestGDPRServiceSuite(t *testing.T) {
	suite.Run(t, new(GDPRServiceSuite))
}

func (s *GDPRServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()

	var err error
	s.auditor, err = audit.New(s.audits, []byte("audit-salt"), audit.WithClock(func() time.Time { return fixedNow }))
	s.Require().NoError(err)

	s.crypto, err = crypto.NewManager(make([]byte, 32))
	s.Require().NoError(err)

	s.mgr = s.newManager()

	s.store.AddUser(models.User{
		ID:        testUserID,
		Email:     testEmail,
		Name:      "Hans Mueller",
		Phone:     "+49 89 1234567",
		Address:   "Werkstattstr. 1, München",
		LastIP:    "203.0.113.40",
		CreatedAt: fixedNow.Add(-365 * 24 * time.Hour),
	})
}

func (s *GDPRServiceSuite) newManager(opts ...service.Option) *service.Manager {
	all := append([]service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	mgr, err := service.New(service.Stores{
		Consents:   s.store,
		Users:      s.store,
		Data:       s.store,
		Retention:  s.store,
		Objections: s.store,
	}, s.crypto, s.auditor, all...)
	s.Require().NoError(err)
	return mgr
}

func (s *GDPRServiceSuite) complianceEvents(eventType string) []audit.Event {
	events, err := s.audits.Search(s.ctx, audit.Filter{UserID: testUserID, EventType: eventType})
	s.Require().NoError(err)
	return events
}

func (s *GDPRServiceSuite) TestRecordConsent_GrantSetsGrantedAt() {
	record, err := s.mgr.RecordConsent(s.ctx, models.RecordConsentRequest{
		UserID:  testUserID,
		Type:    models.ConsentMarketing,
		Granted: true,
		Version: "v3",
	})
	s.Require().NoError(err)

	s.Require().NotNil(record.GrantedAt)
	s.Equal(fixedNow, *record.GrantedAt)
	s.Nil(record.WithdrawnAt)

	events := s.complianceEvents("consent_granted")
	s.Require().Len(events, 1)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal("marketing", events[0].Details["consent_type"])
}

func (s *GDPRServiceSuite) TestRecordConsent_WithdrawReplacesGrant() {
	_, err := s.mgr.RecordConsent(s.ctx, models.RecordConsentRequest{
		UserID: testUserID, Type: models.ConsentAnalytics, Granted: true,
	})
	s.Require().NoError(err)
	_, err = s.mgr.RecordConsent(s.ctx, models.RecordConsentRequest{
		UserID: testUserID, Type: models.ConsentAnalytics, Granted: false,
	})
	s.Require().NoError(err)

	records, err := s.mgr.GetUserConsents(s.ctx, testUserID, models.ConsentAnalytics)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.False(records[0].Granted)
	s.Nil(records[0].GrantedAt)
	s.Require().NotNil(records[0].WithdrawnAt)

	s.Len(s.complianceEvents("consent_withdrawn"), 1)
}

func (s *GDPRServiceSuite) TestRecordConsent_RejectsUnknownType() {
	_, err := s.mgr.RecordConsent(s.ctx, models.RecordConsentRequest{
		UserID: testUserID, Type: "telepathy", Granted: true,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *GDPRServiceSuite) TestGetUserConsents_MissReturnsEmpty() {
	records, err := s.mgr.GetUserConsents(s.ctx, testUserID, models.ConsentNewsletter)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *GDPRServiceSuite) TestDataAccess_AssemblesAllCategories() {
	s.store.AddSession(models.Session{ID: "sess-1", UserID: testUserID, IPAddress: "203.0.113.40", CreatedAt: fixedNow.Add(-time.Hour)})
	s.store.AddCommunication(models.CommunicationEntry{ID: "mail-1", UserID: testUserID, Channel: "email", Subject: "Rechnung"})

	fields, err := s.crypto.EncryptRecord(map[string]any{
		"vehicle":     "VW Golf VII",
		"owner_email": testEmail,
	})
	s.Require().NoError(err)
	s.store.AddWorkshopRecord(models.WorkshopRecord{ID: "wr-1", UserID: testUserID, Fields: fields})

	_, err = s.mgr.RecordConsent(s.ctx, models.RecordConsentRequest{
		UserID: testUserID, Type: models.ConsentMarketing, Granted: true,
	})
	s.Require().NoError(err)

	pkg, err := s.mgr.ProcessDataAccessRequest(s.ctx, models.AccessRequest{UserID: testUserID, Email: testEmail})
	s.Require().NoError(err)

	s.Require().NotNil(pkg.Profile)
	s.Equal(testEmail, pkg.Profile.Email)
	s.Len(pkg.Consents, 1)
	s.Len(pkg.Sessions, 1)
	s.Len(pkg.Communications, 1)
	s.NotEmpty(pkg.AuditTrail)

	s.Require().Len(pkg.WorkshopData, 1)
	got := pkg.WorkshopData[0].Fields
	s.Equal(testEmail, got["owner_email"])
	s.NotContains(got, "owner_email"+crypto.MarkerSuffix)
	s.Equal("VW Golf VII", got["vehicle"])

	// At-rest copy stays encrypted; the export must not mutate it.
	s.NotEqual(testEmail, fields["owner_email"])

	accesses := s.complianceEvents("data_access")
	s.Require().Len(accesses, 1)
	s.Equal("gdpr_access_export", accesses[0].Action)
}

func (s *GDPRServiceSuite) TestDataAccess_VerificationErrorIsGeneric() {
	_, wrongEmail := s.mgr.ProcessDataAccessRequest(s.ctx, models.AccessRequest{
		UserID: testUserID, Email: "angreifer@example.com",
	})
	_, noSuchUser := s.mgr.ProcessDataAccessRequest(s.ctx, models.AccessRequest{
		UserID: "ghost", Email: testEmail,
	})

	s.Require().Error(wrongEmail)
	s.Require().Error(noSuchUser)
	s.True(dErrors.HasCode(wrongEmail, dErrors.CodeVerificationFailed))
	s.True(dErrors.HasCode(noSuchUser, dErrors.CodeVerificationFailed))
	s.Equal(wrongEmail.Error(), noSuchUser.Error())
}

func (s *GDPRServiceSuite) TestDataAccess_EmailMatchIsCaseInsensitive() {
	_, err := s.mgr.ProcessDataAccessRequest(s.ctx, models.AccessRequest{
		UserID: testUserID, Email: strings.ToUpper(testEmail[:1]) + testEmail[1:],
	})
	s.NoError(err)
}

func (s *GDPRServiceSuite) TestErasure_BlockedByRetentionObligation() {
	s.store.AddSession(models.Session{ID: "sess-1", UserID: testUserID})
	s.store.AddObligation(models.RetentionObligation{
		ID: "ob-1", UserID: testUserID,
		Name:      "tax_records_ao147",
		LegalBase: "§147 AO",
		ExpiresAt: fixedNow.Add(6 * 365 * 24 * time.Hour),
	})

	_, err := s.mgr.ProcessRightToBeForgotten(s.ctx, models.ErasureRequest{
		UserID: testUserID, Email: testEmail,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	s.Contains(err.Error(), "tax_records_ao147")

	// Nothing may be touched while the hold is active.
	s.True(s.store.HasUser(testUserID))
	s.Equal(1, s.store.SessionCount(testUserID))
	s.Empty(s.complianceEvents("gdpr_erasure_request"))
}

func (s *GDPRServiceSuite) TestErasure_ExpiredObligationDoesNotBlock() {
	s.store.AddObligation(models.RetentionObligation{
		ID: "ob-1", UserID: testUserID,
		Name:      "tax_records_ao147",
		ExpiresAt: fixedNow.Add(-24 * time.Hour),
	})

	result, err := s.mgr.ProcessRightToBeForgotten(s.ctx, models.ErasureRequest{
		UserID: testUserID, Email: testEmail,
	})
	s.Require().NoError(err)
	s.False(result.RequiresManualReview)
}

func (s *GDPRServiceSuite) TestErasure_DeletesInDependencyOrder() {
	s.store.AddSession(models.Session{ID: "sess-1", UserID: testUserID})
	s.store.AddWorkshopRecord(models.WorkshopRecord{ID: "wr-1", UserID: testUserID, Fields: map[string]any{"vehicle": "Audi A4"}})

	result, err := s.mgr.ProcessRightToBeForgotten(s.ctx, models.ErasureRequest{
		UserID: testUserID, Email: testEmail, Reason: "closing account",
	})
	s.Require().NoError(err)

	s.Equal([]string{"sessions", "consents", "audit_events", "workshop_data", "auth_factors", "users"}, result.DeletedTables)
	s.Empty(result.FailedTables)
	s.False(result.RequiresManualReview)
	s.NotEmpty(result.RequestID)

	s.False(s.store.HasUser(testUserID))
	s.Zero(s.store.SessionCount(testUserID))
	s.Zero(s.store.WorkshopRecordCount(testUserID))

	requests := s.complianceEvents("gdpr_erasure_request")
	s.Require().Len(requests, 1)
	s.Equal("closing account", requests[0].Details["reason"])

	completed := s.complianceEvents("gdpr_erasure_completed")
	s.Require().Len(completed, 1)
	s.Equal(audit.OutcomeSuccess, completed[0].Outcome)
}

func (s *GDPRServiceSuite) TestErasure_PartialFailureFlagsManualReview() {
	s.store.AddSession(models.Session{ID: "sess-1", UserID: testUserID})
	s.store.FailTable("workshop_data", errors.New("foreign key violation"))

	result, err := s.mgr.ProcessRightToBeForgotten(s.ctx, models.ErasureRequest{
		UserID: testUserID, Email: testEmail,
	})
	s.Require().NoError(err)

	s.Equal([]string{"workshop_data"}, result.FailedTables)
	s.True(result.RequiresManualReview)
	// The remaining tables are still cleared; one failure must not stop the run.
	s.Contains(result.DeletedTables, "sessions")
	s.Contains(result.DeletedTables, "users")
	s.False(s.store.HasUser(testUserID))

	completed := s.complianceEvents("gdpr_erasure_completed")
	s.Require().Len(completed, 1)
	s.Equal(audit.OutcomeFailed, completed[0].Outcome)
	s.Equal(true, completed[0].Details["requires_manual_review"])
}

func (s *GDPRServiceSuite) TestErasure_AbortsWhenAuditWriteFails() {
	ctrl := gomock.NewController(s.T())

	users := mocks.NewMockUserStore(ctrl)
	users.EXPECT().FindByID(gomock.Any(), testUserID).
		Return(&models.User{ID: testUserID, Email: testEmail}, nil)
	retention := mocks.NewMockRetentionStore(ctrl)
	retention.EXPECT().ListActive(gomock.Any(), testUserID, gomock.Any()).Return(nil, nil)

	// No EXPECT on any delete: the controller fails the test if the manager
	// touches data after the audit write was refused.
	data := mocks.NewMockDataStore(ctrl)
	consents := mocks.NewMockConsentStore(ctrl)
	objections := mocks.NewMockObjectionStore(ctrl)

	mgr, err := service.New(service.Stores{
		Consents:   consents,
		Users:      users,
		Data:       data,
		Retention:  retention,
		Objections: objections,
	}, s.crypto, failingAuditor{err: errors.New("kafka broker unreachable")},
		service.WithClock(func() time.Time { return fixedNow }))
	s.Require().NoError(err)

	_, err = mgr.ProcessRightToBeForgotten(s.ctx, models.ErasureRequest{
		UserID: testUserID, Email: testEmail,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuditWriteFailed))
}

func (s *GDPRServiceSuite) TestPortability_JSONWithSignedReceipt() {
	signer, err := export.NewReceiptSigner([]byte("receipt-key"))
	s.Require().NoError(err)
	mgr := s.newManager(service.WithReceiptSigner(signer))

	out, err := mgr.ProcessDataPortabilityRequest(s.ctx, models.PortabilityRequest{
		UserID: testUserID, Format: models.FormatJSON,
	})
	s.Require().NoError(err)

	s.Equal("application/json", out.ContentType)
	var pkg models.ExportPackage
	s.Require().NoError(json.Unmarshal(out.Data, &pkg))
	s.Equal(testUserID, pkg.UserID)

	claims, err := signer.Verify(out.Receipt)
	s.Require().NoError(err)
	s.Equal("json", claims.Format)
	sum := sha256.Sum256(out.Data)
	s.Equal(hex.EncodeToString(sum[:]), claims.PayloadSHA)
	s.Equal(testUserID, claims.Subject)
}

func (s *GDPRServiceSuite) TestPortability_CSVAndXML() {
	for format, contentType := range map[models.ExportFormat]string{
		models.FormatCSV: "text/csv",
		models.FormatXML: "application/xml",
	} {
		out, err := s.mgr.ProcessDataPortabilityRequest(s.ctx, models.PortabilityRequest{
			UserID: testUserID, Format: format,
		})
		s.Require().NoError(err, format)
		s.Equal(contentType, out.ContentType)
		s.NotEmpty(out.Data)
		s.Empty(out.Receipt) // no signer configured on the default manager
	}

	exports := s.complianceEvents("gdpr_portability_export")
	s.Len(exports, 2)
}

func (s *GDPRServiceSuite) TestPortability_RejectsUnsupportedFormat() {
	_, err := s.mgr.ProcessDataPortabilityRequest(s.ctx, models.PortabilityRequest{
		UserID: testUserID, Format: "yaml",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *GDPRServiceSuite) TestPortability_UnknownUser() {
	_, err := s.mgr.ProcessDataPortabilityRequest(s.ctx, models.PortabilityRequest{
		UserID: "ghost", Format: models.FormatJSON,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GDPRServiceSuite) TestObjection_WithdrawsMatchingConsent() {
	_, err := s.mgr.RecordConsent(s.ctx, models.RecordConsentRequest{
		UserID: testUserID, Type: models.ConsentMarketing, Granted: true,
	})
	s.Require().NoError(err)

	recorded, err := s.mgr.ProcessObjectionToProcessing(s.ctx, models.ObjectionRequest{
		UserID: testUserID,
		Types:  []string{"marketing", "credit_scoring"},
		Reason: "no longer a customer",
	})
	s.Require().NoError(err)
	s.Require().Len(recorded, 2)
	s.Equal("marketing", recorded[0].ProcessingType)
	s.Equal("credit_scoring", recorded[1].ProcessingType)

	// The objection to marketing withdraws the matching consent in the same
	// operation.
	consents, err := s.mgr.GetUserConsents(s.ctx, testUserID, models.ConsentMarketing)
	s.Require().NoError(err)
	s.Require().Len(consents, 1)
	s.False(consents[0].Granted)
	s.Equal("art21_objection", consents[0].LegalBasis)

	// "credit_scoring" maps to no consent type, so none is created for it.
	records, err := s.mgr.GetUserConsents(s.ctx, testUserID, "")
	s.Require().NoError(err)
	s.Len(records, 1)

	s.Len(s.complianceEvents("gdpr_processing_objection"), 2)
}

func (s *GDPRServiceSuite) TestObjection_UnknownUser() {
	_, err := s.mgr.ProcessObjectionToProcessing(s.ctx, models.ObjectionRequest{
		UserID: "ghost", Types: []string{"marketing"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GDPRServiceSuite) TestAnonymize_ReplacesIdentifiers() {
	user, err := s.mgr.AnonymizeUserData(s.ctx, testUserID)
	s.Require().NoError(err)

	s.Equal("anonymized@werkstatt-mueller.de", user.Email)
	s.Equal("ANONYMIZED", user.Name)
	s.Equal("ANONYMIZED", user.Phone)
	s.Equal("ANONYMIZED", user.Address)
	s.Equal("203.0.113.0", user.LastIP)
	s.True(user.Anonymized)
	s.Require().NotNil(user.AnonymizedAt)
	s.Equal(fixedNow, *user.AnonymizedAt)

	stored, err := s.store.FindByID(s.ctx, testUserID)
	s.Require().NoError(err)
	s.True(stored.Anonymized)

	// The identifier mapping survives only in the audit trail.
	events := s.complianceEvents("gdpr_anonymization")
	s.Require().Len(events, 1)
	s.Equal(testEmail, events[0].Details["original_email"])
}

func (s *GDPRServiceSuite) TestAnonymize_UnknownUser() {
	_, err := s.mgr.AnonymizeUserData(s.ctx, "ghost")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	mem := store.NewInMemoryStore()
	stores := service.Stores{Consents: mem, Users: mem, Data: mem, Retention: mem, Objections: mem}
	cryptoMgr, err := crypto.NewManager(make([]byte, 32))
	require.NoError(t, err)
	audits := audit.NewInMemoryStore()
	auditor, err := audit.New(audits, []byte("salt"))
	require.NoError(t, err)

	_, err = service.New(service.Stores{}, cryptoMgr, auditor)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = service.New(stores, nil, auditor)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = service.New(stores, cryptoMgr, nil)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// failingAuditor refuses every audit write.
type failingAuditor struct {
	err error
}

func (f failingAuditor) LogComplianceEvent(context.Context, audit.ComplianceEvent) (*audit.Event, error) {
	return nil, f.err
}

func (f failingAuditor) LogDataAccess(context.Context, audit.DataAccessEvent) (*audit.Event, error) {
	return nil, f.err
}

func (f failingAuditor) Trail(context.Context, string, time.Time, time.Time) ([]audit.TrailEntry, error) {
	return nil, f.err
}

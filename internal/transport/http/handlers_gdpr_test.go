package httptransport_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"werkstattguard/internal/audit"
	"werkstattguard/internal/crypto"
	gdprmodels "werkstattguard/internal/gdpr/models"
	gdprservice "werkstattguard/internal/gdpr/service"
	gdprstore "werkstattguard/internal/gdpr/store"
	"werkstattguard/internal/platform/health"
	rlconfig "werkstattguard/internal/ratelimit/config"
	rlmodels "werkstattguard/internal/ratelimit/models"
	rlservice "werkstattguard/internal/ratelimit/service"
	rlstore "werkstattguard/internal/ratelimit/store"
	httptransport "werkstattguard/internal/transport/http"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testUserID = "user-1"
	testEmail  = "kunde@werkstatt.example"
	adminToken = "operator-secret"
)

type HandlersSuite struct {
	suite.Suite

	store  *gdprstore.InMemoryStore
	audits *audit.InMemoryStore
	server http.Handler
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.store = gdprstore.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()

	auditor, err := audit.New(s.audits, []byte("audit-salt"))
	s.Require().NoError(err)
	cryptoMgr, err := crypto.NewManager(make([]byte, 32))
	s.Require().NoError(err)

	gdpr, err := gdprservice.New(gdprservice.Stores{
		Consents:   s.store,
		Users:      s.store,
		Data:       s.store,
		Retention:  s.store,
		Objections: s.store,
	}, cryptoMgr, auditor)
	s.Require().NoError(err)

	limits, err := rlservice.New(rlstore.NewInMemoryStore(),
		rlservice.WithActionConfig(rlmodels.ActionAPI, rlconfig.ActionConfig{
			Requests: 3,
			Window:   time.Minute,
			FailMode: rlconfig.FailOpen,
		}))
	s.Require().NoError(err)

	handler := httptransport.NewHandler(gdpr, limits, auditor, testLogger(),
		httptransport.WithHealth(health.New("test")),
		httptransport.WithAdminToken(adminToken),
	)
	s.server = httptransport.NewRouter(handler)

	s.store.AddUser(gdprmodels.User{
		ID:        testUserID,
		Email:     testEmail,
		Name:      "Hans Mueller",
		CreatedAt: time.Now().Add(-time.Hour),
	})
}

func (s *HandlersSuite) do(method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.9:44210"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "werkstatt-app/2.4")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.server.ServeHTTP(w, req)
	return w
}

func (s *HandlersSuite) TestRecordConsent_EnrichesTransportMetadata() {
	w := s.do(http.MethodPost, "/gdpr/consent", map[string]any{
		"user_id":      testUserID,
		"consent_type": "marketing",
		"granted":      true,
	}, nil)
	s.Require().Equal(http.StatusCreated, w.Code)

	var record gdprmodels.ConsentRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &record))
	s.Equal("203.0.113.9", record.IPAddress)
	s.Equal("werkstatt-app/2.4", record.UserAgent)
	s.True(record.Granted)
}

func (s *HandlersSuite) TestRecordConsent_InvalidBody() {
	req := httptest.NewRequest(http.MethodPost, "/gdpr/consent", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.server.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersSuite) TestListConsents_UnknownTypeRejected() {
	w := s.do(http.MethodGet, "/gdpr/consent/"+testUserID+"?type=telepathy", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersSuite) TestListConsents_EmptyIsAnArray() {
	w := s.do(http.MethodGet, "/gdpr/consent/"+testUserID, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"consents":[]}`, w.Body.String())
}

func (s *HandlersSuite) TestDataAccess_VerificationFailureIs403() {
	w := s.do(http.MethodPost, "/gdpr/access", map[string]any{
		"user_id": testUserID,
		"email":   "angreifer@example.com",
	}, nil)
	s.Require().Equal(http.StatusForbidden, w.Code)

	var resp map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("verification_failed", resp["error"])
}

func (s *HandlersSuite) TestDataAccess_ReturnsPackage() {
	w := s.do(http.MethodPost, "/gdpr/access", map[string]any{
		"user_id": testUserID,
		"email":   testEmail,
	}, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var pkg gdprmodels.ExportPackage
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &pkg))
	s.Equal(testUserID, pkg.UserID)
	s.Require().NotNil(pkg.Profile)
	s.Equal(testEmail, pkg.Profile.Email)
}

func (s *HandlersSuite) TestErasure_BlockedByRetentionIs409() {
	s.store.AddObligation(gdprmodels.RetentionObligation{
		ID: "ob-1", UserID: testUserID,
		Name:      "tax_records_ao147",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	w := s.do(http.MethodPost, "/gdpr/erasure", map[string]any{
		"user_id": testUserID,
		"email":   testEmail,
	}, nil)
	s.Require().Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), "tax_records_ao147")
}

func (s *HandlersSuite) TestErasure_PartialFailureIs202() {
	s.store.FailTable("workshop_data", errors.New("foreign key violation"))
	w := s.do(http.MethodPost, "/gdpr/erasure", map[string]any{
		"user_id": testUserID,
		"email":   testEmail,
	}, nil)
	s.Require().Equal(http.StatusAccepted, w.Code)

	var result gdprmodels.ErasureResult
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &result))
	s.True(result.RequiresManualReview)
	s.Equal([]string{"workshop_data"}, result.FailedTables)
}

func (s *HandlersSuite) TestErasure_FullSuccessIs200() {
	w := s.do(http.MethodPost, "/gdpr/erasure", map[string]any{
		"user_id": testUserID,
		"email":   testEmail,
	}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.False(s.store.HasUser(testUserID))
}

func (s *HandlersSuite) TestPortabilityExport_SetsDownloadHeaders() {
	w := s.do(http.MethodPost, "/gdpr/export", map[string]any{
		"user_id": testUserID,
		"format":  "csv",
	}, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("text/csv", w.Header().Get("Content-Type"))
	s.Equal(`attachment; filename="export.csv"`, w.Header().Get("Content-Disposition"))
	s.NotEmpty(w.Body.Bytes())
}

func (s *HandlersSuite) TestObjection_Created() {
	w := s.do(http.MethodPost, "/gdpr/objection", map[string]any{
		"user_id": testUserID,
		"types":   []string{"marketing"},
	}, nil)
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Contains(w.Body.String(), "marketing")
}

func (s *HandlersSuite) TestAnonymize_ReturnsPlaceholders() {
	w := s.do(http.MethodPost, "/gdpr/anonymize/"+testUserID, nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var user gdprmodels.User
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &user))
	s.Equal("ANONYMIZED", user.Name)
	s.True(user.Anonymized)
}

func (s *HandlersSuite) TestRateLimit_DeniesWithRetryAfter() {
	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = s.do(http.MethodGet, "/gdpr/consent/"+testUserID, nil, nil)
	}
	s.Require().Equal(http.StatusTooManyRequests, last.Code)
	s.NotEmpty(last.Header().Get("Retry-After"))
	s.Contains(last.Body.String(), "rate_limited")
}

func (s *HandlersSuite) TestRateLimit_SpoofedForwardedForGetsNoExtraBudget() {
	// No trusted proxies are configured, so the limiter keys on the
	// connection address. Rotating X-Forwarded-For must not reset it.
	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = s.do(http.MethodGet, "/gdpr/consent/"+testUserID, nil, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1),
		})
	}
	s.Require().Equal(http.StatusTooManyRequests, last.Code)
	s.Contains(last.Body.String(), "rate_limited")
}

func (s *HandlersSuite) TestAudit_RequiresAdminToken() {
	w := s.do(http.MethodGet, "/audit/events", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersSuite) TestAudit_SearchAndSummary() {
	// One consent change seeds the trail.
	s.do(http.MethodPost, "/gdpr/consent", map[string]any{
		"user_id":      testUserID,
		"consent_type": "marketing",
		"granted":      true,
	}, nil)

	header := map[string]string{"X-Admin-Token": adminToken}

	w := s.do(http.MethodGet, "/audit/events?user_id="+testUserID, nil, header)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "consent_granted")

	w = s.do(http.MethodGet, "/audit/trail/"+testUserID, nil, header)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"tamper_detected":false`)

	w = s.do(http.MethodGet, "/audit/summary?days=7", nil, header)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "total_events")
}

func (s *HandlersSuite) TestAudit_RejectsBadTimestamp() {
	w := s.do(http.MethodGet, "/audit/events?from=yesterday", nil,
		map[string]string{"X-Admin-Token": adminToken})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersSuite) TestHealth_Liveness() {
	w := s.do(http.MethodGet, "/health/live", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "alive")
}

func TestContentTypeEnforced(t *testing.T) {
	// handled by middleware before routing
	s := new(HandlersSuite)
	s.SetT(t)
	s.SetupTest()

	req := httptest.NewRequest(http.MethodPost, "/gdpr/consent", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	s.server.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}
}

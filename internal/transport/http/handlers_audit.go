package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"werkstattguard/internal/audit"
	"werkstattguard/internal/transport/http/json"
	"werkstattguard/internal/transport/http/shared"
	dErrors "werkstattguard/pkg/domain-errors"
)

// defaultTrailWindow bounds an unqualified trail query.
const defaultTrailWindow = 90 * 24 * time.Hour

func (h *Handler) handleAuditSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		UserID:    q.Get("user_id"),
		EventType: q.Get("event_type"),
		Category:  audit.Category(q.Get("category")),
		Severity:  audit.Severity(q.Get("severity")),
		IPAddress: q.Get("ip_address"),
		Outcome:   audit.Outcome(q.Get("outcome")),
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid from timestamp"))
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid to timestamp"))
		return
	}
	if filter.MinRiskScore, err = parseInt(q.Get("min_risk_score")); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid min_risk_score"))
		return
	}
	if filter.Limit, err = parseInt(q.Get("limit")); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid limit"))
		return
	}

	events, err := h.audit.Search(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	q := r.URL.Query()

	to, err := parseTime(q.Get("to"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid to timestamp"))
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from, err := parseTime(q.Get("from"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid from timestamp"))
		return
	}
	if from.IsZero() {
		from = to.Add(-defaultTrailWindow)
	}

	entries, err := h.audit.Trail(r.Context(), userID, from, to)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{"trail": entries})
}

func (h *Handler) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	days, err := parseInt(r.URL.Query().Get("days"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid days"))
		return
	}
	if days == 0 {
		days = 30
	}

	summary, err := h.audit.SecurityMetrics(r.Context(), days)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, summary)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

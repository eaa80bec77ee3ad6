package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"werkstattguard/internal/gdpr/models"
	"werkstattguard/internal/platform/middleware"
	"werkstattguard/internal/transport/http/json"
	"werkstattguard/internal/transport/http/shared"
	dErrors "werkstattguard/pkg/domain-errors"
)

func (h *Handler) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[models.RecordConsentRequest](w, r, h.logger)
	if !ok {
		return
	}
	// Transport metadata beats whatever the client claims about itself.
	req.IPAddress = middleware.GetClientIP(r.Context())
	req.UserAgent = middleware.GetUserAgent(r.Context())

	record, err := h.gdpr.RecordConsent(r.Context(), *req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	consentType := models.ConsentType(r.URL.Query().Get("type"))
	if consentType != "" && !consentType.IsValid() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown consent type"))
		return
	}

	records, err := h.gdpr.GetUserConsents(r.Context(), userID, consentType)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if records == nil {
		records = []models.ConsentRecord{}
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{"consents": records})
}

func (h *Handler) handleDataAccess(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[models.AccessRequest](w, r, h.logger)
	if !ok {
		return
	}
	pkg, err := h.gdpr.ProcessDataAccessRequest(r.Context(), *req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, pkg)
}

func (h *Handler) handleErasure(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[models.ErasureRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.gdpr.ProcessRightToBeForgotten(r.Context(), *req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if result.RequiresManualReview {
		// Partial deletion: the subject gets the honest partial result and
		// operations pick it up from the manual review queue.
		status = http.StatusAccepted
	}
	json.WriteJSON(w, status, result)
}

func (h *Handler) handlePortabilityExport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[models.PortabilityRequest](w, r, h.logger)
	if !ok {
		return
	}
	out, err := h.gdpr.ProcessDataPortabilityRequest(r.Context(), *req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="export.`+string(out.Format)+`"`)
	if out.Receipt != "" {
		w.Header().Set("X-Export-Receipt", out.Receipt)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

func (h *Handler) handleObjection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[models.ObjectionRequest](w, r, h.logger)
	if !ok {
		return
	}
	recorded, err := h.gdpr.ProcessObjectionToProcessing(r.Context(), *req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusCreated, map[string]any{"objections": recorded})
}

func (h *Handler) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	user, err := h.gdpr.AnonymizeUserData(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, user)
}

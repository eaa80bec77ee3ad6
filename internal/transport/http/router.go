// Package httptransport is the thin HTTP layer over the security core. It
// delegates to domain services without embedding business logic so transport
// concerns remain isolated.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"werkstattguard/internal/audit"
	"werkstattguard/internal/gdpr/service"
	"werkstattguard/internal/platform/health"
	"werkstattguard/internal/platform/middleware"
	rlservice "werkstattguard/internal/ratelimit/service"
	"werkstattguard/internal/transport/http/shared"
	dErrors "werkstattguard/pkg/domain-errors"
)

// Handler bundles the domain services behind the HTTP surface.
type Handler struct {
	gdpr           *service.Manager
	limits         *rlservice.Manager
	audit          *audit.Logger
	health         *health.Handler
	logger         *slog.Logger
	adminToken     string
	trustedProxies []netip.Prefix
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealth mounts the health probe endpoints.
func WithHealth(h *health.Handler) Option {
	return func(handler *Handler) { handler.health = h }
}

// WithAdminToken protects the audit endpoints with a shared operator token.
// Without a token the audit surface is not mounted at all.
func WithAdminToken(token string) Option {
	return func(handler *Handler) { handler.adminToken = token }
}

// WithTrustedProxies lists the proxy prefixes allowed to set forwarding
// headers. Without it, client identity always comes from the connection.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(handler *Handler) { handler.trustedProxies = prefixes }
}

// NewHandler creates the HTTP handler over the given services.
func NewHandler(gdpr *service.Manager, limits *rlservice.Manager, auditor *audit.Logger, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		gdpr:   gdpr,
		limits: limits,
		audit:  auditor,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata(h.trustedProxies))
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	if h.health != nil {
		h.health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/gdpr", func(r chi.Router) {
		r.Use(h.rateLimit())

		r.Post("/consent", h.handleRecordConsent)
		r.Get("/consent/{userID}", h.handleListConsents)
		r.Post("/access", h.handleDataAccess)
		r.Post("/erasure", h.handleErasure)
		r.Post("/export", h.handlePortabilityExport)
		r.Post("/objection", h.handleObjection)
		r.Post("/anonymize/{userID}", h.handleAnonymize)
	})

	if h.adminToken != "" {
		r.Route("/audit", func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(h.adminToken, h.logger))

			r.Get("/events", h.handleAuditSearch)
			r.Get("/trail/{userID}", h.handleAuditTrail)
			r.Get("/summary", h.handleAuditSummary)
		})
	}

	return r
}

// decodeJSON decodes a JSON request body into the target type. On failure it
// writes the error response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "failed to decode request body",
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

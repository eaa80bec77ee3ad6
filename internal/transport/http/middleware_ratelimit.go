package httptransport

import (
	"net/http"
	"strconv"

	"werkstattguard/internal/platform/middleware"
	"werkstattguard/internal/ratelimit/models"
	"werkstattguard/internal/transport/http/shared"
	dErrors "werkstattguard/pkg/domain-errors"
)

// rateLimit admits requests through the sliding window limiter, keyed by
// client IP. Denials answer 429 with Retry-After; limiter failures follow the
// per-action fail policy inside the manager, so a store outage never 500s
// here.
func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.limits == nil {
				next.ServeHTTP(w, r)
				return
			}

			identifier := middleware.GetClientIP(r.Context())
			result, err := h.limits.CheckRateLimit(r.Context(), identifier, models.ActionAPI)
			if err != nil {
				shared.WriteError(w, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				shared.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

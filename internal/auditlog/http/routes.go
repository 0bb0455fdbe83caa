package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/facturia/facturia/internal/platform/httpx"
	"github.com/facturia/facturia/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit query and export endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(h.requireAdminPanel)
		gr.Get("/users/{id}/actions", h.handleUserActions)
		gr.Get("/users/{id}/history", h.handleUserHistory)
		gr.Get("/suspicious", h.handleSuspicious)
		gr.Get("/report", h.handleReport)
		gr.Group(func(er chi.Router) {
			er.Use(limiter)
			er.Get("/report.xlsx", h.handleReportXLSX)
			er.Get("/report.csv", h.handleReportCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor := shared.ActorFromContext(r.Context()); actor != nil {
		return "user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

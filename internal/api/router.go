package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"surfscale-engine/internal/observability"
)

// DefaultTimeout leaves room for provider retries inside one request.
const DefaultTimeout = 90 * time.Second

func Router(h *SurfHandler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/rules", h.Rules)
		r.Put("/rules", h.SaveRules)
		r.Get("/logs", h.Logs)
		r.Get("/schedule", h.ScheduleStatus)
		r.Put("/settings/{key}", h.SaveSetting)
		r.Get("/accounts", h.Accounts)
		r.Post("/accounts/import", h.ImportAccounts)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/campaigns", h.Campaigns)
			r.Post("/refresh", h.Refresh)
			r.Get("/analysis", h.Analysis)
			r.Put("/campaigns/{key}/surf", h.SetSurf)
			r.Post("/surf", h.RunCycle)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}

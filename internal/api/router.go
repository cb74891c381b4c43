package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/scheduler/status", h.SchedulerStatus)
		r.Post("/scheduler/start", h.SchedulerStart)
		r.Post("/scheduler/stop", h.SchedulerStop)

		r.Post("/campaigns/{campaignID}/run", h.RunCampaign)
		r.Get("/campaigns/{campaignID}/last-run", h.LastRun)

		r.Get("/sweeps/last", h.LastSweep)

		r.Get("/quota/{tenantID}/{userID}", h.QuotaUsage)
	})

	return r
}

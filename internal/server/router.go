package server

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Evalutik/hardstop/internal/middleware"
)

// NewRouter creates the control API router.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.SetHeader("Content-Type", "application/json"))

	r.Get("/health", h.HandleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/arm", h.HandleArm)
		r.Post("/cancel", h.HandleCancel)
		r.Get("/status", h.HandleStatus)
		r.Get("/events", h.HandleEvents)
		r.Post("/uninstall", h.HandleUninstall)
	})

	return r
}

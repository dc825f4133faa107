package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all sweep routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sweeps", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/export", h.HandleExport)
	})
}

// Package handlers provides HTTP handlers for parameter sweeps.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/internal/modules/sweep"
)

const maxPlanBytes = 1 << 20

// Handler handles sweep HTTP requests
type Handler struct {
	runner   *sweep.Runner
	repo     *sweep.Repository
	exporter sweep.Exporter
	// Lifetime of background sweeps started with ?async=true
	baseCtx context.Context
	log     zerolog.Logger
}

// NewHandler creates a new sweep handler. exporter may be nil, in which case
// the export route answers 501.
func NewHandler(
	baseCtx context.Context,
	runner *sweep.Runner,
	repo *sweep.Repository,
	exporter sweep.Exporter,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		runner:   runner,
		repo:     repo,
		exporter: exporter,
		baseCtx:  baseCtx,
		log:      log.With().Str("handler", "sweep").Logger(),
	}
}

// HandleCreate handles POST /api/sweeps
//
// The body is a plan (JSON or YAML); fields it leaves out take the defaults
// of its kind. By default the sweep runs within the request and the full
// sweep is returned. With ?async=true the sweep runs in the background and
// the response is 202 with the sweep header; progress is streamed as events.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPlanBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, err := sweep.ParsePlan(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		header, err := h.runner.Start(h.baseCtx, plan)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"data": header,
			"metadata": map[string]interface{}{
				"id":        header.ID,
				"timestamp": header.CreatedAt.Format(time.RFC3339),
			},
		})
		return
	}

	s, err := h.runner.Run(r.Context(), plan)
	if err != nil && s == nil {
		h.writeError(w, err)
		return
	}

	// A failed point still yields a stored sweep with status "failed".
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": s,
		"metadata": map[string]interface{}{
			"id":        s.ID,
			"points":    len(s.Points),
			"timestamp": s.CreatedAt.Format(time.RFC3339),
		},
	})
}

// HandleList handles GET /api/sweeps?limit=n
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sweeps, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": sweeps,
		"metadata": map[string]interface{}{
			"count":     len(sweeps),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/sweeps/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": s,
		"metadata": map[string]interface{}{
			"id":        s.ID,
			"points":    len(s.Points),
			"timestamp": s.CreatedAt.Format(time.RFC3339),
		},
	})
}

// HandleExport handles POST /api/sweeps/{id}/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		http.Error(w, "Archiving is not configured", http.StatusNotImplemented)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.exporter.Export(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sweep.ErrInvalidPlan), errors.Is(err, simulation.ErrInvalidConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, sweep.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, "Sweep cancelled", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg("Sweep request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response. The body is encoded before the status is
// sent, so a value that cannot be encoded becomes a 500.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

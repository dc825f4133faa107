// Package handlers provides HTTP handlers for simulation runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/simulation"
)

// Handler handles simulation HTTP requests
type Handler struct {
	simulator     *simulation.Simulator
	repo          *simulation.Repository
	bus           *events.Bus
	defaultTrials int
	log           zerolog.Logger
}

// NewHandler creates a new simulation handler. Requests that leave trials
// unset run defaultTrials trials.
func NewHandler(
	simulator *simulation.Simulator,
	repo *simulation.Repository,
	bus *events.Bus,
	defaultTrials int,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		simulator:     simulator,
		repo:          repo,
		bus:           bus,
		defaultTrials: defaultTrials,
		log:           log.With().Str("handler", "simulation").Logger(),
	}
}

// HandleCreate handles POST /api/simulations
//
// The body is a simulation.Params object. The run is executed synchronously,
// stored, and returned. Per-trial samples are only included with
// ?samples=true.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var params simulation.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if params.Trials == 0 {
		params.Trials = h.defaultTrials
	}

	withSamples := r.URL.Query().Get("samples") == "true"
	res, err := h.simulator.Simulate(r.Context(), params, simulation.Options{KeepSamples: withSamples})
	if err != nil {
		h.writeError(w, err)
		return
	}

	run, err := h.repo.Save(r.Context(), res)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.bus.Emit("simulation", &events.SimulationCompletedData{
		RunID:         run.ID,
		Seed:          res.Seed,
		Trials:        res.Params.Trials,
		Repeaters:     res.Params.Repeaters,
		FinalFidelity: res.FinalFidelity(),
		MeanTime:      res.BottleneckTime.Mean,
	})

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": res,
		"metadata": map[string]interface{}{
			"id":        run.ID,
			"timestamp": run.CreatedAt.Format(time.RFC3339),
		},
	})
}

// HandleList handles GET /api/simulations?limit=n
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

	runs, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": runs,
		"metadata": map[string]interface{}{
			"count":     len(runs),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/simulations/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run.Result,
		"metadata": map[string]interface{}{
			"id":        run.ID,
			"timestamp": run.CreatedAt.Format(time.RFC3339),
		},
	})
}

// HandleDelete handles DELETE /api/simulations/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, simulation.ErrInvalidConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, simulation.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, "Simulation cancelled", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg("Simulation request failed")
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

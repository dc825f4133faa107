package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qrepeater/internal/modules/link"
	"github.com/aristath/qrepeater/internal/modules/montecarlo"
	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/internal/modules/sweep"
	testdb "github.com/aristath/qrepeater/internal/testing"
)

type stubExporter struct {
	ids []string
}

func (e *stubExporter) Export(_ context.Context, id string) error {
	e.ids = append(e.ids, id)
	return nil
}

type fixture struct {
	router http.Handler
	runner *sweep.Runner
}

func setup(t *testing.T, exporter sweep.Exporter) fixture {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db := testdb.NewTestDB(t, "simulations")

	sim := simulation.NewSimulator(link.DefaultModel(), montecarlo.NewEngine(2), 0, logger)
	repo := sweep.NewRepository(db.Conn(), logger)
	runner := sweep.NewRunner(sim, repo, nil, logger)
	handler := NewHandler(context.Background(), runner, repo, exporter, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return fixture{router: router, runner: runner}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type sweepResponse struct {
	Data     sweep.Sweep            `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

func decodeSweep(t *testing.T, w *httptest.ResponseRecorder) sweepResponse {
	t.Helper()
	var resp sweepResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

const smallPlan = `{"kind": "repeater_count", "to": 2, "seed": 9, "base": {"trials": 200}}`

func TestHandleCreate_Sync(t *testing.T) {
	f := setup(t, nil)

	w := f.do(http.MethodPost, "/api/sweeps", smallPlan)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeSweep(t, w)
	assert.Equal(t, sweep.StatusCompleted, resp.Data.Status)
	assert.Len(t, resp.Data.Points, 4)
	assert.Equal(t, resp.Data.ID, resp.Metadata["id"])
	assert.Equal(t, 2, resp.Data.Plan.Base.Repeaters)

	w = f.do(http.MethodGet, "/api/sweeps/"+resp.Data.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeSweep(t, w)
	assert.Equal(t, resp.Data.Points, got.Data.Points)
}

func TestHandleCreate_YAMLBody(t *testing.T) {
	f := setup(t, nil)

	body := "kind: initial_fidelity\nfrom: 0.9\nto: 1.0\nstep: 0.05\nseed: 3\nbase:\n  trials: 100\n"
	w := f.do(http.MethodPost, "/api/sweeps", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeSweep(t, w)
	require.Len(t, resp.Data.Points, 3)
	assert.InDelta(t, 1.0, resp.Data.Points[2].FinalFidelity, 1e-12)
}

func TestHandleCreate_Async(t *testing.T) {
	f := setup(t, nil)

	w := f.do(http.MethodPost, "/api/sweeps?async=true", smallPlan)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decodeSweep(t, w)
	assert.Equal(t, sweep.StatusRunning, resp.Data.Status)
	assert.NotEmpty(t, resp.Data.ID)

	f.runner.Wait()

	w = f.do(http.MethodGet, "/api/sweeps/"+resp.Data.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeSweep(t, w)
	assert.Equal(t, sweep.StatusCompleted, got.Data.Status)
	assert.Len(t, got.Data.Points, 4)
}

func TestHandleCreate_InvalidPlans(t *testing.T) {
	f := setup(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"unknown kind", `{"kind": "temperature"}`},
		{"reversed range", `{"kind": "link_length", "from": 400, "to": 50}`},
		{"unknown metric", `{"kind": "link_length", "metric": "cost"}`},
		{"malformed", `{"kind": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/sweeps", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHandleList(t *testing.T) {
	f := setup(t, nil)

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodPost, "/api/sweeps", smallPlan)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(http.MethodGet, "/api/sweeps?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data     []sweep.Sweep          `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, float64(1), resp.Metadata["count"])

	w = f.do(http.MethodGet, "/api/sweeps?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGet_NotFound(t *testing.T) {
	f := setup(t, nil)
	w := f.do(http.MethodGet, "/api/sweeps/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleExport(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := setup(t, nil)
		w := f.do(http.MethodPost, "/api/sweeps/abc/export", "")
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("configured", func(t *testing.T) {
		exporter := &stubExporter{}
		f := setup(t, exporter)
		w := f.do(http.MethodPost, "/api/sweeps/abc/export", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"abc"}, exporter.ids)
	})
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	h := &Handler{log: zerolog.New(nil).Level(zerolog.Disabled)}
	w := httptest.NewRecorder()

	h.writeJSON(w, http.StatusCreated, sweep.Point{FinalFidelity: math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

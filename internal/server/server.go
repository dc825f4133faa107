// Package server provides the HTTP server and routing for the repeater
// simulator.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/config"
	"github.com/aristath/qrepeater/internal/di"
	simulationhandlers "github.com/aristath/qrepeater/internal/modules/simulation/handlers"
	"github.com/aristath/qrepeater/internal/modules/sweep"
	sweephandlers "github.com/aristath/qrepeater/internal/modules/sweep/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container    // DI container with all services
	Jobs      *di.JobInstances // Jobs exposed for manual triggering
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor

	// baseCtx outlives requests; background sweeps and the status monitor
	// stop when it is cancelled on shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.Container.DB,
		cfg.Container.Simulator,
		cfg.Container.SimulationRepo,
		cfg.Container.SweepRepo,
		cfg.Container.EventBus,
		cfg.Container.Scheduler,
	)
	if cfg.Jobs != nil && cfg.Jobs.Maintenance != nil {
		systemHandlers.SetMaintenanceJob(cfg.Jobs.Maintenance)
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
		statusMonitor:  NewStatusMonitor(cfg.Container.EventBus, systemHandlers, cfg.Log),
		baseCtx:        baseCtx,
		cancelBase:     cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: event streams stay open and API routes are bounded
		// by the Timeout middleware.
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	var exporter sweep.Exporter
	if s.container.Archive != nil {
		exporter = s.container.Archive
	}

	simulationHandler := simulationhandlers.NewHandler(
		s.container.Simulator,
		s.container.SimulationRepo,
		s.container.EventBus,
		s.cfg.Simulation.DefaultTrials,
		s.log,
	)
	sweepHandler := sweephandlers.NewHandler(
		s.baseCtx,
		s.container.SweepRunner,
		s.container.SweepRepo,
		exporter,
		s.log,
	)
	eventsHandler := NewEventsStreamHandler(s.container.EventBus, s.log)

	s.router.Route("/api", func(r chi.Router) {
		// Event streams are long-lived and skip the timeout and compression
		r.Get("/events/stream", eventsHandler.ServeHTTP)
		r.Get("/events/ws", eventsHandler.ServeWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			simulationHandler.RegisterRoutes(r)
			sweepHandler.RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/model", s.systemHandlers.HandleModel)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/disk", s.systemHandlers.HandleDiskUsage)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.Post("/jobs/maintenance", s.systemHandlers.HandleTriggerMaintenance)
			})
		})
	})
}

// Start starts the HTTP server and background monitors
func (s *Server) Start() error {
	s.statusMonitor.Start(s.baseCtx, 60*time.Second)
	s.log.Info().Msg("Status monitor started")

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels background work
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancelBase()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

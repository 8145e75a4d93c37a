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

	"github.com/leenamkee/quant-portfolio/internal/modules/allocation"
	"github.com/leenamkee/quant-portfolio/internal/modules/backtest"
	"github.com/leenamkee/quant-portfolio/internal/modules/marketdata"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
	"github.com/leenamkee/quant-portfolio/internal/modules/rebalancing"
)

// Deps holds the module handlers the server routes to. They are built
// in main so the server stays free of wiring concerns.
type Deps struct {
	Optimization *optimization.Handler
	Backtest     *backtest.Handler
	Rebalancing  *rebalancing.Handler
	Allocation   *allocation.Handler
	MarketData   *marketdata.Handler
	System       *SystemHandlers
}

// Config holds server configuration
type Config struct {
	Port    int
	DevMode bool
	Log     zerolog.Logger
	Deps    Deps
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	deps   Deps
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		deps:   cfg.Deps,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout: batch comparisons over long windows can run for a while
	s.router.Use(middleware.Timeout(120 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/optimize", s.deps.Optimization.HandleOptimize)

		r.Route("/backtest", func(r chi.Router) {
			r.Post("/", s.deps.Backtest.HandleRunBacktest)
			r.Post("/custom", s.deps.Backtest.HandleCustomBacktest)
			r.Post("/compare", s.deps.Backtest.HandleCompare)
			r.Get("/runs", s.deps.Backtest.HandleListRuns)
			r.Get("/runs/{id}", s.deps.Backtest.HandleGetRun)
			r.Delete("/runs/{id}", s.deps.Backtest.HandleDeleteRun)
		})

		r.Post("/rebalancing/guide", s.deps.Rebalancing.HandleGuide)
		r.Post("/allocation", s.deps.Allocation.HandleAllocate)

		r.Get("/marketdata/prices", s.deps.MarketData.HandleGetPrices)

		r.Route("/system", func(r chi.Router) {
			r.Get("/stats", s.deps.System.HandleStats)
			r.Post("/jobs/refresh", s.deps.System.HandleTriggerRefresh)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
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

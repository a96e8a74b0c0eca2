// Package server provides the HTTP server and routing for stockledger.
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

	"github.com/aristath/stockledger/internal/database"
	"github.com/aristath/stockledger/internal/metrics"
	ledgerhandlers "github.com/aristath/stockledger/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/aristath/stockledger/internal/modules/portfolio/handlers"
)

// Config holds server configuration
type Config struct {
	Log              zerolog.Logger
	LedgerDB         *database.DB
	ClientDataDB     *database.DB // nil unless the sqlite price cache is in use
	PortfolioHandler *portfoliohandlers.Handler
	LedgerHandler    *ledgerhandlers.Handler
	Metrics          *metrics.Metrics
	Budget           RequestBudget // nil hides the market data budget from the status endpoint
	Jobs             JobLister
	DataDir          string
	Port             int
	DevMode          bool
}

// Server represents the HTTP server
type Server struct {
	router           *chi.Mux
	server           *http.Server
	log              zerolog.Logger
	port             int
	systemHandlers   *SystemHandlers
	portfolioHandler *portfoliohandlers.Handler
	ledgerHandler    *ledgerhandlers.Handler
	metrics          *metrics.Metrics
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:           chi.NewRouter(),
		log:              cfg.Log.With().Str("component", "server").Logger(),
		port:             cfg.Port,
		portfolioHandler: cfg.PortfolioHandler,
		ledgerHandler:    cfg.LedgerHandler,
		metrics:          cfg.Metrics,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.DataDir,
			cfg.LedgerDB,
			cfg.ClientDataDB,
			cfg.Budget,
		),
	}
	if cfg.Jobs != nil {
		s.systemHandlers.SetJobs(cfg.Jobs)
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the HTTP handler (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/db-check", s.systemHandlers.HandleDBCheck)
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		if s.portfolioHandler != nil {
			s.portfolioHandler.RegisterRoutes(r)
		}
		if s.ledgerHandler != nil {
			s.ledgerHandler.RegisterRoutes(r)
		}
	})
}

// Start starts the HTTP server. Returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.log.Info()
		if r.URL.Path == "/api/health" || r.URL.Path == "/metrics" {
			event = s.log.Debug()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

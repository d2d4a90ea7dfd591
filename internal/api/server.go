package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/torboxarr/internal/api/handlers"
	"github.com/amaumene/torboxarr/internal/api/middleware"
	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps are the components the HTTP surface drives
type Deps struct {
	Syncer      handlers.Syncer
	Shows       handlers.ShowManager
	Reevaluator handlers.Reevaluator
	Organizer   handlers.Organizer
	Downloads   handlers.Downloader
	Remover     handlers.Remover
	Recorder    *status.Recorder
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	db     *models.Database
	deps   Deps
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, deps Deps, logger *logrus.Logger) *Server {
	s := &Server{
		db:     db,
		deps:   deps,
		logger: logger,
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return middleware.Logging(mux, s.logger)
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.Handle("/health", handlers.NewHealthHandler(s.db, s.logger))
	mux.Handle("/status", handlers.NewStatusHandler(s.db, s.logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("/api/webhook/torbox", handlers.NewWebhookHandler(s.db, s.deps.Syncer, s.deps.Recorder, s.logger))

	shows := handlers.NewShowsHandler(s.db, s.deps.Shows, s.deps.Reevaluator, s.logger)
	mux.HandleFunc("GET /api/shows", shows.List)
	mux.HandleFunc("POST /api/shows", shows.Add)
	mux.HandleFunc("POST /api/shows/{id}/evaluate", shows.Evaluate)

	mux.Handle("POST /api/downloads/{id}/organize", handlers.NewOrganizeHandler(s.db, s.deps.Organizer, s.logger))

	downloads := handlers.NewDownloadsHandler(s.db, s.deps.Downloads, s.deps.Remover, s.logger)
	mux.HandleFunc("POST /api/downloads", downloads.Submit)
	mux.HandleFunc("PUT /api/downloads/{id}/category", downloads.SetCategory)
	mux.HandleFunc("POST /api/downloads/{id}/{operation}", downloads.Control)
	mux.HandleFunc("POST /api/search-results/{id}/download", downloads.SubmitSearchResult)
}

// Start starts the HTTP server and blocks until ctx is cancelled or the server fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/processing"
	"guild_stats/internal/store"
	"guild_stats/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

// Server exposes uploads and metrics over HTTP
type Server struct {
	config      *app.Config
	coordinator *processing.Coordinator
	metrics     *processing.MetricsService
	sheets      *processing.SheetsService
	store       store.DocumentStore
	recorder    *telemetry.Recorder
}

// New creates a server. sheetsService may be nil when Google Sheets is not configured.
func New(cfg *app.Config, coordinator *processing.Coordinator, metricsService *processing.MetricsService, sheetsService *processing.SheetsService, st store.DocumentStore, recorder *telemetry.Recorder) *Server {
	return &Server{
		config:      cfg,
		coordinator: coordinator,
		metrics:     metricsService,
		sheets:      sheetsService,
		store:       st,
		recorder:    recorder,
	}
}

// Handler builds the router with its middleware chain
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(RequestID(log.Logger))
	r.Use(Authenticate([]byte(s.config.AuthSecret)))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.recorder != nil {
		r.Handle("/metrics", s.recorder.Handler()).Methods(http.MethodGet)
	}

	season := r.PathPrefix("/seasons/{season}").Subrouter()
	season.HandleFunc("/dates", s.handleDates).Methods(http.MethodGet)
	season.HandleFunc("/metrics/individual", s.handleIndividual).Methods(http.MethodGet)
	season.HandleFunc("/metrics/kvk", s.handleKvK).Methods(http.MethodGet)
	season.HandleFunc("/kvk/summary", s.handleSummary).Methods(http.MethodGet)

	season.Handle("/uploads", RequireAdmin(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost)
	season.Handle("/imports/sheets", RequireAdmin(http.HandlerFunc(s.handleSheetsImport))).Methods(http.MethodPost)
	season.Handle("/kvk/summary/publish", RequireAdmin(http.HandlerFunc(s.handlePublish))).Methods(http.MethodPost)

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/acquire"
	"github.com/snarg/ta-engine/internal/config"
	"github.com/snarg/ta-engine/internal/metrics"
	"github.com/snarg/ta-engine/internal/mqttclient"
	"github.com/snarg/ta-engine/internal/store"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, orch *acquire.Orchestrator, pool *acquire.WorkerPool, db *store.DB, mqtt *mqttclient.Client, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Unauthenticated: health and metrics
	health := NewHealthHandler(db, mqtt, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	transcripts := NewTranscriptsHandler(orch, db, pool, cfg.DefaultLanguage, log)
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		r.Post("/api/v1/transcripts", transcripts.Acquire)
		r.Post("/api/v1/transcripts/batch", transcripts.AcquireBatch)
		r.Get("/api/v1/transcripts", transcripts.List)
		r.Get("/api/v1/transcripts/{videoID}", transcripts.Get)
		r.Get("/api/v1/stats", transcripts.Stats)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

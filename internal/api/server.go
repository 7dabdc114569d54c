// Package api serves the operational surface: health, pipeline status,
// recent tasks, and a live SSE stream of task state changes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/bus"
	"github.com/snarg/agrivoice/internal/config"
	"github.com/snarg/agrivoice/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// Deps are the sources the handlers read from. Nil fields degrade to
// "not configured" rather than failing.
type Deps struct {
	DB      HealthChecker
	MQTT    ConnChecker
	Watcher WatcherSource
	Pool    PoolSource
	Bus     *bus.Bus
	Tracker *Tracker
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(deps.DB, deps.MQTT, deps.Watcher, version, startTime)
	r.Get("/healthz", health.ServeHTTP)

	status := NewStatusHandler(deps.Watcher, deps.Pool, version, startTime)
	r.Get("/api/status", status.ServeHTTP)

	if deps.Tracker != nil {
		r.Get("/api/tasks", func(w http.ResponseWriter, req *http.Request) {
			WriteJSON(w, http.StatusOK, deps.Tracker.Tasks())
		})
	}

	if deps.Bus != nil {
		events := NewEventsHandler(deps.Bus)
		r.Get("/api/events", events.StreamEvents)
	}

	r.Handle("/metrics", promhttp.Handler())

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

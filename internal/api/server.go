package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/orthocare/orthocare"
	"github.com/orthocare/orthocare/internal/config"
	"github.com/orthocare/orthocare/internal/metrics"
	"github.com/orthocare/orthocare/internal/patients"
)

// Deps are the services the router is built from.
type Deps struct {
	Patients    patients.Store
	Auth        Authenticator
	Transcriber Transcriber
	Health      HealthChecker
	Version     string
	StartTime   time.Time
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, deps, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter wires middleware and routes.
func NewRouter(cfg *config.Config, deps Deps, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// No auth
		r.Get("/health", NewHealthHandler(deps.Health, deps.Transcriber, deps.Version, deps.StartTime).ServeHTTP)
		r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			w.Write(orthocare.OpenAPISpec)
		})
		authHandler := NewAuthHandler(deps.Auth, cfg.SessionCookieSecure, log)
		authHandler.Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(SessionAuth(deps.Auth))
			r.Get("/auth/me", authHandler.Me)
			NewPatientsHandler(deps.Patients, log).Routes(r)
			NewTranscribeHandler(deps.Transcriber, log).Routes(r)
			DictationHandler{}.Routes(r)
		})
	})

	return r
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

package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cogserve/cogserve/internal/config"
	"github.com/cogserve/cogserve/internal/dashboard"
	"github.com/cogserve/cogserve/internal/health"
)

// Server holds the HTTP router and its cross-cutting dependencies.
// Tile/metadata route handlers are external collaborators (spec §1) and
// are mounted onto APIRouter by the caller after NewServer returns.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router
	startedAt time.Time
}

// NewServer wires global middleware, the C7 health endpoints, the
// optional HTML dashboard, and metrics, leaving /api/v1 open for
// tile/metadata handlers to be mounted externally.
func NewServer(cfg *config.Config, logger *slog.Logger, storageAuth func(http.Handler) http.Handler, reporter *health.Reporter, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(Metrics)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/livez", s.handleLivez(reporter))
	s.Router.Get("/readyz", s.handleReadyz(reporter))
	s.Router.Get("/health", s.handleDiagnostics(reporter)) // spec §4.7

	s.Router.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	if reporter != nil {
		s.Router.Get("/dashboard", dashboard.Handler(reporter))
	}

	s.Router.Route("/api/v1", func(r chi.Router) {
		if storageAuth != nil {
			r.Use(storageAuth)
		}
		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

type livezResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleLivez(reporter *health.Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reporter == nil {
			Respond(w, http.StatusOK, livezResponse{Status: "ok"})
			return
		}
		res := reporter.Live()
		Respond(w, http.StatusOK, livezResponse{Status: string(res.Status)})
	}
}

type readyzResponse struct {
	Status string               `json:"status"`
	Checks []health.ProbeResult `json:"checks"`
}

func (s *Server) handleReadyz(reporter *health.Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reporter == nil {
			Respond(w, http.StatusOK, readyzResponse{Status: "ready"})
			return
		}

		results := reporter.Ready(r.Context())
		status := "ready"
		code := http.StatusOK
		if !health.IsReady(results, reporter.DatabaseRequired) {
			status = "not_ready"
			code = http.StatusServiceUnavailable
		}
		Respond(w, code, readyzResponse{Status: status, Checks: results})
	}
}

// handleDiagnostics serves the C7 diagnostics aggregate (spec §4.7): it
// always returns 200, since partial sub-query failure is surfaced
// per-entry in the body rather than as an overall HTTP error (spec §7,
// scenario 5).
func (s *Server) handleDiagnostics(reporter *health.Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reporter == nil {
			Respond(w, http.StatusOK, health.Diagnostics{})
			return
		}
		Respond(w, http.StatusOK, reporter.Diagnostics(r.Context(), s.startedAt))
	}
}

package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/arbovirus-dashboard/internal/chart"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
	"github.com/couchcryptid/arbovirus-dashboard/internal/pipeline"
)

// Dashboards builds the views served by the API. *pipeline.Pipeline
// satisfies it.
type Dashboards interface {
	sharedobs.ReadinessChecker
	StateView(ctx context.Context, req pipeline.StateRequest) pipeline.StateDashboard
	MunicipalityView(ctx context.Context, req pipeline.MunicipalityRequest) (pipeline.MunicipalityDashboard, error)
	Municipalities() []domain.Municipality
}

// Server exposes the dashboard API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	dashboards Dashboards
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /api/v1, /healthz, /readyz, and
// /metrics routes. writeTimeout must cover the slowest cold view; 0 disables
// it.
func NewServer(addr string, writeTimeout time.Duration, dashboards Dashboards, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		dashboards: dashboards,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(dashboards))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/municipalities", s.handleMunicipalities)
	mux.HandleFunc("GET /api/v1/municipalities/{name}", s.handleMunicipality)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	disease, err := diseaseParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	metric, err := chart.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d := s.dashboards.StateView(r.Context(), pipeline.StateRequest{Disease: disease, MapMetric: metric})
	sharedobs.WriteJSON(w, http.StatusOK, d)
}

func (s *Server) handleMunicipalities(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.dashboards.Municipalities())
}

func (s *Server) handleMunicipality(w http.ResponseWriter, r *http.Request) {
	disease, err := diseaseParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d, err := s.dashboards.MunicipalityView(r.Context(), pipeline.MunicipalityRequest{
		Disease: disease,
		Name:    r.PathValue("name"),
	})
	if errors.Is(err, pipeline.ErrUnknownMunicipality) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("municipality view failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, d)
}

// diseaseParam reads ?disease=, defaulting to dengue when absent.
func diseaseParam(r *http.Request) (domain.Disease, error) {
	raw := r.URL.Query().Get("disease")
	if raw == "" {
		return domain.Dengue, nil
	}
	return domain.ParseDisease(raw)
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

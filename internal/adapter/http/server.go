package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service answers forecast and plot-data requests.
type Service interface {
	sharedobs.ReadinessChecker
	Forecasts(ctx context.Context, q pipeline.ForecastQuery) ([]domain.ForecastRow, error)
	Plot(ctx context.Context, q pipeline.PlotQuery) (pipeline.PlotResult, error)
}

// Server exposes the query API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	service    Service
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /v1/forecasts and /v1/plot-data routes.
func NewServer(addr string, service Service, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(service))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/forecasts", s.handleForecasts)
	mux.HandleFunc("GET /v1/plot-data", s.handlePlotData)

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

type forecastsResponse struct {
	Count int                  `json:"count"`
	Rows  []domain.ForecastRow `json:"rows"`
}

func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	q, err := parseForecastQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	rows, err := s.service.Forecasts(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forecastsResponse{Count: len(rows), Rows: rows})
}

func (s *Server) handlePlotData(w http.ResponseWriter, r *http.Request) {
	q, err := parsePlotQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.service.Plot(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var kindStatus = map[string]int{
	pipeline.KindConfiguration: http.StatusBadRequest,
	pipeline.KindAvailability:  http.StatusNotFound,
	pipeline.KindParse:         http.StatusUnprocessableEntity,
	pipeline.KindUnsupported:   http.StatusNotImplemented,
	pipeline.KindInternal:      http.StatusInternalServerError,
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := pipeline.ErrorKind(err)
	status := kindStatus[kind]
	msg := err.Error()
	if kind == pipeline.KindInternal {
		s.logger.Error("request failed", "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

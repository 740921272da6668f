package healthcheck

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents a health check HTTP server
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	db         Pinger
	logger     *zap.Logger
}

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RunResponse is returned by the manual run endpoint
type RunResponse struct {
	Status  string              `json:"status"`
	Summary *usecase.RunSummary `json:"summary,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// NewServer creates a new health check server. db may be nil, in which case /ready skips the check.
func NewServer(port string, db Pinger, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	server := &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux:    mux,
		db:     db,
		logger: logger.Named("healthcheck"),
	}

	mux.HandleFunc("GET /health", server.handleHealth)
	mux.HandleFunc("GET /ready", server.handleReady)

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// RegisterMetricsHandler adds the /metrics endpoint handler.
// Should only be called if metrics are enabled.
func (s *Server) RegisterMetricsHandler(handler http.Handler) {
	s.logger.Info("Registering /metrics endpoint")
	s.mux.Handle("GET /metrics", handler)
}

// RegisterAutomationTrigger adds POST /automations/daily/run, which runs the daily automations
// for companyID synchronously and returns the summary.
func (s *Server) RegisterAutomationTrigger(runner usecase.DailyAutomationRunner, companyID string) {
	s.logger.Info("Registering /automations/daily/run endpoint")
	s.mux.HandleFunc("POST /automations/daily/run", func(w http.ResponseWriter, r *http.Request) {
		ctx := tenant.WithCompanyID(r.Context(), companyID)
		ctx = logger.WithLogger(ctx, s.logger)

		summary, err := runner.RunDailyAutomations(ctx)
		if err != nil {
			s.logger.Error("Manual daily run failed", zap.Error(err))
			utils.WriteJSONResponse(w, http.StatusInternalServerError, RunResponse{Status: "FAILED", Error: err.Error()})
			return
		}
		utils.WriteJSONResponse(w, http.StatusOK, RunResponse{Status: "OK", Summary: &summary})
	})
}

// Start begins the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting health check server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health check server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health check server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles the /health endpoint for liveness checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "UP",
		Version: "1.0.0",
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}

// handleReady handles the /ready endpoint for readiness checks
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	details := map[string]string{
		"timestamp": utils.FormatISO8601(utils.Now()),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			details["database"] = err.Error()
			utils.WriteJSONResponse(w, http.StatusServiceUnavailable, HealthResponse{Status: "NOT_READY", Details: details})
			return
		}
		details["database"] = "ok"
	}

	utils.WriteJSONResponse(w, http.StatusOK, HealthResponse{Status: "READY", Details: details})
}

// Package webapi exposes the agent orchestration and command store over HTTP.
package webapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxcrew/pkg/discuss"
	"voxcrew/pkg/logx"
	"voxcrew/pkg/metrics"
)

// Server is the HTTP API server.
type Server struct {
	orchestrator    *discuss.Orchestrator
	store           discuss.CommandStore
	queries         *metrics.QueryService
	logger          *logx.Logger
	password        string
	modelConfigured bool
}

// NewServer creates an API server. The store may be nil (read/write paths
// return 500), queries may be nil (the summary endpoint returns 503), and an
// empty password disables basic auth.
func NewServer(orchestrator *discuss.Orchestrator, store discuss.CommandStore, queries *metrics.QueryService, password string, modelConfigured bool) *Server {
	return &Server{
		orchestrator:    orchestrator,
		store:           store,
		queries:         queries,
		logger:          logx.NewLogger("webapi"),
		password:        password,
		modelConfigured: modelConfigured,
	}
}

// requireAuth wraps a handler with Basic Authentication. Username is always
// "voxcrew". A server without a configured password skips the check.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.password == "" {
			next(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(username), []byte("voxcrew")) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
			s.logger.Warn("Failed authentication attempt from %s", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="Voxcrew API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// RegisterRoutes sets up HTTP routes for the API. Health and metrics stay
// unauthenticated so load balancers and Prometheus can reach them.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/agents/discuss", s.requireAuth(s.handleDiscuss))
	mux.HandleFunc("/agents/pipeline", s.requireAuth(s.handlePipeline))

	mux.HandleFunc("/commands", s.requireAuth(s.handleCommands))
	mux.HandleFunc("/commands/", s.requireAuth(s.handleCommandByID))
	mux.HandleFunc("/commands/recent/", s.requireAuth(s.handleCommandsRecent))
	mux.HandleFunc("/commands/search", s.requireAuth(s.handleCommandsSearch))

	mux.HandleFunc("/api/logs", s.requireAuth(s.handleLogs))
	mux.HandleFunc("/api/metrics/summary", s.requireAuth(s.handleMetricsSummary))

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// StartServer starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting API server on %s", addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // Parent context is cancelled; shutdown needs a fresh one
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed: %v", err)
		}
	}()

	return nil
}

// writeJSON serializes v as a 200 response.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// errorBody is the wire shape of error responses.
type errorBody struct {
	Error string `json:"error"`
}

// writeError serializes an error response with the given status.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: message}); err != nil {
		s.logger.Error("Failed to encode error response: %v", err)
	}
}

// writeOrchestratorError maps classified orchestration errors to HTTP status
// codes: validation to 400, everything else to 500.
func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch discuss.KindOf(err) {
	case discuss.KindInvalidInput:
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Package server exposes the routing core and the conversational pipeline
// over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/backend"
	"github.com/3bi-io/nexus-core/executor"
	"github.com/3bi-io/nexus-core/orchestrator"
	"github.com/3bi-io/nexus-core/router"
	"github.com/3bi-io/nexus-core/stats"
)

// Server wires the executor, stats store, and orchestrator to HTTP routes.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	executor     *executor.Executor
	store        *stats.Store
	auth         *Authenticator
	metrics      http.Handler
	logger       *zap.SugaredLogger
}

func New(orch *orchestrator.Orchestrator, exec *executor.Executor, store *stats.Store, auth *Authenticator, metrics http.Handler, logger *zap.SugaredLogger) *Server {
	return &Server{
		orchestrator: orch,
		executor:     exec,
		store:        store,
		auth:         auth,
		metrics:      metrics,
		logger:       logger,
	}
}

// Routes builds the HTTP mux. Every API route goes through authentication;
// health and metrics do not.
func (s *Server) Routes() *mux.Router {
	root := mux.NewRouter()
	root.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		root.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := root.PathPrefix("/v1").Subrouter()
	api.Use(s.auth.Middleware)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/tasks", s.handleTask).Methods(http.MethodPost)
	api.HandleFunc("/backends/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/backends/stats/reset", s.handleStatsReset).Methods(http.MethodPost)
	return root
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

type taskRequest struct {
	Task    nexus.TaskType      `json:"task"`
	Input   json.RawMessage     `json:"input"`
	Options nexus.RouterOptions `json:"options"`
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	var request taskRequest
	if err := json.Unmarshal(bodyBytes, &request); err != nil {
		s.logger.Warnw("Invalid task request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	result, err := s.executor.Execute(r.Context(), request.Task, request.Input, request.Options)
	if err != nil {
		s.writeExecutionError(w, request.Task, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Errorw("Failed to encode task response", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Backends    map[nexus.Backend]stats.BackendMetrics `json:"backends"`
		LoadBalance map[nexus.Backend]float64              `json:"load_balance"`
	}{
		Backends:    s.store.Snapshot(),
		LoadBalance: s.store.LoadBalance(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorw("Failed to encode stats response", "error", err)
	}
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	s.logger.Infow("Backend stats reset by operator")
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"reset"}`)
}

// writeExecutionError maps the error taxonomy to HTTP statuses. The caller
// always receives a structured payload, never a stack trace.
func (s *Server) writeExecutionError(w http.ResponseWriter, task nexus.TaskType, err error) {
	s.logger.Warnw("Task execution failed", "task", task, "error", err)

	var capabilityErr router.CapabilityUnavailableError
	var misconfiguredErr backend.MisconfiguredEnvironmentError
	var exhaustedErr executor.AllBackendsExhaustedError
	switch {
	case errors.As(err, &capabilityErr):
		writeError(w, http.StatusBadRequest, "capability_unavailable", capabilityErr.Error())
	case errors.As(err, &misconfiguredErr):
		writeError(w, http.StatusInternalServerError, "misconfigured_environment", "a required backend is not configured")
	case errors.As(err, &exhaustedErr):
		writeError(w, http.StatusBadGateway, "all_backends_exhausted", exhaustedErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, errorType string, message string) {
	payload := errorPayload{}
	payload.Error.Type = errorType
	payload.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Nothing sensible left to do; the connection is likely gone.
		_ = err
	}
}

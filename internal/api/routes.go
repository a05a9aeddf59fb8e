// Package api provides the HTTP API server for the training platform.
package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Route represents an HTTP route configuration with a path and handler.
type Route struct {
	Path    string
	Handler http.HandlerFunc
}

// setupRoutes sets up all HTTP routes for the API server (spec §6).
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Training
	mux.HandleFunc("POST /training/jobs/start", s.handleStartJob)
	mux.HandleFunc("GET /training/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /training/jobs", s.handleListJobs)
	mux.HandleFunc("DELETE /training/jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("POST /training/jobs/{id}/retry", s.handleRetryJob)
	mux.HandleFunc("GET /training/jobs/{id}/logs", s.handleJobLogs)
	mux.HandleFunc("GET /training/stats", s.handleTrainingStats)

	// HPO
	mux.HandleFunc("POST /hpo/studies", s.handleCreateStudy)
	mux.HandleFunc("GET /hpo/studies/{name}", s.handleGetStudy)
	mux.HandleFunc("GET /hpo/studies/{name}/trials", s.handleListTrials)
	mux.HandleFunc("GET /hpo/studies/{name}/importances", s.handleParamImportances)
	mux.HandleFunc("DELETE /hpo/studies/{name}", s.handleDeleteStudy)

	// Model Registry
	mux.HandleFunc("POST /models", s.handleRegisterModel)
	mux.HandleFunc("GET /models/{id}", s.handleGetModel)
	mux.HandleFunc("GET /models", s.handleListModels)
	mux.HandleFunc("PUT /models/{id}/promote", s.handlePromoteModel)
	mux.HandleFunc("DELETE /models/{id}", s.handleDeleteModel)

	// Feature Store
	mux.HandleFunc("POST /features/get", s.handleGetFeatures)
	mux.HandleFunc("POST /features/export", s.handleExportFeatures)
	mux.HandleFunc("GET /features/sets", s.handleListFeatureSets)
	mux.HandleFunc("GET /features/exports", s.handleListExports)

	// Experiment Tracker
	mux.HandleFunc("POST /experiments", s.handleCreateExperiment)
	mux.HandleFunc("POST /experiments/{id}/runs", s.handleStartRun)
	mux.HandleFunc("POST /experiments/runs/{id}/params", s.handleLogParam)
	mux.HandleFunc("POST /experiments/runs/{id}/metrics", s.handleLogMetric)
	mux.HandleFunc("GET /experiments/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /experiments/{id}/search", s.handleSearchRuns)
	mux.HandleFunc("GET /experiments/{id}/best", s.handleBestRun)

	mux.HandleFunc("/", s.handleNotFound)
}

// handlePing responds to basic liveness checks.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("failed to write ping response", "error", err)
	}
}

// handleReady responds to Kubernetes readiness probes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("failed to write ready response", "error", err)
	}
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	health := HealthStatus{Status: "healthy", ServiceName: "trainhub", Version: "v1.0.0", Uptime: uptime}

	data, err := json.Marshal(health)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to encode health response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("the requested resource was not found"))
}

// decodeJSON decodes r's JSON body into v, writing a 422 problem response
// and returning false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity("malformed JSON body: "+err.Error()))

		return false
	}

	return true
}

// writeJSON marshals v and writes it as the JSON response body with status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, InternalServerError("failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

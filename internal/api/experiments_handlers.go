// Package api provides the HTTP API server for the training platform.
package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/correlator-io/trainhub/internal/experiments"
)

// handleCreateExperiment handles POST /experiments.
func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	var req CreateExperimentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	exp, err := s.experiments.CreateExperiment(r.Context(), req.Tenant, req.ModelType, req.Name)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, exp)
}

// handleStartRun handles POST /experiments/{id}/runs.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	expID, ok := s.parseUUIDPath(w, r, "id")
	if !ok {
		return
	}

	var req StartRunRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	run, err := s.experiments.StartRun(r.Context(), expID, req.Name, req.Tags)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, run)
}

// handleLogParam handles POST /experiments/runs/{id}/params.
func (s *Server) handleLogParam(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	runID, ok := s.parseUUIDPath(w, r, "id")
	if !ok {
		return
	}

	var req LogParamRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.experiments.LogParam(r.Context(), runID, req.Key, req.Value); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLogMetric handles POST /experiments/runs/{id}/metrics.
func (s *Server) handleLogMetric(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	runID, ok := s.parseUUIDPath(w, r, "id")
	if !ok {
		return
	}

	var req LogMetricRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.experiments.LogMetric(r.Context(), runID, req.Key, req.Value, req.Step); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetRun handles GET /experiments/runs/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	runID, ok := s.parseUUIDPath(w, r, "id")
	if !ok {
		return
	}

	run, err := s.experiments.GetRun(r.Context(), runID)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, run)
}

// handleSearchRuns handles GET /experiments/{id}/search?status=&tag_key=&tag_value=.
func (s *Server) handleSearchRuns(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	expID, ok := s.parseUUIDPath(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()

	filters := experiments.SearchFilters{
		ExperimentID: expID,
		Status:       experiments.RunStatus(q.Get("status")),
		TagKey:       q.Get("tag_key"),
		TagValue:     q.Get("tag_value"),
	}

	runs, err := s.experiments.SearchRuns(r.Context(), filters)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, runs)
}

// handleBestRun handles GET /experiments/{id}/best?metric_key=&maximize=.
func (s *Server) handleBestRun(w http.ResponseWriter, r *http.Request) {
	if s.experiments == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("experiment tracker not configured"))

		return
	}

	expID, ok := s.parseUUIDPath(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()
	metricKey := q.Get("metric_key")
	maximize := q.Get("maximize") == "true"

	run, err := s.experiments.BestRun(r.Context(), expID, metricKey, maximize)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, run)
}

// parseUUIDPath extracts and parses a UUID path value, writing a 422
// response and returning false on a malformed UUID.
func (s *Server) parseUUIDPath(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity("invalid "+key+": "+err.Error()))

		return uuid.Nil, false
	}

	return id, true
}

// Package api provides the HTTP API server for the training platform.
package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/correlator-io/trainhub/internal/jobs"
)

// handleStartJob handles POST /training/jobs/start (spec §6).
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	job := &jobs.Job{
		TenantID:           req.TenantID,
		ModelType:          req.ModelType,
		ModelName:          req.ModelName,
		Config:             req.Config,
		Priority:           req.Priority,
		Tags:               req.Tags,
		ScheduleExpression: req.ScheduleExpression,
	}

	if err := s.orchestrator.Submit(r.Context(), job); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, StartJobResponse{
		JobID:                    job.ID.String(),
		Status:                   string(job.Status),
		CreatedAt:                job.CreatedAt,
		EstimatedDurationSeconds: job.EstimatedDurationSeconds,
		Message:                  "job queued",
	})
}

// handleGetJob handles GET /training/jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.orchestrator.Get(r.Context(), id)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, job)
}

// handleListJobs handles GET /training/jobs?tenant_id=&model_type=&model_name=&status=&page=&page_size=.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := jobs.ListFilters{
		TenantID:  q.Get("tenant_id"),
		ModelType: jobs.ModelType(q.Get("model_type")),
		ModelName: q.Get("model_name"),
		Status:    jobs.Status(q.Get("status")),
	}

	page := queryInt(q, "page", 1)
	pageSize := queryInt(q, "page_size", 20)

	result, err := s.orchestrator.List(r.Context(), filters, page, pageSize)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	pages := 0
	if result.PageSize > 0 {
		pages = (result.Total + result.PageSize - 1) / result.PageSize
	}

	s.writeJSON(w, r, http.StatusOK, JobListResponse{
		Items:    result.Items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		Pages:    pages,
	})
}

// handleCancelJob handles DELETE /training/jobs/{id}.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	if err := s.orchestrator.Cancel(r.Context(), id); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]string{"job_id": id.String(), "status": string(jobs.StatusCancelled)})
}

// handleRetryJob handles POST /training/jobs/{id}/retry.
func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	newJob, err := s.orchestrator.Retry(r.Context(), id)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, RetryJobResponse{JobID: newJob.ID.String(), Status: string(newJob.Status)})
}

// handleJobLogs handles GET /training/jobs/{id}/logs?tail=&level=.
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	tail := queryInt(q, "tail", 0)
	level := q.Get("level")

	logs, err := s.orchestrator.Logs(r.Context(), id, tail, level)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, logs)
}

// handleTrainingStats handles GET /training/stats.
func (s *Server) handleTrainingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orchestrator.Stats(r.Context())
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, StatsResponse{
		Capacity:    stats.Capacity,
		ActiveCount: stats.ActiveCount,
		Utilization: stats.Utilization,
	})
}

// parseJobID extracts and parses the "id" path value, writing a 422
// response and returning false on a malformed UUID.
func (s *Server) parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity("invalid job id: "+err.Error()))

		return uuid.Nil, false
	}

	return id, true
}

func queryInt(q map[string][]string, key string, def int) int {
	v := ""
	if vs, ok := q[key]; ok && len(vs) > 0 {
		v = vs[0]
	}

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

// Package api provides the HTTP API server for the training platform.
package api

import (
	"net/http"
	"time"

	"github.com/correlator-io/trainhub/internal/hpo"
)

// handleCreateStudy handles POST /hpo/studies.
func (s *Server) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	if s.hpo == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("hpo engine not configured"))

		return
	}

	var req CreateStudyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	study := &hpo.Study{
		Name:           req.Name,
		TenantID:       req.TenantID,
		ModelType:      req.ModelType,
		Direction:      hpo.Direction(req.Direction),
		Sampler:        req.Sampler,
		Pruner:         req.Pruner,
		NTrialsTarget:  req.NTrialsTarget,
		TimeoutSeconds: req.TimeoutSeconds,
		UserAttrs:      req.UserAttrs,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.hpo.CreateStudy(r.Context(), study, req.Seed); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, study)
}

// handleGetStudy handles GET /hpo/studies/{name}.
func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	if s.hpo == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("hpo engine not configured"))

		return
	}

	study, err := s.hpo.GetStudy(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, study)
}

// handleListTrials handles GET /hpo/studies/{name}/trials.
func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	if s.hpo == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("hpo engine not configured"))

		return
	}

	trials, err := s.hpo.ListTrials(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, trials)
}

// handleParamImportances handles GET /hpo/studies/{name}/importances.
func (s *Server) handleParamImportances(w http.ResponseWriter, r *http.Request) {
	if s.hpo == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("hpo engine not configured"))

		return
	}

	study, err := s.hpo.GetStudy(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	importances, err := s.hpo.ParamImportance(r.Context(), study)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, importances)
}

// handleDeleteStudy handles DELETE /hpo/studies/{name}.
func (s *Server) handleDeleteStudy(w http.ResponseWriter, r *http.Request) {
	if s.hpo == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("hpo engine not configured"))

		return
	}

	if err := s.hpo.DeleteStudy(r.Context(), r.PathValue("name")); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

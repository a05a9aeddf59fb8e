// Package api provides the HTTP API server for the training platform.
package api

import (
	"net/http"

	"github.com/correlator-io/trainhub/internal/features"
)

// handleGetFeatures handles POST /features/get.
func (s *Server) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	if s.features == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("feature store not configured"))

		return
	}

	var req GetFeaturesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	vec, err := s.features.ComputeFeatureSet(r.Context(), req.Tenant, req.Asset, req.FeatureSet, req.Timestamp)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, vec)
}

// handleExportFeatures handles POST /features/export.
func (s *Server) handleExportFeatures(w http.ResponseWriter, r *http.Request) {
	if s.features == nil || s.objectStore == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("feature export not configured"))

		return
	}

	var req ExportFeaturesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.features.Export(r.Context(), s.objectStore, req.Tenant, req.FeatureSet, req.AssetIDs, req.Start, req.End)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusAccepted, result)
}

// handleListFeatureSets handles GET /features/sets.
func (s *Server) handleListFeatureSets(w http.ResponseWriter, r *http.Request) {
	sets, err := features.LoadFeatureSets()
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, sets)
}

// handleListExports handles GET /features/exports?tenant_id=&feature_set=&status=.
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	if s.features == nil {
		WriteErrorResponse(w, r, s.logger, NotFound("feature store not configured"))

		return
	}

	q := r.URL.Query()
	tenant := q.Get("tenant_id")

	if tenant == "" {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity("tenant_id is required"))

		return
	}

	records, err := s.features.ListExports(r.Context(), tenant, q.Get("feature_set"), q.Get("status"))
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, records)
}

// Package api provides the HTTP API server for the training platform.
package api

import (
	"net/http"
	"strings"

	"github.com/correlator-io/trainhub/internal/kinderr"
	"github.com/correlator-io/trainhub/internal/registry"
)

const modelIDParts = 3

// handleRegisterModel handles POST /models.
func (s *Server) handleRegisterModel(w http.ResponseWriter, r *http.Request) {
	var req RegisterModelRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	meta, err := s.registry.Register(
		r.Context(), req.Tenant, req.Name, req.Version, req.Artifact, req.ModelTypeHint, req.UserFields, req.Metrics,
	)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, meta)
}

// handleGetModel handles GET /models/{tenant}:{name}:{version}.
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	tenant, name, version, ok := s.parseModelID(w, r)
	if !ok {
		return
	}

	meta, err := s.registry.GetMetadata(r.Context(), tenant, name, version)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	metrics, err := s.registry.GetMetrics(r.Context(), tenant, name, version)
	if err != nil && kinderr.Of(err) != kinderr.NotFound {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"metadata": meta, "metrics": metrics})
}

// handleListModels handles GET /models?tenant_id=&model_name=&stage=.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant, name := q.Get("tenant_id"), q.Get("model_name")

	if tenant == "" || name == "" {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity("tenant_id and model_name are required"))

		return
	}

	versions, err := s.registry.ListVersions(r.Context(), tenant, name)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	if stage := q.Get("stage"); stage != "" {
		filtered := make([]registry.Metadata, 0, len(versions))

		for _, v := range versions {
			if string(v.Stage) == stage {
				filtered = append(filtered, v)
			}
		}

		versions = filtered
	}

	s.writeJSON(w, r, http.StatusOK, versions)
}

// handlePromoteModel handles PUT /models/{id}/promote.
func (s *Server) handlePromoteModel(w http.ResponseWriter, r *http.Request) {
	tenant, name, version, ok := s.parseModelID(w, r)
	if !ok {
		return
	}

	var req PromoteModelRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.registry.Promote(r.Context(), tenant, name, version, registry.Stage(req.Stage)); err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteModel handles DELETE /models/{id}?force=.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	tenant, name, version, ok := s.parseModelID(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"

	deleted, err := s.registry.Delete(r.Context(), tenant, name, version, force)
	if err != nil {
		WriteKindError(w, r, s.logger, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"deleted": deleted})
}

// parseModelID extracts and splits the "id" path value formatted as
// "{tenant}:{name}:{version}" (spec §6).
func (s *Server) parseModelID(w http.ResponseWriter, r *http.Request) (tenant, name, version string, ok bool) {
	parts := strings.SplitN(r.PathValue("id"), ":", modelIDParts)
	if len(parts) != modelIDParts {
		WriteErrorResponse(w, r, s.logger, UnprocessableEntity("model id must be {tenant}:{name}:{version}"))

		return "", "", "", false
	}

	return parts[0], parts[1], parts[2], true
}

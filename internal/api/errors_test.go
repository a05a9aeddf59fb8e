package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trainhub/internal/kinderr"
)

func TestNewProblemDetail_BuildsTypeURIFromStatus(t *testing.T) {
	problem := NewProblemDetail(http.StatusBadRequest, "Bad Request", "missing tenant")

	assert.Equal(t, "https://correlator.io/problems/400", problem.Type)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, "missing tenant", problem.Detail)
}

func TestProblemDetail_WithInstanceAndCorrelationID(t *testing.T) {
	problem := NewProblemDetail(http.StatusNotFound, "Not Found", "").
		WithInstance("/models/42").
		WithCorrelationID("req-1")

	assert.Equal(t, "/models/42", problem.Instance)
	assert.Equal(t, "req-1", problem.CorrelationID)
}

func TestWriteErrorResponse_FillsInstanceFromRequestPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/training/jobs/abc", nil)
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, req, slog.Default(), BadRequest("bad input"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/training/jobs/abc", problem.Instance)
}

func TestStatusForKind_MapsKindsToRFC7807Status(t *testing.T) {
	tests := []struct {
		kind   kinderr.Kind
		status int
	}{
		{kinderr.Validation, http.StatusUnprocessableEntity},
		{kinderr.NotFound, http.StatusNotFound},
		{kinderr.Conflict, http.StatusConflict},
		{kinderr.Precondition, http.StatusBadRequest},
		{kinderr.Unavailable, http.StatusServiceUnavailable},
		{kinderr.Timeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		status, _ := statusForKind(tt.kind)
		assert.Equal(t, tt.status, status, "kind %v", tt.kind)
	}
}

func TestStatusForKind_UnknownKindDefaultsToInternal(t *testing.T) {
	status, title := statusForKind(kinderr.Kind(99))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", title)
}

func TestWriteKindError_UsesWrappedKindForStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/models/missing", nil)
	rec := httptest.NewRecorder()

	err := kinderr.New(kinderr.NotFound, "model not found")

	WriteKindError(rec, req, slog.Default(), err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteKindError_PlainErrorFallsBackToInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/models/missing", nil)
	rec := httptest.NewRecorder()

	WriteKindError(rec, req, slog.Default(), assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

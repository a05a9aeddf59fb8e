// Package api provides the HTTP API server for the training platform.
package api

import (
	"time"

	"github.com/correlator-io/trainhub/internal/jobs"
)

// HealthStatus represents the health check response structure.
type HealthStatus struct {
	Status      string `json:"status"`
	ServiceName string `json:"service_name"` //nolint:tagliatelle
	Version     string `json:"version"`
	Uptime      string `json:"uptime,omitempty"`
}

// StartJobRequest is the request body for POST /training/jobs/start.
type StartJobRequest struct {
	TenantID           string                `json:"tenant_id"`
	ModelType          jobs.ModelType        `json:"model_type"`
	ModelName          string                `json:"model_name"`
	Config             jobs.TrainingConfig   `json:"config"`
	Priority           int16                 `json:"priority"`
	Tags               map[string]string     `json:"tags,omitempty"`
	ScheduleExpression *string               `json:"schedule_expression,omitempty"`
}

// StartJobResponse is the 201 response for POST /training/jobs/start.
type StartJobResponse struct {
	JobID                    string    `json:"job_id"`
	Status                   string    `json:"status"`
	CreatedAt                time.Time `json:"created_at"`
	EstimatedDurationSeconds int       `json:"estimated_duration_seconds"`
	Message                  string    `json:"message"`
}

// JobListResponse is the response for GET /training/jobs.
type JobListResponse struct {
	Items    []*jobs.Job `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// RetryJobResponse is the 201 response for POST /training/jobs/{id}/retry.
type RetryJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StatsResponse is the response for GET /training/stats.
type StatsResponse struct {
	Capacity    int     `json:"capacity"`
	ActiveCount int     `json:"active_count"`
	Utilization float64 `json:"utilization"`
}

// CreateStudyRequest is the request body for POST /hpo/studies.
type CreateStudyRequest struct {
	Name           string         `json:"name"`
	TenantID       string         `json:"tenant_id"`
	ModelType      string         `json:"model_type"`
	Direction      string         `json:"direction"`
	Sampler        string         `json:"sampler"`
	Pruner         string         `json:"pruner"`
	NTrialsTarget  int            `json:"n_trials_target"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
	Seed           int64          `json:"seed,omitempty"`
	UserAttrs      map[string]any `json:"user_attrs,omitempty"`
}

// RegisterModelRequest is the request body for POST /models. Artifact is
// base64-encoded JSON bytes (encoding/json's default []byte handling).
type RegisterModelRequest struct {
	Tenant        string             `json:"tenant"`
	Name          string             `json:"name"`
	Version       string             `json:"version"`
	Artifact      []byte             `json:"artifact"`
	ModelTypeHint string             `json:"model_type_hint"`
	UserFields    map[string]any     `json:"user_fields,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

// PromoteModelRequest is the request body for PUT /models/{id}/promote.
type PromoteModelRequest struct {
	Stage string `json:"stage"`
}

// GetFeaturesRequest is the request body for POST /features/get.
type GetFeaturesRequest struct {
	Tenant    string    `json:"tenant"`
	Asset     string    `json:"asset"`
	FeatureSet string   `json:"feature_set"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportFeaturesRequest is the request body for POST /features/export.
type ExportFeaturesRequest struct {
	Tenant     string    `json:"tenant"`
	FeatureSet string    `json:"feature_set"`
	AssetIDs   []string  `json:"asset_ids"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// CreateExperimentRequest is the request body for POST /experiments.
type CreateExperimentRequest struct {
	Tenant    string `json:"tenant"`
	ModelType string `json:"model_type"`
	Name      string `json:"name"`
}

// StartRunRequest is the request body for POST /experiments/{id}/runs.
type StartRunRequest struct {
	Name string            `json:"name"`
	Tags map[string]string `json:"tags,omitempty"`
}

// LogParamRequest is the request body for POST /experiments/runs/{id}/params.
type LogParamRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LogMetricRequest is the request body for POST /experiments/runs/{id}/metrics.
type LogMetricRequest struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Step  int     `json:"step"`
}

// BestRunQuery binds query params for GET /experiments/{id}/best.
type BestRunQuery struct {
	MetricKey string `json:"metric_key"`
	Maximize  bool   `json:"maximize"`
}

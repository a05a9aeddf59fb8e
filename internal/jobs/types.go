// Package jobs implements the Job Orchestrator: a priority queue and
// concurrency governor over durably-persisted training jobs.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status is a Job's lifecycle state (see Status transition rules in
// lifecycle.go).
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ModelType is the enumerated model kind a Job trains.
type ModelType string

const (
	ModelTypeForecast ModelType = "forecast"
	ModelTypeAnomaly  ModelType = "anomaly"
)

// TrainingConfig is the immutable configuration snapshot a Job carries.
type TrainingConfig struct {
	FeatureSet       string             `json:"feature_set"`
	AssetIDs         []string           `json:"asset_ids"`
	Target           string             `json:"target"`
	RangeStart       time.Time          `json:"range_start"`
	RangeEnd         time.Time          `json:"range_end"`
	Horizon          int                `json:"horizon"`
	ValidationSplit  float64            `json:"validation_split"`
	TestSplit        float64            `json:"test_split"`
	EnableHPO        bool               `json:"enable_hpo"`
	NTrials          int                `json:"n_trials"`
	Hyperparameters  map[string]any     `json:"hyperparameters"`
	EarlyStopping    *EarlyStopping     `json:"early_stopping,omitempty"`
	RandomSeed       int64              `json:"random_seed"`
	NWorkers         int                `json:"n_workers"`
	RegisterOnSuccess bool              `json:"register_on_success"`
}

// EarlyStopping is the pipeline's early-stopping policy.
type EarlyStopping struct {
	Patience int     `json:"patience"`
	MinDelta float64 `json:"min_delta"`
}

// Job is the Orchestrator's core entity. See FSM rules in lifecycle.go.
type Job struct {
	ID                       uuid.UUID          `json:"id"`
	TenantID                 string              `json:"tenant_id"`
	ModelType                ModelType           `json:"model_type"`
	ModelName                string              `json:"model_name"`
	Config                   TrainingConfig      `json:"config"`
	Priority                 int16               `json:"priority"`
	Status                   Status              `json:"status"`
	Progress                 float64             `json:"progress"`
	Metrics                  map[string]float64  `json:"metrics,omitempty"`
	ModelID                  *string             `json:"model_id,omitempty"`
	ErrorMessage             *string             `json:"error_message,omitempty"`
	EstimatedDurationSeconds int                 `json:"estimated_duration_seconds"`
	Tags                     map[string]string   `json:"tags,omitempty"`
	ScheduleExpression       *string             `json:"schedule_expression,omitempty"`
	CreatedAt                time.Time           `json:"created_at"`
	StartedAt                *time.Time          `json:"started_at,omitempty"`
	CompletedAt              *time.Time          `json:"completed_at,omitempty"`
	UpdatedAt                time.Time           `json:"updated_at"`
}

// LogEntry is one append-only job log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// ListFilters narrows list_jobs results; zero values mean "no filter".
type ListFilters struct {
	TenantID      string
	ModelType     ModelType
	ModelName     string
	Status        Status
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Page is one page of a filtered, ordered job listing.
type Page struct {
	Items    []*Job
	Total    int
	Page     int
	PageSize int
}

const maxPageSize = 100

// Package experiments implements the Experiment Tracker: experiments, runs,
// and per-run params/metrics, plus search/comparison/statistics over them
// (spec §4.4).
package experiments

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is a run's lifecycle marker.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
	RunKilled   RunStatus = "killed"
)

// Experiment groups related runs under a unique (tenant, name).
type Experiment struct {
	ID        uuid.UUID
	TenantID  string
	ModelType string
	Name      string
	CreatedAt time.Time
}

// Run is a single tracked training attempt within an Experiment.
type Run struct {
	ID           uuid.UUID
	ExperimentID uuid.UUID
	Name         string
	Status       RunStatus
	ArtifactURI  *string
	Tags         map[string]string
	StartedAt    time.Time
	EndedAt      *time.Time
}

// MetricPoint is one logged value of a named metric at a training step.
type MetricPoint struct {
	Key       string
	Value     float64
	Step      int
	Timestamp time.Time
}

// Stats is the aggregate statistics of one metric across an experiment's
// runs, computed from each run's final (highest-step) logged value.
type Stats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// SearchFilters narrows a run search.
type SearchFilters struct {
	ExperimentID uuid.UUID
	Status       RunStatus
	TagKey       string
	TagValue     string
}

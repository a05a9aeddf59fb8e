// Package hpo implements the HPO Study Engine: pluggable sampling/pruning
// strategies over a persisted study/trial schema (spec §4.5).
package hpo

import "time"

// Direction is the optimization sense of a study's objective.
type Direction string

const (
	DirectionMinimize Direction = "minimize"
	DirectionMaximize Direction = "maximize"
)

// TrialState is a trial's terminal or in-flight status.
type TrialState string

const (
	TrialRunning  TrialState = "running"
	TrialComplete TrialState = "complete"
	TrialPruned   TrialState = "pruned"
	TrialFailed   TrialState = "failed"
)

// ParamKind discriminates a ParamSpec's shape (Design Notes: explicit
// discriminated union in place of duck-typed search-space descriptors).
type ParamKind string

const (
	ParamInt         ParamKind = "int"
	ParamFloat       ParamKind = "float"
	ParamCategorical ParamKind = "categorical"
	ParamLogUniform  ParamKind = "log_uniform"
)

// IntRange bounds an integer parameter, inclusive.
type IntRange struct {
	Low, High int
}

// FloatRange bounds a continuous parameter, inclusive.
type FloatRange struct {
	Low, High float64
}

// ParamSpec describes one dimension of a search space.
type ParamSpec struct {
	Kind        ParamKind
	Int         *IntRange
	Float       *FloatRange
	Categorical []string
	LogUniform  *FloatRange
}

// SearchSpace maps parameter name to its spec.
type SearchSpace map[string]ParamSpec

// Params is a concrete parameter assignment sampled from a SearchSpace.
type Params map[string]any

// Study is a named hyperparameter optimization run configuration.
type Study struct {
	Name            string
	TenantID        string
	ModelType       string
	Direction       Direction
	Sampler         string
	Pruner          string
	NTrialsTarget   int
	TimeoutSeconds  int
	UserAttrs       map[string]any
	CreatedAt       time.Time
}

// Trial is one sampled-and-evaluated point within a Study.
type Trial struct {
	ID             int64
	StudyName      string
	TrialNumber    int
	State          TrialState
	Params         Params
	ObjectiveValue *float64
	Intermediate   map[int]float64
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// HistoryPoint is one (trial, value, best-so-far) triple from
// GetOptimizationHistory.
type HistoryPoint struct {
	TrialNumber int
	Value       float64
	BestSoFar   float64
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"strings"

	"github.com/correlator-io/trainhub/internal/jobs"
	"github.com/correlator-io/trainhub/internal/kinderr"
	"github.com/correlator-io/trainhub/internal/model"
	"github.com/correlator-io/trainhub/internal/registry"
	"github.com/correlator-io/trainhub/internal/storage"
	"github.com/correlator-io/trainhub/internal/validator"
)

// Progress milestones at each stage's completion (spec §4.6).
const (
	progressLoad       = 0.20
	progressPreprocess = 0.40
	progressFit        = 0.70
	progressEvaluate   = 0.85
	progressRegister   = 1.00
)

// modelRegistry is the subset of *registry.Registry the Executor depends
// on.
type modelRegistry interface {
	Register(
		ctx context.Context,
		tenant, name, version string,
		artifact []byte,
		modelTypeHint string,
		userFields map[string]any,
		metrics map[string]float64,
	) (*registry.Metadata, error)
}

// Executor runs the five-stage Training Pipeline and satisfies
// internal/jobs.Executor (spec §4.6).
type Executor struct {
	conn     *storage.Connection
	features featureSource
	registry modelRegistry
	hpo      hpoEngine
	logger   *slog.Logger
}

// ExecutorOption configures optional Executor dependencies.
type ExecutorOption func(*Executor)

// WithHPO wires an HPO Study Engine so Execute searches hyperparameters for
// jobs with EnableHPO set, rather than skipping straight to a single Fit
// call (spec.md's data flow: the pipeline "optionally asks the HPO Engine
// to search"). Without this option, EnableHPO jobs fall back to a
// single-run Fit using whatever scalar hyperparameter overrides the config
// supplies.
func WithHPO(engine hpoEngine) ExecutorOption {
	return func(e *Executor) { e.hpo = engine }
}

// NewExecutor constructs an Executor.
func NewExecutor(
	conn *storage.Connection,
	features featureSource,
	reg modelRegistry,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{conn: conn, features: features, registry: reg, logger: logger}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// rescale applies a fitted Scaler to a Dataset's feature values, rebuilding
// Rows with scaled features under the same FeatureNames ordering.
func rescale(ds Dataset, scaler *Scaler) Dataset {
	x, _ := ds.Matrix()
	scaledX := scaler.Transform(x)

	rows := make([]Row, len(ds.Rows))

	for i, row := range ds.Rows {
		features := make(map[string]float64, len(ds.FeatureNames))
		for j, name := range ds.FeatureNames {
			features[name] = scaledX[i][j]
		}

		rows[i] = Row{AssetID: row.AssetID, Timestamp: row.Timestamp, Features: features, Target: row.Target}
	}

	return Dataset{FeatureNames: ds.FeatureNames, Rows: rows}
}

// Execute runs Load→Preprocess→Fit→Evaluate→Register for job, reporting
// progress at each stage's completion milestone.
func (e *Executor) Execute(
	ctx context.Context,
	job *jobs.Job,
	onProgress func(fraction float64, metrics map[string]float64),
) (modelID string, metrics map[string]float64, err error) {
	// Load
	dataset, err := Load(ctx, e.conn, e.features, job.TenantID, job.Config)
	if err != nil {
		return "", nil, fmt.Errorf("load stage: %w", err)
	}

	onProgress(progressLoad, nil)

	// Preprocess
	split := TimeOrderedSplit(dataset, job.Config.ValidationSplit, job.Config.TestSplit)

	trainX, trainY := split.Train.Matrix()
	scaler := FitScaler(trainX)
	scaledTrainX := scaler.Transform(trainX)

	scaledTest := rescale(split.Test, scaler)
	scaledValidation := rescale(split.Validation, scaler)

	onProgress(progressPreprocess, nil)

	// Fit: if the job requests HPO and an engine is wired, search
	// hyperparameters against the validation split first and fold the
	// winning trial's assignment into the config before the final fit.
	fitConfig := job.Config

	if job.Config.EnableHPO && e.hpo != nil && job.Config.NTrials > 0 {
		best, searchErr := searchHyperparameters(ctx, e.hpo, job, scaledTrainX, trainY, scaledValidation)
		if searchErr != nil {
			return "", nil, fmt.Errorf("hpo search: %w", searchErr)
		}

		if best != nil {
			merged := make(map[string]any, len(job.Config.Hyperparameters)+len(best))
			for k, v := range job.Config.Hyperparameters {
				merged[k] = v
			}

			for k, v := range best {
				merged[k] = v
			}

			fitConfig.Hyperparameters = merged
		}
	}

	fitted, err := Fit(e.logger, job.ModelType, fitConfig, scaledTrainX, trainY)
	if err != nil {
		return "", nil, fmt.Errorf("fit stage: %w", err)
	}

	onProgress(progressFit, nil)

	// Evaluate
	var evalMetrics map[string]float64

	switch job.ModelType {
	case jobs.ModelTypeForecast:
		evalMetrics, err = EvaluateForecast(fitted, scaledTest)
	case jobs.ModelTypeAnomaly:
		evalMetrics, err = EvaluateAnomaly(fitted, scaledTest)
	default:
		err = kinderr.New(kinderr.Validation, fmt.Sprintf("unknown model type %q", job.ModelType))
	}

	if err != nil {
		return "", nil, fmt.Errorf("evaluate stage: %w", err)
	}

	onProgress(progressEvaluate, evalMetrics)

	// Validate: threshold/baseline/drift/stability checks gate registration
	// (spec §4.8's data-flow position, stage 8 before the Registry).
	report := validator.Validate(validator.Input{ModelType: job.ModelType, Metrics: evalMetrics})
	if !report.Passed {
		return "", evalMetrics, kinderr.New(
			kinderr.Validation,
			fmt.Sprintf("model failed validation: %s", strings.Join(report.Failures, "; ")),
		)
	}

	if !job.Config.RegisterOnSuccess {
		onProgress(progressRegister, evalMetrics)

		return "", evalMetrics, nil
	}

	// Register: guarded by a ctx check before the first write so a job
	// cancelled or superseded after Validate never reaches the registry
	// (spec §5).
	if err := ctx.Err(); err != nil {
		return "", evalMetrics, fmt.Errorf("register stage: %w", err)
	}

	envelope, err := model.Encode(fitted)
	if err != nil {
		return "", nil, fmt.Errorf("encode model: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope); err != nil {
		return "", nil, fmt.Errorf("encode envelope: %w", err)
	}

	version := job.ID.String()

	userFields := map[string]any{"training_config": job.Config}

	_, err = e.registry.Register(ctx, job.TenantID, job.ModelName, version, buf.Bytes(), string(job.ModelType), userFields, evalMetrics)
	if err != nil {
		return "", nil, fmt.Errorf("register stage: %w", err)
	}

	modelID = fmt.Sprintf("%s:%s:%s", job.TenantID, job.ModelName, version)

	onProgress(progressRegister, evalMetrics)

	return modelID, evalMetrics, nil
}

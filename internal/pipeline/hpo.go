package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/correlator-io/trainhub/internal/hpo"
	"github.com/correlator-io/trainhub/internal/jobs"
	"github.com/correlator-io/trainhub/internal/model"
)

// hpoEngine is the subset of *hpo.Engine the Executor depends on, named so
// tests can substitute a fake without a Postgres-backed study/trial store.
type hpoEngine interface {
	CreateStudy(ctx context.Context, study *hpo.Study, seed int64) error
	Optimize(
		ctx context.Context,
		study *hpo.Study,
		space hpo.SearchSpace,
		objective hpo.Objective,
		nTrials int,
		timeout time.Duration,
		seed int64,
		progress hpo.ProgressCallback,
	) error
	BestTrial(ctx context.Context, study *hpo.Study) (*hpo.Trial, error)
}

// direction returns the optimization sense of a model type's primary
// objective: forecast trials minimize MAE, anomaly trials maximize F1.
func direction(modelType jobs.ModelType) hpo.Direction {
	if modelType == jobs.ModelTypeAnomaly {
		return hpo.DirectionMaximize
	}

	return hpo.DirectionMinimize
}

// searchHyperparameters runs an HPO study over job's search space, fitting
// and evaluating one candidate model per trial against the validation
// split, and returns the best trial's parameter assignment. Callers merge
// the result into the job's hyperparameter overrides before the final Fit
// (spec.md's data flow: the Training Pipeline "optionally asks the HPO
// Engine to search" before producing its final model).
func searchHyperparameters(
	ctx context.Context,
	engine hpoEngine,
	job *jobs.Job,
	trainX [][]float64,
	trainY []float64,
	validation Dataset,
) (map[string]any, error) {
	spaces, err := hpo.LoadDefaultSearchSpaces()
	if err != nil {
		return nil, fmt.Errorf("load search spaces: %w", err)
	}

	space, ok := spaces[string(job.ModelType)]
	if !ok {
		return nil, fmt.Errorf("no default search space for model type %q", job.ModelType)
	}

	study := &hpo.Study{
		Name:          "job-" + job.ID.String(),
		TenantID:      job.TenantID,
		ModelType:     string(job.ModelType),
		Direction:     direction(job.ModelType),
		Sampler:       "tpe",
		Pruner:        "median",
		NTrialsTarget: job.Config.NTrials,
	}

	if err := engine.CreateStudy(ctx, study, job.Config.RandomSeed); err != nil {
		return nil, fmt.Errorf("create study: %w", err)
	}

	valX, valY := validation.Matrix()

	objective := func(
		ctx context.Context,
		params hpo.Params,
		_ func(step int, value float64),
		_ func() bool,
	) (float64, error) {
		candidate, err := fitCandidate(job.ModelType, params, job.Config.RandomSeed, trainX, trainY)
		if err != nil {
			return 0, err
		}

		return scoreCandidate(job.ModelType, candidate, valX, valY)
	}

	// TrainingConfig carries no study-level wall-clock timeout; trial count
	// alone bounds the search.
	if err := engine.Optimize(ctx, study, space, objective, job.Config.NTrials, 0, job.Config.RandomSeed, nil); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	best, err := engine.BestTrial(ctx, study)
	if err != nil {
		return nil, fmt.Errorf("best trial: %w", err)
	}

	if best == nil {
		return nil, nil
	}

	return best.Params, nil
}

// fitCandidate trains one trial's candidate model from a parameter
// assignment, reusing the same hyperparameter-extraction rules as the
// final Fit stage.
func fitCandidate(
	modelType jobs.ModelType,
	params hpo.Params,
	seed int64,
	trainX [][]float64,
	trainY []float64,
) (model.Model, error) {
	nEstimators, learningRate := resolveHyperparameters(params)

	switch modelType {
	case jobs.ModelTypeForecast:
		return model.NewForecastGBT(trainX, trainY, nEstimators, learningRate, seed)
	case jobs.ModelTypeAnomaly:
		return model.NewAnomalyIForest(trainX, nEstimators, seed)
	default:
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}
}

// scoreCandidate evaluates a trial's candidate against the validation
// split, returning the value the study direction optimizes (MAE for
// forecast — lower is better; F1 for anomaly — higher is better).
func scoreCandidate(modelType jobs.ModelType, candidate model.Model, valX [][]float64, valY []float64) (float64, error) {
	switch modelType {
	case jobs.ModelTypeForecast:
		preds, err := candidate.Predict(valX)
		if err != nil {
			return 0, err
		}

		var sumAbs float64

		for i, pred := range preds {
			d := valY[i] - pred
			if d < 0 {
				d = -d
			}

			sumAbs += d
		}

		return sumAbs / float64(len(valY)), nil
	case jobs.ModelTypeAnomaly:
		scores, err := candidate.Predict(valX)
		if err != nil {
			return 0, err
		}

		var truePos, falsePos, falseNeg float64

		for i, score := range scores {
			predicted := score >= anomalyThreshold
			actual := valY[i] >= 0.5

			switch {
			case predicted && actual:
				truePos++
			case predicted && !actual:
				falsePos++
			case !predicted && actual:
				falseNeg++
			}
		}

		precision := safeDiv(truePos, truePos+falsePos)
		recall := safeDiv(truePos, truePos+falseNeg)

		return safeDiv(2*precision*recall, precision+recall), nil
	default:
		return 0, fmt.Errorf("unknown model type %q", modelType)
	}
}

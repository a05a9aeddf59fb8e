package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/correlator-io/trainhub/internal/jobs"
	"github.com/correlator-io/trainhub/internal/model"
)

const (
	defaultNEstimators  = 100
	defaultLearningRate = 0.1
)

// resolveHyperparameters extracts concrete scalar overrides from the
// config's hyperparameter map. Per spec §4.6: any value that is a map (a
// search-space descriptor) is ignored in single-run Fit — the default for
// that key applies; concrete scalar values override defaults.
func resolveHyperparameters(hp map[string]any) (nEstimators int, learningRate float64) {
	nEstimators, learningRate = defaultNEstimators, defaultLearningRate

	if v, ok := hp["n_estimators"]; ok {
		if scalar, isMap := asInt(v); !isMap {
			nEstimators = scalar
		}
	}

	if v, ok := hp["learning_rate"]; ok {
		if scalar, isMap := asFloat(v); !isMap {
			learningRate = scalar
		}
	}

	return nEstimators, learningRate
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, false
	case float64:
		return int(n), false
	case map[string]any:
		return 0, true
	default:
		return 0, true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, false
	case int:
		return float64(n), false
	case map[string]any:
		return 0, true
	default:
		return 0, true
	}
}

// Fit trains a model for the job's model type against the (already scaled)
// training split. Execution mode (single-node vs distributed) is chosen per
// spec §4.6 policy, but this module has no distributed runtime wired in, so
// every Fit call runs single-node; the policy decision is still logged so
// the threshold is observable.
func Fit(logger *slog.Logger, modelType jobs.ModelType, cfg jobs.TrainingConfig, trainX [][]float64, trainY []float64) (model.Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	distributed := cfg.NWorkers > 1 && len(trainX) > DistributedRowThreshold
	if distributed {
		logger.Debug("distributed execution eligible but no distributed runtime is wired; running single-node",
			slog.Int("n_workers", cfg.NWorkers), slog.Int("rows", len(trainX)))
	}

	nEstimators, learningRate := resolveHyperparameters(cfg.Hyperparameters)

	switch modelType {
	case jobs.ModelTypeForecast:
		return model.NewForecastGBT(trainX, trainY, nEstimators, learningRate, cfg.RandomSeed)
	case jobs.ModelTypeAnomaly:
		return model.NewAnomalyIForest(trainX, nEstimators, cfg.RandomSeed)
	default:
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}
}

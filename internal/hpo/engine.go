package hpo

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Objective evaluates one trial. It may report intermediate values via
// reportIntermediate and check shouldPrune cooperatively after each report
// (spec §4.5 "may report intermediate values and be asked to prune").
type Objective func(
	ctx context.Context,
	params Params,
	reportIntermediate func(step int, value float64),
	shouldPrune func() bool,
) (objectiveValue float64, err error)

// ProgressCallback is notified after each trial with (completed, total).
type ProgressCallback func(completed, total int)

// Engine is the HPO Study Engine (spec §4.5).
type Engine struct {
	store  *Store
	logger *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(store *Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{store: store, logger: logger}
}

// GetStudy returns a persisted study by name.
func (e *Engine) GetStudy(ctx context.Context, name string) (*Study, error) {
	return e.store.GetStudy(ctx, name)
}

// ListTrials returns a study's trials ordered by trial number.
func (e *Engine) ListTrials(ctx context.Context, studyName string) ([]Trial, error) {
	return e.store.ListTrials(ctx, studyName)
}

// DeleteStudy removes a study and its trials.
func (e *Engine) DeleteStudy(ctx context.Context, name string) error {
	return e.store.DeleteStudy(ctx, name)
}

// CreateStudy instantiates a sampler and pruner by name (validating both
// eagerly — unknown names raise config, spec §4.5) and persists the study.
func (e *Engine) CreateStudy(ctx context.Context, study *Study, seed int64) error {
	if _, err := NewSampler(study.Sampler, seed); err != nil {
		return err
	}

	if _, err := NewPruner(study.Pruner); err != nil {
		return err
	}

	study.CreatedAt = time.Now().UTC()

	return e.store.CreateStudy(ctx, study)
}

// trialPruned is returned by Optimize's internal objective wrapper when the
// pruner requests early stop; it is not propagated as an Engine-level error.
type trialPruned struct{}

func (trialPruned) Error() string { return "trial pruned" }

// Optimize runs the ask-evaluate-tell loop for up to nTrials trials or until
// timeout, whichever comes first (spec §4.5).
func (e *Engine) Optimize(
	ctx context.Context,
	study *Study,
	space SearchSpace,
	objective Objective,
	nTrials int,
	timeout time.Duration,
	seed int64,
	progress ProgressCallback,
) error {
	sampler, err := NewSampler(study.Sampler, seed)
	if err != nil {
		return err
	}

	pruner, err := NewPruner(study.Pruner)
	if err != nil {
		return err
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	history, err := e.store.ListTrials(ctx, study.Name)
	if err != nil {
		return err
	}

	startNumber := len(history)

	for i := 0; i < nTrials; i++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := sampler.Suggest(space, history)

		trial := &Trial{
			StudyName:    study.Name,
			TrialNumber:  startNumber + i,
			State:        TrialRunning,
			Params:       params,
			Intermediate: make(map[int]float64),
			StartedAt:    time.Now().UTC(),
		}

		if err := e.store.AppendTrial(ctx, trial); err != nil {
			return err
		}

		e.runTrial(ctx, trial, pruner, history, objective)

		if err := e.store.UpdateTrial(ctx, trial); err != nil {
			return err
		}

		history = append(history, *trial)

		if progress != nil {
			progress(i+1, nTrials)
		}
	}

	return nil
}

func (e *Engine) runTrial(ctx context.Context, trial *Trial, pruner Pruner, history []Trial, objective Objective) {
	reportIntermediate := func(step int, value float64) {
		trial.Intermediate[step] = value
	}

	var pruned bool

	shouldPrune := func() bool {
		for step, value := range trial.Intermediate {
			if pruner.ShouldPrune(*trial, step, value, history) {
				pruned = true

				return true
			}
		}

		return false
	}

	value, err := objective(ctx, trial.Params, reportIntermediate, shouldPrune)

	now := time.Now().UTC()
	trial.CompletedAt = &now

	switch {
	case pruned:
		trial.State = TrialPruned
	case err != nil:
		trial.State = TrialFailed
		e.logger.Warn("trial failed", slog.Int("trial_number", trial.TrialNumber), slog.Any("error", err))
	default:
		trial.State = TrialComplete
		trial.ObjectiveValue = &value
	}
}

// BestTrial returns the best complete trial under the study's direction.
func (e *Engine) BestTrial(ctx context.Context, study *Study) (*Trial, error) {
	trials, err := e.store.ListTrials(ctx, study.Name)
	if err != nil {
		return nil, err
	}

	complete := completeTrials(trials)
	if len(complete) == 0 {
		return nil, fmt.Errorf("%w: no complete trials in study %s", ErrConfig, study.Name)
	}

	best := bestTrial(complete, study.Direction)

	return &best, nil
}

// GetOptimizationHistory returns ordered (trial-number, value, best-so-far)
// triples where best-so-far is monotone under the study's direction (spec
// §4.5).
func (e *Engine) GetOptimizationHistory(ctx context.Context, study *Study) ([]HistoryPoint, error) {
	trials, err := e.store.ListTrials(ctx, study.Name)
	if err != nil {
		return nil, err
	}

	var (
		history []HistoryPoint
		best    float64
		set     bool
	)

	for _, t := range completeTrials(trials) {
		if !set || better(*t.ObjectiveValue, best, study.Direction) {
			best = *t.ObjectiveValue
			set = true
		}

		history = append(history, HistoryPoint{TrialNumber: t.TrialNumber, Value: *t.ObjectiveValue, BestSoFar: best})
	}

	return history, nil
}

// ParamImportance returns a simplified fANOVA-style importance score per
// parameter: the fraction of total output-variance reduction attributable
// to each dimension, estimated via single-factor variance decomposition
// over complete trials. Requires at least 2 complete trials; otherwise
// returns an empty map without error (spec §4.5).
func (e *Engine) ParamImportance(ctx context.Context, study *Study) (map[string]float64, error) {
	trials, err := e.store.ListTrials(ctx, study.Name)
	if err != nil {
		return nil, err
	}

	complete := completeTrials(trials)
	if len(complete) < 2 {
		return map[string]float64{}, nil
	}

	totalVariance := varianceOf(objectiveValues(complete))
	if totalVariance == 0 {
		return map[string]float64{}, nil
	}

	importance := make(map[string]float64)

	paramNames := collectParamNames(complete)
	for _, name := range paramNames {
		groups := groupByParamValue(complete, name)
		importance[name] = betweenGroupVariance(groups) / totalVariance
	}

	return importance, nil
}

func objectiveValues(trials []Trial) []float64 {
	values := make([]float64, len(trials))
	for i, t := range trials {
		values[i] = *t.ObjectiveValue
	}

	return values
}

func varianceOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}

	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}

	return variance / float64(len(values))
}

func collectParamNames(trials []Trial) []string {
	seen := make(map[string]bool)

	var names []string

	for _, t := range trials {
		for name := range t.Params {
			if !seen[name] {
				seen[name] = true

				names = append(names, name)
			}
		}
	}

	return names
}

func groupByParamValue(trials []Trial, param string) map[string][]float64 {
	groups := make(map[string][]float64)

	for _, t := range trials {
		key := fmt.Sprintf("%v", t.Params[param])
		groups[key] = append(groups[key], *t.ObjectiveValue)
	}

	return groups
}

func betweenGroupVariance(groups map[string][]float64) float64 {
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}

	grandMean := 0.0
	for _, v := range all {
		grandMean += v
	}

	grandMean /= float64(len(all))

	variance := 0.0

	for _, g := range groups {
		groupMean := 0.0
		for _, v := range g {
			groupMean += v
		}

		groupMean /= float64(len(g))

		d := groupMean - grandMean
		variance += d * d * float64(len(g))
	}

	return variance / float64(len(all))
}

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trainhub/internal/hpo"
	"github.com/correlator-io/trainhub/internal/jobs"
)

// fakeHPOEngine runs Optimize's ask-evaluate-tell loop in memory, with no
// persistence, so searchHyperparameters can be tested without Postgres.
type fakeHPOEngine struct {
	trials []hpo.Trial
	study  *hpo.Study
}

func (f *fakeHPOEngine) CreateStudy(_ context.Context, study *hpo.Study, _ int64) error {
	f.study = study

	return nil
}

func (f *fakeHPOEngine) Optimize(
	ctx context.Context,
	study *hpo.Study,
	space hpo.SearchSpace,
	objective hpo.Objective,
	nTrials int,
	_ time.Duration,
	seed int64,
	_ hpo.ProgressCallback,
) error {
	sampler, err := hpo.NewSampler(study.Sampler, seed)
	if err != nil {
		return err
	}

	for i := 0; i < nTrials; i++ {
		params := sampler.Suggest(space, f.trials)

		value, err := objective(ctx, params, func(int, float64) {}, func() bool { return false })
		if err != nil {
			return err
		}

		f.trials = append(f.trials, hpo.Trial{
			TrialNumber:    i,
			State:          hpo.TrialComplete,
			Params:         params,
			ObjectiveValue: &value,
		})
	}

	return nil
}

func (f *fakeHPOEngine) BestTrial(_ context.Context, study *hpo.Study) (*hpo.Trial, error) {
	if len(f.trials) == 0 {
		return nil, nil
	}

	best := f.trials[0]

	for _, t := range f.trials[1:] {
		if study.Direction == hpo.DirectionMinimize && *t.ObjectiveValue < *best.ObjectiveValue {
			best = t
		}

		if study.Direction == hpo.DirectionMaximize && *t.ObjectiveValue > *best.ObjectiveValue {
			best = t
		}
	}

	return &best, nil
}

func forecastDataset(n int) ([][]float64, []float64, Dataset) {
	x := make([][]float64, n)
	y := make([]float64, n)
	rows := make([]Row, n)

	for i := 0; i < n; i++ {
		x[i] = []float64{float64(i)}
		y[i] = float64(2 * i)
		rows[i] = Row{Features: map[string]float64{"x": float64(i)}, Target: float64(2 * i)}
	}

	return x, y, Dataset{FeatureNames: []string{"x"}, Rows: rows}
}

func TestSearchHyperparameters_ReturnsBestTrialParams(t *testing.T) {
	trainX, trainY, _ := forecastDataset(60)
	_, _, validation := forecastDataset(20)

	engine := &fakeHPOEngine{}
	job := &jobs.Job{
		ID:        uuid.New(),
		TenantID:  "acme",
		ModelType: jobs.ModelTypeForecast,
		Config:    jobs.TrainingConfig{NTrials: 5, RandomSeed: 1},
	}

	params, err := searchHyperparameters(context.Background(), engine, job, trainX, trainY, validation)

	require.NoError(t, err)
	require.NotNil(t, params)
	assert.Contains(t, params, "n_estimators")
	assert.Equal(t, "job-"+job.ID.String(), engine.study.Name)
	assert.Equal(t, hpo.DirectionMinimize, engine.study.Direction)
	assert.Len(t, engine.trials, 5)
}

func TestDirection_AnomalyMaximizesFScore(t *testing.T) {
	assert.Equal(t, hpo.DirectionMaximize, direction(jobs.ModelTypeAnomaly))
	assert.Equal(t, hpo.DirectionMinimize, direction(jobs.ModelTypeForecast))
}

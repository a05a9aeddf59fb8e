package hpo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intSpace() SearchSpace {
	return SearchSpace{
		"n_estimators": ParamSpec{Kind: ParamInt, Int: &IntRange{Low: 10, High: 100}},
		"learning_rate": ParamSpec{Kind: ParamFloat, Float: &FloatRange{Low: 0.01, High: 0.5}},
		"kernel": ParamSpec{Kind: ParamCategorical, Categorical: []string{"rbf", "linear"}},
	}
}

func TestNewSampler_UnknownNameErrors(t *testing.T) {
	_, err := NewSampler("nonexistent", 1)

	require.ErrorIs(t, err, ErrConfig)
}

func TestNewSampler_KnownNamesConstruct(t *testing.T) {
	for _, name := range []string{"random", "tpe", "grid"} {
		s, err := NewSampler(name, 42)
		require.NoError(t, err)
		require.NotNil(t, s)
	}
}

func TestRandomSampler_RespectsBounds(t *testing.T) {
	sampler, err := NewSampler("random", 1)
	require.NoError(t, err)

	space := intSpace()

	for i := 0; i < 50; i++ {
		params := sampler.Suggest(space, nil)

		n, ok := params["n_estimators"].(int)
		require.True(t, ok)
		assert.GreaterOrEqual(t, n, 10)
		assert.LessOrEqual(t, n, 100)

		lr, ok := params["learning_rate"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, lr, 0.01)
		assert.LessOrEqual(t, lr, 0.5)

		kernel, ok := params["kernel"].(string)
		require.True(t, ok)
		assert.Contains(t, []string{"rbf", "linear"}, kernel)
	}
}

func TestTPESampler_FallsBackToRandomDuringStartup(t *testing.T) {
	sampler, err := NewSampler("tpe", 7)
	require.NoError(t, err)

	space := intSpace()
	params := sampler.Suggest(space, nil)

	assert.Contains(t, params, "n_estimators")
	assert.Contains(t, params, "learning_rate")
	assert.Contains(t, params, "kernel")
}

func TestTPESampler_ExploitsAfterStartup(t *testing.T) {
	sampler, err := NewSampler("tpe", 7)
	require.NoError(t, err)

	space := intSpace()

	obj := 0.5
	history := make([]Trial, 0, 12)

	for i := 0; i < 12; i++ {
		v := obj + float64(i)
		history = append(history, Trial{
			State:          TrialComplete,
			ObjectiveValue: &v,
			Params:         Params{"n_estimators": 50, "learning_rate": 0.2, "kernel": "rbf"},
		})
	}

	params := sampler.Suggest(space, history)
	assert.Contains(t, params, "n_estimators")
}

func TestGridSampler_EnumeratesFullGrid(t *testing.T) {
	sampler, err := NewSampler("grid", 3)
	require.NoError(t, err)

	space := SearchSpace{
		"kernel": ParamSpec{Kind: ParamCategorical, Categorical: []string{"a", "b"}},
	}

	seen := map[string]bool{}

	for i := 0; i < 4; i++ {
		params := sampler.Suggest(space, nil)
		seen[params["kernel"].(string)] = true
	}

	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestCompleteTrials_FiltersIncompleteAndPruned(t *testing.T) {
	v := 1.0
	history := []Trial{
		{State: TrialComplete, ObjectiveValue: &v},
		{State: TrialRunning},
		{State: TrialPruned},
		{State: TrialComplete, ObjectiveValue: nil},
	}

	complete := completeTrials(history)
	assert.Len(t, complete, 1)
}

func TestBetter_RespectsDirection(t *testing.T) {
	assert.True(t, better(1.0, 2.0, DirectionMinimize))
	assert.False(t, better(2.0, 1.0, DirectionMinimize))
	assert.True(t, better(2.0, 1.0, DirectionMaximize))
	assert.False(t, better(1.0, 2.0, DirectionMaximize))
}

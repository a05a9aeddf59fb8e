package hpo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPruner_UnknownNameErrors(t *testing.T) {
	_, err := NewPruner("nonexistent")

	require.ErrorIs(t, err, ErrConfig)
}

func TestNonePruner_NeverPrunes(t *testing.T) {
	p, err := NewPruner("none")
	require.NoError(t, err)

	assert.False(t, p.ShouldPrune(Trial{}, 100, 9999, nil))
}

func TestMedianPruner_NoPruneBeforeWarmup(t *testing.T) {
	p, err := NewPruner("median")
	require.NoError(t, err)

	assert.False(t, p.ShouldPrune(Trial{}, 2, 1000, completedHistoryAtStep(5, 2, 1.0)))
}

func TestMedianPruner_NoPruneBelowStartupCount(t *testing.T) {
	p, err := NewPruner("median")
	require.NoError(t, err)

	assert.False(t, p.ShouldPrune(Trial{}, 10, 1000, completedHistoryAtStep(2, 10, 1.0)))
}

func TestMedianPruner_PrunesWorseThanMedian(t *testing.T) {
	p, err := NewPruner("median")
	require.NoError(t, err)

	history := completedHistoryAtStep(5, 10, 1.0)

	assert.True(t, p.ShouldPrune(Trial{}, 10, 1000.0, history))
	assert.False(t, p.ShouldPrune(Trial{}, 10, 0.5, history))
}

func completedHistoryAtStep(n, step int, value float64) []Trial {
	history := make([]Trial, 0, n)

	for i := 0; i < n; i++ {
		v := value
		history = append(history, Trial{
			State:          TrialComplete,
			ObjectiveValue: &v,
			Intermediate:   map[int]float64{step: value + float64(i)},
		})
	}

	return history
}

func TestHyperbandPruner_OnlyActsAtRungBoundaries(t *testing.T) {
	p, err := NewPruner("hyperband")
	require.NoError(t, err)

	history := completedHistoryAtStep(10, 2, 1.0)

	assert.False(t, p.ShouldPrune(Trial{}, 2, 1000.0, history))
}

func TestHyperbandPruner_PrunesBottomFraction(t *testing.T) {
	p, err := NewPruner("hyperband")
	require.NoError(t, err)

	history := make([]Trial, 0, 9)

	for i := 0; i < 9; i++ {
		v := float64(i)
		history = append(history, Trial{
			State:          TrialComplete,
			ObjectiveValue: &v,
			Intermediate:   map[int]float64{3: float64(i)},
		})
	}

	assert.True(t, p.ShouldPrune(Trial{}, 3, 8.0, history))
	assert.False(t, p.ShouldPrune(Trial{}, 3, 0.0, history))
}

func TestIsRungBoundary(t *testing.T) {
	assert.True(t, isRungBoundary(1, 3))
	assert.True(t, isRungBoundary(3, 3))
	assert.True(t, isRungBoundary(9, 3))
	assert.False(t, isRungBoundary(2, 3))
	assert.False(t, isRungBoundary(0, 3))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
}

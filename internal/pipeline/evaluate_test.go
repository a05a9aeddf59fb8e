package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trainhub/internal/model"
)

// fakeModel returns a fixed prediction per row, independent of input.
type fakeModel struct {
	preds []float64
	score float64
	kind  model.Kind
}

func (f *fakeModel) Predict(x [][]float64) ([]float64, error)          { return f.preds, nil }
func (f *fakeModel) FeatureCount() int                                 { return 1 }
func (f *fakeModel) Score(x [][]float64, y []float64) (float64, error) { return f.score, nil }
func (f *fakeModel) Kind() model.Kind                                  { return f.kind }

func TestEvaluateForecast_ComputesMetrics(t *testing.T) {
	test := Dataset{
		FeatureNames: []string{"x"},
		Rows: []Row{
			{Features: map[string]float64{"x": 0}, Target: 10},
			{Features: map[string]float64{"x": 1}, Target: 20},
		},
	}

	m := &fakeModel{preds: []float64{10, 18}, score: 0.95}

	metrics, err := EvaluateForecast(m, test)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, metrics["mae"], 1e-9)
	assert.InDelta(t, 0.95, metrics["r2"], 1e-9)
}

func TestEvaluateAnomaly_ComputesConfusionMetrics(t *testing.T) {
	test := Dataset{
		FeatureNames: []string{"x"},
		Rows: []Row{
			{Features: map[string]float64{"x": 0}, Target: 1},
			{Features: map[string]float64{"x": 1}, Target: 0},
			{Features: map[string]float64{"x": 2}, Target: 1},
			{Features: map[string]float64{"x": 3}, Target: 0},
		},
	}

	m := &fakeModel{preds: []float64{0.9, 0.1, 0.9, 0.9}}

	metrics, err := EvaluateAnomaly(m, test)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, metrics["rec"], 1e-9)
	assert.InDelta(t, 2.0/3.0, metrics["prec"], 1e-9)
}

func TestApproximateAUC_PerfectSeparationScoresOne(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	labels := []float64{0, 0, 1, 1}

	assert.Equal(t, 1.0, approximateAUC(scores, labels))
}

func TestApproximateAUC_SingleClassReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, approximateAUC([]float64{0.1, 0.2}, []float64{0, 0}))
}

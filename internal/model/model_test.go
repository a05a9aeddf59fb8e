package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearDataset(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)

	for i := 0; i < n; i++ {
		x[i] = []float64{float64(i)}
		y[i] = float64(2 * i)
	}

	return x, y
}

func TestForecastGBT_FitIsDeterministicForFixedSeed(t *testing.T) {
	x, y := linearDataset(50)

	m1, err := NewForecastGBT(x, y, 10, 0.1, 42)
	require.NoError(t, err)

	m2, err := NewForecastGBT(x, y, 10, 0.1, 42)
	require.NoError(t, err)

	p1, err := m1.Predict(x)
	require.NoError(t, err)

	p2, err := m2.Predict(x)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
}

func TestForecastGBT_RejectsEmptyDataset(t *testing.T) {
	_, err := NewForecastGBT(nil, nil, 10, 0.1, 1)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestForecastGBT_PredictRejectsFeatureCountMismatch(t *testing.T) {
	x, y := linearDataset(20)

	m, err := NewForecastGBT(x, y, 5, 0.1, 1)
	require.NoError(t, err)

	_, err = m.Predict([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestForecastGBT_ScoreFitsReasonablyWell(t *testing.T) {
	x, y := linearDataset(100)

	m, err := NewForecastGBT(x, y, 50, 0.2, 7)
	require.NoError(t, err)

	r2, err := m.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.5)
}

func TestAnomalyIForest_FitIsDeterministicForFixedSeed(t *testing.T) {
	x, _ := linearDataset(300)

	m1, err := NewAnomalyIForest(x, 20, 42)
	require.NoError(t, err)

	m2, err := NewAnomalyIForest(x, 20, 42)
	require.NoError(t, err)

	s1, err := m1.Predict(x[:10])
	require.NoError(t, err)

	s2, err := m2.Predict(x[:10])
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
}

func TestAnomalyIForest_RejectsEmptyDataset(t *testing.T) {
	_, err := NewAnomalyIForest(nil, 10, 1)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestEncodeDecode_RoundTripsForecastModel(t *testing.T) {
	x, y := linearDataset(30)

	m, err := NewForecastGBT(x, y, 5, 0.1, 1)
	require.NoError(t, err)

	env, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, KindForecastGBT, env.Kind)

	decoded, err := Decode(env)
	require.NoError(t, err)

	before, err := m.Predict(x)
	require.NoError(t, err)

	after, err := decoded.Predict(x)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestEncodeDecode_RoundTripsAnomalyModel(t *testing.T) {
	x, _ := linearDataset(300)

	m, err := NewAnomalyIForest(x, 10, 3)
	require.NoError(t, err)

	env, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, KindAnomalyIForest, env.Kind)

	decoded, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, KindAnomalyIForest, decoded.Kind())
}

func TestDecode_RejectsUnsupportedVersion(t *testing.T) {
	_, err := Decode(&Envelope{Kind: KindForecastGBT, Version: 99})
	assert.Error(t, err)
}

func TestDecode_RejectsUnknownKind(t *testing.T) {
	_, err := Decode(&Envelope{Kind: Kind("bogus"), Version: envelopeVersion})
	assert.Error(t, err)
}

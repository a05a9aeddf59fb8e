package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trainhub/internal/jobs"
)

func TestDefaultThresholds(t *testing.T) {
	forecast := DefaultThresholds(jobs.ModelTypeForecast)
	assert.Equal(t, 50.0, forecast.MaxMAE)
	assert.Equal(t, 0.7, forecast.MinR2)

	anomaly := DefaultThresholds(jobs.ModelTypeAnomaly)
	assert.Equal(t, 0.8, anomaly.MinPrecision)
	assert.Equal(t, 0.85, anomaly.MinAUC)
}

func TestValidate_ForecastPasses(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeForecast,
		Metrics:   map[string]float64{"mae": 10, "rmse": 20, "mape": 5, "r2": 0.9},
	})

	require.True(t, report.Passed)
	assert.Empty(t, report.Failures)
}

func TestValidate_ForecastFailsOnMAE(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeForecast,
		Metrics:   map[string]float64{"mae": 100, "rmse": 20, "mape": 5, "r2": 0.9},
	})

	require.False(t, report.Passed)
	assert.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "mae")
}

func TestValidate_AnomalyFailsOnRecall(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeAnomaly,
		Metrics:   map[string]float64{"prec": 0.9, "rec": 0.5, "f1": 0.9, "auc": 0.9},
	})

	require.False(t, report.Passed)
	assert.Contains(t, report.Failures[0], "rec")
}

func TestValidate_AnomalyFailsOnPrecision(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeAnomaly,
		Metrics:   map[string]float64{"prec": 0.1, "rec": 0.9, "f1": 0.9, "auc": 0.9},
	})

	require.False(t, report.Passed)

	found := false

	for _, f := range report.Failures {
		if strings.Contains(f, "prec=") {
			found = true
		}
	}

	assert.True(t, found, "expected a precision threshold failure, got %v", report.Failures)
}

func TestBaselineComparison_HigherIsBetterRegression(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeAnomaly,
		Metrics:   map[string]float64{"prec": 0.81, "rec": 0.76, "f1": 0.78, "auc": 0.7},
		Baseline:  map[string]float64{"auc": 0.85},
	})

	require.False(t, report.Passed)
	found := false

	for _, f := range report.Failures {
		if strings.Contains(f, "baseline comparison") {
			found = true
		}
	}

	assert.True(t, found)
}

func TestBaselineComparison_WithinTolerance(t *testing.T) {
	report := Validate(Input{
		ModelType:         jobs.ModelTypeForecast,
		Metrics:           map[string]float64{"mae": 48, "rmse": 20, "mape": 5, "r2": 0.9},
		Baseline:          map[string]float64{"mae": 47},
		BaselineTolerance: 0.05,
	})

	require.True(t, report.Passed)
}

func TestDataDrift_SignificantShiftFails(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeForecast,
		Metrics:   map[string]float64{"mae": 10, "rmse": 20, "mape": 5, "r2": 0.9},
		TrainingSummary: map[string]FeatureSummary{
			"temperature": {Mean: 20, StdDev: 2, Count: 1000},
		},
		CurrentSummary: map[string]FeatureSummary{
			"temperature": {Mean: 30, StdDev: 2, Count: 1000},
		},
	})

	require.False(t, report.Passed)
	assert.Contains(t, report.Failures[0], "data drift")
}

func TestDataDrift_NoShiftPasses(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeForecast,
		Metrics:   map[string]float64{"mae": 10, "rmse": 20, "mape": 5, "r2": 0.9},
		TrainingSummary: map[string]FeatureSummary{
			"temperature": {Mean: 20, StdDev: 2, Count: 1000},
		},
		CurrentSummary: map[string]FeatureSummary{
			"temperature": {Mean: 20.05, StdDev: 2, Count: 1000},
		},
	})

	require.True(t, report.Passed)
}

func TestPredictionStability_HighCVFails(t *testing.T) {
	report := Validate(Input{
		ModelType:   jobs.ModelTypeForecast,
		Metrics:     map[string]float64{"mae": 10, "rmse": 20, "mape": 5, "r2": 0.9},
		Predictions: []float64{1, 100, 1, 100, 1, 100},
	})

	require.False(t, report.Passed)
	assert.Contains(t, report.Failures[0], "prediction stability")
}

func TestPredictionRange_OutOfBoundsFails(t *testing.T) {
	report := Validate(Input{
		ModelType:   jobs.ModelTypeForecast,
		Metrics:     map[string]float64{"mae": 10, "rmse": 20, "mape": 5, "r2": 0.9},
		Predictions: []float64{5, 10, 200},
		TrueValues:  []float64{8, 12, 15},
	})

	require.False(t, report.Passed)

	found := false

	for _, f := range report.Failures {
		if strings.Contains(f, "prediction range") {
			found = true
		}
	}

	assert.True(t, found, "expected a prediction range failure, got %v", report.Failures)
}

func TestPredictionRange_EmptyInputsSkipped(t *testing.T) {
	report := Validate(Input{
		ModelType: jobs.ModelTypeForecast,
		Metrics:   map[string]float64{"mae": 10, "rmse": 20, "mape": 5, "r2": 0.9},
	})

	require.True(t, report.Passed)
}

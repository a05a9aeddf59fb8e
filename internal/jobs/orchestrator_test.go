package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateDuration_BaseCase(t *testing.T) {
	assert.Equal(t, 180, estimateDuration(TrainingConfig{NWorkers: 1}))
}

func TestEstimateDuration_DividesByWorkerCount(t *testing.T) {
	assert.Equal(t, 90, estimateDuration(TrainingConfig{NWorkers: 2}))
}

func TestEstimateDuration_ZeroWorkersTreatedAsOne(t *testing.T) {
	assert.Equal(t, 180, estimateDuration(TrainingConfig{NWorkers: 0}))
}

func TestEstimateDuration_AddsHPOTrialCost(t *testing.T) {
	cfg := TrainingConfig{NWorkers: 1, EnableHPO: true, NTrials: 10}
	assert.Equal(t, 180+30*10, estimateDuration(cfg))
}

func TestEstimateDuration_DoublesForLongSpan(t *testing.T) {
	cfg := TrainingConfig{
		NWorkers:   1,
		RangeStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, 360, estimateDuration(cfg))
}

func TestEstimateDuration_ShortSpanNotDoubled(t *testing.T) {
	cfg := TrainingConfig{
		NWorkers:   1,
		RangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, 180, estimateDuration(cfg))
}

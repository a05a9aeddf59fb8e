package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition_QueuedToRunningAllowed(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusQueued, StatusRunning))
}

func TestValidateTransition_QueuedToCancelledAllowed(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusQueued, StatusCancelled))
}

func TestValidateTransition_QueuedToCompletedRejected(t *testing.T) {
	err := ValidateTransition(StatusQueued, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidateTransition_RunningToTerminalAllowed(t *testing.T) {
	for _, to := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.NoError(t, ValidateTransition(StatusRunning, to))
	}
}

func TestValidateTransition_TerminalStatesAreImmutable(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		err := ValidateTransition(from, StatusRunning)
		assert.True(t, errors.Is(err, ErrTerminalStateImmutable))
	}
}

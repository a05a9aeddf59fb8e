package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job state transition validation. Usable with
// errors.Is() for error checking.
var (
	// ErrInvalidTransition indicates a transition §4.7's FSM does not permit.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrTerminalStateImmutable indicates an attempt to transition out of a
	// terminal state (COMPLETED, FAILED, CANCELLED).
	ErrTerminalStateImmutable = errors.New("terminal job state is immutable")
)

// ValidateTransition validates a Job state transition according to the FSM:
//
//	QUEUED  → {RUNNING, CANCELLED}
//	RUNNING → {COMPLETED, FAILED, CANCELLED}
//
// Terminal states (COMPLETED, FAILED, CANCELLED) admit no further
// transitions, not even to themselves — unlike the OpenLineage run-cycle
// this pattern is grounded on, a job's terminal states are not idempotently
// re-enterable because a job has exactly one completion event, not a
// replayable event stream.
func ValidateTransition(from, to Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s → %s", ErrTerminalStateImmutable, from, to)
	}

	switch from {
	case StatusQueued:
		if to == StatusRunning || to == StatusCancelled {
			return nil
		}
	case StatusRunning:
		if to == StatusCompleted || to == StatusFailed || to == StatusCancelled {
			return nil
		}
	}

	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

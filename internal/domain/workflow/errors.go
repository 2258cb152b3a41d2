package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guarded transition for a trigger refuses
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrTerminalState is returned when a trigger is fired after the run has finished
	ErrTerminalState = errors.New("state machine is in a terminal state")
)

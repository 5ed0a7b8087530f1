package payments

import "fmt"

// AttemptState tracks a single checkout attempt through intent
// creation and confirmation.
type AttemptState string

const (
	StateIdle                 AttemptState = "idle"
	StateIntentRequested      AttemptState = "intent_requested"
	StateAwaitingConfirmation AttemptState = "awaiting_confirmation"
	StateSucceeded            AttemptState = "succeeded"
	StateRequiresStepUp       AttemptState = "requires_step_up"
	StateFailed               AttemptState = "failed"
)

// allowed transitions: the attempt only ever moves forward, except
// that a step-up challenge re-enters confirmation and a failure allows
// a fresh intent.
var attemptTransitions = map[AttemptState][]AttemptState{
	StateIdle:                 {StateIntentRequested},
	StateIntentRequested:      {StateAwaitingConfirmation, StateFailed},
	StateAwaitingConfirmation: {StateSucceeded, StateRequiresStepUp, StateFailed},
	StateRequiresStepUp:       {StateAwaitingConfirmation, StateSucceeded, StateFailed},
	StateFailed:               {StateIntentRequested},
}

// Attempt is the in-memory state machine for one payment attempt.
type Attempt struct {
	state AttemptState
}

// NewAttempt starts an attempt in the idle state.
func NewAttempt() *Attempt {
	return &Attempt{state: StateIdle}
}

// ResumeAttempt rebuilds an attempt at a known state, used when a
// persisted payment is picked back up mid-flow.
func ResumeAttempt(state AttemptState) *Attempt {
	return &Attempt{state: state}
}

// State returns the current state.
func (a *Attempt) State() AttemptState {
	return a.state
}

// Transition moves the attempt to the target state or reports why the
// move is illegal.
func (a *Attempt) Transition(target AttemptState) error {
	for _, next := range attemptTransitions[a.state] {
		if next == target {
			a.state = target
			return nil
		}
	}
	return fmt.Errorf("illegal payment attempt transition %s -> %s", a.state, target)
}

// Terminal reports whether the attempt has reached a final state for
// this intent.
func (a *Attempt) Terminal() bool {
	return a.state == StateSucceeded || a.state == StateFailed
}

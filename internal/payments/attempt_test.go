package payments

import "testing"

func TestAttemptHappyPath(t *testing.T) {
	t.Parallel()

	a := NewAttempt()
	for _, target := range []AttemptState{StateIntentRequested, StateAwaitingConfirmation, StateSucceeded} {
		if err := a.Transition(target); err != nil {
			t.Fatalf("unexpected transition error: %v", err)
		}
	}
	if !a.Terminal() {
		t.Fatal("expected terminal state")
	}
}

func TestAttemptStepUpReentersConfirmation(t *testing.T) {
	t.Parallel()

	a := ResumeAttempt(StateAwaitingConfirmation)
	if err := a.Transition(StateRequiresStepUp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Transition(StateAwaitingConfirmation); err != nil {
		t.Fatalf("step-up must re-enter confirmation: %v", err)
	}
	if err := a.Transition(StateSucceeded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAttemptRejectsSkippingStates(t *testing.T) {
	t.Parallel()

	a := NewAttempt()
	if err := a.Transition(StateSucceeded); err == nil {
		t.Fatal("idle -> succeeded must be rejected")
	}

	done := ResumeAttempt(StateSucceeded)
	if err := done.Transition(StateFailed); err == nil {
		t.Fatal("succeeded is terminal")
	}
}

func TestAttemptFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	a := ResumeAttempt(StateFailed)
	if err := a.Transition(StateIntentRequested); err != nil {
		t.Fatalf("failed attempt must allow a fresh intent: %v", err)
	}
}

func TestDeclineMessageFallback(t *testing.T) {
	t.Parallel()

	if got := DeclineMessage("card_declined", ""); got != "Your card was declined. Please try a different payment method." {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := DeclineMessage("some_new_code", "processor says no"); got != "processor says no" {
		t.Fatalf("expected processor fallback, got %q", got)
	}
	if got := DeclineMessage("", ""); got != genericDeclineMessage {
		t.Fatalf("expected generic fallback, got %q", got)
	}
}

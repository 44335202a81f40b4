package domain

import (
	"testing"
	"time"
)

func TestStoryAdvanceFollowsTransitionTable(t *testing.T) {
	t.Parallel()

	prompt := &Prompt{ID: "p1", Type: PromptDiscovery, Name: "sweep", Text: "find"}
	story := NewStory(prompt, "editor@example.com")

	path := []State{
		StateDiscovered, StateRefining, StateRefined,
		StateValidating, StateApproved, StatePublishing, StatePublished,
	}
	for _, next := range path {
		if err := story.Advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if !story.State.Terminal() {
		t.Fatalf("published should be terminal")
	}
}

func TestStoryAdvanceRejectsIllegalEdges(t *testing.T) {
	t.Parallel()

	story := NewStory(&Prompt{ID: "p1", Type: PromptDiscovery}, "editor@example.com")

	if err := story.Advance(StateValidating); err == nil {
		t.Fatal("created -> validating must be rejected")
	}
	if story.State != StateCreated {
		t.Fatalf("state mutated on rejected transition: %s", story.State)
	}

	// Rejection is final.
	story.State = StateRejected
	for _, next := range []State{StateRefining, StateApproved, StatePublished} {
		if err := story.Advance(next); err == nil {
			t.Fatalf("rejected -> %s must be rejected", next)
		}
	}
	if !StateRejected.Terminal() {
		t.Fatal("rejected should be terminal")
	}
}

func TestRefiningIsReEnterable(t *testing.T) {
	t.Parallel()

	// An operator can re-trigger refine-and-validate after a failed attempt.
	for _, from := range []State{StateDiscovered, StateRefining, StateRefined, StateValidating} {
		if !from.CanTransition(StateRefining) {
			t.Fatalf("%s -> refining should be allowed", from)
		}
	}
	for _, from := range []State{StateCreated, StateApproved, StateRejected, StatePublished} {
		if from.CanTransition(StateRefining) {
			t.Fatalf("%s -> refining should be rejected", from)
		}
	}
}

func TestRoutingContextSkipsEmptyFields(t *testing.T) {
	t.Parallel()

	story := &Story{
		Opportunity: "Bond issue",
		Topic:       "Schools",
	}

	want := "Opportunity: Bond issue\nTopic: Schools"
	if got := story.RoutingContext(); got != want {
		t.Fatalf("RoutingContext() = %q, want %q", got, want)
	}

	empty := &Story{}
	if got := empty.RoutingContext(); got != "" {
		t.Fatalf("empty snapshot should render empty context, got %q", got)
	}
}

func TestStepRunStatusIsMonotonic(t *testing.T) {
	t.Parallel()

	run := NewStepRun("story-1", "prompt-1", StepDiscovery, "input")
	if run.Status != RunPending {
		t.Fatalf("new run status = %s, want pending", run.Status)
	}

	run.MarkRunning()
	if run.Status != RunRunning {
		t.Fatalf("status = %s, want running", run.Status)
	}

	run.Complete("output", 25*time.Millisecond)
	if run.Status != RunCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}

	// Terminal rows never revert.
	run.Fail("late error", time.Second)
	if run.Status != RunCompleted || run.ErrorMessage != "" {
		t.Fatalf("completed run mutated: status=%s error=%q", run.Status, run.ErrorMessage)
	}
	run.MarkRunning()
	if run.Status != RunCompleted {
		t.Fatalf("completed run reverted to %s", run.Status)
	}

	failed := NewStepRun("story-1", "prompt-1", StepValidation, "input")
	failed.MarkRunning()
	failed.Fail("boom", time.Millisecond)
	failed.Complete("late output", time.Second)
	if failed.Status != RunFailed || failed.OutputText != "" {
		t.Fatalf("failed run mutated: status=%s output=%q", failed.Status, failed.OutputText)
	}
}

func TestCallErrorTransientHint(t *testing.T) {
	t.Parallel()

	transient := []ErrKind{ErrTimeout, ErrConnection, ErrRateLimited, ErrServer}
	for _, kind := range transient {
		err := &CallError{Kind: kind, Message: "x"}
		if !err.Transient() {
			t.Fatalf("%s should be transient", kind)
		}
	}
	for _, kind := range []ErrKind{ErrConfig, ErrMalformed} {
		err := &CallError{Kind: kind, Message: "x"}
		if err.Transient() {
			t.Fatalf("%s should not be transient", kind)
		}
	}
}

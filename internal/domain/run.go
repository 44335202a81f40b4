package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepType identifies which pipeline step an external call belonged to.
type StepType string

const (
	StepDiscovery  StepType = "discovery"
	StepRefinement StepType = "refinement"
	StepValidation StepType = "validation"
)

// RunStatus moves pending -> running -> completed|failed and never reverts.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status admits no further change.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// StepRun is the audit row for one external-call attempt. Exactly one row
// exists per attempt; the row is immutable once it reaches a terminal status.
type StepRun struct {
	ID           string
	StoryID      string
	PromptID     string
	StepType     StepType
	Status       RunStatus
	InputText    string
	OutputText   string
	ErrorMessage string
	Duration     time.Duration
	StartedAt    time.Time
	CompletedAt  time.Time
}

// NewStepRun creates a pending audit row for a call about to be attempted.
func NewStepRun(storyID, promptID string, step StepType, input string) *StepRun {
	return &StepRun{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		PromptID:  promptID,
		StepType:  step,
		Status:    RunPending,
		InputText: input,
		StartedAt: time.Now().UTC(),
	}
}

// MarkRunning records that the external call has started. A no-op once the
// run left pending.
func (r *StepRun) MarkRunning() {
	if r.Status != RunPending {
		return
	}
	r.Status = RunRunning
	r.StartedAt = time.Now().UTC()
}

// Complete closes the run with the call's output. A no-op on a terminal run.
func (r *StepRun) Complete(output string, elapsed time.Duration) {
	if r.Status.Terminal() {
		return
	}
	r.Status = RunCompleted
	r.OutputText = output
	r.Duration = elapsed
	r.CompletedAt = time.Now().UTC()
}

// Fail closes the run with the call's error text. A no-op on a terminal run.
func (r *StepRun) Fail(message string, elapsed time.Duration) {
	if r.Status.Terminal() {
		return
	}
	r.Status = RunFailed
	r.ErrorMessage = message
	r.Duration = elapsed
	r.CompletedAt = time.Now().UTC()
}

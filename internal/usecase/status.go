package usecase

import (
	"context"
	"fmt"
	"time"

	"StoryPipeline/internal/domain"
)

// Overall status values reported by the poll operation.
const (
	StatusRunning   = "running"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
)

// RunSummary is the trimmed audit view exposed by the poller: step, status,
// error, and timing — not the full input/output text, which would bloat the
// poll payload.
type RunSummary struct {
	StepType domain.StepType
	Status   domain.RunStatus
	Error    string
	Duration time.Duration
}

// StatusSnapshot is one consistent view of a story's progress.
type StatusSnapshot struct {
	StoryID          string
	Status           string
	State            domain.State
	DiscoveryOutput  string
	Enrichments      map[string]domain.Enrichment
	SelectedStory    string
	RefinementOutput string
	ValidationOutput string
	Verdict          domain.Verdict
	Published        bool
	PublishReceipt   string
	Runs             []RunSummary
}

// Status returns the story's poll snapshot. The overall status is derived
// from the audit rows alone: running while any call is still in flight,
// failed if any call failed, completed otherwise.
func (p *Pipeline) Status(ctx context.Context, storyID string) (StatusSnapshot, error) {
	story, err := p.stories.Get(ctx, storyID)
	if err != nil {
		return StatusSnapshot{}, err
	}

	runs, err := p.runs.ListByStory(ctx, storyID)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("list runs: %w", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, RunSummary{
			StepType: run.StepType,
			Status:   run.Status,
			Error:    run.ErrorMessage,
			Duration: run.Duration,
		})
	}

	return StatusSnapshot{
		StoryID:          story.ID,
		Status:           OverallStatus(runs),
		State:            story.State,
		DiscoveryOutput:  story.DiscoveryOutput,
		Enrichments:      story.Enrichments,
		SelectedStory:    story.SelectedStory,
		RefinementOutput: story.RefinementOutput,
		ValidationOutput: story.ValidationOutput,
		Verdict:          story.Verdict,
		Published:        story.Published,
		PublishReceipt:   story.PublishReceipt,
		Runs:             summaries,
	}, nil
}

// OverallStatus folds the audit rows into one unambiguous status. A pending
// row counts as in flight: between trigger and step start the story is
// already running from the caller's point of view.
func OverallStatus(runs []domain.StepRun) string {
	failed := false
	for _, run := range runs {
		switch run.Status {
		case domain.RunPending, domain.RunRunning:
			return StatusRunning
		case domain.RunFailed:
			failed = true
		}
	}
	if failed {
		return StatusFailed
	}
	return StatusCompleted
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

// StepRunner drives one audited LLM call. The caller creates the pending
// audit row; Execute moves it to running, performs the call, and persists a
// terminal status before returning — success or failure — so a poller never
// sees a stale running row for a call that has finished.
type StepRunner struct {
	runs   ports.RunRepository
	llm    ports.LLMClient
	logger *slog.Logger
}

// NewStepRunner wires the audit store and the LLM client.
func NewStepRunner(runs ports.RunRepository, llm ports.LLMClient, logger *slog.Logger) *StepRunner {
	return &StepRunner{runs: runs, llm: llm, logger: logger}
}

// Execute runs the call recorded by run. withSearch selects the live-search
// calling mode; systemContext is optional. No retries happen here: a failed
// run stays failed and the classified error goes back to the orchestrator.
func (r *StepRunner) Execute(ctx context.Context, run *domain.StepRun, withSearch bool, systemContext string) (string, error) {
	run.MarkRunning()
	if err := r.runs.Update(ctx, run); err != nil {
		return "", fmt.Errorf("persist %s run: %w", run.StepType, err)
	}

	start := time.Now()
	var (
		output string
		err    error
	)
	if withSearch {
		output, err = r.llm.GenerateWithSearch(ctx, run.InputText, systemContext)
	} else {
		output, err = r.llm.Generate(ctx, run.InputText, systemContext)
	}
	elapsed := time.Since(start)

	if err != nil {
		run.Fail(err.Error(), elapsed)
		if uerr := r.runs.Update(ctx, run); uerr != nil {
			r.error("persist failed run", run, uerr)
		}
		r.error("step failed", run, err)
		return "", err
	}

	run.Complete(output, elapsed)
	if uerr := r.runs.Update(ctx, run); uerr != nil {
		return "", fmt.Errorf("persist %s run: %w", run.StepType, uerr)
	}

	if r.logger != nil {
		r.logger.Info("step completed", "step", run.StepType, "story_id", run.StoryID, "duration", elapsed)
	}
	return output, nil
}

func (r *StepRunner) error(msg string, run *domain.StepRun, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "step", run.StepType, "story_id", run.StoryID, "error", err)
	}
}

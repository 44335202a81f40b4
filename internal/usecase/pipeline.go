package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Stories    ports.StoryRepository
	Runs       ports.RunRepository
	Prompts    ports.PromptRepository
	LLM        ports.LLMClient
	Enricher   ports.Enricher
	Publisher  ports.Publisher
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// Pipeline is the state machine over a story: discovery, then — on a second
// trigger — refinement, validation, and publish-or-kill. A rejection is
// terminal; validator fixes are logged in the audit trail but never applied.
type Pipeline struct {
	stories    ports.StoryRepository
	runs       ports.RunRepository
	prompts    ports.PromptRepository
	enricher   ports.Enricher
	publisher  ports.Publisher
	dispatcher *Dispatcher
	runner     *StepRunner
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		stories:    deps.Stories,
		runs:       deps.Runs,
		prompts:    deps.Prompts,
		enricher:   deps.Enricher,
		publisher:  deps.Publisher,
		dispatcher: deps.Dispatcher,
		runner:     NewStepRunner(deps.Runs, deps.LLM, deps.Logger),
		logger:     deps.Logger,
	}
}

// TriggerResult is the immediate answer to a stage trigger; the caller polls
// Status with the story id to follow progress.
type TriggerResult struct {
	StoryID string
	Status  string
}

// TriggerDiscovery creates a story from the discovery prompt, snapshots its
// routing metadata, records the pending audit row, and hands the stage to
// the background dispatcher. Configuration problems fail here, synchronously,
// before any background work starts.
func (p *Pipeline) TriggerDiscovery(ctx context.Context, promptID, actor string) (TriggerResult, error) {
	prompt, err := p.prompts.Get(ctx, promptID)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("discovery prompt: %w", err)
	}
	if prompt.Type != domain.PromptDiscovery {
		return TriggerResult{}, fmt.Errorf("prompt %s is not a discovery prompt", promptID)
	}

	story := domain.NewStory(prompt, actor)
	if err := p.stories.Create(ctx, story); err != nil {
		return TriggerResult{}, fmt.Errorf("create story: %w", err)
	}

	run := domain.NewStepRun(story.ID, prompt.ID, domain.StepDiscovery, prompt.Text)
	if err := p.runs.Create(ctx, run); err != nil {
		return TriggerResult{}, fmt.Errorf("create discovery run: %w", err)
	}

	if err := p.dispatcher.Submit(story.ID, func(ctx context.Context) error {
		return p.runDiscovery(ctx, story, run)
	}); err != nil {
		return TriggerResult{}, err
	}

	p.info("discovery triggered", "story_id", story.ID, "actor", actor)
	return TriggerResult{StoryID: story.ID, Status: StatusRunning}, nil
}

// runDiscovery executes the discovery stage to its terminal state. A failed
// LLM call leaves the story without discovery output; enrichment is
// best-effort and can never fail the stage.
func (p *Pipeline) runDiscovery(ctx context.Context, story *domain.Story, run *domain.StepRun) error {
	output, err := p.runner.Execute(ctx, run, true, story.RoutingContext())
	if err != nil {
		return fmt.Errorf("discovery step: %w", err)
	}

	story.DiscoveryOutput = output
	if err := story.Advance(domain.StateDiscovered); err != nil {
		return err
	}

	if p.enricher != nil {
		if enrichments := p.enricher.Enrich(ctx, output); enrichments != nil {
			story.Enrichments = enrichments
		}
	}

	if err := p.stories.Update(ctx, story); err != nil {
		return fmt.Errorf("persist story: %w", err)
	}

	p.info("discovery completed", "story_id", story.ID, "enriched_urls", len(story.Enrichments))
	return nil
}

// TriggerRefineAndValidate starts the second stage on an existing story. The
// selected story text and the refinement prompt are required; the story must
// have discovery output and must not be in a terminal state.
func (p *Pipeline) TriggerRefineAndValidate(ctx context.Context, storyID, selected, refinementPromptID, actor string) (TriggerResult, error) {
	if selected == "" {
		return TriggerResult{}, fmt.Errorf("selected story text is required")
	}

	story, err := p.stories.Get(ctx, storyID)
	if err != nil {
		return TriggerResult{}, err
	}
	if story.DiscoveryOutput == "" {
		return TriggerResult{}, fmt.Errorf("story %s has no discovery output", storyID)
	}

	prompt, err := p.prompts.Get(ctx, refinementPromptID)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("refinement prompt: %w", err)
	}
	if prompt.Type != domain.PromptRefinement {
		return TriggerResult{}, fmt.Errorf("prompt %s is not a refinement prompt", refinementPromptID)
	}

	// Mutations land on the in-memory story only; the row is persisted once
	// refinement succeeds, so selected input and refinement output are set
	// together or not at all.
	story.SelectedStory = selected
	story.RefinementPromptID = prompt.ID
	story.RefinementInput = buildRefinementInput(prompt.Text, selected, story.RoutingContext())
	if err := story.Advance(domain.StateRefining); err != nil {
		return TriggerResult{}, err
	}

	run := domain.NewStepRun(story.ID, prompt.ID, domain.StepRefinement, story.RefinementInput)
	if err := p.runs.Create(ctx, run); err != nil {
		return TriggerResult{}, fmt.Errorf("create refinement run: %w", err)
	}

	if err := p.dispatcher.Submit(story.ID, func(ctx context.Context) error {
		return p.runRefineAndValidate(ctx, story, run)
	}); err != nil {
		// Close the audit row so the poll never reports a stage that was
		// refused as still pending.
		run.Fail(err.Error(), 0)
		if uerr := p.runs.Update(ctx, run); uerr != nil {
			p.error("persist refused run", story.ID, uerr)
		}
		return TriggerResult{}, err
	}

	p.info("refine-and-validate triggered", "story_id", story.ID, "actor", actor)
	return TriggerResult{StoryID: story.ID, Status: StatusRunning}, nil
}

// runRefineAndValidate executes refinement, validation, and publish-or-kill.
// Refinement failure short-circuits: validation input is refinement output,
// so there is nothing to validate. Validation failure leaves the verdict
// unknown. Rejection is a valid terminal outcome, not an error.
func (p *Pipeline) runRefineAndValidate(ctx context.Context, story *domain.Story, refinementRun *domain.StepRun) error {
	output, err := p.runner.Execute(ctx, refinementRun, false, "")
	if err != nil {
		return fmt.Errorf("refinement step: %w", err)
	}

	story.RefinementOutput = output
	if err := story.Advance(domain.StateRefined); err != nil {
		return err
	}
	if err := p.stories.Update(ctx, story); err != nil {
		return fmt.Errorf("persist story: %w", err)
	}

	validationPrompt, err := p.prompts.GetActive(ctx, domain.PromptValidation)
	if err != nil {
		// Configuration error surfaced mid-run: record it on the audit trail
		// so the poller sees a failed validation row, then stop.
		run := domain.NewStepRun(story.ID, "", domain.StepValidation, "")
		run.Fail(fmt.Sprintf("no active validation prompt configured: %v", err), 0)
		if cerr := p.runs.Create(ctx, run); cerr != nil {
			p.error("persist validation config failure", story.ID, cerr)
		}
		return fmt.Errorf("validation prompt: %w", err)
	}

	story.ValidationPromptID = validationPrompt.ID
	story.ValidationInput = buildValidationInput(validationPrompt.Text, output)
	if err := story.Advance(domain.StateValidating); err != nil {
		return err
	}
	if err := p.stories.Update(ctx, story); err != nil {
		return fmt.Errorf("persist story: %w", err)
	}

	validationRun := domain.NewStepRun(story.ID, validationPrompt.ID, domain.StepValidation, story.ValidationInput)
	if err := p.runs.Create(ctx, validationRun); err != nil {
		return fmt.Errorf("create validation run: %w", err)
	}

	verdictText, err := p.runner.Execute(ctx, validationRun, false, "")
	if err != nil {
		return fmt.Errorf("validation step: %w", err)
	}
	story.ValidationOutput = verdictText

	if ParseDecision(verdictText) {
		story.Verdict = domain.VerdictApproved
		if err := story.Advance(domain.StateApproved); err != nil {
			return err
		}
		p.publish(ctx, story)
		p.info("pipeline approved", "story_id", story.ID, "published", story.Published)
	} else {
		// Kill it. Log. Do nothing else.
		story.Verdict = domain.VerdictRejected
		if err := story.Advance(domain.StateRejected); err != nil {
			return err
		}
		p.info("pipeline rejected", "story_id", story.ID)
	}

	if err := p.stories.Update(ctx, story); err != nil {
		return fmt.Errorf("persist story: %w", err)
	}
	return nil
}

// publish pushes the approved story downstream. A push failure leaves the
// story approved but unpublished, permanently: the verdict never reverts and
// nothing retries.
func (p *Pipeline) publish(ctx context.Context, story *domain.Story) {
	if err := story.Advance(domain.StatePublishing); err != nil {
		p.error("advance to publishing", story.ID, err)
		return
	}

	receipt, err := p.publisher.Publish(ctx, story)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("cms push failed, story stays approved but unpublished",
				"story_id", story.ID, "error", err)
		}
		return
	}

	story.Published = true
	story.PublishReceipt = receipt
	story.PublishedAt = time.Now().UTC()
	if err := story.Advance(domain.StatePublished); err != nil {
		p.error("advance to published", story.ID, err)
	}
}

func buildRefinementInput(promptText, selected, routingContext string) string {
	input := promptText + "\n\n---\n\nSource material:\n" + selected
	if routingContext != "" {
		input += "\n\n" + routingContext
	}
	return input
}

func buildValidationInput(promptText, refinementOutput string) string {
	return promptText + "\n\n---\n\nPitch to review:\n" + refinementOutput
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) error(msg string, storyID string, err error) {
	if p.logger != nil {
		p.logger.Error(msg, "story_id", storyID, "error", err)
	}
}

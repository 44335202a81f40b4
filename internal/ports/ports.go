package ports

import (
	"context"

	"StoryPipeline/internal/domain"
)

// LLMClient sends assembled prompts to the model API. Failures come back as
// *domain.CallError so callers can read the classification.
type LLMClient interface {
	// Generate runs a plain chat completion.
	Generate(ctx context.Context, prompt, systemContext string) (string, error)
	// GenerateWithSearch runs a completion with live search enabled; used by
	// discovery so the model works from real posts instead of hallucinating.
	GenerateWithSearch(ctx context.Context, prompt, systemContext string) (string, error)
}

// Enricher fetches best-effort metadata for URLs found in text. It never
// returns an error; a nil map means no URL could be enriched.
type Enricher interface {
	Enrich(ctx context.Context, text string) map[string]domain.Enrichment
}

// Publisher pushes an approved story downstream and returns a receipt.
type Publisher interface {
	Publish(ctx context.Context, story *domain.Story) (string, error)
}

// StoryRepository persists pipeline records. Get returns domain.ErrNotFound
// for unknown ids.
type StoryRepository interface {
	Create(ctx context.Context, story *domain.Story) error
	Update(ctx context.Context, story *domain.Story) error
	Get(ctx context.Context, id string) (*domain.Story, error)
}

// RunRepository persists audit rows. ListByStory returns rows in creation
// order.
type RunRepository interface {
	Create(ctx context.Context, run *domain.StepRun) error
	Update(ctx context.Context, run *domain.StepRun) error
	ListByStory(ctx context.Context, storyID string) ([]domain.StepRun, error)
}

// PromptRepository reads the prompt library. GetActive returns
// domain.ErrNotFound when no active prompt of the given type exists.
type PromptRepository interface {
	Get(ctx context.Context, id string) (*domain.Prompt, error)
	GetActive(ctx context.Context, t domain.PromptType) (*domain.Prompt, error)
	Save(ctx context.Context, prompt *domain.Prompt) error
}

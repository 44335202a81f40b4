package storage

import (
	"context"
	"fmt"
	"sync"

	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

// MemoryStoryRepository is the in-process store used when no database DSN is
// configured, and by tests. Reads return copies so background stages never
// share mutable state with pollers.
type MemoryStoryRepository struct {
	mu      sync.RWMutex
	stories map[string]domain.Story
}

var _ ports.StoryRepository = (*MemoryStoryRepository)(nil)

// NewMemoryStoryRepository builds an empty store.
func NewMemoryStoryRepository() *MemoryStoryRepository {
	return &MemoryStoryRepository{stories: map[string]domain.Story{}}
}

// Create stores a new story.
func (r *MemoryStoryRepository) Create(ctx context.Context, story *domain.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stories[story.ID]; exists {
		return fmt.Errorf("story %s already exists", story.ID)
	}
	r.stories[story.ID] = copyStory(story)
	return nil
}

// Update overwrites an existing story.
func (r *MemoryStoryRepository) Update(ctx context.Context, story *domain.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stories[story.ID]; !exists {
		return fmt.Errorf("story %s: %w", story.ID, domain.ErrNotFound)
	}
	r.stories[story.ID] = copyStory(story)
	return nil
}

// Get returns a copy of the story.
func (r *MemoryStoryRepository) Get(ctx context.Context, id string) (*domain.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	story, ok := r.stories[id]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}
	out := copyStory(&story)
	return &out, nil
}

func copyStory(story *domain.Story) domain.Story {
	out := *story
	if story.Enrichments != nil {
		out.Enrichments = make(map[string]domain.Enrichment, len(story.Enrichments))
		for k, v := range story.Enrichments {
			out.Enrichments[k] = v
		}
	}
	return out
}

// MemoryRunRepository keeps audit rows in a slice, preserving creation order.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs []domain.StepRun
}

var _ ports.RunRepository = (*MemoryRunRepository)(nil)

// NewMemoryRunRepository builds an empty store.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{}
}

// Create appends a new audit row.
func (r *MemoryRunRepository) Create(ctx context.Context, run *domain.StepRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

// Update overwrites the row with a matching id.
func (r *MemoryRunRepository) Update(ctx context.Context, run *domain.StepRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.runs {
		if r.runs[i].ID == run.ID {
			r.runs[i] = *run
			return nil
		}
	}
	return fmt.Errorf("step run %s: %w", run.ID, domain.ErrNotFound)
}

// ListByStory returns copies of the story's rows in creation order.
func (r *MemoryRunRepository) ListByStory(ctx context.Context, storyID string) ([]domain.StepRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.StepRun
	for _, run := range r.runs {
		if run.StoryID == storyID {
			out = append(out, run)
		}
	}
	return out, nil
}

// MemoryPromptRepository holds the seeded prompt library.
type MemoryPromptRepository struct {
	mu      sync.RWMutex
	prompts []domain.Prompt
}

var _ ports.PromptRepository = (*MemoryPromptRepository)(nil)

// NewMemoryPromptRepository builds an empty library.
func NewMemoryPromptRepository() *MemoryPromptRepository {
	return &MemoryPromptRepository{}
}

// Get returns a copy of the prompt with the given id.
func (r *MemoryPromptRepository) Get(ctx context.Context, id string) (*domain.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.prompts {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, fmt.Errorf("prompt %s: %w", id, domain.ErrNotFound)
}

// GetActive returns the first active prompt of the given type, in seed order.
func (r *MemoryPromptRepository) GetActive(ctx context.Context, t domain.PromptType) (*domain.Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.prompts {
		if p.Type == t && p.Active {
			out := p
			return &out, nil
		}
	}
	return nil, fmt.Errorf("active %s prompt: %w", t, domain.ErrNotFound)
}

// Save upserts a prompt by name, keeping the stored id on conflict.
func (r *MemoryPromptRepository) Save(ctx context.Context, prompt *domain.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.prompts {
		if p.Name == prompt.Name {
			prompt.ID = p.ID
			r.prompts[i] = *prompt
			return nil
		}
	}
	r.prompts = append(r.prompts, *prompt)
	return nil
}

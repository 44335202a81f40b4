package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"StoryPipeline/internal/config"
	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/infrastructure/cms"
	"StoryPipeline/internal/infrastructure/enrich"
	"StoryPipeline/internal/infrastructure/llm"
	"StoryPipeline/internal/infrastructure/storage"
	"StoryPipeline/internal/logging"
	"StoryPipeline/internal/ports"
	"StoryPipeline/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	pipeline   *usecase.Pipeline
	dispatcher *usecase.Dispatcher
	prompts    ports.PromptRepository
	logger     *slog.Logger

	discoveryPromptID string
}

// New builds a runnable application instance: storage (Postgres when a DSN is
// configured, in-memory otherwise), adapters, and the pipeline, with the
// prompt library seeded from config.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	var (
		stories ports.StoryRepository
		runs    ports.RunRepository
		prompts ports.PromptRepository
	)
	if cfg.Database.DSN != "" {
		db, err := storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		stories = storage.NewPostgresStoryRepository(db)
		runs = storage.NewPostgresRunRepository(db)
		prompts = storage.NewPostgresPromptRepository(db)
	} else {
		baseLogger.Warn("no database dsn configured, using in-memory store")
		stories = storage.NewMemoryStoryRepository()
		runs = storage.NewMemoryRunRepository()
		prompts = storage.NewMemoryPromptRepository()
	}

	app := &Application{
		cfg:        cfg,
		dispatcher: usecase.NewDispatcher(logging.ForComponent(baseLogger, "dispatcher")),
		prompts:    prompts,
		logger:     baseLogger,
	}

	if err := app.seedPrompts(ctx, cfg.Prompts); err != nil {
		return nil, err
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Stories:    stories,
		Runs:       runs,
		Prompts:    prompts,
		LLM:        llm.NewGrokClient(cfg.Grok),
		Enricher:   enrich.New(enrichClient(cfg.Enrichment), logging.ForComponent(baseLogger, "enricher")),
		Publisher:  cms.NewPublisher(cfg.CMS, logging.ForComponent(baseLogger, "cms")),
		Dispatcher: app.dispatcher,
		Logger:     logging.ForComponent(baseLogger, "pipeline"),
	})

	return app, nil
}

func enrichClient(cfg config.EnrichmentConfig) *http.Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: timeout}
}

func (a *Application) seedPrompts(ctx context.Context, seeds []config.PromptConfig) error {
	now := time.Now().UTC()
	for _, seed := range seeds {
		prompt := &domain.Prompt{
			ID:           uuid.NewString(),
			Type:         domain.PromptType(seed.Type),
			Name:         seed.Name,
			Text:         seed.Text,
			Description:  seed.Description,
			Active:       seed.Active,
			Opportunity:  seed.Opportunity,
			Region:       seed.Region,
			Publications: seed.Publications,
			Topic:        seed.Topic,
			Context:      seed.Context,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := a.prompts.Save(ctx, prompt); err != nil {
			return fmt.Errorf("seed prompt %s: %w", seed.Name, err)
		}
		if prompt.Type == domain.PromptDiscovery && prompt.Active && a.discoveryPromptID == "" {
			a.discoveryPromptID = prompt.ID
		}
	}
	return nil
}

// Pipeline exposes the trigger/poll surface for callers embedding the app.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Run triggers one discovery stage for the first active discovery prompt,
// waits for it to finish, and logs the final poll snapshot.
func (a *Application) Run(ctx context.Context, actor string) error {
	if a.discoveryPromptID == "" {
		return fmt.Errorf("no active discovery prompt configured")
	}

	result, err := a.pipeline.TriggerDiscovery(ctx, a.discoveryPromptID, actor)
	if err != nil {
		return fmt.Errorf("trigger discovery: %w", err)
	}
	a.logger.Info("discovery running", "story_id", result.StoryID)

	a.dispatcher.Wait()

	snapshot, err := a.pipeline.Status(ctx, result.StoryID)
	if err != nil {
		return fmt.Errorf("poll status: %w", err)
	}

	a.logger.Info("discovery finished",
		"story_id", snapshot.StoryID,
		"status", snapshot.Status,
		"state", snapshot.State,
		"enriched_urls", len(snapshot.Enrichments),
	)
	if snapshot.Status == usecase.StatusFailed {
		for _, run := range snapshot.Runs {
			if run.Status == domain.RunFailed {
				return fmt.Errorf("%s step failed: %s", run.StepType, run.Error)
			}
		}
	}
	return nil
}

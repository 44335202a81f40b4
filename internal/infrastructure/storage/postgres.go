package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS stories (
    id                   TEXT PRIMARY KEY,
    discovery_prompt_id  TEXT NOT NULL DEFAULT '',
    refinement_prompt_id TEXT NOT NULL DEFAULT '',
    validation_prompt_id TEXT NOT NULL DEFAULT '',
    opportunity          TEXT NOT NULL DEFAULT '',
    region               TEXT NOT NULL DEFAULT '',
    publications         TEXT NOT NULL DEFAULT '',
    topic                TEXT NOT NULL DEFAULT '',
    context              TEXT NOT NULL DEFAULT '',
    discovery_input      TEXT NOT NULL DEFAULT '',
    discovery_output     TEXT NOT NULL DEFAULT '',
    enrichments          TEXT NOT NULL DEFAULT '',
    selected_story       TEXT NOT NULL DEFAULT '',
    refinement_input     TEXT NOT NULL DEFAULT '',
    refinement_output    TEXT NOT NULL DEFAULT '',
    validation_input     TEXT NOT NULL DEFAULT '',
    validation_output    TEXT NOT NULL DEFAULT '',
    verdict              TEXT NOT NULL DEFAULT '',
    published            BOOLEAN NOT NULL DEFAULT FALSE,
    publish_receipt      TEXT NOT NULL DEFAULT '',
    published_at         TIMESTAMPTZ,
    state                TEXT NOT NULL DEFAULT 'created',
    created_by           TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS step_runs (
    id            TEXT PRIMARY KEY,
    story_id      TEXT NOT NULL REFERENCES stories(id),
    prompt_id     TEXT NOT NULL DEFAULT '',
    step_type     TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    input_text    TEXT NOT NULL DEFAULT '',
    output_text   TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   BIGINT NOT NULL DEFAULT 0,
    started_at    TIMESTAMPTZ NOT NULL,
    completed_at  TIMESTAMPTZ,
    seq           BIGSERIAL
);

CREATE TABLE IF NOT EXISTS prompts (
    id           TEXT PRIMARY KEY,
    type         TEXT NOT NULL,
    name         TEXT NOT NULL UNIQUE,
    text         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    opportunity  TEXT NOT NULL DEFAULT '',
    region       TEXT NOT NULL DEFAULT '',
    publications TEXT NOT NULL DEFAULT '',
    topic        TEXT NOT NULL DEFAULT '',
    context      TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresStoryRepository persists stories into Postgres.
type PostgresStoryRepository struct {
	db *sql.DB
}

var _ ports.StoryRepository = (*PostgresStoryRepository)(nil)

// NewPostgresStoryRepository wires a sql.DB implementation.
func NewPostgresStoryRepository(db *sql.DB) *PostgresStoryRepository {
	return &PostgresStoryRepository{db: db}
}

func storyValues(story *domain.Story) (map[string]any, error) {
	enrichments := ""
	if len(story.Enrichments) > 0 {
		raw, err := json.Marshal(story.Enrichments)
		if err != nil {
			return nil, fmt.Errorf("marshal enrichments: %w", err)
		}
		enrichments = string(raw)
	}

	var publishedAt any
	if !story.PublishedAt.IsZero() {
		publishedAt = story.PublishedAt
	}

	return map[string]any{
		"discovery_prompt_id":  story.DiscoveryPromptID,
		"refinement_prompt_id": story.RefinementPromptID,
		"validation_prompt_id": story.ValidationPromptID,
		"opportunity":          story.Opportunity,
		"region":               story.Region,
		"publications":         story.Publications,
		"topic":                story.Topic,
		"context":              story.Context,
		"discovery_input":      story.DiscoveryInput,
		"discovery_output":     story.DiscoveryOutput,
		"enrichments":          enrichments,
		"selected_story":       story.SelectedStory,
		"refinement_input":     story.RefinementInput,
		"refinement_output":    story.RefinementOutput,
		"validation_input":     story.ValidationInput,
		"validation_output":    story.ValidationOutput,
		"verdict":              string(story.Verdict),
		"published":            story.Published,
		"publish_receipt":      story.PublishReceipt,
		"published_at":         publishedAt,
		"state":                string(story.State),
		"created_by":           story.CreatedBy,
		"created_at":           story.CreatedAt,
		"updated_at":           story.UpdatedAt,
	}, nil
}

// Create inserts a new story row.
func (r *PostgresStoryRepository) Create(ctx context.Context, story *domain.Story) error {
	values, err := storyValues(story)
	if err != nil {
		return err
	}
	values["id"] = story.ID

	query, args, err := psql.Insert("stories").SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

// Update rewrites the mutable story columns by id.
func (r *PostgresStoryRepository) Update(ctx context.Context, story *domain.Story) error {
	values, err := storyValues(story)
	if err != nil {
		return err
	}

	query, args, err := psql.Update("stories").SetMap(values).Where(sq.Eq{"id": story.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update story: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("story %s: %w", story.ID, domain.ErrNotFound)
	}
	return nil
}

var storyColumns = []string{
	"id", "discovery_prompt_id", "refinement_prompt_id", "validation_prompt_id",
	"opportunity", "region", "publications", "topic", "context",
	"discovery_input", "discovery_output", "enrichments",
	"selected_story", "refinement_input", "refinement_output",
	"validation_input", "validation_output", "verdict",
	"published", "publish_receipt", "published_at",
	"state", "created_by", "created_at", "updated_at",
}

// Get loads one story by id.
func (r *PostgresStoryRepository) Get(ctx context.Context, id string) (*domain.Story, error) {
	query, args, err := psql.Select(storyColumns...).From("stories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		story       domain.Story
		enrichments string
		publishedAt sql.NullTime
		verdict     string
		state       string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&story.ID, &story.DiscoveryPromptID, &story.RefinementPromptID, &story.ValidationPromptID,
		&story.Opportunity, &story.Region, &story.Publications, &story.Topic, &story.Context,
		&story.DiscoveryInput, &story.DiscoveryOutput, &enrichments,
		&story.SelectedStory, &story.RefinementInput, &story.RefinementOutput,
		&story.ValidationInput, &story.ValidationOutput, &verdict,
		&story.Published, &story.PublishReceipt, &publishedAt,
		&state, &story.CreatedBy, &story.CreatedAt, &story.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan story: %w", err)
	}

	story.Verdict = domain.Verdict(verdict)
	story.State = domain.State(state)
	if publishedAt.Valid {
		story.PublishedAt = publishedAt.Time
	}
	if enrichments != "" {
		if err := json.Unmarshal([]byte(enrichments), &story.Enrichments); err != nil {
			return nil, fmt.Errorf("unmarshal enrichments: %w", err)
		}
	}

	return &story, nil
}

// PostgresRunRepository persists audit rows into Postgres.
type PostgresRunRepository struct {
	db *sql.DB
}

var _ ports.RunRepository = (*PostgresRunRepository)(nil)

// NewPostgresRunRepository wires a sql.DB implementation.
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func runValues(run *domain.StepRun) map[string]any {
	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = run.CompletedAt
	}
	return map[string]any{
		"story_id":      run.StoryID,
		"prompt_id":     run.PromptID,
		"step_type":     string(run.StepType),
		"status":        string(run.Status),
		"input_text":    run.InputText,
		"output_text":   run.OutputText,
		"error_message": run.ErrorMessage,
		"duration_ms":   run.Duration.Milliseconds(),
		"started_at":    run.StartedAt,
		"completed_at":  completedAt,
	}
}

// Create inserts a new audit row.
func (r *PostgresRunRepository) Create(ctx context.Context, run *domain.StepRun) error {
	values := runValues(run)
	values["id"] = run.ID

	query, args, err := psql.Insert("step_runs").SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert step run: %w", err)
	}
	return nil
}

// Update rewrites the audit row by id.
func (r *PostgresRunRepository) Update(ctx context.Context, run *domain.StepRun) error {
	query, args, err := psql.Update("step_runs").SetMap(runValues(run)).Where(sq.Eq{"id": run.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update step run: %w", err)
	}
	return nil
}

// ListByStory returns the story's audit rows in creation order.
func (r *PostgresRunRepository) ListByStory(ctx context.Context, storyID string) ([]domain.StepRun, error) {
	query, args, err := psql.
		Select("id", "story_id", "prompt_id", "step_type", "status",
			"input_text", "output_text", "error_message", "duration_ms",
			"started_at", "completed_at").
		From("step_runs").
		Where(sq.Eq{"story_id": storyID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query step runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.StepRun
	for rows.Next() {
		var (
			run         domain.StepRun
			stepType    string
			status      string
			durationMS  int64
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&run.ID, &run.StoryID, &run.PromptID, &stepType, &status,
			&run.InputText, &run.OutputText, &run.ErrorMessage, &durationMS,
			&run.StartedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan step run: %w", err)
		}
		run.StepType = domain.StepType(stepType)
		run.Status = domain.RunStatus(status)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return runs, nil
}

// PostgresPromptRepository reads and seeds the prompt library.
type PostgresPromptRepository struct {
	db *sql.DB
}

var _ ports.PromptRepository = (*PostgresPromptRepository)(nil)

// NewPostgresPromptRepository wires a sql.DB implementation.
func NewPostgresPromptRepository(db *sql.DB) *PostgresPromptRepository {
	return &PostgresPromptRepository{db: db}
}

var promptColumns = []string{
	"id", "type", "name", "text", "description", "active",
	"opportunity", "region", "publications", "topic", "context",
	"created_at", "updated_at",
}

func (r *PostgresPromptRepository) scanPrompt(row sq.RowScanner) (*domain.Prompt, error) {
	var (
		prompt domain.Prompt
		pType  string
	)
	err := row.Scan(
		&prompt.ID, &pType, &prompt.Name, &prompt.Text, &prompt.Description, &prompt.Active,
		&prompt.Opportunity, &prompt.Region, &prompt.Publications, &prompt.Topic, &prompt.Context,
		&prompt.CreatedAt, &prompt.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan prompt: %w", err)
	}
	prompt.Type = domain.PromptType(pType)
	return &prompt, nil
}

// Get loads one prompt by id.
func (r *PostgresPromptRepository) Get(ctx context.Context, id string) (*domain.Prompt, error) {
	query, args, err := psql.Select(promptColumns...).From("prompts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	prompt, err := r.scanPrompt(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("prompt %s: %w", id, domain.ErrNotFound)
	}
	return prompt, err
}

// GetActive loads the active prompt of the given type.
func (r *PostgresPromptRepository) GetActive(ctx context.Context, t domain.PromptType) (*domain.Prompt, error) {
	query, args, err := psql.Select(promptColumns...).
		From("prompts").
		Where(sq.Eq{"type": string(t), "active": true}).
		OrderBy("created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	prompt, err := r.scanPrompt(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("active %s prompt: %w", t, domain.ErrNotFound)
	}
	return prompt, err
}

// Save upserts a prompt by name, keeping the stored id on conflict.
func (r *PostgresPromptRepository) Save(ctx context.Context, prompt *domain.Prompt) error {
	query, args, err := psql.Insert("prompts").
		Columns("id", "type", "name", "text", "description", "active",
			"opportunity", "region", "publications", "topic", "context",
			"created_at", "updated_at").
		Values(prompt.ID, string(prompt.Type), prompt.Name, prompt.Text, prompt.Description, prompt.Active,
			prompt.Opportunity, prompt.Region, prompt.Publications, prompt.Topic, prompt.Context,
			prompt.CreatedAt, prompt.UpdatedAt).
		Suffix(`ON CONFLICT (name) DO UPDATE
            SET type = EXCLUDED.type,
                text = EXCLUDED.text,
                description = EXCLUDED.description,
                active = EXCLUDED.active,
                opportunity = EXCLUDED.opportunity,
                region = EXCLUDED.region,
                publications = EXCLUDED.publications,
                topic = EXCLUDED.topic,
                context = EXCLUDED.context,
                updated_at = EXCLUDED.updated_at
            RETURNING id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&prompt.ID); err != nil {
		return fmt.Errorf("upsert prompt: %w", err)
	}
	return nil
}

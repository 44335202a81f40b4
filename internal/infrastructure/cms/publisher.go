package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"StoryPipeline/internal/config"
	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

// Publisher pushes approved stories to the downstream CMS. Without a
// configured endpoint it runs in stub mode: the push is logged and a stub
// receipt is returned, until the CMS API integration lands.
type Publisher struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher builds a publisher from configuration.
func NewPublisher(cfg config.CMSConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Publish sends the approved story downstream and returns a receipt.
func (p *Publisher) Publish(ctx context.Context, story *domain.Story) (string, error) {
	if p.endpoint == "" {
		if p.logger != nil {
			p.logger.Info("cms push (stub)", "story_id", story.ID, "opportunity", story.Opportunity)
		}
		return fmt.Sprintf("stub: story %s logged as approved, cms integration pending", story.ID), nil
	}

	payload := map[string]any{
		"story_id":     story.ID,
		"pitch":        story.RefinementOutput,
		"opportunity":  story.Opportunity,
		"region":       story.Region,
		"publications": story.Publications,
		"topic":        story.Topic,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal cms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("push to cms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("cms returned %s", resp.Status)
	}

	var decoded struct {
		Receipt string `json:"receipt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode cms response: %w", err)
	}
	if decoded.Receipt == "" {
		decoded.Receipt = fmt.Sprintf("cms accepted story %s", story.ID)
	}

	return decoded.Receipt, nil
}

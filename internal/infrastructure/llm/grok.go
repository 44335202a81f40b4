package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"StoryPipeline/internal/config"
	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

// GrokClient implements ports.LLMClient against xAI's chat completions and
// responses endpoints. Every failure is returned as a *domain.CallError so
// the step runner can log the classification.
type GrokClient struct {
	endpoint       string
	searchEndpoint string
	model          string
	apiKey         string
	httpClient     *http.Client
}

var _ ports.LLMClient = (*GrokClient)(nil)

// NewGrokClient builds a client from configuration.
func NewGrokClient(cfg config.GrokConfig) *GrokClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GrokClient{
		endpoint:       cfg.Endpoint,
		searchEndpoint: cfg.SearchEndpoint,
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate posts a chat completion and returns the assistant's text.
func (c *GrokClient) Generate(ctx context.Context, prompt, systemContext string) (string, error) {
	if c.apiKey == "" {
		return "", &domain.CallError{Kind: domain.ErrConfig, Message: "grok api key is not configured"}
	}

	messages := make([]chatMessage, 0, 2)
	if systemContext != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemContext})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.7,
	}

	body, err := c.post(ctx, c.endpoint, payload)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded.Choices) == 0 {
		return "", &domain.CallError{Kind: domain.ErrMalformed, Message: "malformed response from grok api"}
	}

	return decoded.Choices[0].Message.Content, nil
}

// GenerateWithSearch posts to the responses endpoint with the x_search tool
// enabled over a trailing 7-day window, so discovery sees live posts.
func (c *GrokClient) GenerateWithSearch(ctx context.Context, prompt, systemContext string) (string, error) {
	if c.apiKey == "" {
		return "", &domain.CallError{Kind: domain.ErrConfig, Message: "grok api key is not configured"}
	}

	input := make([]chatMessage, 0, 2)
	if systemContext != "" {
		input = append(input, chatMessage{Role: "system", Content: systemContext})
	}
	input = append(input, chatMessage{Role: "user", Content: prompt})

	now := time.Now().UTC()
	payload := map[string]any{
		"model": c.model,
		"input": input,
		"tools": []map[string]any{
			{
				"type":      "x_search",
				"from_date": now.AddDate(0, 0, -7).Format("2006-01-02"),
				"to_date":   now.Format("2006-01-02"),
			},
		},
		"temperature": 0.7,
	}

	body, err := c.post(ctx, c.searchEndpoint, payload)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &domain.CallError{Kind: domain.ErrMalformed, Message: "malformed response from grok responses api"}
	}

	var parts []string
	for _, item := range decoded.Output {
		if item.Type != "message" {
			continue
		}
		for _, block := range item.Content {
			if block.Type == "output_text" && block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
	}
	if len(parts) == 0 {
		return "", &domain.CallError{Kind: domain.ErrMalformed, Message: "no text output in grok responses api reply"}
	}

	return strings.Join(parts, "\n"), nil
}

func (c *GrokClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if endpoint == "" {
		return nil, &domain.CallError{Kind: domain.ErrConfig, Message: "grok endpoint is not configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal grok payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.CallError{Kind: domain.ErrRateLimited, Status: resp.StatusCode, Message: "grok api rate limit exceeded"}
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, &domain.CallError{
			Kind:    domain.ErrServer,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("grok api returned http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.CallError{Kind: domain.ErrMalformed, Message: "truncated response from grok api"}
	}

	return raw, nil
}

func classifyTransportError(err error) *domain.CallError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &domain.CallError{Kind: domain.ErrTimeout, Message: "grok api request timed out"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.CallError{Kind: domain.ErrTimeout, Message: "grok api request timed out"}
	}
	return &domain.CallError{Kind: domain.ErrConnection, Message: "could not connect to grok api"}
}

// Package llm talks to an OpenAI-compatible chat completion endpoint and is
// used by the news service to score headline sentiment.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// Client sends chat completions to a single model
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientConfig configures a single-model client
type ClientConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewClient creates a completion client with defaults filled in
func NewClient(cfg ClientConfig) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        config.NewLogger("llm"),
	}
}

// Model returns the model name this client targets
func (c *Client) Model() string { return c.model }

// Complete sends a chat completion request
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	metrics.LLMRequestDuration.Observe(float64(time.Since(start).Milliseconds()))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error.Message == "" {
			return nil, fmt.Errorf("completion API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("completion API error: %s", errResp.Error.Message)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.log.Debug().
		Str("model", chatResp.Model).
		Int("prompt_tokens", chatResp.Usage.PromptTokens).
		Int("completion_tokens", chatResp.Usage.CompletionTokens).
		Msg("Completion succeeded")

	return &chatResp, nil
}

// CompleteWithSystem sends a system + user prompt pair and returns the text
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.Complete(ctx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ParseJSONResponse parses a JSON object out of model output, stripping any
// markdown code fence around it
func ParseJSONResponse(content string, target any) error {
	content = extractJSONFromMarkdown(content)
	if err := json.Unmarshal([]byte(content), target); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func extractJSONFromMarkdown(content string) string {
	raw := []byte(content)

	start := -1
	if idx := bytes.Index(raw, []byte("```json")); idx >= 0 {
		start = idx + 7
	} else if idx := bytes.Index(raw, []byte("```")); idx >= 0 {
		start = idx + 3
	}
	if start >= 0 {
		if idx := bytes.Index(raw[start:], []byte("```")); idx >= 0 {
			raw = raw[start : start+idx]
		}
	}
	return string(bytes.TrimSpace(raw))
}

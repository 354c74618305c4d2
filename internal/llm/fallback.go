package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/autofinance/autofinance/internal/config"
)

// Completer is what the news service depends on
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// FallbackClient tries a primary model first and falls back to secondaries.
// Each model sits behind its own circuit breaker so a dead model stops
// costing a timeout on every request.
type FallbackClient struct {
	clients  []*Client
	breakers []*gobreaker.CircuitBreaker
}

// NewFallbackClient builds the model chain from configuration. The fallback
// model shares the primary's endpoint and key.
func NewFallbackClient(cfg config.LLMConfig) *FallbackClient {
	models := []string{cfg.PrimaryModel}
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.PrimaryModel {
		models = append(models, cfg.FallbackModel)
	}

	fc := &FallbackClient{}
	for _, model := range models {
		fc.clients = append(fc.clients, NewClient(ClientConfig{
			Endpoint:  cfg.Endpoint,
			APIKey:    cfg.APIKey,
			Model:     model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.GetTimeout(),
		}))
		fc.breakers = append(fc.breakers, gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm-" + model,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}))
	}
	return fc
}

// CompleteWithSystem tries each model in order until one answers
func (fc *FallbackClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var errs []error
	for i, client := range fc.clients {
		out, err := fc.breakers[i].Execute(func() (any, error) {
			return client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
		})
		if err == nil {
			return out.(string), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", client.Model(), err))
	}
	return "", fmt.Errorf("all models failed: %w", errors.Join(errs...))
}

var _ Completer = (*FallbackClient)(nil)
var _ Completer = (*Client)(nil)

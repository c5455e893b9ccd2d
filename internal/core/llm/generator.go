// Package llm talks to text-generation backends.
//
// Two backends are supported:
//   - Ollama's native /api/generate endpoint
//   - any OpenAI-compatible chat completion API (including Ollama's /v1)
//
// Both are rate limited and guarded by a circuit breaker. Prompt construction
// and response parsing belong to the caller.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/platform/config"
)

// Request is one generation call.
type Request struct {
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Generator produces free-form text for a prompt.
type Generator interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Generate returns the raw completion text.
	Generate(ctx context.Context, req Request) (string, error)
	// Ping checks that the backend is reachable and serves model.
	Ping(ctx context.Context, model string) error
}

// New builds the generator selected by cfg.LLMProvider.
func New(cfg *config.Config, client *http.Client, logger *zerolog.Logger) (Generator, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.LLMTimeout}
	}

	switch cfg.LLMProvider {
	case config.ProviderOllama, "":
		return NewOllama(cfg.OllamaURL, client, cfg.LLMRateLimitRPS, logger), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.LLMAPIKey, cfg.LLMBaseURL, client, cfg.LLMRateLimitRPS, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownProvider, cfg.LLMProvider)
	}
}

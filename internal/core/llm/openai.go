package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
)

const errOpenAIChatCompletion = "openai chat completion: %w"

type openAIGenerator struct {
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
	breaker     *circuitBreaker
}

// NewOpenAI returns a Generator for an OpenAI-compatible API. An empty baseURL
// uses the public OpenAI endpoint.
func NewOpenAI(apiKey, baseURL string, client *http.Client, rps float64, logger *zerolog.Logger) Generator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if client != nil {
		cfg.HTTPClient = client
	}

	return &openAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		logger:      logger,
		rateLimiter: newLimiter(rps),
		breaker:     newCircuitBreaker(logger),
	}
}

func (g *openAIGenerator) Name() string {
	return ProviderNameOpenAI
}

func (g *openAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.breaker.check(); err != nil {
		return "", err
	}

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.LLMRequestDuration.WithLabelValues(ProviderNameOpenAI).Observe(time.Since(start).Seconds())

	if err != nil {
		g.breaker.recordFailure()

		return "", fmt.Errorf(errOpenAIChatCompletion, err)
	}

	g.breaker.recordSuccess()

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", apperrors.ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	g.logger.Debug().Str("content", content).Msg("LLM response")

	return content, nil
}

// Ping lists the models served by the endpoint.
func (g *openAIGenerator) Ping(ctx context.Context, model string) error {
	models, err := g.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrGeneratorUnavailable, err)
	}

	for _, m := range models.Models {
		if m.ID == model {
			return nil
		}
	}

	g.logger.Warn().Str("model", model).Int("available_models", len(models.Models)).Msg("model not listed by endpoint")

	return nil
}

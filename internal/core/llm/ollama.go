package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
)

type ollamaGenerator struct {
	baseURL     string
	client      *http.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
	breaker     *circuitBreaker
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllama returns a Generator for an Ollama server at baseURL.
// rps <= 0 disables rate limiting.
func NewOllama(baseURL string, client *http.Client, rps float64, logger *zerolog.Logger) Generator {
	return &ollamaGenerator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      client,
		logger:      logger,
		rateLimiter: newLimiter(rps),
		breaker:     newCircuitBreaker(logger),
	}
}

func (g *ollamaGenerator) Name() string {
	return ProviderNameOllama
}

func (g *ollamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.breaker.check(); err != nil {
		return "", err
	}

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	start := time.Now()
	text, err := g.postGenerate(ctx, body)

	observability.LLMRequestDuration.WithLabelValues(ProviderNameOllama).Observe(time.Since(start).Seconds())

	if err != nil {
		g.breaker.recordFailure()

		return "", err
	}

	g.breaker.recordSuccess()

	return text, nil
}

func (g *ollamaGenerator) postGenerate(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+ollamaGeneratePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrGeneratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)) //nolint:errcheck // best-effort error detail

		return "", fmt.Errorf("%w: %d %s", apperrors.ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	if strings.TrimSpace(out.Response) == "" {
		return "", apperrors.ErrEmptyResponse
	}

	return out.Response, nil
}

// Ping lists local models. A reachable server without the model only logs a warning.
func (g *ollamaGenerator) Ping(ctx context.Context, model string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+ollamaTagsPath, nil)
	if err != nil {
		return fmt.Errorf("build tags request: %w", err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrGeneratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %w: %d", apperrors.ErrGeneratorUnavailable, apperrors.ErrUnexpectedStatus, resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tags response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == model {
			return nil
		}
	}

	g.logger.Warn().Str("model", model).Int("available_models", len(tags.Models)).Msg("model not found on Ollama server, pull it first")

	return nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, rateLimiterBurst)
	}

	return rate.NewLimiter(rate.Limit(rps), rateLimiterBurst)
}

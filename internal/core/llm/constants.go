package llm

import "time"

const (
	ProviderNameOllama = "ollama"
	ProviderNameOpenAI = "openai"

	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
	rateLimiterBurst        = 1

	ollamaGeneratePath = "/api/generate"
	ollamaTagsPath     = "/api/tags"

	maxErrorBodyBytes = 512

	errRateLimiter = "rate limiter: %w"
)

package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
)

type circuitBreaker struct {
	logger *zerolog.Logger
	now    func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	openUntil           time.Time
}

func newCircuitBreaker(logger *zerolog.Logger) *circuitBreaker {
	return &circuitBreaker{logger: logger, now: time.Now}
}

func (b *circuitBreaker) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.now().Before(b.openUntil) {
		return fmt.Errorf("%w until %v", apperrors.ErrCircuitBreakerOpen, b.openUntil)
	}

	return nil
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.consecutiveFailures >= circuitBreakerThreshold {
		b.openUntil = b.now().Add(circuitBreakerTimeout)
		b.logger.Warn().
			Int("consecutive_failures", b.consecutiveFailures).
			Time("open_until", b.openUntil).
			Msg("Circuit breaker opened")
	}
}

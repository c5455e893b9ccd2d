// Package analyzer scores ideas with a text-generation backend.
//
// Ideas are processed in contiguous batches, one call at a time, with a fixed
// delay between calls. A failed call or an unparseable completion leaves the
// idea without analysis; it never stops the remaining ideas.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/core/llm"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
	"github.com/lueurxax/idea-aggregator/internal/platform/worker"
)

const (
	DefaultBatchSize = 5
	DefaultDelay     = time.Second
	DefaultMaxTokens = 500

	titleLogPrefix = 30
	pingTimeout    = 10 * time.Second
)

// Log field keys.
const (
	logFieldTitle = "title"
	logFieldScore = "score"
	logFieldBatch = "batch"
)

// Options configures an Analyzer. Zero values take the defaults above.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	BatchSize   int
	Delay       time.Duration
}

// Stats summarizes one AnalyzeAll call.
type Stats struct {
	Total    int
	Analyzed int
	Failed   int
}

type Analyzer struct {
	generator llm.Generator
	opts      Options
	logger    *zerolog.Logger
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration) error
}

// New builds an Analyzer and probes the backend. An unreachable backend is
// logged as a warning; every call will then fail and be handled per idea.
func New(ctx context.Context, generator llm.Generator, opts Options, logger *zerolog.Logger) *Analyzer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.Delay < 0 {
		opts.Delay = 0
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}

	a := &Analyzer{
		generator: generator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		wait:      worker.Wait,
	}

	err := worker.RunWithTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return generator.Ping(ctx, opts.Model)
	})
	if err != nil {
		logger.Warn().Err(err).Str("provider", generator.Name()).Msg("generation backend not available, analysis calls will fail")
	} else {
		logger.Info().Str("provider", generator.Name()).Str("model", opts.Model).Msg("generation backend available")
	}

	return a
}

// AnalyzeAll analyzes ideas in order and returns a new slice of the same
// length. An error is returned only when ctx is canceled; ideas not reached
// are returned unanalyzed.
func (a *Analyzer) AnalyzeAll(ctx context.Context, ideas []domain.Idea) ([]domain.Idea, Stats, error) {
	out := make([]domain.Idea, len(ideas))
	copy(out, ideas)

	stats := Stats{Total: len(ideas)}
	batches := (len(ideas) + a.opts.BatchSize - 1) / a.opts.BatchSize
	called := false

	for b := 0; b < batches; b++ {
		start := b * a.opts.BatchSize
		end := min(start+a.opts.BatchSize, len(ideas))

		a.logger.Info().Int(logFieldBatch, b+1).Int("batches", batches).Int("size", end-start).Msg("analyzing batch")

		for i := start; i < end; i++ {
			if called {
				if err := a.wait(ctx, a.opts.Delay); err != nil {
					stats.Failed += len(ideas) - i

					return out, stats, fmt.Errorf("analysis interrupted: %w", err)
				}
			}

			called = true

			analyzed, res := a.AnalyzeIdea(ctx, out[i])
			out[i] = analyzed

			if res.OK() {
				stats.Analyzed++
			} else {
				stats.Failed++
			}
		}
	}

	a.logger.Info().Int("total", stats.Total).Int("analyzed", stats.Analyzed).Int("failed", stats.Failed).Msg("analysis finished")

	return out, stats, nil
}

// AnalyzeIdea runs one generation call. On success the returned idea carries
// the analysis and its timestamp; otherwise it is returned unchanged.
func (a *Analyzer) AnalyzeIdea(ctx context.Context, idea domain.Idea) (domain.Idea, ParseResult) {
	title := idea.TitlePrefix(titleLogPrefix)

	text, err := a.generator.Generate(ctx, llm.Request{
		Model:       a.opts.Model,
		Prompt:      BuildPrompt(idea),
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		a.logger.Error().Err(err).Str(logFieldTitle, title).Str("source", idea.Source).Msg("generation call failed")
		observability.IdeasAnalyzed.WithLabelValues(observability.StatusFailure).Inc()

		return idea, ParseResult{Err: err}
	}

	res := ParseAnalysis(text)
	if !res.OK() {
		a.logger.Error().Err(res.Err).Str(logFieldTitle, title).Msg("could not parse analysis from completion")
		a.logger.Debug().Str("completion", text).Msg("unparsed completion")
		observability.IdeasAnalyzed.WithLabelValues(observability.StatusFailure).Inc()

		return idea, res
	}

	for _, w := range res.Warnings {
		a.logger.Warn().Str(logFieldTitle, title).Str("warning", w).Msg("analysis normalized")
	}

	at := domain.NewTimestamp(a.now())
	idea.Analysis = res.Analysis
	idea.AnalysisTimestamp = &at

	a.logger.Info().Str(logFieldTitle, title).Int(logFieldScore, res.Analysis.Score).Msg("idea analyzed")
	observability.IdeasAnalyzed.WithLabelValues(observability.StatusSuccess).Inc()

	return idea, res
}

// Package pipeline runs one aggregation pass:
// collect → normalize → deduplicate → analyze → filter → persist → notify.
//
// Sources run concurrently on a bounded pool; everything after collection
// is sequential within a run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/ingest/sources"
	"github.com/lueurxax/idea-aggregator/internal/interchange"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
	"github.com/lueurxax/idea-aggregator/internal/platform/worker"
	"github.com/lueurxax/idea-aggregator/internal/process/analyzer"
	"github.com/lueurxax/idea-aggregator/internal/process/dedup"
	"github.com/lueurxax/idea-aggregator/internal/process/filters"
	"github.com/lueurxax/idea-aggregator/internal/process/normalize"
)

const (
	DefaultSourceWorkers = 3

	logKeySource = "source"
	logKeyRunID  = "run_id"
)

// Analyzer scores deduplicated ideas.
type Analyzer interface {
	AnalyzeAll(ctx context.Context, ideas []domain.Idea) ([]domain.Idea, analyzer.Stats, error)
}

// Store is the part of the storage layer a run writes to.
type Store interface {
	StoreRaw(ctx context.Context, ideas []domain.Idea) (int, error)
	StoreAnalyzed(ctx context.Context, ideas []domain.Idea) (int, error)
}

// Recorder keeps stage outputs as interchange files.
type Recorder interface {
	WriteRaw(ideas []domain.Idea) (string, error)
	WriteProcessed(processed, relevant []domain.Idea) (interchange.Files, error)
}

// Notifier receives the relevant ideas of a run.
type Notifier interface {
	Notify(ctx context.Context, ideas []domain.Idea, minScore int) (int, error)
	Enabled() bool
}

// Options tunes a Pipeline. Zero values take package defaults.
type Options struct {
	SourceWorkers       int
	SourceTimeout       time.Duration
	SimilarityThreshold float64
	MinScore            int
	NotifyMinScore      int
}

// Deps are the collaborators of a Pipeline. Store, Recorder and Notifier
// are optional; the stages that need them are skipped when nil.
type Deps struct {
	Sources  []sources.Source
	Analyzer Analyzer
	Store    Store
	Recorder Recorder
	Notifier Notifier
}

// Result is the output of Process.
type Result struct {
	Processed []domain.Idea
	Relevant  []domain.Idea
	Dedup     dedup.Stats
	Analysis  analyzer.Stats
}

// Summary reports the counts of one run so partial failures show up as
// discrepancies between stages.
type Summary struct {
	RunID          uuid.UUID
	Collected      int
	Unique         int
	Analyzed       int
	Relevant       int
	StoredRaw      int
	StoredAnalyzed int
	Notified       int
	Duration       time.Duration
}

type Pipeline struct {
	deps    Deps
	opts    Options
	deduper *dedup.Deduplicator
	logger  *zerolog.Logger
	now     func() time.Time
}

func New(deps Deps, opts Options, logger *zerolog.Logger) *Pipeline {
	if opts.SourceWorkers <= 0 {
		opts.SourceWorkers = DefaultSourceWorkers
	}

	return &Pipeline{
		deps:    deps,
		opts:    opts,
		deduper: dedup.New(opts.SimilarityThreshold, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Collect runs every source and returns their normalized ideas. A failing
// source is logged and contributes nothing. Records keep their order within
// a source; sources are appended in the order they finish.
func (p *Pipeline) Collect(ctx context.Context) []domain.Idea {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	all := make([]domain.Idea, 0)

	g.SetLimit(p.opts.SourceWorkers)

	for _, src := range p.deps.Sources {
		g.Go(func() error {
			ideas, err := p.collectSource(ctx, src)
			if err != nil {
				observability.SourceFailures.WithLabelValues(src.Name()).Inc()
				p.logger.Error().Err(err).Str(logKeySource, src.Name()).Msg("source failed")

				return nil
			}

			observability.IdeasCollected.WithLabelValues(src.Name()).Add(float64(len(ideas)))
			p.logger.Info().Str(logKeySource, src.Name()).Int("ideas", len(ideas)).Msg("source collected")

			mu.Lock()
			all = append(all, ideas...)
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	return all
}

func (p *Pipeline) collectSource(ctx context.Context, src sources.Source) ([]domain.Idea, error) {
	var records []domain.RawRecord

	err := worker.Safely(p.logger, "source "+src.Name(), func() error {
		return worker.RunWithTimeout(ctx, p.opts.SourceTimeout, func(ctx context.Context) error {
			var err error

			records, err = src.Run(ctx)

			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("run source: %w", err)
	}

	return normalize.All(records, src.Name(), p.now()), nil
}

// Process deduplicates, analyzes and filters ideas. On cancellation the
// partial result is returned with the error.
func (p *Pipeline) Process(ctx context.Context, ideas []domain.Idea) (Result, error) {
	unique, ds := p.deduper.Deduplicate(ideas)
	observability.IdeasDeduplicated.WithLabelValues(observability.StageExact).Add(float64(ds.Input - ds.AfterExact))
	observability.IdeasDeduplicated.WithLabelValues(observability.StageFuzzy).Add(float64(ds.AfterExact - ds.AfterFuzzy))

	res := Result{Dedup: ds}

	if p.deps.Analyzer == nil {
		res.Processed = unique

		return res, nil
	}

	processed, as, err := p.deps.Analyzer.AnalyzeAll(ctx, unique)
	res.Processed = processed
	res.Analysis = as
	res.Relevant = filters.Relevant(processed, p.opts.MinScore)

	if err != nil {
		return res, fmt.Errorf("analyze: %w", err)
	}

	return res, nil
}

// Persist writes every idea to the raw table and the analyzed ones to the
// analyzed table. Ideas without a fingerprint get one before they are stored.
func (p *Pipeline) Persist(ctx context.Context, ideas []domain.Idea) (raw, analyzed int, err error) {
	if p.deps.Store == nil {
		return 0, 0, nil
	}

	keyed := make([]domain.Idea, len(ideas))
	for i, idea := range ideas {
		keyed[i] = normalize.WithFingerprint(idea)
	}

	ideas = keyed

	raw, err = p.deps.Store.StoreRaw(ctx, ideas)
	if err != nil {
		return raw, 0, fmt.Errorf("store raw: %w", err)
	}

	analyzed, err = p.deps.Store.StoreAnalyzed(ctx, ideas)
	if err != nil {
		return raw, analyzed, fmt.Errorf("store analyzed: %w", err)
	}

	return raw, analyzed, nil
}

// Run performs a full pass. Interchange and notification failures are
// logged; storage and cancellation errors end the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.now()
	sum := Summary{RunID: uuid.New()}
	logger := p.logger.With().Str(logKeyRunID, sum.RunID.String()).Logger()

	logger.Info().Int("sources", len(p.deps.Sources)).Msg("pipeline run started")

	collected := p.Collect(ctx)
	sum.Collected = len(collected)

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("collect: %w", err)
	}

	if p.deps.Recorder != nil {
		if path, err := p.deps.Recorder.WriteRaw(collected); err != nil {
			logger.Error().Err(err).Msg("failed to write raw ideas file")
		} else {
			logger.Info().Str("path", path).Msg("raw ideas saved")
		}
	}

	res, err := p.Process(ctx, collected)
	sum.Unique = len(res.Processed)
	sum.Analyzed = res.Analysis.Analyzed
	sum.Relevant = len(res.Relevant)

	if err != nil {
		return sum, err
	}

	if p.deps.Recorder != nil {
		if files, err := p.deps.Recorder.WriteProcessed(res.Processed, res.Relevant); err != nil {
			logger.Error().Err(err).Msg("failed to write processed ideas files")
		} else {
			logger.Info().Str("processed", files.Processed).Str("relevant", files.Relevant).Msg("processed ideas saved")
		}
	}

	sum.StoredRaw, sum.StoredAnalyzed, err = p.Persist(ctx, res.Processed)
	if err != nil {
		return sum, err
	}

	if p.deps.Notifier != nil && p.deps.Notifier.Enabled() {
		sent, err := p.deps.Notifier.Notify(ctx, res.Relevant, p.opts.NotifyMinScore)
		if err != nil {
			logger.Error().Err(err).Msg("notification failed")
		}

		sum.Notified = sent
	}

	sum.Duration = p.now().Sub(start)

	observability.PipelineRunDuration.Observe(sum.Duration.Seconds())
	observability.PipelineLastRunRelevant.Set(float64(sum.Relevant))

	logger.Info().
		Int("collected", sum.Collected).
		Int("unique", sum.Unique).
		Int("analyzed", sum.Analyzed).
		Int("relevant", sum.Relevant).
		Int("stored_raw", sum.StoredRaw).
		Int("stored_analyzed", sum.StoredAnalyzed).
		Int("notified", sum.Notified).
		Dur("duration", sum.Duration).
		Msg("pipeline run finished")

	return sum, nil
}

// Package app wires configuration into the pipeline and runs its modes:
//
//   - scrape: collect ideas from every enabled source into a raw file
//   - process: deduplicate, analyze and filter the latest raw file
//   - store: persist the latest processed file, then clean up and back up
//   - notify: send the best relevant ideas to Telegram
//   - run: all of the above in one invocation
//   - daemon: run on an interval with the health server up
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/core/llm"
	"github.com/lueurxax/idea-aggregator/internal/ingest/sources"
	"github.com/lueurxax/idea-aggregator/internal/interchange"
	"github.com/lueurxax/idea-aggregator/internal/output/notify"
	"github.com/lueurxax/idea-aggregator/internal/platform/config"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
	"github.com/lueurxax/idea-aggregator/internal/platform/schedule"
	"github.com/lueurxax/idea-aggregator/internal/platform/worker"
	"github.com/lueurxax/idea-aggregator/internal/process/analyzer"
	"github.com/lueurxax/idea-aggregator/internal/process/pipeline"
	"github.com/lueurxax/idea-aggregator/internal/storage"
)

// Modes accepted by Run.
const (
	ModeScrape  = "scrape"
	ModeProcess = "process"
	ModeStore   = "store"
	ModeNotify  = "notify"
	ModeRun     = "run"
	ModeDaemon  = "daemon"
)

const (
	housekeepingInterval = 24 * time.Hour
	logFieldPath         = "path"
	logFieldIdeas        = "ideas"
)

var errUnknownMode = errors.New("unknown mode")

// Options are the command-line switches of a run.
type Options struct {
	// Input overrides the interchange file a mode reads.
	Input string
	// Once makes daemon mode run a single pass.
	Once bool
}

// App holds configuration and builds per-mode dependencies on demand.
type App struct {
	cfg    *config.Config
	client *http.Client
	logger *zerolog.Logger
	now    func() time.Time
}

// New creates a new App instance.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// Run dispatches to the runner of mode.
func (a *App) Run(ctx context.Context, mode string, opts Options) error {
	switch mode {
	case ModeScrape:
		return a.RunScrape(ctx)
	case ModeProcess:
		return a.RunProcess(ctx, opts.Input)
	case ModeStore:
		return a.RunStore(ctx, opts.Input)
	case ModeNotify:
		return a.RunNotify(ctx, opts.Input)
	case ModeRun:
		return a.RunPipeline(ctx)
	case ModeDaemon:
		return a.RunDaemon(ctx, opts.Once)
	default:
		return fmt.Errorf("%w: %q", errUnknownMode, mode)
	}
}

// RunScrape collects ideas from the enabled sources and saves the raw file.
func (a *App) RunScrape(ctx context.Context) error {
	dir, err := interchange.Open(a.cfg.DataDir)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Deps{Sources: a.sources()}, a.pipelineOptions(), a.logger)

	ideas := p.Collect(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	path, err := dir.WriteRaw(ideas)
	if err != nil {
		return err
	}

	a.logger.Info().Str(logFieldPath, path).Int(logFieldIdeas, len(ideas)).Msg("scrape finished")

	return nil
}

// RunProcess analyzes input, or the newest raw file when input is empty.
func (a *App) RunProcess(ctx context.Context, input string) error {
	dir, err := interchange.Open(a.cfg.DataDir)
	if err != nil {
		return err
	}

	ideas, err := a.load(input, dir.LatestRaw)
	if err != nil {
		return err
	}

	an, err := a.analyzer(ctx)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Deps{Analyzer: an}, a.pipelineOptions(), a.logger)

	res, procErr := p.Process(ctx, ideas)

	files, err := dir.WriteProcessed(res.Processed, res.Relevant)
	if err != nil {
		return err
	}

	a.logger.Info().
		Str("processed", files.Processed).
		Str("relevant", files.Relevant).
		Int("unique", len(res.Processed)).
		Int("analyzed", res.Analysis.Analyzed).
		Int("relevant_count", len(res.Relevant)).
		Msg("processing finished")

	return procErr
}

// RunStore persists input, or the newest processed file, then runs
// retention cleanup and the backup.
func (a *App) RunStore(ctx context.Context, input string) error {
	dir, err := interchange.Open(a.cfg.DataDir)
	if err != nil {
		return err
	}

	ideas, err := a.load(input, dir.LatestProcessed)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer a.closeStore(store)

	p := pipeline.New(pipeline.Deps{Store: store}, a.pipelineOptions(), a.logger)

	raw, analyzed, err := p.Persist(ctx, ideas)
	if err != nil {
		return err
	}

	a.logger.Info().Int("raw", raw).Int("analyzed", analyzed).Str("backend", store.Backend()).Msg("store finished")

	a.housekeeping(ctx, store)

	return nil
}

// RunNotify sends the ideas of input or the newest relevant file. Without
// either it falls back to the top ideas in storage.
func (a *App) RunNotify(ctx context.Context, input string) error {
	if !a.cfg.TelegramConfigured() {
		a.logger.Info().Msg("telegram credentials not set, nothing to notify")

		return nil
	}

	notifier := a.notifier()
	if !notifier.Enabled() {
		return nil
	}

	dir, err := interchange.Open(a.cfg.DataDir)
	if err != nil {
		return err
	}

	ideas, err := a.load(input, dir.LatestRelevant)

	switch {
	case apperrors.Is(err, apperrors.ErrNoInputFile):
		a.logger.Info().Msg("no relevant ideas file, reading top ideas from storage")

		ideas, err = a.topFromStore(ctx)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	sent, err := notifier.Notify(ctx, ideas, a.cfg.NotifyMinScore)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	a.logger.Info().Int("sent", sent).Msg("notify finished")

	return nil
}

// RunPipeline performs one full pass followed by housekeeping.
func (a *App) RunPipeline(ctx context.Context) error {
	store, err := storage.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer a.closeStore(store)

	p, err := a.fullPipeline(ctx, store)
	if err != nil {
		return err
	}

	if _, err := p.Run(ctx); err != nil {
		return err
	}

	a.housekeeping(ctx, store)

	return nil
}

// RunDaemon repeats full passes every RUN_INTERVAL, or at the RUN_AT clock
// times when those are set. Housekeeping runs once a day. With once set, a
// single pass runs and the daemon exits.
func (a *App) RunDaemon(ctx context.Context, once bool) error {
	store, err := storage.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer a.closeStore(store)

	p, err := a.fullPipeline(ctx, store)
	if err != nil {
		return err
	}

	runAt, err := schedule.Parse(a.cfg.RunAt, a.cfg.RunTimezone)
	if err != nil {
		return err
	}

	if once {
		if _, err := p.Run(ctx); err != nil {
			return err
		}

		a.housekeeping(ctx, store)

		return nil
	}

	go func() {
		if err := a.StartHealthServer(ctx, store); err != nil {
			a.logger.Error().Err(err).Msg("health check server error")
		}
	}()

	return worker.Loop(ctx, worker.Config{
		Name:     "pipeline",
		Interval: a.cfg.RunInterval,
		NextRun:  a.nextRun(runAt),
		Run: func(ctx context.Context) error {
			_, err := p.Run(ctx)

			return err
		},
		PeriodicTasks: []worker.PeriodicTask{{
			Name:     "housekeeping",
			Interval: housekeepingInterval,
			Run:      func(ctx context.Context) { a.housekeeping(ctx, store) },
		}},
		OnError: func(_ error) bool {
			return ctx.Err() == nil
		},
		Logger: a.logger,
	})
}

func (a *App) nextRun(runAt *schedule.Daily) func(time.Time) time.Time {
	if runAt.IsEmpty() {
		return nil
	}

	return runAt.Next
}

// StartHealthServer serves /healthz, /readyz and /metrics until ctx ends.
func (a *App) StartHealthServer(ctx context.Context, ready observability.Pinger) error {
	srv := observability.NewServer(ready, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

func (a *App) fullPipeline(ctx context.Context, store storage.Store) (*pipeline.Pipeline, error) {
	dir, err := interchange.Open(a.cfg.DataDir)
	if err != nil {
		return nil, err
	}

	an, err := a.analyzer(ctx)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Deps{
		Sources:  a.sources(),
		Analyzer: an,
		Store:    store,
		Recorder: dir,
		Notifier: a.notifier(),
	}, a.pipelineOptions(), a.logger), nil
}

func (a *App) sources() []sources.Source {
	return sources.Build(a.cfg, a.client, a.logger)
}

func (a *App) analyzer(ctx context.Context) (*analyzer.Analyzer, error) {
	gen, err := llm.New(a.cfg, &http.Client{Timeout: a.cfg.LLMTimeout}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("generation backend: %w", err)
	}

	return analyzer.New(ctx, gen, analyzer.Options{
		Model:       a.cfg.LLMModel,
		Temperature: a.cfg.LLMTemperature,
		MaxTokens:   a.cfg.LLMMaxTokens,
		BatchSize:   a.cfg.AnalysisBatch,
		Delay:       a.cfg.AnalysisDelay,
	}, a.logger), nil
}

func (a *App) notifier() *notify.TelegramNotifier {
	return notify.NewTelegram(notify.Options{
		Token:  a.cfg.TelegramBotToken,
		ChatID: a.cfg.TelegramChatID,
		Limit:  a.cfg.NotifyLimit,
	}, a.logger)
}

func (a *App) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		SourceWorkers:       a.cfg.SourceWorkers,
		SourceTimeout:       a.cfg.SourceTimeout,
		SimilarityThreshold: a.cfg.SimilarityThresh,
		MinScore:            a.cfg.MinScore,
		NotifyMinScore:      a.cfg.NotifyMinScore,
	}
}

func (a *App) topFromStore(ctx context.Context) ([]domain.Idea, error) {
	store, err := storage.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	defer a.closeStore(store)

	ideas, err := store.GetTop(ctx, a.cfg.NotifyLimit, a.cfg.NotifyMinScore)
	if err != nil {
		return nil, fmt.Errorf("load top ideas: %w", err)
	}

	return ideas, nil
}

// load reads input, or the file picked by latest when input is empty.
func (a *App) load(input string, latest func() (string, error)) ([]domain.Idea, error) {
	path := input
	if path == "" {
		var err error

		path, err = latest()
		if err != nil {
			return nil, err
		}
	}

	ideas, err := interchange.Load(path)
	if err != nil {
		return nil, err
	}

	a.logger.Info().Str(logFieldPath, path).Int(logFieldIdeas, len(ideas)).Msg("loaded ideas")

	return ideas, nil
}

// housekeeping deletes expired raw ideas and backs up the embedded store.
// Failures are logged only.
func (a *App) housekeeping(ctx context.Context, store storage.Store) {
	days := a.cfg.RawRetentionDays
	if days <= 0 {
		days = storage.DefaultRetentionDays
	}

	if _, err := store.CleanupOldRaw(ctx, days); err != nil {
		a.logger.Error().Err(err).Msg("raw ideas cleanup failed")
	}

	if !a.cfg.BackupEnabled {
		return
	}

	b, ok := store.(storage.Backuper)
	if !ok {
		return
	}

	if err := b.Backup(ctx, storage.BackupPath(a.cfg.DataDir, a.now())); err != nil {
		a.logger.Error().Err(err).Msg("database backup failed")
	}
}

func (a *App) closeStore(store storage.Store) {
	if err := store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close store")
	}
}

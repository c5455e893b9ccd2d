// Package worker provides the loop and timing helpers shared by the
// pipeline runners: a periodic run loop, context-aware waits, timeouts
// and panic recovery.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// RunFunc performs one unit of periodic work.
type RunFunc func(ctx context.Context) error

// PeriodicTask is a secondary task run after a main run once its interval has elapsed.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
	lastRun  time.Time
}

// Config configures Loop.
type Config struct {
	// Name identifies the loop for logging.
	Name string

	// Interval is the time between the start of one run and the next.
	Interval time.Duration

	// Run is called immediately and then every Interval.
	Run RunFunc

	// NextRun, when set, replaces Interval: the loop sleeps until the
	// returned time. A zero result falls back to Interval.
	NextRun func(after time.Time) time.Time

	// PeriodicTasks run after Run when due.
	PeriodicTasks []PeriodicTask

	// OnError is called when Run returns an error.
	// Return true to continue, false to exit the loop.
	OnError func(err error) bool

	Logger *zerolog.Logger
}

// Loop runs cfg.Run until ctx is canceled or OnError asks to stop.
// It returns a wrapped ctx.Err() on cancellation.
func Loop(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting worker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	tasks := make([]PeriodicTask, len(cfg.PeriodicTasks))
	copy(tasks, cfg.PeriodicTasks)

	for {
		if err := checkCanceled(ctx, cfg.Name); err != nil {
			return err
		}

		started := time.Now()

		if err := runStep(ctx, cfg, logger); err != nil {
			return err
		}

		runPeriodicTasks(ctx, tasks, logger)

		next := nextRun(cfg, started)
		logger.Debug().Str(logFieldWorker, cfg.Name).Time("next_run", next).Msg("waiting for next run")

		if err := WaitUntil(ctx, next); err != nil {
			return err
		}
	}
}

func nextRun(cfg Config, started time.Time) time.Time {
	if cfg.NextRun != nil {
		if next := cfg.NextRun(time.Now()); !next.IsZero() {
			return next
		}
	}

	return started.Add(cfg.Interval)
}

func runStep(ctx context.Context, cfg Config, logger *zerolog.Logger) error {
	if cfg.Run == nil {
		return nil
	}

	err := Safely(logger, cfg.Name, func() error { return cfg.Run(ctx) })
	if err == nil {
		return nil
	}

	if cfg.OnError != nil && !cfg.OnError(err) {
		return err
	}

	logger.Error().Err(err).Str(logFieldWorker, cfg.Name).Msg("run failed")

	return nil
}

func runPeriodicTasks(ctx context.Context, tasks []PeriodicTask, logger *zerolog.Logger) {
	now := time.Now()

	for i := range tasks {
		task := &tasks[i]
		if task.Interval <= 0 || task.Run == nil {
			continue
		}

		if now.Sub(task.lastRun) >= task.Interval {
			logger.Debug().Str(logFieldTask, task.Name).Msg("running periodic task")
			task.Run(ctx)
			task.lastRun = now
		}
	}
}

func checkCanceled(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("worker loop %s: %w", name, ctx.Err())
	default:
		return nil
	}
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// WaitUntil blocks until the specified time or context is canceled.
func WaitUntil(ctx context.Context, t time.Time) error {
	return Wait(ctx, time.Until(t))
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
// A zero timeout runs fn with ctx unchanged.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// PanicError is returned by Safely when fn panics.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

// Safely runs fn and converts a panic into a *PanicError.
func Safely(logger *zerolog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("operation", operation).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")

			err = &PanicError{Operation: operation, Value: r}
		}
	}()

	return fn()
}

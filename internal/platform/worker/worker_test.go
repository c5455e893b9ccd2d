package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRun = errors.New("run failed")

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()

	return &l
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}

func TestRunWithTimeout(t *testing.T) {
	err := RunWithTimeout(context.Background(), time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = RunWithTimeout(context.Background(), 0, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok)

		return nil
	})
	require.NoError(t, err)
}

func TestSafely(t *testing.T) {
	err := Safely(nopLogger(), "boom", func() error { panic("bad") })

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Operation)
	assert.Equal(t, "bad", pe.Value)

	require.ErrorIs(t, Safely(nopLogger(), "plain", func() error { return errRun }), errRun)
}

func TestLoop_RunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs, periodic atomic.Int32

	err := Loop(ctx, Config{
		Name:     "test",
		Interval: time.Millisecond,
		Run: func(context.Context) error {
			if runs.Add(1) == 3 {
				cancel()
			}

			return errRun
		},
		PeriodicTasks: []PeriodicTask{{
			Name:     "cleanup",
			Interval: time.Hour,
			Run:      func(context.Context) { periodic.Add(1) },
		}},
		Logger: nopLogger(),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), runs.Load())
	assert.Equal(t, int32(1), periodic.Load())
}

func TestLoop_OnErrorStops(t *testing.T) {
	err := Loop(context.Background(), Config{
		Name:     "test",
		Interval: time.Hour,
		Run:      func(context.Context) error { return errRun },
		OnError:  func(error) bool { return false },
	})

	require.ErrorIs(t, err, errRun)
}

func TestLoop_NextRunOverridesInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32

	err := Loop(ctx, Config{
		Name:     "scheduled",
		Interval: time.Hour,
		NextRun:  func(after time.Time) time.Time { return after.Add(time.Millisecond) },
		Run: func(context.Context) error {
			if runs.Add(1) == 2 {
				cancel()
			}

			return nil
		},
		Logger: nopLogger(),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), runs.Load())
}

func TestNextRun_ZeroFallsBackToInterval(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{
		Interval: time.Hour,
		NextRun:  func(time.Time) time.Time { return time.Time{} },
	}

	assert.Equal(t, started.Add(time.Hour), nextRun(cfg, started))
}

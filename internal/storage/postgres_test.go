package storage

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
)

// Set TEST_POSTGRES_DSN to run these against a disposable database.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	logger := zerolog.Nop()
	ctx := context.Background()

	s, err := NewPostgres(ctx, dsn, PoolOptions{MaxConns: 2}, &logger)
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx, "TRUNCATE feedback, raw_ideas, analyzed_ideas CASCADE")
	require.NoError(t, err)

	t.Cleanup(s.pool.Close)

	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	idea := analyzedIdea("AI tool for dentists", "pg-1", 88)
	raw := idea
	raw.Analysis = nil

	n, err := s.StoreRaw(ctx, []domain.Idea{raw, raw})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.StoreAnalyzed(ctx, []domain.Idea{idea, analyzedIdea("other", "pg-2", 50)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	idea.Analysis.Score = 93

	_, err = s.StoreAnalyzed(ctx, []domain.Idea{idea})
	require.NoError(t, err)

	top, err := s.GetTop(ctx, 5, 80)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 93, top[0].Score())
	assert.Equal(t, []string{"saas"}, top[0].Analysis.Tags)

	removed, err := s.CleanupOldRaw(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

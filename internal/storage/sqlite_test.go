package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/platform/config"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	logger := zerolog.Nop()

	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "ideas.db"), &logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func analyzedIdea(title, fingerprint string, score int) domain.Idea {
	return domain.Idea{
		Title:       title,
		Description: "description of " + title,
		URL:         "https://example.com/" + fingerprint,
		Source:      "reddit",
		Timestamp:   domain.NewTimestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Fingerprint: fingerprint,
		RawContent:  `{"title":"` + title + `"}`,
		Analysis: &domain.Analysis{
			Score:           score,
			Tags:            []string{"saas"},
			Summary:         "summary",
			Difficulty:      domain.DifficultyMedium,
			MarketPotential: domain.MarketModerate,
			Insight:         "insight",
		},
	}
}

func countRows(t *testing.T, s *SQLiteStore, table string) int {
	t.Helper()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))

	return n
}

func TestSQLiteStoreRawIgnoresDuplicates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ideas := []domain.Idea{
		{Title: "A", Fingerprint: "h1", Source: "reddit"},
		{Title: "B", Fingerprint: "h2", Source: "reddit"},
	}

	n, err := s.StoreRaw(ctx, ideas)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.StoreRaw(ctx, []domain.Idea{{Title: "A again", Fingerprint: "h1"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, countRows(t, s, tableRaw))
}

func TestSQLiteStoreRawIsolatesRowFailures(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.db.Exec(`CREATE TRIGGER reject_poison BEFORE INSERT ON raw_ideas
		WHEN NEW.title = 'poison'
		BEGIN SELECT RAISE(ABORT, 'poison row'); END`)
	require.NoError(t, err)

	n, err := s.StoreRaw(ctx, []domain.Idea{
		{Title: "ok-1", Fingerprint: "h1"},
		{Title: "poison", Fingerprint: "h2"},
		{Title: "ok-2", Fingerprint: "h3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, countRows(t, s, tableRaw))
}

func TestSQLiteStoreAnalyzed(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	unanalyzed := domain.Idea{Title: "plain", Fingerprint: "h0"}

	n, err := s.StoreAnalyzed(ctx, []domain.Idea{analyzedIdea("first", "h1", 70), unanalyzed})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var id int64
	require.NoError(t, s.db.QueryRow("SELECT id FROM analyzed_ideas WHERE hash = 'h1'").Scan(&id))

	reanalyzed := analyzedIdea("first", "h1", 91)
	reanalyzed.Analysis.Tags = []string{"ai", "devtools"}

	n, err = s.StoreAnalyzed(ctx, []domain.Idea{reanalyzed})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, countRows(t, s, tableAnalyzed))

	var (
		score  int
		tags   string
		sameID int64
	)
	require.NoError(t, s.db.QueryRow("SELECT id, score, tags FROM analyzed_ideas WHERE hash = 'h1'").Scan(&sameID, &score, &tags))
	assert.Equal(t, id, sameID)
	assert.Equal(t, 91, score)
	assert.JSONEq(t, `["ai","devtools"]`, tags)
}

func TestSQLiteGetTop(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.StoreAnalyzed(ctx, []domain.Idea{
		analyzedIdea("mid", "h1", 75),
		analyzedIdea("best", "h2", 95),
		analyzedIdea("low", "h3", 40),
		analyzedIdea("tie", "h4", 75),
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		limit    int
		minScore int
		want     []string
	}{
		{name: "all above threshold", limit: 10, minScore: 70, want: []string{"best", "mid", "tie"}},
		{name: "limited", limit: 2, minScore: 0, want: []string{"best", "mid"}},
		{name: "none", limit: 10, minScore: 99, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetTop(ctx, tt.limit, tt.minScore)
			require.NoError(t, err)

			var titles []string
			for _, idea := range got {
				titles = append(titles, idea.Title)
			}

			assert.Equal(t, tt.want, titles)
		})
	}

	top, err := s.GetTop(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 95, top[0].Score())
	assert.Equal(t, "h2", top[0].Fingerprint)
	assert.Equal(t, []string{"saas"}, top[0].Analysis.Tags)
	assert.True(t, top[0].Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestSQLiteCleanupOldRaw(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.StoreRaw(ctx, []domain.Idea{
		{Title: "old", Fingerprint: "old"},
		{Title: "recent", Fingerprint: "recent"},
		{Title: "boundary", Fingerprint: "boundary"},
	})
	require.NoError(t, err)

	setCreated := func(hash string, at time.Time) {
		_, err := s.db.Exec("UPDATE raw_ideas SET created_at = ? WHERE hash = ?", at.Format(sqliteTimeLayout), hash)
		require.NoError(t, err)
	}

	setCreated("old", now.AddDate(0, 0, -31))
	setCreated("recent", now.AddDate(0, 0, -29))
	setCreated("boundary", now.AddDate(0, 0, -30))

	n, err := s.CleanupOldRaw(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, countRows(t, s, tableRaw))
}

func TestSQLiteBackup(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.StoreAnalyzed(ctx, []domain.Idea{analyzedIdea("kept", "h1", 80)})
	require.NoError(t, err)

	path := BackupPath(t.TempDir(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "backup_ideas_20240601.db", filepath.Base(path))

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
	require.NoError(t, s.Backup(ctx, path))

	logger := zerolog.Nop()
	restored, err := NewSQLite(ctx, path, &logger)
	require.NoError(t, err)

	defer restored.Close()

	top, err := restored.GetTop(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "kept", top[0].Title)
}

func TestSQLiteEndToEnd(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	idea := analyzedIdea("AI tool for dentists", "fp-1", 88)
	raw := idea
	raw.Analysis = nil

	n, err := s.StoreRaw(ctx, []domain.Idea{raw})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.StoreAnalyzed(ctx, []domain.Idea{idea})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	top, err := s.GetTop(ctx, 5, 80)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "AI tool for dentists", top[0].Title)
	assert.Equal(t, domain.DifficultyMedium, top[0].Analysis.Difficulty)

	var rawContent string
	require.NoError(t, s.db.QueryRow("SELECT raw_content FROM raw_ideas WHERE hash = 'fp-1'").Scan(&rawContent))
	assert.JSONEq(t, `{"title":"AI tool for dentists"}`, rawContent)
}

func TestOpenFallsBackToSQLite(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()

	tests := []struct {
		name   string
		dbType string
		dsn    string
	}{
		{name: "hosted without url", dbType: config.DBTypeSupabase},
		{name: "unknown type", dbType: "mongo"},
		{name: "explicit sqlite", dbType: config.DBTypeSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				DBType:        tt.dbType,
				SupabaseDBURL: tt.dsn,
				SQLitePath:    filepath.Join(dir, tt.name+".db"),
			}

			s, err := Open(context.Background(), cfg, &logger)
			require.NoError(t, err)

			defer s.Close()

			assert.Equal(t, BackendSQLite, s.Backend())
			require.NoError(t, s.Ping(context.Background()))
		})
	}
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/araddon/dateparse"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
	"github.com/lueurxax/idea-aggregator/migrations"
)

const (
	sqliteDriver  = "sqlite3"
	sqliteDialect = "sqlite3"
	sqliteDSNOpts = "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	dirPerm       = 0o755
)

const (
	insertRawSQLite = `INSERT OR IGNORE INTO raw_ideas
	(title, description, url, source, timestamp, hash, raw_content)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	upsertAnalyzedSQLite = `INSERT INTO analyzed_ideas
	(title, description, url, source, timestamp, hash, analysis, score, tags, difficulty, market_potential)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(hash) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		url = excluded.url,
		source = excluded.source,
		timestamp = excluded.timestamp,
		analysis = excluded.analysis,
		score = excluded.score,
		tags = excluded.tags,
		difficulty = excluded.difficulty,
		market_potential = excluded.market_potential`

	selectTopSQLite = `SELECT title, description, url, source, timestamp, hash, analysis, score
	FROM analyzed_ideas
	WHERE score >= ?
	ORDER BY score DESC, id ASC
	LIMIT ?`

	deleteOldRawSQLite = `DELETE FROM raw_ideas WHERE datetime(created_at) < datetime(?)`
)

// SQLiteStore keeps ideas in an embedded database file. It owns its
// connection for its whole lifetime and is meant for a single writer.
type SQLiteStore struct {
	db     *sql.DB
	logger *zerolog.Logger
	now    func() time.Time
}

// NewSQLite opens (creating if needed) the database at path and migrates it.
func NewSQLite(ctx context.Context, path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(sqliteDriver, path+sqliteDSNOpts)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection serializes writers and keeps PRAGMAs consistent.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(db, sqliteDialect, migrations.DirSQLite, logger); err != nil {
		_ = db.Close()

		return nil, err
	}

	logger.Info().Str(logFieldBackend, BackendSQLite).Str("path", path).Msg("database ready")

	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStore) Backend() string {
	return BackendSQLite
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}

	return nil
}

func (s *SQLiteStore) StoreRaw(ctx context.Context, ideas []domain.Idea) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin raw insert: %w", err)
	}

	count := 0

	for _, idea := range ideas {
		res, err := tx.ExecContext(ctx, insertRawSQLite,
			idea.Title, idea.Description, idea.URL, idea.Source,
			s.formatTimestamp(idea.Timestamp), idea.Fingerprint, idea.RawContent,
		)
		if err != nil {
			s.logRowError(err, tableRaw, idea)

			continue
		}

		if n, err := res.RowsAffected(); err == nil && n > 0 {
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit raw insert: %w", err)
	}

	observability.IdeasStored.WithLabelValues(observability.TableRaw).Add(float64(count))
	s.logger.Info().Str(logFieldTable, tableRaw).Int(logFieldCount, count).Int("total", len(ideas)).Msg("stored raw ideas")

	return count, nil
}

func (s *SQLiteStore) StoreAnalyzed(ctx context.Context, ideas []domain.Idea) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin analyzed upsert: %w", err)
	}

	count, total := 0, 0

	for _, idea := range ideas {
		if idea.Analysis == nil {
			continue
		}

		total++

		if err := s.upsertAnalyzed(ctx, tx, idea); err != nil {
			s.logRowError(err, tableAnalyzed, idea)

			continue
		}

		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit analyzed upsert: %w", err)
	}

	observability.IdeasStored.WithLabelValues(observability.TableAnalyzed).Add(float64(count))
	s.logger.Info().Str(logFieldTable, tableAnalyzed).Int(logFieldCount, count).Int("total", total).Msg("stored analyzed ideas")

	return count, nil
}

func (s *SQLiteStore) upsertAnalyzed(ctx context.Context, tx *sql.Tx, idea domain.Idea) error {
	analysis, err := analysisJSON(idea.Analysis)
	if err != nil {
		return err
	}

	tags, err := json.Marshal(tagsOf(idea.Analysis))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, upsertAnalyzedSQLite,
		idea.Title, idea.Description, idea.URL, idea.Source,
		s.formatTimestamp(idea.Timestamp), idea.Fingerprint,
		string(analysis), idea.Analysis.Score, string(tags),
		idea.Analysis.Difficulty, idea.Analysis.MarketPotential,
	)
	if err != nil {
		return fmt.Errorf("upsert analyzed idea: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetTop(ctx context.Context, limit, minScore int) ([]domain.Idea, error) {
	rows, err := s.db.QueryContext(ctx, selectTopSQLite, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("query top ideas: %w", err)
	}
	defer rows.Close()

	var ideas []domain.Idea

	for rows.Next() {
		var (
			idea                                      domain.Idea
			description, url, source, timestamp, hash sql.NullString
			analysis                                  sql.NullString
			score                                     sql.NullInt64
		)

		if err := rows.Scan(&idea.Title, &description, &url, &source, &timestamp, &hash, &analysis, &score); err != nil {
			return nil, fmt.Errorf("scan top idea: %w", err)
		}

		idea.Description = description.String
		idea.URL = url.String
		idea.Source = source.String
		idea.Fingerprint = hash.String
		idea.Timestamp = parseStoredTimestamp(timestamp.String)

		a, err := decodeAnalysis([]byte(analysis.String))
		if err != nil {
			s.logger.Warn().Err(err).Str(logFieldTitle, idea.TitlePrefix(titleLogPrefix)).Msg("skipping row with corrupt analysis")

			continue
		}

		if a == nil {
			a = &domain.Analysis{}
		}

		a.Score = int(score.Int64)
		idea.Analysis = a

		ideas = append(ideas, idea)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top ideas: %w", err)
	}

	return ideas, nil
}

func (s *SQLiteStore) CleanupOldRaw(ctx context.Context, days int) (int, error) {
	cutoff := s.now().UTC().Add(-time.Duration(days) * hoursPerDay)

	res, err := s.db.ExecContext(ctx, deleteOldRawSQLite, cutoff.Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete old raw ideas: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	s.logger.Info().Int("days", days).Int64(logFieldCount, n).Msg("removed old raw ideas")

	return int(n), nil
}

// Backup writes a consistent copy of the database to path, replacing any
// existing file.
func (s *SQLiteStore) Backup(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous backup: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("database backup created")

	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}

	return nil
}

func (s *SQLiteStore) formatTimestamp(ts domain.Timestamp) string {
	if ts.IsZero() {
		return s.now().UTC().Format(time.RFC3339Nano)
	}

	return ts.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) logRowError(err error, table string, idea domain.Idea) {
	s.logger.Error().Err(err).
		Str(logFieldTable, table).
		Str(logFieldTitle, idea.TitlePrefix(titleLogPrefix)).
		Str("source", idea.Source).
		Msg("failed to store idea")
}

func parseStoredTimestamp(s string) domain.Timestamp {
	if s == "" {
		return domain.Timestamp{}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return domain.Timestamp{}
	}

	return domain.NewTimestamp(t)
}

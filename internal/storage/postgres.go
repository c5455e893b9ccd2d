package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
	"github.com/lueurxax/idea-aggregator/internal/platform/worker"
	"github.com/lueurxax/idea-aggregator/migrations"
)

const postgresDialect = "postgres"

const (
	insertRawPostgres = `INSERT INTO raw_ideas
	(title, description, url, source, timestamp, hash, raw_content)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (hash) DO NOTHING`

	upsertAnalyzedPostgres = `INSERT INTO analyzed_ideas
	(title, description, url, source, timestamp, hash, analysis, score, tags, difficulty, market_potential)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (hash) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		url = EXCLUDED.url,
		source = EXCLUDED.source,
		timestamp = EXCLUDED.timestamp,
		analysis = EXCLUDED.analysis,
		score = EXCLUDED.score,
		tags = EXCLUDED.tags,
		difficulty = EXCLUDED.difficulty,
		market_potential = EXCLUDED.market_potential`

	selectTopPostgres = `SELECT title, description, url, source, timestamp, hash, analysis, score
	FROM analyzed_ideas
	WHERE score >= $1
	ORDER BY score DESC, created_at ASC
	LIMIT $2`

	deleteOldRawPostgres = `DELETE FROM raw_ideas WHERE created_at < $1`
)

// PoolOptions configures the hosted database connection pool.
type PoolOptions struct {
	MaxConns        int32
	MaxConnIdleTime time.Duration
}

// PostgresStore keeps ideas in the hosted Supabase Postgres database.
// Every operation is an independent round trip through the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
	now    func() time.Time
}

// NewPostgres connects to dsn with a few retries and runs migrations.
func NewPostgres(ctx context.Context, dsn string, opts PoolOptions, logger *zerolog.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}

	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := connectWithRetries(ctx, config)
	if err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool, logger: logger, now: time.Now}

	if err := s.migrate(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	logger.Info().Str(logFieldBackend, BackendPostgres).Msg("database ready")

	return s, nil
}

func connectWithRetries(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	var err error

	for i := 0; i < maxConnectionRetries; i++ {
		var pool *pgxpool.Pool

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}

			pool.Close()
		}

		if i < maxConnectionRetries-1 {
			if waitErr := worker.Wait(ctx, connectionRetrySleep); waitErr != nil {
				return nil, waitErr
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

// migrate runs goose under an advisory lock so concurrent runs do not race.
func (s *PostgresStore) migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	defer func() {
		//nolint:errcheck // lock is released on connection close anyway
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*s.pool.Config().ConnConfig)

	defer func() {
		_ = dbSQL.Close()
	}()

	return migrate(dbSQL, postgresDialect, migrations.DirPostgres, s.logger)
}

func (s *PostgresStore) Backend() string {
	return BackendPostgres
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	return nil
}

func (s *PostgresStore) StoreRaw(ctx context.Context, ideas []domain.Idea) (int, error) {
	count := 0

	for _, idea := range ideas {
		tag, err := s.pool.Exec(ctx, insertRawPostgres,
			idea.Title, idea.Description, idea.URL, idea.Source,
			s.timestamp(idea.Timestamp), idea.Fingerprint, rawContentJSON(idea.RawContent),
		)
		if err != nil {
			if ctx.Err() != nil {
				return count, fmt.Errorf("store raw ideas: %w", ctx.Err())
			}

			s.logRowError(err, tableRaw, idea)

			continue
		}

		if tag.RowsAffected() > 0 {
			count++
		}
	}

	observability.IdeasStored.WithLabelValues(observability.TableRaw).Add(float64(count))
	s.logger.Info().Str(logFieldTable, tableRaw).Int(logFieldCount, count).Int("total", len(ideas)).Msg("stored raw ideas")

	return count, nil
}

func (s *PostgresStore) StoreAnalyzed(ctx context.Context, ideas []domain.Idea) (int, error) {
	count, total := 0, 0

	for _, idea := range ideas {
		if idea.Analysis == nil {
			continue
		}

		total++

		analysis, err := analysisJSON(idea.Analysis)
		if err != nil {
			s.logRowError(err, tableAnalyzed, idea)

			continue
		}

		_, err = s.pool.Exec(ctx, upsertAnalyzedPostgres,
			idea.Title, idea.Description, idea.URL, idea.Source,
			s.timestamp(idea.Timestamp), idea.Fingerprint,
			analysis, idea.Analysis.Score, tagsOf(idea.Analysis),
			idea.Analysis.Difficulty, idea.Analysis.MarketPotential,
		)
		if err != nil {
			if ctx.Err() != nil {
				return count, fmt.Errorf("store analyzed ideas: %w", ctx.Err())
			}

			s.logRowError(err, tableAnalyzed, idea)

			continue
		}

		count++
	}

	observability.IdeasStored.WithLabelValues(observability.TableAnalyzed).Add(float64(count))
	s.logger.Info().Str(logFieldTable, tableAnalyzed).Int(logFieldCount, count).Int("total", total).Msg("stored analyzed ideas")

	return count, nil
}

func (s *PostgresStore) GetTop(ctx context.Context, limit, minScore int) ([]domain.Idea, error) {
	rows, err := s.pool.Query(ctx, selectTopPostgres, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("query top ideas: %w", err)
	}
	defer rows.Close()

	var ideas []domain.Idea

	for rows.Next() {
		var (
			idea                           domain.Idea
			description, url, source, hash pgtype.Text
			timestamp                      pgtype.Timestamptz
			analysis                       []byte
			score                          pgtype.Int4
		)

		if err := rows.Scan(&idea.Title, &description, &url, &source, &timestamp, &hash, &analysis, &score); err != nil {
			return nil, fmt.Errorf("scan top idea: %w", err)
		}

		idea.Description = description.String
		idea.URL = url.String
		idea.Source = source.String
		idea.Fingerprint = hash.String

		if timestamp.Valid {
			idea.Timestamp = domain.NewTimestamp(timestamp.Time)
		}

		a, err := decodeAnalysis(analysis)
		if err != nil {
			s.logger.Warn().Err(err).Str(logFieldTitle, idea.TitlePrefix(titleLogPrefix)).Msg("skipping row with corrupt analysis")

			continue
		}

		if a == nil {
			a = &domain.Analysis{}
		}

		a.Score = int(score.Int32)
		idea.Analysis = a

		ideas = append(ideas, idea)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top ideas: %w", err)
	}

	return ideas, nil
}

func (s *PostgresStore) CleanupOldRaw(ctx context.Context, days int) (int, error) {
	cutoff := s.now().Add(-time.Duration(days) * hoursPerDay)

	tag, err := s.pool.Exec(ctx, deleteOldRawPostgres, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old raw ideas: %w", err)
	}

	n := int(tag.RowsAffected())
	s.logger.Info().Int("days", days).Int(logFieldCount, n).Msg("removed old raw ideas")

	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()

	return nil
}

func (s *PostgresStore) timestamp(ts domain.Timestamp) time.Time {
	if ts.IsZero() {
		return s.now()
	}

	return ts.Time
}

func (s *PostgresStore) logRowError(err error, table string, idea domain.Idea) {
	s.logger.Error().Err(err).
		Str(logFieldTable, table).
		Str(logFieldTitle, idea.TitlePrefix(titleLogPrefix)).
		Str("source", idea.Source).
		Msg("failed to store idea")
}

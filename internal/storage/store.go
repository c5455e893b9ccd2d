// Package storage persists raw and analyzed ideas.
//
// Two backends implement Store:
//   - SQLiteStore: an embedded database file (mattn/go-sqlite3)
//   - PostgresStore: the hosted Supabase Postgres database (pgx)
//
// Open picks one backend from configuration and falls back to SQLite when the
// hosted database cannot be used. Schemas are managed with goose migrations.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
)

// Backend names reported by Store.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "supabase"
)

// Store is the persistence contract shared by every backend.
//
// Per-row failures in StoreRaw and StoreAnalyzed are logged and excluded from
// the returned count; an error is returned only when the whole operation fails.
type Store interface {
	// StoreRaw inserts ideas, ignoring fingerprints already stored.
	StoreRaw(ctx context.Context, ideas []domain.Idea) (int, error)
	// StoreAnalyzed upserts the ideas that carry an analysis, keyed by fingerprint.
	StoreAnalyzed(ctx context.Context, ideas []domain.Idea) (int, error)
	// GetTop returns up to limit analyzed ideas with score >= minScore, highest first.
	GetTop(ctx context.Context, limit, minScore int) ([]domain.Idea, error)
	// CleanupOldRaw deletes raw ideas created more than days ago.
	CleanupOldRaw(ctx context.Context, days int) (int, error)
	// Ping checks the backend connection.
	Ping(ctx context.Context) error
	// Backend names the implementation.
	Backend() string
	// Close releases backend resources.
	Close() error
}

// Backuper is implemented by backends that can snapshot themselves to a file.
type Backuper interface {
	Backup(ctx context.Context, path string) error
}

func analysisJSON(a *domain.Analysis) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	return data, nil
}

func tagsOf(a *domain.Analysis) []string {
	if a.Tags == nil {
		return []string{}
	}

	return a.Tags
}

// rawContentJSON returns raw as-is when it is valid JSON, otherwise as a JSON string.
func rawContentJSON(raw string) []byte {
	if raw != "" && json.Valid([]byte(raw)) {
		return []byte(raw)
	}

	data, _ := json.Marshal(raw) //nolint:errcheck // strings always encode

	return data
}

func decodeAnalysis(data []byte) (*domain.Analysis, error) {
	if len(data) == 0 {
		return nil, nil //nolint:nilnil // absent analysis is not an error
	}

	var a domain.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode stored analysis: %w", err)
	}

	return &a, nil
}

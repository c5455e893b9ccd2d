// Package normalize maps source records into canonical ideas.
package normalize

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
)

// Fingerprint returns the hex MD5 of title followed by description.
func Fingerprint(title, description string) string {
	sum := md5.Sum([]byte(title + description)) //nolint:gosec // see import

	return hex.EncodeToString(sum[:])
}

// WithFingerprint returns idea with its fingerprint computed when missing.
func WithFingerprint(idea domain.Idea) domain.Idea {
	if idea.Fingerprint == "" {
		idea.Fingerprint = Fingerprint(idea.Title, idea.Description)
	}

	return idea
}

// Normalize converts a raw record into an Idea stamped with now.
func Normalize(record domain.RawRecord, source string, now time.Time) domain.Idea {
	return domain.Idea{
		Title:       record.Title,
		Description: record.Description,
		URL:         record.URL,
		Source:      source,
		Timestamp:   domain.NewTimestamp(now),
		Fingerprint: Fingerprint(record.Title, record.Description),
		RawContent:  rawContent(record),
	}
}

// All normalizes every record of one source, preserving order.
func All(records []domain.RawRecord, source string, now time.Time) []domain.Idea {
	ideas := make([]domain.Idea, 0, len(records))

	for _, r := range records {
		ideas = append(ideas, Normalize(r, source, now))
	}

	return ideas
}

func rawContent(record domain.RawRecord) string {
	data, err := json.Marshal(record)
	if err != nil {
		// Extra may hold values json cannot encode; keep the typed fields.
		record.Extra = nil
		data, _ = json.Marshal(record) //nolint:errcheck // typed fields always encode
	}

	return string(data)
}

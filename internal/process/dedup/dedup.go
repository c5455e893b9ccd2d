// Package dedup removes duplicate ideas from one ingestion batch.
//
// Deduplication runs in two strictly sequential stages:
//   - exact: ideas sharing a fingerprint collapse to the first one seen
//   - fuzzy: each survivor is compared against the ideas accepted so far and
//     dropped when the weighted title/description similarity reaches the threshold
//
// First-seen wins in both stages.
package dedup

import (
	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/process/normalize"
)

const (
	// DefaultThreshold is the similarity (0-1) at which two ideas are duplicates.
	DefaultThreshold = 0.85

	titleWeight       = 0.7
	descriptionWeight = 0.3
	descriptionPrefix = 200
	titleLogPrefix    = 30
)

// Log key constants for deduplication.
const (
	logKeySkipped     = "skipped"
	logKeyDuplicateOf = "duplicate_of"
)

// Stats counts what each stage kept.
type Stats struct {
	Input      int
	AfterExact int
	AfterFuzzy int
}

// Deduplicator runs both stages with a fixed threshold.
type Deduplicator struct {
	threshold float64
	logger    *zerolog.Logger
}

// New returns a Deduplicator. A threshold outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64, logger *zerolog.Logger) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Deduplicator{threshold: threshold, logger: logger}
}

// Deduplicate applies the exact stage followed by the fuzzy stage.
func (d *Deduplicator) Deduplicate(ideas []domain.Idea) ([]domain.Idea, Stats) {
	stats := Stats{Input: len(ideas)}

	exact := Exact(ideas)
	stats.AfterExact = len(exact)

	unique := d.Fuzzy(exact)
	stats.AfterFuzzy = len(unique)

	d.logger.Info().
		Int("input", stats.Input).
		Int("after_exact", stats.AfterExact).
		Int("after_fuzzy", stats.AfterFuzzy).
		Msg("deduplication finished")

	return unique, stats
}

// Exact keeps the first idea for each fingerprint. Ideas loaded without a
// fingerprint get one computed from their content.
func Exact(ideas []domain.Idea) []domain.Idea {
	seen := make(map[string]struct{}, len(ideas))
	result := make([]domain.Idea, 0, len(ideas))

	for _, idea := range ideas {
		idea = normalize.WithFingerprint(idea)

		if _, ok := seen[idea.Fingerprint]; ok {
			continue
		}

		seen[idea.Fingerprint] = struct{}{}
		result = append(result, idea)
	}

	return result
}

// Fuzzy keeps each idea unless it is similar to an already accepted one.
// Candidates are never compared against previously rejected ideas.
func (d *Deduplicator) Fuzzy(ideas []domain.Idea) []domain.Idea {
	limit := d.threshold * 100
	result := make([]domain.Idea, 0, len(ideas))

	for _, idea := range ideas {
		duplicate := false

		for _, kept := range result {
			similarity := WeightedSimilarity(idea, kept)
			if similarity >= limit {
				d.logger.Debug().
					Str(logKeySkipped, idea.TitlePrefix(titleLogPrefix)).
					Str(logKeyDuplicateOf, kept.TitlePrefix(titleLogPrefix)).
					Float64("similarity", similarity).
					Msg("skipping near-duplicate idea")

				duplicate = true

				break
			}
		}

		if !duplicate {
			result = append(result, idea)
		}
	}

	return result
}

// WeightedSimilarity scores two ideas on a 0-100 scale from their titles and
// the first 200 characters of their descriptions.
func WeightedSimilarity(a, b domain.Idea) float64 {
	title := float64(Ratio(a.Title, b.Title))
	desc := float64(Ratio(prefix(a.Description, descriptionPrefix), prefix(b.Description, descriptionPrefix)))

	return title*titleWeight + desc*descriptionWeight
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}

// Package filters selects ideas by their analysis score.
package filters

import (
	"github.com/lueurxax/idea-aggregator/internal/core/domain"
)

// DefaultMinScore is the relevance threshold used when none is configured.
const DefaultMinScore = 65

// Relevant returns the analyzed ideas whose score is at least threshold, in
// input order. Unanalyzed ideas are never relevant.
func Relevant(ideas []domain.Idea, threshold int) []domain.Idea {
	out := make([]domain.Idea, 0, len(ideas))

	for _, idea := range ideas {
		if idea.Analysis == nil {
			continue
		}

		if idea.Analysis.Score >= threshold {
			out = append(out, idea)
		}
	}

	return out
}

// Package domain defines the types that flow through the idea pipeline:
// raw source records, normalized ideas and their language-model analysis.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Difficulty levels reported by the analyzer.
const (
	DifficultyLow    = "low"
	DifficultyMedium = "medium"
	DifficultyHigh   = "high"
)

// Market potential levels reported by the analyzer.
const (
	MarketNiche    = "niche"
	MarketModerate = "moderate"
	MarketLarge    = "large"
)

// MaxTags is the number of tags kept on an analysis.
const MaxTags = 3

// RawRecord is what a source adapter returns for a single post or product.
// Fields a source cannot provide stay at their zero value.
type RawRecord struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	Author      string         `json:"author,omitempty"`
	Score       int            `json:"score,omitempty"`
	PublishedAt time.Time      `json:"published_at,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Idea is the canonical shape of a business idea candidate.
type Idea struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	URL               string     `json:"url"`
	Source            string     `json:"source"`
	Timestamp         Timestamp  `json:"timestamp"`
	Fingerprint       string     `json:"fingerprint"`
	RawContent        string     `json:"raw_content"`
	Analysis          *Analysis  `json:"analysis,omitempty"`
	AnalysisTimestamp *Timestamp `json:"analysis_timestamp,omitempty"`
}

// Analyzed reports whether the idea carries an analysis.
func (i Idea) Analyzed() bool {
	return i.Analysis != nil
}

// Score returns the analysis score, or -1 for unanalyzed ideas.
func (i Idea) Score() int {
	if i.Analysis == nil {
		return -1
	}

	return i.Analysis.Score
}

// TitlePrefix returns at most n runes of the title, for log lines.
func (i Idea) TitlePrefix(n int) string {
	r := []rune(i.Title)
	if len(r) <= n {
		return i.Title
	}

	return string(r[:n])
}

// Analysis is the structured evaluation produced by the analyzer.
type Analysis struct {
	Score           int      `json:"score"`
	Tags            []string `json:"tags"`
	Summary         string   `json:"summary"`
	Difficulty      string   `json:"difficulty"`
	MarketPotential string   `json:"market_potential"`
	Insight         string   `json:"insight"`
}

// Timestamp is a time that serializes as ISO-8601 and accepts the loose
// date formats found in older interchange files.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}

	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}

	if s == "" {
		t.Time = time.Time{}

		return nil
	}

	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}

	t.Time = parsed

	return nil
}

package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/core/llm"
)

const (
	minScore = 0
	maxScore = 100
)

// ParseResult is the outcome of turning a completion into an Analysis.
// Exactly one of Analysis and Err is set.
type ParseResult struct {
	Analysis *domain.Analysis
	Err      error
	// Warnings lists fields that were defaulted or out of range.
	Warnings []string
}

// OK reports whether an analysis was recovered.
func (r ParseResult) OK() bool {
	return r.Err == nil && r.Analysis != nil
}

type rawAnalysis struct {
	Score           flexibleNumber `json:"score"`
	Tags            flexibleTags   `json:"tags"`
	Summary         string         `json:"summary"`
	Difficulty      string         `json:"difficulty"`
	MarketPotential string         `json:"market_potential"`
	Insight         string         `json:"insight"`
}

// ParseAnalysis extracts the JSON object between the first '{' and last '}'
// of text and converts it into an Analysis.
func ParseAnalysis(text string) ParseResult {
	obj, err := llm.ExtractJSONObject(text)
	if err != nil {
		return ParseResult{Err: err}
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ParseResult{Err: fmt.Errorf("decode analysis json: %w", err)}
	}

	var warnings []string

	score, w := clampScore(float64(raw.Score))
	warnings = append(warnings, w...)

	tags := normalizeTags(raw.Tags)
	if len(tags) > domain.MaxTags {
		warnings = append(warnings, fmt.Sprintf("%d tags truncated to %d", len(tags), domain.MaxTags))
		tags = tags[:domain.MaxTags]
	}

	difficulty, w := normalizeEnum(raw.Difficulty, domain.DifficultyMedium, "difficulty",
		domain.DifficultyLow, domain.DifficultyMedium, domain.DifficultyHigh)
	warnings = append(warnings, w...)

	market, w := normalizeEnum(raw.MarketPotential, domain.MarketModerate, "market_potential",
		domain.MarketNiche, domain.MarketModerate, domain.MarketLarge)
	warnings = append(warnings, w...)

	return ParseResult{
		Analysis: &domain.Analysis{
			Score:           score,
			Tags:            tags,
			Summary:         strings.TrimSpace(raw.Summary),
			Difficulty:      difficulty,
			MarketPotential: market,
			Insight:         strings.TrimSpace(raw.Insight),
		},
		Warnings: warnings,
	}
}

// clampScore bounds the value to 0-100 before rounding so huge or
// non-finite numbers never overflow int.
func clampScore(f float64) (int, []string) {
	switch {
	case math.IsNaN(f):
		return minScore, []string{"score NaN replaced with 0"}
	case f < minScore:
		return minScore, []string{fmt.Sprintf("score %g clamped", f)}
	case f > maxScore:
		return maxScore, []string{fmt.Sprintf("score %g clamped", f)}
	}

	return int(math.Round(f)), nil
}

// normalizeTags trims, lower-cases and de-duplicates tags, keeping order.
func normalizeTags(tags []string) []string {
	caser := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, t := range tags {
		t = caser.String(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" {
			continue
		}

		if _, ok := seen[t]; ok {
			continue
		}

		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

func normalizeEnum(value, fallback, field string, allowed ...string) (string, []string) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return fallback, []string{field + " missing, defaulted to " + fallback}
	}

	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}

	return v, []string{fmt.Sprintf("%s %q is not one of %v", field, v, allowed)}
}

// flexibleNumber accepts 85, 85.5 and "85".
type flexibleNumber float64

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("score string: %w", err)
		}

		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "/100"))

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("score %q is not a number: %w", s, err)
		}

		*n = flexibleNumber(f)

		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("score: %w", err)
	}

	*n = flexibleNumber(f)

	return nil
}

// flexibleTags accepts ["a","b"] and "a, b".
type flexibleTags []string

func (t *flexibleTags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("tags string: %w", err)
		}

		*t = strings.Split(s, ",")

		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags: %w", err)
	}

	*t = list

	return nil
}

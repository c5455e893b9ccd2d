package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339",
			input: `"2024-03-01T10:20:30Z"`,
			want:  time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC),
		},
		{
			name:  "naive_iso_with_micros",
			input: `"2024-03-01T10:20:30.123456"`,
			want:  time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC),
		},
		{
			name:  "empty",
			input: `""`,
		},
		{
			name:  "null",
			input: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp

			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v, want %v", ts.Time, tt.want)
		})
	}
}

func TestTimestampUnmarshalRejectsNumbers(t *testing.T) {
	var ts Timestamp

	require.Error(t, json.Unmarshal([]byte(`12345`), &ts))
}

func TestIdeaJSONFieldNames(t *testing.T) {
	at := NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	idea := Idea{
		Title:       "t",
		Fingerprint: "abc",
		Timestamp:   at,
		Analysis: &Analysis{
			Score:           90,
			Tags:            []string{"saas"},
			Difficulty:      DifficultyLow,
			MarketPotential: MarketLarge,
		},
		AnalysisTimestamp: &at,
	}

	data, err := json.Marshal(idea)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	assert.Equal(t, "abc", generic["fingerprint"])
	assert.Equal(t, "2024-01-02T03:04:05Z", generic["analysis_timestamp"])

	analysis, ok := generic["analysis"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 90, analysis["score"], 0)
	assert.Equal(t, "large", analysis["market_potential"])
}

func TestUnanalyzedIdeaOmitsAnalysis(t *testing.T) {
	data, err := json.Marshal(Idea{Title: "x"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), `"analysis"`)
	assert.Equal(t, -1, Idea{}.Score())
}

func TestTitlePrefix(t *testing.T) {
	idea := Idea{Title: "Ünïcödé title that is long"}

	assert.Equal(t, "Ünïcö", idea.TitlePrefix(5))
	assert.Equal(t, idea.Title, idea.TitlePrefix(100))
}

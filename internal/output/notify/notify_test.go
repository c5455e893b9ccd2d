package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/platform/htmlutils"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)

	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func scored(title string, score int) domain.Idea {
	return domain.Idea{
		Title: title,
		URL:   "https://example.com/" + title,
		Analysis: &domain.Analysis{
			Score:           score,
			Tags:            []string{"ai", "dev tools"},
			Summary:         "summary of " + title,
			Difficulty:      domain.DifficultyLow,
			MarketPotential: domain.MarketLarge,
			Insight:         "insight",
		},
	}
}

func textOf(c tgbotapi.Chattable) string {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return ""
	}

	return msg.Text
}

func TestNotifyIsolatesFailures(t *testing.T) {
	logger := zerolog.Nop()
	api := &mockSender{}

	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		return !containsTitle(c, "broken")
	})).Return(tgbotapi.Message{}, nil)
	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		return containsTitle(c, "broken")
	})).Return(tgbotapi.Message{}, errors.New("chat not found"))

	n := newNotifier(api, Options{ChatID: 42, Limit: 5}, &logger)

	ideas := []domain.Idea{
		scored("first", 90),
		scored("broken", 85),
		scored("low", 40),
		{Title: "unanalyzed"},
		scored("last", 80),
	}

	sent, err := n.Notify(context.Background(), ideas, DefaultMinScore)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	api.AssertNumberOfCalls(t, "Send", 3)
}

func containsTitle(c tgbotapi.Chattable, title string) bool {
	return strings.Contains(textOf(c), "<b>"+title+"</b>")
}

func TestNotifyDisabled(t *testing.T) {
	logger := zerolog.Nop()

	n := NewTelegram(Options{}, &logger)
	assert.False(t, n.Enabled())
	require.ErrorIs(t, n.disabled, apperrors.ErrNotifierDisabled)
	require.ErrorIs(t, n.disabled, apperrors.ErrMissingCredentials)

	sent, err := n.Notify(context.Background(), []domain.Idea{scored("a", 99)}, 0)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSelect(t *testing.T) {
	ideas := []domain.Idea{scored("a", 70), scored("b", 95), {Title: "raw"}, scored("c", 81), scored("d", 99)}

	tests := []struct {
		name     string
		minScore int
		limit    int
		want     []string
	}{
		{name: "threshold keeps order", minScore: 80, limit: 5, want: []string{"b", "c", "d"}},
		{name: "limit", minScore: 0, limit: 2, want: []string{"a", "b"}},
		{name: "unanalyzed skipped", minScore: 0, limit: 0, want: []string{"a", "b", "c", "d"}},
		{name: "none", minScore: 100, limit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, idea := range Select(ideas, tt.minScore, tt.limit) {
				got = append(got, idea.Title)
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatIdea(t *testing.T) {
	idea := scored("Tools <for> A&B", 88)

	got := FormatIdea(idea)

	assert.Contains(t, got, "<b>Tools &lt;for&gt; A&amp;B</b>")
	assert.Contains(t, got, "📊 <b>Score:</b> 88/100")
	assert.Contains(t, got, "🔍 <b>Difficulty:</b> low")
	assert.Contains(t, got, "💼 <b>Market potential:</b> large")
	assert.Contains(t, got, `<a href="https://example.com/Tools &lt;for&gt; A&amp;B">Original source</a>`)
	assert.Contains(t, got, "#ai #dev_tools")

	empty := FormatIdea(domain.Idea{Analysis: &domain.Analysis{}})
	assert.Contains(t, empty, "Untitled idea")
	assert.Contains(t, empty, "No summary available")
	assert.Contains(t, empty, "<b>Difficulty:</b> N/A")
	assert.NotContains(t, empty, "Original source")
}

func TestFormatIdeaStaysWithinTelegramLimit(t *testing.T) {
	heavy := strings.Repeat("&<", 3000)

	idea := domain.Idea{
		Title: heavy,
		URL:   "https://example.com/" + strings.Repeat("&", 2000),
		Analysis: &domain.Analysis{
			Score:           99,
			Summary:         heavy,
			Insight:         heavy,
			Difficulty:      heavy,
			MarketPotential: heavy,
			Tags:            []string{heavy, heavy, heavy, heavy, heavy},
		},
	}

	got := FormatIdea(idea)

	assert.LessOrEqual(t, htmlutils.UTF16Len(got), 4096)
	assert.Contains(t, got, "📊 <b>Score:</b> 99/100")
	assert.NotContains(t, got, "Original source")
	assert.Equal(t, 3, strings.Count(got, "#"))
}

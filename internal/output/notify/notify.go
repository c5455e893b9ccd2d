// Package notify delivers high-scoring ideas to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/platform/htmlutils"
	"github.com/lueurxax/idea-aggregator/internal/platform/observability"
	"github.com/lueurxax/idea-aggregator/internal/platform/worker"
	"github.com/lueurxax/idea-aggregator/internal/process/filters"
)

const (
	// DefaultMinScore is the lowest score worth a notification.
	DefaultMinScore = 80
	// DefaultLimit caps notifications per call.
	DefaultLimit = 5

	defaultSendInterval = time.Second

	// Field budgets keep a full message under the 4096-unit Telegram limit
	// even when every field is at its cap.
	maxTitleUnits   = 256
	maxSummaryUnits = 1300
	maxInsightUnits = 1300
	maxLevelUnits   = 64
	maxTagUnits     = 64
	maxURLUnits     = 512
	notAvailable    = "N/A"

	logKeyTitle = "title"
)

// Notifier sends ideas to an external channel.
type Notifier interface {
	// Notify sends up to the configured limit of ideas scoring at least
	// minScore and returns how many were delivered.
	Notify(ctx context.Context, ideas []domain.Idea, minScore int) (int, error)
	Enabled() bool
}

// sender is the part of the Bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options configures the Telegram notifier.
type Options struct {
	Token  string
	ChatID int64
	Limit  int
	// SendInterval is the pause between consecutive messages.
	SendInterval time.Duration
}

// TelegramNotifier posts one HTML message per idea. It is disabled when
// credentials are missing or the bot cannot be reached at startup.
type TelegramNotifier struct {
	api      sender
	chatID   int64
	limit    int
	interval time.Duration
	disabled error
	logger   *zerolog.Logger
}

// NewTelegram creates a notifier. Failures never propagate: the returned
// notifier is disabled instead and says why on every Notify call.
func NewTelegram(opts Options, logger *zerolog.Logger) *TelegramNotifier {
	if opts.SendInterval == 0 {
		opts.SendInterval = defaultSendInterval
	}

	n := newNotifier(nil, opts, logger)

	if opts.Token == "" || opts.ChatID == 0 {
		n.disabled = fmt.Errorf("%w: %w: set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID", apperrors.ErrNotifierDisabled, apperrors.ErrMissingCredentials)
		logger.Warn().Err(n.disabled).Msg("telegram notifications off")

		return n
	}

	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		n.disabled = fmt.Errorf("%w: creating bot API: %w", apperrors.ErrNotifierDisabled, err)
		logger.Error().Err(err).Msg("telegram bot initialization failed")

		return n
	}

	n.api = api
	logger.Info().Str("bot", api.Self.UserName).Msg("telegram bot initialized")

	return n
}

func newNotifier(api sender, opts Options, logger *zerolog.Logger) *TelegramNotifier {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	interval := opts.SendInterval
	if interval < 0 {
		interval = 0
	}

	return &TelegramNotifier{
		api:      api,
		chatID:   opts.ChatID,
		limit:    limit,
		interval: interval,
		logger:   logger,
	}
}

func (n *TelegramNotifier) Enabled() bool {
	return n.disabled == nil && n.api != nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, ideas []domain.Idea, minScore int) (int, error) {
	if !n.Enabled() {
		n.logger.Warn().Err(n.disabled).Msg("skipping notifications")

		return 0, nil
	}

	selected := Select(ideas, minScore, n.limit)
	if len(selected) == 0 {
		n.logger.Info().Int("min_score", minScore).Msg("no ideas to notify")

		return 0, nil
	}

	sent := 0

	for i, idea := range selected {
		if i > 0 && n.interval > 0 {
			if err := worker.Wait(ctx, n.interval); err != nil {
				return sent, fmt.Errorf("notify: %w", err)
			}
		}

		if err := n.send(idea); err != nil {
			observability.NotificationsSent.WithLabelValues(observability.StatusFailure).Inc()
			n.logger.Error().Err(err).Str(logKeyTitle, idea.TitlePrefix(50)).Msg("failed to send notification")

			continue
		}

		observability.NotificationsSent.WithLabelValues(observability.StatusSuccess).Inc()
		n.logger.Info().Str(logKeyTitle, idea.TitlePrefix(50)).Msg("notification sent")

		sent++
	}

	n.logger.Info().Int("sent", sent).Int("selected", len(selected)).Msg("notifications finished")

	return sent, nil
}

func (n *TelegramNotifier) send(idea domain.Idea) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatIdea(idea))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", n.chatID, err)
	}

	return nil
}

// Select keeps analyzed ideas scoring at least minScore, in input order,
// and returns at most limit of them.
func Select(ideas []domain.Idea, minScore, limit int) []domain.Idea {
	out := filters.Relevant(ideas, minScore)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// FormatIdea renders an analyzed idea as a Telegram HTML message.
func FormatIdea(idea domain.Idea) string {
	a := idea.Analysis
	if a == nil {
		a = &domain.Analysis{}
	}

	var sb strings.Builder

	sb.WriteString("🚀 <b>New promising idea!</b>\n\n")
	sb.WriteString("<b>" + escape(orDefault(idea.Title, "Untitled idea"), maxTitleUnits) + "</b>\n\n")
	sb.WriteString(escape(orDefault(a.Summary, "No summary available"), maxSummaryUnits) + "\n\n")
	sb.WriteString("📊 <b>Score:</b> " + strconv.Itoa(a.Score) + "/100\n")
	sb.WriteString("🔍 <b>Difficulty:</b> " + escape(orDefault(a.Difficulty, notAvailable), maxLevelUnits) + "\n")
	sb.WriteString("💼 <b>Market potential:</b> " + escape(orDefault(a.MarketPotential, notAvailable), maxLevelUnits) + "\n\n")
	sb.WriteString("💡 <b>Insight:</b> " + escape(orDefault(a.Insight, "No insight available"), maxInsightUnits))

	if link := html.EscapeString(idea.URL); link != "" && htmlutils.UTF16Len(link) <= maxURLUnits {
		sb.WriteString("\n\n🔗 <a href=\"" + link + "\">Original source</a>")
	}

	if tags := formatTags(a.Tags); tags != "" {
		sb.WriteString("\n\n" + tags)
	}

	return sb.String()
}

func formatTags(tags []string) string {
	if len(tags) > domain.MaxTags {
		tags = tags[:domain.MaxTags]
	}

	parts := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "_")
		if tag == "" {
			continue
		}

		parts = append(parts, "#"+escape(tag, maxTagUnits))
	}

	return strings.Join(parts, " ")
}

func escape(s string, maxUnits int) string {
	return htmlutils.EscapeTruncateUTF16(s, maxUnits)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}

	return s
}

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/platform/htmlutils"
)

// ScoreFunc extracts a popularity score from a feed item. ok is false when
// the feed does not carry one.
type ScoreFunc func(item *gofeed.Item) (score int, ok bool)

// FeedConfig describes one feed-backed source.
type FeedConfig struct {
	Name     string
	URLs     []string
	MinScore int
	Score    ScoreFunc
}

// FeedSource reads every configured feed URL and maps items to raw records.
// A URL that keeps failing is skipped; Run fails only when every URL fails.
type FeedSource struct {
	cfg     FeedConfig
	fetcher *fetcher
	parser  *gofeed.Parser
	logger  *zerolog.Logger
}

// NewFeedSource creates a FeedSource.
func NewFeedSource(cfg FeedConfig, client *http.Client, userAgent string, logger *zerolog.Logger) *FeedSource {
	return &FeedSource{
		cfg:     cfg,
		fetcher: newFetcher(client, userAgent, logger),
		parser:  gofeed.NewParser(),
		logger:  logger,
	}
}

func (s *FeedSource) Name() string {
	return s.cfg.Name
}

func (s *FeedSource) Run(ctx context.Context) ([]domain.RawRecord, error) {
	var (
		records []domain.RawRecord
		failed  int
		lastErr error
	)

	for _, feedURL := range s.cfg.URLs {
		items, err := s.readFeed(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return records, fmt.Errorf("%s: %w", s.cfg.Name, ctx.Err())
			}

			failed++
			lastErr = err

			s.logger.Error().Err(err).Str(logKeySource, s.cfg.Name).Str(logKeyURL, feedURL).Msg("feed unavailable")

			continue
		}

		records = append(records, items...)
	}

	if len(s.cfg.URLs) > 0 && failed == len(s.cfg.URLs) {
		return nil, fmt.Errorf("%s: %w: %w", s.cfg.Name, errAllFailed, lastErr)
	}

	s.logger.Info().Str(logKeySource, s.cfg.Name).Int("records", len(records)).Msg("feed source finished")

	return records, nil
}

func (s *FeedSource) readFeed(ctx context.Context, feedURL string) ([]domain.RawRecord, error) {
	body, err := s.fetcher.get(ctx, feedURL, acceptFeed)
	if err != nil {
		return nil, err
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(feed.Items))

	for _, item := range feed.Items {
		record, keep := s.toRecord(feed, item)
		if keep {
			records = append(records, record)
		}
	}

	return records, nil
}

func (s *FeedSource) toRecord(feed *gofeed.Feed, item *gofeed.Item) (domain.RawRecord, bool) {
	record := domain.RawRecord{
		Title:       htmlutils.CollapseSpace(item.Title),
		Description: itemDescription(item),
		URL:         item.Link,
		PublishedAt: itemPublished(item),
		Extra: map[string]any{
			"feed": feed.Title,
		},
	}

	if record.Title == "" {
		return record, false
	}

	if item.Author != nil {
		record.Author = item.Author.Name
	}

	if item.GUID != "" {
		record.Extra["guid"] = item.GUID
	}

	if len(item.Categories) > 0 {
		record.Extra["categories"] = item.Categories
	}

	if s.cfg.Score != nil {
		if score, ok := s.cfg.Score(item); ok {
			record.Score = score
			if score < s.cfg.MinScore {
				return record, false
			}
		}
	}

	return record, true
}

func itemDescription(item *gofeed.Item) string {
	text := item.Description
	if text == "" {
		text = item.Content
	}

	text = htmlutils.StripHTMLTags(text)
	if len([]rune(text)) > maxDescriptionLen {
		text = string([]rune(text)[:maxDescriptionLen])
	}

	return text
}

func itemPublished(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	case item.Published != "":
		if t, err := dateparse.ParseIn(item.Published, time.UTC); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

var hnPointsRe = regexp.MustCompile(`Points:\s*(\d+)`)

// HackerNewsPoints reads the "Points: N" line hnrss.org puts in descriptions.
func HackerNewsPoints(item *gofeed.Item) (int, bool) {
	m := hnPointsRe.FindStringSubmatch(item.Description)
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}

	return n, true
}

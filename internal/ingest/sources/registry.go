package sources

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/platform/config"
)

// Built-in source names.
const (
	NameReddit      = "Reddit"
	NameHackerNews  = "HackerNews"
	NameProductHunt = "ProductHunt"
	NameHuntScreens = "HuntScreens"
	NameAquaire     = "Aquaire"
)

// Names lists the built-in sources in the order Build returns them.
var Names = []string{NameReddit, NameHackerNews, NameProductHunt, NameHuntScreens, NameAquaire}

// Build returns the enabled built-in sources. Unknown names listed in
// SOURCES_DISABLED are reported and otherwise ignored.
func Build(cfg *config.Config, client *http.Client, logger *zerolog.Logger) []Source {
	for _, disabled := range cfg.SourcesDisabled {
		if !known(disabled) {
			logger.Warn().Err(fmt.Errorf("%w: %q", apperrors.ErrUnknownSource, disabled)).Msg("ignoring SOURCES_DISABLED entry")
		}
	}

	ua := cfg.HTTPUserAgent
	all := []Source{
		NewFeedSource(FeedConfig{Name: NameReddit, URLs: RedditFeeds(cfg)}, client, ua, logger),
		NewFeedSource(FeedConfig{
			Name:     NameHackerNews,
			URLs:     HackerNewsFeeds(cfg),
			MinScore: cfg.HNMinPoints,
			Score:    HackerNewsPoints,
		}, client, ua, logger),
		NewFeedSource(FeedConfig{Name: NameProductHunt, URLs: []string{cfg.ProductHuntFeedURL}}, client, ua, logger),
		NewPageSource(PageConfig{
			Name:         NameHuntScreens,
			BaseURL:      cfg.HuntScreensURL,
			Pages:        cfg.HuntScreensPages,
			Interval:     cfg.ScraperRateLimit,
			FetchDetails: true,
		}, client, ua, logger),
		NewPageSource(PageConfig{
			Name:     NameAquaire,
			BaseURL:  cfg.AquaireURL,
			Pages:    cfg.AquairePages,
			Interval: cfg.ScraperRateLimit,
		}, client, ua, logger),
	}

	enabled := make([]Source, 0, len(all))

	for _, src := range all {
		if !cfg.SourceEnabled(src.Name()) {
			logger.Info().Str(logKeySource, src.Name()).Msg("source disabled")

			continue
		}

		enabled = append(enabled, src)
	}

	return enabled
}

// RedditFeeds returns the top-posts feed URL of every configured subreddit.
func RedditFeeds(cfg *config.Config) []string {
	base := strings.TrimRight(cfg.RedditBaseURL, "/")
	feeds := make([]string, 0, len(cfg.RedditSubreddits))

	for _, sub := range cfg.RedditSubreddits {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}

		q := url.Values{}
		if cfg.RedditTimeFilter != "" {
			q.Set("t", cfg.RedditTimeFilter)
		}

		if cfg.RedditLimit > 0 {
			q.Set("limit", strconv.Itoa(cfg.RedditLimit))
		}

		feeds = append(feeds, fmt.Sprintf("%s/r/%s/top/.rss?%s", base, url.PathEscape(sub), q.Encode()))
	}

	return feeds
}

// HackerNewsFeeds returns one hnrss.org feed URL per configured section.
func HackerNewsFeeds(cfg *config.Config) []string {
	base := strings.TrimRight(cfg.HNBaseURL, "/")
	feeds := make([]string, 0, len(cfg.HNSections))

	for _, section := range cfg.HNSections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		feed := base + "/" + url.PathEscape(section)
		if cfg.HNMinPoints > 0 {
			feed += "?points=" + strconv.Itoa(cfg.HNMinPoints)
		}

		feeds = append(feeds, feed)
	}

	return feeds
}

func known(name string) bool {
	for _, n := range Names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return true
		}
	}

	return false
}

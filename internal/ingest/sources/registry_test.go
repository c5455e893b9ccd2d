package sources

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/lueurxax/idea-aggregator/internal/platform/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RedditBaseURL:      "https://www.reddit.com/",
		RedditSubreddits:   []string{"SaaS", " ", "SomeoneShouldMake"},
		RedditTimeFilter:   "week",
		RedditLimit:        50,
		HNBaseURL:          "https://hnrss.org",
		HNSections:         []string{"newest", "show"},
		HNMinPoints:        5,
		ProductHuntFeedURL: "https://www.producthunt.com/feed",
		HuntScreensURL:     "https://huntscreens.com/en/products",
		HuntScreensPages:   2,
		AquaireURL:         "https://aquaire.com/ideas",
		AquairePages:       2,
	}
}

func TestBuild(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name     string
		disabled []string
		want     []string
	}{
		{name: "all enabled", want: Names},
		{name: "case insensitive disable", disabled: []string{"reddit", "AQUAIRE", "nope"}, want: []string{NameHackerNews, NameProductHunt, NameHuntScreens}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.SourcesDisabled = tt.disabled

			var names []string
			for _, s := range Build(cfg, http.DefaultClient, &logger) {
				names = append(names, s.Name())
			}

			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFeedURLs(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, []string{
		"https://www.reddit.com/r/SaaS/top/.rss?limit=50&t=week",
		"https://www.reddit.com/r/SomeoneShouldMake/top/.rss?limit=50&t=week",
	}, RedditFeeds(cfg))

	assert.Equal(t, []string{
		"https://hnrss.org/newest?points=5",
		"https://hnrss.org/show?points=5",
	}, HackerNewsFeeds(cfg))
}

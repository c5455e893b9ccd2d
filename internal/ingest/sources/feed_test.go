package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Show HN</title>
  <item>
    <title>Show HN: Invoice tool for freelancers</title>
    <link>https://example.com/invoice</link>
    <description><![CDATA[<p>Simple invoicing.</p><p>Points: 42</p>]]></description>
    <pubDate>Mon, 06 May 2024 10:00:00 +0000</pubDate>
    <guid>hn-1</guid>
  </item>
  <item>
    <title>Show HN: Barely noticed</title>
    <link>https://example.com/quiet</link>
    <description><![CDATA[<p>Points: 1</p>]]></description>
  </item>
  <item>
    <title>   </title>
    <link>https://example.com/untitled</link>
  </item>
</channel>
</rss>`

func newTestFeedSource(cfg FeedConfig) *FeedSource {
	logger := zerolog.Nop()
	s := NewFeedSource(cfg, http.DefaultClient, "test-agent", &logger)
	s.fetcher.backoff = time.Millisecond

	return s
}

func TestFeedSourceRun(t *testing.T) {
	var userAgent atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get(headerUserAgent))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	s := newTestFeedSource(FeedConfig{Name: "HackerNews", URLs: []string{srv.URL}, MinScore: 5, Score: HackerNewsPoints})

	records, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Show HN: Invoice tool for freelancers", r.Title)
	assert.Equal(t, "Simple invoicing. Points: 42", r.Description)
	assert.Equal(t, "https://example.com/invoice", r.URL)
	assert.Equal(t, 42, r.Score)
	assert.True(t, r.PublishedAt.Equal(time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "hn-1", r.Extra["guid"])
	assert.Equal(t, "Show HN", r.Extra["feed"])
	assert.Equal(t, "test-agent", userAgent.Load())
}

func TestFeedSourceRetries(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	s := newTestFeedSource(FeedConfig{Name: "Reddit", URLs: []string{srv.URL}})

	records, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFeedSourceFailures(t *testing.T) {
	var calls atomic.Int32

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testRSS))
	}))
	defer good.Close()

	t.Run("one url failing is skipped", func(t *testing.T) {
		s := newTestFeedSource(FeedConfig{Name: "Reddit", URLs: []string{bad.URL, good.URL}})

		records, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("every url failing is an error", func(t *testing.T) {
		calls.Store(0)

		s := newTestFeedSource(FeedConfig{Name: "Reddit", URLs: []string{bad.URL}})

		records, err := s.Run(context.Background())
		require.ErrorIs(t, err, errAllFailed)
		assert.Empty(t, records)
		assert.Equal(t, int32(defaultAttempts), calls.Load())
	})

	t.Run("malformed feed", func(t *testing.T) {
		junk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not a feed"))
		}))
		defer junk.Close()

		s := newTestFeedSource(FeedConfig{Name: "ProductHunt", URLs: []string{junk.URL}})

		_, err := s.Run(context.Background())
		require.Error(t, err)
	})
}

func TestHackerNewsPoints(t *testing.T) {
	tests := []struct {
		name   string
		desc   string
		want   int
		wantOK bool
	}{
		{name: "present", desc: "<p>Points: 17</p>", want: 17, wantOK: true},
		{name: "absent", desc: "<p>Comments: 3</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HackerNewsPoints(&gofeed.Item{Description: tt.desc})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

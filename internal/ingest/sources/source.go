// Package sources fetches business-idea candidates from external sites.
//
// Two adapter shapes cover every built-in site:
//   - FeedSource reads RSS/Atom feeds (Reddit, Hacker News, Product Hunt)
//   - PageSource scrapes HTML listing pages (HuntScreens, Aquaire)
//
// Build assembles the enabled adapters from configuration.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/platform/worker"
)

// Source produces raw records from one external site.
type Source interface {
	Name() string
	Run(ctx context.Context) ([]domain.RawRecord, error)
}

const (
	defaultAttempts   = 3
	defaultBackoff    = time.Second
	maxBodySize       = 10 * 1024 * 1024 // 10MB
	maxDescriptionLen = 2000
	headerUserAgent   = "User-Agent"
	headerAccept      = "Accept"
	logKeySource      = "source"
	logKeyURL         = "url"
	errFmtStatus      = "%w: status %d"
	acceptFeed        = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"
	acceptHTML        = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

var (
	errHTTPStatus = errors.New("unexpected HTTP status")
	errAllFailed  = errors.New("every request failed")
)

// fetcher performs GET requests with a fixed retry policy.
type fetcher struct {
	client    *http.Client
	userAgent string
	attempts  int
	backoff   time.Duration
	logger    *zerolog.Logger
}

func newFetcher(client *http.Client, userAgent string, logger *zerolog.Logger) *fetcher {
	return &fetcher{
		client:    client,
		userAgent: userAgent,
		attempts:  defaultAttempts,
		backoff:   defaultBackoff,
		logger:    logger,
	}
}

// get fetches rawURL, retrying failed attempts with exponential backoff
// (backoff, 2*backoff, ...). Context cancellation stops retrying.
func (f *fetcher) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	var lastErr error

	delay := f.backoff

	for attempt := 1; attempt <= f.attempts; attempt++ {
		body, err := f.getOnce(ctx, rawURL, accept)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if ctx.Err() != nil || attempt == f.attempts {
			break
		}

		f.logger.Debug().Err(err).Str(logKeyURL, rawURL).Int("attempt", attempt).Dur("retry_in", delay).Msg("fetch failed, retrying")

		if err := worker.Wait(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		delay *= 2
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", rawURL, f.attempts, lastErr)
}

func (f *fetcher) getOnce(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(headerUserAgent, f.userAgent)
	req.Header.Set(headerAccept, accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		return nil, fmt.Errorf(errFmtStatus, errHTTPStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	"github.com/lueurxax/idea-aggregator/internal/platform/htmlutils"
)

const (
	pageParam        = "page"
	cardClassMarker  = "card"
	maxExcerptLength = 500
)

// PageConfig describes one HTML listing source.
type PageConfig struct {
	Name    string
	BaseURL string
	Pages   int
	// Interval is the minimum gap between requests to the site.
	Interval time.Duration
	// FetchDetails enables readability extraction of the detail page for
	// cards that have no description of their own.
	FetchDetails bool
}

// PageSource scrapes listing pages and extracts one record per card. A card
// is an <article> element or any element whose class mentions "card".
type PageSource struct {
	cfg     PageConfig
	fetcher *fetcher
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewPageSource creates a PageSource.
func NewPageSource(cfg PageConfig, client *http.Client, userAgent string, logger *zerolog.Logger) *PageSource {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &PageSource{
		cfg:     cfg,
		fetcher: newFetcher(client, userAgent, logger),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (s *PageSource) Name() string {
	return s.cfg.Name
}

func (s *PageSource) Run(ctx context.Context) ([]domain.RawRecord, error) {
	var (
		records []domain.RawRecord
		failed  int
		lastErr error
	)

	for page := 1; page <= s.cfg.Pages; page++ {
		pageURL, err := listingURL(s.cfg.BaseURL, page)
		if err != nil {
			return nil, err
		}

		cards, err := s.scrapePage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return records, fmt.Errorf("%s: %w", s.cfg.Name, ctx.Err())
			}

			failed++
			lastErr = err

			s.logger.Error().Err(err).Str(logKeySource, s.cfg.Name).Str(logKeyURL, pageURL).Msg("listing page unavailable")

			continue
		}

		records = append(records, cards...)
	}

	if s.cfg.Pages > 0 && failed == s.cfg.Pages {
		return nil, fmt.Errorf("%s: %w: %w", s.cfg.Name, errAllFailed, lastErr)
	}

	s.logger.Info().Str(logKeySource, s.cfg.Name).Int("records", len(records)).Msg("page source finished")

	return records, nil
}

func listingURL(base string, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	q := u.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *PageSource) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	return s.fetcher.get(ctx, rawURL, acceptHTML)
}

func (s *PageSource) scrapePage(ctx context.Context, pageURL string) ([]domain.RawRecord, error) {
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	var records []domain.RawRecord

	for _, card := range findCards(doc) {
		record, ok := cardRecord(card, base)
		if !ok {
			continue
		}

		if record.Description == "" && record.URL != "" && s.cfg.FetchDetails {
			record.Description = s.detailText(ctx, record.URL)
		}

		record.Extra = map[string]any{"page_url": pageURL}
		records = append(records, record)
	}

	return records, nil
}

// detailText returns the readable excerpt of a detail page, or "" when it
// cannot be fetched or parsed.
func (s *PageSource) detailText(ctx context.Context, rawURL string) string {
	body, err := s.fetch(ctx, rawURL)
	if err != nil {
		s.logger.Debug().Err(err).Str(logKeyURL, rawURL).Msg("detail page unavailable")

		return ""
	}

	u, _ := url.Parse(rawURL) //nolint:errcheck // already parsed when the card was built

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		s.logger.Debug().Err(err).Str(logKeyURL, rawURL).Msg("readability extraction failed")

		return ""
	}

	text := article.Excerpt
	if text == "" {
		text = article.TextContent
	}

	return htmlutils.TruncateUTF16(htmlutils.CollapseSpace(text), maxExcerptLength)
}

// findCards returns card elements in document order without descending
// into a card once found.
func findCards(doc *html.Node) []*html.Node {
	var cards []*html.Node

	var walk func(n *html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isCard(n) {
			cards = append(cards, n)

			return
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return cards
}

func isCard(n *html.Node) bool {
	if n.DataAtom == atom.Article {
		return true
	}

	return strings.Contains(strings.ToLower(attr(n, "class")), cardClassMarker)
}

func cardRecord(card *html.Node, base *url.URL) (domain.RawRecord, bool) {
	var record domain.RawRecord

	if h := findFirst(card, isHeading); h != nil {
		record.Title = nodeText(h)
	}

	if record.Title == "" {
		return record, false
	}

	if p := findFirst(card, func(n *html.Node) bool { return n.DataAtom == atom.P }); p != nil {
		record.Description = nodeText(p)
	}

	if a := findFirst(card, func(n *html.Node) bool { return n.DataAtom == atom.A && attr(n, "href") != "" }); a != nil {
		if ref, err := url.Parse(attr(a, "href")); err == nil {
			record.URL = base.ResolveReference(ref).String()
		}
	}

	return record, true
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	default:
		return false
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}

		if found := findFirst(c, match); found != nil {
			return found
		}
	}

	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)

	return htmlutils.CollapseSpace(sb.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}

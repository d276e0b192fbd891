package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/normalize"
	"github.com/credence-dev/credence/internal/util"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultMaxBytes  = 5 << 20
	defaultUserAgent = "Credence/1.0 (+https://github.com/credence-dev/credence)"
	maxRedirects     = 3

	// Robots crawl delays are capped so a hostile robots.txt cannot stall
	// an analysis indefinitely
	maxCrawlDelay = 10 * time.Second
)

// ErrRobotsDisallowed marks URLs that robots.txt forbids fetching
var ErrRobotsDisallowed = errors.New("fetch blocked by robots.txt")

// robotsPolicy decides whether a URL may be fetched and how long to wait
type robotsPolicy interface {
	CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error)
}

// domainLimiter throttles outbound requests per domain
type domainLimiter interface {
	WaitWithDelay(ctx context.Context, rawURL string, delay time.Duration) error
}

// Fetcher acquires article content over HTTP and reduces it to readable
// text. Robots checking and per-domain throttling are optional; a nil
// policy or limiter skips that step.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     robotsPolicy
	limiter    domainLimiter
	logger     zerolog.Logger
}

// NewFetcher creates a fetcher with the given configuration
func NewFetcher(cfg model.FetchConfig, robots robotsPolicy, limiter domainLimiter, logger zerolog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
		robots:    robots,
		limiter:   limiter,
		logger:    logger.With().Str("component", "fetch").Logger(),
	}
}

// Parse fetches the URL and extracts readable article content. The returned
// fingerprint derives from the canonical input URL, not the post-redirect
// one, so cache lookups made before the fetch agree with the parse.
func (f *Fetcher) Parse(ctx context.Context, rawURL string) (*model.ParsedContent, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	crawlDelay := time.Duration(0)
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
		}
		if delay > maxCrawlDelay {
			delay = maxCrawlDelay
		}
		crawlDelay = delay
	}

	if f.limiter != nil {
		if err := f.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	html, finalURL, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return f.extract(rawURL, finalURL, html)
}

// fetch retrieves the raw HTML with the body size bounded
func (f *Fetcher) fetch(ctx context.Context, rawURL string) (string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}

	return string(body), resp.Request.URL, nil
}

// extract reduces fetched HTML to ParsedContent via readability, falling
// back to a plain visible-text walk when extraction finds nothing.
func (f *Fetcher) extract(rawURL string, finalURL *url.URL, html string) (*model.ParsedContent, error) {
	var (
		title       string
		author      string
		source      string
		bodyText    string
		publishedAt *time.Time
	)

	article, err := readability.FromReader(strings.NewReader(html), finalURL)
	if err == nil {
		title = strings.TrimSpace(article.Title)
		author = strings.TrimSpace(article.Byline)
		source = strings.TrimSpace(article.SiteName)
		bodyText = normalize.NormalizeText(article.TextContent)
		publishedAt = article.PublishedTime
	} else {
		f.logger.Debug().Err(err).Str("url", rawURL).Msg("readability extraction failed, using visible text")
	}

	if bodyText == "" {
		bodyText = normalize.NormalizeText(normalize.VisibleText(html))
	}
	if bodyText == "" {
		return nil, fmt.Errorf("no readable content at %s", rawURL)
	}

	if title == "" {
		title = titleFromURL(finalURL)
	}
	if source == "" {
		source = finalURL.Host
	}

	return &model.ParsedContent{
		Fingerprint: normalize.FingerprintURL(rawURL),
		OriginalURL: rawURL,
		Title:       title,
		Author:      author,
		PublishedAt: publishedAt,
		Source:      source,
		BodyText:    bodyText,
		ContentType: normalize.ClassifyContentType(title + "\n" + bodyText),
	}, nil
}

// titleFromURL de-slugifies the last path segment as a display title
func titleFromURL(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return u.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	// Strip a file extension if present
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")
	last = strings.TrimSpace(last)
	if last == "" {
		return u.Host
	}
	return last
}

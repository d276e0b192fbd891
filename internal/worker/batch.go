package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/credence-dev/credence/internal/pipeline"
)

// URLAnalyzer runs one full credibility analysis for a URL.
type URLAnalyzer interface {
	AnalyzeURL(ctx context.Context, rawURL, sessionID string) (*pipeline.Outcome, error)
}

// BatchResult pairs one input URL with its analysis outcome.
type BatchResult struct {
	URL     string
	Outcome *pipeline.Outcome
	Err     error
}

// BatchProcessor analyzes many URLs concurrently over a worker pool.
type BatchProcessor struct {
	analyzer    URLAnalyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(analyzer URLAnalyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessURLs analyzes the URLs concurrently and returns one result per
// input, in input order.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*BatchResult {
	if len(urls) == 0 {
		return []*BatchResult{}
	}

	results := make([]*BatchResult, len(urls))

	pool := NewPool(b.concurrency, len(urls))
	pool.Start()

	for i, rawURL := range urls {
		_ = pool.Submit(ctx, TaskFunc(func(taskCtx context.Context) {
			outcome, err := b.analyzer.AnalyzeURL(taskCtx, rawURL, "")
			results[i] = &BatchResult{URL: rawURL, Outcome: outcome, Err: err}
		}))
	}
	pool.Drain()

	// Slots left empty by a canceled submit still report their URL
	for i, rawURL := range urls {
		if results[i] == nil {
			results[i] = &BatchResult{URL: rawURL, Err: ctx.Err()}
		}
	}

	return results
}

// ProcessFile reads URLs from a file and analyzes them concurrently.
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ProcessFeed fetches an RSS or Atom feed and analyzes its items.
func (b *BatchProcessor) ProcessFeed(ctx context.Context, feedURL string, limit int) ([]*BatchResult, error) {
	urls, err := FeedItemURLs(ctx, feedURL, limit)
	if err != nil {
		return nil, err
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate URLs
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}

// FeedItemURLs fetches an RSS or Atom feed and returns its item links,
// deduplicated in feed order. A non-positive limit keeps every item.
func FeedItemURLs(ctx context.Context, feedURL string, limit int) ([]string, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var urls []string
	seen := make(map[string]bool)

	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		urls = append(urls, link)
		if limit > 0 && len(urls) >= limit {
			break
		}
	}

	return urls, nil
}

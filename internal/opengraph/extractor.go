// Package opengraph finds a representative image for an article page from
// its preview metadata.
package opengraph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/crawler"
)

// Gate applies robots and crawl-delay policy before a request. Acquire
// reports false without waiting when robots.txt forbids the URL.
type Gate interface {
	Acquire(ctx context.Context, rawURL string) bool
	WaitIfNeeded(ctx context.Context, rawURL string) time.Duration
}

// Extractor fetches article pages politely and reads their image metadata.
type Extractor struct {
	gate     Gate
	fetcher  crawler.Fetcher
	headless crawler.Fetcher
	detector crawler.HeadlessDetector
	logger   *zap.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithHeadless enables a rendered second attempt for pages the detector
// flags as client-side applications.
func WithHeadless(f crawler.Fetcher, d crawler.HeadlessDetector) Option {
	return func(e *Extractor) {
		e.headless = f
		e.detector = d
	}
}

// New builds an Extractor.
func New(gate Gate, fetcher crawler.Fetcher, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		gate:    gate,
		fetcher: fetcher,
		logger:  logger.Named("opengraph"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BrowserHeaders are sent with every page request.
func BrowserHeaders() http.Header {
	return http.Header{
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.5"},
	}
}

// FindImage never returns an error; failures come back as a Candidate.
func (e *Extractor) FindImage(ctx context.Context, pageURL string) citation.Candidate {
	if pageURL == "" {
		return citation.Miss("entry has no link")
	}
	logger := e.logger.With(zap.String("url", pageURL))
	if !e.gate.Acquire(ctx, pageURL) {
		logger.Info("Blocked by robots.txt")
		return citation.Denied("robots.txt disallows " + pageURL)
	}

	resp, err := e.fetch(ctx, e.fetcher, pageURL)
	if err != nil {
		logger.Warn("Error fetching page", zap.Error(err))
		return citation.Failed(err)
	}
	match, found, err := Extract(resp.Body, baseURL(resp, pageURL))
	if err != nil {
		logger.Warn("Error parsing page", zap.Error(err))
		return citation.Failed(err)
	}
	if found {
		logger.Debug("image found", zap.String("strategy", match.Strategy), zap.String("image", match.URL))
		return citation.Hit(match.URL)
	}

	if e.headless != nil && e.detector != nil && e.detector.ShouldPromote(resp) {
		return e.findRendered(ctx, logger, pageURL)
	}
	return citation.Miss("no image metadata on page")
}

func (e *Extractor) findRendered(ctx context.Context, logger *zap.Logger, pageURL string) citation.Candidate {
	logger.Info("Promoting page to headless render")
	e.gate.WaitIfNeeded(ctx, pageURL)
	resp, err := e.fetch(ctx, e.headless, pageURL)
	if err != nil {
		logger.Warn("Headless render failed", zap.Error(err))
		return citation.Failed(err)
	}
	match, found, err := Extract(resp.Body, baseURL(resp, pageURL))
	if err != nil {
		return citation.Failed(err)
	}
	if !found {
		return citation.Miss("no image metadata on rendered page")
	}
	logger.Debug("image found after render", zap.String("strategy", match.Strategy))
	return citation.Hit(match.URL)
}

func (e *Extractor) fetch(ctx context.Context, f crawler.Fetcher, pageURL string) (crawler.FetchResponse, error) {
	resp, err := f.Fetch(ctx, crawler.FetchRequest{
		URL:     pageURL,
		Kind:    crawler.KindPage,
		Headers: BrowserHeaders(),
	})
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}
	return resp, nil
}

// baseURL prefers the post-redirect URL so relative paths resolve against
// the publisher page rather than a resolver such as doi.org.
func baseURL(resp crawler.FetchResponse, requested string) string {
	if resp.URL != "" {
		return resp.URL
	}
	return requested
}

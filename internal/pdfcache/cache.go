// Package pdfcache downloads preprint PDFs once and keeps them on disk.
package pdfcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/crawler"
	"github.com/JakeFAU/pubimage/internal/metrics"
	"github.com/JakeFAU/pubimage/internal/storage/local"
)

// DefaultBaseURL is the canonical arXiv PDF endpoint.
const DefaultBaseURL = "https://arxiv.org/pdf/"

// ErrDownload wraps every failure to obtain a PDF.
var ErrDownload = errors.New("pdf download failed")

// Gate spaces requests per domain.
type Gate interface {
	WaitIfNeeded(ctx context.Context, rawURL string) time.Duration
}

// Cache stores PDFs as <escaped id>.pdf. A file that exists is a hit and is
// never re-validated.
type Cache struct {
	store   *local.Store
	fetcher crawler.Fetcher
	gate    Gate
	baseURL string
	logger  *zap.Logger

	locks sync.Map
}

// New builds a Cache. An empty baseURL means DefaultBaseURL.
func New(store *local.Store, fetcher crawler.Fetcher, gate Gate, baseURL string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Cache{
		store:   store,
		fetcher: fetcher,
		gate:    gate,
		baseURL: baseURL,
		logger:  logger.Named("pdfcache"),
	}
}

// URL is where the PDF for arxivID is downloaded from.
func (c *Cache) URL(arxivID string) string {
	return c.baseURL + arxivID + ".pdf"
}

// FileName is the flat cache name for arxivID.
func FileName(arxivID string) string {
	return citation.EscapeID(arxivID) + ".pdf"
}

// Fetch returns the local path of the PDF, downloading it on a miss.
// Callers for the same id share one download.
func (c *Cache) Fetch(ctx context.Context, arxivID string) (string, error) {
	if strings.TrimSpace(arxivID) == "" {
		return "", fmt.Errorf("%w: empty arxiv id", ErrDownload)
	}
	name := FileName(arxivID)
	logger := c.logger.With(zap.String("arxiv_id", arxivID))

	if path, ok := c.store.Exists(name); ok {
		metrics.ObserveCacheLookup(metrics.CachePDF, true)
		logger.Debug("Using cached PDF", zap.String("path", path))
		return path, nil
	}

	unlock := c.lock(name)
	defer unlock()
	if path, ok := c.store.Exists(name); ok {
		metrics.ObserveCacheLookup(metrics.CachePDF, true)
		return path, nil
	}
	metrics.ObserveCacheLookup(metrics.CachePDF, false)

	source := c.URL(arxivID)
	logger.Info("Downloading arXiv PDF", zap.String("url", source))
	c.gate.WaitIfNeeded(ctx, source)
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: source, Kind: crawler.KindPDF})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDownload, arxivID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: status %d", ErrDownload, arxivID, resp.StatusCode)
	}
	pages, err := Validate(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDownload, arxivID, err)
	}

	path, err := c.store.Put(name, bytes.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDownload, arxivID, err)
	}
	logger.Debug("cached PDF", zap.String("path", path), zap.Int("pages", pages), zap.Int("bytes", len(resp.Body)))
	return path, nil
}

// Validate checks that data parses as a PDF with at least one page.
func Validate(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages < 1 {
		return 0, errors.New("pdf has no pages")
	}
	return pages, nil
}

func (c *Cache) lock(name string) func() {
	mu, _ := c.locks.LoadOrStore(name, &sync.Mutex{})
	m, _ := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Package inspire expands author seeds into citation entries using the
// INSPIRE-HEP literature API.
package inspire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/pubimage/internal/querycache"
)

const (
	// DefaultEndpoint is the literature search endpoint.
	DefaultEndpoint = "https://inspirehep.net/api/literature"

	// DefaultRate is requests per second.
	DefaultRate = 2.0

	// DefaultTTL is how long a query result is reused.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultMaxAuthors drops large-collaboration papers.
	DefaultMaxAuthors = 20

	// pageSize is the largest page the API serves.
	pageSize = 1000

	queryFields = "control_number,dois,arxiv_eprints,titles,authors,publication_info,document_type,inspire_categories"

	maxResponseBytes = 64 << 20
)

var (
	// ErrMissingBAI is returned for a seed without a bai field.
	ErrMissingBAI = errors.New(`no "bai" key in inspire seed entry`)

	// ErrQuery wraps failed literature requests.
	ErrQuery = errors.New("INSPIRE-HEP API request failed")
)

// Client is a rate-limited literature client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	endpoint   string
	userAgent  string
	cache      *querycache.Cache
	ttl        time.Duration
	maxAuthors int
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoint sets the literature endpoint (for testing).
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithRate sets the request rate in requests per second.
func WithRate(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithCache memoizes query results for ttl. A non-positive ttl means DefaultTTL.
func WithCache(cache *querycache.Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxAuthors sets the author-count cutoff.
func WithMaxAuthors(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAuthors = n
		}
	}
}

// NewClient creates a client with the defaults above.
func NewClient(logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), 1),
		endpoint:   DefaultEndpoint,
		ttl:        DefaultTTL,
		maxAuthors: DefaultMaxAuthors,
		logger:     logger.Named("inspire"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query returns every record authored by bai, most recent first.
func (c *Client) Query(ctx context.Context, bai string) ([]Hit, error) {
	if c.cache == nil {
		return c.search(ctx, bai)
	}
	return querycache.Memoize(ctx, c.cache, querycache.Key("inspire", bai), c.ttl,
		func(ctx context.Context) ([]Hit, error) {
			return c.search(ctx, bai)
		})
}

func (c *Client) search(ctx context.Context, bai string) ([]Hit, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", "a "+bai)
	params.Set("size", fmt.Sprint(pageSize))
	params.Set("sort", "mostrecent")
	params.Set("fields", queryFields)
	reqURL := c.endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrQuery, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrQuery, resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrQuery, err)
	}
	c.logger.Info("Queried literature",
		zap.String("bai", bai),
		zap.Int("hits", len(decoded.Hits.Hits)),
		zap.Int("total", decoded.Hits.Total),
		zap.Duration("duration", time.Since(start)),
	)
	return decoded.Hits.Hits, nil
}

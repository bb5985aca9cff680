// Package robots caches robots.txt rules per domain and answers allow and
// crawl-delay questions against them.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/metrics"
)

// DefaultCrawlDelay applies when robots.txt declares no Crawl-delay.
const DefaultCrawlDelay = 2 * time.Second

const maxRobotsBytes = 1 << 20

// Config controls robots fetching.
type Config struct {
	UserAgent    string
	DefaultDelay time.Duration
	Timeout      time.Duration
	Client       *http.Client
}

// Policy is the parsed robots.txt for one domain. A nil Rules means allow-all.
type Policy struct {
	Rules *robotstxt.RobotsData
}

type policyEntry struct {
	once   sync.Once
	policy Policy
}

// Store lazily loads robots.txt once per scheme+host and keeps it for the
// life of the process.
type Store struct {
	client       *http.Client
	userAgent    string
	defaultDelay time.Duration
	cache        sync.Map
	logger       *zap.Logger
}

// New builds a Store.
func New(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	delay := cfg.DefaultDelay
	if delay < 0 {
		delay = DefaultCrawlDelay
	}
	return &Store{
		client:       client,
		userAgent:    cfg.UserAgent,
		defaultDelay: delay,
		logger:       logger.Named("robots"),
	}
}

// DomainKey returns the lowercase scheme://host a URL is policed under.
func DomainKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), nil
}

// Allowed reports whether agent may fetch rawURL. It is true when no rules
// could be loaded. Unparseable URLs are refused.
func (s *Store) Allowed(ctx context.Context, rawURL, agent string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	policy := s.Policy(ctx, rawURL)
	if policy.Rules == nil {
		return true
	}
	return policy.Rules.TestAgent(requestPath(parsed), s.agent(agent))
}

// CrawlDelay returns the robots-declared delay for agent, or the default.
func (s *Store) CrawlDelay(ctx context.Context, rawURL, agent string) time.Duration {
	policy := s.Policy(ctx, rawURL)
	if policy.Rules == nil {
		return s.defaultDelay
	}
	group := policy.Rules.FindGroup(s.agent(agent))
	if group == nil || group.CrawlDelay <= 0 {
		return s.defaultDelay
	}
	return group.CrawlDelay
}

// Policy returns the cached rules for rawURL's domain, loading them on first use.
func (s *Store) Policy(ctx context.Context, rawURL string) Policy {
	key, err := DomainKey(rawURL)
	if err != nil {
		return Policy{}
	}
	value, _ := s.cache.LoadOrStore(key, &policyEntry{})
	entry, ok := value.(*policyEntry)
	if !ok {
		return Policy{}
	}
	entry.once.Do(func() {
		rules, err := s.load(ctx, key)
		if err != nil {
			s.logger.Warn("robots fetch failed; allowing access", zap.String("domain", key), zap.Error(err))
			return
		}
		entry.policy = Policy{Rules: rules}
	})
	return entry.policy
}

func (s *Store) load(ctx context.Context, domain string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, domain+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.ObserveFetch("robots", 0)
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	metrics.ObserveFetch("robots", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("robots status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

func (s *Store) agent(agent string) string {
	if agent != "" {
		return agent
	}
	if s.userAgent != "" {
		return s.userAgent
	}
	return "*"
}

func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

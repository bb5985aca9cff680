// Package ratelimit spaces requests to the same domain by its crawl delay.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/pubimage/internal/clock/system"
	"github.com/JakeFAU/pubimage/internal/metrics"
	"github.com/JakeFAU/pubimage/internal/policy/robots"
)

// Policies answers robots questions for a URL.
type Policies interface {
	Allowed(ctx context.Context, rawURL, agent string) bool
	CrawlDelay(ctx context.Context, rawURL, agent string) time.Duration
}

// Clock reads and waits on time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Limiter keeps one token bucket per domain, refilled once per crawl delay.
// Callers for the same domain are serialized through the whole reserve, sleep
// and record sequence; callers for different domains never wait on each other.
type Limiter struct {
	policies  Policies
	userAgent string
	clock     Clock
	logger    *zap.Logger

	mu      sync.Mutex
	domains map[string]*domainLedger
}

type domainLedger struct {
	mu     sync.Mutex
	bucket *rate.Limiter
	delay  time.Duration
	last   time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock swaps the time source and sleeper.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// New creates a new Limiter.
func New(policies Policies, userAgent string, logger *zap.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		policies:  policies,
		userAgent: userAgent,
		clock:     system.New(),
		logger:    logger.Named("ratelimit"),
		domains:   make(map[string]*domainLedger),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allowed reports whether robots.txt lets this limiter's agent fetch rawURL.
func (l *Limiter) Allowed(ctx context.Context, rawURL string) bool {
	return l.policies.Allowed(ctx, rawURL, l.userAgent)
}

// Acquire returns false without waiting when robots.txt forbids rawURL.
// Otherwise it waits out the domain's crawl delay, records the request and
// returns true.
func (l *Limiter) Acquire(ctx context.Context, rawURL string) bool {
	if !l.Allowed(ctx, rawURL) {
		return false
	}
	l.WaitIfNeeded(ctx, rawURL)
	return true
}

// WaitIfNeeded reserves the domain's next slot, sleeps until it opens, then
// records now as the last request. The sleep ignores ctx;
// ctx only bounds the robots.txt lookup. It returns how long it slept.
func (l *Limiter) WaitIfNeeded(ctx context.Context, rawURL string) time.Duration {
	key, err := robots.DomainKey(rawURL)
	if err != nil {
		l.logger.Debug("rate limit skipped for unkeyable url", zap.String("url", rawURL), zap.Error(err))
		return 0
	}
	delay := l.policies.CrawlDelay(ctx, rawURL, l.userAgent)
	ledger := l.ledger(key)

	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	now := l.clock.Now()
	ledger.setDelay(now, delay)
	waited := ceilMicro(ledger.bucket.ReserveN(now, 1).DelayFrom(now))
	if waited > 0 {
		l.logger.Debug("waiting for crawl delay",
			zap.String("domain", key),
			zap.Duration("delay", delay),
			zap.Duration("wait", waited),
		)
		l.clock.Sleep(waited)
		metrics.ObserveRateLimitDelay(rawURL, waited)
	}
	ledger.last = l.clock.Now()
	return waited
}

func (d *domainLedger) setDelay(now time.Time, delay time.Duration) {
	if d.bucket != nil && delay == d.delay {
		return
	}
	if d.bucket != nil && delay > 0 && d.delay > 0 {
		d.bucket.SetLimitAt(now, rate.Every(delay))
		d.delay = delay
		return
	}
	// An unlimited bucket hands out slots without spending tokens, so a
	// fresh bucket is charged for the last request instead.
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	d.bucket = rate.NewLimiter(limit, 1)
	d.delay = delay
	if !d.last.IsZero() {
		d.bucket.ReserveN(d.last, 1)
	}
}

// ceilMicro rounds d up to a whole microsecond. The bucket's float token math
// can come back a nanosecond short of the crawl delay.
func ceilMicro(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if rem := d % time.Microsecond; rem != 0 {
		d += time.Microsecond - rem
	}
	return d
}

// LastRequest returns the recorded last-request time for rawURL's domain.
func (l *Limiter) LastRequest(rawURL string) (time.Time, bool) {
	key, err := robots.DomainKey(rawURL)
	if err != nil {
		return time.Time{}, false
	}
	l.mu.Lock()
	ledger, ok := l.domains[key]
	l.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.last, !ledger.last.IsZero()
}

func (l *Limiter) ledger(key string) *domainLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	ledger, ok := l.domains[key]
	if !ok {
		ledger = &domainLedger{}
		l.domains[key] = ledger
	}
	return ledger
}

// Package querycache memoizes expensive lookups, such as literature database
// queries, for a fixed time-to-live measured from when a value was stored.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/metrics"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown query cache backend")

// Record is a stored value and the time it was computed.
type Record struct {
	Value   []byte    `json:"value"`
	Created time.Time `json:"created"`
}

// Backend persists records by key.
type Backend interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	// Set stores rec. ttl is a hint for backends that expire keys natively.
	Set(ctx context.Context, key string, rec Record, ttl time.Duration) error
	Close() error
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is a get-or-compute front for a Backend.
type Cache struct {
	backend Backend
	now     func() time.Time
	logger  *zap.Logger
}

// New wraps backend.
func New(backend Backend, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		backend: backend,
		now:     time.Now,
		logger:  logger.Named("querycache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a stable key: namespace, a colon, and a digest of parts.
func Key(namespace string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

// Memoize returns the stored value for key if it is younger than ttl.
// Otherwise it runs compute, stores the result with a fresh timestamp and
// returns it. Backend read and write failures are logged and degrade to
// calling compute; compute errors are returned and nothing is stored.
func (c *Cache) Memoize(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	logger := c.logger.With(zap.String("key", key))

	rec, ok, err := c.backend.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("query cache read failed", zap.Error(err))
	case ok && c.now().Sub(rec.Created) <= ttl:
		metrics.ObserveCacheLookup(metrics.CacheQuery, true)
		logger.Debug("query cache hit", zap.Time("created", rec.Created))
		return rec.Value, nil
	case ok:
		logger.Debug("query cache entry expired", zap.Time("created", rec.Created))
	}
	metrics.ObserveCacheLookup(metrics.CacheQuery, false)

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Set(ctx, key, Record{Value: value, Created: c.now()}, ttl); err != nil {
		logger.Warn("query cache write failed", zap.Error(err))
	}
	return value, nil
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Memoize is the typed form of Cache.Memoize; values are stored as JSON.
func Memoize[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.Memoize(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cached value: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached value for %s: %w", key, err)
	}
	return out, nil
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Path      string
	RedisAddr string
}

// Open builds the configured backend: "sqlite" (default), "redis" or "memory".
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Cache, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		backend, err = OpenSQLite(ctx, cfg.Path)
	case "redis":
		backend, err = OpenRedis(ctx, cfg.RedisAddr)
	case "memory":
		backend = NewMemory()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, logger), nil
}

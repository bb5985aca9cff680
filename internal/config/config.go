// Package config loads and validates pubimage configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/pubimage/internal/logo"
)

// DefaultUserAgent identifies the bot on every outbound request.
const DefaultUserAgent = "PublicationImageBot/1.0 (static site generator; +https://github.com/JakeFAU/pubimage)"

// Config captures all knobs loaded via Viper.
type Config struct {
	Images     ImagesConfig     `mapstructure:"images"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Workers    int              `mapstructure:"workers"`
	QueryCache QueryCacheConfig `mapstructure:"query_cache"`
	Inspire    InspireConfig    `mapstructure:"inspire"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ImagesConfig controls where PDFs and thumbnails live and how entries are resolved.
type ImagesConfig struct {
	CacheDir             string        `mapstructure:"cache_dir"`
	OutputDir            string        `mapstructure:"output_dir"`
	Width                int           `mapstructure:"width"`
	DefaultDelay         time.Duration `mapstructure:"default_delay"`
	PreferLogoPublishers []string      `mapstructure:"prefer_logo_publishers"`
	LogoTable            []logo.Entry  `mapstructure:"logo_table"`
	PDFBaseURL           string        `mapstructure:"pdf_base_url"`
}

// PDFDir is where downloaded preprints are cached.
func (c ImagesConfig) PDFDir() string {
	return filepath.Join(c.CacheDir, "pdfs")
}

// HTTPConfig configures outbound fetches.
type HTTPConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	MaxPageBytes   int           `mapstructure:"max_page_bytes"`
	MaxPDFBytes    int           `mapstructure:"max_pdf_bytes"`
}

// HeadlessConfig configures the optional headless re-render.
type HeadlessConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxParallel        int           `mapstructure:"max_parallel"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
	ExecPath           string        `mapstructure:"exec_path"`
}

// QueryCacheConfig selects the memoization backend.
type QueryCacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// InspireConfig configures the literature client.
type InspireConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	RPS        float64 `mapstructure:"rps"`
	MaxAuthors int     `mapstructure:"max_authors"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the /metrics listener. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PUBIMAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.QueryCache.Path == "" {
		cfg.QueryCache.Path = filepath.Join(cfg.Images.CacheDir, "query.db")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("images.cache_dir", "_cite/.cache")
	v.SetDefault("images.output_dir", "images/publications")
	v.SetDefault("images.width", 300)
	v.SetDefault("images.default_delay", 2*time.Second)
	v.SetDefault("images.prefer_logo_publishers", []string{"the european physical journal c"})
	v.SetDefault("images.pdf_base_url", "https://arxiv.org/pdf/")
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.connect_timeout", 5*time.Second)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.max_page_bytes", 10<<20)
	v.SetDefault("http.max_pdf_bytes", 64<<20)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", 25*time.Second)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("workers", 4)
	v.SetDefault("query_cache.backend", "sqlite")
	v.SetDefault("query_cache.path", "")
	v.SetDefault("query_cache.redis_addr", "")
	v.SetDefault("query_cache.ttl", 7*24*time.Hour)
	v.SetDefault("inspire.endpoint", "https://inspirehep.net/api/literature")
	v.SetDefault("inspire.rps", 2.0)
	v.SetDefault("inspire.max_authors", 20)
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Images.Width <= 0 {
		return fmt.Errorf("images.width must be > 0")
	}
	if c.Images.DefaultDelay < 0 {
		return fmt.Errorf("images.default_delay must be >= 0")
	}
	if strings.TrimSpace(c.Images.CacheDir) == "" {
		return fmt.Errorf("images.cache_dir must be set")
	}
	if strings.TrimSpace(c.Images.OutputDir) == "" {
		return fmt.Errorf("images.output_dir must be set")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.HTTP.ConnectTimeout <= 0 || c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http.connect_timeout and http.read_timeout must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch strings.ToLower(c.QueryCache.Backend) {
	case "sqlite", "memory":
	case "redis":
		if c.QueryCache.RedisAddr == "" {
			return fmt.Errorf("query_cache.redis_addr must be set when backend is redis")
		}
	default:
		return fmt.Errorf("query_cache.backend %q is not one of sqlite, redis, memory", c.QueryCache.Backend)
	}
	return nil
}

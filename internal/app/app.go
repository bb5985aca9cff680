// Package app builds the long-lived services a pipeline run needs and
// exposes the run-level operations the CLI calls.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/config"
	"github.com/JakeFAU/pubimage/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/pubimage/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/pubimage/internal/fetcher/headless"
	"github.com/JakeFAU/pubimage/internal/headless/detector"
	"github.com/JakeFAU/pubimage/internal/id/uuid"
	"github.com/JakeFAU/pubimage/internal/inspire"
	"github.com/JakeFAU/pubimage/internal/logging"
	"github.com/JakeFAU/pubimage/internal/logo"
	"github.com/JakeFAU/pubimage/internal/opengraph"
	"github.com/JakeFAU/pubimage/internal/pdfcache"
	"github.com/JakeFAU/pubimage/internal/policy/ratelimit"
	"github.com/JakeFAU/pubimage/internal/policy/robots"
	"github.com/JakeFAU/pubimage/internal/progress"
	"github.com/JakeFAU/pubimage/internal/querycache"
	"github.com/JakeFAU/pubimage/internal/resolver"
	"github.com/JakeFAU/pubimage/internal/storage/local"
	"github.com/JakeFAU/pubimage/internal/thumbnail"
)

// Option customizes Build.
type Option func(*options)

type options struct {
	renderer thumbnail.Renderer
}

// WithRenderer replaces the MuPDF renderer.
func WithRenderer(r thumbnail.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	ids    *uuid.Generator

	limiter    *ratelimit.Limiter
	headless   *headlessfetcher.Fetcher
	thumbnails *thumbnail.Generator
	resolver   *resolver.Resolver
	dispatch   *dispatcher.Dispatcher

	literatureOnce sync.Once
	literature     *inspire.Client
	queryCache     *querycache.Cache
	literatureErr  error

	current atomic.Pointer[progress.Tracker]
}

// Build creates the application's dependencies. Nothing touches the network
// until a run starts.
func Build(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
	}
	a.logger.Info("building application dependencies",
		zap.String("cache_dir", cfg.Images.CacheDir),
		zap.String("output_dir", cfg.Images.OutputDir),
		zap.Int("workers", cfg.Workers),
		zap.Bool("headless", cfg.Headless.Enabled),
	)

	policies := robots.New(robots.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		DefaultDelay: cfg.Images.DefaultDelay,
		Timeout:      cfg.HTTP.ConnectTimeout + cfg.HTTP.ReadTimeout,
	}, logger)
	a.limiter = ratelimit.New(policies, cfg.HTTP.UserAgent, logger)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		MaxPageBytes:   cfg.HTTP.MaxPageBytes,
		MaxPDFBytes:    cfg.HTTP.MaxPDFBytes,
	}, logger)

	var extractorOpts []opengraph.Option
	if cfg.Headless.Enabled {
		hf, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			ExecPath:          cfg.Headless.ExecPath,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = hf
		extractorOpts = append(extractorOpts,
			opengraph.WithHeadless(hf, detector.NewHeuristic(cfg.Headless.PromotionThreshold)))
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	}
	pages := opengraph.New(a.limiter, fetcher, logger, extractorOpts...)

	pdfStore, err := local.New(local.Config{BaseDir: cfg.Images.PDFDir()})
	if err != nil {
		return nil, fmt.Errorf("pdf cache init failed: %w", err)
	}
	outStore, err := local.New(local.Config{BaseDir: cfg.Images.OutputDir})
	if err != nil {
		return nil, fmt.Errorf("thumbnail output init failed: %w", err)
	}
	pdfs := pdfcache.New(pdfStore, fetcher, a.limiter, cfg.Images.PDFBaseURL, logger)

	renderer := o.renderer
	if renderer == nil {
		renderer = thumbnail.NewFitzRenderer(logger)
	}
	a.thumbnails = thumbnail.NewGenerator(pdfs, renderer, outStore, cfg.Images.Width, logger)

	a.resolver = resolver.New(pages, logo.New(cfg.Images.LogoTable), a.thumbnails,
		cfg.Images.PreferLogoPublishers, logger)
	a.dispatch = dispatcher.New(cfg.Workers, logger)
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Snapshot reports the current or most recent run.
func (a *App) Snapshot() progress.Snapshot {
	if t := a.current.Load(); t != nil {
		return t.Snapshot()
	}
	return progress.Snapshot{Command: "idle"}
}

func (a *App) startRun(command string, total int) (*progress.Tracker, *zap.Logger) {
	runID := a.ids.MustNewID()
	tracker := progress.NewTracker(runID, command, total, time.Now)
	a.current.Store(tracker)
	logger := logging.ForRun(a.logger, runID)
	logger.Info("run started", zap.String("command", command), zap.Int("entries", total))
	return tracker, logger
}

func finishRun(logger *zap.Logger, tracker *progress.Tracker) progress.Snapshot {
	tracker.Finish()
	s := tracker.Snapshot()
	logger.Info("run finished",
		zap.String("command", s.Command),
		zap.Int("entries", s.Total),
		zap.Int("done", s.Done),
		zap.Int("images", s.Images),
		zap.Int("failed", s.Failed),
		zap.Duration("duration", s.Finished.Sub(s.Started)),
	)
	return s
}

// ResolveImages resolves images for entries concurrently. The output has the
// same length and order as the input; an entry whose resolution failed is
// returned as it was given.
func (a *App) ResolveImages(ctx context.Context, entries []citation.Entry) ([]citation.Entry, progress.Snapshot) {
	tracker, logger := a.startRun("resolve", len(entries))

	results := dispatcher.Run(ctx, a.dispatch, entries,
		func(ctx context.Context, entry citation.Entry) ([]citation.Entry, error) {
			out, err := a.resolver.Resolve(ctx, &entry)
			if err != nil {
				logger.Error("entry skipped", zap.String("entry_id", entry.ID), zap.Error(err))
			}
			return out, err
		})

	resolved := make([]citation.Entry, len(entries))
	for i, r := range results {
		switch {
		case r.Err == nil && len(r.Items) > 0:
			resolved[i] = r.Items[0]
		default:
			resolved[i] = entries[i]
		}
		tracker.Record(resolved[i].Image != "" && entries[i].Image == "", r.Err != nil)
	}
	return resolved, finishRun(logger, tracker)
}

// ExpandSeeds turns literature seeds into citation sources. Seeds that fail
// are logged and contribute nothing.
func (a *App) ExpandSeeds(ctx context.Context, seeds []citation.Entry) ([]citation.Entry, progress.Snapshot, error) {
	client, err := a.literatureClient(ctx)
	if err != nil {
		return nil, progress.Snapshot{}, err
	}
	tracker, logger := a.startRun("inspire", len(seeds))

	results := dispatcher.Run(ctx, a.dispatch, seeds, client.Sources)
	for _, r := range results {
		if r.Err != nil {
			logger.Error("seed failed", zap.Int("index", r.Index), zap.Error(r.Err))
		}
		tracker.Record(false, r.Err != nil)
	}
	sources, _ := dispatcher.Collect(results)
	return sources, finishRun(logger, tracker), nil
}

// Thumbnail generates a single preprint thumbnail.
func (a *App) Thumbnail(ctx context.Context, arxivID string) (string, error) {
	path, err := a.thumbnails.Generate(ctx, arxivID)
	if err != nil {
		return "", fmt.Errorf("thumbnail %s: %w", arxivID, err)
	}
	return path, nil
}

func (a *App) literatureClient(ctx context.Context) (*inspire.Client, error) {
	a.literatureOnce.Do(func() {
		cache, err := querycache.Open(ctx, querycache.Config{
			Backend:   a.cfg.QueryCache.Backend,
			Path:      a.cfg.QueryCache.Path,
			RedisAddr: a.cfg.QueryCache.RedisAddr,
		}, a.logger)
		if err != nil {
			a.literatureErr = fmt.Errorf("query cache init failed: %w", err)
			return
		}
		a.queryCache = cache
		a.literature = inspire.NewClient(a.logger,
			inspire.WithEndpoint(a.cfg.Inspire.Endpoint),
			inspire.WithRate(a.cfg.Inspire.RPS),
			inspire.WithMaxAuthors(a.cfg.Inspire.MaxAuthors),
			inspire.WithUserAgent(a.cfg.HTTP.UserAgent),
			inspire.WithCache(cache, a.cfg.QueryCache.TTL),
		)
	})
	return a.literature, a.literatureErr
}

// Close releases the browser and the query cache.
func (a *App) Close() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.queryCache != nil {
		if err := a.queryCache.Close(); err != nil {
			a.logger.Warn("query cache close failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}

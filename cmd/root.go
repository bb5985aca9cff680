// Package cmd defines the pubimage CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/api"
	"github.com/JakeFAU/pubimage/internal/app"
	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/config"
	"github.com/JakeFAU/pubimage/internal/logging"
	"github.com/JakeFAU/pubimage/internal/progress"
)

// App defines the application interface that commands use. Tests swap in a fake.
type App interface {
	ResolveImages(ctx context.Context, entries []citation.Entry) ([]citation.Entry, progress.Snapshot)
	ExpandSeeds(ctx context.Context, seeds []citation.Entry) ([]citation.Entry, progress.Snapshot, error)
	Thumbnail(ctx context.Context, arxivID string) (string, error)
	Snapshot() progress.Snapshot
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory.
var newApp = func(cfg config.Config, logger *zap.Logger) (App, error) {
	return app.Build(cfg, logger)
}

type appKeyType struct{}

type session struct {
	app         App
	logger      *zap.Logger
	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

type rootOptions struct {
	configFile  string
	metricsAddr string
	session     *session
}

// finish releases the session. Cobra skips PersistentPostRun when RunE fails,
// so run calls it again after every execution.
func (o *rootOptions) finish() {
	if o.session != nil {
		o.session.close()
		o.session = nil
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pubimage",
		Short: "Finds a preview image for every entry in a publication list.",
		Long: `pubimage resolves a representative image for each citation in a
publication list. It tries the publisher page's metadata, a table of journal
logos and finally a rendered thumbnail of the arXiv preprint, while honoring
robots.txt and per-domain crawl delays.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.start(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			opts.finish()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while running")

	cmd.AddCommand(newResolveCmd(), newInspireCmd(), newThumbnailCmd())
	return cmd
}

func (o *rootOptions) start(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}

	appInstance, err := newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	s := &session{app: appInstance, logger: logger}

	if cfg.Metrics.Addr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		s.stopMetrics = cancel
		s.metricsDone = make(chan struct{})
		server := api.NewServer(appInstance, logger)
		go func() {
			defer close(s.metricsDone)
			if err := server.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("operator endpoint failed", zap.Error(err))
			}
		}()
	}

	o.session = s
	cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, s))
	return nil
}

func (s *session) close() {
	if s.stopMetrics != nil {
		s.stopMetrics()
		<-s.metricsDone
	}
	s.app.Close()
	if err := logging.Sync(s.logger); err != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	s, ok := ctx.Value(appKeyType{}).(*session)
	if !ok || s == nil || s.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return s.app, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	opts.finish()
	return err
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

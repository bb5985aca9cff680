// Package resolver picks an image for a citation entry by walking a fixed
// fallback chain: publisher page metadata, journal logo, arXiv thumbnail.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/metrics"
)

// DefaultPreferLogo lists publishers whose page images are known to be poor.
var DefaultPreferLogo = []string{"the european physical journal c"}

// ImageFinder reads a preview image from an article page.
type ImageFinder interface {
	FindImage(ctx context.Context, pageURL string) citation.Candidate
}

// LogoLookup maps a publisher to a logo path.
type LogoLookup interface {
	Lookup(publisher string) (string, bool)
}

// ThumbnailSource renders an arXiv preprint's first page.
type ThumbnailSource interface {
	Generate(ctx context.Context, arxivID string) (string, error)
}

// Resolver holds no per-entry state and is safe for concurrent use.
type Resolver struct {
	pages      ImageFinder
	logos      LogoLookup
	thumbnails ThumbnailSource
	preferLogo map[string]struct{}
	logger     *zap.Logger
}

// New builds a Resolver. A nil preferLogo means DefaultPreferLogo.
func New(pages ImageFinder, logos LogoLookup, thumbnails ThumbnailSource, preferLogo []string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if preferLogo == nil {
		preferLogo = DefaultPreferLogo
	}
	prefer := make(map[string]struct{}, len(preferLogo))
	for _, p := range preferLogo {
		if key := strings.ToLower(strings.TrimSpace(p)); key != "" {
			prefer[key] = struct{}{}
		}
	}
	return &Resolver{
		pages:      pages,
		logos:      logos,
		thumbnails: thumbnails,
		preferLogo: prefer,
		logger:     logger.Named("resolver"),
	}
}

// Resolve sets entry.Image when some tier produces one and returns a copy of
// the entry as a single-element list. Tier failures are logged, never returned; the
// only error is a missing id, in which case the entry is left untouched.
func (r *Resolver) Resolve(ctx context.Context, entry *citation.Entry) ([]citation.Entry, error) {
	logger := r.logger.With(zap.String("entry_id", entry.ID))

	if entry.SkipImage {
		logger.Info("Skipping image (skip_image: true)")
		metrics.ObserveTier(metrics.TierManual, metrics.OutcomeSkipped)
		return []citation.Entry{*entry}, nil
	}
	if entry.Image != "" {
		logger.Info("Using manual image", zap.String("image", entry.Image))
		metrics.ObserveTier(metrics.TierManual, metrics.OutcomeHit)
		return []citation.Entry{*entry}, nil
	}

	id, err := citation.ParseIdentifier(entry.ID)
	if err != nil {
		return []citation.Entry{*entry}, fmt.Errorf("resolve image: %w", err)
	}

	switch id.Scheme {
	case citation.SchemeDOI:
		r.resolveArticle(ctx, logger, entry)
	case citation.SchemeArxiv:
		r.resolvePreprint(ctx, logger, entry, id.Value)
	default:
		logger.Debug("no image strategy for identifier")
	}
	return []citation.Entry{*entry}, nil
}

func (r *Resolver) resolveArticle(ctx context.Context, logger *zap.Logger, entry *citation.Entry) {
	if _, ok := r.preferLogo[strings.ToLower(strings.TrimSpace(entry.Publisher))]; ok {
		if c := r.logoTier(entry.Publisher); c.Found {
			r.record(logger, metrics.TierLogo, c)
			r.accept(logger, entry, metrics.TierLogo, c)
			return
		}
	}

	if c := r.pageTier(ctx, entry.Link); r.record(logger, metrics.TierOpenGraph, c) {
		r.accept(logger, entry, metrics.TierOpenGraph, c)
		return
	}

	if c := r.logoTier(entry.Publisher); r.record(logger, metrics.TierLogo, c) {
		r.accept(logger, entry, metrics.TierLogo, c)
		return
	}

	arxivID, ok := citation.ArxivIDFromButtons(entry.Buttons)
	if !ok {
		logger.Info("No image found")
		return
	}
	if c := r.thumbnailTier(ctx, arxivID); r.record(logger.With(zap.String("arxiv_id", arxivID)), metrics.TierThumbnail, c) {
		r.accept(logger, entry, metrics.TierThumbnail, c)
		return
	}
	logger.Info("No image found")
}

func (r *Resolver) resolvePreprint(ctx context.Context, logger *zap.Logger, entry *citation.Entry, arxivID string) {
	logger = logger.With(zap.String("arxiv_id", arxivID))
	if c := r.thumbnailTier(ctx, arxivID); r.record(logger, metrics.TierThumbnail, c) {
		r.accept(logger, entry, metrics.TierThumbnail, c)
	}
}

func (r *Resolver) pageTier(ctx context.Context, link string) (c citation.Candidate) {
	if link == "" || r.pages == nil {
		return citation.Miss("no article link")
	}
	defer func() {
		if p := recover(); p != nil {
			c = citation.Failed(fmt.Errorf("page image lookup panicked: %v", p))
		}
	}()
	return r.pages.FindImage(ctx, link)
}

func (r *Resolver) logoTier(publisher string) citation.Candidate {
	if publisher == "" || r.logos == nil {
		return citation.Miss("no publisher")
	}
	if path, ok := r.logos.Lookup(publisher); ok {
		return citation.Hit(path)
	}
	return citation.Miss("no logo for " + publisher)
}

func (r *Resolver) thumbnailTier(ctx context.Context, arxivID string) (c citation.Candidate) {
	if r.thumbnails == nil {
		return citation.Miss("thumbnails disabled")
	}
	defer func() {
		if p := recover(); p != nil {
			c = citation.Failed(fmt.Errorf("thumbnail generation panicked: %v", p))
		}
	}()
	path, err := r.thumbnails.Generate(ctx, arxivID)
	if err != nil {
		return citation.Failed(err)
	}
	return citation.Hit(path)
}

// record logs and counts a tier outcome and reports whether it was a hit.
func (r *Resolver) record(logger *zap.Logger, tier string, c citation.Candidate) bool {
	outcome := string(c.Outcome())
	metrics.ObserveTier(tier, outcome)
	switch c.Outcome() {
	case citation.OutcomeError:
		logger.Warn("Image tier failed", zap.String("tier", tier), zap.Error(c.Err))
	case citation.OutcomeDenied, citation.OutcomeMiss:
		logger.Info("Image tier missed", zap.String("tier", tier), zap.String("reason", c.Diagnostic))
	}
	return c.Found
}

func (r *Resolver) accept(logger *zap.Logger, entry *citation.Entry, tier string, c citation.Candidate) {
	entry.Image = c.Value
	logger.Info("Added image", zap.String("tier", tier), zap.String("image", c.Value))
}

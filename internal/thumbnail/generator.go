// Package thumbnail turns arXiv preprints into first-page preview images.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/metrics"
	"github.com/JakeFAU/pubimage/internal/storage/local"
)

// DefaultWidth is the thumbnail width in pixels.
const DefaultWidth = 300

// PDFSource yields a local path for a preprint's PDF.
type PDFSource interface {
	Fetch(ctx context.Context, arxivID string) (string, error)
}

// Generator writes <output_dir>/<escaped id>.png. An existing thumbnail
// short-circuits both the download and the render.
type Generator struct {
	pdfs     PDFSource
	renderer Renderer
	output   *local.Store
	width    int
	logger   *zap.Logger
}

// NewGenerator builds a Generator.
func NewGenerator(pdfs PDFSource, renderer Renderer, output *local.Store, width int, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if width <= 0 {
		width = DefaultWidth
	}
	return &Generator{
		pdfs:     pdfs,
		renderer: renderer,
		output:   output,
		width:    width,
		logger:   logger.Named("thumbnail"),
	}
}

// FileName is the flat output name for arxivID.
func FileName(arxivID string) string {
	return citation.EscapeID(arxivID) + ".png"
}

// Generate returns the thumbnail path, slash-separated and rooted at the
// configured output directory.
func (g *Generator) Generate(ctx context.Context, arxivID string) (string, error) {
	if strings.TrimSpace(arxivID) == "" {
		return "", fmt.Errorf("%w: empty arxiv id", ErrRender)
	}
	logger := g.logger.With(zap.String("arxiv_id", arxivID))
	name := FileName(arxivID)

	if path, ok := g.output.Exists(name); ok {
		metrics.ObserveCacheLookup(metrics.CacheThumbnail, true)
		logger.Debug("Using cached thumbnail", zap.String("path", path))
		return filepath.ToSlash(path), nil
	}
	metrics.ObserveCacheLookup(metrics.CacheThumbnail, false)

	if _, err := g.output.Path(name); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	pdfPath, err := g.pdfs.Fetch(ctx, arxivID)
	if err != nil {
		return "", err
	}
	encoded, err := g.renderer.Render(pdfPath, g.width)
	if err != nil {
		return "", err
	}
	path, err := g.output.Put(name, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	logger.Info("Generated thumbnail", zap.String("path", path))
	return filepath.ToSlash(path), nil
}

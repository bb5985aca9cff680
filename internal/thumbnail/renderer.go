package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	fitz "github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// ErrRender wraps every failure to produce a thumbnail.
var ErrRender = errors.New("thumbnail render failed")

// Renderer rasterizes the first page of a PDF and returns it PNG-encoded at
// the given width.
type Renderer interface {
	Render(pdfPath string, width int) ([]byte, error)
}

// FitzRenderer renders with MuPDF.
type FitzRenderer struct {
	logger *zap.Logger
}

// NewFitzRenderer builds a FitzRenderer.
func NewFitzRenderer(logger *zap.Logger) *FitzRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FitzRenderer{logger: logger.Named("render")}
}

// Render implements Renderer.
func (r *FitzRenderer) Render(pdfPath string, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: width must be > 0", ErrRender)
	}

	page, err := firstPage(pdfPath, width)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRender, pdfPath, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, page); err != nil {
		return nil, fmt.Errorf("%w: encode png: %w", ErrRender, err)
	}
	r.logger.Debug("rendered thumbnail",
		zap.String("pdf", pdfPath),
		zap.Int("width", page.Bounds().Dx()),
		zap.Int("height", page.Bounds().Dy()),
	)
	return buf.Bytes(), nil
}

// firstPage rasterizes page 0 at width/pageWidth and flattens it onto white.
// The document is closed before returning.
func firstPage(pdfPath string, width int) (*image.RGBA, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		_ = doc.Close()
	}()

	if doc.NumPage() < 1 {
		return nil, errors.New("pdf has no pages")
	}
	bounds, err := doc.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("page bounds: %w", err)
	}
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("degenerate page bounds %v", bounds)
	}
	scale := float64(width) / float64(bounds.Dx())
	raster, err := doc.ImageDPI(0, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("rasterize page: %w", err)
	}
	return flatten(raster, width), nil
}

// flatten composites src over white at exactly width pixels wide, keeping
// the aspect ratio. The result is fully opaque, so PNG drops the alpha channel.
func flatten(src image.Image, width int) *image.RGBA {
	sb := src.Bounds()
	height := sb.Dy()
	if sb.Dx() != width && sb.Dx() > 0 {
		height = int(float64(sb.Dy())*float64(width)/float64(sb.Dx()) + 0.5)
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if sb.Dx() == width && sb.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	}
	return dst
}

package thumbnail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/pdfcache"
	"github.com/JakeFAU/pubimage/internal/storage/local"
)

type fakePDFs struct {
	calls atomic.Int32
	err   error
}

func (f *fakePDFs) Fetch(_ context.Context, arxivID string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "/cache/pdfs/" + arxivID + ".pdf", nil
}

type fakeRenderer struct {
	calls atomic.Int32
	err   error
	width int
}

func (r *fakeRenderer) Render(_ string, width int) ([]byte, error) {
	r.calls.Add(1)
	r.width = width
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

func newGenerator(t *testing.T, pdfs PDFSource, renderer Renderer) (*Generator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images", "publications")
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	return NewGenerator(pdfs, renderer, store, 0, zap.NewNop()), dir
}

func TestGenerateThenCacheHit(t *testing.T) {
	t.Parallel()

	pdfs := &fakePDFs{}
	renderer := &fakeRenderer{}
	gen, dir := newGenerator(t, pdfs, renderer)
	ctx := context.Background()

	first, err := gen.Generate(ctx, "2511.01966")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "2511.01966.png")), first)
	assert.True(t, strings.HasPrefix(first, filepath.ToSlash(dir)+"/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.Equal(t, DefaultWidth, renderer.width)

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.FromSlash(first))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	second, err := gen.Generate(ctx, "2511.01966")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), pdfs.calls.Load(), "no second download")
	assert.Equal(t, int32(1), renderer.calls.Load(), "no second render")
}

func TestGenerateEscapesOldStyleID(t *testing.T) {
	t.Parallel()

	gen, dir := newGenerator(t, &fakePDFs{}, &fakeRenderer{})
	path, err := gen.Generate(context.Background(), "hep-th/9901001")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "hep-th_9901001.png")), path)
}

func TestGeneratePropagatesDownloadError(t *testing.T) {
	t.Parallel()

	pdfs := &fakePDFs{err: pdfcache.ErrDownload}
	renderer := &fakeRenderer{}
	gen, _ := newGenerator(t, pdfs, renderer)

	_, err := gen.Generate(context.Background(), "2506.14983")
	require.ErrorIs(t, err, pdfcache.ErrDownload)
	assert.Zero(t, renderer.calls.Load())
}

func TestGeneratePropagatesRenderError(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: errors.Join(ErrRender, errors.New("bad xref"))}
	gen, dir := newGenerator(t, &fakePDFs{}, renderer)

	_, err := gen.Generate(context.Background(), "2506.14983")
	require.ErrorIs(t, err, ErrRender)
	assert.NoFileExists(t, filepath.Join(dir, "2506.14983.png"))
}

func TestGenerateRejectsEmptyID(t *testing.T) {
	t.Parallel()

	gen, _ := newGenerator(t, &fakePDFs{}, &fakeRenderer{})
	_, err := gen.Generate(context.Background(), "")
	require.ErrorIs(t, err, ErrRender)
}

package headless

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/crawler"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1}, zap.NewNop())
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2}, nil)
	require.NoError(t, err)
	defer fetcher.Close()
	assert.Equal(t, 2, cap(fetcher.slots))
	assert.Equal(t, defaultNavTimeout, fetcher.cfg.NavigationTimeout)
	assert.Equal(t, defaultSettleDelay, fetcher.cfg.SettleDelay)
}

func TestFetchSharesOneBrowser(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{ExecPath: filepath.Join(t.TempDir(), "no-chrome")}, zap.NewNop())
	require.NoError(t, err)
	defer fetcher.Close()

	browser := chromedp.FromContext(fetcher.browser)
	require.NotNil(t, browser)
	assert.Nil(t, browser.Browser, "chrome starts on the first fetch")

	ctx := context.Background()
	_, first := fetcher.Fetch(ctx, crawler.FetchRequest{URL: "https://spa.example/a"})
	require.Error(t, first)
	_, second := fetcher.Fetch(ctx, crawler.FetchRequest{URL: "https://spa.example/b"})
	require.ErrorIs(t, second, first, "a failed launch is not retried per fetch")
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{MaxParallel: 1}, zap.NewNop())
	require.NoError(t, err)
	defer fetcher.Close()

	require.NoError(t, fetcher.acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, fetcher.acquire(ctx), context.DeadlineExceeded)

	fetcher.release()
	require.NoError(t, fetcher.acquire(context.Background()))
}

func TestDocumentStatus(t *testing.T) {
	t.Parallel()

	doc := &documentStatus{}
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://pub.example/x.png"},
	})
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 203, URL: "https://pub.example/rendered"},
	})
	status, url := doc.resolve("https://req", "https://final")
	assert.Equal(t, 203, status)
	assert.Equal(t, "https://pub.example/rendered", url)

	empty := &documentStatus{}
	status, url = empty.resolve("https://req", "https://final")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://final", url)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	got := toNetworkHeaders(http.Header{
		"Accept":          {"text/html"},
		"X-Multi":         {"a", "b"},
		"User-Agent":      {"ignored"},
		"Accept-Language": {},
	})
	assert.Equal(t, "text/html", got["Accept"])
	assert.Equal(t, []string{"a", "b"}, got["X-Multi"])
	assert.NotContains(t, got, "User-Agent")
	assert.NotContains(t, got, "Accept-Language")
}

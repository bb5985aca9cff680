package opengraph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/crawler"
	collyfetcher "github.com/JakeFAU/pubimage/internal/fetcher/colly"
	"github.com/JakeFAU/pubimage/internal/policy/ratelimit"
	"github.com/JakeFAU/pubimage/internal/policy/robots"
)

type stubGate struct {
	deny     bool
	acquires atomic.Int32
	waits    atomic.Int32
}

func (g *stubGate) Acquire(ctx context.Context, rawURL string) bool {
	g.acquires.Add(1)
	if g.deny {
		return false
	}
	g.WaitIfNeeded(ctx, rawURL)
	return true
}

func (g *stubGate) WaitIfNeeded(context.Context, string) time.Duration {
	g.waits.Add(1)
	return 0
}

type stubFetcher struct {
	resp  crawler.FetchResponse
	err   error
	calls atomic.Int32
	last  crawler.FetchRequest
}

func (f *stubFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.calls.Add(1)
	f.last = req
	return f.resp, f.err
}

type stubDetector bool

func (d stubDetector) ShouldPromote(crawler.FetchResponse) bool { return bool(d) }

func htmlResponse(url, head string) crawler.FetchResponse {
	return crawler.FetchResponse{URL: url, StatusCode: http.StatusOK, Body: page(head)}
}

func TestFindImageDeniedDoesNotFetch(t *testing.T) {
	t.Parallel()

	gate := &stubGate{deny: true}
	fetcher := &stubFetcher{}
	e := New(gate, fetcher, zap.NewNop())

	c := e.FindImage(context.Background(), "https://pub.example/a")
	assert.False(t, c.Found)
	assert.Equal(t, citation.OutcomeDenied, c.Outcome())
	assert.Zero(t, fetcher.calls.Load())
	assert.Equal(t, int32(1), gate.acquires.Load())
	assert.Zero(t, gate.waits.Load())
}

func TestFindImageHit(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	fetcher := &stubFetcher{resp: htmlResponse("https://pub.example/a", `<meta property="og:image" content="/cover.png">`)}
	e := New(gate, fetcher, nil)

	c := e.FindImage(context.Background(), "https://pub.example/a")
	require.True(t, c.Found)
	assert.Equal(t, "https://pub.example/cover.png", c.Value)
	assert.Equal(t, int32(1), gate.waits.Load())
	assert.Equal(t, crawler.KindPage, fetcher.last.Kind)
	assert.Equal(t, "en-US,en;q=0.5", fetcher.last.Headers.Get("Accept-Language"))
}

func TestFindImageResolvesAgainstFinalURL(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{resp: htmlResponse("https://journals.example/prd/abstract/1", `<meta name="twitter:image" content="thumb.png">`)}
	e := New(&stubGate{}, fetcher, zap.NewNop())

	c := e.FindImage(context.Background(), "https://doi.org/10.1/x")
	require.True(t, c.Found)
	assert.Equal(t, "https://journals.example/prd/abstract/thumb.png", c.Value)
}

func TestFindImageFetchErrorIsCandidate(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: errors.New("connection reset")}
	e := New(&stubGate{}, fetcher, zap.NewNop())

	c := e.FindImage(context.Background(), "https://pub.example/a")
	assert.Equal(t, citation.OutcomeError, c.Outcome())
	assert.Contains(t, c.Diagnostic, "connection reset")
}

func TestFindImageNon2xxIsError(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{resp: crawler.FetchResponse{StatusCode: http.StatusForbidden}}
	e := New(&stubGate{}, fetcher, zap.NewNop())

	c := e.FindImage(context.Background(), "https://pub.example/a")
	assert.Equal(t, citation.OutcomeError, c.Outcome())
}

func TestFindImageMissWithoutLink(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	e := New(&stubGate{}, fetcher, zap.NewNop())

	c := e.FindImage(context.Background(), "")
	assert.Equal(t, citation.OutcomeMiss, c.Outcome())
	assert.Zero(t, fetcher.calls.Load())
}

func TestFindImageHeadlessPromotion(t *testing.T) {
	t.Parallel()

	gate := &stubGate{}
	static := &stubFetcher{resp: htmlResponse("https://spa.example/a", `<title>loading</title>`)}
	rendered := &stubFetcher{resp: crawler.FetchResponse{
		URL:          "https://spa.example/a",
		StatusCode:   http.StatusOK,
		Body:         page(`<meta property="og:image" content="/og.jpg">`),
		UsedHeadless: true,
	}}

	e := New(gate, static, zap.NewNop(), WithHeadless(rendered, stubDetector(true)))
	c := e.FindImage(context.Background(), "https://spa.example/a")
	require.True(t, c.Found)
	assert.Equal(t, "https://spa.example/og.jpg", c.Value)
	assert.Equal(t, int32(1), gate.acquires.Load(), "robots is checked once per page")
	assert.Equal(t, int32(2), gate.waits.Load(), "the render is rate limited too")

	notSPA := New(&stubGate{}, static, zap.NewNop(), WithHeadless(rendered, stubDetector(false)))
	c = notSPA.FindImage(context.Background(), "https://spa.example/a")
	assert.Equal(t, citation.OutcomeMiss, c.Outcome())
	assert.Equal(t, int32(1), rendered.calls.Load())
}

func TestFindImageAgainstLiveServer(t *testing.T) {
	t.Parallel()

	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case strings.HasPrefix(r.URL.Path, "/private"):
			pageHits.Add(1)
			_, _ = w.Write(page(`<meta property="og:image" content="/secret.png">`))
		case r.URL.Path == "/article":
			pageHits.Add(1)
			_, _ = w.Write(page(`<meta property="og:image" content="data:image/png;base64,AA">
<meta name="citation_image" content="https://images.pub.example/fig1.png">`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	const ua = "PublicationImageBot/1.0"
	store := robots.New(robots.Config{UserAgent: ua}, zap.NewNop())
	limiter := ratelimit.New(store, ua, zap.NewNop())
	e := New(limiter, collyfetcher.New(collyfetcher.Config{UserAgent: ua}, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	_, recorded := limiter.LastRequest(srv.URL + "/")
	assert.False(t, recorded)

	c := e.FindImage(ctx, srv.URL+"/article")
	require.True(t, c.Found, c.Diagnostic)
	assert.Equal(t, "https://images.pub.example/fig1.png", c.Value)
	first, recorded := limiter.LastRequest(srv.URL + "/")
	require.True(t, recorded, "the page fetch went through the limiter")

	c = e.FindImage(ctx, srv.URL+"/private/doc")
	assert.Equal(t, citation.OutcomeDenied, c.Outcome())
	afterDenied, _ := limiter.LastRequest(srv.URL + "/")
	assert.Equal(t, first, afterDenied, "a denied page is not recorded")

	c = e.FindImage(ctx, srv.URL+"/missing")
	assert.Equal(t, citation.OutcomeError, c.Outcome())

	assert.Equal(t, int32(1), pageHits.Load())
}

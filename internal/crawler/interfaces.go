package crawler

import "context"

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a static response should be re-rendered
// in a browser.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

package crawler

import (
	"net/http"
	"time"
)

// FetchKind labels what a request is for; it feeds metrics and body limits.
type FetchKind string

// Fetch kinds issued by the image pipeline.
const (
	KindPage FetchKind = "page"
	KindPDF  FetchKind = "pdf"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Kind    FetchKind
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Package detector decides when a page that yielded no preview image should
// be re-rendered in a headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pubimage/internal/crawler"
)

// DefaultBodyThreshold is the size under which a script-heavy page is
// assumed to be an application shell.
const DefaultBodyThreshold = 2048

// spaMountSelector matches the mount points of common client-side frameworks.
const spaMountSelector = `#__next, #__nuxt, #root, #app, [data-reactroot], [ng-version], [data-server-rendered]`

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	MinHeadMeta         int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold, MinHeadMeta: 3}
}

// ShouldPromote reports whether the static response looks like a shell whose
// metadata is filled in by JavaScript.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || resp.UsedHeadless {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if doc.Find(spaMountSelector).Length() > 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptShare(doc, len(body)) >= 25 {
		return true
	}
	return doc.Find("head meta").Length() < h.MinHeadMeta && doc.Find("script[src]").Length() > 0
}

// scriptShare is the percentage of the document taken up by inline script text.
func scriptShare(doc *goquery.Document, total int) int {
	if total == 0 {
		return 0
	}
	scripted := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scripted += len(strings.TrimSpace(s.Text()))
		if _, ok := s.Attr("src"); ok {
			scripted += len("<script src=\"\"></script>")
		}
	})
	return scripted * 100 / total
}

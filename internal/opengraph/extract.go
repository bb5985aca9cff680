package opengraph

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one place a page may advertise its preview image.
type Strategy struct {
	Name     string
	Selector string
	Attr     string
}

// Strategies are tried in order; the first usable value wins.
var Strategies = []Strategy{
	{Name: "og:image", Selector: `meta[property="og:image"]`, Attr: "content"},
	{Name: "twitter:image", Selector: `meta[name="twitter:image"]`, Attr: "content"},
	{Name: "citation_image", Selector: `meta[name="citation_image"]`, Attr: "content"},
	{Name: "itemprop", Selector: `meta[itemprop="image"]`, Attr: "content"},
}

// Match is an image found in a document.
type Match struct {
	URL      string
	Strategy string
}

// Extract parses body as HTML and returns the first strategy whose value
// survives Normalize against base. A strategy whose value is rejected does
// not stop the search.
func Extract(body []byte, base string) (Match, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Match{}, false, fmt.Errorf("parse html: %w", err)
	}
	for _, s := range Strategies {
		value, ok := doc.Find(s.Selector).First().Attr(s.Attr)
		if !ok {
			continue
		}
		if normalized, ok := Normalize(value, base); ok {
			return Match{URL: normalized, Strategy: s.Name}, true, nil
		}
	}
	return Match{}, false, nil
}

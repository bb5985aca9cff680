package inspire

import "encoding/json"

// Hit is one literature record from a search response.
type Hit struct {
	Metadata Metadata `json:"metadata"`
}

// Metadata holds the subset of record fields requested by Query.
type Metadata struct {
	ControlNumber     int               `json:"control_number,omitempty"`
	DOIs              []Value           `json:"dois,omitempty"`
	ArxivEprints      []Value           `json:"arxiv_eprints,omitempty"`
	Titles            []Title           `json:"titles,omitempty"`
	Authors           []json.RawMessage `json:"authors,omitempty"`
	DocumentType      []string          `json:"document_type,omitempty"`
	InspireCategories []Category        `json:"inspire_categories,omitempty"`
}

// Value wraps identifier lists such as dois and arxiv_eprints.
type Value struct {
	Value string `json:"value"`
}

// Title is a record title.
type Title struct {
	Title string `json:"title"`
}

// Category is an INSPIRE subject category.
type Category struct {
	Term string `json:"term"`
}

type searchResponse struct {
	Hits struct {
		Hits  []Hit `json:"hits"`
		Total int   `json:"total"`
	} `json:"hits"`
}

func firstValue(values []Value) string {
	for _, v := range values {
		if v.Value != "" {
			return v.Value
		}
	}
	return ""
}

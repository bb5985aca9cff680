package inspire

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/citation"
)

var skippedDocumentTypes = []string{"conference paper", "proceedings"}

// Sources expands one seed into a citation entry per eligible paper. The seed
// must carry a bai passthrough field; its other fields are copied onto every
// source and take precedence over fetched metadata.
func (c *Client) Sources(ctx context.Context, seed citation.Entry) ([]citation.Entry, error) {
	bai := seed.ExtraString("bai")
	if bai == "" {
		return nil, ErrMissingBAI
	}

	hits, err := c.Query(ctx, bai)
	if err != nil {
		return nil, err
	}

	withMetadata := enableMetadata(seed)
	sources := make([]citation.Entry, 0, len(hits))
	for _, hit := range hits {
		source, ok := c.source(hit.Metadata, withMetadata)
		if !ok {
			continue
		}
		sources = append(sources, overlay(source, seed))
	}
	c.logger.Debug("Expanded seed",
		zap.String("bai", bai),
		zap.Int("papers", len(hits)),
		zap.Int("sources", len(sources)),
	)
	return sources, nil
}

func (c *Client) source(md Metadata, withMetadata bool) (citation.Entry, bool) {
	for _, t := range skippedDocumentTypes {
		if slices.Contains(md.DocumentType, t) {
			return citation.Entry{}, false
		}
	}
	if len(md.Authors) > c.maxAuthors {
		return citation.Entry{}, false
	}

	var source citation.Entry
	arxivID := firstValue(md.ArxivEprints)
	switch doi := firstValue(md.DOIs); {
	case doi != "":
		source.ID = "doi:" + doi
	case arxivID != "":
		source.ID = "arxiv:" + arxivID
	default:
		return citation.Entry{}, false
	}

	if !withMetadata {
		return source, true
	}
	if arxivID != "" {
		source.Buttons = append(source.Buttons, citation.Button{
			Type: "preprint",
			Text: "arXiv",
			Link: "https://arxiv.org/abs/" + arxivID,
		})
	}
	if len(md.DocumentType) > 0 {
		source.Type = md.DocumentType[0]
	}
	for _, cat := range md.InspireCategories {
		if cat.Term != "" {
			source.Tags = append(source.Tags, cat.Term)
		}
	}
	return source, true
}

// enableMetadata reads the seed's enable_metadata flag, default true.
func enableMetadata(seed citation.Entry) bool {
	v, ok := seed.Extra["enable_metadata"]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// overlay copies every field set on seed onto source.
func overlay(source, seed citation.Entry) citation.Entry {
	seed = seed.Clone()
	if seed.ID != "" {
		source.ID = seed.ID
	}
	if seed.Link != "" {
		source.Link = seed.Link
	}
	if seed.Publisher != "" {
		source.Publisher = seed.Publisher
	}
	if seed.Type != "" {
		source.Type = seed.Type
	}
	if seed.Image != "" {
		source.Image = seed.Image
	}
	if seed.SkipImage {
		source.SkipImage = true
	}
	if seed.Buttons != nil {
		source.Buttons = seed.Buttons
	}
	if seed.Tags != nil {
		source.Tags = seed.Tags
	}
	if len(seed.Extra) > 0 {
		if source.Extra == nil {
			source.Extra = make(map[string]any, len(seed.Extra))
		}
		for k, v := range seed.Extra {
			source.Extra[k] = v
		}
	}
	return source
}

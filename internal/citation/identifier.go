package citation

import (
	"net/url"
	"strings"
)

// Scheme is the tag in front of a citation id.
type Scheme string

// Recognized identifier schemes.
const (
	SchemeDOI   Scheme = "doi"
	SchemeArxiv Scheme = "arxiv"
	SchemeOther Scheme = "other"
)

// Identifier is a parsed "<scheme>:<value>" citation id.
type Identifier struct {
	Scheme Scheme
	Value  string
}

func (i Identifier) String() string {
	if i.Scheme == SchemeOther {
		return i.Value
	}
	return string(i.Scheme) + ":" + i.Value
}

// ParseIdentifier splits a tagged id. Ids without a known tag keep their full
// text in Value with SchemeOther.
func ParseIdentifier(id string) (Identifier, error) {
	if strings.TrimSpace(id) == "" {
		return Identifier{}, ErrMissingIdentifier
	}
	switch {
	case strings.HasPrefix(id, "doi:"):
		return Identifier{Scheme: SchemeDOI, Value: strings.TrimPrefix(id, "doi:")}, nil
	case strings.HasPrefix(id, "arxiv:"):
		return Identifier{Scheme: SchemeArxiv, Value: strings.TrimPrefix(id, "arxiv:")}, nil
	default:
		return Identifier{Scheme: SchemeOther, Value: id}, nil
	}
}

// EscapeID flattens an identifier into a single path segment.
func EscapeID(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

// ArxivIDFromButtons returns the arXiv id linked by the first preprint button
// pointing at arxiv.org.
func ArxivIDFromButtons(buttons []Button) (string, bool) {
	for _, b := range buttons {
		if b.Type != "preprint" {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(b.Link))
		if err != nil || !isArxivHost(u.Hostname()) {
			continue
		}
		id := arxivIDFromPath(u.Path)
		return id, id != ""
	}
	return "", false
}

func isArxivHost(host string) bool {
	host = strings.ToLower(host)
	return host == "arxiv.org" || strings.HasSuffix(host, ".arxiv.org")
}

// arxivIDFromPath handles /abs/<id>, /pdf/<id>[.pdf] and falls back to the
// last path segment. Old-style ids keep their archive prefix.
func arxivIDFromPath(p string) string {
	p = strings.Trim(p, "/")
	for _, prefix := range []string{"abs/", "pdf/"} {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			return strings.TrimSuffix(rest, ".pdf")
		}
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

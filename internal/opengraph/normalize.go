package opengraph

import (
	"net/url"
	"strings"
)

var localHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
}

// Normalize turns a meta-tag image value into an absolute URL. It rejects
// empty values, data URIs, non-http schemes and loopback hosts.
func Normalize(candidate, base string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(candidate), "data:") {
		return "", false
	}

	ref, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	resolved := candidate
	if !ref.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			return "", false
		}
		ref = baseURL.ResolveReference(ref)
		resolved = ref.String()
	}

	switch strings.ToLower(ref.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	host := strings.ToLower(ref.Hostname())
	if host == "" {
		return "", false
	}
	if _, local := localHosts[host]; local {
		return "", false
	}
	return resolved, true
}

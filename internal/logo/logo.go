// Package logo maps publisher names to static journal logo images.
package logo

import "strings"

// Entry pairs a lowercase publisher name with a site-relative logo path.
type Entry struct {
	Publisher string `mapstructure:"publisher" yaml:"publisher"`
	Path      string `mapstructure:"path" yaml:"path"`
}

// DefaultTable is consulted in order; the first match wins.
var DefaultTable = []Entry{
	{Publisher: "physical review d", Path: "images/journals/PRD.jpg"},
	{Publisher: "physical review letters", Path: "images/journals/PRL.jpg"},
	{Publisher: "physical review applied", Path: "images/journals/PRApplied.jpg"},
	{Publisher: "scipost physics", Path: "images/journals/logo_scipost_RGB_HTML_groot.png"},
	{Publisher: "the european physical journal c", Path: "images/journals/EPJC.png"},
	{Publisher: "journal of cosmology and astroparticle physics", Path: "images/journals/JCAP.jpeg"},
	{Publisher: "reports on progress in physics", Path: "images/journals/ReptProgPhys.jpg"},
}

// Resolver looks publishers up in an ordered table.
type Resolver struct {
	table []Entry
}

// New builds a Resolver over table, or DefaultTable when table is empty.
// Keys are lowercased; entries with an empty name or path are dropped.
func New(table []Entry) *Resolver {
	if len(table) == 0 {
		table = DefaultTable
	}
	cleaned := make([]Entry, 0, len(table))
	for _, e := range table {
		name := strings.ToLower(strings.TrimSpace(e.Publisher))
		if name == "" || e.Path == "" {
			continue
		}
		cleaned = append(cleaned, Entry{Publisher: name, Path: e.Path})
	}
	return &Resolver{table: cleaned}
}

// Lookup tries an exact case-insensitive match, then a substring match in
// either direction, walking the table in order.
func (r *Resolver) Lookup(publisher string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(publisher))
	if name == "" {
		return "", false
	}
	for _, e := range r.table {
		if e.Publisher == name {
			return e.Path, true
		}
	}
	for _, e := range r.table {
		if strings.Contains(name, e.Publisher) || strings.Contains(e.Publisher, name) {
			return e.Path, true
		}
	}
	return "", false
}

package logo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	r := New(nil)
	tests := []struct {
		publisher string
		want      string
		found     bool
	}{
		{"Physical Review D", "images/journals/PRD.jpg", true},
		{"PHYSICAL REVIEW LETTERS", "images/journals/PRL.jpg", true},
		{"Some Physical Review D Variant", "images/journals/PRD.jpg", true},
		{"  SciPost Physics  ", "images/journals/logo_scipost_RGB_HTML_groot.png", true},
		{"Journal of Cosmology and Astroparticle Physics", "images/journals/JCAP.jpeg", true},
		{"The European Physical Journal C", "images/journals/EPJC.png", true},
		{"physical review", "images/journals/PRD.jpg", true},
		{"Nature", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.publisher, func(t *testing.T) {
			t.Parallel()
			got, ok := r.Lookup(tt.publisher)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupExactBeatsEarlierSubstring(t *testing.T) {
	t.Parallel()

	r := New([]Entry{
		{Publisher: "review", Path: "generic.png"},
		{Publisher: "Physical Review X", Path: "prx.png"},
	})
	got, ok := r.Lookup("physical review x")
	assert.True(t, ok)
	assert.Equal(t, "prx.png", got)

	got, ok = r.Lookup("Annual Review of Physics")
	assert.True(t, ok)
	assert.Equal(t, "generic.png", got)
}

func TestNewDropsBlankEntries(t *testing.T) {
	t.Parallel()

	r := New([]Entry{{Publisher: "", Path: "x.png"}, {Publisher: "acme", Path: ""}, {Publisher: "Acme Letters", Path: "acme.png"}})
	got, ok := r.Lookup("acme")
	assert.True(t, ok)
	assert.Equal(t, "acme.png", got)
}

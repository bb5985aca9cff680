package citation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEntries = `- id: doi:10.1103/PhysRevD.111.023501
  title: A survey of things
  authors:
    - A. Author
    - B. Author
  publisher: Physical Review D
  link: https://doi.org/10.1103/PhysRevD.111.023501
  buttons:
    - type: preprint
      text: arXiv
      link: https://arxiv.org/abs/2506.14983
  tags:
    - cosmology
- id: arxiv:2511.01966
  skip_image: true
`

func TestLoadEntriesKeepsPassthroughFields(t *testing.T) {
	t.Parallel()

	entries, err := LoadEntries(strings.NewReader(sampleEntries))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "doi:10.1103/PhysRevD.111.023501", first.ID)
	assert.Equal(t, "Physical Review D", first.Publisher)
	assert.Equal(t, "A survey of things", first.ExtraString("title"))
	assert.Equal(t, []any{"A. Author", "B. Author"}, first.Extra["authors"])
	require.Len(t, first.Buttons, 1)
	assert.Equal(t, "preprint", first.Buttons[0].Type)
	assert.True(t, entries[1].SkipImage)
}

func TestWriteEntriesRoundTripsUnknownKeys(t *testing.T) {
	t.Parallel()

	entries, err := LoadEntries(strings.NewReader(sampleEntries))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, entries))

	out := buf.String()
	assert.Contains(t, out, "title: A survey of things")
	assert.Contains(t, out, "- A. Author")
	assert.NotRegexp(t, `(?m)^[ -]*image:`, out)

	again, err := LoadEntries(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, again)
}

func TestWriteEntriesKeepsExplicitEmptyKeys(t *testing.T) {
	t.Parallel()

	src := "- id: doi:10.1/x\n  title: T\n  image: \"\"\n  skip_image: false\n  tags: []\n- id: doi:10.1/y\n"
	entries, err := LoadEntries(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, entries))
	out := buf.String()
	assert.Contains(t, out, "  image: \"\"\n")
	assert.Contains(t, out, "  skip_image: false\n")
	assert.Contains(t, out, "  tags: []\n")
	assert.Contains(t, out, "  title: T\n")
	assert.Less(t, strings.Index(out, "image:"), strings.Index(out, "title:"), "named keys stay ahead of passthrough keys")
	assert.True(t, strings.HasSuffix(out, "- id: doi:10.1/y\n"), "keys are only kept where they were written")

	again, err := LoadEntries(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, again)

	resolved := entries[0].Clone()
	resolved.Image = "images/publications/x.png"
	buf.Reset()
	require.NoError(t, WriteEntries(&buf, []Entry{resolved}))
	assert.Contains(t, buf.String(), "  image: images/publications/x.png\n")
	assert.Equal(t, 1, strings.Count(buf.String(), "  image:"))
}

func TestLoadEntriesEmptyDocument(t *testing.T) {
	t.Parallel()

	entries, err := LoadEntries(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadEntriesRejectsMapping(t *testing.T) {
	t.Parallel()

	_, err := LoadEntries(strings.NewReader("id: doi:1\n"))
	require.Error(t, err)
}

func TestCloneDoesNotShareState(t *testing.T) {
	t.Parallel()

	orig := Entry{
		ID:      "doi:1",
		Tags:    []string{"a"},
		Buttons: []Button{{Type: "preprint", Extra: map[string]any{"k": "v"}}},
		Extra:   map[string]any{"title": "t"},
	}
	cp := orig.Clone()
	cp.Tags[0] = "b"
	cp.Buttons[0].Extra["k"] = "changed"
	cp.Extra["title"] = "changed"

	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, "v", orig.Buttons[0].Extra["k"])
	assert.Equal(t, "t", orig.Extra["title"])
}

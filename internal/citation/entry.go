package citation

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrMissingIdentifier is returned when an entry carries no id field.
var ErrMissingIdentifier = errors.New("citation entry has no id")

// Button is a link rendered next to a publication (preprint, code, slides).
type Button struct {
	Type  string         `yaml:"type,omitempty"`
	Text  string         `yaml:"text,omitempty"`
	Link  string         `yaml:"link,omitempty"`
	Extra map[string]any `yaml:",inline"`
}

// Entry is one publication in the site's citation list. Fields the pipeline
// does not read are kept in Extra and written back unchanged.
type Entry struct {
	ID        string         `yaml:"id,omitempty"`
	Link      string         `yaml:"link,omitempty"`
	Publisher string         `yaml:"publisher,omitempty"`
	Type      string         `yaml:"type,omitempty"`
	Image     string         `yaml:"image,omitempty"`
	SkipImage bool           `yaml:"skip_image,omitempty"`
	Buttons   []Button       `yaml:"buttons,omitempty"`
	Tags      []string       `yaml:"tags,omitempty"`
	Extra     map[string]any `yaml:",inline"`

	// explicit holds the named keys the source wrote out, so an empty
	// image or a false skip_image survives the round trip.
	explicit map[string]bool
}

// entryFields has Entry's layout without its YAML methods.
type entryFields Entry

// namedKeys lists Entry's own keys in encoding order.
var namedKeys = []string{"id", "link", "publisher", "type", "image", "skip_image", "buttons", "tags"}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	var fields entryFields
	if err := node.Decode(&fields); err != nil {
		return err
	}
	*e = Entry(fields)
	e.explicit = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i].Value; slices.Contains(namedKeys, key) {
			if e.explicit == nil {
				e.explicit = make(map[string]bool)
			}
			e.explicit[key] = true
		}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler. Empty named fields are omitted
// unless the entry was read with that key present.
func (e Entry) MarshalYAML() (any, error) {
	var node yaml.Node
	if err := node.Encode(entryFields(e)); err != nil {
		return nil, err
	}
	for rank, key := range namedKeys {
		if !e.explicit[key] || hasKey(&node, key) {
			continue
		}
		at := len(node.Content)
		for i := 0; i+1 < len(node.Content); i += 2 {
			if r := slices.Index(namedKeys, node.Content[i].Value); r < 0 || r > rank {
				at = i
				break
			}
		}
		node.Content = slices.Insert(node.Content, at,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			zeroNode(key),
		)
	}
	return &node, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func zeroNode(key string) *yaml.Node {
	switch key {
	case "skip_image":
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"}
	case "buttons", "tags":
		return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ""}
	}
}

// Clone returns a deep-enough copy: slices and the passthrough map are not shared.
func (e Entry) Clone() Entry {
	out := e
	out.Buttons = slices.Clone(e.Buttons)
	for i := range out.Buttons {
		out.Buttons[i].Extra = maps.Clone(e.Buttons[i].Extra)
	}
	out.Tags = slices.Clone(e.Tags)
	out.Extra = maps.Clone(e.Extra)
	out.explicit = maps.Clone(e.explicit)
	return out
}

// ExtraString reads a passthrough field as a string.
func (e Entry) ExtraString(key string) string {
	v, ok := e.Extra[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// LoadEntries decodes a YAML list of entries. An empty document yields no entries.
func LoadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

// WriteEntries encodes entries as a YAML list.
func WriteEntries(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush entries: %w", err)
	}
	return nil
}

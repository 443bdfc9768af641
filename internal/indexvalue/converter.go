package indexvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Converter turns the first index value grouping of a field into its final
// index string.
type Converter interface {
	Convert(ctx context.Context, v IndexValue) (string, error)
}

// Registration pairs an editor alias with its converter.
type Registration struct {
	EditorAlias string
	Converter   Converter
}

// ConverterSet is an immutable alias to converter lookup. It is safe for
// concurrent use.
type ConverterSet struct {
	order  []string
	byName map[string]Converter
}

// NewConverterSet builds a set from registrations. A repeated alias keeps its
// first position but the last converter.
func NewConverterSet(regs ...Registration) *ConverterSet {
	s := &ConverterSet{byName: make(map[string]Converter, len(regs))}
	for _, r := range regs {
		if _, ok := s.byName[r.EditorAlias]; !ok {
			s.order = append(s.order, r.EditorAlias)
		}
		s.byName[r.EditorAlias] = r.Converter
	}
	return s
}

// BuiltinConverters returns the media picker, multi node tree picker and tags
// registrations.
func BuiltinConverters(media MediaService, content ContentService) []Registration {
	return []Registration{
		{EditorAlias: MediaPickerAlias, Converter: MediaPickerConverter{Media: media}},
		{EditorAlias: MultiNodeTreePickerAlias, Converter: MultiNodeTreePickerConverter{Content: content}},
		{EditorAlias: TagsAlias, Converter: TagsConverter{}},
	}
}

// Lookup returns the converter registered for alias.
func (s *ConverterSet) Lookup(alias string) (Converter, bool) {
	c, ok := s.byName[alias]
	return c, ok
}

// Aliases returns the registered aliases in registration order.
func (s *ConverterSet) Aliases() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DefaultConverter emits the first raw value as text.
type DefaultConverter struct{}

func (DefaultConverter) Convert(_ context.Context, v IndexValue) (string, error) {
	return DefaultScalar(v.Values), nil
}

// MediaPickerConverter resolves picked media items to their file references
// and returns them as a JSON array of strings.
type MediaPickerConverter struct {
	Media MediaService
}

func (c MediaPickerConverter) Convert(ctx context.Context, v IndexValue) (string, error) {
	payload := DefaultScalar(v.Values)
	if payload == "" {
		return "", nil
	}

	refs, err := DecodeMediaReferences(payload)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", nil
	}

	files := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == nil || ref.MediaKey == "" {
			continue
		}
		id, err := uuid.Parse(ref.MediaKey)
		if err != nil {
			return "", fmt.Errorf("media key %q: %w", ref.MediaKey, ErrMalformedPayload)
		}

		media, found, err := c.Media.GetByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolving media %s: %w", id, err)
		}
		if !found {
			continue
		}

		file, _ := media.Attribute(MediaFileAttribute)
		files = append(files, scalar(file))
	}

	out, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// MultiNodeTreePickerConverter resolves a comma separated list of content
// references to a comma separated list of node names.
type MultiNodeTreePickerConverter struct {
	Content ContentService
}

func (c MultiNodeTreePickerConverter) Convert(ctx context.Context, v IndexValue) (string, error) {
	raw := DefaultScalar(v.Values)
	if raw == "" {
		return "", nil
	}

	var names []string
	for _, token := range splitTokens(raw) {
		id, ok := ParseReferenceToken(token)
		if !ok {
			continue
		}

		node, found, err := c.Content.GetByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolving content %s: %w", id, err)
		}
		if found {
			names = append(names, node.DisplayName())
		}
	}
	return strings.Join(names, ","), nil
}

// TagsConverter joins every raw tag value with commas. Nil tags render as
// empty strings and are kept.
type TagsConverter struct{}

func (TagsConverter) Convert(_ context.Context, v IndexValue) (string, error) {
	tags := make([]string, len(v.Values))
	for i, t := range v.Values {
		tags[i] = scalar(t)
	}
	return strings.Join(tags, ","), nil
}

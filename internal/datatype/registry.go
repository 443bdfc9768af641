// Package datatype holds the configured data types and their default index
// value extraction.
package datatype

import (
	"context"

	"github.com/BRO3886/content-indexer/internal/config"
	"github.com/BRO3886/content-indexer/internal/indexvalue"
)

// Registry is a read-only data type lookup keyed by editor alias.
type Registry struct {
	byEditor map[string][]indexvalue.DataType
}

var _ indexvalue.DataTypeService = (*Registry)(nil)

// New builds a registry from data type definitions.
func New(defs ...indexvalue.DataType) *Registry {
	r := &Registry{byEditor: make(map[string][]indexvalue.DataType)}
	for _, d := range defs {
		if d.Extractor == nil {
			d.Extractor = ExtractorFor(d.EditorAlias)
		}
		r.byEditor[d.EditorAlias] = append(r.byEditor[d.EditorAlias], d)
	}
	return r
}

// FromConfig builds a registry from the data_types config section.
func FromConfig(defs []config.DataType) *Registry {
	out := make([]indexvalue.DataType, 0, len(defs))
	for _, d := range defs {
		out = append(out, indexvalue.DataType{
			ID:          d.ID,
			Name:        d.Name,
			EditorAlias: d.EditorAlias,
		})
	}
	return New(out...)
}

// ExtractorFor returns the default extractor for an editor alias.
func ExtractorFor(editorAlias string) indexvalue.Extractor {
	switch editorAlias {
	case indexvalue.TagsAlias:
		return TagsExtractor{}
	default:
		return ScalarExtractor{}
	}
}

func (r *Registry) GetByEditorAlias(_ context.Context, alias string) ([]indexvalue.DataType, error) {
	return r.byEditor[alias], nil
}

// Len returns the number of configured data types.
func (r *Registry) Len() int {
	n := 0
	for _, dts := range r.byEditor {
		n += len(dts)
	}
	return n
}

// Package indexvalue turns stored CMS field values into the flat strings that
// get shipped to the search index.
package indexvalue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Editor aliases with a built-in converter.
const (
	MediaPickerAlias         = "Umbraco.MediaPicker3"
	MultiNodeTreePickerAlias = "Umbraco.MultiNodeTreePicker"
	TagsAlias                = "Umbraco.Tags"
)

// MediaFileAttribute is the media attribute holding the file reference.
const MediaFileAttribute = "umbracoFile"

// ErrMalformedPayload marks a stored value that could not be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// Field identifies one property of a content record.
type Field struct {
	Owner       string
	Alias       string
	EditorAlias string
	DataTypeID  int
	Varies      bool
	// Values holds the stored value per culture; "" is the invariant culture.
	Values map[string]any
}

// Value returns the stored value for culture. Invariant fields ignore culture.
func (f Field) Value(culture string) any {
	if !f.Varies {
		culture = ""
	}
	return f.Values[culture]
}

// IndexValue is one grouping produced by a data type's default extraction.
type IndexValue struct {
	Key    string
	Values []any
}

// KeyValue is the final (key, value) pair for a field. The zero value means
// the field's data type could not be resolved.
type KeyValue struct {
	Key   string
	Value string
}

// IsZero reports whether kv carries no key.
func (kv KeyValue) IsZero() bool {
	return kv.Key == ""
}

// Extractor is a data type's own index value logic.
type Extractor interface {
	IndexValues(ctx context.Context, field Field, culture, segment string, published bool) ([]IndexValue, error)
}

// DataType is a configured data type backed by a property editor.
type DataType struct {
	ID          int
	Name        string
	EditorAlias string
	Extractor   Extractor
}

// DataTypeService looks up configured data types.
type DataTypeService interface {
	GetByEditorAlias(ctx context.Context, alias string) ([]DataType, error)
}

// Media is a stored media item.
type Media interface {
	Attribute(name string) (any, bool)
}

// MediaService resolves media items. A missing item is (nil, false, nil).
type MediaService interface {
	GetByID(ctx context.Context, id uuid.UUID) (Media, bool, error)
}

// Content is a stored content node.
type Content interface {
	DisplayName() string
}

// ContentService resolves content nodes. A missing node is (nil, false, nil).
type ContentService interface {
	GetByID(ctx context.Context, id uuid.UUID) (Content, bool, error)
}

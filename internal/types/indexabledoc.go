package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Reserved document fields.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldContentType = "content_type"
	FieldCulture     = "culture"
)

type IndexableDocument struct {
	Id      string
	DeIndex bool
	Data    map[string]any
}

// DocumentID returns the index id of a record for culture. Invariant
// documents use the bare key.
func DocumentID(key, culture string) string {
	id := key
	if culture != "" {
		id = fmt.Sprintf("%s_%s", key, strings.ToLower(culture))
	}
	if strings.Contains(id, "/") {
		id = url.PathEscape(id)
	}
	return id
}

// NewDocument returns a document carrying the reserved fields of c.
func NewDocument(c *Content, culture string) *IndexableDocument {
	id := DocumentID(c.Key, culture)
	data := map[string]any{
		FieldID:          c.Key,
		FieldName:        c.Name,
		FieldContentType: c.ContentType,
	}
	if culture != "" {
		data[FieldCulture] = culture
	}
	return &IndexableDocument{Id: id, Data: data}
}

// Validate checks an event carries a usable record.
func Validate(e Event) error {
	c := e.Subject()
	if c == nil {
		return fmt.Errorf("event %q has no record", e.Op)
	}
	if c.Key == "" {
		return fmt.Errorf("record key is empty for %+v", c)
	}
	return nil
}

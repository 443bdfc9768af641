package types

import "github.com/BRO3886/content-indexer/internal/indexvalue"

// Event operations.
const (
	OpCreate  = "c"
	OpUpdate  = "u"
	OpDelete  = "d"
	OpPublish = "p"
)

// Event is a content change published by the CMS.
type Event struct {
	Before    *Content `json:"before"`
	After     *Content `json:"after"`
	Op        string   `json:"op"`
	TimeStamp int64    `json:"ts_ms"`
}

// Subject returns the record the event is about.
func (e Event) Subject() *Content {
	if e.After != nil {
		return e.After
	}
	return e.Before
}

type Content struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	ContentType string     `json:"content_type"`
	Cultures    []string   `json:"cultures,omitempty"`
	Properties  []Property `json:"properties"`
}

type Property struct {
	Alias       string         `json:"alias"`
	EditorAlias string         `json:"editor_alias"`
	DataTypeID  int            `json:"data_type_id"`
	Varies      bool           `json:"varies"`
	Values      map[string]any `json:"values"`
}

// Field returns the extraction descriptor of p on record owner.
func (p Property) Field(owner string) indexvalue.Field {
	return indexvalue.Field{
		Owner:       owner,
		Alias:       p.Alias,
		EditorAlias: p.EditorAlias,
		DataTypeID:  p.DataTypeID,
		Varies:      p.Varies,
		Values:      p.Values,
	}
}

// Package store holds the content and media entities the converters resolve
// references against.
package store

import "github.com/BRO3886/content-indexer/internal/indexvalue"

// Node is a content node.
type Node struct {
	Name string
}

func (n *Node) DisplayName() string {
	return n.Name
}

// MediaItem is a media item with its stored property values.
type MediaItem struct {
	Properties map[string]any
}

func (m *MediaItem) Attribute(name string) (any, bool) {
	v, ok := m.Properties[name]
	return v, ok
}

var (
	_ indexvalue.Content = (*Node)(nil)
	_ indexvalue.Media   = (*MediaItem)(nil)
)

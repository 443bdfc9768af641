// Package memory keeps content and media in maps. The dry-run mode resolves
// references against fixtures loaded into it, without a database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/BRO3886/content-indexer/internal/indexvalue"
	"github.com/BRO3886/content-indexer/internal/store"
	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Store struct {
	mu      sync.RWMutex
	content map[uuid.UUID]*store.Node
	media   map[uuid.UUID]*store.MediaItem
	// Err, when set, is returned by every lookup.
	Err error
}

func New() *Store {
	return &Store{
		content: make(map[uuid.UUID]*store.Node),
		media:   make(map[uuid.UUID]*store.MediaItem),
	}
}

type fixtures struct {
	Content []struct {
		Key  string `koanf:"key"`
		Name string `koanf:"name"`
	} `koanf:"content"`
	Media []struct {
		Key        string         `koanf:"key"`
		Properties map[string]any `koanf:"properties"`
	} `koanf:"media"`
}

// Load reads a YAML fixtures file of content nodes and media items into a new
// store.
func Load(path string) (*Store, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error loading fixtures %s: %w", path, err)
	}

	var f fixtures
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("error unmarshalling fixtures: %w", err)
	}

	s := New()
	for i, c := range f.Content {
		id, err := uuid.Parse(c.Key)
		if err != nil {
			return nil, fmt.Errorf("content fixture %d: %w", i, err)
		}
		s.PutContent(id, c.Name)
	}
	for i, m := range f.Media {
		id, err := uuid.Parse(m.Key)
		if err != nil {
			return nil, fmt.Errorf("media fixture %d: %w", i, err)
		}
		s.PutMedia(id, m.Properties)
	}
	return s, nil
}

func (s *Store) PutContent(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[id] = &store.Node{Name: name}
}

func (s *Store) PutMedia(id uuid.UUID, props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[id] = &store.MediaItem{Properties: props}
}

// Content returns the content lookup half of the store.
func (s *Store) Content() indexvalue.ContentService {
	return contentStore{s}
}

// Media returns the media lookup half of the store.
func (s *Store) Media() indexvalue.MediaService {
	return mediaStore{s}
}

type contentStore struct{ s *Store }

func (c contentStore) GetByID(_ context.Context, id uuid.UUID) (indexvalue.Content, bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if c.s.Err != nil {
		return nil, false, c.s.Err
	}
	n, ok := c.s.content[id]
	if !ok {
		return nil, false, nil
	}
	return n, true, nil
}

type mediaStore struct{ s *Store }

func (m mediaStore) GetByID(_ context.Context, id uuid.UUID) (indexvalue.Media, bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	if m.s.Err != nil {
		return nil, false, m.s.Err
	}
	item, ok := m.s.media[id]
	if !ok {
		return nil, false, nil
	}
	return item, true, nil
}

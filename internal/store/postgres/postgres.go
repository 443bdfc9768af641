// Package postgres resolves content nodes and media items from the CMS
// database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BRO3886/content-indexer/internal/indexvalue"
	"github.com/BRO3886/content-indexer/internal/store"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const (
	contentQuery = `SELECT name FROM cms_content WHERE key = $1 AND NOT trashed`
	mediaQuery   = `SELECT properties FROM cms_media WHERE key = $1 AND NOT trashed`
)

type Client struct {
	DB *sql.DB
}

// New opens the database and verifies the connection.
func New(dsn string, maxOpen, maxIdle int) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// ContentStore reads content nodes.
type ContentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) GetByID(ctx context.Context, id uuid.UUID) (indexvalue.Content, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, contentQuery, id.String()).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying content %s: %w", id, err)
	}
	return &store.Node{Name: name}, true, nil
}

// MediaStore reads media items.
type MediaStore struct {
	db *sql.DB
}

func NewMediaStore(db *sql.DB) *MediaStore {
	return &MediaStore{db: db}
}

func (s *MediaStore) GetByID(ctx context.Context, id uuid.UUID) (indexvalue.Media, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, mediaQuery, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying media %s: %w", id, err)
	}

	props := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return nil, false, fmt.Errorf("decoding media %s properties: %w", id, err)
		}
	}
	return &store.MediaItem{Properties: props}, true, nil
}

var (
	_ indexvalue.ContentService = (*ContentStore)(nil)
	_ indexvalue.MediaService   = (*MediaStore)(nil)
)

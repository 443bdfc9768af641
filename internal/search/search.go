package search

import (
	"context"

	"github.com/BRO3886/content-indexer/internal/types"
)

type Searcher interface {
	Index(ctx context.Context, doc types.IndexableDocument) error
	DeIndex(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

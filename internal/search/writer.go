package search

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/BRO3886/content-indexer/internal/types"
)

type action struct {
	Op   string         `json:"op"`
	ID   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

// Writer prints index and delete actions as JSON lines instead of sending
// them to a search engine.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Index(_ context.Context, doc types.IndexableDocument) error {
	return w.write(action{Op: "index", ID: doc.Id, Data: doc.Data})
}

func (w *Writer) DeIndex(_ context.Context, id string) error {
	return w.write(action{Op: "delete", ID: id})
}

func (w *Writer) Close(context.Context) error {
	return nil
}

func (w *Writer) write(a action) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(a)
}

var _ Searcher = (*Writer)(nil)

// Package indexer turns content change events into search documents.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BRO3886/content-indexer/internal/indexvalue"
	"github.com/BRO3886/content-indexer/internal/logger"
	"github.com/BRO3886/content-indexer/internal/metrics"
	"github.com/BRO3886/content-indexer/internal/search"
	"github.com/BRO3886/content-indexer/internal/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ValueFactory produces the index value of one field.
type ValueFactory interface {
	GetValue(ctx context.Context, field indexvalue.Field, culture string) (indexvalue.KeyValue, error)
}

// ContentCache drops cached content lookups.
type ContentCache interface {
	Forget(id uuid.UUID)
}

type Indexer struct {
	factory     ValueFactory
	searcher    search.Searcher
	cultures    []string
	concurrency int
	cache       ContentCache
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Indexer)

// WithCultures sets the cultures used for records that vary by culture but
// do not list their own.
func WithCultures(cultures ...string) Option {
	return func(ix *Indexer) {
		ix.cultures = cultures
	}
}

// WithConcurrency bounds the number of fields extracted at once per record.
func WithConcurrency(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithContentCache makes every event evict its record from c, so pickers
// that reference the record resolve its new name.
func WithContentCache(c ContentCache) Option {
	return func(ix *Indexer) {
		ix.cache = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) {
		ix.metrics = m
	}
}

func New(factory ValueFactory, searcher search.Searcher, opts ...Option) *Indexer {
	ix := &Indexer{
		factory:     factory,
		searcher:    searcher,
		concurrency: 4,
		logger:      logger.WithComponent("indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Handle decodes one queued event and applies it to the search index. It
// matches queue.MessageHandler. Undecodable events are dropped so they do not
// stall the partition.
func (ix *Indexer) Handle(ctx context.Context, data []byte) error {
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		ix.logger.Error("error unmarshalling event", "error", err)
		return nil
	}
	return ix.Apply(ctx, event)
}

// Apply indexes or de-indexes the record of event. Every document id the
// record may have been indexed under and is not indexed now gets deleted, so
// a delete or a record that stops varying by culture leaves no orphans.
func (ix *Indexer) Apply(ctx context.Context, event types.Event) error {
	if err := types.Validate(event); err != nil {
		ix.logger.Warn("skipping event", "op", event.Op, "error", err)
		return nil
	}
	record := event.Subject()
	ix.forget(record.Key)

	var docs []*types.IndexableDocument
	if event.Op != types.OpDelete && event.After != nil {
		var err error
		if docs, err = ix.Documents(ctx, record); err != nil {
			return err
		}
	}

	live := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if err := ix.searcher.Index(ctx, *doc); err != nil {
			return err
		}
		live[doc.Id] = true
		ix.count(metrics.OpIndex)
	}

	for _, id := range ix.documentIDs(record.Key, event.Before, event.After) {
		if live[id] {
			continue
		}
		ix.logger.Debug("deindexing document", "id", id)
		if err := ix.searcher.DeIndex(ctx, id); err != nil {
			return err
		}
		ix.count(metrics.OpDeIndex)
	}
	return nil
}

// documentIDs lists every id key may be indexed under: the invariant id, one
// per configured culture and one per culture either record version lists.
func (ix *Indexer) documentIDs(key string, versions ...*types.Content) []string {
	cultures := append([]string{""}, ix.cultures...)
	for _, c := range versions {
		if c != nil {
			cultures = append(cultures, c.Cultures...)
		}
	}

	seen := make(map[string]bool, len(cultures))
	ids := make([]string, 0, len(cultures))
	for _, culture := range cultures {
		id := types.DocumentID(key, culture)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (ix *Indexer) forget(key string) {
	if ix.cache == nil {
		return
	}
	if id, err := uuid.Parse(key); err == nil {
		ix.cache.Forget(id)
	}
}

// Documents builds one document per culture of c. A field that fails to
// extract is logged and left out; the rest of the record still indexes.
func (ix *Indexer) Documents(ctx context.Context, c *types.Content) ([]*types.IndexableDocument, error) {
	cultures := ix.culturesOf(c)
	docs := make([]*types.IndexableDocument, 0, len(cultures))
	for _, culture := range cultures {
		doc, err := ix.document(ctx, c, culture)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (ix *Indexer) document(ctx context.Context, c *types.Content, culture string) (*types.IndexableDocument, error) {
	results := make([]indexvalue.KeyValue, len(c.Properties))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, p := range c.Properties {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kv, err := ix.factory.GetValue(gctx, p.Field(c.Key), culture)
			switch {
			case err != nil:
				ix.observe(p.EditorAlias, metrics.OutcomeFailed)
				ix.logger.Error("field extraction failed",
					"key", c.Key, "field", p.Alias, "editor", p.EditorAlias, "culture", culture, "error", err)
				if errors.Is(err, indexvalue.ErrMalformedPayload) {
					ix.logger.Warn("stored value is corrupt", "key", c.Key, "field", p.Alias)
				}
				return nil
			case kv.IsZero():
				ix.observe(p.EditorAlias, metrics.OutcomeNoType)
				ix.logger.Debug("no data type for field",
					"field", p.Alias, "editor", p.EditorAlias, "data_type_id", p.DataTypeID)
				return nil
			case kv.Value == "":
				ix.observe(p.EditorAlias, metrics.OutcomeEmpty)
			default:
				ix.observe(p.EditorAlias, metrics.OutcomeOK)
			}
			results[i] = kv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing %s: %w", c.Key, err)
	}

	doc := types.NewDocument(c, culture)
	for _, kv := range results {
		if kv.IsZero() {
			continue
		}
		if _, reserved := doc.Data[kv.Key]; reserved {
			ix.logger.Warn("field shadows a reserved document field", "key", c.Key, "field", kv.Key)
			continue
		}
		doc.Data[kv.Key] = kv.Value
	}
	return doc, nil
}

func (ix *Indexer) culturesOf(c *types.Content) []string {
	if len(c.Cultures) > 0 {
		return c.Cultures
	}
	if len(ix.cultures) > 0 {
		for _, p := range c.Properties {
			if p.Varies {
				return ix.cultures
			}
		}
	}
	return []string{""}
}

func (ix *Indexer) observe(editor, outcome string) {
	if ix.metrics == nil {
		return
	}
	ix.metrics.FieldsExtracted.WithLabelValues(editor, outcome).Inc()
}

func (ix *Indexer) count(op string) {
	if ix.metrics == nil {
		return
	}
	ix.metrics.DocumentsIndexed.WithLabelValues(op).Inc()
}

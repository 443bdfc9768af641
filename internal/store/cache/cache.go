// Package cache wraps the entity stores with an in-process LRU so a bulk
// reindex does not hit the database once per reference.
package cache

import (
	"context"
	"time"

	"github.com/BRO3886/content-indexer/internal/indexvalue"
	"github.com/BRO3886/content-indexer/internal/metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize    = 1024
	DefaultTTL     = 5 * time.Minute
	DefaultMissTTL = 30 * time.Second
)

// Options bounds how many entries are kept and for how long. Misses get
// their own, shorter, TTL: a missing node may be created at any moment.
type Options struct {
	Size    int
	TTL     time.Duration
	MissTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MissTTL <= 0 {
		o.MissTTL = DefaultMissTTL
	}
	return o
}

type lookupFunc[T any] func(ctx context.Context, id uuid.UUID) (T, bool, error)

type result[T any] struct {
	value T
	found bool
}

type cached[T any] struct {
	name    string
	inner   lookupFunc[T]
	hits    *expirable.LRU[uuid.UUID, T]
	misses  *expirable.LRU[uuid.UUID, struct{}]
	group   singleflight.Group
	metrics *metrics.Metrics
}

func newCached[T any](name string, opts Options, inner lookupFunc[T], m *metrics.Metrics) *cached[T] {
	opts = opts.withDefaults()
	return &cached[T]{
		name:    name,
		inner:   inner,
		hits:    expirable.NewLRU[uuid.UUID, T](opts.Size, nil, opts.TTL),
		misses:  expirable.NewLRU[uuid.UUID, struct{}](opts.Size, nil, opts.MissTTL),
		metrics: m,
	}
}

func (c *cached[T]) get(ctx context.Context, id uuid.UUID) (T, bool, error) {
	if v, ok := c.hits.Get(id); ok {
		c.observe(metrics.ResultHit)
		return v, true, nil
	}
	if _, ok := c.misses.Get(id); ok {
		c.observe(metrics.ResultHit)
		var zero T
		return zero, false, nil
	}
	c.observe(metrics.ResultMiss)

	// the lookup is shared by every waiter on id, so one caller's
	// cancellation must not fail the others
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		value, found, err := c.inner(lookupCtx, id)
		if err != nil {
			return nil, err
		}
		if found {
			c.hits.Add(id, value)
		} else {
			c.misses.Add(id, struct{}{})
		}
		return result[T]{value: value, found: found}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	r := v.(result[T])
	return r.value, r.found, nil
}

func (c *cached[T]) forget(id uuid.UUID) {
	c.hits.Remove(id)
	c.misses.Remove(id)
}

func (c *cached[T]) observe(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.EntityCacheLookup.WithLabelValues(c.name, result).Inc()
}

// ContentService caches content lookups.
type ContentService struct {
	c *cached[indexvalue.Content]
}

func NewContentService(inner indexvalue.ContentService, opts Options, m *metrics.Metrics) *ContentService {
	return &ContentService{c: newCached[indexvalue.Content]("content", opts, inner.GetByID, m)}
}

func (s *ContentService) GetByID(ctx context.Context, id uuid.UUID) (indexvalue.Content, bool, error) {
	return s.c.get(ctx, id)
}

// Forget drops the cached lookup of a content node that just changed.
func (s *ContentService) Forget(id uuid.UUID) {
	s.c.forget(id)
}

// MediaService caches media lookups.
type MediaService struct {
	c *cached[indexvalue.Media]
}

func NewMediaService(inner indexvalue.MediaService, opts Options, m *metrics.Metrics) *MediaService {
	return &MediaService{c: newCached[indexvalue.Media]("media", opts, inner.GetByID, m)}
}

func (s *MediaService) GetByID(ctx context.Context, id uuid.UUID) (indexvalue.Media, bool, error) {
	return s.c.get(ctx, id)
}

var (
	_ indexvalue.ContentService = (*ContentService)(nil)
	_ indexvalue.MediaService   = (*MediaService)(nil)
)

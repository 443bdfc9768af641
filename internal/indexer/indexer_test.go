package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BRO3886/content-indexer/internal/datatype"
	"github.com/BRO3886/content-indexer/internal/indexvalue"
	"github.com/BRO3886/content-indexer/internal/metrics"
	"github.com/BRO3886/content-indexer/internal/store/cache"
	"github.com/BRO3886/content-indexer/internal/store/memory"
	"github.com/BRO3886/content-indexer/internal/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu      sync.Mutex
	indexed []types.IndexableDocument
	deleted []string
	err     error
}

func (f *fakeSearcher) Index(_ context.Context, doc types.IndexableDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeSearcher) DeIndex(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSearcher) Close(context.Context) error { return nil }

var (
	homeID  = uuid.MustParse("0123456789abcdef0123456789abcdef")
	imageID = uuid.MustParse("3f2b1a9c-4d5e-4f60-8a7b-9c0d1e2f3a4b")
)

func setup(t *testing.T, opts ...Option) (*Indexer, *fakeSearcher, *metrics.Metrics) {
	t.Helper()
	s := memory.New()
	s.PutContent(homeID, "Home")
	s.PutMedia(imageID, map[string]any{"umbracoFile": "/media/hero.jpg"})

	dataTypes := datatype.New(
		indexvalue.DataType{ID: -88, EditorAlias: "Umbraco.TextBox"},
		indexvalue.DataType{ID: 1048, EditorAlias: indexvalue.MediaPickerAlias},
		indexvalue.DataType{ID: 1050, EditorAlias: indexvalue.MultiNodeTreePickerAlias},
		indexvalue.DataType{ID: 1041, EditorAlias: indexvalue.TagsAlias},
	)
	factory := indexvalue.NewFactory(dataTypes, s.Media(), s.Content())
	searcher := &fakeSearcher{}
	m := metrics.New(prometheus.NewRegistry())
	opts = append([]Option{WithMetrics(m)}, opts...)
	return New(factory, searcher, opts...), searcher, m
}

func article() *types.Content {
	return &types.Content{
		Key:         "a1b2",
		Name:        "Launch",
		ContentType: "article",
		Properties: []types.Property{
			{Alias: "title", EditorAlias: "Umbraco.TextBox", DataTypeID: -88, Values: map[string]any{"": "We launched"}},
			{Alias: "hero", EditorAlias: indexvalue.MediaPickerAlias, DataTypeID: 1048,
				Values: map[string]any{"": `[{"mediaKey":"` + imageID.String() + `"}]`}},
			{Alias: "related", EditorAlias: indexvalue.MultiNodeTreePickerAlias, DataTypeID: 1050,
				Values: map[string]any{"": "umb://document/0123456789abcdef0123456789abcdef"}},
			{Alias: "tags", EditorAlias: indexvalue.TagsAlias, DataTypeID: 1041, Values: map[string]any{"": []any{"news", "launch"}}},
			{Alias: "legacy", EditorAlias: "Our.Umbraco.Gone", DataTypeID: 2001, Values: map[string]any{"": "x"}},
			{Alias: "summary", EditorAlias: "Umbraco.TextBox", DataTypeID: -88},
		},
	}
}

func TestApply_IndexesRecord(t *testing.T) {
	ix, searcher, m := setup(t)

	err := ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, After: article()})
	require.NoError(t, err)

	require.Len(t, searcher.indexed, 1)
	doc := searcher.indexed[0]
	assert.Equal(t, "a1b2", doc.Id)
	assert.Equal(t, map[string]any{
		"id":           "a1b2",
		"name":         "Launch",
		"content_type": "article",
		"title":        "We launched",
		"hero":         `["/media/hero.jpg"]`,
		"related":      "Home",
		"tags":         "news,launch",
		"summary":      "",
	}, doc.Data)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsIndexed.WithLabelValues(metrics.OpIndex)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldsExtracted.WithLabelValues("Our.Umbraco.Gone", metrics.OutcomeNoType)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldsExtracted.WithLabelValues("Umbraco.TextBox", metrics.OutcomeEmpty)))
}

func TestApply_FailedFieldDoesNotAbortRecord(t *testing.T) {
	ix, searcher, m := setup(t)
	c := article()
	c.Properties[1].Values[""] = `[{"mediaKey":`

	err := ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, After: c})
	require.NoError(t, err)

	require.Len(t, searcher.indexed, 1)
	doc := searcher.indexed[0]
	assert.NotContains(t, doc.Data, "hero")
	assert.Equal(t, "We launched", doc.Data["title"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldsExtracted.WithLabelValues(indexvalue.MediaPickerAlias, metrics.OutcomeFailed)))
}

func TestApply_Cultures(t *testing.T) {
	ix, searcher, _ := setup(t, WithCultures("en-US", "da-DK"))
	c := &types.Content{
		Key:  "k1",
		Name: "Page",
		Properties: []types.Property{
			{Alias: "title", EditorAlias: "Umbraco.TextBox", DataTypeID: -88, Varies: true,
				Values: map[string]any{"en-US": "Hello", "da-DK": "Hej"}},
			{Alias: "code", EditorAlias: "Umbraco.TextBox", DataTypeID: -88, Values: map[string]any{"": "P-1"}},
		},
	}

	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpCreate, After: c}))

	require.Len(t, searcher.indexed, 2)
	assert.Equal(t, "k1_en-us", searcher.indexed[0].Id)
	assert.Equal(t, "Hello", searcher.indexed[0].Data["title"])
	assert.Equal(t, "P-1", searcher.indexed[0].Data["code"])
	assert.Equal(t, "en-US", searcher.indexed[0].Data["culture"])
	assert.Equal(t, "k1_da-dk", searcher.indexed[1].Id)
	assert.Equal(t, "Hej", searcher.indexed[1].Data["title"])
}

func TestApply_InvariantRecordIgnoresConfiguredCultures(t *testing.T) {
	ix, searcher, _ := setup(t, WithCultures("en-US", "da-DK"))

	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, After: article()}))
	require.Len(t, searcher.indexed, 1)
	assert.NotContains(t, searcher.indexed[0].Data, "culture")
	assert.Equal(t, []string{"a1b2_en-us", "a1b2_da-dk"}, searcher.deleted)
}

func TestApply_Delete(t *testing.T) {
	ix, searcher, m := setup(t)
	c := article()
	c.Cultures = []string{"en-US", "da-DK"}

	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpDelete, Before: c}))

	assert.Empty(t, searcher.indexed)
	assert.Equal(t, []string{"a1b2", "a1b2_en-us", "a1b2_da-dk"}, searcher.deleted)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocumentsIndexed.WithLabelValues(metrics.OpDeIndex)))
}

func TestApply_DeleteWithoutProperties(t *testing.T) {
	ix, searcher, _ := setup(t, WithCultures("en-US", "da-DK"))
	before := &types.Content{Key: "k1", Name: "Page"}

	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpDelete, Before: before}))

	assert.Empty(t, searcher.indexed)
	assert.ElementsMatch(t, []string{"k1", "k1_en-us", "k1_da-dk"}, searcher.deleted)
}

func TestApply_RecordStopsVarying(t *testing.T) {
	ix, searcher, _ := setup(t, WithCultures("en-US", "da-DK"))
	before := &types.Content{
		Key:  "k1",
		Name: "Page",
		Properties: []types.Property{
			{Alias: "title", EditorAlias: "Umbraco.TextBox", DataTypeID: -88, Varies: true,
				Values: map[string]any{"en-US": "Hello", "da-DK": "Hej"}},
		},
	}
	after := &types.Content{
		Key:  "k1",
		Name: "Page",
		Properties: []types.Property{
			{Alias: "title", EditorAlias: "Umbraco.TextBox", DataTypeID: -88, Values: map[string]any{"": "Hello"}},
		},
	}

	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpCreate, After: before}))
	require.Len(t, searcher.indexed, 2)
	assert.Equal(t, []string{"k1"}, searcher.deleted)

	searcher.indexed, searcher.deleted = nil, nil
	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, Before: before, After: after}))

	require.Len(t, searcher.indexed, 1)
	assert.Equal(t, "k1", searcher.indexed[0].Id)
	assert.Equal(t, []string{"k1_en-us", "k1_da-dk"}, searcher.deleted)
}

func TestApply_RecordCulturesAreDeletedOnce(t *testing.T) {
	ix, searcher, _ := setup(t, WithCultures("en-US"))
	c := article()
	c.Cultures = []string{"EN-us", "da-DK"}

	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpDelete, Before: c}))
	assert.Equal(t, []string{"a1b2", "a1b2_en-us", "a1b2_da-dk"}, searcher.deleted)
}

type forgetSpy struct {
	forgotten []uuid.UUID
}

func (f *forgetSpy) Forget(id uuid.UUID) { f.forgotten = append(f.forgotten, id) }

func TestApply_EvictsRecordFromContentCache(t *testing.T) {
	spy := &forgetSpy{}
	ix, _, _ := setup(t, WithContentCache(spy))

	c := article()
	c.Key = homeID.String()
	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, After: c}))
	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpDelete, Before: c}))
	// keys that are not uuids have nothing cached
	require.NoError(t, ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, After: article()}))

	assert.Equal(t, []uuid.UUID{homeID, homeID}, spy.forgotten)
}

func TestApply_RenamedNodeResolvesAfterEviction(t *testing.T) {
	s := memory.New()
	s.PutContent(homeID, "Home")
	contentCache := cache.NewContentService(s.Content(), cache.Options{TTL: time.Hour, MissTTL: time.Hour}, nil)
	dataTypes := datatype.New(indexvalue.DataType{ID: 1050, EditorAlias: indexvalue.MultiNodeTreePickerAlias})
	factory := indexvalue.NewFactory(dataTypes, s.Media(), contentCache)
	searcher := &fakeSearcher{}
	ix := New(factory, searcher, WithContentCache(contentCache))

	page := &types.Content{
		Key:  "p1",
		Name: "Landing",
		Properties: []types.Property{
			{Alias: "related", EditorAlias: indexvalue.MultiNodeTreePickerAlias, DataTypeID: 1050,
				Values: map[string]any{"": "umb://document/0123456789abcdef0123456789abcdef"}},
		},
	}
	ctx := context.Background()
	require.NoError(t, ix.Apply(ctx, types.Event{Op: types.OpUpdate, After: page}))

	// the node is renamed and its own change event arrives
	s.PutContent(homeID, "Start")
	renamed := &types.Content{Key: homeID.String(), Name: "Start"}
	require.NoError(t, ix.Apply(ctx, types.Event{Op: types.OpUpdate, After: renamed}))

	require.NoError(t, ix.Apply(ctx, types.Event{Op: types.OpUpdate, After: page}))
	require.Len(t, searcher.indexed, 3)
	assert.Equal(t, "Home", searcher.indexed[0].Data["related"])
	assert.Equal(t, "Start", searcher.indexed[2].Data["related"])
}

func TestApply_SearcherFailurePropagates(t *testing.T) {
	ix, searcher, _ := setup(t)
	searcher.err = errors.New("bulk rejected")

	err := ix.Apply(context.Background(), types.Event{Op: types.OpUpdate, After: article()})
	assert.ErrorIs(t, err, searcher.err)
}

func TestHandle(t *testing.T) {
	ix, searcher, _ := setup(t)

	data, err := json.Marshal(types.Event{Op: types.OpUpdate, After: article(), TimeStamp: 1700000000000})
	require.NoError(t, err)
	require.NoError(t, ix.Handle(context.Background(), data))
	assert.Len(t, searcher.indexed, 1)

	// undecodable and empty events are dropped
	assert.NoError(t, ix.Handle(context.Background(), []byte("{not json")))
	assert.NoError(t, ix.Handle(context.Background(), []byte(`{"op":"u"}`)))
	assert.Len(t, searcher.indexed, 1)
}

func TestDocuments_ReservedFieldIsNotOverwritten(t *testing.T) {
	ix, _, _ := setup(t)
	c := &types.Content{
		Key:  "k1",
		Name: "Real name",
		Properties: []types.Property{
			{Alias: "name", EditorAlias: "Umbraco.TextBox", DataTypeID: -88, Values: map[string]any{"": "Shadow"}},
		},
	}

	docs, err := ix.Documents(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Real name", docs[0].Data["name"])
}

package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BRO3886/content-indexer/internal/config"
	"github.com/BRO3886/content-indexer/internal/logger"
	"github.com/BRO3886/content-indexer/internal/search"
	"github.com/BRO3886/content-indexer/internal/types"
	external "github.com/opensearch-project/opensearch-go/v2"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

type openSearchClient struct {
	client        *external.Client
	index         string
	buff          []types.IndexableDocument
	flushInterval time.Duration
	buffSize      int
	m             sync.Mutex
	logger        *slog.Logger
}

func New(ctx context.Context, c *config.Config) (search.Searcher, error) {
	client, err := external.NewClient(external.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Addresses:  c.Opensearch.URLs,
		MaxRetries: c.Opensearch.MaxRetries,
		Username:   c.Opensearch.Username,
		Password:   c.Opensearch.Password,
	})
	if err != nil {
		return nil, err
	}

	s := newClient(client, c.Opensearch.Index.Name, c.Opensearch.Index.BuffSize,
		time.Second*time.Duration(c.Opensearch.Index.FlushInterval))

	if err := s.checkAndCreateIndex(ctx, s.index); err != nil {
		return nil, err
	}

	go s.startFlushTicker(ctx)

	return s, nil
}

func newClient(client *external.Client, index string, buffSize int, flushInterval time.Duration) *openSearchClient {
	return &openSearchClient{
		client:        client,
		index:         index,
		buff:          make([]types.IndexableDocument, 0, buffSize),
		flushInterval: flushInterval,
		buffSize:      buffSize,
		logger:        logger.WithComponent("opensearch"),
	}
}

func (s *openSearchClient) checkAndCreateIndex(ctx context.Context, index string) error {
	if resp, err := s.client.Indices.Exists([]string{index}); err == nil {
		resp.Body.Close()
		// early return if index already exists
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	settings := strings.NewReader(`{
        "settings": {
            "index": {
                "number_of_shards": 1,
                "number_of_replicas": 0
            }
        },
        "mappings": {
            "dynamic_templates": [
                {
                    "fields_as_text": {
                        "match_mapping_type": "string",
                        "mapping": { "type": "text", "fields": { "raw": { "type": "keyword", "ignore_above": 256 } } }
                    }
                }
            ],
            "properties": {
                "id": { "type": "keyword" },
                "content_type": { "type": "keyword" },
                "culture": { "type": "keyword" }
            }
        }
    }`)

	req := api.IndicesCreateRequest{
		Index: index,
		Body:  settings,
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.IsError() {
		return fmt.Errorf("failed to create index: %s %s", resp.Status(), string(body))
	}

	if resp.HasWarnings() {
		s.logger.Warn("index create warnings", "warnings", resp.Warnings())
	}

	s.logger.Info("index created", "index", index)

	return nil
}

func (s *openSearchClient) Index(ctx context.Context, doc types.IndexableDocument) error {
	return s.enqueue(ctx, doc)
}

// DeIndex queues a delete action. It shares the buffer with index actions so
// bulk ordering keeps an earlier index of the same id from landing after it.
func (s *openSearchClient) DeIndex(ctx context.Context, id string) error {
	return s.enqueue(ctx, types.IndexableDocument{Id: id, DeIndex: true})
}

func (s *openSearchClient) enqueue(ctx context.Context, doc types.IndexableDocument) error {
	s.m.Lock()
	s.buff = append(s.buff, doc)
	full := s.buffSize > 0 && len(s.buff) >= s.buffSize
	s.m.Unlock()

	if full {
		return s.flush(ctx)
	}
	return nil
}

func (s *openSearchClient) startFlushTicker(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.flush(ctx); err != nil {
				s.logger.Error("failed to flush documents", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// bulkBody renders docs as a bulk request body.
func bulkBody(index string, docs []types.IndexableDocument, log *slog.Logger) string {
	bulkReq := strings.Builder{}
	for _, doc := range docs {
		meta := map[string]string{"_index": index, "_id": doc.Id}
		if doc.DeIndex {
			action, _ := json.Marshal(map[string]any{"delete": meta})
			bulkReq.Write(action)
			bulkReq.WriteByte('\n')
			continue
		}
		if len(doc.Data) == 0 {
			log.Warn("empty document", "id", doc.Id)
			continue
		}
		jsonData, err := json.Marshal(doc.Data)
		if err != nil {
			log.Error("failed to marshal document", "id", doc.Id, "error", err)
			continue
		}
		action, _ := json.Marshal(map[string]any{"index": meta})
		bulkReq.Write(action)
		bulkReq.WriteByte('\n')
		bulkReq.Write(jsonData)
		bulkReq.WriteByte('\n')
	}
	return bulkReq.String()
}

func (s *openSearchClient) flush(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	if len(s.buff) == 0 {
		return nil
	}

	s.logger.Debug("flushing documents", "count", len(s.buff))

	reqBody := bulkBody(s.index, s.buff, s.logger)
	if reqBody == "" {
		s.buff = s.buff[:0]
		return nil
	}

	req := api.BulkRequest{
		Body: strings.NewReader(reqBody),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.IsError() {
		return fmt.Errorf("failed to flush documents: %s %s", resp.Status(), string(body))
	}

	s.logger.Info("flushed documents", "count", len(s.buff))

	s.buff = make([]types.IndexableDocument, 0, s.buffSize)

	return nil
}

// Close flushes whatever is still buffered.
func (s *openSearchClient) Close(ctx context.Context) error {
	return s.flush(ctx)
}

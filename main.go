package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BRO3886/content-indexer/internal/config"
	"github.com/BRO3886/content-indexer/internal/datatype"
	"github.com/BRO3886/content-indexer/internal/indexer"
	"github.com/BRO3886/content-indexer/internal/indexvalue"
	"github.com/BRO3886/content-indexer/internal/kafka"
	"github.com/BRO3886/content-indexer/internal/logger"
	"github.com/BRO3886/content-indexer/internal/metrics"
	"github.com/BRO3886/content-indexer/internal/opensearch"
	"github.com/BRO3886/content-indexer/internal/queue"
	"github.com/BRO3886/content-indexer/internal/search"
	"github.com/BRO3886/content-indexer/internal/store/cache"
	"github.com/BRO3886/content-indexer/internal/store/memory"
	"github.com/BRO3886/content-indexer/internal/store/postgres"
	"github.com/BRO3886/content-indexer/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mode         string
	configPath   string
	streamPath   string
	fixturesPath string
	outPath      string
)

func init() {
	flag.StringVar(&mode, "mode", "ingest", "mode to run in (ingest|index|dryrun)")
	flag.StringVar(&configPath, "config", config.DefaultPath, "path to the config file")
	flag.StringVar(&streamPath, "stream", "stream.jsonl", "content events to ingest")
	flag.StringVar(&fixturesPath, "fixtures", "configs/fixtures.yaml", "content and media the dryrun mode resolves against")
	flag.StringVar(&outPath, "out", "dryrun.jsonl", "where the dryrun mode writes index actions")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kafkaCfg := kafka.NewConfig(
		kafka.WithBrokers(cfg.Kafka.Brokers...),
		kafka.WithSyncProducer(), // comment to run async producer
		kafka.WithConsumeOldest(),
		kafka.WithTopics(cfg.Kafka.Topic.Name),
		kafka.WithConsumerGroup(cfg.Kafka.ConsumerGroup),
		kafka.WithRetry(
			cfg.Kafka.Retry.Max,
			time.Duration(cfg.Kafka.Retry.Backoff)*time.Millisecond,
		),
	)

	switch mode {
	case "index":
		if err := runIndexing(ctx, cfg, kafkaCfg, log); err != nil {
			log.Error("indexing stopped", "error", err)
			os.Exit(1)
		}
	case "ingest":
		enqueuer, err := kafka.NewEnqueuer(ctx, kafkaCfg)
		if err != nil {
			log.Error("error starting kafka enqueuer", "error", err)
			os.Exit(1)
		}
		if err := runIngestion(ctx, cfg, enqueuer, log); err != nil {
			log.Error("ingestion stopped", "error", err)
			os.Exit(1)
		}
	case "dryrun":
		if err := runDryRun(ctx, cfg, log); err != nil {
			log.Error("dry run stopped", "error", err)
			os.Exit(1)
		}
	default:
		log.Error("unknown mode", "mode", mode)
		os.Exit(2)
	}
}

func runIndexing(ctx context.Context, cfg *config.Config, kafkaCfg *kafka.Config, log *slog.Logger) error {
	m := metrics.New(prometheus.NewRegistry())
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	db, err := postgres.New(cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := opensearch.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error starting opensearch searcher: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := searcher.Close(closeCtx); err != nil {
			log.Error("final flush failed", "error", err)
		}
	}()

	ix := newIndexer(cfg, postgres.NewContentStore(db.DB), postgres.NewMediaStore(db.DB), searcher, m, log)

	dequeuer, err := kafka.NewDequeuer(ctx, kafkaCfg)
	if err != nil {
		return fmt.Errorf("error starting kafka dequeuer: %w", err)
	}
	defer dequeuer.Close()

	log.Info("started indexing", "topic", cfg.Kafka.Topic.Name)
	return dequeuer.Dequeue(ctx, cfg.Kafka.Topic.Name, ix.Handle)
}

// newIndexer wires the value factory and the indexer over the given entity
// stores, putting the expiring caches in front of them when enabled.
func newIndexer(
	cfg *config.Config,
	content indexvalue.ContentService,
	media indexvalue.MediaService,
	searcher search.Searcher,
	m *metrics.Metrics,
	log *slog.Logger,
) *indexer.Indexer {
	opts := []indexer.Option{
		indexer.WithCultures(cfg.Indexer.Cultures...),
		indexer.WithConcurrency(cfg.Indexer.Concurrency),
		indexer.WithMetrics(m),
	}
	if cfg.Cache.Enabled {
		cacheOpts := cache.Options{
			Size:    cfg.Cache.Size,
			TTL:     time.Duration(cfg.Cache.TTL) * time.Second,
			MissTTL: time.Duration(cfg.Cache.MissTTL) * time.Second,
		}
		contentCache := cache.NewContentService(content, cacheOpts, m)
		content = contentCache
		media = cache.NewMediaService(media, cacheOpts, m)
		opts = append(opts, indexer.WithContentCache(contentCache))
	}

	dataTypes := datatype.FromConfig(cfg.DataTypes)
	factory := indexvalue.NewFactory(dataTypes, media, content)
	log.Info("value factory ready", "data_types", dataTypes.Len(), "converters", factory.Converters().Aliases())

	return indexer.New(factory, searcher, opts...)
}

// runDryRun indexes the stream against fixtures instead of Postgres and writes
// the resulting actions to outPath instead of OpenSearch.
func runDryRun(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := memory.Load(fixturesPath)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	m := metrics.New(prometheus.NewRegistry())
	ix := newIndexer(cfg, store.Content(), store.Media(), search.NewWriter(out), m, log)

	log.Info("started dry run", "stream", streamPath, "fixtures", fixturesPath, "out", outPath)
	applied, err := readStream(ctx, streamPath, log, func(_ []byte, event types.Event) error {
		return ix.Apply(ctx, event)
	})
	if err != nil {
		return err
	}
	log.Info("dry run completed", "events", applied)
	return nil
}

func runIngestion(ctx context.Context, cfg *config.Config, enqueuer queue.Enqueuer, log *slog.Logger) error {
	log.Info("started ingestion", "stream", streamPath)
	defer enqueuer.Close()

	sent, err := readStream(ctx, streamPath, log, func(line []byte, event types.Event) error {
		return enqueuer.Enqueue(ctx, cfg.Kafka.Topic.Name, event.Subject().Key, line)
	})
	if err != nil {
		return err
	}
	log.Info("ingestion completed", "events", sent)
	return nil
}

// readStream calls fn with every valid event of the JSON lines file at path
// and returns how many fn accepted. Invalid lines and fn errors are logged and
// skipped.
func readStream(ctx context.Context, path string, log *slog.Logger, fn func(line []byte, event types.Event) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read stream file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	accepted := 0
	for i := 0; scanner.Scan(); i++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event types.Event
		if err := json.Unmarshal(line, &event); err != nil {
			log.Warn("error unmarshalling event", "line", i, "error", err)
			continue
		}
		// validations if any
		if err := types.Validate(event); err != nil {
			log.Warn("invalid event", "line", i, "error", err)
			continue
		}
		if time.UnixMilli(event.TimeStamp).After(time.Now()) {
			log.Warn("event is in the future", "line", i)
			continue
		}
		if err := fn(line, event); err != nil {
			log.Warn("event not applied", "line", i, "error", err)
			continue
		}
		accepted++
		if ctx.Err() != nil {
			break
		}
	}
	return accepted, scanner.Err()
}

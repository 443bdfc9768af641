package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   struct {
			Name       string `koanf:"name"`
			Partitions int    `koanf:"partitions"`
		} `koanf:"topic"`
		ConsumerGroup string `koanf:"consumer_group"`
		Retry         struct {
			Max     int `koanf:"max"`
			Backoff int `koanf:"backoff"`
		} `koanf:"retry"`
	} `koanf:"kafka"`
	Opensearch struct {
		URLs       []string `koanf:"urls"`
		Username   string   `koanf:"username"`
		Password   string   `koanf:"password"`
		MaxRetries int      `koanf:"max_retries"`
		Index      struct {
			Name          string `koanf:"name"`
			BuffSize      int    `koanf:"buff_size"`
			FlushInterval int    `koanf:"flush_interval"`
		} `koanf:"index"`
	} `koanf:"opensearch"`
	Postgres struct {
		DSN          string `koanf:"dsn"`
		MaxOpenConns int    `koanf:"max_open_conns"`
		MaxIdleConns int    `koanf:"max_idle_conns"`
	} `koanf:"postgres"`
	Cache struct {
		Enabled bool `koanf:"enabled"`
		Size    int  `koanf:"size"`
		// TTL and MissTTL are in seconds.
		TTL     int `koanf:"ttl"`
		MissTTL int `koanf:"miss_ttl"`
	} `koanf:"cache"`
	Indexer struct {
		Cultures    []string `koanf:"cultures"`
		Concurrency int      `koanf:"concurrency"`
	} `koanf:"indexer"`
	Logging struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"logging"`
	Metrics struct {
		Enabled bool   `koanf:"enabled"`
		Addr    string `koanf:"addr"`
	} `koanf:"metrics"`
	DataTypes []DataType `koanf:"data_types"`
}

// DataType is a data type definition: which property editor backs the data
// type with the given id.
type DataType struct {
	ID          int    `koanf:"id"`
	Name        string `koanf:"name"`
	EditorAlias string `koanf:"editor_alias"`
}

// Load reads the YAML config at path and fills in defaults for anything the
// file leaves unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error loading config %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic.Name == "" {
		c.Kafka.Topic.Name = "content-events"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "content-indexer"
	}
	if c.Kafka.Retry.Max == 0 {
		c.Kafka.Retry.Max = 3
	}
	if c.Kafka.Retry.Backoff == 0 {
		c.Kafka.Retry.Backoff = 100
	}
	if len(c.Opensearch.URLs) == 0 {
		c.Opensearch.URLs = []string{"http://localhost:9200"}
	}
	if c.Opensearch.Index.Name == "" {
		c.Opensearch.Index.Name = "content"
	}
	if c.Opensearch.Index.BuffSize == 0 {
		c.Opensearch.Index.BuffSize = 100
	}
	if c.Opensearch.Index.FlushInterval == 0 {
		c.Opensearch.Index.FlushInterval = 5
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 2
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = 1024
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 300
	}
	if c.Cache.MissTTL == 0 {
		c.Cache.MissTTL = 30
	}
	if c.Indexer.Concurrency == 0 {
		c.Indexer.Concurrency = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}

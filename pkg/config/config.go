// Package config loads configuration from a YAML file with environment
// variable overrides. Every binary shares the same Config and reads the
// sections it needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Merge    MergeConfig    `yaml:"merge"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables document status updates.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentTokens string `yaml:"documentTokens"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// search result cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// IndexerConfig controls partition layout and when the builder flushes.
type IndexerConfig struct {
	DataDir           string        `yaml:"dataDir"`
	BucketCount       int           `yaml:"bucketCount"`
	ArenaChunkSize    int           `yaml:"arenaChunkSize"`
	NodeChunkCapacity int           `yaml:"nodeChunkCapacity"`
	ArenaLimit        int64         `yaml:"arenaLimit"`
	BuildShards       int           `yaml:"buildShards"`
	MaxBuildDocs      int           `yaml:"maxBuildDocs"`
	FlushInterval     time.Duration `yaml:"flushInterval"`
	LedgerPath        string        `yaml:"ledgerPath"`
}

// MergeConfig controls a merge round.
type MergeConfig struct {
	Threads      int    `yaml:"threads"`
	OutputShards int    `yaml:"outputShards"`
	OutputPrefix string `yaml:"outputPrefix"`
	InputPattern string `yaml:"inputPattern"`
}

// SearchConfig controls query limits and result caching.
type SearchConfig struct {
	MaxResults   int           `yaml:"maxResults"`
	DefaultLimit int           `yaml:"defaultLimit"`
	CacheTTL     time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Indexer.DataDir == "":
		return fmt.Errorf("indexer.dataDir must be set")
	case c.Indexer.BuildShards < 1:
		return fmt.Errorf("indexer.buildShards must be positive, got %d", c.Indexer.BuildShards)
	case c.Indexer.MaxBuildDocs < 1:
		return fmt.Errorf("indexer.maxBuildDocs must be positive, got %d", c.Indexer.MaxBuildDocs)
	case c.Merge.Threads < 1:
		return fmt.Errorf("merge.threads must be positive, got %d", c.Merge.Threads)
	case c.Merge.OutputShards < 1:
		return fmt.Errorf("merge.outputShards must be positive, got %d", c.Merge.OutputShards)
	case c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxResults:
		return fmt.Errorf("search.defaultLimit must be in [1, %d], got %d", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "searchplatform",
			User:            "searchplatform",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "partition-indexer",
			Topics: KafkaTopics{
				DocumentTokens: "document-tokens",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Indexer: IndexerConfig{
			DataDir:           "./data/index",
			BucketCount:       1 << 16,
			ArenaChunkSize:    1 << 20,
			NodeChunkCapacity: 4096,
			BuildShards:       16,
			MaxBuildDocs:      50000,
			FlushInterval:     30 * time.Second,
		},
		Merge: MergeConfig{
			Threads:      4,
			OutputShards: 38,
			OutputPrefix: "merged-",
			InputPattern: "build-*/manifest.json",
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 10,
			CacheTTL:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SP_INDEXER_BUILD_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BuildShards = n
		}
	}
	if v := os.Getenv("SP_MERGE_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Merge.Threads = n
		}
	}
	if v := os.Getenv("SP_MERGE_OUTPUT_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Merge.OutputShards = n
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

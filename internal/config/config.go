// Package config defines all configuration for the order indexer.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via INDEXER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	ChainID      int            `mapstructure:"chain_id"`
	AcceptOrders bool           `mapstructure:"accept_orders"`
	Master       bool           `mapstructure:"master"`
	MaxFeeBPS    int            `mapstructure:"max_fee_bps"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Queue        QueueConfig    `mapstructure:"queue"`
	Ingest       IngestConfig   `mapstructure:"ingest"`
	Relay        RelayConfig    `mapstructure:"relay"`
	Logging      LoggingConfig  `mapstructure:"logging"`
	API          APIConfig      `mapstructure:"api"`
}

// PostgresConfig holds the connection string for the projection store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig holds the connection info for the job-queue broker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig tunes the job queue abstraction.
//
//   - InitialBackoff / BackoffFactor / MaxAttempts: retry policy;
//     MaxAttempts counts the first run.
//   - JobTimeout: per-job timeout before the queue aborts and retries.
//   - MakerUpdateConcurrency / DefaultConcurrency: asynq priority weights
//     of the maker-update (bulk) and default queues; their sum plus 2 is
//     the consumer's total worker count. No queue has a cap of its own.
//   - RetainCompleted / RetainFailed: loaded, but not applied by the
//     queue package.
type QueueConfig struct {
	InitialBackoff         time.Duration `mapstructure:"initial_backoff"`
	BackoffFactor          float64       `mapstructure:"backoff_factor"`
	MaxAttempts            int           `mapstructure:"max_attempts"`
	JobTimeout              time.Duration `mapstructure:"job_timeout"`
	MakerUpdateConcurrency int           `mapstructure:"maker_update_concurrency"`
	DefaultConcurrency     int           `mapstructure:"default_concurrency"`
	RetainCompleted        int           `mapstructure:"retain_completed"`
	RetainFailed           int           `mapstructure:"retain_failed"`
}

// IngestConfig controls the event-ingestor's relationship with the event
// source.
type IngestConfig struct {
	Backfill       bool          `mapstructure:"backfill"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxBatchBlocks uint64        `mapstructure:"max_batch_blocks"`
}

// RelayConfig holds the OpenSea orderbook-relay and Arweave archival sink
// settings.
type RelayConfig struct {
	OpenSeaAPIKey   string `mapstructure:"opensea_api_key"`
	OpenSeaTestnet  bool   `mapstructure:"opensea_testnet"`
	ArweaveEndpoint string `mapstructure:"arweave_endpoint"`
	LiveTailEnabled bool   `mapstructure:"live_tail_enabled"`
	LiveTailPort    int    `mapstructure:"live_tail_port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig controls the thin query API server.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: INDEXER_POSTGRES_DSN, INDEXER_REDIS_PASSWORD,
// OPENSEA_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("INDEXER_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if pass := os.Getenv("INDEXER_REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if key := os.Getenv("OPENSEA_API_KEY"); key != "" {
		cfg.Relay.OpenSeaAPIKey = key
	}
	if os.Getenv("INDEXER_ACCEPT_ORDERS") == "false" {
		cfg.AcceptOrders = false
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required (1 for mainnet, 4 for rinkeby)")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be > 0")
	}
	if c.Queue.MakerUpdateConcurrency <= 0 {
		return fmt.Errorf("queue.maker_update_concurrency must be > 0")
	}
	if c.Queue.JobTimeout <= 0 {
		return fmt.Errorf("queue.job_timeout must be > 0")
	}
	if c.MaxFeeBPS <= 0 {
		return fmt.Errorf("max_fee_bps must be > 0")
	}
	return nil
}

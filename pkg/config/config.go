// Package config loads the service configuration from a YAML file and
// applies CQ_* environment-variable overrides on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RPC       RPCConfig       `yaml:"rpc"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// RPCConfig holds the JSON-over-TCP compile endpoint settings. A zero port
// disables the listener.
type RPCConfig struct {
	Port int `yaml:"port"`
}

// PostgresConfig holds PostgreSQL connection parameters. Enabled turns on
// analytics snapshot persistence.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CompileEvents   string `yaml:"compileEvents"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

// RedisConfig holds Redis connection and compiled-query cache parameters.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

// IndexConfig controls the reference paper index. An empty Path keeps the
// index in memory; SeedFile, when set, is a JSON-lines file of papers loaded
// at startup.
type IndexConfig struct {
	Path      string `yaml:"path"`
	SeedFile  string `yaml:"seedFile"`
	BatchSize int    `yaml:"batchSize"`
}

// SearchConfig controls query execution limits and timeouts.
type SearchConfig struct {
	MaxResults     int           `yaml:"maxResults"`
	DefaultLimit   int           `yaml:"defaultLimit"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxQueryLength int           `yaml:"maxQueryLength"`
}

// AnalyticsConfig controls compile-outcome aggregation and snapshotting.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	TopN             int           `yaml:"topN"`

	// SnapshotRetention is the number of snapshots kept in Postgres; zero keeps all.
	SnapshotRetention int `yaml:"snapshotRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for the compile pipeline.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
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

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.defaultLimit %d must be positive and at most search.maxResults %d",
			c.Search.DefaultLimit, c.Search.MaxResults)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty when kafka is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sampleRate %v must be within [0, 1]", c.Tracing.SampleRate)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		RPC: RPCConfig{
			Port: 9091,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "classicq",
			User:            "classicq",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "classicq-analytics",
			Topics: KafkaTopics{
				CompileEvents:   "classicq.compile-events",
				CacheInvalidate: "classicq.cache-invalidate",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			CacheTTL:  10 * time.Minute,
			KeyPrefix: "classicq",
		},
		Index: IndexConfig{
			BatchSize: 500,
		},
		Search: SearchConfig{
			MaxResults:     2000,
			DefaultLimit:   10,
			Timeout:        5 * time.Second,
			MaxQueryLength: 4096,
		},
		Analytics: AnalyticsConfig{
			Port:              8083,
			BufferSize:        1024,
			BatchSize:         100,
			FlushInterval:     2 * time.Second,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 1440,
			TopN:              20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    true,
			SampleRate: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CQ_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("CQ_SERVER_PORT", &cfg.Server.Port)
	setInt("CQ_RPC_PORT", &cfg.RPC.Port)
	setInt("CQ_ANALYTICS_PORT", &cfg.Analytics.Port)
	setInt("CQ_METRICS_PORT", &cfg.Metrics.Port)

	setBool("CQ_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("CQ_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("CQ_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("CQ_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("CQ_POSTGRES_USER", &cfg.Postgres.User)
	setString("CQ_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("CQ_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	setBool("CQ_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("CQ_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	setBool("CQ_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("CQ_REDIS_ADDR", &cfg.Redis.Addr)
	setString("CQ_REDIS_PASSWORD", &cfg.Redis.Password)
	if v := os.Getenv("CQ_REDIS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.CacheTTL = d
		}
	}

	setString("CQ_INDEX_PATH", &cfg.Index.Path)
	setString("CQ_INDEX_SEED_FILE", &cfg.Index.SeedFile)

	setString("CQ_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("CQ_LOGGING_FORMAT", &cfg.Logging.Format)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

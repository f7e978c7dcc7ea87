package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/CatalogSyncGo/pkg/config"
	"github.com/utafrali/CatalogSyncGo/pkg/database"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CATALOG_HTTP_PORT" envDefault:"8080"`

	// External catalog source
	SourceURL      string        `env:"SOURCE_URL" envDefault:"https://dummyjson.com"`
	SourcePageSize int           `env:"SOURCE_PAGE_SIZE" envDefault:"100"`
	CacheDir       string        `env:"CACHE_DIR" envDefault:".cache/responses"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`

	// Scheduled ingestion; zero disables the scheduler.
	IngestInterval time.Duration `env:"INGEST_INTERVAL" envDefault:"0"`
	IngestWorkers  int           `env:"INGEST_WORKERS" envDefault:"4"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Redis product cache; disabled when the host is empty.
	RedisHost     string        `env:"REDIS_HOST" envDefault:""`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisTTL      time.Duration `env:"REDIS_TTL" envDefault:"5m"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine       string        `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	ElasticsearchURL   string        `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string        `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_products"`
	SearchTimeout      time.Duration `env:"SEARCH_TIMEOUT" envDefault:"2s"`
	IndexChunkSize     int           `env:"INDEX_CHUNK_SIZE" envDefault:"500"`

	// Kafka run-report events; disabled when no brokers are configured.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"catalog.ingest"`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, apperrors.Configuration(err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants. Failures here are fatal at
// startup, never at request time.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return apperrors.Configuration(fmt.Sprintf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.SourceURL == "" {
		return apperrors.Configuration("SOURCE_URL must not be empty")
	}
	if c.SourcePageSize < 1 {
		return apperrors.Configuration(fmt.Sprintf("invalid source page size: %d", c.SourcePageSize))
	}
	if c.CacheDir == "" {
		return apperrors.Configuration("CACHE_DIR must not be empty")
	}
	switch c.SearchEngine {
	case "elasticsearch", "memory":
	default:
		return apperrors.Configuration(fmt.Sprintf("unknown search engine: %s", c.SearchEngine))
	}
	return nil
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return &pg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	r := database.DefaultRedisConfig()
	r.Host = c.RedisHost
	r.Port = c.RedisPort
	r.Password = c.RedisPassword
	r.DB = c.RedisDB
	return r
}

// RedisEnabled reports whether the optional product cache is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// KafkaEnabled reports whether run-report events are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaBrokers[0] != ""
}

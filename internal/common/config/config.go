// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Matching  MatchingConfig          `mapstructure:"matching"`
	Exchange  ExchangeConfig          `mapstructure:"exchange"`
	Messaging MessagingConfig         `mapstructure:"messaging"`
	Tracing   TracingConfig           `mapstructure:"tracing"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// Enabled reports whether any Elasticsearch node is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Domain Configuration ---

// Pool sources for ranking and search.
const (
	PoolSourcePostgres      = "postgres"
	PoolSourceElasticsearch = "elasticsearch"
	PoolSourceExchange      = "exchange"
)

// MatchingConfig holds the tunable scoring parameters.
type MatchingConfig struct {
	WeightComposition   float64 `mapstructure:"weight_composition"`
	WeightDistance      float64 `mapstructure:"weight_distance"`
	RadiusKm            float64 `mapstructure:"radius_km"`
	TopK                int     `mapstructure:"top_k"`
	MinSimilarity       float64 `mapstructure:"min_similarity"`
	RequireExplicitUnit bool    `mapstructure:"require_explicit_unit"`
	PoolSource          string  `mapstructure:"pool_source"`
	FallbackToLocal     bool    `mapstructure:"fallback_to_local"`
}

// ExchangeConfig configures the external analyze/ask API and its wrapping policies.
type ExchangeConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   int             `mapstructure:"timeout"` // milliseconds
	Retry     RetryConfig     `mapstructure:"retry"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RetryConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxRetries        int  `mapstructure:"max_retries"`
	BaseDelay         int  `mapstructure:"base_delay"` // milliseconds
	MaxDelay          int  `mapstructure:"max_delay"`  // milliseconds
	RetryServerErrors bool `mapstructure:"retry_server_errors"`
}

// Cache backends.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Backend  string `mapstructure:"backend"`
	TTL      int    `mapstructure:"ttl"` // milliseconds
	Capacity int    `mapstructure:"capacity"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Limit   int  `mapstructure:"limit"`
	Window  int  `mapstructure:"window"` // milliseconds
}

// Messaging backends.
const (
	MessagingBackendNATS = "nats"
	MessagingBackendSNS  = "sns"
)

// MessagingConfig selects where match events are published.
type MessagingConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Backend string    `mapstructure:"backend"`
	URL     string    `mapstructure:"url"`
	Name    string    `mapstructure:"name"`
	SNS     SNSConfig `mapstructure:"sns"`
}

// SNSConfig points the sns backend at a topic. Credentials come from the
// default AWS chain.
type SNSConfig struct {
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
}

// TracingConfig enables OpenTelemetry spans around worker jobs.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

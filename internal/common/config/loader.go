package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml when
// present and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return decode(v)
}

// LoadFromFile reads a single YAML file with the same override rules as Load.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if val := os.Getenv("EXCHANGE_API_URL"); val != "" {
		cfg.Exchange.BaseURL = val
	}
	if val := os.Getenv("NATS_URL"); val != "" {
		cfg.Messaging.URL = val
	}
	if val := os.Getenv("SNS_TOPIC_ARN"); val != "" {
		cfg.Messaging.SNS.TopicARN = val
	}
	if cfg.Messaging.SNS.Region == "" {
		cfg.Messaging.SNS.Region = os.Getenv("AWS_REGION")
	}
	if cfg.Messaging.SNS.Region == "" {
		cfg.Messaging.SNS.Region = "us-east-1"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "circ-exchange"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "circ-listings"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	m := &cfg.Matching
	if m.WeightComposition == 0 && m.WeightDistance == 0 {
		m.WeightComposition = 0.7
		m.WeightDistance = 0.3
	}
	if m.RadiusKm == 0 {
		m.RadiusKm = 1000
	}
	if m.PoolSource == "" {
		m.PoolSource = PoolSourcePostgres
	}

	ex := &cfg.Exchange
	if ex.BaseURL == "" {
		ex.BaseURL = "http://localhost:8001"
	}
	if ex.Timeout == 0 {
		ex.Timeout = 30000
	}
	if ex.Retry.MaxRetries == 0 {
		ex.Retry.MaxRetries = 3
	}
	if ex.Retry.BaseDelay == 0 {
		ex.Retry.BaseDelay = 1000
	}
	if ex.Retry.MaxDelay == 0 {
		ex.Retry.MaxDelay = 10000
	}
	if ex.Cache.Backend == "" {
		ex.Cache.Backend = CacheBackendMemory
	}
	if ex.Cache.TTL == 0 {
		ex.Cache.TTL = 300000
	}
	if ex.Cache.Capacity == 0 {
		ex.Cache.Capacity = 256
	}
	if ex.RateLimit.Limit == 0 {
		ex.RateLimit.Limit = 1
	}
	if ex.RateLimit.Window == 0 {
		ex.RateLimit.Window = 7000
	}

	if cfg.Messaging.Backend == "" {
		cfg.Messaging.Backend = MessagingBackendNATS
	}
	if cfg.Messaging.URL == "" {
		cfg.Messaging.URL = "nats://localhost:4222"
	}

	if cfg.Messaging.Name == "" {
		cfg.Messaging.Name = cfg.App.Name
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	m := cfg.Matching
	for name, val := range map[string]float64{
		"matching.weight_composition": m.WeightComposition,
		"matching.weight_distance":    m.WeightDistance,
		"matching.radius_km":          m.RadiusKm,
		"matching.min_similarity":     m.MinSimilarity,
	} {
		if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s must be a non-negative finite number, got %v", name, val)
		}
	}
	if m.MinSimilarity > 1 {
		return fmt.Errorf("matching.min_similarity must be within [0,1], got %v", m.MinSimilarity)
	}
	if m.TopK < 0 {
		return fmt.Errorf("matching.top_k must not be negative")
	}

	switch m.PoolSource {
	case PoolSourcePostgres, PoolSourceExchange:
	case PoolSourceElasticsearch:
		if !cfg.Database.Elasticsearch.Enabled() {
			return fmt.Errorf("database.elasticsearch.addresses is required for pool_source %q", m.PoolSource)
		}
	default:
		return fmt.Errorf("matching.pool_source %q is not one of postgres, elasticsearch, exchange", m.PoolSource)
	}

	switch cfg.Exchange.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if cfg.Exchange.Cache.Enabled && cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("exchange.cache.backend %q is not one of redis, memory", cfg.Exchange.Cache.Backend)
	}

	if cfg.Exchange.RateLimit.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when exchange.rate_limit is enabled")
	}

	switch cfg.Messaging.Backend {
	case MessagingBackendNATS:
	case MessagingBackendSNS:
		if cfg.Messaging.Enabled && cfg.Messaging.SNS.TopicARN == "" {
			return fmt.Errorf("messaging.sns.topic_arn is required for the sns backend")
		}
	default:
		return fmt.Errorf("messaging.backend %q is not one of nats, sns", cfg.Messaging.Backend)
	}

	if r := cfg.Tracing.SampleRatio; r < 0 || r > 1 || math.IsNaN(r) {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1], got %v", r)
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the worker's settings, or enabled defaults when the
// worker has no section.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	return GetWorkerConfig(cfg, workerName).Enabled
}

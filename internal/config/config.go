// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.quarry/config.yaml)
//  3. Default values
//
// Sections map one-to-one to backends: log, objectstore, postgres, embedding,
// vector, otel. Each backend section has its own Validate; commands validate
// only the sections they actually use, so running `quarry upload` never
// demands an embedding API key.
//
// Security: secrets (access keys, API keys, connection URLs) are masked in
// MarshalJSON and String. Validation returns sentinel errors checkable with
// errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/quarryhq/quarry/internal/log"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidMaxBuckets indicates objectstore.max_buckets is out of range.
	ErrInvalidMaxBuckets = errors.New("invalid max buckets")

	// ErrPartialCredentials indicates only one of access/secret key is set.
	ErrPartialCredentials = errors.New("partial object store credentials")

	// ErrMissingPostgresURL indicates no PostgreSQL connection URL is set.
	ErrMissingPostgresURL = errors.New("missing PostgreSQL URL")

	// ErrInvalidPostgresURL indicates the PostgreSQL URL does not parse.
	ErrInvalidPostgresURL = errors.New("invalid PostgreSQL URL")

	// ErrMissingAPIKey indicates the embedding API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidRateLimit indicates the embedding rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidVectorTable indicates the vector table name is empty.
	ErrInvalidVectorTable = errors.New("invalid vector table")

	// ErrMissingOtelEndpoint indicates tracing is enabled without an endpoint.
	ErrMissingOtelEndpoint = errors.New("missing OTLP endpoint")
)

// DefaultMaxBuckets bounds the list_buckets tool result.
const DefaultMaxBuckets = 10

// LogConfig controls the process-wide structured logger.
type LogConfig struct {
	Level     string `mapstructure:"level" json:"level"`
	JSON      bool   `mapstructure:"json" json:"json"`
	AddSource bool   `mapstructure:"add_source" json:"add_source"`
}

// ObjectStoreConfig holds S3-compatible object store settings. An empty
// Endpoint means real AWS; LocalStack and MinIO set it.
type ObjectStoreConfig struct {
	Region   string `mapstructure:"region" json:"region"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// AccessKey and SecretKey are static credentials. When both are empty the
	// AWS default credential chain applies. SENSITIVE: masked in MarshalJSON.
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`

	// MaxBuckets caps the list_buckets tool result.
	MaxBuckets int `mapstructure:"max_buckets" json:"max_buckets"`
}

// PostgresConfig holds the relational/vector database connection.
type PostgresConfig struct {
	// URL is a postgres:// connection URL. It embeds credentials, so it is
	// SENSITIVE and masked in MarshalJSON.
	URL string `mapstructure:"url" json:"url"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	// APIKey is SENSITIVE and masked in MarshalJSON.
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" json:"model"`

	// RateLimit is requests per second against the provider; 0 disables
	// throttling. RateBurst is the token bucket size.
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" json:"rate_burst"`
}

// VectorConfig holds vector search settings.
type VectorConfig struct {
	// Table is the default search target when a tool call names none.
	Table string `mapstructure:"table" json:"table"`
}

// OtelConfig holds optional OTLP/HTTP trace export settings.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON(). When
// adding new sensitive fields, update MarshalJSON.
type Config struct {
	Log         LogConfig         `mapstructure:"log" json:"log"`
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore" json:"objectstore"`
	Postgres    PostgresConfig    `mapstructure:"postgres" json:"postgres"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" json:"embedding"`
	Vector      VectorConfig      `mapstructure:"vector" json:"vector"`
	Otel        OtelConfig        `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
//
// Load validates only the always-required pieces (the log section). Backend
// sections are validated by the commands that need them, through the
// per-section Validate methods.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".quarry")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Log.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)
	viper.SetDefault("log.add_source", false)

	// Object store defaults (matching a local LocalStack setup)
	viper.SetDefault("objectstore.region", "us-east-1")
	viper.SetDefault("objectstore.max_buckets", DefaultMaxBuckets)

	// Embedding defaults
	viper.SetDefault("embedding.model", "text-embedding-3-large")
	viper.SetDefault("embedding.rate_limit", 0)
	viper.SetDefault("embedding.rate_burst", 1)

	// Vector defaults
	viper.SetDefault("vector.table", "vector_table")

	// Otel defaults
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service_name", "quarry")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly. QUARRY_-prefixed
// variables override any key; the unprefixed ones are the conventional names
// the backends' own tooling already uses, bound so the same environment works
// for both.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't
	// fail). If this panics, it's a bug in this file, not a runtime error.
	mustBind := func(key string, envVars ...string) {
		if err := viper.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %v: %v", key, envVars, err))
		}
	}

	mustBind("log.level", "QUARRY_LOG_LEVEL")
	mustBind("log.json", "QUARRY_LOG_JSON")

	mustBind("objectstore.region", "QUARRY_S3_REGION", "AWS_REGION")
	mustBind("objectstore.endpoint", "QUARRY_S3_ENDPOINT", "AWS_ENDPOINT_URL")
	mustBind("objectstore.access_key", "QUARRY_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	mustBind("objectstore.secret_key", "QUARRY_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	mustBind("objectstore.max_buckets", "QUARRY_S3_MAX_BUCKETS", "S3_MAX_BUCKETS")

	mustBind("postgres.url", "QUARRY_POSTGRES_URL", "POSTGRES_URI")

	mustBind("embedding.api_key", "QUARRY_OPENAI_API_KEY", "OPENAI_API_KEY")
	mustBind("embedding.base_url", "QUARRY_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	mustBind("embedding.model", "QUARRY_EMBEDDING_MODEL")

	mustBind("vector.table", "QUARRY_VECTOR_TABLE")

	mustBind("otel.enabled", "QUARRY_OTEL_ENABLED")
	mustBind("otel.endpoint", "QUARRY_OTEL_ENDPOINT")
	mustBind("otel.service_name", "QUARRY_OTEL_SERVICE_NAME")
	mustBind("otel.environment", "QUARRY_OTEL_ENVIRONMENT")
}

// Validate checks the log section.
func (c LogConfig) Validate() error {
	if _, err := log.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Level)
	}
	return nil
}

// Validate checks the object store section.
func (c ObjectStoreConfig) Validate() error {
	if c.MaxBuckets < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidMaxBuckets, c.MaxBuckets)
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("%w: set both access_key and secret_key, or neither", ErrPartialCredentials)
	}
	return nil
}

// Validate checks the postgres section.
func (c PostgresConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: set postgres.url or POSTGRES_URI", ErrMissingPostgresURL)
	}
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPostgresURL, err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("%w: scheme must be postgres:// or postgresql://, got %q",
			ErrInvalidPostgresURL, parsed.Scheme)
	}
	return nil
}

// Validate checks the embedding section.
func (c EmbeddingConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: set embedding.api_key or OPENAI_API_KEY", ErrMissingAPIKey)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: must not be negative, got %v", ErrInvalidRateLimit, c.RateLimit)
	}
	return nil
}

// Validate checks the vector section.
func (c VectorConfig) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("%w: table cannot be empty", ErrInvalidVectorTable)
	}
	return nil
}

// Validate checks the otel section.
func (c OtelConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("%w: otel.endpoint is required when tracing is enabled", ErrMissingOtelEndpoint)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer mask fully; longer ones keep the first and last 2 characters for
// debug utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking.
//
// Sensitive fields masked:
//   - ObjectStore.AccessKey, ObjectStore.SecretKey
//   - Postgres.URL (embeds credentials)
//   - Embedding.APIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.ObjectStore.AccessKey = maskSecret(a.ObjectStore.AccessKey)
	a.ObjectStore.SecretKey = maskSecret(a.ObjectStore.SecretKey)
	a.Postgres.URL = maskSecret(a.Postgres.URL)
	a.Embedding.APIKey = maskSecret(a.Embedding.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

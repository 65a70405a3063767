// Package config loads the orchestrator's typed configuration from a
// YAML file and environment variables, one struct per concern composed
// into a root Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig controls the relational store (internal/store).
type DatabaseConfig struct {
	DSN            string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns   int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns   int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MigrateOnStart bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output string `json:"output" yaml:"output" env:"LOG_OUTPUT"`
}

// SecurityConfig controls the secret store's master key material. The
// master key is injected by the deployment (env var or mounted file),
// never fetched in-process.
type SecurityConfig struct {
	MasterKeyEnv string `json:"master_key_env" yaml:"master_key_env" env:"SECRET_MASTER_KEY_ENV"`
}

// ResilienceConfig configures the circuit breaker fabric
// (internal/resilience) and its pools.
type ResilienceConfig struct {
	BreakerMaxFailures  int           `json:"breaker_max_failures" yaml:"breaker_max_failures" env:"RESILIENCE_BREAKER_MAX_FAILURES"`
	BreakerOpenTimeout  time.Duration `json:"breaker_open_timeout" yaml:"breaker_open_timeout" env:"RESILIENCE_BREAKER_OPEN_TIMEOUT"`
	SQLMaxOpenConns     int           `json:"sql_max_open_conns" yaml:"sql_max_open_conns" env:"RESILIENCE_SQL_MAX_OPEN_CONNS"`
	SQLMaxIdleConns     int           `json:"sql_max_idle_conns" yaml:"sql_max_idle_conns" env:"RESILIENCE_SQL_MAX_IDLE_CONNS"`
	GRPCPoolSize        int           `json:"grpc_pool_size" yaml:"grpc_pool_size" env:"RESILIENCE_GRPC_POOL_SIZE"`
	RetryMaxAttempts    int           `json:"retry_max_attempts" yaml:"retry_max_attempts" env:"RESILIENCE_RETRY_MAX_ATTEMPTS"`
	RetryBaseBackoff    time.Duration `json:"retry_base_backoff" yaml:"retry_base_backoff" env:"RESILIENCE_RETRY_BASE_BACKOFF"`
	SharedStateRedisURL string        `json:"shared_state_redis_url" yaml:"shared_state_redis_url" env:"RESILIENCE_SHARED_STATE_REDIS_URL"`
}

// CacheConfig configures the two-tier distributed cache
// (internal/cache).
type CacheConfig struct {
	RedisAddr       string        `json:"redis_addr" yaml:"redis_addr" env:"CACHE_REDIS_ADDR"`
	RedisPassword   string        `json:"redis_password" yaml:"redis_password" env:"CACHE_REDIS_PASSWORD"`
	RedisDB         int           `json:"redis_db" yaml:"redis_db" env:"CACHE_REDIS_DB"`
	Prefix          string        `json:"prefix" yaml:"prefix" env:"CACHE_PREFIX"`
	DefaultTTL      time.Duration `json:"default_ttl" yaml:"default_ttl" env:"CACHE_DEFAULT_TTL"`
	MaxEntries      int           `json:"max_entries" yaml:"max_entries" env:"CACHE_MAX_ENTRIES"`
	MaxBytes        int64         `json:"memory_max_bytes" yaml:"memory_max_bytes" env:"CACHE_MEMORY_MAX_BYTES"`
	EvictionPolicy  string        `json:"eviction_policy" yaml:"eviction_policy" env:"CACHE_EVICTION_POLICY"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL"`

	// CompressionThreshold gzips shared-tier values at least this many
	// bytes; zero disables compression.
	CompressionThreshold int `json:"compression_threshold" yaml:"compression_threshold" env:"CACHE_COMPRESSION_THRESHOLD"`
}

// ASRConfig configures the ASR proxy's upstream gRPC target
// (internal/asr).
type ASRConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint" env:"ASR_ENDPOINT"`
	PoolSize        int    `json:"pool_size" yaml:"pool_size" env:"ASR_POOL_SIZE"`
	DefaultLanguage string `json:"default_language" yaml:"default_language" env:"ASR_DEFAULT_LANGUAGE"`
}

// TTSConfig configures the TTS router (internal/tts) and its engine
// back-ends. An engine with an empty URL is not constructed.
type TTSConfig struct {
	CacheTTL                time.Duration     `json:"cache_ttl" yaml:"cache_ttl" env:"TTS_CACHE_TTL"`
	AllowMockFallback       bool              `json:"allow_mock_fallback" yaml:"allow_mock_fallback" env:"TTS_ALLOW_MOCK_FALLBACK"`
	DefaultEngineByLanguage map[string]string `json:"default_engine_by_language" yaml:"default_engine_by_language"`

	ElevenLabsURL    string `json:"elevenlabs_url" yaml:"elevenlabs_url" env:"TTS_ELEVENLABS_URL"`
	ElevenLabsAPIKey string `json:"elevenlabs_api_key" yaml:"elevenlabs_api_key" env:"TTS_ELEVENLABS_API_KEY"`
	AzureURL         string `json:"azure_url" yaml:"azure_url" env:"TTS_AZURE_URL"`
	AzureKey         string `json:"azure_key" yaml:"azure_key" env:"TTS_AZURE_KEY"`
	AzureRegion      string `json:"azure_region" yaml:"azure_region" env:"TTS_AZURE_REGION"`
}

// PMSConfig configures the property-management-system connector and
// its Apaleo reference adapter (internal/pms/apaleo).
type PMSConfig struct {
	ApaleoBaseURL      string `json:"apaleo_base_url" yaml:"apaleo_base_url" env:"PMS_APALEO_BASE_URL"`
	ApaleoClientID     string `json:"apaleo_client_id" yaml:"apaleo_client_id" env:"PMS_APALEO_CLIENT_ID"`
	ApaleoClientSecret string `json:"apaleo_client_secret" yaml:"apaleo_client_secret" env:"PMS_APALEO_CLIENT_SECRET"`
	ApaleoTokenURL     string `json:"apaleo_token_url" yaml:"apaleo_token_url" env:"PMS_APALEO_TOKEN_URL"`
	ApaleoPropertyID   string `json:"apaleo_property_id" yaml:"apaleo_property_id" env:"PMS_APALEO_PROPERTY_ID"`

	// Client-side request rate toward Apaleo; zero values take the
	// adapter's defaults.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"PMS_REQUESTS_PER_SECOND"`
	Burst             int     `json:"burst" yaml:"burst" env:"PMS_BURST"`
}

// MFAConfig configures the MFA/session-verification package
// (internal/mfa). TOTP parameters (issuer, period, skew) are fixed
// constants per RFC 6238 defaults rather than operator-tunable; only
// the session cache lifetime is genuinely deployment-specific.
type MFAConfig struct {
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" env:"MFA_SESSION_TTL"`
}

// ApprovalConfig configures the configuration-change approval
// workflow (internal/approval).
type ApprovalConfig struct {
	DefaultExpiry time.Duration `json:"default_expiry" yaml:"default_expiry" env:"APPROVAL_DEFAULT_EXPIRY"`
}

// SupervisorConfig configures the performance & health supervisor
// (internal/supervisor).
type SupervisorConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval" env:"SUPERVISOR_HEALTH_CHECK_INTERVAL"`
	MetricsPollInterval time.Duration `json:"metrics_poll_interval" yaml:"metrics_poll_interval" env:"SUPERVISOR_METRICS_POLL_INTERVAL"`
	CacheWarmInterval   time.Duration `json:"cache_warm_interval" yaml:"cache_warm_interval" env:"SUPERVISOR_CACHE_WARM_INTERVAL"`
}

// Config is the top-level configuration structure.
type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Security   SecurityConfig   `json:"security" yaml:"security"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	ASR        ASRConfig        `json:"asr" yaml:"asr"`
	TTS        TTSConfig        `json:"tts" yaml:"tts"`
	PMS        PMSConfig        `json:"pms" yaml:"pms"`
	MFA        MFAConfig        `json:"mfa" yaml:"mfa"`
	Approval   ApprovalConfig   `json:"approval" yaml:"approval"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
}

// New returns a configuration populated with defaults, mirroring each
// package's own DefaultConfig constructor so a deployment with no
// overrides behaves the same as that package used standalone.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			MigrateOnStart: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Resilience: ResilienceConfig{
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
			SQLMaxOpenConns:    10,
			SQLMaxIdleConns:    5,
			GRPCPoolSize:       4,
			RetryMaxAttempts:   3,
			RetryBaseBackoff:   100 * time.Millisecond,
		},
		Cache: CacheConfig{
			Prefix:          "voicehive",
			DefaultTTL:      5 * time.Minute,
			MaxEntries:      1000,
			MaxBytes:        64 << 20,
			EvictionPolicy:  "lru",
			CleanupInterval: 10 * time.Minute,
		},
		ASR: ASRConfig{
			PoolSize:        4,
			DefaultLanguage: "en-US",
		},
		TTS: TTSConfig{
			CacheTTL:          time.Hour,
			AllowMockFallback: false,
		},
		MFA: MFAConfig{
			SessionTTL: 15 * time.Minute,
		},
		Approval: ApprovalConfig{
			DefaultExpiry: 24 * time.Hour,
		},
		Supervisor: SupervisorConfig{
			HealthCheckInterval: 30 * time.Second,
			MetricsPollInterval: 15 * time.Second,
			CacheWarmInterval:   5 * time.Minute,
		},
	}
}

// Load loads configuration from file (if present) and environment
// variables, then validates it. Invalid configuration fails startup
// outright rather than being logged and skipped.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file, skipping environment
// variable overrides. Used by tests that want a fully deterministic
// config.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects configuration that would otherwise fail loudly (or,
// worse, silently misbehave) deep inside a package constructor.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if c.Resilience.BreakerMaxFailures <= 0 {
		return fmt.Errorf("config: resilience.breaker_max_failures must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("config: cache.default_ttl must be positive")
	}
	switch c.Cache.EvictionPolicy {
	case "lru", "lfu", "ttl", "fifo":
	default:
		return fmt.Errorf("config: cache.eviction_policy %q is not one of lru|lfu|ttl|fifo", c.Cache.EvictionPolicy)
	}
	if c.Approval.DefaultExpiry <= 0 {
		return fmt.Errorf("config: approval.default_expiry must be positive")
	}
	return nil
}

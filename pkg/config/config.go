// Package config loads the engine's configuration from an optional YAML
// file plus environment variable overrides, in the same layered style as
// the teacher's own config loader: defaults, then file, then env, then
// final normalization.
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

// ServerConfig controls the engine's health/metrics HTTP surface.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level     string            `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format    string            `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output    string            `json:"output" yaml:"output" env:"LOG_OUTPUT"`
	Tags      map[string]string `json:"tags" yaml:"tags"`
	TagsEnv   string            `json:"-" yaml:"-" env:"LOG_TAGS"`
}

// ResilienceConfig seeds the default *resilience.Policy every resource
// provider and action target service gets unless overridden per name.
type ResilienceConfig struct {
	TimeoutDefault        time.Duration `json:"timeout_default" yaml:"timeout_default" env:"RESILIENCE_TIMEOUT_DEFAULT"`
	RetryMaxAttempts      int           `json:"retry_max_attempts" yaml:"retry_max_attempts" env:"RESILIENCE_RETRY_MAX_ATTEMPTS"`
	RetryBase             time.Duration `json:"retry_base" yaml:"retry_base" env:"RESILIENCE_RETRY_BASE"`
	RetryCap              time.Duration `json:"retry_cap" yaml:"retry_cap" env:"RESILIENCE_RETRY_CAP"`
	BulkheadCapacity      int           `json:"bulkhead_capacity" yaml:"bulkhead_capacity" env:"RESILIENCE_BULKHEAD_CAPACITY"`
	BulkheadAcquireWait   time.Duration `json:"bulkhead_acquire_wait" yaml:"bulkhead_acquire_wait" env:"RESILIENCE_BULKHEAD_ACQUIRE_WAIT"`
	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled" yaml:"circuit_breaker_enabled" env:"RESILIENCE_CIRCUIT_BREAKER_ENABLED"`
	RateLimitCapacity     int           `json:"rate_limit_capacity" yaml:"rate_limit_capacity" env:"RESILIENCE_RATE_LIMIT_CAPACITY"`
	RateLimitPerSecond    float64       `json:"rate_limit_per_second" yaml:"rate_limit_per_second" env:"RESILIENCE_RATE_LIMIT_PER_SECOND"`
}

// CredentialConfig controls the credential manager's encryption and
// caching behavior.
type CredentialConfig struct {
	EncryptionKey   string        `json:"-" yaml:"-" env:"CREDENTIAL_ENCRYPTION_KEY"`
	TokenCacheSize  int           `json:"token_cache_size" yaml:"token_cache_size" env:"CREDENTIAL_TOKEN_CACHE_SIZE"`
	MaxTokenTTL     time.Duration `json:"max_token_ttl" yaml:"max_token_ttl" env:"CREDENTIAL_MAX_TOKEN_TTL"`
	RotationCheck   time.Duration `json:"rotation_check_interval" yaml:"rotation_check_interval" env:"CREDENTIAL_ROTATION_CHECK_INTERVAL"`
}

// ResourceConfig seeds the default resource.PoolConfig every provider
// pool gets unless overridden per provider.
type ResourceConfig struct {
	MinSize             int           `json:"min_size" yaml:"min_size" env:"RESOURCE_POOL_MIN_SIZE"`
	MaxSize             int           `json:"max_size" yaml:"max_size" env:"RESOURCE_POOL_MAX_SIZE"`
	AcquireTimeout      time.Duration `json:"acquire_timeout" yaml:"acquire_timeout" env:"RESOURCE_POOL_ACQUIRE_TIMEOUT"`
	IdleTimeout         time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"RESOURCE_POOL_IDLE_TIMEOUT"`
	MaxLifetime         time.Duration `json:"max_lifetime" yaml:"max_lifetime" env:"RESOURCE_POOL_MAX_LIFETIME"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval" env:"RESOURCE_POOL_HEALTH_CHECK_INTERVAL"`
}

// BudgetConfig seeds the default enginecore.ExecutionBudget applied to a
// workflow run unless the caller supplies its own.
type BudgetConfig struct {
	MaxWallClock   time.Duration `json:"max_wall_clock" yaml:"max_wall_clock" env:"BUDGET_MAX_WALL_CLOCK"`
	MaxInvocations int           `json:"max_invocations" yaml:"max_invocations" env:"BUDGET_MAX_INVOCATIONS"`
	MaxBytes       int           `json:"max_bytes" yaml:"max_bytes" env:"BUDGET_MAX_BYTES"`
}

// EngineConfig is the top-level configuration structure for cmd/engine.
type EngineConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Credential CredentialConfig `json:"credential" yaml:"credential"`
	Resource   ResourceConfig   `json:"resource" yaml:"resource"`
	Budget     BudgetConfig     `json:"budget" yaml:"budget"`
}

// New returns a configuration populated with defaults.
func New() *EngineConfig {
	return &EngineConfig{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Resilience: ResilienceConfig{
			TimeoutDefault:        30 * time.Second,
			RetryMaxAttempts:      3,
			RetryBase:             100 * time.Millisecond,
			RetryCap:              5 * time.Second,
			BulkheadCapacity:      10,
			BulkheadAcquireWait:   2 * time.Second,
			CircuitBreakerEnabled: true,
			RateLimitCapacity:     100,
			RateLimitPerSecond:    50,
		},
		Credential: CredentialConfig{
			TokenCacheSize: 256,
			MaxTokenTTL:    15 * time.Minute,
			RotationCheck:  time.Minute,
		},
		Resource: ResourceConfig{
			MinSize:             0,
			MaxSize:             5,
			AcquireTimeout:      5 * time.Second,
			IdleTimeout:         2 * time.Minute,
			MaxLifetime:         30 * time.Minute,
			HealthCheckInterval: 30 * time.Second,
		},
		Budget: BudgetConfig{
			MaxWallClock:   time.Minute,
			MaxInvocations: 1000,
			MaxBytes:       10 << 20,
		},
	}
}

// Load loads configuration from file (if present) and environment
// variables, in that order, env taking precedence.
func Load() (*EngineConfig, error) {
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
		// envdecode returns an error when no tagged fields are present in
		// the environment; treat that case as "no overrides" so local
		// runs work without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

// LoadFile reads configuration from a YAML file only, skipping env
// overrides. Used by tests that want deterministic values.
func LoadFile(path string) (*EngineConfig, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *EngineConfig) error {
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

func (c *EngineConfig) normalize() {
	if c == nil {
		return
	}
	c.Logging.normalize()
}

func (l *LoggingConfig) normalize() {
	if l == nil {
		return
	}
	pairs := parseAttributePairs(l.TagsEnv)
	if len(pairs) == 0 {
		return
	}
	if l.Tags == nil {
		l.Tags = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		l.Tags[k] = v
	}
}

// parseAttributePairs parses a comma-separated list of key=value pairs,
// trimming whitespace and skipping empty keys. Shared by every config
// section that accepts a CSV override for a map-shaped field.
func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		val := ""
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}
		result[key] = val
	}
	return result
}

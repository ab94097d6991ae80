package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates all configuration settings for the application.
type Config struct {
	// Environment indicates the running environment (e.g., "development", "production").
	Environment string `mapstructure:"environment"`
	// LogLevel sets the global logging verbosity.
	LogLevel string `mapstructure:"log_level"`
	// Server holds configuration for the HTTP server.
	Server ServerConfig `mapstructure:"server"`
	// Redis holds configuration for the Redis connection.
	Redis RedisConfig `mapstructure:"redis"`
	// Providers holds configuration for the market data provider chains.
	Providers ProvidersConfig `mapstructure:"providers"`
	// Retry holds configuration for the retry executor.
	Retry RetryConfig `mapstructure:"retry"`
	// CircuitBreaker holds configuration for per-provider circuit breakers.
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	// Allocation holds configuration for the recommendation allocation engine.
	Allocation AllocationConfig `mapstructure:"allocation"`
	// Batch holds configuration for the overnight batch driver.
	Batch BatchConfig `mapstructure:"batch"`
	// Audit holds configuration for the asynchronous audit emitter.
	Audit AuditConfig `mapstructure:"audit"`

	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	// Telemetry holds configuration for OpenTelemetry tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig defines the HTTP server settings.
type ServerConfig struct {
	// Port is the TCP port the server listens on.
	Port int `mapstructure:"port"`
	// AllowedOrigins is a list of CORS allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RedisConfig defines the Redis connection settings.
type RedisConfig struct {
	// Host is the Redis server hostname.
	Host string `mapstructure:"host"`
	// Port is the Redis server port.
	Port int `mapstructure:"port"`
	// Password is the Redis authentication password.
	Password string `mapstructure:"password"`
	// DB is the Redis database index to use.
	DB int `mapstructure:"db"`
}

// ProviderEndpointConfig defines one upstream market data provider.
type ProviderEndpointConfig struct {
	// Name is the provider identity used for breaker state and provenance.
	Name string `mapstructure:"name"`
	// BaseURL is the provider's API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the provider's API token, if required.
	APIKey string `mapstructure:"api_key"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProviderChainConfig defines one fallback chain (primary then fallback provider).
type ProviderChainConfig struct {
	// Primary is the preferred provider.
	Primary ProviderEndpointConfig `mapstructure:"primary"`
	// Fallback is tried when the primary fails or its breaker is open.
	Fallback ProviderEndpointConfig `mapstructure:"fallback"`
	// CacheTTL is the freshness window for cached data of this type.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ProvidersConfig defines the provider chains per data type.
type ProvidersConfig struct {
	// Prices configures the asset price chain.
	Prices ProviderChainConfig `mapstructure:"prices"`
	// Rates configures the exchange rate chain.
	Rates ProviderChainConfig `mapstructure:"rates"`
	// Fundamentals configures the fundamentals chain.
	Fundamentals ProviderChainConfig `mapstructure:"fundamentals"`
	// StaleRetention is how long stale shadow copies are kept for degraded reads.
	StaleRetention time.Duration `mapstructure:"stale_retention"`
}

// RetryConfig defines the retry executor settings.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffScheduleMs lists the delay in milliseconds before each retry.
	BackoffScheduleMs []int `mapstructure:"backoff_schedule_ms"`
	// MaxDelayMs caps any computed or server-supplied backoff delay.
	MaxDelayMs int `mapstructure:"max_delay_ms"`
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	// JitterEnabled adds randomness to computed delays.
	JitterEnabled bool `mapstructure:"jitter_enabled"`
}

// CircuitBreakerConfig defines per-provider circuit breaker settings.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int `mapstructure:"failure_threshold"`
	// ResetTimeout is the time an open breaker waits before allowing a probe.
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// AllocationConfig defines settings for the recommendation allocation engine.
type AllocationConfig struct {
	// BaseCurrency is the default portfolio base currency.
	BaseCurrency string `mapstructure:"base_currency"`
	// MinAllocationValue drops computed shares below this amount during redistribution.
	MinAllocationValue string `mapstructure:"min_allocation_value"`
	// MaxAssetsPerClass caps funded assets per subclass. Zero means unlimited.
	MaxAssetsPerClass int `mapstructure:"max_assets_per_class"`
	// RecommendationTTL is the lifetime of a generated recommendation.
	RecommendationTTL time.Duration `mapstructure:"recommendation_ttl"`
	// StaleRateThreshold is the age past which a stored rate is flagged stale.
	StaleRateThreshold time.Duration `mapstructure:"stale_rate_threshold"`
}

// BatchConfig defines settings for the overnight batch generation driver.
type BatchConfig struct {
	// Concurrency is the number of per-user pipelines run in parallel.
	Concurrency int `mapstructure:"concurrency"`
	// LogResourceStats controls whether memory/CPU stats are logged per run.
	LogResourceStats bool `mapstructure:"log_resource_stats"`
}

// AuditConfig defines settings for the asynchronous audit emitter.
type AuditConfig struct {
	// BufferSize is the capacity of the audit event channel.
	BufferSize int `mapstructure:"buffer_size"`
	// Retention is how long persisted audit events are kept.
	Retention time.Duration `mapstructure:"retention"`
}

// CollaboratorsConfig points at the external portfolio and scoring services.
type CollaboratorsConfig struct {
	// Portfolio is the endpoint of the portfolio service.
	Portfolio ProviderEndpointConfig `mapstructure:"portfolio"`
	// Scoring is the endpoint of the scoring service.
	Scoring ProviderEndpointConfig `mapstructure:"scoring"`
}

// TelemetryConfig defines settings for OpenTelemetry tracing.
type TelemetryConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `mapstructure:"enabled"`
	// ServiceName is the name of the service for tracing.
	ServiceName string `mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `mapstructure:"service_version"`
	// OTLPEndpoint is the OTLP HTTP collector endpoint. Empty means stdout export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads the configuration from the config file and environment variables.
//
// Returns:
//
//	*Config: The loaded configuration structure.
//	error: An error if the configuration could not be parsed.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("redis.host", "REDIS_HOST")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("providers.prices.primary.api_key", "PRICES_PRIMARY_API_KEY")
	_ = viper.BindEnv("providers.prices.fallback.api_key", "PRICES_FALLBACK_API_KEY")
	_ = viper.BindEnv("providers.rates.primary.api_key", "RATES_PRIMARY_API_KEY")
	_ = viper.BindEnv("providers.fundamentals.primary.api_key", "FUNDAMENTALS_PRIMARY_API_KEY")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults initializes the default configuration values in Viper.
func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Providers
	viper.SetDefault("providers.prices.primary.name", "brapi")
	viper.SetDefault("providers.prices.primary.base_url", "https://brapi.dev/api")
	viper.SetDefault("providers.prices.primary.timeout", "10s")
	viper.SetDefault("providers.prices.fallback.name", "hgfinance")
	viper.SetDefault("providers.prices.fallback.base_url", "https://api.hgbrasil.com/finance")
	viper.SetDefault("providers.prices.fallback.timeout", "10s")
	viper.SetDefault("providers.prices.cache_ttl", "24h")

	viper.SetDefault("providers.rates.primary.name", "awesomeapi")
	viper.SetDefault("providers.rates.primary.base_url", "https://economia.awesomeapi.com.br/json")
	viper.SetDefault("providers.rates.primary.timeout", "10s")
	viper.SetDefault("providers.rates.fallback.name", "hgfinance")
	viper.SetDefault("providers.rates.fallback.base_url", "https://api.hgbrasil.com/finance")
	viper.SetDefault("providers.rates.fallback.timeout", "10s")
	viper.SetDefault("providers.rates.cache_ttl", "24h")

	viper.SetDefault("providers.fundamentals.primary.name", "brapi")
	viper.SetDefault("providers.fundamentals.primary.base_url", "https://brapi.dev/api")
	viper.SetDefault("providers.fundamentals.primary.timeout", "15s")
	viper.SetDefault("providers.fundamentals.fallback.name", "hgfinance")
	viper.SetDefault("providers.fundamentals.fallback.base_url", "https://api.hgbrasil.com/finance")
	viper.SetDefault("providers.fundamentals.fallback.timeout", "15s")
	viper.SetDefault("providers.fundamentals.cache_ttl", "168h")

	viper.SetDefault("providers.stale_retention", "720h")

	// Retry
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.backoff_schedule_ms", []int{200, 500, 1000})
	viper.SetDefault("retry.max_delay_ms", 5000)
	viper.SetDefault("retry.attempt_timeout", "10s")
	viper.SetDefault("retry.jitter_enabled", true)

	// Circuit breaker
	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.reset_timeout", "60s")

	// Allocation
	viper.SetDefault("allocation.base_currency", "BRL")
	viper.SetDefault("allocation.min_allocation_value", "50.00")
	viper.SetDefault("allocation.max_assets_per_class", 0)
	viper.SetDefault("allocation.recommendation_ttl", "24h")
	viper.SetDefault("allocation.stale_rate_threshold", "24h")

	// Batch
	viper.SetDefault("batch.concurrency", 4)
	viper.SetDefault("batch.log_resource_stats", true)

	// Audit
	viper.SetDefault("audit.buffer_size", 256)
	viper.SetDefault("audit.retention", "720h")

	// Collaborators
	viper.SetDefault("collaborators.portfolio.name", "portfolio")
	viper.SetDefault("collaborators.portfolio.base_url", "http://localhost:8081")
	viper.SetDefault("collaborators.portfolio.timeout", "10s")
	viper.SetDefault("collaborators.scoring.name", "scoring")
	viper.SetDefault("collaborators.scoring.base_url", "http://localhost:8082")
	viper.SetDefault("collaborators.scoring.timeout", "15s")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "investments-planner")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.otlp_endpoint", "")
}

// validateConfig validates critical operational settings.
func validateConfig(config *Config) error {
	if config.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", config.Retry.MaxAttempts)
	}
	if config.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be positive, got %d", config.CircuitBreaker.FailureThreshold)
	}
	if config.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", config.Batch.Concurrency)
	}
	for _, chain := range []struct {
		name string
		cfg  ProviderChainConfig
	}{
		{"providers.prices", config.Providers.Prices},
		{"providers.rates", config.Providers.Rates},
		{"providers.fundamentals", config.Providers.Fundamentals},
	} {
		if chain.cfg.Primary.Name == "" {
			return fmt.Errorf("%s.primary.name must not be empty", chain.name)
		}
		if chain.cfg.CacheTTL <= 0 {
			return fmt.Errorf("%s.cache_ttl must be positive", chain.name)
		}
	}
	return nil
}

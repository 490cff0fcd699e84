package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the weft engine.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"WEFT_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"WEFT_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Broker stream configuration
	Broker BrokerConfig

	// Agent executor configuration
	Executor ExecutorConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// BrokerConfig holds tasks/events stream configuration.
type BrokerConfig struct {
	TasksStream  string        `env:"WEFT_TASKS_STREAM" envDefault:"weft:tasks"`
	EventsStream string        `env:"WEFT_EVENTS_STREAM" envDefault:"weft:events"`
	WorkerGroup  string        `env:"WEFT_WORKER_GROUP" envDefault:"weft-workers"`
	PollInterval time.Duration `env:"WEFT_POLL_INTERVAL" envDefault:"500ms"`
	ReadCount    int64         `env:"WEFT_READ_COUNT" envDefault:"10"`
}

// ExecutorConfig holds agent executor configuration.
type ExecutorConfig struct {
	Provider  string `env:"EXECUTOR_PROVIDER" envDefault:"anthropic"`
	APIKey    string `env:"EXECUTOR_API_KEY"`
	Model     string `env:"EXECUTOR_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	MaxTokens int    `env:"EXECUTOR_MAX_TOKENS" envDefault:"4096"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	// MaxWorkers caps the per-run pool size computed from the DAG width.
	MaxWorkers          int           `env:"WORKER_MAX_WORKERS" envDefault:"16"`
	MaxRetries          int           `env:"WORKER_MAX_RETRIES" envDefault:"3"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations.
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"3600s"`
	ShutdownGrace   time.Duration `env:"TIMEOUT_SHUTDOWN_GRACE" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Executor.Provider != "anthropic" {
		return fmt.Errorf("unsupported executor provider: %s (only 'anthropic' is supported)", c.Executor.Provider)
	}
	if c.Executor.APIKey == "" {
		return fmt.Errorf("executor API key is required")
	}

	if c.Workers.MaxWorkers < 1 {
		return fmt.Errorf("worker cap must be at least 1")
	}
	if c.Workers.MaxRetries < 1 {
		return fmt.Errorf("worker max retries must be at least 1")
	}
	if c.Broker.PollInterval <= 0 {
		return fmt.Errorf("broker poll interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address.
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

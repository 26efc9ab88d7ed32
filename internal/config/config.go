package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Bridge    BridgeConfig
	Breaker   BreakerConfig
	Engine    EngineConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BridgeConfig holds the editor bridge connection configuration.
type BridgeConfig struct {
	Host                 string        `envconfig:"BRIDGE_HOST" default:"127.0.0.1"`
	Port                 int           `envconfig:"BRIDGE_PORT" default:"6400"`
	ConnectTimeout       time.Duration `envconfig:"BRIDGE_CONNECT_TIMEOUT" default:"5s"`
	RequestTimeout       time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"10s"`
	ReconnectInterval    time.Duration `envconfig:"BRIDGE_RECONNECT_INTERVAL" default:"2s"`
	MaxReconnectAttempts int           `envconfig:"BRIDGE_MAX_RECONNECT_ATTEMPTS" default:"10"`
}

// BreakerConfig holds circuit breaker configuration for the bridge.
type BreakerConfig struct {
	FailureThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	SuccessThreshold int           `envconfig:"BREAKER_SUCCESS_THRESHOLD" default:"2"`
	ResetTimeout     time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s"`
	FailureWindow    time.Duration `envconfig:"BREAKER_FAILURE_WINDOW" default:"60s"`
}

// EngineConfig holds the headless engine fallback configuration.
type EngineConfig struct {
	Binary     string        `envconfig:"ENGINE_BINARY" default:""`
	ProjectDir string        `envconfig:"ENGINE_PROJECT_DIR" default:""`
	RunTimeout time.Duration `envconfig:"ENGINE_RUN_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Bridge: BridgeConfig{
			Host:                 "127.0.0.1",
			Port:                 6400,
			ConnectTimeout:       5 * time.Second,
			RequestTimeout:       10 * time.Second,
			ReconnectInterval:    2 * time.Second,
			MaxReconnectAttempts: 10,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			ResetTimeout:     30 * time.Second,
			FailureWindow:    60 * time.Second,
		},
		Engine: EngineConfig{
			RunTimeout: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

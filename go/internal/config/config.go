package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/mcdev12/gameroom/go/internal/dbconfig"
)

const defaultJWTSecret = "secret"

// Config holds all gateway configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Auth      AuthConfig
	Store     StoreConfig
	Database  dbconfig.Config
	Cache     CacheConfig
	Cluster   ClusterConfig
	WebSocket WebSocketConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	PolicyFile  string `envconfig:"ROOM_POLICY_FILE" default:""`
}

// AuthConfig holds bearer credential settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:"secret"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite or postgres
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/gameroom.db"`
	AutoMigrate bool   `envconfig:"STORE_AUTO_MIGRATE" default:"true"`
}

// CacheConfig holds participant cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory, redis or none
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ClusterConfig enables cross-instance fan-out. Empty NATSURL runs a single instance.
type ClusterConfig struct {
	NATSURL       string `envconfig:"NATS_URL" default:""`
	SubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"rooms"`
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	WriteTimeout   time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	ReadTimeout    time.Duration `envconfig:"WS_READ_TIMEOUT" default:"60s"`
	PingInterval   time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	MaxMessageSize int64         `envconfig:"WS_MAX_MESSAGE_SIZE" default:"8192"`
	SendBuffer     int           `envconfig:"WS_SEND_BUFFER" default:"256"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_ENDPOINT" default:""`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Cache.Type {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Auth.JWTSecret == defaultJWTSecret && !c.App.IsDevelopment() {
		return errors.New("JWT_SECRET must be set outside development")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return errors.New("WS_SEND_BUFFER must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return errors.New("WS_PING_INTERVAL must be shorter than WS_READ_TIMEOUT")
	}
	return nil
}

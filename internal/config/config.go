package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Warm-up window scopes. Process scope measures the window from backend
// initialization and is shared by all sessions; session scope restarts it
// for each connection.
const (
	WarmupScopeProcess = "process"
	WarmupScopeSession = "session"
)

// Config holds all configuration for the bridge, loaded from environment
// variables.
type Config struct {
	BridgeID string `env:"BRIDGE_ID" envDefault:"bridge-01"`

	// WebSocket listener.
	ListenHost string `env:"LISTEN_HOST" envDefault:"localhost"`
	ListenPort int    `env:"LISTEN_PORT" envDefault:"8765"`

	// Management HTTP (health, sessions, metrics).
	HTTPPort int `env:"HTTP_PORT" envDefault:"8766"`

	// Warm-up policy for command APDUs.
	Warmup      time.Duration `env:"WARMUP" envDefault:"5s"`
	WarmupScope string        `env:"WARMUP_SCOPE" envDefault:"process"`

	// Keep-alive. Zero disables pings, matching the reference reader
	// clients, which run with automatic pings switched off.
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"0"`
	PongTimeout  time.Duration `env:"PONG_TIMEOUT" envDefault:"0"`

	// MaxMessageSize caps a single inbound message in bytes. Zero means
	// unbounded; oversized frames must be accepted.
	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE" envDefault:"0"`

	// Optional collaborators. Empty disables the integration.
	RedisURL string `env:"REDIS_URL"`
	NATSURL  string `env:"NATS_URL"`

	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"5s"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogConsole bool   `env:"LOG_CONSOLE" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.WarmupScope != WarmupScopeProcess && cfg.WarmupScope != WarmupScopeSession {
		return nil, fmt.Errorf("config: invalid WARMUP_SCOPE %q", cfg.WarmupScope)
	}
	return &cfg, nil
}

// ListenAddr returns the host:port the WebSocket server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// HTTPAddr returns the management server bind address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

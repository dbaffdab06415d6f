package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	// Server
	Addr        string `env:"ADDR" envDefault:":3000"`
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:8080"`

	// Event bus
	NATSURL string `env:"NATS_URL" envDefault:"nats://localhost:4222"`

	// Identity
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`
	TokenExpiry time.Duration `env:"TOKEN_EXPIRY" envDefault:"24h"`

	// Send rate limiting; disabled when REDIS_ADDR is empty
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SendLimit     int           `env:"SEND_LIMIT" envDefault:"30"`
	SendWindow    time.Duration `env:"SEND_WINDOW" envDefault:"1m"`

	// Message archive; delivery stays ephemeral either way
	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	ArchiveDBPath  string `env:"ARCHIVE_DB_PATH" envDefault:"archive.db"`

	// Greeting sent to a session right after it joins a room; empty disables
	Greeting string `env:"GREETING_TEXT" envDefault:"Hi! How can we help you today?"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// RateLimitEnabled reports whether the Redis send limiter is configured.
func (c *Config) RateLimitEnabled() bool {
	return c.RedisAddr != ""
}

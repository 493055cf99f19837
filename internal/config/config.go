// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime knob, loaded from environment variables.
// DatabaseURL and RedisAddr are optional: with no database the channel
// allow-list is open, and with no Redis the event feed is not archived.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// JWTSecret signs session tokens. Empty means a fresh random secret is
	// generated at startup, invalidating tokens across restarts.
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenExpire time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	// AdminToken guards the administrative endpoints. Empty disables them.
	AdminToken string `env:"ADMIN_TOKEN"`

	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"10m"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr      string `env:"REDIS_ADDR"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	EventQueueName string `env:"EVENT_QUEUE_NAME" envDefault:"uno_events"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

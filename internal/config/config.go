package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
)

var (
	ErrMissingDatabaseURL   = errors.New("DATABASE_URL is required")
	ErrMissingSecretKey     = errors.New("SECRET_KEY is required")
	ErrMissingPlaylistURL   = errors.New("PLAYLIST_URL is required")
	ErrMissingAdminPassword = errors.New("ADMIN_PASSWORD is required")
	ErrInvalidLogFormat     = errors.New("LOG_FORMAT must be text or json")
)

// Config holds application configuration.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	ServerPort  string `env:"PORT, default=8080"`
	SecretKey   string `env:"SECRET_KEY"`

	PlaylistURL string        `env:"PLAYLIST_URL"`
	UserAgent   string        `env:"FETCHER_USER_AGENT, default=LegacyTV/1.0"`
	Timeout     time.Duration `env:"FETCHER_TIMEOUT, default=10s"`

	SessionTTL     time.Duration `env:"SESSION_TTL, default=12h"`
	CookieSecure   bool          `env:"COOKIE_SECURE, default=false"`
	AdminUsername  string        `env:"ADMIN_USERNAME, default=admin"`
	AdminPassword  string        `env:"ADMIN_PASSWORD"`
	LoginRateLimit int           `env:"LOGIN_RATE_LIMIT, default=10"`

	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogFormat string `env:"LOG_FORMAT, default=text"`
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load first reads .env.local and .env from the
// current directory and the executable's directory.
func Load(ctx context.Context) (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith builds config from an arbitrary lookuper and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var c Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &c, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("envconfig: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return ErrMissingDatabaseURL
	case c.SecretKey == "":
		return ErrMissingSecretKey
	case c.PlaylistURL == "":
		return ErrMissingPlaylistURL
	case c.AdminPassword == "":
		return ErrMissingAdminPassword
	case c.LogFormat != "text" && c.LogFormat != "json":
		return ErrInvalidLogFormat
	}
	return nil
}

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/samber/lo"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL    string `yaml:"database_url"`
	RedisURL       string `yaml:"redis_url"`
	ServerPort     string `yaml:"server_port"`
	SecretKey      string `yaml:"secret_key"`
	PlaylistURL    string `yaml:"playlist_url"`
	UserAgent      string `yaml:"user_agent"`
	Timeout        string `yaml:"timeout"`
	SessionTTL     string `yaml:"session_ttl"`
	CookieSecure   *bool  `yaml:"cookie_secure"`
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	LoginRateLimit int    `yaml:"login_rate_limit"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

// env maps the file values onto the environment variable names they stand in for.
func (f fileConfig) env() map[string]string {
	m := map[string]string{
		"DATABASE_URL":       f.DatabaseURL,
		"REDIS_URL":          f.RedisURL,
		"PORT":               f.ServerPort,
		"SECRET_KEY":         f.SecretKey,
		"PLAYLIST_URL":       f.PlaylistURL,
		"FETCHER_USER_AGENT": f.UserAgent,
		"FETCHER_TIMEOUT":    f.Timeout,
		"SESSION_TTL":        f.SessionTTL,
		"ADMIN_USERNAME":     f.AdminUsername,
		"ADMIN_PASSWORD":     f.AdminPassword,
		"LOG_LEVEL":          f.LogLevel,
		"LOG_FORMAT":         f.LogFormat,
	}
	if f.CookieSecure != nil {
		m["COOKIE_SECURE"] = strconv.FormatBool(*f.CookieSecure)
	}
	if f.LoginRateLimit != 0 {
		m["LOGIN_RATE_LIMIT"] = strconv.Itoa(f.LoginRateLimit)
	}
	return lo.OmitByValues(m, []string{""})
}

// LoadFromFile loads config from a YAML file. Environment variables take
// precedence over file values; unset keys fall back to the defaults.
func LoadFromFile(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return LoadWith(ctx, envconfig.MultiLookuper(
		envconfig.OsLookuper(),
		envconfig.MapLookuper(f.env()),
	))
}

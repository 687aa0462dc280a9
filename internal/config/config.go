// Package config loads gateway configuration from an optional YAML file
// with AIGW_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Storage   StorageConfig   `koanf:"storage"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AuthConfig struct {
	// JWTSecret verifies the HS256 bearer tokens issued by the HR
	// platform's identity service.
	JWTSecret string `koanf:"jwt_secret"`
}

type UpstreamConfig struct {
	// APIKey is the process-wide upstream credential, used when a tenant
	// has no key of its own.
	APIKey           string        `koanf:"api_key"`
	AnthropicBaseURL string        `koanf:"anthropic_base_url"`
	OpenAIBaseURL    string        `koanf:"openai_base_url"`
	CallTimeout      time.Duration `koanf:"call_timeout"`
}

type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `koanf:"path"`

	// UsageBackend selects where monthly counters live: "sqlite"
	// (default) or "redis" for multi-instance deployments.
	UsageBackend string `koanf:"usage_backend"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load reads the config file at path (skipped when absent) and applies
// environment overrides, e.g. AIGW_SERVER_PORT=9090.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("server.port", 8080)
	k.Set("server.request_timeout", "90s")
	k.Set("upstream.call_timeout", "45s")
	k.Set("storage.path", "gateway.db")
	k.Set("storage.usage_backend", "sqlite")
	k.Set("redis.addr", "localhost:6379")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("AIGW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AIGW_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Storage.UsageBackend != "sqlite" && c.Storage.UsageBackend != "redis" {
		return fmt.Errorf("storage.usage_backend must be sqlite or redis, got %q", c.Storage.UsageBackend)
	}
	return nil
}

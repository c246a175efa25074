// Package config loads broker configuration from an optional YAML file with
// environment variable overrides on top. Env always wins, so deployments can
// ship a base file and tweak per instance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"env"`
		// debug | info | warn | error
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	OAuth struct {
		// RedirectURI must match byte for byte what the identity providers
		// have registered. Required.
		RedirectURI string `yaml:"redirect_uri"`
		// UpstreamTimeout bounds every outbound provider call ("30s", "1m").
		UpstreamTimeout string `yaml:"upstream_timeout"`
	} `yaml:"oauth"`

	Store struct {
		// file | redis | postgres
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		Redis  struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	Session struct {
		// StateTTL: how long a pending login may wait for its callback.
		StateTTL string `yaml:"state_ttl"`
		// CredentialTTL: how long stored client credentials survive.
		CredentialTTL string `yaml:"credential_ttl"`
	} `yaml:"session"`
}

// Duration parses a TTL/timeout field, falling back to def when empty or
// malformed. TTLs are strings in YAML (como en "30s", "10m").
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Load reads path (if it exists), applies env overrides and validates.
// An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Server.Addr = ":5000"
	cfg.Store.Driver = "file"
	cfg.Store.Path = "token_store.json"

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.OAuth.RedirectURI == "" {
		return nil, fmt.Errorf("config: oauth.redirect_uri (REDIRECT_URI) is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("APP_ENV", &cfg.App.Env)
	envStr("LOG_LEVEL", &cfg.App.LogLevel)
	envStr("ADDR", &cfg.Server.Addr)
	envStr("REDIRECT_URI", &cfg.OAuth.RedirectURI)
	envStr("UPSTREAM_TIMEOUT", &cfg.OAuth.UpstreamTimeout)
	envStr("TOKEN_STORE_DRIVER", &cfg.Store.Driver)
	envStr("TOKEN_STORE_PATH", &cfg.Store.Path)
	envStr("REDIS_ADDR", &cfg.Store.Redis.Addr)
	envInt("REDIS_DB", &cfg.Store.Redis.DB)
	envStr("REDIS_PREFIX", &cfg.Store.Redis.Prefix)
	envStr("POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	envStr("STATE_TTL", &cfg.Session.StateTTL)
	envStr("CREDENTIAL_TTL", &cfg.Session.CredentialTTL)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		cfg.Server.CORSAllowedOrigins = out
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

package tokenstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config selects and parameterizes a store driver.
type Config struct {
	// Driver: "file" (default), "redis" or "postgres".
	Driver string
	// Path to the JSON document (file driver).
	Path string
	// Redis connection (redis driver).
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
	// DSN for postgres (postgres driver).
	PostgresDSN string
}

// Open builds the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = "token_store.json"
		}
		return NewFileStore(path), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisStore(rdb, cfg.RedisPrefix), nil
	case "postgres":
		return NewPGStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown tokenstore driver %q", cfg.Driver)
	}
}

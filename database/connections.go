package database

import (
	"context"
	"fmt"

	"github.com/gatiride/gati-platform/engine/config"
)

// Connections bundles the engine's backing stores.
type Connections struct {
	SQL   *SQLClient
	Redis *RedisClient
}

// NewConnections opens whichever stores the configuration names. A store
// with no configuration is simply left nil; the engine degrades to its
// in-memory roster and uncached quotes.
func NewConnections(ctx context.Context, cfg *config.Config) (*Connections, error) {
	conns := &Connections{}

	if cfg.SQLConnectionString != "" {
		sqlConfig := DefaultSQLConfig()
		sqlConfig.ConnectionString = cfg.SQLConnectionString

		var client *SQLClient
		err := Retry(ctx, DefaultRetryConfig(), func() error {
			var openErr error
			client, openErr = NewSQLClient(ctx, sqlConfig)
			return openErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sql server: %w", err)
		}
		conns.SQL = client
	}

	if cfg.RedisAddr != "" {
		redisConfig := DefaultRedisConfig()
		redisConfig.Addr = cfg.RedisAddr
		redisConfig.Password = cfg.RedisPassword
		redisConfig.TLSEnabled = cfg.IsProduction()

		var client *RedisClient
		err := Retry(ctx, DefaultRetryConfig(), func() error {
			var openErr error
			client, openErr = NewRedisClient(ctx, redisConfig)
			return openErr
		})
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		conns.Redis = client
	}

	return conns, nil
}

// HealthCheck pings every open store.
func (c *Connections) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	if c.SQL != nil {
		results["sql"] = c.SQL.Ping(ctx)
	}
	if c.Redis != nil {
		results["redis"] = c.Redis.Ping(ctx)
	}
	return results
}

// Close closes every open store.
func (c *Connections) Close() {
	if c.SQL != nil {
		c.SQL.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}

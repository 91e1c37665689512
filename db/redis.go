// db/redis.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/scorecache/config"
	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
)

// NewRedisClient builds the shared, pooled client for the ephemeral tier.
// An unreachable server is not an error: the tier is allowed to be down and
// the cache degrades to the durable tier. Only bad settings fail here.
func NewRedisClient(ctx context.Context, cfg config.RedisConfiguration) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, &cache_errors.ConfigurationError{Field: "redis.addr", Reason: "required"}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MaxRetries:   cfg.MaxRetries,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not reachable at startup, fast tier starts degraded",
			zap.String("addr", cfg.Addr), zap.Error(err))
		return client, nil
	}

	logger.Info("Successfully connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

func CloseRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		logger.Error("Error closing Redis connection", zap.Error(err))
		return fmt.Errorf("closing redis: %w", err)
	}
	return nil
}

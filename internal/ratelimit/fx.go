package ratelimit

import (
	"context"

	"github.com/crowdvault/crowdvault/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig wires the donate-endpoint limiter. Without a Redis
// address the limiter is nil and every request passes.
func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *TokenBucket {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	log.Info("rate limiter enabled", zap.String("redis_addr", cfg.RedisAddr))
	return NewTokenBucket(client)
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewFromConfig),
)

// Package registry provides connection-state registries backed by
// process memory or Redis, with a factory that falls back to memory
// when Redis is unreachable.
package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"livecast/internal/core/ports"
	"livecast/pkg/config"
)

// Registries bundles the two connection-state registries.
type Registries struct {
	Signaling ports.SignalingRegistry
	Media     ports.MediaRegistry
}

// New builds registries according to cfg. When Redis is enabled but
// does not answer a ping, it logs a warning and falls back to the
// in-memory implementation.
func New(cfg *config.Config, logger *zap.SugaredLogger) Registries {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnw("redis unreachable, falling back to in-memory registries",
				"address", cfg.Redis.Address, "error", err)
		} else {
			logger.Infow("using redis registries", "address", cfg.Redis.Address)
			return Registries{
				Signaling: NewRedisSignalingRegistry(client),
				Media:     NewRedisMediaRegistry(client),
			}
		}
	}

	return Registries{
		Signaling: NewMemorySignalingRegistry(),
		Media:     NewMemoryMediaRegistry(),
	}
}

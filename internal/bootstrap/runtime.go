// Package bootstrap wires the storage backend and Redis for the server and commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"sun/internal/config"
	"sun/internal/database"
	"sun/internal/observability"
	"sun/internal/redisclient"
	"sun/internal/repository"
	"sun/internal/seed"

	"github.com/redis/go-redis/v9"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedDemo bool
}

// Runtime holds the long-lived dependencies opened at startup.
// Redis is nil when REDIS_URL is empty or unreachable.
type Runtime struct {
	Store repository.Store
	Redis *redis.Client
}

// Close releases the store and the Redis client.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.Store != nil {
		return rt.Store.Close(ctx)
	}
	return nil
}

// InitRuntime opens the configured store, connects Redis (optional) and seeds demo data when asked.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Store: store, Redis: connectRedis(ctx, cfg)}

	if opts.SeedDemo {
		if _, err := seed.Demo(ctx, store, seed.Options{}); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	return rt, nil
}

// OpenStore constructs the repository.Store selected by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case "", repository.BackendMemory:
		observability.Logger.Info("Using in-memory store")
		return repository.NewMemoryStore(), nil

	case repository.BackendPostgres, repository.BackendSQLite:
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		return repository.NewGormStore(db), nil

	case repository.BackendMongo:
		client, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		store := repository.NewMongoStore(client, cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// connectRedis returns nil instead of failing: the event feed falls back to in-process delivery.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		observability.Logger.Info("REDIS_URL not set, event feed runs in-process")
		return nil
	}
	client, err := redisclient.Connect(ctx, cfg.RedisURL)
	if err != nil {
		observability.Logger.Warn("Redis unavailable, event feed runs in-process",
			slog.String("error", err.Error()))
		return nil
	}
	return client
}

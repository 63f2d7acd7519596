package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arcade-progress/internal/config"
	"github.com/arcade-progress/internal/metrics"
	"github.com/arcade-progress/internal/postgres"
	"github.com/arcade-progress/internal/redis"
	"github.com/arcade-progress/internal/service"
	"github.com/arcade-progress/internal/sqlite"
	"github.com/arcade-progress/internal/store"
)

// backend bundles the progress store, the optional global leaderboard and
// the cleanup for both
type backend struct {
	store       store.Store
	leaderboard service.Leaderboard
	closers     []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the configured storage backend. Redis is connected
// when it stores blobs or hosts the leaderboards.
func openBackend(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled || cfg.Storage.Backend == config.BackendRedis {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		client, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		redisClient = client
		b.closers = append(b.closers, func() { client.Close() })
		logger.Info("connected to Redis")
	}

	onWriteError := store.WithWriteErrorHook(func(error) { rec.RecordStorageFailure() })

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		b.store = store.NewLocal(store.NewMemoryStorage(), logger, onWriteError)

	case config.BackendRedis:
		// shared between replicas, so failures surface to the caller
		b.store = store.NewLocal(redis.NewKV(redisClient, cfg.Redis.KeyPrefix), logger, store.WithDurableWrites())

	case config.BackendPostgres:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.closers = append(b.closers, repo.Close)
		if err := repo.RunMigrations(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		b.store = repo
		b.leaderboard = repo
		logger.Info("connected to PostgreSQL")

	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		b.closers = append(b.closers, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("failed to close sqlite", "error", err)
			}
		})
		b.store = repo
		b.leaderboard = repo
		logger.Info("opened SQLite database", "path", cfg.Storage.SQLitePath)

	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Redis.Enabled {
		b.leaderboard = redis.NewLeaderboard(redisClient, cfg.Redis.KeyPrefix, logger)
	}

	return b, nil
}

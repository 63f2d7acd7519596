package redis

import (
	"context"
	"fmt"

	"github.com/arcade-progress/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient opens a Redis client and verifies the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// keys builds namespaced Redis keys
type keys struct {
	prefix string
}

func (k keys) blob(key string) string {
	return fmt.Sprintf("%s:blob:%s", k.prefix, key)
}

func (k keys) board(game string) string {
	return fmt.Sprintf("%s:leaderboard:%s", k.prefix, game)
}

func (k keys) playerInfo(playerID string) string {
	return fmt.Sprintf("%s:player:%s:info", k.prefix, playerID)
}

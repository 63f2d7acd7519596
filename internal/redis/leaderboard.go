package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arcade-progress/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Leaderboard keeps every player's best score per game in a sorted set
type Leaderboard struct {
	client *redis.Client
	keys   keys
	logger *slog.Logger
}

// NewLeaderboard creates a Leaderboard under prefix
func NewLeaderboard(client *redis.Client, prefix string, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{
		client: client,
		keys:   keys{prefix: prefix},
		logger: logger,
	}
}

// RecordBest stores score for playerID unless a higher one is already
// recorded. It reports whether the board changed.
func (l *Leaderboard) RecordBest(ctx context.Context, game, playerID string, score int64) (bool, error) {
	changed, err := l.client.ZAddArgs(ctx, l.keys.board(game), redis.ZAddArgs{
		GT: true,
		Ch: true,
		Members: []redis.Z{{
			Score:  float64(score),
			Member: playerID,
		}},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("recording best score: %w", err)
	}
	return changed > 0, nil
}

// Top returns the n best players of game, highest first
func (l *Leaderboard) Top(ctx context.Context, game string, n int) ([]domain.LeaderboardEntry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, l.keys.board(game), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.LeaderboardEntry{
			Rank:     int64(i + 1),
			PlayerID: result.Member.(string),
			Score:    int64(result.Score),
		}
	}
	l.attachNames(ctx, entries)
	return entries, nil
}

// PlayerRank returns playerID's position on the board of game
func (l *Leaderboard) PlayerRank(ctx context.Context, game, playerID string) (*domain.LeaderboardEntry, error) {
	key := l.keys.board(game)

	pipe := l.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, playerID)
	scoreCmd := pipe.ZScore(ctx, key, playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting player rank: %w", err)
	}

	entries := []domain.LeaderboardEntry{{
		Rank:     rankCmd.Val() + 1, // Convert 0-indexed to 1-indexed
		PlayerID: playerID,
		Score:    int64(scoreCmd.Val()),
	}}
	l.attachNames(ctx, entries)
	return &entries[0], nil
}

// SetPlayerName caches the display name shown on the boards
func (l *Leaderboard) SetPlayerName(ctx context.Context, playerID, name string) error {
	if err := l.client.HSet(ctx, l.keys.playerInfo(playerID), "username", name).Err(); err != nil {
		return fmt.Errorf("setting player info: %w", err)
	}
	return nil
}

// attachNames fills Username from the name cache. Missing names stay empty.
func (l *Leaderboard) attachNames(ctx context.Context, entries []domain.LeaderboardEntry) {
	if len(entries) == 0 {
		return
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(entries))
	for i, e := range entries {
		cmds[i] = pipe.HGet(ctx, l.keys.playerInfo(e.PlayerID), "username")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("failed to load player names", "error", err)
		return
	}
	for i, cmd := range cmds {
		if name, err := cmd.Result(); err == nil {
			entries[i].Username = name
		}
	}
}

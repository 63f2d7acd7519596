// Package store records score submissions and the progress derived from
// them, and is the only authority on whether an achievement is unlocked.
//
// Every operation is scoped to a player. Read operations never fail: when
// the backing storage is unreachable or holds unreadable data they return
// empty results. Write operations report failures according to the
// durability of the backend.
package store

import (
	"context"

	"github.com/arcade-progress/internal/domain"
)

// Store is the score and progress contract shared by every backend.
type Store interface {
	// SubmitScore appends a score, updates the games-played set and unlocks
	// any newly satisfied achievements. Unlocks are idempotent per id.
	SubmitScore(ctx context.Context, playerID, game string, score int64, extras *domain.Extras) (domain.SubmitResult, error)

	GetAllScores(ctx context.Context, playerID string) []domain.ScoreEntry
	GetTopScores(ctx context.Context, playerID, game string, limit int) []domain.ScoreEntry
	GetBestScore(ctx context.Context, playerID, game string) *domain.ScoreEntry
	GetAllBestScores(ctx context.Context, playerID string) map[string]domain.ScoreEntry
	GetRecentScores(ctx context.Context, playerID string, limit int) []domain.ScoreEntry
	GetTotalGamesPlayed(ctx context.Context, playerID string) int
	GetGamePlayCounts(ctx context.Context, playerID string) map[string]int
	GetGameStats(ctx context.Context, playerID string) []domain.GameStats

	GetUnlockedAchievementIDs(ctx context.Context, playerID string) []string
	GetUnlockedAchievements(ctx context.Context, playerID string) []domain.AchievementUnlock

	GetFavorites(ctx context.Context, playerID string) []string
	// ToggleFavorite returns true when game was added, false when removed.
	ToggleFavorite(ctx context.Context, playerID, game string) (bool, error)
	IsFavorite(ctx context.Context, playerID, game string) bool

	GetGamesPlayed(ctx context.Context, playerID string) []string
	GetPlayerName(ctx context.Context, playerID string) string
	SetPlayerName(ctx context.Context, playerID, name string) error
}

// Default limits applied when a caller passes a non-positive limit.
const (
	DefaultTopLimit    = 10
	DefaultRecentLimit = 20
)

package service

import (
	"context"
	"sort"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
)

// profileRecentScores is the length of the recent activity list on a profile
const profileRecentScores = 30

// GetProfile derives the player dashboard from stored records
func (s *ProgressService) GetProfile(ctx context.Context, playerID string) domain.Profile {
	best := s.store.GetAllBestScores(ctx, playerID)
	unlocks := s.store.GetUnlockedAchievements(ctx, playerID)

	var totalBest int64
	for _, e := range best {
		totalBest += e.Score
	}

	// newest first
	sort.SliceStable(unlocks, func(i, j int) bool { return unlocks[i].UnlockedAt > unlocks[j].UnlockedAt })

	defined := 0
	for _, u := range unlocks {
		if _, ok := achievement.Lookup(u.AchievementID); ok {
			defined++
		}
	}
	total := achievement.Total()

	stats := domain.ProfileStats{
		TotalGamesPlayed:     s.store.GetTotalGamesPlayed(ctx, playerID),
		GamesWithScores:      len(best),
		TotalBestScore:       totalBest,
		AchievementsUnlocked: defined,
		AchievementsTotal:    total,
	}
	if total > 0 {
		stats.CompletionRatio = float64(defined) / float64(total)
	}

	return domain.Profile{
		PlayerID:     playerID,
		Name:         s.store.GetPlayerName(ctx, playerID),
		Stats:        stats,
		GameStats:    s.store.GetGameStats(ctx, playerID),
		RecentScores: s.store.GetRecentScores(ctx, playerID, profileRecentScores),
		Achievements: unlocks,
	}
}

// ListGames returns the catalog decorated with the player's favorites and
// play counts
func (s *ProgressService) ListGames(ctx context.Context, playerID string) []domain.GameSummary {
	favs := make(map[string]bool)
	for _, g := range s.store.GetFavorites(ctx, playerID) {
		favs[g] = true
	}
	counts := s.store.GetGamePlayCounts(ctx, playerID)

	games := achievement.Games()
	out := make([]domain.GameSummary, len(games))
	for i, g := range games {
		plays := counts[g.ID]
		out[i] = domain.GameSummary{
			ID:       g.ID,
			Title:    g.Title,
			Favorite: favs[g.ID],
			Plays:    plays,
			Hot:      plays >= s.limits.HotThreshold,
		}
	}
	return out
}

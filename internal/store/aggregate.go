package store

import (
	"sort"

	"github.com/arcade-progress/internal/domain"
)

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// topScores returns the scores of game by score descending. Equal scores
// keep submission order.
func topScores(scores []domain.ScoreEntry, game string, limit int) []domain.ScoreEntry {
	out := make([]domain.ScoreEntry, 0)
	for _, s := range scores {
		if s.Game == game {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func recentScores(scores []domain.ScoreEntry, limit int) []domain.ScoreEntry {
	out := make([]domain.ScoreEntry, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// bestByGame keeps the first entry seen among equal maxima.
func bestByGame(scores []domain.ScoreEntry) map[string]domain.ScoreEntry {
	best := make(map[string]domain.ScoreEntry)
	for _, s := range scores {
		if cur, ok := best[s.Game]; !ok || s.Score > cur.Score {
			best[s.Game] = s
		}
	}
	return best
}

func playCounts(scores []domain.ScoreEntry) map[string]int {
	counts := make(map[string]int)
	for _, s := range scores {
		counts[s.Game]++
	}
	return counts
}

// gameStats returns one row per game in order of first play.
func gameStats(scores []domain.ScoreEntry) []domain.GameStats {
	out := make([]domain.GameStats, 0)
	index := make(map[string]int)
	for _, s := range scores {
		i, ok := index[s.Game]
		if !ok {
			i = len(out)
			index[s.Game] = i
			out = append(out, domain.GameStats{Game: s.Game, BestScore: s.Score})
		}
		st := &out[i]
		st.TotalPlays++
		if s.Score > st.BestScore {
			st.BestScore = s.Score
		}
		if s.CreatedAt > st.LastPlayed {
			st.LastPlayed = s.CreatedAt
		}
	}
	return out
}

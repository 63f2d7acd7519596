package domain

// DefaultPlayerName is reported for players that never set a display name.
const DefaultPlayerName = "Player"

// AchievementUnlock records when a player first satisfied an achievement.
// At most one exists per (player, achievement).
type AchievementUnlock struct {
	AchievementID string `json:"achievementId"`
	UnlockedAt    int64  `json:"unlockedAt"` // unix ms
}

// GameStats aggregates a player's results for one game
type GameStats struct {
	Game       string `json:"game"`
	TotalPlays int    `json:"totalPlays"`
	BestScore  int64  `json:"bestScore"`
	LastPlayed int64  `json:"lastPlayed"`
}

// ProfileStats holds the headline numbers of a profile
type ProfileStats struct {
	TotalGamesPlayed     int     `json:"totalGamesPlayed"`
	GamesWithScores      int     `json:"gamesWithScores"`
	TotalBestScore       int64   `json:"totalBestScore"`
	AchievementsUnlocked int     `json:"achievementsUnlocked"`
	AchievementsTotal    int     `json:"achievementsTotal"`
	CompletionRatio      float64 `json:"completionRatio"`
}

// Profile is the derived player dashboard. Nothing in it is stored; it is
// recomputed from score and unlock records on every request.
type Profile struct {
	PlayerID     string              `json:"playerId"`
	Name         string              `json:"name"`
	Stats        ProfileStats        `json:"stats"`
	GameStats    []GameStats         `json:"gameStats"`
	RecentScores []ScoreEntry        `json:"recentScores"`
	Achievements []AchievementUnlock `json:"achievements"`
}

// GameSummary is a catalog entry decorated with the player's state
type GameSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Favorite bool   `json:"favorite"`
	Plays    int    `json:"plays"`
	Hot      bool   `json:"hot"`
}

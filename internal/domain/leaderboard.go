package domain

// ScoreEntry is one recorded game result. Entries are immutable once created.
type ScoreEntry struct {
	ID        string `json:"id"`
	Game      string `json:"game"`
	Score     int64  `json:"score"`
	Wave      *int   `json:"wave,omitempty"`
	Lines     *int   `json:"lines,omitempty"`
	CreatedAt int64  `json:"createdAt"` // unix ms
}

// Extras carries the game-specific result fields. Each game's rules only
// read the fields that belong to it; nil means "not reported".
type Extras struct {
	Wave           *int   `json:"wave,omitempty"`           // space-invaders
	Lines          *int   `json:"lines,omitempty"`          // tetris
	PlayerScore    *int   `json:"playerScore,omitempty"`    // pong
	AIScore        *int   `json:"aiScore,omitempty"`        // pong
	FourLineClears *int   `json:"fourLineClears,omitempty"` // tetris
	Difficulty     string `json:"difficulty,omitempty"`     // minesweeper
	MaxTile        *int   `json:"maxTile,omitempty"`        // 2048
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// ScoreSubmission represents a request to submit a score
type ScoreSubmission struct {
	PlayerID string  `json:"playerId"`
	Game     string  `json:"game"`
	Score    int64   `json:"score"`
	Extras   *Extras `json:"extras,omitempty"`
}

// BatchScoreSubmission represents multiple score submissions
type BatchScoreSubmission struct {
	Scores []ScoreSubmission `json:"scores"`
}

// BatchFailure describes one batch entry that was not stored
type BatchFailure struct {
	Index     int    `json:"index"`
	PlayerID  string `json:"playerId"`
	Game      string `json:"game"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// BatchOutcome reports what happened to each entry of a batch. Rejected
// entries failed validation; Failed entries may succeed when resubmitted.
type BatchOutcome struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Failed   int            `json:"failed"`
	Failures []BatchFailure `json:"failures"`
}

// Retry returns the entries of batch worth submitting again
func (o BatchOutcome) Retry(batch BatchScoreSubmission) BatchScoreSubmission {
	retry := BatchScoreSubmission{Scores: make([]ScoreSubmission, 0, o.Failed)}
	for _, f := range o.Failures {
		if f.Retryable && f.Index < len(batch.Scores) {
			retry.Scores = append(retry.Scores, batch.Scores[f.Index])
		}
	}
	return retry
}

// SubmitResult is returned to callers so they can announce new unlocks.
type SubmitResult struct {
	ScoreID         string   `json:"scoreId"`
	NewAchievements []string `json:"newAchievements"`
}

// LeaderboardEntry represents a single entry in a global per-game leaderboard
type LeaderboardEntry struct {
	Rank     int64  `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
	Username string `json:"username,omitempty"`
}

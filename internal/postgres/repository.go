package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/config"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the durable, multi-player Store backed by PostgreSQL
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			game VARCHAR(64) NOT NULL,
			score BIGINT NOT NULL,
			wave INT,
			lines INT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			achievement_id VARCHAR(64) NOT NULL,
			unlocked_at BIGINT NOT NULL,
			UNIQUE(user_id, achievement_id)
		)`,
		`CREATE TABLE IF NOT EXISTS favorites (
			user_id VARCHAR(64) NOT NULL,
			game VARCHAR(64) NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY(user_id, game)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_game ON scores(user_id, game, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_created ON scores(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_game_score ON scores(game, score DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

func newScoreID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SubmitScore records a result and unlocks achievements in one transaction.
// Concurrent submissions for one player cannot duplicate an unlock: the
// unique constraint decides which insert is new.
func (r *Repository) SubmitScore(ctx context.Context, playerID, game string, score int64, extras *domain.Extras) (domain.SubmitResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.SubmitResult{}, unavailable("beginning submission", err)
	}
	defer tx.Rollback(ctx)

	now := r.now().UnixMilli()
	scoreID := newScoreID()

	var wave, lines *int
	if extras != nil {
		wave, lines = extras.Wave, extras.Lines
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO scores (id, user_id, game, score, wave, lines, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, scoreID, playerID, game, score, wave, lines, now)
	if err != nil {
		return domain.SubmitResult{}, unavailable("inserting score", err)
	}

	played, err := gamesPlayed(ctx, tx, playerID)
	if err != nil {
		return domain.SubmitResult{}, unavailable("reading games played", err)
	}

	fresh := make([]string, 0)
	for _, id := range achievement.Candidates(game, score, extras, played) {
		tag, err := tx.Exec(ctx, `
			INSERT INTO achievements (user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, playerID, id, now)
		if err != nil {
			return domain.SubmitResult{}, unavailable("unlocking achievement", err)
		}
		if tag.RowsAffected() == 1 {
			fresh = append(fresh, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SubmitResult{}, unavailable("committing submission", err)
	}
	return domain.SubmitResult{ScoreID: scoreID, NewAchievements: fresh}, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func gamesPlayed(ctx context.Context, q querier, playerID string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT game FROM scores
		WHERE user_id = $1
		GROUP BY game
		ORDER BY MIN(created_at), game
	`, playerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const scoreColumns = `id, game, score, wave, lines, created_at`

func scanScore(row pgx.CollectableRow) (domain.ScoreEntry, error) {
	var e domain.ScoreEntry
	err := row.Scan(&e.ID, &e.Game, &e.Score, &e.Wave, &e.Lines, &e.CreatedAt)
	return e, err
}

// queryScores runs a score query; failures degrade to an empty result
func (r *Repository) queryScores(ctx context.Context, op, query string, args ...any) []domain.ScoreEntry {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Warn("score query failed", "op", op, "error", err)
		return []domain.ScoreEntry{}
	}
	entries, err := pgx.CollectRows(rows, scanScore)
	if err != nil {
		r.logger.Warn("scanning scores failed", "op", op, "error", err)
		return []domain.ScoreEntry{}
	}
	if entries == nil {
		return []domain.ScoreEntry{}
	}
	return entries
}

// GetAllScores returns every score of playerID in submission order
func (r *Repository) GetAllScores(ctx context.Context, playerID string) []domain.ScoreEntry {
	return r.queryScores(ctx, "all scores", `
		SELECT `+scoreColumns+` FROM scores
		WHERE user_id = $1
		ORDER BY created_at, id
	`, playerID)
}

// GetTopScores returns the best scores of game, highest first
func (r *Repository) GetTopScores(ctx context.Context, playerID, game string, limit int) []domain.ScoreEntry {
	if limit <= 0 {
		limit = store.DefaultTopLimit
	}
	return r.queryScores(ctx, "top scores", `
		SELECT `+scoreColumns+` FROM scores
		WHERE user_id = $1 AND game = $2
		ORDER BY score DESC, created_at, id
		LIMIT $3
	`, playerID, game, limit)
}

// GetBestScore returns the best entry of game, or nil
func (r *Repository) GetBestScore(ctx context.Context, playerID, game string) *domain.ScoreEntry {
	top := r.GetTopScores(ctx, playerID, game, 1)
	if len(top) == 0 {
		return nil
	}
	return &top[0]
}

// GetAllBestScores maps each played game to its best entry
func (r *Repository) GetAllBestScores(ctx context.Context, playerID string) map[string]domain.ScoreEntry {
	entries := r.queryScores(ctx, "best scores", `
		SELECT DISTINCT ON (game) `+scoreColumns+` FROM scores
		WHERE user_id = $1
		ORDER BY game, score DESC, created_at, id
	`, playerID)

	best := make(map[string]domain.ScoreEntry, len(entries))
	for _, e := range entries {
		best[e.Game] = e
	}
	return best
}

// GetRecentScores returns the latest scores, newest first
func (r *Repository) GetRecentScores(ctx context.Context, playerID string, limit int) []domain.ScoreEntry {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	return r.queryScores(ctx, "recent scores", `
		SELECT `+scoreColumns+` FROM scores
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, playerID, limit)
}

// GetTotalGamesPlayed counts every score of playerID
func (r *Repository) GetTotalGamesPlayed(ctx context.Context, playerID string) int {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores WHERE user_id = $1`, playerID).Scan(&n)
	if err != nil {
		r.logger.Warn("counting scores failed", "error", err)
		return 0
	}
	return n
}

// GetGamePlayCounts maps each played game to its number of scores
func (r *Repository) GetGamePlayCounts(ctx context.Context, playerID string) map[string]int {
	counts := make(map[string]int)
	for _, st := range r.GetGameStats(ctx, playerID) {
		counts[st.Game] = st.TotalPlays
	}
	return counts
}

// GetGameStats returns per-game aggregates in order of first play
func (r *Repository) GetGameStats(ctx context.Context, playerID string) []domain.GameStats {
	rows, err := r.pool.Query(ctx, `
		SELECT game, COUNT(*), MAX(score), MAX(created_at)
		FROM scores
		WHERE user_id = $1
		GROUP BY game
		ORDER BY MIN(created_at), game
	`, playerID)
	if err != nil {
		r.logger.Warn("game stats query failed", "error", err)
		return []domain.GameStats{}
	}
	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.GameStats, error) {
		var st domain.GameStats
		err := row.Scan(&st.Game, &st.TotalPlays, &st.BestScore, &st.LastPlayed)
		return st, err
	})
	if err != nil || stats == nil {
		if err != nil {
			r.logger.Warn("scanning game stats failed", "error", err)
		}
		return []domain.GameStats{}
	}
	return stats
}

// GetUnlockedAchievementIDs returns unlocked ids in unlock order
func (r *Repository) GetUnlockedAchievementIDs(ctx context.Context, playerID string) []string {
	unlocks := r.GetUnlockedAchievements(ctx, playerID)
	ids := make([]string, len(unlocks))
	for i, u := range unlocks {
		ids[i] = u.AchievementID
	}
	return ids
}

// GetUnlockedAchievements returns unlock records in unlock order
func (r *Repository) GetUnlockedAchievements(ctx context.Context, playerID string) []domain.AchievementUnlock {
	rows, err := r.pool.Query(ctx, `
		SELECT achievement_id, unlocked_at FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at, id
	`, playerID)
	if err != nil {
		r.logger.Warn("achievements query failed", "error", err)
		return []domain.AchievementUnlock{}
	}
	unlocks, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.AchievementUnlock])
	if err != nil || unlocks == nil {
		if err != nil {
			r.logger.Warn("scanning achievements failed", "error", err)
		}
		return []domain.AchievementUnlock{}
	}
	return unlocks
}

// GetFavorites returns favorited games in the order they were added
func (r *Repository) GetFavorites(ctx context.Context, playerID string) []string {
	rows, err := r.pool.Query(ctx, `
		SELECT game FROM favorites WHERE user_id = $1 ORDER BY created_at, game
	`, playerID)
	if err != nil {
		r.logger.Warn("favorites query failed", "error", err)
		return []string{}
	}
	favs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil || favs == nil {
		return []string{}
	}
	return favs
}

// ToggleFavorite adds game to the favorites, or removes it if present
func (r *Repository) ToggleFavorite(ctx context.Context, playerID, game string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, unavailable("beginning toggle", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND game = $2`, playerID, game)
	if err != nil {
		return false, unavailable("removing favorite", err)
	}
	added := tag.RowsAffected() == 0
	if added {
		_, err = tx.Exec(ctx, `
			INSERT INTO favorites (user_id, game, created_at) VALUES ($1, $2, $3)
		`, playerID, game, r.now().UnixMilli())
		if err != nil {
			return false, unavailable("adding favorite", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, unavailable("committing toggle", err)
	}
	return added, nil
}

// IsFavorite reports whether game is a favorite
func (r *Repository) IsFavorite(ctx context.Context, playerID, game string) bool {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND game = $2)
	`, playerID, game).Scan(&exists)
	if err != nil {
		r.logger.Warn("favorite lookup failed", "error", err)
		return false
	}
	return exists
}

// GetGamesPlayed returns the distinct games played, in order of first play
func (r *Repository) GetGamesPlayed(ctx context.Context, playerID string) []string {
	played, err := gamesPlayed(ctx, r.pool, playerID)
	if err != nil || played == nil {
		if err != nil {
			r.logger.Warn("games played query failed", "error", err)
		}
		return []string{}
	}
	return played
}

// GetPlayerName returns the display name, or the default if unset
func (r *Repository) GetPlayerName(ctx context.Context, playerID string) string {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM players WHERE id = $1`, playerID).Scan(&name)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("player name lookup failed", "error", err)
		}
		return domain.DefaultPlayerName
	}
	if name == "" {
		return domain.DefaultPlayerName
	}
	return name
}

// SetPlayerName stores the display name
func (r *Repository) SetPlayerName(ctx context.Context, playerID, name string) error {
	now := r.now().UnixMilli()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET name = $2, updated_at = $3
	`, playerID, name, now)
	if err != nil {
		return unavailable("setting player name", err)
	}
	return nil
}

// Top ranks players of game by their best score
func (r *Repository) Top(ctx context.Context, game string, n int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.user_id, MAX(s.score) AS best, COALESCE(MAX(p.name), '')
		FROM scores s
		LEFT JOIN players p ON p.id = s.user_id
		WHERE s.game = $1
		GROUP BY s.user_id
		ORDER BY best DESC, MIN(s.created_at), s.user_id
		LIMIT $2
	`, game, n)
	if err != nil {
		return nil, unavailable("getting top players", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e := domain.LeaderboardEntry{Rank: int64(len(entries) + 1)}
		if err := rows.Scan(&e.PlayerID, &e.Score, &e.Username); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("getting top players", err)
	}
	return entries, nil
}

// RecordBest is a no-op: the scores table already ranks every submission
func (r *Repository) RecordBest(context.Context, string, string, int64) (bool, error) {
	return false, nil
}

// Package sqlite is the embedded durable Store. It keeps the same schema as
// the PostgreSQL backend in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/store"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Repository is a Store over an SQLite database
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Repository
type Option func(*Repository)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// Open opens or creates the database at path and runs migrations
func Open(ctx context.Context, path string, logger *slog.Logger, opts ...Option) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	if path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite is not concurrent for writes, and an in-memory database
	// lives only as long as its one connection
	db.SetMaxOpenConns(1)

	r := &Repository{db: db, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database
func (r *Repository) Close() error { return r.db.Close() }

// Ping checks that the database is usable
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			game TEXT NOT NULL,
			score INTEGER NOT NULL,
			wave INTEGER,
			lines INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_game ON scores(user_id, game, score DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_created ON scores(user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_game_score ON scores(game, score DESC);`,
		`CREATE TABLE IF NOT EXISTS achievements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			unlocked_at INTEGER NOT NULL,
			UNIQUE(user_id, achievement_id)
		);`,
		`CREATE TABLE IF NOT EXISTS favorites (
			user_id TEXT NOT NULL,
			game TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY(user_id, game)
		);`,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return tx.Commit()
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

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SubmitScore records a result and unlocks achievements in one transaction
func (r *Repository) SubmitScore(ctx context.Context, playerID, game string, score int64, extras *domain.Extras) (domain.SubmitResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SubmitResult{}, unavailable("beginning submission", err)
	}
	defer tx.Rollback()

	now := r.now().UnixMilli()
	scoreID := newScoreID()

	var wave, lines *int
	if extras != nil {
		wave, lines = extras.Wave, extras.Lines
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scores (id, user_id, game, score, wave, lines, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scoreID, playerID, game, score, wave, lines, now,
	)
	if err != nil {
		return domain.SubmitResult{}, unavailable("inserting score", err)
	}

	played, err := gamesPlayed(ctx, tx, playerID)
	if err != nil {
		return domain.SubmitResult{}, unavailable("reading games played", err)
	}

	fresh := make([]string, 0)
	for _, id := range achievement.Candidates(game, score, extras, played) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, playerID, id, now)
		if err != nil {
			return domain.SubmitResult{}, unavailable("unlocking achievement", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			fresh = append(fresh, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.SubmitResult{}, unavailable("committing submission", err)
	}
	return domain.SubmitResult{ScoreID: scoreID, NewAchievements: fresh}, nil
}

func gamesPlayed(ctx context.Context, q querier, playerID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT game FROM scores WHERE user_id = ?
		GROUP BY game
		ORDER BY MIN(created_at), game
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	played := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		played = append(played, g)
	}
	return played, rows.Err()
}

const scoreColumns = `id, game, score, wave, lines, created_at`

// queryScores runs a score query; failures degrade to an empty result
func (r *Repository) queryScores(ctx context.Context, op, query string, args ...any) []domain.ScoreEntry {
	entries := make([]domain.ScoreEntry, 0)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Warn("score query failed", "op", op, "error", err)
		return entries
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.ScoreEntry
		if err := rows.Scan(&e.ID, &e.Game, &e.Score, &e.Wave, &e.Lines, &e.CreatedAt); err != nil {
			r.logger.Warn("scanning scores failed", "op", op, "error", err)
			return []domain.ScoreEntry{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn("score query failed", "op", op, "error", err)
		return []domain.ScoreEntry{}
	}
	return entries
}

func (r *Repository) GetAllScores(ctx context.Context, playerID string) []domain.ScoreEntry {
	return r.queryScores(ctx, "all scores",
		`SELECT `+scoreColumns+` FROM scores WHERE user_id = ? ORDER BY created_at, id`, playerID)
}

func (r *Repository) GetTopScores(ctx context.Context, playerID, game string, limit int) []domain.ScoreEntry {
	if limit <= 0 {
		limit = store.DefaultTopLimit
	}
	return r.queryScores(ctx, "top scores", `
		SELECT `+scoreColumns+` FROM scores
		WHERE user_id = ? AND game = ?
		ORDER BY score DESC, created_at, id
		LIMIT ?
	`, playerID, game, limit)
}

func (r *Repository) GetBestScore(ctx context.Context, playerID, game string) *domain.ScoreEntry {
	top := r.GetTopScores(ctx, playerID, game, 1)
	if len(top) == 0 {
		return nil
	}
	return &top[0]
}

func (r *Repository) GetAllBestScores(ctx context.Context, playerID string) map[string]domain.ScoreEntry {
	entries := r.queryScores(ctx, "best scores", `
		SELECT `+scoreColumns+` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY game ORDER BY score DESC, created_at, id
			) AS rn
			FROM scores WHERE user_id = ?
		) WHERE rn = 1
	`, playerID)

	best := make(map[string]domain.ScoreEntry, len(entries))
	for _, e := range entries {
		best[e.Game] = e
	}
	return best
}

func (r *Repository) GetRecentScores(ctx context.Context, playerID string, limit int) []domain.ScoreEntry {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	return r.queryScores(ctx, "recent scores", `
		SELECT `+scoreColumns+` FROM scores
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, playerID, limit)
}

func (r *Repository) GetTotalGamesPlayed(ctx context.Context, playerID string) int {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores WHERE user_id = ?`, playerID).Scan(&n); err != nil {
		r.logger.Warn("counting scores failed", "error", err)
		return 0
	}
	return n
}

func (r *Repository) GetGamePlayCounts(ctx context.Context, playerID string) map[string]int {
	counts := make(map[string]int)
	for _, st := range r.GetGameStats(ctx, playerID) {
		counts[st.Game] = st.TotalPlays
	}
	return counts
}

func (r *Repository) GetGameStats(ctx context.Context, playerID string) []domain.GameStats {
	stats := make([]domain.GameStats, 0)

	rows, err := r.db.QueryContext(ctx, `
		SELECT game, COUNT(*), MAX(score), MAX(created_at)
		FROM scores WHERE user_id = ?
		GROUP BY game
		ORDER BY MIN(created_at), game
	`, playerID)
	if err != nil {
		r.logger.Warn("game stats query failed", "error", err)
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.GameStats
		if err := rows.Scan(&st.Game, &st.TotalPlays, &st.BestScore, &st.LastPlayed); err != nil {
			r.logger.Warn("scanning game stats failed", "error", err)
			return []domain.GameStats{}
		}
		stats = append(stats, st)
	}
	return stats
}

func (r *Repository) GetUnlockedAchievementIDs(ctx context.Context, playerID string) []string {
	unlocks := r.GetUnlockedAchievements(ctx, playerID)
	ids := make([]string, len(unlocks))
	for i, u := range unlocks {
		ids[i] = u.AchievementID
	}
	return ids
}

func (r *Repository) GetUnlockedAchievements(ctx context.Context, playerID string) []domain.AchievementUnlock {
	unlocks := make([]domain.AchievementUnlock, 0)

	rows, err := r.db.QueryContext(ctx, `
		SELECT achievement_id, unlocked_at FROM achievements
		WHERE user_id = ?
		ORDER BY unlocked_at, id
	`, playerID)
	if err != nil {
		r.logger.Warn("achievements query failed", "error", err)
		return unlocks
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.AchievementUnlock
		if err := rows.Scan(&u.AchievementID, &u.UnlockedAt); err != nil {
			r.logger.Warn("scanning achievements failed", "error", err)
			return []domain.AchievementUnlock{}
		}
		unlocks = append(unlocks, u)
	}
	return unlocks
}

func (r *Repository) GetFavorites(ctx context.Context, playerID string) []string {
	favs := make([]string, 0)

	rows, err := r.db.QueryContext(ctx,
		`SELECT game FROM favorites WHERE user_id = ? ORDER BY created_at, rowid`, playerID)
	if err != nil {
		r.logger.Warn("favorites query failed", "error", err)
		return favs
	}
	defer rows.Close()

	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return []string{}
		}
		favs = append(favs, g)
	}
	return favs
}

func (r *Repository) ToggleFavorite(ctx context.Context, playerID, game string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("beginning toggle", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ? AND game = ?`, playerID, game)
	if err != nil {
		return false, unavailable("removing favorite", err)
	}
	removed, _ := res.RowsAffected()
	added := removed == 0
	if added {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO favorites (user_id, game, created_at) VALUES (?, ?, ?)`,
			playerID, game, r.now().UnixMilli())
		if err != nil {
			return false, unavailable("adding favorite", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, unavailable("committing toggle", err)
	}
	return added, nil
}

func (r *Repository) IsFavorite(ctx context.Context, playerID, game string) bool {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = ? AND game = ?)`, playerID, game,
	).Scan(&exists)
	if err != nil {
		r.logger.Warn("favorite lookup failed", "error", err)
		return false
	}
	return exists
}

func (r *Repository) GetGamesPlayed(ctx context.Context, playerID string) []string {
	played, err := gamesPlayed(ctx, r.db, playerID)
	if err != nil {
		r.logger.Warn("games played query failed", "error", err)
		return []string{}
	}
	return played
}

func (r *Repository) GetPlayerName(ctx context.Context, playerID string) string {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM players WHERE id = ?`, playerID).Scan(&name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("player name lookup failed", "error", err)
		}
		return domain.DefaultPlayerName
	}
	if name == "" {
		return domain.DefaultPlayerName
	}
	return name
}

func (r *Repository) SetPlayerName(ctx context.Context, playerID, name string) error {
	now := r.now().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, playerID, name, now, now)
	if err != nil {
		return unavailable("setting player name", err)
	}
	return nil
}

// Top ranks players of game by their best score
func (r *Repository) Top(ctx context.Context, game string, n int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.user_id, MAX(s.score) AS best, COALESCE(MAX(p.name), '')
		FROM scores s
		LEFT JOIN players p ON p.id = s.user_id
		WHERE s.game = ?
		GROUP BY s.user_id
		ORDER BY best DESC, MIN(s.created_at), s.user_id
		LIMIT ?
	`, game, n)
	if err != nil {
		return nil, unavailable("getting top players", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, n)
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

// RecordBest is a no-op: Top reads the scores table directly
func (r *Repository) RecordBest(context.Context, string, string, int64) (bool, error) {
	return false, nil
}

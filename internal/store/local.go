package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	"github.com/google/uuid"
)

// Blob keys. A player ID is appended for every player except the implicit
// local profile, which keeps the bare keys.
const (
	keyScores       = "pp_scores"
	keyAchievements = "pp_achievements"
	keyFavorites    = "pp_favorites"
	keyGamesPlayed  = "pp_games_played"
	keyPlayerName   = "pp_player_name"
)

// BlobKey returns the storage key of blob for playerID
func BlobKey(blob, playerID string) string {
	if playerID == "" {
		return blob
	}
	return fmt.Sprintf("%s:%s", blob, playerID)
}

// unlockRecord is the persisted form of an unlock
type unlockRecord struct {
	ID         string `json:"id"`
	UnlockedAt int64  `json:"unlockedAt"`
}

// Local keeps each player's progress as JSON blobs in a Storage. By default
// persistence is best effort: storage failures are logged and never
// returned. WithDurableWrites turns them into ErrStorageUnavailable.
type Local struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	onWrite func(error)
	durable bool
}

// LocalOption configures a Local store
type LocalOption func(*Local)

// WithClock overrides the time source used for createdAt and unlockedAt
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// WithWriteErrorHook registers fn to observe write failures
func WithWriteErrorHook(fn func(error)) LocalOption {
	return func(l *Local) {
		l.onWrite = fn
	}
}

// WithDurableWrites makes failed writes, and failed reads inside a write,
// return domain.ErrStorageUnavailable. Use it for shared storages.
func WithDurableWrites() LocalOption {
	return func(l *Local) {
		l.durable = true
	}
}

// NewLocal creates a Local store over storage
func NewLocal(storage Storage, logger *slog.Logger, opts ...LocalOption) *Local {
	l := &Local{
		storage: storage,
		logger:  logger,
		now:     time.Now,
		newID:   newScoreID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newScoreID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// decodeBlob unmarshals raw. Missing or malformed blobs yield the zero value.
func decodeBlob[T any](l *Local, key string, raw []byte, found bool) T {
	var v T
	if !found || len(raw) == 0 {
		return v
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		l.logger.Warn("discarding malformed blob", "key", key, "error", err)
		var zero T
		return zero
	}
	return v
}

// readJSON decodes the blob at key. Unreadable blobs yield the zero value.
func readJSON[T any](ctx context.Context, l *Local, key string) T {
	raw, found, err := l.storage.Get(ctx, key)
	if err != nil {
		l.logger.Warn("failed to read blob", "key", key, "error", err)
		var zero T
		return zero
	}
	return decodeBlob[T](l, key, raw, found)
}

// readTxn decodes the blob at key inside an update. A failed read aborts the
// update in durable mode and reads as empty otherwise.
func readTxn[T any](l *Local, txn Txn, key string) (T, error) {
	raw, found, err := txn.Get(key)
	if err != nil {
		var zero T
		if l.durable {
			return zero, fmt.Errorf("reading %s: %w", key, err)
		}
		l.logger.Warn("failed to read blob", "key", key, "error", err)
		return zero, nil
	}
	return decodeBlob[T](l, key, raw, found), nil
}

func stageJSON(txn Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	txn.Set(key, raw)
	return nil
}

// writeFailed reports a failed write. It returns the error to hand back to
// the caller, which is nil unless writes are durable.
func (l *Local) writeFailed(op string, err error) error {
	l.logger.Warn("failed to persist progress", "op", op, "error", err)
	if l.onWrite != nil {
		l.onWrite(err)
	}
	if l.durable {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
	}
	return nil
}

func (l *Local) scores(ctx context.Context, playerID string) []domain.ScoreEntry {
	return readJSON[[]domain.ScoreEntry](ctx, l, BlobKey(keyScores, playerID))
}

func (l *Local) unlocks(ctx context.Context, playerID string) []unlockRecord {
	return readJSON[[]unlockRecord](ctx, l, BlobKey(keyAchievements, playerID))
}

func (l *Local) stringSet(ctx context.Context, blob, playerID string) []string {
	v := readJSON[[]string](ctx, l, BlobKey(blob, playerID))
	if v == nil {
		return []string{}
	}
	return v
}

// SubmitScore records a result and unlocks newly satisfied achievements.
// The scores, games-played and unlock blobs change in one atomic update.
func (l *Local) SubmitScore(ctx context.Context, playerID, game string, score int64, extras *domain.Extras) (domain.SubmitResult, error) {
	scoresKey := BlobKey(keyScores, playerID)
	playedKey := BlobKey(keyGamesPlayed, playerID)
	unlocksKey := BlobKey(keyAchievements, playerID)

	var result domain.SubmitResult
	err := l.storage.Update(ctx, []string{scoresKey, playedKey, unlocksKey}, func(txn Txn) error {
		now := l.now().UnixMilli()

		entry := domain.ScoreEntry{
			ID:        l.newID(),
			Game:      game,
			Score:     score,
			CreatedAt: now,
		}
		if extras != nil {
			entry.Wave = extras.Wave
			entry.Lines = extras.Lines
		}
		result = domain.SubmitResult{ScoreID: entry.ID, NewAchievements: []string{}}

		scores, err := readTxn[[]domain.ScoreEntry](l, txn, scoresKey)
		if err != nil {
			return err
		}
		if err := stageJSON(txn, scoresKey, append(scores, entry)); err != nil {
			return err
		}

		played, err := readTxn[[]string](l, txn, playedKey)
		if err != nil {
			return err
		}
		if !slices.Contains(played, game) {
			played = append(played, game)
			if err := stageJSON(txn, playedKey, played); err != nil {
				return err
			}
		}

		candidates := achievement.Candidates(game, score, extras, played)

		unlocks, err := readTxn[[]unlockRecord](l, txn, unlocksKey)
		if err != nil {
			return err
		}
		have := make(map[string]struct{}, len(unlocks))
		for _, u := range unlocks {
			have[u.ID] = struct{}{}
		}

		fresh := make([]string, 0)
		for _, id := range candidates {
			if _, ok := have[id]; ok {
				continue
			}
			have[id] = struct{}{}
			fresh = append(fresh, id)
			unlocks = append(unlocks, unlockRecord{ID: id, UnlockedAt: now})
		}
		if len(fresh) > 0 {
			if err := stageJSON(txn, unlocksKey, unlocks); err != nil {
				return err
			}
		}

		result.NewAchievements = fresh
		return nil
	})
	if err != nil {
		if failed := l.writeFailed("submit score", err); failed != nil {
			return domain.SubmitResult{}, failed
		}
	}
	return result, nil
}

// GetAllScores returns every recorded score in submission order
func (l *Local) GetAllScores(ctx context.Context, playerID string) []domain.ScoreEntry {
	s := l.scores(ctx, playerID)
	if s == nil {
		return []domain.ScoreEntry{}
	}
	return s
}

// GetTopScores returns the best scores of game, highest first
func (l *Local) GetTopScores(ctx context.Context, playerID, game string, limit int) []domain.ScoreEntry {
	return topScores(l.scores(ctx, playerID), game, limitOr(limit, DefaultTopLimit))
}

// GetBestScore returns the best entry of game, or nil when it was never played
func (l *Local) GetBestScore(ctx context.Context, playerID, game string) *domain.ScoreEntry {
	top := l.GetTopScores(ctx, playerID, game, 1)
	if len(top) == 0 {
		return nil
	}
	return &top[0]
}

// GetAllBestScores maps each played game to its best entry
func (l *Local) GetAllBestScores(ctx context.Context, playerID string) map[string]domain.ScoreEntry {
	return bestByGame(l.scores(ctx, playerID))
}

// GetRecentScores returns the latest scores, newest first
func (l *Local) GetRecentScores(ctx context.Context, playerID string, limit int) []domain.ScoreEntry {
	return recentScores(l.scores(ctx, playerID), limitOr(limit, DefaultRecentLimit))
}

// GetTotalGamesPlayed counts every recorded score
func (l *Local) GetTotalGamesPlayed(ctx context.Context, playerID string) int {
	return len(l.scores(ctx, playerID))
}

// GetGamePlayCounts maps each played game to its number of scores
func (l *Local) GetGamePlayCounts(ctx context.Context, playerID string) map[string]int {
	return playCounts(l.scores(ctx, playerID))
}

// GetGameStats returns per-game aggregates
func (l *Local) GetGameStats(ctx context.Context, playerID string) []domain.GameStats {
	return gameStats(l.scores(ctx, playerID))
}

// GetUnlockedAchievementIDs returns unlocked ids in unlock order
func (l *Local) GetUnlockedAchievementIDs(ctx context.Context, playerID string) []string {
	unlocks := l.unlocks(ctx, playerID)
	ids := make([]string, len(unlocks))
	for i, u := range unlocks {
		ids[i] = u.ID
	}
	return ids
}

// GetUnlockedAchievements returns unlock records in unlock order
func (l *Local) GetUnlockedAchievements(ctx context.Context, playerID string) []domain.AchievementUnlock {
	unlocks := l.unlocks(ctx, playerID)
	out := make([]domain.AchievementUnlock, len(unlocks))
	for i, u := range unlocks {
		out[i] = domain.AchievementUnlock{AchievementID: u.ID, UnlockedAt: u.UnlockedAt}
	}
	return out
}

// GetFavorites returns the favorited games
func (l *Local) GetFavorites(ctx context.Context, playerID string) []string {
	return l.stringSet(ctx, keyFavorites, playerID)
}

// ToggleFavorite adds game to the favorites, or removes it if present
func (l *Local) ToggleFavorite(ctx context.Context, playerID, game string) (bool, error) {
	key := BlobKey(keyFavorites, playerID)

	var added bool
	err := l.storage.Update(ctx, []string{key}, func(txn Txn) error {
		favs, err := readTxn[[]string](l, txn, key)
		if err != nil {
			return err
		}
		added = true
		if i := slices.Index(favs, game); i >= 0 {
			favs = slices.Delete(favs, i, i+1)
			added = false
		} else {
			favs = append(favs, game)
		}
		if favs == nil {
			favs = []string{}
		}
		return stageJSON(txn, key, favs)
	})
	if err != nil {
		if failed := l.writeFailed("toggle favorite", err); failed != nil {
			return false, failed
		}
	}
	return added, nil
}

// IsFavorite reports whether game is a favorite
func (l *Local) IsFavorite(ctx context.Context, playerID, game string) bool {
	return slices.Contains(l.GetFavorites(ctx, playerID), game)
}

// GetGamesPlayed returns the distinct games played, in order of first play
func (l *Local) GetGamesPlayed(ctx context.Context, playerID string) []string {
	return l.stringSet(ctx, keyGamesPlayed, playerID)
}

// GetPlayerName returns the display name, or DefaultPlayerName if unset
func (l *Local) GetPlayerName(ctx context.Context, playerID string) string {
	key := BlobKey(keyPlayerName, playerID)
	raw, found, err := l.storage.Get(ctx, key)
	if err != nil {
		l.logger.Warn("failed to read blob", "key", key, "error", err)
		return domain.DefaultPlayerName
	}
	if !found || len(raw) == 0 {
		return domain.DefaultPlayerName
	}
	return string(raw)
}

// SetPlayerName stores the display name as a plain string
func (l *Local) SetPlayerName(ctx context.Context, playerID, name string) error {
	if err := l.storage.Set(ctx, BlobKey(keyPlayerName, playerID), []byte(name)); err != nil {
		return l.writeFailed("set player name", err)
	}
	return nil
}

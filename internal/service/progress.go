package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/config"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/metrics"
	"github.com/arcade-progress/internal/store"
)

// maxIDLength bounds player and game identifiers
const maxIDLength = 64

// maxNameLength bounds display names
const maxNameLength = 255

// Leaderboard ranks players of each game by their best score
type Leaderboard interface {
	RecordBest(ctx context.Context, game, playerID string, score int64) (bool, error)
	Top(ctx context.Context, game string, n int) ([]domain.LeaderboardEntry, error)
	SetPlayerName(ctx context.Context, playerID, name string) error
}

// Ranker is implemented by leaderboards that can locate a single player
type Ranker interface {
	PlayerRank(ctx context.Context, game, playerID string) (*domain.LeaderboardEntry, error)
}

// Notifier pushes progress events to connected clients
type Notifier interface {
	NotifyAchievements(playerID string, unlocked []achievement.Def)
	NotifyLeaderboard(game string, entries []domain.LeaderboardEntry)
}

// ProgressService provides business logic on top of a Store
type ProgressService struct {
	store       store.Store
	leaderboard Leaderboard
	notifier    Notifier
	metrics     *metrics.Recorder
	limits      *config.LimitsConfig
	logger      *slog.Logger
	guard       *inflight
}

// NewProgressService creates a new progress service
func NewProgressService(st store.Store, limits *config.LimitsConfig, logger *slog.Logger) *ProgressService {
	return &ProgressService{
		store:  st,
		limits: limits,
		logger: logger,
		guard:  newInflight(),
	}
}

// SetLeaderboard enables global per-game leaderboards
func (s *ProgressService) SetLeaderboard(lb Leaderboard) {
	s.leaderboard = lb
}

// SetNotifier sets the sink for unlock and leaderboard events
func (s *ProgressService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetMetrics sets the metrics recorder
func (s *ProgressService) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLength
}

// SubmitScore validates and records a game result
func (s *ProgressService) SubmitScore(ctx context.Context, submission domain.ScoreSubmission) (domain.SubmitResult, error) {
	start := time.Now()
	playerID := strings.TrimSpace(submission.PlayerID)
	game := strings.TrimSpace(submission.Game)

	if !validID(playerID) || !validID(game) {
		s.metrics.RecordSubmission(game, metrics.OutcomeInvalid)
		return domain.SubmitResult{}, fmt.Errorf("%w: player and game are required", domain.ErrInvalidRequest)
	}
	if submission.Score < 0 {
		s.metrics.RecordSubmission(game, metrics.OutcomeInvalid)
		return domain.SubmitResult{}, fmt.Errorf("%w: %d", domain.ErrInvalidScore, submission.Score)
	}

	if !s.guard.acquire(playerID) {
		s.metrics.RecordSubmission(game, metrics.OutcomeBusy)
		return domain.SubmitResult{}, domain.ErrSubmissionInFlight
	}
	defer s.guard.release(playerID)

	result, err := s.store.SubmitScore(ctx, playerID, game, submission.Score, submission.Extras)
	if err != nil {
		s.metrics.RecordSubmission(game, metrics.OutcomeFailed)
		if errors.Is(err, domain.ErrStorageUnavailable) {
			s.metrics.RecordStorageFailure()
		}
		return domain.SubmitResult{}, fmt.Errorf("submitting score: %w", err)
	}

	s.metrics.RecordSubmission(game, metrics.OutcomeOK)
	s.metrics.RecordUnlocks(result.NewAchievements)
	s.metrics.ObserveSubmitLatency(time.Since(start))

	s.recordBest(ctx, playerID, game, submission.Score)
	s.announce(playerID, result.NewAchievements)

	return result, nil
}

// recordBest updates the global board. Failures only cost freshness.
func (s *ProgressService) recordBest(ctx context.Context, playerID, game string, score int64) {
	if s.leaderboard == nil {
		return
	}
	changed, err := s.leaderboard.RecordBest(ctx, game, playerID, score)
	if err != nil {
		s.logger.Warn("failed to record best score", "player_id", playerID, "game", game, "error", err)
		return
	}
	if !changed || s.notifier == nil {
		return
	}

	top, err := s.leaderboard.Top(ctx, game, s.limits.DefaultTop)
	if err != nil {
		s.logger.Warn("failed to read leaderboard", "game", game, "error", err)
		return
	}
	s.notifier.NotifyLeaderboard(game, top)
}

func (s *ProgressService) announce(playerID string, ids []string) {
	if s.notifier == nil || len(ids) == 0 {
		return
	}
	defs := make([]achievement.Def, 0, len(ids))
	for _, id := range ids {
		if def, ok := achievement.Lookup(id); ok {
			defs = append(defs, def)
		}
	}
	s.notifier.NotifyAchievements(playerID, defs)
}

// SubmitScoreBatch submits multiple scores. Invalid entries are rejected
// and skipped. The returned error joins the failures a retry may fix.
func (s *ProgressService) SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) (domain.BatchOutcome, error) {
	outcome := domain.BatchOutcome{Failures: []domain.BatchFailure{}}
	var errs []error

	for i, submission := range batch.Scores {
		if _, err := s.SubmitScore(ctx, submission); err != nil {
			retryable := !domain.IsClientError(err)
			s.logger.Error("failed to submit score in batch",
				"player_id", submission.PlayerID,
				"game", submission.Game,
				"retryable", retryable,
				"error", err,
			)
			outcome.Failures = append(outcome.Failures, domain.BatchFailure{
				Index:     i,
				PlayerID:  submission.PlayerID,
				Game:      submission.Game,
				Error:     err.Error(),
				Retryable: retryable,
			})
			if retryable {
				outcome.Failed++
				errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			} else {
				outcome.Rejected++
			}
			continue
		}
		outcome.Accepted++
	}
	return outcome, errors.Join(errs...)
}

// clamp applies the default for non-positive limits and caps at MaxLimit
func (s *ProgressService) clamp(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > s.limits.MaxLimit {
		limit = s.limits.MaxLimit
	}
	return limit
}

// GetAllScores returns every score of playerID in submission order
func (s *ProgressService) GetAllScores(ctx context.Context, playerID string) []domain.ScoreEntry {
	return s.store.GetAllScores(ctx, playerID)
}

// GetTopScores returns the best scores of game, highest first
func (s *ProgressService) GetTopScores(ctx context.Context, playerID, game string, limit int) []domain.ScoreEntry {
	return s.store.GetTopScores(ctx, playerID, strings.TrimSpace(game), s.clamp(limit, s.limits.DefaultTop))
}

// GetBestScore returns ErrNotFound when game was never played
func (s *ProgressService) GetBestScore(ctx context.Context, playerID, game string) (*domain.ScoreEntry, error) {
	best := s.store.GetBestScore(ctx, playerID, strings.TrimSpace(game))
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

// GetAllBestScores maps each played game to its best entry
func (s *ProgressService) GetAllBestScores(ctx context.Context, playerID string) map[string]domain.ScoreEntry {
	return s.store.GetAllBestScores(ctx, playerID)
}

// GetRecentScores returns the latest scores, newest first
func (s *ProgressService) GetRecentScores(ctx context.Context, playerID string, limit int) []domain.ScoreEntry {
	return s.store.GetRecentScores(ctx, playerID, s.clamp(limit, s.limits.DefaultRecent))
}

// GetGameStats returns per-game aggregates
func (s *ProgressService) GetGameStats(ctx context.Context, playerID string) []domain.GameStats {
	return s.store.GetGameStats(ctx, playerID)
}

// GetAchievements returns the unlock records of playerID
func (s *ProgressService) GetAchievements(ctx context.Context, playerID string) []domain.AchievementUnlock {
	return s.store.GetUnlockedAchievements(ctx, playerID)
}

// GetFavorites returns the favorited games
func (s *ProgressService) GetFavorites(ctx context.Context, playerID string) []string {
	return s.store.GetFavorites(ctx, playerID)
}

// IsFavorite reports whether game is a favorite
func (s *ProgressService) IsFavorite(ctx context.Context, playerID, game string) bool {
	return s.store.IsFavorite(ctx, playerID, strings.TrimSpace(game))
}

// ToggleFavorite flips the favorite flag of game and returns the new state
func (s *ProgressService) ToggleFavorite(ctx context.Context, playerID, game string) (bool, error) {
	game = strings.TrimSpace(game)
	if !validID(playerID) || !validID(game) {
		return false, fmt.Errorf("%w: player and game are required", domain.ErrInvalidRequest)
	}
	added, err := s.store.ToggleFavorite(ctx, playerID, game)
	if err != nil {
		return false, fmt.Errorf("toggling favorite: %w", err)
	}
	return added, nil
}

// GetPlayerName returns the display name of playerID
func (s *ProgressService) GetPlayerName(ctx context.Context, playerID string) string {
	return s.store.GetPlayerName(ctx, playerID)
}

// SetPlayerName stores the display name and refreshes the leaderboard cache
func (s *ProgressService) SetPlayerName(ctx context.Context, playerID, name string) error {
	if !validID(playerID) {
		return fmt.Errorf("%w: player is required", domain.ErrInvalidRequest)
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d bytes", domain.ErrInvalidRequest, maxNameLength)
	}
	if err := s.store.SetPlayerName(ctx, playerID, name); err != nil {
		return fmt.Errorf("setting player name: %w", err)
	}
	// repositories double as their own leaderboard
	if s.leaderboard != nil && any(s.leaderboard) != any(s.store) {
		if err := s.leaderboard.SetPlayerName(ctx, playerID, name); err != nil {
			s.logger.Warn("failed to cache player name", "player_id", playerID, "error", err)
		}
	}
	return nil
}

// GlobalLeaderboard returns the best players of game across all profiles
func (s *ProgressService) GlobalLeaderboard(ctx context.Context, game string, limit int) ([]domain.LeaderboardEntry, error) {
	if s.leaderboard == nil {
		return nil, domain.ErrLeaderboardUnavailable
	}
	entries, err := s.leaderboard.Top(ctx, strings.TrimSpace(game), s.clamp(limit, s.limits.DefaultTop))
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}

// GlobalRank returns the position of playerID on the board of game
func (s *ProgressService) GlobalRank(ctx context.Context, game, playerID string) (*domain.LeaderboardEntry, error) {
	ranker, ok := s.leaderboard.(Ranker)
	if !ok {
		return nil, domain.ErrLeaderboardUnavailable
	}
	entry, err := ranker.PlayerRank(ctx, strings.TrimSpace(game), playerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting player rank: %w", err)
	}
	return entry, nil
}

// Ready reports whether the backing store is reachable
func (s *ProgressService) Ready(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/config"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/metrics"
	"github.com/arcade-progress/internal/websocket"
)

// Board reads the global ranking of a game
type Board interface {
	Top(ctx context.Context, game string, n int) ([]domain.LeaderboardEntry, error)
}

// Sink delivers leaderboard snapshots to subscribers
type Sink interface {
	NotifyLeaderboard(game string, entries []domain.LeaderboardEntry)
	HasSubscribers(topic string) bool
}

// LeaderboardBroadcaster periodically pushes the top of every game board to
// the clients watching it
type LeaderboardBroadcaster struct {
	board   Board
	sink    Sink
	config  *config.BroadcastConfig
	metrics *metrics.Recorder
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewLeaderboardBroadcaster creates a new broadcaster
func NewLeaderboardBroadcaster(board Board, sink Sink, cfg *config.BroadcastConfig, logger *slog.Logger) *LeaderboardBroadcaster {
	return &LeaderboardBroadcaster{
		board:  board,
		sink:   sink,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SetMetrics sets the metrics recorder
func (w *LeaderboardBroadcaster) SetMetrics(m *metrics.Recorder) {
	w.metrics = m
}

// Start begins the background broadcast loop
func (w *LeaderboardBroadcaster) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("leaderboard broadcaster started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background broadcast loop
func (w *LeaderboardBroadcaster) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("leaderboard broadcaster stopped")
	return nil
}

func (w *LeaderboardBroadcaster) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce pushes one snapshot for every watched game and returns how many
// were sent
func (w *LeaderboardBroadcaster) RunOnce(ctx context.Context) int {
	sent := 0
	for _, game := range achievement.KnownGames() {
		if !w.sink.HasSubscribers(websocket.GameTopic(game)) {
			continue
		}

		entries, err := w.board.Top(ctx, game, w.config.TopN)
		if err != nil {
			w.logger.Error("failed to read leaderboard", "game", game, "error", err)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		w.sink.NotifyLeaderboard(game, entries)
		w.metrics.RecordBroadcast()
		sent++
	}

	if sent > 0 {
		w.logger.Debug("broadcast cycle completed", "games", sent)
	}
	return sent
}

// IsRunning returns whether the broadcaster is currently running
func (w *LeaderboardBroadcaster) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

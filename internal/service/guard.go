package service

import "sync"

// inflight admits one submission per player at a time. A second submission
// for a busy player is rejected, not queued.
type inflight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{busy: make(map[string]struct{})}
}

func (g *inflight) acquire(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[playerID]; ok {
		return false
	}
	g.busy[playerID] = struct{}{}
	return true
}

func (g *inflight) release(playerID string) {
	g.mu.Lock()
	delete(g.busy, playerID)
	g.mu.Unlock()
}

// Package achievement holds the static achievement table and the pure rule
// engine that decides which achievements a single game result satisfies.
//
// The engine has no knowledge of prior unlocks; callers deduplicate.
package achievement

import "github.com/arcade-progress/internal/domain"

const (
	// PongMatchTarget is the score that wins a Pong match.
	PongMatchTarget = 7

	tetrisLinesTarget  = 10
	invadersWaveTarget = 5
	hardDifficulty     = "hard"
)

// rule contributes id when match holds. Rules of one game are independent.
type rule struct {
	id    string
	match func(score int64, x domain.Extras) bool
}

func scoreAtLeast(id string, n int64) rule {
	return rule{id: id, match: func(score int64, _ domain.Extras) bool { return score >= n }}
}

// completed treats any positive score as a finished board. A legitimately
// zero-score clear does not unlock; see DESIGN.md.
func completed(id string) rule {
	return rule{id: id, match: func(score int64, _ domain.Extras) bool { return score > 0 }}
}

func fieldAtLeast(id string, field func(domain.Extras) *int, n int) rule {
	return rule{id: id, match: func(_ int64, x domain.Extras) bool {
		v := field(x)
		return v != nil && *v >= n
	}}
}

func lines(x domain.Extras) *int          { return x.Lines }
func fourLineClears(x domain.Extras) *int { return x.FourLineClears }
func wave(x domain.Extras) *int           { return x.Wave }
func maxTile(x domain.Extras) *int        { return x.MaxTile }

// pongWin requires both sides of the match result to be reported.
func pongWin(id string, flawless bool) rule {
	return rule{id: id, match: func(_ int64, x domain.Extras) bool {
		if x.PlayerScore == nil || x.AIScore == nil {
			return false
		}
		if *x.PlayerScore < PongMatchTarget {
			return false
		}
		return !flawless || *x.AIScore == 0
	}}
}

var rules = map[string][]rule{
	GameSnake: {
		scoreAtLeast("snake-50", 50),
		scoreAtLeast("snake-100", 100),
		scoreAtLeast("snake-200", 200),
	},
	GameFlappyBird: {
		scoreAtLeast("flappy-10", 10),
		scoreAtLeast("flappy-25", 25),
		scoreAtLeast("flappy-50", 50),
	},
	GameDinoJump: {
		scoreAtLeast("dino-100", 100),
		scoreAtLeast("dino-500", 500),
		scoreAtLeast("dino-1000", 1000),
	},
	GameTetris: {
		scoreAtLeast("tetris-1000", 1000),
		scoreAtLeast("tetris-5000", 5000),
		fieldAtLeast("tetris-10-lines", lines, tetrisLinesTarget),
		fieldAtLeast("tetris-4-lines", fourLineClears, 1),
	},
	GamePong: {
		pongWin("pong-win", false),
		pongWin("pong-flawless", true),
	},
	GameSpaceInvaders: {
		scoreAtLeast("invaders-500", 500),
		scoreAtLeast("invaders-2000", 2000),
		fieldAtLeast("invaders-wave-5", wave, invadersWaveTarget),
	},
	GameMinesweeper: {
		completed("minesweeper-clear"),
		{id: "minesweeper-hard", match: func(score int64, x domain.Extras) bool {
			return x.Difficulty == hardDifficulty && score > 0
		}},
	},
	GameBreakout: {
		scoreAtLeast("breakout-100", 100),
		scoreAtLeast("breakout-500", 500),
		scoreAtLeast("breakout-1000", 1000),
	},
	Game2048: {
		scoreAtLeast("2048-1000", 1000),
		scoreAtLeast("2048-5000", 5000),
		fieldAtLeast("2048-tile-512", maxTile, 512),
		fieldAtLeast("2048-tile-2048", maxTile, 2048),
	},
	GameMemoryMatch: {
		completed("memory-clear"),
		scoreAtLeast("memory-800", 800),
	},
	GameWhackAMole: {
		scoreAtLeast("whack-20", 20),
		scoreAtLeast("whack-50", 50),
		scoreAtLeast("whack-100", 100),
	},
}

// Evaluate returns the achievements satisfied by one result of game, in
// table order. FirstGame is always first. Unknown games yield only FirstGame.
func Evaluate(game string, score int64, extras *domain.Extras) []string {
	ids := []string{FirstGame}

	var x domain.Extras
	if extras != nil {
		x = *extras
	}
	for _, r := range rules[game] {
		if r.match(score, x) {
			ids = append(ids, r.id)
		}
	}
	return ids
}

// Candidates is Evaluate plus AllGames once gamesPlayed covers the whole
// catalog. gamesPlayed must already include game.
func Candidates(game string, score int64, extras *domain.Extras, gamesPlayed []string) []string {
	ids := Evaluate(game, score, extras)
	if coversCatalog(gamesPlayed) {
		ids = append(ids, AllGames)
	}
	return ids
}

package achievement

// Category groups achievements for display
type Category string

const (
	CategoryScore     Category = "score"
	CategoryMilestone Category = "milestone"
	CategoryChallenge Category = "challenge"
)

// Global achievement identifiers
const (
	FirstGame = "first-game"
	AllGames  = "all-games"
)

// Def describes an achievement. Defs are static and never change at runtime.
type Def struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Game        string   `json:"game"`
	Category    Category `json:"category"`
}

var defs = []Def{
	// Snake
	{ID: "snake-50", Title: "Snack Time", Description: "Score 50 in Snake", Icon: "🍎", Game: GameSnake, Category: CategoryScore},
	{ID: "snake-100", Title: "Snake Charmer", Description: "Score 100 in Snake", Icon: "🐍", Game: GameSnake, Category: CategoryScore},
	{ID: "snake-200", Title: "Serpent King", Description: "Score 200 in Snake", Icon: "👑", Game: GameSnake, Category: CategoryScore},

	// Flappy Bird
	{ID: "flappy-10", Title: "First Flight", Description: "Score 10 in Flappy Bird", Icon: "🐣", Game: GameFlappyBird, Category: CategoryScore},
	{ID: "flappy-25", Title: "Sky Surfer", Description: "Score 25 in Flappy Bird", Icon: "🦅", Game: GameFlappyBird, Category: CategoryScore},
	{ID: "flappy-50", Title: "Bird Legend", Description: "Score 50 in Flappy Bird", Icon: "🏆", Game: GameFlappyBird, Category: CategoryScore},

	// Dino Jump
	{ID: "dino-100", Title: "Desert Runner", Description: "Score 100 in Dino Jump", Icon: "🦕", Game: GameDinoJump, Category: CategoryScore},
	{ID: "dino-500", Title: "Dino Dash", Description: "Score 500 in Dino Jump", Icon: "🌵", Game: GameDinoJump, Category: CategoryScore},
	{ID: "dino-1000", Title: "Extinction Survivor", Description: "Score 1000 in Dino Jump", Icon: "☄️", Game: GameDinoJump, Category: CategoryScore},

	// Tetris
	{ID: "tetris-1000", Title: "Block Builder", Description: "Score 1000 in Tetris", Icon: "🧱", Game: GameTetris, Category: CategoryScore},
	{ID: "tetris-5000", Title: "Tetris Master", Description: "Score 5000 in Tetris", Icon: "🏗️", Game: GameTetris, Category: CategoryScore},
	{ID: "tetris-10-lines", Title: "Line Clearer", Description: "Clear 10 lines in one Tetris game", Icon: "📏", Game: GameTetris, Category: CategoryMilestone},
	{ID: "tetris-4-lines", Title: "TETRIS!", Description: "Clear 4 lines at once (Tetris)", Icon: "💥", Game: GameTetris, Category: CategoryChallenge},

	// Pong
	{ID: "pong-win", Title: "First Victory", Description: "Win a Pong match", Icon: "🏓", Game: GamePong, Category: CategoryMilestone},
	{ID: "pong-flawless", Title: "Flawless Victory", Description: "Win Pong without losing a point", Icon: "✨", Game: GamePong, Category: CategoryChallenge},

	// Space Invaders
	{ID: "invaders-500", Title: "Space Cadet", Description: "Score 500 in Space Invaders", Icon: "🚀", Game: GameSpaceInvaders, Category: CategoryScore},
	{ID: "invaders-2000", Title: "Alien Slayer", Description: "Score 2000 in Space Invaders", Icon: "👾", Game: GameSpaceInvaders, Category: CategoryScore},
	{ID: "invaders-wave-5", Title: "Wave Rider", Description: "Reach wave 5 in Space Invaders", Icon: "🌊", Game: GameSpaceInvaders, Category: CategoryMilestone},

	// Minesweeper
	{ID: "minesweeper-clear", Title: "Mine Sweeper", Description: "Clear a Minesweeper board", Icon: "🚩", Game: GameMinesweeper, Category: CategoryMilestone},
	{ID: "minesweeper-hard", Title: "Bomb Squad", Description: "Clear Minesweeper on hard", Icon: "💣", Game: GameMinesweeper, Category: CategoryChallenge},

	// Breakout
	{ID: "breakout-100", Title: "Brick Breaker", Description: "Score 100 in Breakout", Icon: "🧨", Game: GameBreakout, Category: CategoryScore},
	{ID: "breakout-500", Title: "Wall Crusher", Description: "Score 500 in Breakout", Icon: "🔨", Game: GameBreakout, Category: CategoryScore},
	{ID: "breakout-1000", Title: "Demolition Expert", Description: "Score 1000 in Breakout", Icon: "🏚️", Game: GameBreakout, Category: CategoryScore},

	// 2048
	{ID: "2048-1000", Title: "Tile Pusher", Description: "Score 1000 in 2048", Icon: "🔢", Game: Game2048, Category: CategoryScore},
	{ID: "2048-5000", Title: "Number Cruncher", Description: "Score 5000 in 2048", Icon: "🧮", Game: Game2048, Category: CategoryScore},
	{ID: "2048-tile-512", Title: "Halfway There", Description: "Reach the 512 tile in 2048", Icon: "🟨", Game: Game2048, Category: CategoryMilestone},
	{ID: "2048-tile-2048", Title: "2048!", Description: "Reach the 2048 tile", Icon: "🌟", Game: Game2048, Category: CategoryChallenge},

	// Memory Match
	{ID: "memory-clear", Title: "Total Recall", Description: "Match every pair in Memory Match", Icon: "🧠", Game: GameMemoryMatch, Category: CategoryMilestone},
	{ID: "memory-800", Title: "Photographic Memory", Description: "Finish Memory Match with 800 or more", Icon: "📸", Game: GameMemoryMatch, Category: CategoryChallenge},

	// Whack-a-Mole
	{ID: "whack-20", Title: "Mole Tapper", Description: "Score 20 in Whack-a-Mole", Icon: "🔨", Game: GameWhackAMole, Category: CategoryScore},
	{ID: "whack-50", Title: "Mole Masher", Description: "Score 50 in Whack-a-Mole", Icon: "🐹", Game: GameWhackAMole, Category: CategoryScore},
	{ID: "whack-100", Title: "Mole Exterminator", Description: "Score 100 in Whack-a-Mole", Icon: "🏅", Game: GameWhackAMole, Category: CategoryScore},

	// Global
	{ID: FirstGame, Title: "Welcome!", Description: "Play your first game", Icon: "🎮", Game: GameGlobal, Category: CategoryMilestone},
	{ID: AllGames, Title: "Arcade Master", Description: "Play every game in the arcade", Icon: "🎪", Game: GameGlobal, Category: CategoryChallenge},
}

var defsByID = func() map[string]Def {
	m := make(map[string]Def, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return m
}()

// Defs returns a copy of the achievement table in display order.
func Defs() []Def {
	out := make([]Def, len(defs))
	copy(out, defs)
	return out
}

// Lookup returns the definition for id.
func Lookup(id string) (Def, bool) {
	d, ok := defsByID[id]
	return d, ok
}

// Total is the number of defined achievements.
func Total() int { return len(defs) }

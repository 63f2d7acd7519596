package achievement

// Game identifiers understood by the rule table and the stores.
const (
	GameSnake         = "snake"
	GameFlappyBird    = "flappy-bird"
	GameDinoJump      = "dino-jump"
	GameTetris        = "tetris"
	GamePong          = "pong"
	GameSpaceInvaders = "space-invaders"
	GameMinesweeper   = "minesweeper"
	GameBreakout      = "breakout"
	Game2048          = "2048"
	GameMemoryMatch   = "memory-match"
	GameWhackAMole    = "whack-a-mole"

	// GameGlobal owns achievements that are not tied to a single game.
	GameGlobal = "global"
)

// Game is a catalog entry
type Game struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var catalog = []Game{
	{ID: GameSnake, Title: "Snake"},
	{ID: GameFlappyBird, Title: "Flappy Bird"},
	{ID: GameDinoJump, Title: "Dino Jump"},
	{ID: GameTetris, Title: "Tetris"},
	{ID: GamePong, Title: "Pong"},
	{ID: GameSpaceInvaders, Title: "Space Invaders"},
	{ID: GameMinesweeper, Title: "Minesweeper"},
	{ID: GameBreakout, Title: "Breakout"},
	{ID: Game2048, Title: "2048"},
	{ID: GameMemoryMatch, Title: "Memory Match"},
	{ID: GameWhackAMole, Title: "Whack-a-Mole"},
}

// Games returns the catalog in display order.
func Games() []Game {
	out := make([]Game, len(catalog))
	copy(out, catalog)
	return out
}

// KnownGames returns the identifiers of every game in the catalog.
func KnownGames() []string {
	ids := make([]string, len(catalog))
	for i, g := range catalog {
		ids[i] = g.ID
	}
	return ids
}

// IsKnownGame reports whether id names a catalog game.
func IsKnownGame(id string) bool {
	for _, g := range catalog {
		if g.ID == id {
			return true
		}
	}
	return false
}

// coversCatalog reports whether played contains every known game.
func coversCatalog(played []string) bool {
	seen := make(map[string]struct{}, len(played))
	for _, g := range played {
		if IsKnownGame(g) {
			seen[g] = struct{}{}
		}
	}
	return len(seen) == len(catalog)
}

package kafka

import (
	"math/rand"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
)

// RandomSession fabricates a plausible finished session for playerID,
// including the extras each game reports
func RandomSession(rng *rand.Rand, playerID string) domain.ScoreSubmission {
	games := achievement.KnownGames()
	game := games[rng.Intn(len(games))]
	submission := domain.ScoreSubmission{PlayerID: playerID, Game: game}

	switch game {
	case achievement.GameSnake:
		submission.Score = int64(rng.Intn(260))
	case achievement.GameFlappyBird:
		submission.Score = int64(rng.Intn(60))
	case achievement.GameTetris:
		lines := rng.Intn(120)
		submission.Score = int64(lines*100 + rng.Intn(100))
		submission.Extras = &domain.Extras{Lines: domain.Int(lines), FourLineClears: domain.Int(rng.Intn(lines/8 + 1))}
	case achievement.GamePong:
		player, ai := rng.Intn(12), rng.Intn(12)
		submission.Score = int64(player)
		submission.Extras = &domain.Extras{PlayerScore: domain.Int(player), AIScore: domain.Int(ai)}
	case achievement.GameSpaceInvaders:
		wave := rng.Intn(12) + 1
		submission.Score = int64(wave*100 + rng.Intn(100))
		submission.Extras = &domain.Extras{Wave: domain.Int(wave)}
	case achievement.Game2048:
		tiles := []int{128, 256, 512, 1024, 2048}
		submission.Score = int64(rng.Intn(30000))
		submission.Extras = &domain.Extras{MaxTile: domain.Int(tiles[rng.Intn(len(tiles))])}
	case achievement.GameMinesweeper:
		difficulties := []string{"easy", "medium", "hard"}
		submission.Score = int64(rng.Intn(2))
		submission.Extras = &domain.Extras{Difficulty: difficulties[rng.Intn(len(difficulties))]}
	default:
		submission.Score = int64(rng.Intn(1000))
	}
	return submission
}

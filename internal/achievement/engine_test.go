package achievement_test

import (
	"testing"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEvaluate(t *testing.T) {
	Convey("Given the achievement rule engine", t, func() {

		Convey("First play is granted for every game and score", func() {
			for _, game := range append(achievement.KnownGames(), "unknown", "") {
				for _, score := range []int64{0, 1, 999999} {
					So(achievement.Evaluate(game, score, nil), ShouldContain, achievement.FirstGame)
				}
			}
		})

		Convey("An unknown game yields only the first play achievement", func() {
			got := achievement.Evaluate("totally-unknown-game", 999999, &domain.Extras{
				Lines: domain.Int(50), Wave: domain.Int(9), MaxTile: domain.Int(4096),
			})
			So(got, ShouldResemble, []string{achievement.FirstGame})
		})

		Convey("Snake thresholds are cumulative", func() {
			So(achievement.Evaluate("snake", 30, nil), ShouldNotContain, "snake-50")

			got := achievement.Evaluate("snake", 100, nil)
			So(got, ShouldContain, "snake-50")
			So(got, ShouldContain, "snake-100")
			So(got, ShouldNotContain, "snake-200")

			So(achievement.Evaluate("snake", 250, nil), ShouldResemble,
				[]string{"first-game", "snake-50", "snake-100", "snake-200"})
		})

		Convey("Higher thresholds are supersets of lower ones", func() {
			cases := map[string][]int64{
				"snake":          {50, 100, 200},
				"flappy-bird":    {10, 25, 50},
				"dino-jump":      {100, 500, 1000},
				"space-invaders": {500, 2000},
				"breakout":       {100, 500, 1000},
				"whack-a-mole":   {20, 50, 100},
			}
			for game, thresholds := range cases {
				var prev []string
				for _, th := range thresholds {
					cur := achievement.Evaluate(game, th, nil)
					for _, id := range prev {
						So(cur, ShouldContain, id)
					}
					So(len(cur), ShouldBeGreaterThan, len(prev))
					prev = cur
				}
			}
		})

		Convey("Tetris consults lines and four-line clears independently of score", func() {
			got := achievement.Evaluate("tetris", 500, &domain.Extras{Lines: domain.Int(12)})
			So(got, ShouldContain, "tetris-10-lines")
			So(got, ShouldNotContain, "tetris-1000")

			So(achievement.Evaluate("tetris", 500, &domain.Extras{Lines: domain.Int(5)}), ShouldNotContain, "tetris-10-lines")
			So(achievement.Evaluate("tetris", 800, &domain.Extras{FourLineClears: domain.Int(1)}), ShouldContain, "tetris-4-lines")
			So(achievement.Evaluate("tetris", 800, &domain.Extras{FourLineClears: domain.Int(0)}), ShouldNotContain, "tetris-4-lines")
			So(achievement.Evaluate("tetris", 1000, nil), ShouldContain, "tetris-1000")
		})

		Convey("Pong match results", func() {
			Convey("A 7-3 win is a win but not flawless", func() {
				got := achievement.Evaluate("pong", 7, &domain.Extras{PlayerScore: domain.Int(7), AIScore: domain.Int(3)})
				So(got, ShouldContain, "pong-win")
				So(got, ShouldNotContain, "pong-flawless")
			})

			Convey("A 7-0 win is flawless", func() {
				got := achievement.Evaluate("pong", 7, &domain.Extras{PlayerScore: domain.Int(7), AIScore: domain.Int(0)})
				So(got, ShouldContain, "pong-win")
				So(got, ShouldContain, "pong-flawless")
			})

			Convey("A loss unlocks nothing", func() {
				got := achievement.Evaluate("pong", 3, &domain.Extras{PlayerScore: domain.Int(3), AIScore: domain.Int(7)})
				So(got, ShouldNotContain, "pong-win")
				So(got, ShouldNotContain, "pong-flawless")
			})

			Convey("Both sides must be reported", func() {
				So(achievement.Evaluate("pong", 7, &domain.Extras{PlayerScore: domain.Int(7)}), ShouldResemble, []string{"first-game"})
				So(achievement.Evaluate("pong", 7, &domain.Extras{AIScore: domain.Int(0)}), ShouldResemble, []string{"first-game"})
				So(achievement.Evaluate("pong", 7, nil), ShouldResemble, []string{"first-game"})
			})
		})

		Convey("Space invaders waves", func() {
			So(achievement.Evaluate("space-invaders", 300, &domain.Extras{Wave: domain.Int(5)}), ShouldContain, "invaders-wave-5")
			So(achievement.Evaluate("space-invaders", 300, &domain.Extras{Wave: domain.Int(3)}), ShouldNotContain, "invaders-wave-5")
			got := achievement.Evaluate("space-invaders", 500, nil)
			So(got, ShouldContain, "invaders-500")
			So(got, ShouldNotContain, "invaders-2000")
		})

		Convey("Extras only apply to the game they belong to", func() {
			x := &domain.Extras{Lines: domain.Int(40), Wave: domain.Int(10), MaxTile: domain.Int(2048), Difficulty: "hard"}
			So(achievement.Evaluate("snake", 10, x), ShouldResemble, []string{"first-game"})
		})

		Convey("2048 max tile thresholds", func() {
			got := achievement.Evaluate("2048", 600, &domain.Extras{MaxTile: domain.Int(512)})
			So(got, ShouldContain, "2048-tile-512")
			So(got, ShouldNotContain, "2048-tile-2048")
			So(got, ShouldNotContain, "2048-1000")

			got = achievement.Evaluate("2048", 20000, &domain.Extras{MaxTile: domain.Int(2048)})
			So(got, ShouldContain, "2048-tile-512")
			So(got, ShouldContain, "2048-tile-2048")
			So(got, ShouldContain, "2048-5000")
		})

		Convey("Minesweeper completion and difficulty", func() {
			got := achievement.Evaluate("minesweeper", 120, &domain.Extras{Difficulty: "hard"})
			So(got, ShouldContain, "minesweeper-clear")
			So(got, ShouldContain, "minesweeper-hard")

			got = achievement.Evaluate("minesweeper", 120, &domain.Extras{Difficulty: "easy"})
			So(got, ShouldContain, "minesweeper-clear")
			So(got, ShouldNotContain, "minesweeper-hard")

			Convey("A zero score does not count as a cleared board", func() {
				So(achievement.Evaluate("minesweeper", 0, &domain.Extras{Difficulty: "hard"}), ShouldResemble, []string{"first-game"})
				So(achievement.Evaluate("memory-match", 0, nil), ShouldResemble, []string{"first-game"})
			})
		})

		Convey("Negative scores match no thresholds", func() {
			for _, game := range achievement.KnownGames() {
				So(achievement.Evaluate(game, -5, nil), ShouldResemble, []string{"first-game"})
			}
		})

		Convey("Evaluation is deterministic", func() {
			x := &domain.Extras{Lines: domain.Int(11), FourLineClears: domain.Int(2)}
			So(achievement.Evaluate("tetris", 6000, x), ShouldResemble, achievement.Evaluate("tetris", 6000, x))
		})
	})
}

func TestCandidates(t *testing.T) {
	Convey("Given a games-played set", t, func() {
		Convey("When it covers the whole catalog", func() {
			got := achievement.Candidates("snake", 10, nil, achievement.KnownGames())
			So(got, ShouldContain, achievement.AllGames)
		})

		Convey("When one known game is missing", func() {
			played := achievement.KnownGames()[1:]
			played = append(played, "unknown-a", "unknown-b")
			got := achievement.Candidates("snake", 10, nil, played)
			So(got, ShouldNotContain, achievement.AllGames)
		})

		Convey("Duplicates do not fake coverage", func() {
			played := []string{"snake", "snake", "snake", "snake", "snake", "snake", "snake", "snake", "snake", "snake", "snake"}
			So(achievement.Candidates("snake", 10, nil, played), ShouldNotContain, achievement.AllGames)
		})
	})
}

func TestDefs(t *testing.T) {
	Convey("Given the achievement table", t, func() {
		all := achievement.Defs()

		Convey("IDs are unique", func() {
			seen := map[string]bool{}
			for _, d := range all {
				So(seen[d.ID], ShouldBeFalse)
				seen[d.ID] = true
			}
			So(achievement.Total(), ShouldEqual, len(all))
		})

		Convey("Every def belongs to a known game or global", func() {
			for _, d := range all {
				So(d.Game == achievement.GameGlobal || achievement.IsKnownGame(d.Game), ShouldBeTrue)
			}
		})

		Convey("Every game in the catalog has achievements", func() {
			games := map[string]bool{}
			for _, d := range all {
				games[d.Game] = true
			}
			for _, g := range achievement.KnownGames() {
				So(games[g], ShouldBeTrue)
			}
			So(games[achievement.GameGlobal], ShouldBeTrue)
		})

		Convey("Every id the engine can produce is defined", func() {
			x := &domain.Extras{
				Lines: domain.Int(99), FourLineClears: domain.Int(3), Wave: domain.Int(9),
				PlayerScore: domain.Int(7), AIScore: domain.Int(0), Difficulty: "hard", MaxTile: domain.Int(4096),
			}
			for _, g := range achievement.KnownGames() {
				for _, id := range achievement.Candidates(g, 1_000_000, x, achievement.KnownGames()) {
					_, ok := achievement.Lookup(id)
					So(ok, ShouldBeTrue)
				}
			}
		})

		Convey("Lookup finds known ids only", func() {
			d, ok := achievement.Lookup("snake-100")
			So(ok, ShouldBeTrue)
			So(d.Title, ShouldEqual, "Snake Charmer")
			So(d.Game, ShouldEqual, "snake")

			_, ok = achievement.Lookup("nonexistent")
			So(ok, ShouldBeFalse)
		})

		Convey("Defs returns a copy", func() {
			all[0].Title = "mutated"
			d, _ := achievement.Lookup(all[0].ID)
			So(d.Title, ShouldNotEqual, "mutated")
		})
	})
}

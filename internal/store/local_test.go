package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/store"
	. "github.com/smartystreets/goconvey/convey"
)

var _ store.Store = (*store.Local)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// steppingClock advances one millisecond per call
func steppingClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

// brokenStorage fails every operation
type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("storage disabled")
}

func (brokenStorage) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func (brokenStorage) Update(_ context.Context, _ []string, fn func(store.Txn) error) error {
	if err := fn(brokenTxn{}); err != nil {
		return err
	}
	return errors.New("quota exceeded")
}

type brokenTxn struct{}

func (brokenTxn) Get(string) ([]byte, bool, error) { return nil, false, errors.New("storage disabled") }
func (brokenTxn) Set(string, []byte)                {}

// readOnlyStorage serves reads from mem and refuses to commit
type readOnlyStorage struct {
	mem *store.MemoryStorage
}

func (r readOnlyStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.mem.Get(ctx, key)
}

func (readOnlyStorage) Set(context.Context, string, []byte) error {
	return errors.New("read only")
}

func (r readOnlyStorage) Update(ctx context.Context, keys []string, fn func(store.Txn) error) error {
	err := r.mem.Update(ctx, keys, func(txn store.Txn) error {
		if err := fn(txn); err != nil {
			return err
		}
		return errors.New("read only")
	})
	return err
}

// rerunStorage runs every update callback once against a discarded view
// before the committing run, like an optimistic retry after a conflict
type rerunStorage struct {
	*store.MemoryStorage
	runs int
}

func (r *rerunStorage) Update(ctx context.Context, keys []string, fn func(store.Txn) error) error {
	err := r.MemoryStorage.Update(ctx, keys, func(txn store.Txn) error {
		r.runs++
		if err := fn(txn); err != nil {
			return err
		}
		return errConflict
	})
	if !errors.Is(err, errConflict) {
		return err
	}
	return r.MemoryStorage.Update(ctx, keys, func(txn store.Txn) error {
		r.runs++
		return fn(txn)
	})
}

var errConflict = errors.New("conflict")

func scoresOf(entries []domain.ScoreEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Score
	}
	return out
}

func TestLocalSubmitScore(t *testing.T) {
	Convey("Given an empty local store", t, func() {
		ctx := context.Background()
		mem := store.NewMemoryStorage()
		s := store.NewLocal(mem, discardLogger(), store.WithClock(steppingClock()))

		Convey("Submitting snake 100 unlocks the first two snake thresholds", func() {
			res, err := s.SubmitScore(ctx, "", "snake", 100, nil)
			So(err, ShouldBeNil)
			So(res.ScoreID, ShouldNotBeEmpty)
			So(res.NewAchievements, ShouldContain, "first-game")
			So(res.NewAchievements, ShouldContain, "snake-50")
			So(res.NewAchievements, ShouldContain, "snake-100")
			So(res.NewAchievements, ShouldNotContain, "snake-200")

			best := s.GetBestScore(ctx, "", "snake")
			So(best, ShouldNotBeNil)
			So(best.Score, ShouldEqual, 100)
		})

		Convey("Top scores are ordered by score", func() {
			for _, v := range []int64{50, 200, 100} {
				_, err := s.SubmitScore(ctx, "", "snake", v, nil)
				So(err, ShouldBeNil)
			}
			So(scoresOf(s.GetTopScores(ctx, "", "snake", 10)), ShouldResemble, []int64{200, 100, 50})
			So(scoresOf(s.GetTopScores(ctx, "", "snake", 2)), ShouldResemble, []int64{200, 100})
			So(scoresOf(s.GetTopScores(ctx, "", "snake", 0)), ShouldResemble, []int64{200, 100, 50})
			So(s.GetTopScores(ctx, "", "tetris", 10), ShouldBeEmpty)
		})

		Convey("Tetris lines unlock independently of score", func() {
			res, _ := s.SubmitScore(ctx, "", "tetris", 500, &domain.Extras{Lines: domain.Int(12)})
			So(res.NewAchievements, ShouldContain, "tetris-10-lines")
			So(res.NewAchievements, ShouldNotContain, "tetris-1000")

			entry := s.GetAllScores(ctx, "")[0]
			So(entry.Lines, ShouldNotBeNil)
			So(*entry.Lines, ShouldEqual, 12)
			So(entry.Wave, ShouldBeNil)
		})

		Convey("Pong flawless and losing matches", func() {
			res, _ := s.SubmitScore(ctx, "", "pong", 3, &domain.Extras{PlayerScore: domain.Int(3), AIScore: domain.Int(7)})
			So(res.NewAchievements, ShouldNotContain, "pong-win")

			res, _ = s.SubmitScore(ctx, "", "pong", 7, &domain.Extras{PlayerScore: domain.Int(7), AIScore: domain.Int(0)})
			So(res.NewAchievements, ShouldContain, "pong-win")
			So(res.NewAchievements, ShouldContain, "pong-flawless")
		})

		Convey("Unlocks are idempotent", func() {
			first, _ := s.SubmitScore(ctx, "", "snake", 250, nil)
			So(first.NewAchievements, ShouldHaveLength, 4)

			second, _ := s.SubmitScore(ctx, "", "snake", 250, nil)
			So(second.NewAchievements, ShouldBeEmpty)
			So(second.NewAchievements, ShouldNotBeNil)
			So(second.ScoreID, ShouldNotEqual, first.ScoreID)

			counts := map[string]int{}
			for _, id := range s.GetUnlockedAchievementIDs(ctx, "") {
				counts[id]++
			}
			for _, n := range counts {
				So(n, ShouldEqual, 1)
			}
		})

		Convey("Playing the whole catalog unlocks all-games exactly once", func() {
			games := achievement.KnownGames()
			for i, g := range games {
				res, _ := s.SubmitScore(ctx, "", g, 1, nil)
				if i < len(games)-1 {
					So(res.NewAchievements, ShouldNotContain, achievement.AllGames)
				} else {
					So(res.NewAchievements, ShouldContain, achievement.AllGames)
				}
			}
			res, _ := s.SubmitScore(ctx, "", "snake", 1, nil)
			So(res.NewAchievements, ShouldNotContain, achievement.AllGames)
			So(s.GetGamesPlayed(ctx, ""), ShouldResemble, games)
		})

		Convey("Unknown games are stored and only grant first play", func() {
			res, _ := s.SubmitScore(ctx, "", "pinball", 999999, nil)
			So(res.NewAchievements, ShouldResemble, []string{"first-game"})
			So(s.GetGamesPlayed(ctx, ""), ShouldResemble, []string{"pinball"})
			So(s.GetTotalGamesPlayed(ctx, ""), ShouldEqual, 1)
		})
	})
}

func TestLocalAggregates(t *testing.T) {
	Convey("Given a store with a mixed history", t, func() {
		ctx := context.Background()
		s := store.NewLocal(store.NewMemoryStorage(), discardLogger(), store.WithClock(steppingClock()))

		history := []struct {
			game  string
			score int64
		}{
			{"snake", 40}, {"tetris", 1200}, {"snake", 90}, {"snake", 90}, {"tetris", 300}, {"dino-jump", 10},
		}
		ids := make([]string, 0, len(history))
		for _, h := range history {
			res, err := s.SubmitScore(ctx, "p1", h.game, h.score, nil)
			So(err, ShouldBeNil)
			ids = append(ids, res.ScoreID)
		}

		Convey("Best scores are per-game maxima, first one wins a tie", func() {
			best := s.GetAllBestScores(ctx, "p1")
			So(best, ShouldHaveLength, 3)
			So(best["snake"].Score, ShouldEqual, 90)
			So(best["snake"].ID, ShouldEqual, ids[2])
			So(best["tetris"].Score, ShouldEqual, 1200)
			So(best["dino-jump"].Score, ShouldEqual, 10)
		})

		Convey("Game stats count plays and track the best", func() {
			stats := s.GetGameStats(ctx, "p1")
			So(stats, ShouldHaveLength, 3)
			So(stats[0].Game, ShouldEqual, "snake")
			So(stats[0].TotalPlays, ShouldEqual, 3)
			So(stats[0].BestScore, ShouldEqual, 90)
			So(stats[1].Game, ShouldEqual, "tetris")
			So(stats[1].TotalPlays, ShouldEqual, 2)
			So(stats[1].LastPlayed, ShouldEqual, s.GetAllScores(ctx, "p1")[4].CreatedAt)

			So(s.GetGamePlayCounts(ctx, "p1"), ShouldResemble, map[string]int{"snake": 3, "tetris": 2, "dino-jump": 1})
			So(s.GetTotalGamesPlayed(ctx, "p1"), ShouldEqual, 6)
		})

		Convey("Recent scores are newest first", func() {
			recent := s.GetRecentScores(ctx, "p1", 2)
			So(recent, ShouldHaveLength, 2)
			So(recent[0].ID, ShouldEqual, ids[5])
			So(recent[1].ID, ShouldEqual, ids[4])
			So(s.GetRecentScores(ctx, "p1", 0), ShouldHaveLength, 6)
		})

		Convey("Other players see none of it", func() {
			So(s.GetAllScores(ctx, "p2"), ShouldBeEmpty)
			So(s.GetAllScores(ctx, ""), ShouldBeEmpty)
			So(s.GetUnlockedAchievements(ctx, "p2"), ShouldBeEmpty)
			So(s.GetBestScore(ctx, "p2", "snake"), ShouldBeNil)
		})

		Convey("Unlocks carry the submission time", func() {
			unlocks := s.GetUnlockedAchievements(ctx, "p1")
			So(unlocks[0].AchievementID, ShouldEqual, "first-game")
			So(unlocks[0].UnlockedAt, ShouldEqual, s.GetAllScores(ctx, "p1")[0].CreatedAt)
		})
	})
}

func TestLocalFavoritesAndName(t *testing.T) {
	Convey("Given an empty local store", t, func() {
		ctx := context.Background()
		s := store.NewLocal(store.NewMemoryStorage(), discardLogger())

		Convey("Toggling twice restores membership", func() {
			added, err := s.ToggleFavorite(ctx, "", "snake")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)
			So(s.IsFavorite(ctx, "", "snake"), ShouldBeTrue)

			added, err = s.ToggleFavorite(ctx, "", "snake")
			So(err, ShouldBeNil)
			So(added, ShouldBeFalse)
			So(s.GetFavorites(ctx, ""), ShouldBeEmpty)
			So(s.IsFavorite(ctx, "", "snake"), ShouldBeFalse)
		})

		Convey("Favorites keep insertion order", func() {
			s.ToggleFavorite(ctx, "", "tetris")
			s.ToggleFavorite(ctx, "", "pong")
			s.ToggleFavorite(ctx, "", "2048")
			s.ToggleFavorite(ctx, "", "pong")
			So(s.GetFavorites(ctx, ""), ShouldResemble, []string{"tetris", "2048"})
		})

		Convey("The display name defaults to Player", func() {
			So(s.GetPlayerName(ctx, ""), ShouldEqual, domain.DefaultPlayerName)
			So(s.SetPlayerName(ctx, "", "Ada"), ShouldBeNil)
			So(s.GetPlayerName(ctx, ""), ShouldEqual, "Ada")
			So(s.GetPlayerName(ctx, "someone-else"), ShouldEqual, domain.DefaultPlayerName)
		})
	})
}

func TestLocalDegradedStorage(t *testing.T) {
	Convey("Given corrupted blobs", t, func() {
		ctx := context.Background()
		mem := store.NewMemoryStorage()
		s := store.NewLocal(mem, discardLogger())

		So(mem.Set(ctx, "pp_scores", []byte("{not json")), ShouldBeNil)
		So(mem.Set(ctx, "pp_achievements", []byte(`"nope"`)), ShouldBeNil)
		So(mem.Set(ctx, "pp_favorites", []byte("[1,2")), ShouldBeNil)

		Convey("Reads degrade to empty results", func() {
			So(s.GetAllScores(ctx, ""), ShouldBeEmpty)
			So(s.GetAllScores(ctx, ""), ShouldNotBeNil)
			So(s.GetUnlockedAchievementIDs(ctx, ""), ShouldBeEmpty)
			So(s.GetFavorites(ctx, ""), ShouldBeEmpty)
			So(s.GetAllBestScores(ctx, ""), ShouldBeEmpty)
			So(s.GetGameStats(ctx, ""), ShouldBeEmpty)
		})

		Convey("A submission overwrites the corrupted blob", func() {
			res, err := s.SubmitScore(ctx, "", "snake", 60, nil)
			So(err, ShouldBeNil)
			So(res.NewAchievements, ShouldResemble, []string{"first-game", "snake-50"})
			So(s.GetAllScores(ctx, ""), ShouldHaveLength, 1)
		})
	})

	Convey("Given storage that fails every call", t, func() {
		ctx := context.Background()
		var failures int
		s := store.NewLocal(brokenStorage{}, discardLogger(), store.WithWriteErrorHook(func(error) { failures++ }))

		Convey("Writes are swallowed and reads are empty", func() {
			res, err := s.SubmitScore(ctx, "", "snake", 100, nil)
			So(err, ShouldBeNil)
			So(res.ScoreID, ShouldNotBeEmpty)
			So(res.NewAchievements, ShouldContain, "snake-100")
			So(failures, ShouldBeGreaterThan, 0)

			added, err := s.ToggleFavorite(ctx, "", "snake")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)

			So(s.SetPlayerName(ctx, "", "Ada"), ShouldBeNil)
			So(s.GetPlayerName(ctx, ""), ShouldEqual, domain.DefaultPlayerName)
			So(s.GetAllScores(ctx, ""), ShouldBeEmpty)
		})
	})
}

func TestLocalDurableWrites(t *testing.T) {
	Convey("Given a durable local store over failing storage", t, func() {
		ctx := context.Background()
		var failures int
		s := store.NewLocal(brokenStorage{}, discardLogger(),
			store.WithDurableWrites(),
			store.WithWriteErrorHook(func(error) { failures++ }))

		Convey("Every write reports the storage as unavailable", func() {
			res, err := s.SubmitScore(ctx, "p1", "snake", 100, nil)
			So(errors.Is(err, domain.ErrStorageUnavailable), ShouldBeTrue)
			So(res.ScoreID, ShouldBeEmpty)
			So(res.NewAchievements, ShouldBeEmpty)

			_, err = s.ToggleFavorite(ctx, "p1", "snake")
			So(errors.Is(err, domain.ErrStorageUnavailable), ShouldBeTrue)

			err = s.SetPlayerName(ctx, "p1", "Ada")
			So(errors.Is(err, domain.ErrStorageUnavailable), ShouldBeTrue)
			So(failures, ShouldEqual, 3)
		})
	})

	Convey("Given a durable store whose commits fail", t, func() {
		ctx := context.Background()
		mem := store.NewMemoryStorage()
		s := store.NewLocal(readOnlyStorage{mem: mem}, discardLogger(), store.WithDurableWrites())

		Convey("The submission fails and nothing is stored", func() {
			_, err := s.SubmitScore(ctx, "p1", "snake", 100, nil)
			So(errors.Is(err, domain.ErrStorageUnavailable), ShouldBeTrue)

			reader := store.NewLocal(mem, discardLogger())
			So(reader.GetAllScores(ctx, "p1"), ShouldBeEmpty)
			So(reader.GetUnlockedAchievementIDs(ctx, "p1"), ShouldBeEmpty)
		})
	})
}

func TestLocalSharedStorage(t *testing.T) {
	Convey("Given two stores over one storage", t, func() {
		ctx := context.Background()
		mem := store.NewMemoryStorage()
		a := store.NewLocal(mem, discardLogger(), store.WithDurableWrites())
		b := store.NewLocal(mem, discardLogger(), store.WithDurableWrites())

		const perStore = 50
		results := make(chan domain.SubmitResult, 2*perStore)
		errs := make(chan error, 2*perStore)
		var wg sync.WaitGroup
		for _, s := range []*store.Local{a, b} {
			wg.Add(1)
			go func(s *store.Local) {
				defer wg.Done()
				for i := 0; i < perStore; i++ {
					res, err := s.SubmitScore(ctx, "p1", "snake", 60, nil)
					if err != nil {
						errs <- err
						continue
					}
					results <- res
				}
			}(s)
		}
		wg.Wait()
		close(results)
		close(errs)

		Convey("No submission is lost and each unlock is announced once", func() {
			So(errs, ShouldBeEmpty)

			announced := map[string]int{}
			for res := range results {
				for _, id := range res.NewAchievements {
					announced[id]++
				}
			}
			So(announced, ShouldResemble, map[string]int{"first-game": 1, "snake-50": 1})
			So(a.GetAllScores(ctx, "p1"), ShouldHaveLength, 2*perStore)
			So(b.GetUnlockedAchievementIDs(ctx, "p1"), ShouldResemble, []string{"first-game", "snake-50"})
		})
	})

	Convey("Given storage that reruns update callbacks", t, func() {
		ctx := context.Background()
		st := &rerunStorage{MemoryStorage: store.NewMemoryStorage()}
		s := store.NewLocal(st, discardLogger(), store.WithDurableWrites())

		Convey("Only the committed run is reflected", func() {
			res, err := s.SubmitScore(ctx, "p1", "snake", 60, nil)
			So(err, ShouldBeNil)
			So(st.runs, ShouldEqual, 2)
			So(res.NewAchievements, ShouldResemble, []string{"first-game", "snake-50"})
			So(s.GetAllScores(ctx, "p1"), ShouldHaveLength, 1)
			So(s.GetAllScores(ctx, "p1")[0].ID, ShouldEqual, res.ScoreID)

			added, err := s.ToggleFavorite(ctx, "p1", "snake")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)
			So(s.GetFavorites(ctx, "p1"), ShouldResemble, []string{"snake"})
		})
	})
}

func TestBlobKey(t *testing.T) {
	Convey("The implicit profile uses bare keys", t, func() {
		So(store.BlobKey("pp_scores", ""), ShouldEqual, "pp_scores")
		So(store.BlobKey("pp_scores", "p1"), ShouldEqual, "pp_scores:p1")
	})
}

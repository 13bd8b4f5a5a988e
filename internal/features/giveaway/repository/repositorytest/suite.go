// Package repositorytest holds the behaviour every GiveawayRepository backend
// must satisfy. Backends call Run from their own tests.
package repositorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-bot/internal/features/giveaway/models"
	"giveaway-bot/internal/features/giveaway/repository"
)

func newGiveaway(id string, createdAt time.Time) *models.Giveaway {
	return &models.Giveaway{
		ID:           id,
		Prize:        "Telegram Premium",
		Description:  "3 months",
		EndTime:      createdAt.Add(time.Hour),
		WinnersCount: 1,
		Status:       models.GiveawayStatusActive,
		Participants: []int64{},
		Winners:      []int64{},
		CreatedBy:    1,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func Run(t *testing.T, newRepo func(t *testing.T) repository.GiveawayRepository) {
	t.Run("CreateActiveConflict", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_a", now)))
		err := repo.CreateActive(ctx, newGiveaway("GA_b", now))
		require.ErrorIs(t, err, repository.ErrActiveExists)

		active, err := repo.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, "GA_a", active.ID)

		_, err = repo.GetByID(ctx, "GA_b")
		assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	})

	t.Run("GetActiveNone", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetActive(context.Background())
		assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	})

	t.Run("ConcurrentJoinsHaveNoDuplicates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_join", time.Now().UTC())))

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			counts []int
		)
		for i := 0; i < 20; i++ {
			for _, uid := range []int64{100, 200, 300} {
				wg.Add(1)
				go func(uid int64) {
					defer wg.Done()
					ok, n, err := repo.AddParticipantIfAbsent(ctx, "GA_join", uid)
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						counts = append(counts, n)
						mu.Unlock()
					}
				}(uid)
			}
		}
		wg.Wait()

		g, err := repo.GetByID(ctx, "GA_join")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{1, 2, 3}, counts)
		assert.ElementsMatch(t, []int64{100, 200, 300}, g.Participants)
	})

	t.Run("JoinPreservesOrder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_order", time.Now().UTC())))
		var counts []int
		for _, uid := range []int64{5, 3, 9, 3} {
			_, n, err := repo.AddParticipantIfAbsent(ctx, "GA_order", uid)
			require.NoError(t, err)
			counts = append(counts, n)
		}
		assert.Equal(t, []int{1, 2, 3, 3}, counts)
		g, err := repo.GetByID(ctx, "GA_order")
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 3, 9}, g.Participants)
	})

	t.Run("CloseActive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_close", time.Now().UTC())))
		_, _, err := repo.AddParticipantIfAbsent(ctx, "GA_close", 42)
		require.NoError(t, err)

		var seen []int64
		g, err := repo.CloseActive(ctx, "GA_close", func(p []int64) ([]int64, models.GiveawayStatus) {
			seen = p
			return p, models.GiveawayStatusPendingAnnouncement
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{42}, seen)
		assert.Equal(t, models.GiveawayStatusPendingAnnouncement, g.Status)
		assert.Equal(t, []int64{42}, g.Winners)

		_, err = repo.GetActive(ctx)
		assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)

		_, _, err = repo.AddParticipantIfAbsent(ctx, "GA_close", 43)
		assert.ErrorIs(t, err, repository.ErrNotActive)

		_, err = repo.CloseActive(ctx, "GA_close", func(p []int64) ([]int64, models.GiveawayStatus) {
			return nil, models.GiveawayStatusEnded
		})
		assert.ErrorIs(t, err, repository.ErrStatusConflict)

		// a new giveaway can start once the previous one is closed
		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_next", time.Now().UTC())))
	})

	t.Run("SetStatusGuard", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_status", time.Now().UTC())))
		_, err := repo.CloseActive(ctx, "GA_status", func(p []int64) ([]int64, models.GiveawayStatus) {
			return []int64{1}, models.GiveawayStatusPendingAnnouncement
		})
		require.NoError(t, err)

		require.NoError(t, repo.SetStatus(ctx, "GA_status", models.GiveawayStatusPendingAnnouncement, models.GiveawayStatusAnnounced))
		err = repo.SetStatus(ctx, "GA_status", models.GiveawayStatusPendingAnnouncement, models.GiveawayStatusAnnounced)
		assert.ErrorIs(t, err, repository.ErrStatusConflict)

		err = repo.SetStatus(ctx, "GA_missing", models.GiveawayStatusEnded, models.GiveawayStatusAnnounced)
		assert.ErrorIs(t, err, repository.ErrGiveawayNotFound)
	})

	t.Run("ReplaceWinners", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateActive(ctx, newGiveaway("GA_rr", time.Now().UTC())))

		err := repo.ReplaceWinners(ctx, "GA_rr", []int64{1})
		assert.ErrorIs(t, err, repository.ErrStatusConflict)

		_, err = repo.CloseActive(ctx, "GA_rr", func(p []int64) ([]int64, models.GiveawayStatus) {
			return []int64{}, models.GiveawayStatusEnded
		})
		require.NoError(t, err)
		require.NoError(t, repo.ReplaceWinners(ctx, "GA_rr", []int64{7, 8}))

		g, err := repo.GetByID(ctx, "GA_rr")
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 8}, g.Winners)
		assert.Equal(t, models.GiveawayStatusEnded, g.Status)
	})

	t.Run("ListRecentNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Millisecond)

		for i := 0; i < 4; i++ {
			id := fmt.Sprintf("GA_list_%d", i)
			require.NoError(t, repo.CreateActive(ctx, newGiveaway(id, base.Add(time.Duration(i)*time.Minute))))
			to := models.GiveawayStatusEnded
			if i%2 == 1 {
				to = models.GiveawayStatusAnnounced
			}
			_, err := repo.CloseActive(ctx, id, func(p []int64) ([]int64, models.GiveawayStatus) {
				return []int64{}, to
			})
			require.NoError(t, err)
		}

		got, err := repo.ListRecent(ctx, []models.GiveawayStatus{models.GiveawayStatusEnded, models.GiveawayStatusAnnounced}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "GA_list_3", got[0].ID)
		assert.Equal(t, "GA_list_2", got[1].ID)
		assert.Equal(t, "GA_list_1", got[2].ID)

		ended, err := repo.ListRecent(ctx, []models.GiveawayStatus{models.GiveawayStatusEnded}, 10)
		require.NoError(t, err)
		require.Len(t, ended, 2)
		assert.Equal(t, "GA_list_2", ended[0].ID)

		n, err := repo.CountByStatus(ctx, models.GiveawayStatusAnnounced)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("SlicesAreNeverNil", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		g := newGiveaway("GA_nil", time.Now().UTC())
		g.Participants = nil
		g.Winners = nil
		require.NoError(t, repo.CreateActive(ctx, g))

		check := func(g *models.Giveaway) {
			assert.NotNil(t, g.Participants, g.ID)
			assert.NotNil(t, g.Winners, g.ID)
		}

		active, err := repo.GetActive(ctx)
		require.NoError(t, err)
		check(active)

		_, err = repo.CloseActive(ctx, "GA_nil", func(p []int64) ([]int64, models.GiveawayStatus) {
			return nil, models.GiveawayStatusEnded
		})
		require.NoError(t, err)

		byID, err := repo.GetByID(ctx, "GA_nil")
		require.NoError(t, err)
		check(byID)

		list, err := repo.ListRecent(ctx, []models.GiveawayStatus{models.GiveawayStatusEnded}, 5)
		require.NoError(t, err)
		require.Len(t, list, 1)
		check(list[0])
	})
}

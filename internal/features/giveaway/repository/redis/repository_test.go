package redis

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-bot/internal/features/giveaway/repository"
	"giveaway-bot/internal/features/giveaway/repository/repositorytest"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRepository(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.GiveawayRepository {
		_, client := newMiniredisClient(t)
		return NewRedisGiveawayRepository(client)
	})
}

// Runs against a real server: TEST_REDIS_ADDR=localhost:6379. Database 15 is flushed.
func TestRedisRepositoryServer(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	repositorytest.Run(t, func(t *testing.T) repository.GiveawayRepository {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
		t.Cleanup(func() { _ = client.Close() })
		require.NoError(t, client.FlushDB(context.Background()).Err())
		return NewRedisGiveawayRepository(client)
	})
}

func TestRedisRepositoryRejectsUnknownStatus(t *testing.T) {
	mr, client := newMiniredisClient(t)
	repo := NewRedisGiveawayRepository(client)
	ctx := context.Background()

	require.NoError(t, mr.Set(makeGiveawayKey("GA_bad"), `{"id":"GA_bad","prize":"x","status":"paused"}`))
	require.NoError(t, mr.Set(keyActiveGiveaway, "GA_bad"))

	_, err := repo.GetByID(ctx, "GA_bad")
	assert.ErrorIs(t, err, repository.ErrInvalidStatus)

	_, err = repo.GetActive(ctx)
	assert.ErrorIs(t, err, repository.ErrInvalidStatus)
}

package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-bot/internal/common/cache"
	"giveaway-bot/internal/features/session/models"
	"giveaway-bot/internal/features/session/repository"
)

type redisStore struct {
	cache *cache.CacheService
	ttl   time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) repository.SessionStore {
	return &redisStore{
		cache: cache.NewCacheService(client, "session:"),
		ttl:   ttl,
	}
}

func (s *redisStore) Get(ctx context.Context, userID int64) (*models.Session, error) {
	var sess models.Session
	if err := s.cache.Get(ctx, strconv.FormatInt(userID, 10), &sess); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *redisStore) Save(ctx context.Context, sess *models.Session) error {
	return s.cache.Set(ctx, strconv.FormatInt(sess.UserID, 10), sess, s.ttl)
}

func (s *redisStore) Delete(ctx context.Context, userID int64) error {
	return s.cache.Delete(ctx, strconv.FormatInt(userID, 10))
}

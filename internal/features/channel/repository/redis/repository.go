package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"giveaway-bot/internal/features/channel/models"
	"giveaway-bot/internal/features/channel/repository"
)

const (
	keySettings  = "settings:main"
	maxTxRetries = 10
)

var errTxRetriesExceeded = errors.New("settings update retries exceeded")

type redisRepository struct {
	client         *redis.Client
	defaultEnabled bool
}

func NewRedisSettingsRepository(client *redis.Client, defaultEnabled bool) repository.SettingsRepository {
	return &redisRepository{
		client:         client,
		defaultEnabled: defaultEnabled,
	}
}

func (r *redisRepository) read(ctx context.Context, c redis.StringCmdable) (*models.Settings, error) {
	data, err := c.Get(ctx, keySettings).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &models.Settings{ForceSubscribe: r.defaultEnabled}, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	var s models.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &s, nil
}

// update applies fn under WATCH so concurrent admin commands do not lose writes.
func (r *redisRepository) update(ctx context.Context, fn func(s *models.Settings) bool) (bool, error) {
	var changed bool
	txf := func(tx *redis.Tx) error {
		s, err := r.read(ctx, tx)
		if err != nil {
			return err
		}
		changed = fn(s)
		if !changed {
			return nil
		}
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keySettings, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, keySettings)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return changed, err
	}
	return false, errTxRetriesExceeded
}

func (r *redisRepository) Get(ctx context.Context) (*models.Settings, error) {
	return r.read(ctx, r.client)
}

func (r *redisRepository) SetForceSubscribe(ctx context.Context, enabled bool) error {
	_, err := r.update(ctx, func(s *models.Settings) bool {
		s.ForceSubscribe = enabled
		return true
	})
	return err
}

func (r *redisRepository) AddForceChannel(ctx context.Context, ch models.ForceChannel) (bool, error) {
	return r.update(ctx, func(s *models.Settings) bool {
		if s.HasForceChannel(ch.ID) {
			return false
		}
		s.ForceChannels = append(s.ForceChannels, ch)
		return true
	})
}

func (r *redisRepository) RemoveForceChannel(ctx context.Context, id int64) (bool, error) {
	return r.update(ctx, func(s *models.Settings) bool {
		out := s.ForceChannels[:0]
		for _, ch := range s.ForceChannels {
			if ch.ID != id {
				out = append(out, ch)
			}
		}
		changed := len(out) != len(s.ForceChannels)
		s.ForceChannels = out
		return changed
	})
}

func (r *redisRepository) ReplaceForceChannels(ctx context.Context, channels []models.ForceChannel) error {
	_, err := r.update(ctx, func(s *models.Settings) bool {
		s.ForceChannels = channels
		return true
	})
	return err
}

func (r *redisRepository) AddAdmin(ctx context.Context, id int64) (bool, error) {
	return r.update(ctx, func(s *models.Settings) bool {
		if s.HasAdmin(id) {
			return false
		}
		s.Admins = append(s.Admins, id)
		return true
	})
}

func (r *redisRepository) RemoveAdmin(ctx context.Context, id int64) (bool, error) {
	return r.update(ctx, func(s *models.Settings) bool {
		out := s.Admins[:0]
		for _, a := range s.Admins {
			if a != id {
				out = append(out, a)
			}
		}
		changed := len(out) != len(s.Admins)
		s.Admins = out
		return changed
	})
}

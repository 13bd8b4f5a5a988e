package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/broadcast/repository"
)

const keyBroadcastHistory = "broadcasts:history"

type redisRepository struct {
	client    *redis.Client
	retention int64
}

func NewRedisHistoryRepository(client *redis.Client, retention int) repository.HistoryRepository {
	if retention <= 0 {
		retention = 100
	}
	return &redisRepository{client: client, retention: int64(retention)}
}

func (r *redisRepository) Save(ctx context.Context, rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, keyBroadcastHistory, data)
	pipe.LTrim(ctx, keyBroadcastHistory, 0, r.retention-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save broadcast record: %w", err)
	}
	return nil
}

func (r *redisRepository) Recent(ctx context.Context, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	raw, err := r.client.LRange(ctx, keyBroadcastHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read broadcast history: %w", err)
	}

	out := make([]*models.Record, 0, len(raw))
	for _, s := range raw {
		var rec models.Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal broadcast record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

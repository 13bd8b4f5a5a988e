package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-bot/internal/features/giveaway/models"
	"giveaway-bot/internal/features/giveaway/repository"
)

const (
	keyPrefixGiveaway  = "giveaway:"
	keyActiveGiveaway  = "giveaways:active"
	keyPrefixStatusSet = "giveaways:status:"

	maxTxRetries = 10
)

// createActiveScript sets the active pointer, the document and the status index
// in one step. Returns 0 when another giveaway is already active.
var createActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// joinScript appends a participant only while the giveaway is the active one.
// Returns {status, count}: status is -1 when it is not active, 0 when already
// present, 1 when added; count is the list length after the call.
var joinScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return {-1, 0}
end
if redis.call('SADD', KEYS[2], ARGV[2]) == 0 then
  return {0, redis.call('LLEN', KEYS[3])}
end
return {1, redis.call('RPUSH', KEYS[3], ARGV[2])}
`)

type redisRepository struct {
	client *redis.Client
}

func NewRedisGiveawayRepository(client *redis.Client) repository.GiveawayRepository {
	return &redisRepository{client: client}
}

func makeGiveawayKey(id string) string {
	return keyPrefixGiveaway + id
}

// participants are kept outside the document so joins never rewrite it
func makeParticipantsListKey(id string) string {
	return keyPrefixGiveaway + id + ":participants"
}

func makeParticipantsSetKey(id string) string {
	return keyPrefixGiveaway + id + ":participants:set"
}

func makeStatusKey(status models.GiveawayStatus) string {
	return keyPrefixStatusSet + string(status)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// reader is satisfied by both *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func encode(g *models.Giveaway) ([]byte, error) {
	doc := *g
	doc.Participants = nil
	data, err := json.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal giveaway: %w", err)
	}
	return data, nil
}

func (r *redisRepository) load(ctx context.Context, rd reader, id string) (*models.Giveaway, error) {
	data, err := rd.Get(ctx, makeGiveawayKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}

	var g models.Giveaway
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal giveaway: %w", err)
	}

	raw, err := rd.LRange(ctx, makeParticipantsListKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	g.Participants = make([]int64, 0, len(raw))
	for _, s := range raw {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id %q: %w", s, err)
		}
		g.Participants = append(g.Participants, uid)
	}
	if err := repository.Normalize(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *redisRepository) CreateActive(ctx context.Context, g *models.Giveaway) error {
	data, err := encode(g)
	if err != nil {
		return err
	}

	ok, err := createActiveScript.Run(ctx, r.client,
		[]string{keyActiveGiveaway, makeGiveawayKey(g.ID), makeStatusKey(models.GiveawayStatusActive)},
		g.ID, data, score(g.CreatedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	if ok == 0 {
		return repository.ErrActiveExists
	}
	return nil
}

func (r *redisRepository) GetActive(ctx context.Context) (*models.Giveaway, error) {
	id, err := r.client.Get(ctx, keyActiveGiveaway).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to get active giveaway: %w", err)
	}
	return r.load(ctx, r.client, id)
}

func (r *redisRepository) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	return r.load(ctx, r.client, id)
}

func (r *redisRepository) AddParticipantIfAbsent(ctx context.Context, id string, userID int64) (bool, int, error) {
	res, err := joinScript.Run(ctx, r.client,
		[]string{keyActiveGiveaway, makeParticipantsSetKey(id), makeParticipantsListKey(id)},
		id, strconv.FormatInt(userID, 10),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to add participant: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected join reply %v", res)
	}

	switch res[0] {
	case 1:
		return true, int(res[1]), nil
	case 0:
		return false, int(res[1]), nil
	}

	exists, err := r.client.Exists(ctx, makeGiveawayKey(id)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check giveaway: %w", err)
	}
	if exists == 0 {
		return false, 0, repository.ErrGiveawayNotFound
	}
	return false, 0, repository.ErrNotActive
}

// watch retries fn while a watched key changes under it.
func (r *redisRepository) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return repository.ErrStatusConflict
}

func (r *redisRepository) CloseActive(ctx context.Context, id string, pick repository.PickFunc) (*models.Giveaway, error) {
	var closed *models.Giveaway

	err := r.watch(ctx, func(tx *redis.Tx) error {
		g, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if g.Status != models.GiveawayStatusActive {
			return repository.ErrStatusConflict
		}
		activeID, err := tx.Get(ctx, keyActiveGiveaway).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to get active pointer: %w", err)
		}

		winners, to := pick(append([]int64(nil), g.Participants...))
		g.Winners = append([]int64{}, winners...)
		g.Status = to
		g.UpdatedAt = time.Now().UTC()

		data, err := encode(g)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, makeGiveawayKey(id), data, 0)
			pipe.ZRem(ctx, makeStatusKey(models.GiveawayStatusActive), id)
			pipe.ZAdd(ctx, makeStatusKey(to), redis.Z{Score: score(g.CreatedAt), Member: id})
			if activeID == id {
				pipe.Del(ctx, keyActiveGiveaway)
			}
			return nil
		})
		if err != nil {
			return err
		}
		closed = g
		return nil
	}, makeGiveawayKey(id), keyActiveGiveaway, makeParticipantsListKey(id))
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (r *redisRepository) SetStatus(ctx context.Context, id string, from, to models.GiveawayStatus) error {
	return r.watch(ctx, func(tx *redis.Tx) error {
		g, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if g.Status != from {
			return repository.ErrStatusConflict
		}
		g.Status = to
		g.UpdatedAt = time.Now().UTC()

		data, err := encode(g)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, makeGiveawayKey(id), data, 0)
			pipe.ZRem(ctx, makeStatusKey(from), id)
			pipe.ZAdd(ctx, makeStatusKey(to), redis.Z{Score: score(g.CreatedAt), Member: id})
			if from == models.GiveawayStatusActive {
				pipe.Del(ctx, keyActiveGiveaway)
			}
			return nil
		})
		return err
	}, makeGiveawayKey(id), keyActiveGiveaway)
}

func (r *redisRepository) ReplaceWinners(ctx context.Context, id string, winners []int64) error {
	return r.watch(ctx, func(tx *redis.Tx) error {
		g, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !repository.Rerollable(g.Status) {
			return repository.ErrStatusConflict
		}
		g.Winners = append([]int64{}, winners...)
		g.UpdatedAt = time.Now().UTC()

		data, err := encode(g)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, makeGiveawayKey(id), data, 0)
			return nil
		})
		return err
	}, makeGiveawayKey(id))
}

func (r *redisRepository) ListRecent(ctx context.Context, statuses []models.GiveawayStatus, limit int) ([]*models.Giveaway, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	var out []*models.Giveaway
	for _, status := range statuses {
		ids, err := r.client.ZRevRange(ctx, makeStatusKey(status), 0, stop).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list %s giveaways: %w", status, err)
		}
		for _, id := range ids {
			g, err := r.load(ctx, r.client, id)
			if err != nil {
				if errors.Is(err, repository.ErrGiveawayNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, g)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *redisRepository) CountByStatus(ctx context.Context, status models.GiveawayStatus) (int64, error) {
	n, err := r.client.ZCard(ctx, makeStatusKey(status)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s giveaways: %w", status, err)
	}
	return n, nil
}

func (r *redisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

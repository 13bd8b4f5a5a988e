package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-bot/internal/features/user/models"
	"giveaway-bot/internal/features/user/repository"
)

const (
	keyUserIDs = "users:ids"
	keyChats   = "chats"
)

func userKey(id int64) string      { return fmt.Sprintf("user:%d", id) }
func referralsKey(id int64) string { return fmt.Sprintf("user:%d:referrals", id) }

// KEYS: user, ids set, referrer set. ARGV: json, id, referrer (0 = none).
var createUserScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[2])
if ARGV[3] ~= '0' then
	redis.call('SADD', KEYS[3], ARGV[2])
end
return 1
`)

type userRepository struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) repository.UserRepository {
	return &userRepository{
		client: client,
	}
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("failed to marshal user: %w", err)
	}

	keys := []string{userKey(user.ID), keyUserIDs, referralsKey(user.ReferredBy)}
	created, err := createUserScript.Run(ctx, r.client, keys,
		userJSON, user.ID, user.ReferredBy).Int()
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return created == 1, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	// XX: never resurrect a user that was not registered
	if err := r.client.SetXX(ctx, userKey(user.ID), userJSON, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	userJSON, err := r.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(userJSON, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListIDs(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, keyUserIDs).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return parseIDs(members), nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, keyUserIDs).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *userRepository) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	n, err := r.client.SCard(ctx, referralsKey(referrerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return n, nil
}

type chatRepository struct {
	client *redis.Client
}

// NewChatRepository keeps chats in a single hash keyed by chat id.
func NewChatRepository(client *redis.Client) repository.ChatRepository {
	return &chatRepository{client: client}
}

func (r *chatRepository) Upsert(ctx context.Context, chat *models.Chat) error {
	chatJSON, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}
	if err := r.client.HSet(ctx, keyChats, strconv.FormatInt(chat.ID, 10), chatJSON).Err(); err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (r *chatRepository) Remove(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.HDel(ctx, keyChats, strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove chat: %w", err)
	}
	return n == 1, nil
}

func (r *chatRepository) List(ctx context.Context) ([]*models.Chat, error) {
	values, err := r.client.HVals(ctx, keyChats).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	chats := make([]*models.Chat, 0, len(values))
	for _, v := range values {
		var chat models.Chat
		if err := json.Unmarshal([]byte(v), &chat); err != nil {
			continue
		}
		chats = append(chats, &chat)
	}
	return chats, nil
}

func parseIDs(members []string) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

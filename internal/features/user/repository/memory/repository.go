package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"giveaway-bot/internal/features/user/models"
	"giveaway-bot/internal/features/user/repository"
)

// Store keeps users and chats in process memory and implements both
// repositories.
type Store struct {
	mu    sync.RWMutex
	users map[int64]models.User
	order []int64
	chats map[int64]models.Chat
}

var (
	_ repository.UserRepository = (*Store)(nil)
	_ repository.ChatRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		users: make(map[int64]models.User),
		chats: make(map[int64]models.Chat),
	}
}

func (s *Store) CreateIfAbsent(_ context.Context, user *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	s.users[user.ID] = *user
	s.order = append(s.order, user.ID)
	return true, nil
}

func (s *Store) UpdateProfile(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[user.ID]
	if !ok {
		return nil
	}
	u.Username, u.FirstName, u.LastName = user.Username, user.FirstName, user.LastName
	u.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = u
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) ListIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]int64(nil), s.order...), nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.users)), nil
}

func (s *Store) CountReferrals(_ context.Context, referrerID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if u.ReferredBy == referrerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Upsert(_ context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats[chat.ID] = *chat
	return nil
}

func (s *Store) Remove(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return false, nil
	}
	delete(s.chats, id)
	return true, nil
}

func (s *Store) List(_ context.Context) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]*models.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		c := c
		chats = append(chats, &c)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

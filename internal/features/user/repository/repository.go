package repository

import (
	"context"
	"errors"

	"giveaway-bot/internal/features/user/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	// CreateIfAbsent stores a new user and links it to the referrer. Existing
	// users are left untouched and created is false.
	CreateIfAbsent(ctx context.Context, user *models.User) (created bool, err error)
	UpdateProfile(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int64, error)
	CountReferrals(ctx context.Context, referrerID int64) (int64, error)
}

type ChatRepository interface {
	Upsert(ctx context.Context, chat *models.Chat) error
	Remove(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*models.Chat, error)
}

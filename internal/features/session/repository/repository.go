package repository

import (
	"context"
	"errors"

	"giveaway-bot/internal/features/session/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps dialog sessions. Save refreshes the TTL.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, userID int64) error
}

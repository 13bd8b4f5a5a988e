package repository

import (
	"context"

	"giveaway-bot/internal/features/broadcast/models"
)

// HistoryRepository keeps a bounded log of admin broadcasts.
type HistoryRepository interface {
	Save(ctx context.Context, rec *models.Record) error
	Recent(ctx context.Context, limit int) ([]*models.Record, error)
}

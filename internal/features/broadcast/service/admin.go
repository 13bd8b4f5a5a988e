package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/broadcast/repository"
)

// Fanouter is implemented by Coordinator.
type Fanouter interface {
	Fanout(ctx context.Context, recipients []models.Recipient, payload models.Payload) (models.Result, error)
}

// AudienceSource resolves a broadcast target into recipients.
type AudienceSource interface {
	Recipients(ctx context.Context, target models.Target) ([]models.Recipient, error)
}

// AdminBroadcaster runs operator-initiated broadcasts and keeps their history.
type AdminBroadcaster struct {
	fanout   Fanouter
	audience AudienceSource
	history  repository.HistoryRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAdminBroadcaster(fanout Fanouter, audience AudienceSource, history repository.HistoryRepository, logger zerolog.Logger) *AdminBroadcaster {
	return &AdminBroadcaster{
		fanout:   fanout,
		audience: audience,
		history:  history,
		logger:   logger.With().Str("component", "admin_broadcast").Logger(),
		now:      time.Now,
	}
}

func (b *AdminBroadcaster) Broadcast(ctx context.Context, target models.Target, payload models.Payload, sentBy int64) (*models.Record, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	recipients, err := b.audience.Recipients(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	res, fanoutErr := b.fanout.Fanout(ctx, recipients, payload)

	rec := &models.Record{
		ID:        uuid.NewString(),
		Target:    target,
		SentBy:    sentBy,
		Total:     res.Total,
		Success:   res.Success,
		Failed:    res.Failed,
		Blocked:   res.Blocked,
		Skipped:   res.Skipped,
		CreatedAt: b.now().UTC(),
	}

	// the record is kept even for a cancelled run
	if err := b.history.Save(context.WithoutCancel(ctx), rec); err != nil {
		b.logger.Error().Err(err).Str("broadcast_id", rec.ID).Msg("Failed to save broadcast record")
	}

	return rec, fanoutErr
}

func (b *AdminBroadcaster) History(ctx context.Context, limit int) ([]*models.Record, error) {
	return b.history.Recent(ctx, limit)
}

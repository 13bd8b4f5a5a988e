package repository

import (
	"context"

	"giveaway-bot/internal/features/channel/models"
)

// SettingsRepository stores force-subscription settings and dynamic admins.
// Add/Remove report whether anything changed.
type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	SetForceSubscribe(ctx context.Context, enabled bool) error

	AddForceChannel(ctx context.Context, ch models.ForceChannel) (bool, error)
	RemoveForceChannel(ctx context.Context, id int64) (bool, error)
	ReplaceForceChannels(ctx context.Context, channels []models.ForceChannel) error

	AddAdmin(ctx context.Context, id int64) (bool, error)
	RemoveAdmin(ctx context.Context, id int64) (bool, error)
}

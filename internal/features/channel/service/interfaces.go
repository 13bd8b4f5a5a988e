package service

import (
	"context"

	"giveaway-bot/internal/features/channel/models"
)

type SettingsService interface {
	// ForceSubscribe returns the switch and the channels a participant must be in.
	ForceSubscribe(ctx context.Context) (bool, []models.ForceChannel, error)
	SetForceSubscribe(ctx context.Context, enabled bool) error

	AddForceChannel(ctx context.Context, ref string) (*models.ForceChannel, error)
	RemoveForceChannel(ctx context.Context, id int64) error
	ForceChannels(ctx context.Context) ([]models.ForceChannel, error)

	IsAdmin(ctx context.Context, userID int64) (bool, error)
	Admins(ctx context.Context) (permanent, dynamic []int64, err error)
	AddAdmin(ctx context.Context, userID int64) error
	RemoveAdmin(ctx context.Context, userID int64) error

	// MigrateLegacy rewrites force channels stored in older shapes and returns
	// how many entries were upgraded.
	MigrateLegacy(ctx context.Context) (int, error)
	Snapshot(ctx context.Context) (*models.Settings, error)
}

// ChatResolver looks chats up through the Bot API.
type ChatResolver interface {
	// ResolveChat accepts @username, a bare username, a t.me link or a numeric id.
	ResolveChat(ctx context.Context, ref string) (*models.ChatInfo, error)
	BotIsAdmin(ctx context.Context, chatID int64) (bool, error)
}

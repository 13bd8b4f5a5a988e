package service

import (
	"context"
	"time"

	bmodels "giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/giveaway/models"
)

// GiveawayService defines the interface for giveaway operations
type GiveawayService interface {
	Create(ctx context.Context, input CreateInput) (*models.Giveaway, error)
	Join(ctx context.Context, giveawayID string, userID int64) (*models.JoinResult, error)
	JoinActive(ctx context.Context, userID int64) (*models.JoinResult, error)
	Close(ctx context.Context, giveawayID string, autoAnnounce bool) (*models.CloseResult, error)
	Announce(ctx context.Context, giveawayID string) (*models.AnnounceResult, error)
	Reroll(ctx context.Context, giveawayID string) (*models.RerollResult, error)

	Active(ctx context.Context) (*models.Giveaway, error)
	Get(ctx context.Context, giveawayID string) (*models.Giveaway, error)
	RecentWinners(ctx context.Context, limit int) ([]*models.Giveaway, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// CreateInput carries the admin-supplied fields of a new giveaway.
type CreateInput struct {
	Prize        string    `validate:"required,max=200"`
	Description  string    `validate:"max=1000"`
	EndTime      time.Time `validate:"required"`
	WinnersCount int       `validate:"gte=1,lte=100"`
	AdminID      int64     `validate:"required"`
}

// WinnerSelector picks winners from a participant pool.
type WinnerSelector interface {
	Select(participants []int64, count int) []int64
}

// Broadcaster delivers announcements; implemented by the broadcast coordinator.
type Broadcaster interface {
	Fanout(ctx context.Context, recipients []bmodels.Recipient, payload bmodels.Payload) (bmodels.Result, error)
}

// Audience resolves the general audience for notices that are not
// addressed to participants.
type Audience interface {
	Recipients(ctx context.Context, target bmodels.Target) ([]bmodels.Recipient, error)
}

// Announcer composes announcement payloads. Message wording is owned by the
// caller so the lifecycle stays transport- and locale-agnostic.
type Announcer interface {
	Results(g *models.Giveaway) bmodels.Payload
	NoParticipants(g *models.Giveaway) bmodels.Payload
	Rerolled(g *models.Giveaway) bmodels.Payload
}

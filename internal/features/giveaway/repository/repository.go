package repository

import (
	"context"
	"errors"
	"fmt"

	"giveaway-bot/internal/features/giveaway/models"
)

var (
	ErrGiveawayNotFound = errors.New("giveaway not found")
	ErrActiveExists     = errors.New("an active giveaway already exists")
	ErrNotActive        = errors.New("giveaway is not active")
	ErrStatusConflict   = errors.New("giveaway status changed concurrently")
	ErrInvalidStatus    = errors.New("giveaway has an unknown status")
)

// PickFunc decides the outcome of closing a giveaway from the participant
// snapshot the store is about to commit against. It may be called more than
// once if the snapshot changes underneath, so it must not have side effects.
type PickFunc func(participants []int64) (winners []int64, to models.GiveawayStatus)

// GiveawayRepository persists giveaways. Every state transition is guarded by
// the expected current status so concurrent processes cannot double-apply it.
type GiveawayRepository interface {
	// CreateActive stores g as the single active giveaway or returns ErrActiveExists.
	CreateActive(ctx context.Context, g *models.Giveaway) error
	GetActive(ctx context.Context) (*models.Giveaway, error)
	GetByID(ctx context.Context, id string) (*models.Giveaway, error)

	// AddParticipantIfAbsent reports whether userID was newly added and the
	// participant count right after the write.
	// ErrNotActive when the giveaway no longer accepts participants.
	AddParticipantIfAbsent(ctx context.Context, id string, userID int64) (added bool, count int, err error)

	CloseActive(ctx context.Context, id string, pick PickFunc) (*models.Giveaway, error)
	SetStatus(ctx context.Context, id string, from, to models.GiveawayStatus) error
	ReplaceWinners(ctx context.Context, id string, winners []int64) error

	// ListRecent returns giveaways in any of statuses, newest first.
	ListRecent(ctx context.Context, statuses []models.GiveawayStatus, limit int) ([]*models.Giveaway, error)
	CountByStatus(ctx context.Context, status models.GiveawayStatus) (int64, error)

	Ping(ctx context.Context) error
}

// Rerollable reports whether winners may be replaced in status s.
func Rerollable(s models.GiveawayStatus) bool {
	return s.Closed() && s != models.GiveawayStatusPendingAnnouncement
}

// Normalize checks a decoded document and fills the slices it may omit.
// Stores call it on every read so callers never see nil slices.
func Normalize(g *models.Giveaway) error {
	if !g.Status.Valid() {
		return fmt.Errorf("%w %q in %s", ErrInvalidStatus, g.Status, g.ID)
	}
	if g.Participants == nil {
		g.Participants = []int64{}
	}
	if g.Winners == nil {
		g.Winners = []int64{}
	}
	return nil
}

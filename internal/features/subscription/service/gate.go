package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperrors "giveaway-bot/internal/common/errors"
	"giveaway-bot/internal/common/metrics"
	"giveaway-bot/internal/features/channel/models"
)

// ErrNotParticipant is returned by a MembershipLookup when the user was never
// a member of the chat.
var ErrNotParticipant = errors.New("user is not a participant of the chat")

// SettingsProvider supplies the force-subscribe switch and channels. It is
// read on every check.
type SettingsProvider interface {
	ForceSubscribe(ctx context.Context) (bool, []models.ForceChannel, error)
}

type MembershipLookup interface {
	MembershipStatus(ctx context.Context, chatID, userID int64) (models.MemberStatus, error)
}

type Options struct {
	// Strict treats lookup errors as unsatisfied channels instead of skipping them.
	Strict bool
}

// Result lists the channels the user still has to join, in configuration order.
type Result struct {
	Subscribed  bool
	Unsatisfied []models.ForceChannel
}

type Gate struct {
	settings SettingsProvider
	members  MembershipLookup
	opts     Options
	logger   zerolog.Logger
}

func NewGate(settings SettingsProvider, members MembershipLookup, opts Options, logger zerolog.Logger) *Gate {
	return &Gate{
		settings: settings,
		members:  members,
		opts:     opts,
		logger:   logger.With().Str("component", "subscription_gate").Logger(),
	}
}

func (g *Gate) Check(ctx context.Context, userID int64) (Result, error) {
	enabled, channels, err := g.settings.ForceSubscribe(ctx)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return Result{}, err
		}
		return Result{}, apperrors.NewDatabaseError("read force subscribe settings", err)
	}

	if !enabled || len(channels) == 0 {
		metrics.SubscriptionChecks.WithLabelValues("disabled").Inc()
		return Result{Subscribed: true, Unsatisfied: []models.ForceChannel{}}, nil
	}

	unsatisfied := make([]models.ForceChannel, 0, len(channels))
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		status, err := g.members.MembershipStatus(ctx, ch.ID, userID)
		switch {
		case errors.Is(err, ErrNotParticipant):
			unsatisfied = append(unsatisfied, ch)
		case err != nil:
			g.logger.Warn().Err(err).
				Int64("chat_id", ch.ID).
				Int64("user_id", userID).
				Bool("strict", g.opts.Strict).
				Msg("Membership lookup failed")
			if g.opts.Strict {
				unsatisfied = append(unsatisfied, ch)
			}
		case !status.Subscribed():
			unsatisfied = append(unsatisfied, ch)
		}
	}

	if len(unsatisfied) > 0 {
		metrics.SubscriptionChecks.WithLabelValues("blocked").Inc()
		return Result{Subscribed: false, Unsatisfied: unsatisfied}, nil
	}

	metrics.SubscriptionChecks.WithLabelValues("passed").Inc()
	return Result{Subscribed: true, Unsatisfied: unsatisfied}, nil
}

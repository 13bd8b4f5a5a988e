package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	apperrors "giveaway-bot/internal/common/errors"
	"giveaway-bot/internal/common/validation"
	gmodels "giveaway-bot/internal/features/giveaway/models"
	gservice "giveaway-bot/internal/features/giveaway/service"
	"giveaway-bot/internal/features/session/models"
	"giveaway-bot/internal/features/session/repository"
)

// ErrNoSession means the user has no dialog in progress; the text was not
// meant for the wizard.
var ErrNoSession = errors.New("no creation dialog in progress")

// skipDescription leaves the description empty.
const skipDescription = "-"

// GiveawayCreator is the part of the giveaway service the dialog needs.
type GiveawayCreator interface {
	Active(ctx context.Context) (*gmodels.Giveaway, error)
	Create(ctx context.Context, input gservice.CreateInput) (*gmodels.Giveaway, error)
}

// Outcome reports where the dialog stands after an input.
type Outcome struct {
	// Next is the step now expected; empty once the giveaway is created.
	Next     models.Step
	Session  *models.Session
	Giveaway *gmodels.Giveaway
}

func (o Outcome) Done() bool {
	return o.Giveaway != nil
}

type Wizard struct {
	store     repository.SessionStore
	giveaways GiveawayCreator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewWizard(store repository.SessionStore, giveaways GiveawayCreator, logger zerolog.Logger) *Wizard {
	return &Wizard{
		store:     store,
		giveaways: giveaways,
		logger:    logger.With().Str("component", "wizard").Logger(),
		now:       time.Now,
	}
}

// Begin starts a dialog, replacing any unfinished one. It refuses while a
// giveaway is active.
func (w *Wizard) Begin(ctx context.Context, adminID int64) (*models.Session, error) {
	active, err := w.giveaways.Active(ctx)
	switch {
	case err == nil:
		return nil, apperrors.NewConflictError("giveaway", "another giveaway is already active").
			WithDetail("giveaway_id", active.ID).
			WithUserID(adminID)
	case !apperrors.HasCode(err, apperrors.ErrCodeNotFound):
		return nil, err
	}

	sess := &models.Session{UserID: adminID, Step: models.StepPrize, UpdatedAt: w.now().UTC()}
	if err := w.store.Save(ctx, sess); err != nil {
		return nil, apperrors.NewDatabaseError("save session", err)
	}
	return sess, nil
}

// Cancel drops the dialog and reports whether one existed.
func (w *Wizard) Cancel(ctx context.Context, userID int64) (bool, error) {
	_, err := w.load(ctx, userID)
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := w.store.Delete(ctx, userID); err != nil {
		return false, apperrors.NewDatabaseError("delete session", err)
	}
	return true, nil
}

func (w *Wizard) load(ctx context.Context, userID int64) (*models.Session, error) {
	sess, err := w.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNoSession
		}
		return nil, apperrors.NewDatabaseError("get session", err)
	}
	return sess, nil
}

// Advance feeds one text input into the dialog. Invalid input returns a
// ValidationError and keeps the current step.
func (w *Wizard) Advance(ctx context.Context, userID int64, input string) (Outcome, error) {
	sess, err := w.load(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	input = strings.TrimSpace(input)
	stay := Outcome{Next: sess.Step, Session: sess}

	switch sess.Step {
	case models.StepPrize:
		if input == "" {
			return stay, apperrors.NewValidationError("prize", "must not be empty")
		}
		if utf8.RuneCountInString(input) > validation.MaxPrizeLength {
			return stay, apperrors.NewValidationError("prize", "is too long").
				WithDetail("max", validation.MaxPrizeLength)
		}
		sess.Prize = input
		sess.Step = models.StepDescription

	case models.StepDescription:
		if input == skipDescription {
			input = ""
		}
		if utf8.RuneCountInString(input) > validation.MaxDescriptionLength {
			return stay, apperrors.NewValidationError("description", "is too long").
				WithDetail("max", validation.MaxDescriptionLength)
		}
		sess.Description = input
		sess.Step = models.StepDuration

	case models.StepDuration:
		d, err := gmodels.ParseDuration(input)
		if err != nil {
			return stay, apperrors.NewValidationError("duration", err.Error())
		}
		sess.EndTime = w.now().UTC().Add(d)
		sess.Step = models.StepWinners

	case models.StepWinners:
		return w.finish(ctx, sess, input)

	default:
		// unknown step from an older build
		_ = w.store.Delete(ctx, userID)
		return Outcome{}, ErrNoSession
	}

	sess.UpdatedAt = w.now().UTC()
	if err := w.store.Save(ctx, sess); err != nil {
		return Outcome{}, apperrors.NewDatabaseError("save session", err)
	}
	return Outcome{Next: sess.Step, Session: sess}, nil
}

func (w *Wizard) finish(ctx context.Context, sess *models.Session, input string) (Outcome, error) {
	stay := Outcome{Next: sess.Step, Session: sess}

	count, err := strconv.Atoi(input)
	if err != nil || count < 1 || count > validation.MaxWinnersCount {
		return stay, apperrors.NewValidationError("winners_count", "must be a number between 1 and "+
			strconv.Itoa(validation.MaxWinnersCount))
	}

	if !sess.EndTime.After(w.now()) {
		sess.Step = models.StepDuration
		sess.UpdatedAt = w.now().UTC()
		if err := w.store.Save(ctx, sess); err != nil {
			return Outcome{}, apperrors.NewDatabaseError("save session", err)
		}
		return Outcome{Next: sess.Step, Session: sess},
			apperrors.NewValidationError("end_time", "the end time has already passed, enter the duration again")
	}

	g, err := w.giveaways.Create(ctx, gservice.CreateInput{
		Prize:        sess.Prize,
		Description:  sess.Description,
		EndTime:      sess.EndTime,
		WinnersCount: count,
		AdminID:      sess.UserID,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeValidation) {
			return stay, err
		}
		if delErr := w.store.Delete(ctx, sess.UserID); delErr != nil {
			w.logger.Warn().Err(delErr).Int64("user_id", sess.UserID).Msg("Failed to drop session")
		}
		return Outcome{}, err
	}

	if err := w.store.Delete(ctx, sess.UserID); err != nil {
		w.logger.Warn().Err(err).Int64("user_id", sess.UserID).Msg("Failed to drop finished session")
	}
	w.logger.Info().Str("giveaway_id", g.ID).Int64("user_id", sess.UserID).Msg("Giveaway created from dialog")
	return Outcome{Session: sess, Giveaway: g}, nil
}

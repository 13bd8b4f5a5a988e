package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "giveaway-bot/internal/common/errors"
	"giveaway-bot/internal/common/metrics"
	"giveaway-bot/internal/common/validation"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/giveaway/models"
	"giveaway-bot/internal/features/giveaway/repository"
)

type giveawayService struct {
	repo      repository.GiveawayRepository
	selector  WinnerSelector
	broadcast Broadcaster
	audience  Audience
	announcer Announcer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewGiveawayService(
	repo repository.GiveawayRepository,
	selector WinnerSelector,
	broadcast Broadcaster,
	audience Audience,
	announcer Announcer,
	logger zerolog.Logger,
) GiveawayService {
	return &giveawayService{
		repo:      repo,
		selector:  selector,
		broadcast: broadcast,
		audience:  audience,
		announcer: announcer,
		logger:    logger.With().Str("component", "giveaway").Logger(),
		now:       time.Now,
	}
}

func (s *giveawayService) Create(ctx context.Context, input CreateInput) (*models.Giveaway, error) {
	input.Prize = strings.TrimSpace(input.Prize)
	input.Description = strings.TrimSpace(input.Description)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !input.EndTime.After(now) {
		return nil, apperrors.NewValidationError("end_time", "must be in the future")
	}

	g := &models.Giveaway{
		ID:           models.NewGiveawayID(now),
		Prize:        input.Prize,
		Description:  input.Description,
		EndTime:      input.EndTime.UTC(),
		WinnersCount: input.WinnersCount,
		Status:       models.GiveawayStatusActive,
		Participants: []int64{},
		Winners:      []int64{},
		CreatedBy:    input.AdminID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateActive(ctx, g); err != nil {
		if errors.Is(err, repository.ErrActiveExists) {
			return nil, apperrors.NewConflictError("giveaway", "another giveaway is already active").
				WithUserID(input.AdminID)
		}
		return nil, apperrors.NewDatabaseError("create giveaway", err)
	}

	metrics.GiveawayTransitions.WithLabelValues(string(models.GiveawayStatusActive)).Inc()
	s.logger.Info().
		Str("giveaway_id", g.ID).
		Int64("admin_id", input.AdminID).
		Int("winners_count", g.WinnersCount).
		Time("end_time", g.EndTime).
		Msg("Giveaway created")

	return g, nil
}

func (s *giveawayService) Join(ctx context.Context, giveawayID string, userID int64) (*models.JoinResult, error) {
	g, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			metrics.GiveawayJoins.WithLabelValues("rejected").Inc()
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotJoinable, giveawayID, "").WithUserID(userID)
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}
	if g.Status != models.GiveawayStatusActive {
		metrics.GiveawayJoins.WithLabelValues("rejected").Inc()
		return nil, apperrors.NewStateError(apperrors.ErrCodeNotJoinable, giveawayID, string(g.Status)).WithUserID(userID)
	}

	added, count, err := s.repo.AddParticipantIfAbsent(ctx, giveawayID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotActive) || errors.Is(err, repository.ErrGiveawayNotFound) {
			// closed between the read and the write
			metrics.GiveawayJoins.WithLabelValues("rejected").Inc()
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotJoinable, giveawayID, "").WithUserID(userID)
		}
		return nil, apperrors.NewDatabaseError("add participant", err)
	}

	if added {
		metrics.GiveawayJoins.WithLabelValues("joined").Inc()
		s.logger.Debug().Str("giveaway_id", giveawayID).Int64("user_id", userID).Msg("Participant joined")
	} else {
		metrics.GiveawayJoins.WithLabelValues("already_joined").Inc()
	}

	return &models.JoinResult{
		GiveawayID:    giveawayID,
		Joined:        added,
		AlreadyJoined: !added,
		Participants:  count,
	}, nil
}

func (s *giveawayService) JoinActive(ctx context.Context, userID int64) (*models.JoinResult, error) {
	g, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			metrics.GiveawayJoins.WithLabelValues("rejected").Inc()
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotJoinable, "", "").WithUserID(userID)
		}
		return nil, apperrors.NewDatabaseError("get active giveaway", err)
	}
	return s.Join(ctx, g.ID, userID)
}

func (s *giveawayService) Close(ctx context.Context, giveawayID string, autoAnnounce bool) (*models.CloseResult, error) {
	var (
		g   *models.Giveaway
		err error
	)
	if giveawayID == "" {
		g, err = s.repo.GetActive(ctx)
	} else {
		g, err = s.repo.GetByID(ctx, giveawayID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotClosable, giveawayID, "")
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}
	if g.Status != models.GiveawayStatusActive {
		return nil, apperrors.NewStateError(apperrors.ErrCodeNotClosable, g.ID, string(g.Status))
	}

	target := models.GiveawayStatusPendingAnnouncement
	if autoAnnounce {
		target = models.GiveawayStatusEnded
	}
	winnersCount := g.WinnersCount

	closed, err := s.repo.CloseActive(ctx, g.ID, func(participants []int64) ([]int64, models.GiveawayStatus) {
		if len(participants) == 0 {
			return []int64{}, models.GiveawayStatusEnded
		}
		return s.selector.Select(participants, winnersCount), target
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGiveawayNotFound):
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotClosable, g.ID, "")
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotClosable, g.ID, "closed")
		}
		return nil, apperrors.NewDatabaseError("close giveaway", err)
	}

	metrics.GiveawayTransitions.WithLabelValues(string(closed.Status)).Inc()
	res := &models.CloseResult{Giveaway: closed}

	if closed.ParticipantsCount() == 0 {
		res.NoParticipants = true
		s.logger.Info().Str("giveaway_id", closed.ID).Msg("Giveaway closed without participants")

		recipients, err := s.audience.Recipients(ctx, bmodels.TargetUsers)
		if err != nil {
			return res, apperrors.NewDatabaseError("resolve audience", err)
		}
		delivery, err := s.broadcast.Fanout(ctx, recipients, s.announcer.NoParticipants(closed))
		res.Delivery = toDelivery(delivery)
		return res, err
	}

	s.logger.Info().
		Str("giveaway_id", closed.ID).
		Int("participants", closed.ParticipantsCount()).
		Ints64("winners", closed.Winners).
		Str("status", string(closed.Status)).
		Msg("Winners selected")

	if !autoAnnounce {
		return res, nil
	}

	delivery, fanoutErr := s.broadcast.Fanout(ctx, bmodels.Users(closed.Participants), s.announcer.Results(closed))
	res.Delivery = toDelivery(delivery)

	// per-recipient failures never block the transition; a cancelled fan-out
	// still marks the results as announced
	if err := s.repo.SetStatus(context.WithoutCancel(ctx), closed.ID, models.GiveawayStatusEnded, models.GiveawayStatusAnnounced); err != nil {
		return res, apperrors.NewDatabaseError("mark giveaway announced", err)
	}
	closed.Status = models.GiveawayStatusAnnounced
	res.Announced = true
	metrics.GiveawayTransitions.WithLabelValues(string(models.GiveawayStatusAnnounced)).Inc()

	return res, fanoutErr
}

func (s *giveawayService) Announce(ctx context.Context, giveawayID string) (*models.AnnounceResult, error) {
	var (
		g   *models.Giveaway
		err error
	)
	if giveawayID == "" {
		g, err = s.latest(ctx, models.GiveawayStatusPendingAnnouncement)
	} else {
		g, err = s.repo.GetByID(ctx, giveawayID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotAnnounceable, giveawayID, "")
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}
	if g.Status != models.GiveawayStatusPendingAnnouncement {
		return nil, apperrors.NewStateError(apperrors.ErrCodeNotAnnounceable, g.ID, string(g.Status))
	}
	if len(g.Winners) == 0 {
		return nil, apperrors.NewStateError(apperrors.ErrCodeNoWinners, g.ID, string(g.Status))
	}

	// claim the transition first so concurrent announces cannot both fan out
	if err := s.repo.SetStatus(ctx, g.ID, models.GiveawayStatusPendingAnnouncement, models.GiveawayStatusAnnounced); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotAnnounceable, g.ID, "announced")
		}
		return nil, apperrors.NewDatabaseError("mark giveaway announced", err)
	}
	g.Status = models.GiveawayStatusAnnounced
	metrics.GiveawayTransitions.WithLabelValues(string(models.GiveawayStatusAnnounced)).Inc()

	delivery, err := s.broadcast.Fanout(ctx, bmodels.Users(g.Participants), s.announcer.Results(g))
	s.logger.Info().
		Str("giveaway_id", g.ID).
		Int("success", delivery.Success).
		Int("failed", delivery.Failed).
		Int("blocked", delivery.Blocked).
		Msg("Giveaway announced")

	return &models.AnnounceResult{Giveaway: g, Delivery: toDelivery(delivery)}, err
}

func (s *giveawayService) Reroll(ctx context.Context, giveawayID string) (*models.RerollResult, error) {
	var (
		g   *models.Giveaway
		err error
	)
	if giveawayID == "" {
		g, err = s.latest(ctx, models.GiveawayStatusEnded, models.GiveawayStatusAnnounced)
	} else {
		g, err = s.repo.GetByID(ctx, giveawayID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotRerollable, giveawayID, "")
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}
	if !repository.Rerollable(g.Status) {
		return nil, apperrors.NewStateError(apperrors.ErrCodeNotRerollable, g.ID, string(g.Status))
	}
	if g.ParticipantsCount() == 0 {
		return nil, apperrors.NewStateError(apperrors.ErrCodeNoParticipants, g.ID, string(g.Status))
	}

	previous := g.Winners
	winners := s.selector.Select(g.Participants, g.WinnersCount)
	if err := s.repo.ReplaceWinners(ctx, g.ID, winners); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotRerollable, g.ID, "")
		}
		return nil, apperrors.NewDatabaseError("replace winners", err)
	}
	g.Winners = winners

	s.logger.Info().
		Str("giveaway_id", g.ID).
		Ints64("previous_winners", previous).
		Ints64("winners", winners).
		Msg("Winners rerolled")

	delivery, err := s.broadcast.Fanout(ctx, bmodels.Users(g.Participants), s.announcer.Rerolled(g))
	return &models.RerollResult{
		Giveaway:        g,
		PreviousWinners: previous,
		Delivery:        toDelivery(delivery),
	}, err
}

func (s *giveawayService) Active(ctx context.Context) (*models.Giveaway, error) {
	g, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewNotFoundError("active giveaway", "")
		}
		return nil, apperrors.NewDatabaseError("get active giveaway", err)
	}
	return g, nil
}

func (s *giveawayService) Get(ctx context.Context, giveawayID string) (*models.Giveaway, error) {
	g, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewNotFoundError("giveaway", giveawayID)
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}
	return g, nil
}

// RecentWinners returns closed giveaways that have winners, newest first.
func (s *giveawayService) RecentWinners(ctx context.Context, limit int) ([]*models.Giveaway, error) {
	if limit <= 0 {
		limit = DefaultRecentWinnersLimit
	}
	list, err := s.repo.ListRecent(ctx, []models.GiveawayStatus{
		models.GiveawayStatusEnded,
		models.GiveawayStatusAnnounced,
	}, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list recent giveaways", err)
	}
	out := list[:0]
	for _, g := range list {
		if len(g.Winners) > 0 {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *giveawayService) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}
	for status, dst := range map[models.GiveawayStatus]*int64{
		models.GiveawayStatusActive:              &stats.Active,
		models.GiveawayStatusEnded:               &stats.Ended,
		models.GiveawayStatusPendingAnnouncement: &stats.PendingAnnouncement,
		models.GiveawayStatusAnnounced:           &stats.Announced,
	} {
		n, err := s.repo.CountByStatus(ctx, status)
		if err != nil {
			return nil, apperrors.NewDatabaseError("count giveaways", err)
		}
		*dst = n
	}
	return stats, nil
}

func (s *giveawayService) latest(ctx context.Context, statuses ...models.GiveawayStatus) (*models.Giveaway, error) {
	list, err := s.repo.ListRecent(ctx, statuses, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, repository.ErrGiveawayNotFound
	}
	return list[0], nil
}

func toDelivery(r bmodels.Result) models.Delivery {
	return models.Delivery{
		Total:   r.Total,
		Success: r.Success,
		Failed:  r.Failed,
		Blocked: r.Blocked,
		Skipped: r.Skipped,
	}
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	apperrors "giveaway-bot/internal/common/errors"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/user/models"
	"giveaway-bot/internal/features/user/repository"
)

type AudienceService interface {
	// RegisterUser stores a first-time user. Returning users get their profile
	// refreshed and created is false. Self-referrals are dropped.
	RegisterUser(ctx context.Context, user models.User, referredBy int64) (created bool, err error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	RegisterChat(ctx context.Context, chat models.Chat) error
	RemoveChat(ctx context.Context, id int64) error
	Recipients(ctx context.Context, target bmodels.Target) ([]bmodels.Recipient, error)
	ReferralCount(ctx context.Context, userID int64) (int64, error)
	Counts(ctx context.Context) (*models.Counts, error)
}

type audienceService struct {
	users  repository.UserRepository
	chats  repository.ChatRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewAudienceService(users repository.UserRepository, chats repository.ChatRepository, logger zerolog.Logger) AudienceService {
	return &audienceService{
		users:  users,
		chats:  chats,
		logger: logger.With().Str("component", "audience").Logger(),
		now:    time.Now,
	}
}

func (s *audienceService) RegisterUser(ctx context.Context, user models.User, referredBy int64) (bool, error) {
	if user.ID <= 0 {
		return false, apperrors.NewValidationError("user_id", "must be a positive user id")
	}

	if referredBy == user.ID {
		referredBy = 0
	}
	if referredBy != 0 {
		if _, err := s.users.GetByID(ctx, referredBy); err != nil {
			if !errors.Is(err, repository.ErrUserNotFound) {
				return false, apperrors.NewDatabaseError("get referrer", err)
			}
			// unknown referrers are ignored
			referredBy = 0
		}
	}

	now := s.now().UTC()
	user.ReferredBy = referredBy
	user.JoinedAt = now
	user.UpdatedAt = now

	created, err := s.users.CreateIfAbsent(ctx, &user)
	if err != nil {
		return false, apperrors.NewDatabaseError("create user", err)
	}

	if !created {
		if err := s.users.UpdateProfile(ctx, &user); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to refresh user profile")
		}
		return false, nil
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Int64("referred_by", referredBy).
		Msg("New user registered")
	return true, nil
}

func (s *audienceService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError("user", id)
		}
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return u, nil
}

func (s *audienceService) RegisterChat(ctx context.Context, chat models.Chat) error {
	switch chat.Type {
	case models.ChatGroup, models.ChatSupergroup, models.ChatChannel:
	default:
		return apperrors.NewValidationError("chat_type", "only groups and channels can be registered").
			WithDetail("type", chat.Type)
	}

	if chat.AddedAt.IsZero() {
		chat.AddedAt = s.now().UTC()
	}
	if err := s.chats.Upsert(ctx, &chat); err != nil {
		return apperrors.NewDatabaseError("register chat", err)
	}

	s.logger.Info().Int64("chat_id", chat.ID).Str("type", string(chat.Type)).Msg("Chat registered")
	return nil
}

func (s *audienceService) RemoveChat(ctx context.Context, id int64) error {
	removed, err := s.chats.Remove(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("remove chat", err)
	}
	if removed {
		s.logger.Info().Int64("chat_id", id).Msg("Chat removed")
	}
	return nil
}

func (s *audienceService) Recipients(ctx context.Context, target bmodels.Target) ([]bmodels.Recipient, error) {
	switch target {
	case bmodels.TargetUsers, bmodels.TargetChats, bmodels.TargetAll:
	default:
		return nil, apperrors.NewValidationError("target", "must be users, chats or all").
			WithDetail("target", target)
	}

	var out []bmodels.Recipient
	if target == bmodels.TargetUsers || target == bmodels.TargetAll {
		ids, err := s.users.ListIDs(ctx)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list users", err)
		}
		out = append(out, bmodels.Users(ids)...)
	}

	if target == bmodels.TargetChats || target == bmodels.TargetAll {
		chats, err := s.chats.List(ctx)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list chats", err)
		}
		for _, c := range chats {
			kind := bmodels.RecipientGroup
			if c.Type.IsChannel() {
				kind = bmodels.RecipientChannel
			}
			out = append(out, bmodels.Recipient{ID: c.ID, Kind: kind})
		}
	}

	return out, nil
}

func (s *audienceService) ReferralCount(ctx context.Context, userID int64) (int64, error) {
	n, err := s.users.CountReferrals(ctx, userID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("count referrals", err)
	}
	return n, nil
}

func (s *audienceService) Counts(ctx context.Context) (*models.Counts, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count users", err)
	}
	chats, err := s.chats.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list chats", err)
	}

	counts := &models.Counts{Users: users}
	for _, c := range chats {
		if c.Type.IsChannel() {
			counts.Channels++
		} else {
			counts.Groups++
		}
	}
	return counts, nil
}

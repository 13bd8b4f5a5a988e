package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	apperrors "giveaway-bot/internal/common/errors"
	"giveaway-bot/internal/common/validation"
	"giveaway-bot/internal/features/channel/models"
	"giveaway-bot/internal/features/channel/repository"
)

// publicChannel is what a force-subscribe channel must expose so users can
// be linked to it.
type publicChannel struct {
	Username string `validate:"required,tg_username"`
}

type settingsService struct {
	repo      repository.SettingsRepository
	resolver  ChatResolver
	permanent []int64
	logger    zerolog.Logger
}

// NewSettingsService wires the settings store. permanentAdmins come from
// ADMIN_IDS and can never be removed at runtime.
func NewSettingsService(
	repo repository.SettingsRepository,
	resolver ChatResolver,
	permanentAdmins []int64,
	logger zerolog.Logger,
) SettingsService {
	return &settingsService{
		repo:      repo,
		resolver:  resolver,
		permanent: append([]int64(nil), permanentAdmins...),
		logger:    logger.With().Str("component", "settings").Logger(),
	}
}

func (s *settingsService) ForceSubscribe(ctx context.Context) (bool, []models.ForceChannel, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return false, nil, apperrors.NewDatabaseError("get settings", err)
	}
	return st.ForceSubscribe, st.ForceChannels, nil
}

func (s *settingsService) SetForceSubscribe(ctx context.Context, enabled bool) error {
	if err := s.repo.SetForceSubscribe(ctx, enabled); err != nil {
		return apperrors.NewDatabaseError("set force subscribe", err)
	}
	s.logger.Info().Bool("enabled", enabled).Msg("Force subscribe toggled")
	return nil
}

func (s *settingsService) AddForceChannel(ctx context.Context, ref string) (*models.ForceChannel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.NewValidationError("channel", "channel username or id is required")
	}

	info, err := s.resolver.ResolveChat(ctx, ref)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewTelegramAPIError("resolve chat", err).WithDetail("ref", ref)
	}

	if err := validation.Struct(publicChannel{Username: info.Username}); err != nil {
		return nil, apperrors.NewValidationError("channel", "channel must have a public username").
			WithDetail("chat_id", info.ID)
	}

	isAdmin, err := s.resolver.BotIsAdmin(ctx, info.ID)
	if err != nil {
		return nil, apperrors.NewTelegramAPIError("check bot admin", err).WithDetail("chat_id", info.ID)
	}
	if !isAdmin {
		return nil, apperrors.NewForbiddenError("bot must be an administrator of the channel").
			WithDetail("chat_id", info.ID)
	}

	ch := models.ForceChannel{ID: info.ID, Title: info.Title, Username: info.Username}
	added, err := s.repo.AddForceChannel(ctx, ch)
	if err != nil {
		return nil, apperrors.NewDatabaseError("add force channel", err)
	}
	if !added {
		return nil, apperrors.NewConflictError("force_channel", "channel is already required").
			WithDetail("chat_id", info.ID)
	}

	s.logger.Info().Int64("chat_id", ch.ID).Str("username", ch.Username).Msg("Force channel added")
	return &ch, nil
}

func (s *settingsService) RemoveForceChannel(ctx context.Context, id int64) error {
	removed, err := s.repo.RemoveForceChannel(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("remove force channel", err)
	}
	if !removed {
		return apperrors.NewNotFoundError("force_channel", id)
	}
	s.logger.Info().Int64("chat_id", id).Msg("Force channel removed")
	return nil
}

func (s *settingsService) ForceChannels(ctx context.Context) ([]models.ForceChannel, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get settings", err)
	}
	return st.ForceChannels, nil
}

func (s *settingsService) isPermanent(userID int64) bool {
	for _, id := range s.permanent {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *settingsService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if s.isPermanent(userID) {
		return true, nil
	}
	st, err := s.repo.Get(ctx)
	if err != nil {
		return false, apperrors.NewDatabaseError("get settings", err)
	}
	return st.HasAdmin(userID), nil
}

func (s *settingsService) Admins(ctx context.Context) ([]int64, []int64, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("get settings", err)
	}

	dynamic := make([]int64, 0, len(st.Admins))
	for _, id := range st.Admins {
		if !s.isPermanent(id) {
			dynamic = append(dynamic, id)
		}
	}
	return append([]int64(nil), s.permanent...), dynamic, nil
}

func (s *settingsService) AddAdmin(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return apperrors.NewValidationError("user_id", "must be a positive user id")
	}
	if s.isPermanent(userID) {
		return apperrors.NewConflictError("admin", "user is a permanent admin").WithUserID(userID)
	}
	added, err := s.repo.AddAdmin(ctx, userID)
	if err != nil {
		return apperrors.NewDatabaseError("add admin", err)
	}
	if !added {
		return apperrors.NewConflictError("admin", "user is already an admin").WithUserID(userID)
	}
	s.logger.Info().Int64("user_id", userID).Msg("Admin added")
	return nil
}

func (s *settingsService) RemoveAdmin(ctx context.Context, userID int64) error {
	if s.isPermanent(userID) {
		return apperrors.NewForbiddenError("permanent admins cannot be removed").WithUserID(userID)
	}
	removed, err := s.repo.RemoveAdmin(ctx, userID)
	if err != nil {
		return apperrors.NewDatabaseError("remove admin", err)
	}
	if !removed {
		return apperrors.NewNotFoundError("admin", userID)
	}
	s.logger.Info().Int64("user_id", userID).Msg("Admin removed")
	return nil
}

func (s *settingsService) MigrateLegacy(ctx context.Context) (int, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("get settings", err)
	}

	upgraded := 0
	out := make([]models.ForceChannel, 0, len(st.ForceChannels))
	for _, ch := range st.ForceChannels {
		if !ch.IsLegacy() {
			out = append(out, ch)
			continue
		}

		ref := strconv.FormatInt(ch.ID, 10)
		if ch.Username != "" {
			ref = "@" + ch.Username
		}
		info, err := s.resolver.ResolveChat(ctx, ref)
		if err != nil {
			// keep the entry, the next start retries it
			s.logger.Warn().Err(err).Int64("chat_id", ch.ID).Msg("Failed to resolve legacy force channel")
			out = append(out, ch)
			continue
		}

		title := info.Title
		if title == "" {
			title = ch.DisplayName()
		}
		username := info.Username
		if username == "" {
			username = ch.Username
		}
		out = append(out, models.ForceChannel{ID: ch.ID, Title: title, Username: username})
		upgraded++
	}

	if upgraded == 0 {
		return 0, nil
	}
	if err := s.repo.ReplaceForceChannels(ctx, out); err != nil {
		return 0, apperrors.NewDatabaseError("migrate force channels", err)
	}
	s.logger.Info().Int("upgraded", upgraded).Msg("Legacy force channels migrated")
	return upgraded, nil
}

func (s *settingsService) Snapshot(ctx context.Context) (*models.Settings, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get settings", err)
	}
	return st, nil
}

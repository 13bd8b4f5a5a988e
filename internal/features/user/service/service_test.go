package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giveaway-bot/internal/common/errors"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/user/models"
	"giveaway-bot/internal/features/user/repository/memory"
)

func newAudience() (AudienceService, *memory.Store) {
	store := memory.NewStore()
	return NewAudienceService(store, store, zerolog.Nop()), store
}

func TestRegisterUserReferrals(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAudience()

	created, err := svc.RegisterUser(ctx, models.User{ID: 1, Username: "alice"}, 0)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.RegisterUser(ctx, models.User{ID: 2}, 1)
	require.NoError(t, err)
	assert.True(t, created)

	// returning users are not re-linked
	created, err = svc.RegisterUser(ctx, models.User{ID: 2, Username: "bob"}, 3)
	require.NoError(t, err)
	assert.False(t, created)

	// self and unknown referrers are ignored
	_, err = svc.RegisterUser(ctx, models.User{ID: 4}, 4)
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, models.User{ID: 5}, 999)
	require.NoError(t, err)

	n, err := svc.ReferralCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	u, err := svc.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, int64(1), u.ReferredBy)

	u, err = svc.GetUser(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, u.ReferredBy)

	_, err = svc.GetUser(ctx, 77)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestRecipients(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAudience()

	for _, id := range []int64{10, 11} {
		_, err := svc.RegisterUser(ctx, models.User{ID: id}, 0)
		require.NoError(t, err)
	}
	require.NoError(t, svc.RegisterChat(ctx, models.Chat{ID: -100, Type: models.ChatSupergroup, Title: "Group"}))
	require.NoError(t, svc.RegisterChat(ctx, models.Chat{ID: -200, Type: models.ChatChannel, Title: "Channel"}))

	err := svc.RegisterChat(ctx, models.Chat{ID: 5, Type: "private"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	users, err := svc.Recipients(ctx, bmodels.TargetUsers)
	require.NoError(t, err)
	assert.Equal(t, bmodels.Users([]int64{10, 11}), users)

	chats, err := svc.Recipients(ctx, bmodels.TargetChats)
	require.NoError(t, err)
	assert.Equal(t, []bmodels.Recipient{
		{ID: -200, Kind: bmodels.RecipientChannel},
		{ID: -100, Kind: bmodels.RecipientGroup},
	}, chats)

	all, err := svc.Recipients(ctx, bmodels.TargetAll)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = svc.Recipients(ctx, bmodels.Target("admins"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Counts{Users: 2, Groups: 1, Channels: 1}, counts)

	require.NoError(t, svc.RemoveChat(ctx, -100))
	require.NoError(t, svc.RemoveChat(ctx, -100))
	chats, err = svc.Recipients(ctx, bmodels.TargetChats)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

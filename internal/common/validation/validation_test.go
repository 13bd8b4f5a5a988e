package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giveaway-bot/internal/common/errors"
)

type sample struct {
	Prize        string `validate:"required,max=200"`
	WinnersCount int    `validate:"gte=1"`
	Channel      string `validate:"omitempty,tg_username"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Prize: "Nitro", WinnersCount: 1, Channel: "@news_channel"}))

	err := Struct(sample{Prize: "Nitro", WinnersCount: 0})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
	assert.Equal(t, "winners_count", appErr.Details["field"])

	err = Struct(sample{WinnersCount: 2})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	err = Struct(sample{Prize: "x", WinnersCount: 1, Channel: "ab"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("durov_news"))
	assert.True(t, IsValidUsername("@durov_news"))
	assert.True(t, IsValidUsername("news"))
	assert.False(t, IsValidUsername("abc"))
	assert.False(t, IsValidUsername("1channel"))
	assert.False(t, IsValidUsername(""))
}

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCodeFollowsWrapping(t *testing.T) {
	base := NewConflictError("giveaway", "another giveaway is active")
	wrapped := fmt.Errorf("create: %w", base)

	assert.True(t, HasCode(wrapped, ErrCodeConflict))
	assert.False(t, HasCode(wrapped, ErrCodeValidation))
	assert.False(t, HasCode(nil, ErrCodeConflict))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeConflict))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNoWinners, CodeOf(NewStateError(ErrCodeNoWinners, "GA_1", "pending_announcement")))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDatabaseError("get active giveaway", cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, err.IsInternal())
	assert.Equal(t, "get active giveaway", err.Details["operation"])
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("winners_count", "must be at least 1")

	assert.True(t, err.IsValidation())
	assert.Equal(t, "winners_count", err.Details["field"])
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giveaway-bot/internal/common/errors"
	"giveaway-bot/internal/features/channel/models"
)

type staticSettings struct {
	enabled  bool
	channels []models.ForceChannel
	err      error
}

func (s staticSettings) ForceSubscribe(context.Context) (bool, []models.ForceChannel, error) {
	return s.enabled, s.channels, s.err
}

type lookupFunc func(chatID, userID int64) (models.MemberStatus, error)

type countingLookup struct {
	fn    lookupFunc
	calls int
}

func (l *countingLookup) MembershipStatus(_ context.Context, chatID, userID int64) (models.MemberStatus, error) {
	l.calls++
	return l.fn(chatID, userID)
}

var channels = []models.ForceChannel{
	{ID: -1, Title: "One", Username: "one"},
	{ID: -2, Title: "Two", Username: "two"},
	{ID: -3, Title: "Three", Username: "three"},
}

func TestGateDisabled(t *testing.T) {
	tests := []struct {
		name     string
		settings staticSettings
	}{
		{name: "disabled with channels", settings: staticSettings{enabled: false, channels: channels}},
		{name: "enabled without channels", settings: staticSettings{enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &countingLookup{fn: func(int64, int64) (models.MemberStatus, error) {
				return models.MemberLeft, nil
			}}
			gate := NewGate(tt.settings, lookup, Options{}, zerolog.Nop())

			res, err := gate.Check(context.Background(), 42)
			require.NoError(t, err)
			assert.True(t, res.Subscribed)
			assert.Empty(t, res.Unsatisfied)
			assert.Zero(t, lookup.calls)
		})
	}
}

func TestGateUnsatisfiedKeepsOrder(t *testing.T) {
	lookup := &countingLookup{fn: func(chatID, _ int64) (models.MemberStatus, error) {
		switch chatID {
		case -1:
			return models.MemberKicked, nil
		case -2:
			return models.MemberMember, nil
		}
		return "", ErrNotParticipant
	}}
	gate := NewGate(staticSettings{enabled: true, channels: channels}, lookup, Options{}, zerolog.Nop())

	res, err := gate.Check(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, res.Subscribed)
	require.Len(t, res.Unsatisfied, 2)
	assert.Equal(t, int64(-1), res.Unsatisfied[0].ID)
	assert.Equal(t, int64(-3), res.Unsatisfied[1].ID)
	assert.Equal(t, 3, lookup.calls)
}

func TestGateLookupErrors(t *testing.T) {
	lookup := func() *countingLookup {
		return &countingLookup{fn: func(chatID, _ int64) (models.MemberStatus, error) {
			if chatID == -2 {
				return "", errors.New("Bad Request: member list is inaccessible")
			}
			return models.MemberAdministrator, nil
		}}
	}

	t.Run("lenient skips", func(t *testing.T) {
		gate := NewGate(staticSettings{enabled: true, channels: channels}, lookup(), Options{}, zerolog.Nop())
		res, err := gate.Check(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, res.Subscribed)
		assert.Empty(t, res.Unsatisfied)
	})

	t.Run("strict blocks", func(t *testing.T) {
		gate := NewGate(staticSettings{enabled: true, channels: channels}, lookup(), Options{Strict: true}, zerolog.Nop())
		res, err := gate.Check(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, res.Subscribed)
		require.Len(t, res.Unsatisfied, 1)
		assert.Equal(t, int64(-2), res.Unsatisfied[0].ID)
	})
}

func TestGateSettingsFailure(t *testing.T) {
	gate := NewGate(staticSettings{err: errors.New("connection refused")}, &countingLookup{}, Options{}, zerolog.Nop())

	_, err := gate.Check(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))
}

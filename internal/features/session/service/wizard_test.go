package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giveaway-bot/internal/common/errors"
	gmodels "giveaway-bot/internal/features/giveaway/models"
	gservice "giveaway-bot/internal/features/giveaway/service"
	"giveaway-bot/internal/features/session/models"
	"giveaway-bot/internal/features/session/repository/memory"
)

type fakeCreator struct {
	active *gmodels.Giveaway
	inputs []gservice.CreateInput
}

func (f *fakeCreator) Active(context.Context) (*gmodels.Giveaway, error) {
	if f.active == nil {
		return nil, apperrors.NewNotFoundError("active giveaway", "")
	}
	return f.active, nil
}

func (f *fakeCreator) Create(_ context.Context, in gservice.CreateInput) (*gmodels.Giveaway, error) {
	f.inputs = append(f.inputs, in)
	return &gmodels.Giveaway{ID: "GA_1", Prize: in.Prize, EndTime: in.EndTime, WinnersCount: in.WinnersCount}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newWizard(creator *fakeCreator) (*Wizard, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	w := NewWizard(memory.NewMemorySessionStoreWithClock(10*time.Minute, c.now), creator, zerolog.Nop())
	w.now = c.now
	return w, c
}

func TestWizardHappyPath(t *testing.T) {
	ctx := context.Background()
	creator := &fakeCreator{}
	w, c := newWizard(creator)

	sess, err := w.Begin(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StepPrize, sess.Step)

	out, err := w.Advance(ctx, 7, "  Steam key ")
	require.NoError(t, err)
	assert.Equal(t, models.StepDescription, out.Next)

	out, err = w.Advance(ctx, 7, "-")
	require.NoError(t, err)
	assert.Equal(t, models.StepDuration, out.Next)
	assert.Empty(t, out.Session.Description)

	_, err = w.Advance(ctx, 7, "soon")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	out, err = w.Advance(ctx, 7, "1h30m")
	require.NoError(t, err)
	assert.Equal(t, models.StepWinners, out.Next)
	assert.Equal(t, c.t.Add(90*time.Minute), out.Session.EndTime)

	out, err = w.Advance(ctx, 7, "0")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	assert.Equal(t, models.StepWinners, out.Next)

	out, err = w.Advance(ctx, 7, "3")
	require.NoError(t, err)
	assert.True(t, out.Done())
	require.Len(t, creator.inputs, 1)
	assert.Equal(t, gservice.CreateInput{
		Prize:        "Steam key",
		EndTime:      c.t.Add(90 * time.Minute),
		WinnersCount: 3,
		AdminID:      7,
	}, creator.inputs[0])

	_, err = w.Advance(ctx, 7, "again")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestWizardBeginWhileActive(t *testing.T) {
	w, _ := newWizard(&fakeCreator{active: &gmodels.Giveaway{ID: "GA_0"}})

	_, err := w.Begin(context.Background(), 7)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
}

func TestWizardSessionExpires(t *testing.T) {
	ctx := context.Background()
	w, c := newWizard(&fakeCreator{})

	_, err := w.Begin(ctx, 7)
	require.NoError(t, err)

	c.t = c.t.Add(11 * time.Minute)
	_, err = w.Advance(ctx, 7, "prize")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestWizardCancel(t *testing.T) {
	ctx := context.Background()
	w, _ := newWizard(&fakeCreator{})

	ok, err := w.Cancel(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = w.Begin(ctx, 7)
	require.NoError(t, err)

	ok, err = w.Cancel(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = w.Advance(ctx, 7, "prize")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestWizardEndTimePassedReturnsToDuration(t *testing.T) {
	ctx := context.Background()
	creator := &fakeCreator{}
	w, c := newWizard(creator)

	_, err := w.Begin(ctx, 7)
	require.NoError(t, err)
	for _, in := range []string{"Prize", "Desc", "5m"} {
		_, err = w.Advance(ctx, 7, in)
		require.NoError(t, err)
	}

	c.t = c.t.Add(6 * time.Minute)
	out, err := w.Advance(ctx, 7, "1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	assert.Equal(t, models.StepDuration, out.Next)
	assert.Empty(t, creator.inputs)
}

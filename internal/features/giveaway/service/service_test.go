package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giveaway-bot/internal/common/errors"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	"giveaway-bot/internal/features/giveaway/models"
	"giveaway-bot/internal/features/giveaway/repository"
	"giveaway-bot/internal/features/giveaway/repository/memory"
)

type fanoutCall struct {
	recipients []bmodels.Recipient
	payload    bmodels.Payload
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []fanoutCall
}

func (b *recordingBroadcaster) Fanout(_ context.Context, recipients []bmodels.Recipient, payload bmodels.Payload) (bmodels.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fanoutCall{recipients: recipients, payload: payload})
	return bmodels.Result{Total: len(recipients), Success: len(recipients)}, nil
}

type staticAudience []bmodels.Recipient

func (a staticAudience) Recipients(context.Context, bmodels.Target) ([]bmodels.Recipient, error) {
	return a, nil
}

type textAnnouncer struct{}

func (textAnnouncer) Results(g *models.Giveaway) bmodels.Payload {
	return bmodels.Payload{Text: fmt.Sprintf("results %s %v", g.ID, g.Winners)}
}

func (textAnnouncer) NoParticipants(g *models.Giveaway) bmodels.Payload {
	return bmodels.Payload{Text: "no participants " + g.ID}
}

func (textAnnouncer) Rerolled(g *models.Giveaway) bmodels.Payload {
	return bmodels.Payload{Text: fmt.Sprintf("reroll %s %v", g.ID, g.Winners)}
}

type fixture struct {
	svc       GiveawayService
	repo      repository.GiveawayRepository
	broadcast *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewMemoryGiveawayRepository()
	b := &recordingBroadcaster{}
	audience := staticAudience(bmodels.Users([]int64{1, 2, 3, 4}))
	svc := NewGiveawayService(repo, NewSeededSelector(1), b, audience, textAnnouncer{}, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, broadcast: b}
}

func (f *fixture) create(t *testing.T, winners int) *models.Giveaway {
	t.Helper()
	g, err := f.svc.Create(context.Background(), CreateInput{
		Prize:        "Telegram Premium",
		Description:  "6 months",
		EndTime:      time.Now().Add(time.Hour),
		WinnersCount: winners,
		AdminID:      99,
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) join(t *testing.T, id string, users ...int64) {
	t.Helper()
	for _, u := range users {
		_, err := f.svc.Join(context.Background(), id, u)
		require.NoError(t, err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 2)

	assert.Equal(t, models.GiveawayStatusActive, g.Status)
	assert.Empty(t, g.Participants)
	assert.Equal(t, int64(99), g.CreatedBy)

	_, err := f.svc.Create(context.Background(), CreateInput{
		Prize: "Other", EndTime: time.Now().Add(time.Hour), WinnersCount: 1, AdminID: 99,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))

	active, err := f.svc.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.ID, active.ID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "zero winners", input: CreateInput{Prize: "x", EndTime: future, WinnersCount: 0, AdminID: 1}},
		{name: "empty prize", input: CreateInput{Prize: "  ", EndTime: future, WinnersCount: 1, AdminID: 1}},
		{name: "past end", input: CreateInput{Prize: "x", EndTime: time.Now().Add(-time.Minute), WinnersCount: 1, AdminID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.input)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), "got %v", err)
		})
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)

	res, err := f.svc.Join(context.Background(), g.ID, 10)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Equal(t, 1, res.Participants)

	res, err = f.svc.JoinActive(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, res.AlreadyJoined)
	assert.False(t, res.Joined)
	assert.Equal(t, 1, res.Participants)
}

func TestConcurrentJoins(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts []int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			res, err := f.svc.Join(context.Background(), g.ID, uid)
			if !assert.NoError(t, err) {
				return
			}
			if res.Joined {
				mu.Lock()
				counts = append(counts, res.Participants)
				mu.Unlock()
			}
		}(int64(i % 10))
	}
	wg.Wait()

	stored, err := f.svc.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Participants, 10)
	// every successful join sees the count its own write produced
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, counts)
}

func TestJoinRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.JoinActive(context.Background(), 1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotJoinable))

	_, err = f.svc.Join(context.Background(), "GA_missing", 1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotJoinable))

	g := f.create(t, 1)
	f.join(t, g.ID, 1)
	_, err = f.svc.Close(context.Background(), g.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Join(context.Background(), g.ID, 2)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotJoinable))
}

func TestCloseDeferredThenAnnounce(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 2)
	f.join(t, g.ID, 10, 20, 30, 40)

	res, err := f.svc.Close(context.Background(), g.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusPendingAnnouncement, res.Giveaway.Status)
	assert.Len(t, res.Giveaway.Winners, 2)
	assert.Subset(t, []int64{10, 20, 30, 40}, res.Giveaway.Winners)
	assert.Empty(t, f.broadcast.calls, "deferred close must not fan out")

	ann, err := f.svc.Announce(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusAnnounced, ann.Giveaway.Status)
	require.Len(t, f.broadcast.calls, 1)
	assert.Equal(t, bmodels.Users([]int64{10, 20, 30, 40}), f.broadcast.calls[0].recipients)
	assert.Equal(t, 4, ann.Delivery.Success)

	_, err = f.svc.Announce(context.Background(), g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotAnnounceable))
	assert.Len(t, f.broadcast.calls, 1)
}

func TestAnnounceLatestPending(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)
	f.join(t, g.ID, 5)
	_, err := f.svc.Close(context.Background(), "", false)
	require.NoError(t, err)

	ann, err := f.svc.Announce(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, g.ID, ann.Giveaway.ID)
}

func TestAnnounceRequiresPending(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)

	_, err := f.svc.Announce(context.Background(), g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotAnnounceable))
}

func TestAnnounceWithoutWinners(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)
	f.join(t, g.ID, 5)
	// a record can only reach pending_announcement without winners through the store directly
	_, err := f.repo.CloseActive(context.Background(), g.ID, func([]int64) ([]int64, models.GiveawayStatus) {
		return nil, models.GiveawayStatusPendingAnnouncement
	})
	require.NoError(t, err)

	_, err = f.svc.Announce(context.Background(), g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoWinners))
}

func TestCloseAutoAnnounce(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 5)
	f.join(t, g.ID, 10, 20)

	res, err := f.svc.Close(context.Background(), g.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Announced)
	assert.Equal(t, models.GiveawayStatusAnnounced, res.Giveaway.Status)
	assert.ElementsMatch(t, []int64{10, 20}, res.Giveaway.Winners)
	require.Len(t, f.broadcast.calls, 1)

	stored, err := f.svc.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusAnnounced, stored.Status)

	_, err = f.svc.Close(context.Background(), g.ID, true)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotClosable))
}

func TestCloseWithoutParticipants(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)

	res, err := f.svc.Close(context.Background(), g.ID, true)
	require.NoError(t, err)
	assert.True(t, res.NoParticipants)
	assert.False(t, res.Announced)
	assert.Equal(t, models.GiveawayStatusEnded, res.Giveaway.Status)
	assert.Empty(t, res.Giveaway.Winners)

	// one general notice, nothing per participant
	require.Len(t, f.broadcast.calls, 1)
	assert.Equal(t, "no participants "+g.ID, f.broadcast.calls[0].payload.Text)
	assert.Len(t, f.broadcast.calls[0].recipients, 4)

	_, err = f.svc.Announce(context.Background(), g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotAnnounceable))
}

func TestCloseWithoutActive(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Close(context.Background(), "", false)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotClosable))
}

func TestRerollEmptyParticipants(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)
	_, err := f.svc.Close(context.Background(), g.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Reroll(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoParticipants))

	stored, err := f.svc.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Winners)
}

func TestRerollMostRecent(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, 1)
	f.join(t, first.ID, 1, 2, 3)
	_, err := f.svc.Close(context.Background(), first.ID, true)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	second := f.create(t, 2)
	f.join(t, second.ID, 7, 8, 9)
	_, err = f.svc.Close(context.Background(), second.ID, true)
	require.NoError(t, err)

	res, err := f.svc.Reroll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, res.Giveaway.ID)
	assert.Len(t, res.Giveaway.Winners, 2)
	assert.Subset(t, []int64{7, 8, 9}, res.Giveaway.Winners)
	assert.Equal(t, models.GiveawayStatusAnnounced, res.Giveaway.Status)
	assert.Len(t, res.PreviousWinners, 2)

	last := f.broadcast.calls[len(f.broadcast.calls)-1]
	assert.Contains(t, last.payload.Text, "reroll "+second.ID)
}

func TestRerollPendingIsRejected(t *testing.T) {
	f := newFixture(t)
	g := f.create(t, 1)
	f.join(t, g.ID, 1)
	_, err := f.svc.Close(context.Background(), g.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Reroll(context.Background(), g.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotRerollable))
}

func TestRecentWinnersAndStats(t *testing.T) {
	f := newFixture(t)

	empty := f.create(t, 1)
	_, err := f.svc.Close(context.Background(), empty.ID, true)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	g := f.create(t, 1)
	f.join(t, g.ID, 1)
	_, err = f.svc.Close(context.Background(), g.ID, true)
	require.NoError(t, err)

	recent, err := f.svc.RecentWinners(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, g.ID, recent[0].ID)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.Stats{Ended: 1, Announced: 1}, stats)
}

package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"giveaway-bot/internal/features/botlog"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	cmodels "giveaway-bot/internal/features/channel/models"
	cmemory "giveaway-bot/internal/features/channel/repository/memory"
	cservice "giveaway-bot/internal/features/channel/service"
	gmodels "giveaway-bot/internal/features/giveaway/models"
	gmemory "giveaway-bot/internal/features/giveaway/repository/memory"
	gservice "giveaway-bot/internal/features/giveaway/service"
	smemory "giveaway-bot/internal/features/session/repository/memory"
	sservice "giveaway-bot/internal/features/session/service"
	subservice "giveaway-bot/internal/features/subscription/service"
	umemory "giveaway-bot/internal/features/user/repository/memory"
	uservice "giveaway-bot/internal/features/user/service"
)

const (
	adminID int64 = 1
	userID  int64 = 100
)

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context

	sender   *tele.User
	chat     *tele.Chat
	msg      *tele.Message
	callback *tele.Callback
	member   *tele.ChatMemberUpdate
	args     []string

	sent      []string
	sendOpts  []*tele.SendOptions
	responses []*tele.CallbackResponse
	deleted   bool
}

func (c *fakeContext) Sender() *tele.User                 { return c.sender }
func (c *fakeContext) Chat() *tele.Chat                   { return c.chat }
func (c *fakeContext) Message() *tele.Message             { return c.msg }
func (c *fakeContext) Callback() *tele.Callback           { return c.callback }
func (c *fakeContext) ChatMember() *tele.ChatMemberUpdate { return c.member }
func (c *fakeContext) Args() []string                     { return c.args }

func (c *fakeContext) Text() string {
	if c.msg == nil {
		return ""
	}
	return c.msg.Text
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	text, _ := what.(string)
	c.sent = append(c.sent, text)
	var so *tele.SendOptions
	for _, o := range opts {
		if v, ok := o.(*tele.SendOptions); ok {
			so = v
		}
	}
	c.sendOpts = append(c.sendOpts, so)
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) Delete() error {
	c.deleted = true
	return nil
}

func (c *fakeContext) last() string {
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeContext) lastResponse() string {
	if len(c.responses) == 0 {
		return ""
	}
	return c.responses[len(c.responses)-1].Text
}

func private(id int64, text string, args ...string) *fakeContext {
	u := &tele.User{ID: id, FirstName: "User", Username: "user"}
	chat := &tele.Chat{ID: id, Type: tele.ChatPrivate}
	return &fakeContext{
		sender: u,
		chat:   chat,
		msg:    &tele.Message{ID: 10, Sender: u, Chat: chat, Text: text, Payload: strings.Join(args, " ")},
		args:   args,
	}
}

func groupCallback(id int64, data string) *fakeContext {
	u := &tele.User{ID: id, FirstName: "User"}
	chat := &tele.Chat{ID: -500, Type: tele.ChatSuperGroup}
	msg := &tele.Message{ID: 20, Chat: chat}
	return &fakeContext{
		sender:   u,
		chat:     chat,
		msg:      msg,
		callback: &tele.Callback{Sender: u, Message: msg, Unique: data},
	}
}

type sentMessage struct {
	to   int64
	text string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, _ := what.(string)
	id, _ := to.(*tele.User)
	var recipient int64
	if id != nil {
		recipient = id.ID
	}
	s.sent = append(s.sent, sentMessage{to: recipient, text: text})
	return &tele.Message{}, nil
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.text
	}
	return out
}

type fanoutCall struct {
	recipients []bmodels.Recipient
	payload    bmodels.Payload
}

type recordingFanout struct {
	mu    sync.Mutex
	calls []fanoutCall
}

func (f *recordingFanout) Fanout(_ context.Context, recipients []bmodels.Recipient, payload bmodels.Payload) (bmodels.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fanoutCall{recipients: recipients, payload: payload})
	return bmodels.Result{Total: len(recipients), Success: len(recipients)}, nil
}

func (f *recordingFanout) all() []fanoutCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fanoutCall(nil), f.calls...)
}

type fakeMembers struct {
	mu         sync.Mutex
	subscribed map[int64]bool
}

func (m *fakeMembers) MembershipStatus(_ context.Context, _, userID int64) (cmodels.MemberStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribed[userID] {
		return cmodels.MemberMember, nil
	}
	return "", subservice.ErrNotParticipant
}

func (m *fakeMembers) subscribe(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed[userID] = true
}

type broadcastCall struct {
	target  bmodels.Target
	payload bmodels.Payload
	sentBy  int64
}

type recordingBroadcasts struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcasts) Broadcast(_ context.Context, target bmodels.Target, payload bmodels.Payload, sentBy int64) (*bmodels.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{target: target, payload: payload, sentBy: sentBy})
	return &bmodels.Record{ID: "b1", Target: target, SentBy: sentBy, Total: 3, Success: 2, Blocked: 1}, nil
}

type env struct {
	h          *Handler
	giveaways  gservice.GiveawayService
	audience   uservice.AudienceService
	members    *fakeMembers
	fanout     *recordingFanout
	broadcasts *recordingBroadcasts
	api        *recordingSender
}

func newEnv(t *testing.T, forceSubscribe bool) *env {
	t.Helper()
	nop := zerolog.Nop()

	users := umemory.NewStore()
	audience := uservice.NewAudienceService(users, users, nop)

	fanout := &recordingFanout{}
	messages := NewMessages()
	giveaways := gservice.NewGiveawayService(
		gmemory.NewMemoryGiveawayRepository(),
		gservice.NewSeededSelector(7),
		fanout,
		audience,
		messages,
		nop,
	)

	seed := cmodels.Settings{ForceSubscribe: forceSubscribe}
	if forceSubscribe {
		seed.ForceChannels = []cmodels.ForceChannel{{ID: -1001, Title: "News", Username: "news"}}
	}
	settings := cservice.NewSettingsService(cmemory.NewMemorySettingsRepositoryFrom(seed), nil, []int64{adminID}, nop)

	members := &fakeMembers{subscribed: map[int64]bool{}}
	broadcasts := &recordingBroadcasts{}

	h := New(Deps{
		Giveaways:  giveaways,
		Gate:       subservice.NewGate(settings, members, subservice.Options{}, nop),
		Settings:   settings,
		Audience:   audience,
		Dialog:     sservice.NewWizard(smemory.NewMemorySessionStore(time.Minute), giveaways, nop),
		Broadcasts: broadcasts,
		Fanout:     fanout,
		Log:        botlog.NewNotifier(nil, 0, nop),
		Messages:   messages,
	}, nop)

	api := &recordingSender{}
	h.api = api
	h.username = "giveawaybot"
	t.Cleanup(h.Shutdown)

	return &env{
		h:          h,
		giveaways:  giveaways,
		audience:   audience,
		members:    members,
		fanout:     fanout,
		broadcasts: broadcasts,
		api:        api,
	}
}

func (e *env) call(t *testing.T, route string, c *fakeContext) {
	t.Helper()
	for _, r := range e.h.Routes() {
		if r.Name == route {
			require.NoError(t, e.h.wrap(r)(c))
			return
		}
	}
	t.Fatalf("route %q not found", route)
}

func (e *env) createGiveaway(t *testing.T, winners int) *gmodels.Giveaway {
	t.Helper()
	g, err := e.giveaways.Create(context.Background(), gservice.CreateInput{
		Prize:        "Phone <XL>",
		EndTime:      time.Now().Add(time.Hour),
		WinnersCount: winners,
		AdminID:      adminID,
	})
	require.NoError(t, err)
	return g
}

func TestRoutesAreUnique(t *testing.T) {
	e := newEnv(t, false)

	endpoints := map[string]bool{}
	names := map[string]bool{}
	admin := map[string]bool{}
	for _, r := range e.h.Routes() {
		assert.False(t, endpoints[r.Endpoint], "duplicate endpoint %q", r.Endpoint)
		assert.False(t, names[r.Name], "duplicate name %q", r.Name)
		assert.NotNil(t, r.Handler, r.Name)
		endpoints[r.Endpoint] = true
		names[r.Name] = true
		admin[r.Endpoint] = r.Admin
	}

	for _, cmd := range []string{"/start", "/join", "/winners", "/stats", "/refer", "/help"} {
		assert.True(t, endpoints[cmd], cmd)
		assert.False(t, admin[cmd], cmd)
	}
	for _, cmd := range []string{
		"/creategiveaway", "/cancel", "/endgiveaway", "/announce", "/reroll", "/participants",
		"/broadcast", "/addchannel", "/removechannel", "/setforce", "/addadmin", "/removeadmin",
		"/admins", "/settings", "/botstats",
	} {
		assert.True(t, admin[cmd], cmd)
	}
	assert.True(t, endpoints["\f"+callbackJoin])
	assert.True(t, endpoints["\f"+callbackCheckSubscribe])
	assert.True(t, endpoints[tele.OnText])
	assert.True(t, endpoints[tele.OnMyChatMember])
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	e := newEnv(t, false)

	c := private(userID, "/botstats")
	e.call(t, "botstats", c)
	assert.Equal(t, e.h.Messages.AdminOnly(), c.last())

	c = private(adminID, "/botstats")
	e.call(t, "botstats", c)
	assert.Contains(t, c.last(), "Bot Statistics")
}

func TestPrivateRoutesIgnoreGroups(t *testing.T) {
	e := newEnv(t, false)

	c := private(userID, "/start")
	c.chat = &tele.Chat{ID: -42, Type: tele.ChatGroup}
	e.call(t, "start", c)
	assert.Empty(t, c.sent)
}

func TestJoinCommand(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	c := private(userID, "/join")
	e.call(t, "join", c)
	assert.Equal(t, e.h.Messages.StartFirst(), c.last())

	c = private(userID, "/start")
	e.call(t, "start", c)
	assert.Contains(t, c.last(), "Welcome User")

	c = private(userID, "/join")
	e.call(t, "join", c)
	assert.Contains(t, c.last(), "No active giveaway")

	g := e.createGiveaway(t, 1)

	c = private(userID, "/join")
	e.call(t, "join", c)
	assert.Equal(t, e.h.Messages.ForceSubscribe(), c.last())
	markup := c.sendOpts[len(c.sendOpts)-1].ReplyMarkup
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "https://t.me/news", markup.InlineKeyboard[0][0].URL)

	stored, err := e.giveaways.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Participants)

	e.members.subscribe(userID)

	c = private(userID, "/join")
	e.call(t, "join", c)
	assert.Contains(t, c.last(), "Successfully joined")
	assert.Contains(t, c.last(), "Phone &lt;XL&gt;")

	c = private(userID, "/join")
	e.call(t, "join", c)
	assert.Contains(t, c.last(), "already joined")

	stored, err = e.giveaways.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{userID}, stored.Participants)
}

func TestJoinCallbackFromGroup(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	e.createGiveaway(t, 1)

	c := groupCallback(userID, callbackJoin)
	e.call(t, "callback."+callbackJoin, c)
	assert.Equal(t, "Please join the required channels first!", c.lastResponse())
	require.Len(t, e.api.texts(), 1)
	assert.Equal(t, e.h.Messages.ForceSubscribe(), e.api.texts()[0])

	c = groupCallback(userID, callbackCheckSubscribe)
	e.call(t, "callback."+callbackCheckSubscribe, c)
	assert.Equal(t, e.h.Messages.ForceSubscribeAlert(), c.lastResponse())
	assert.False(t, c.deleted)

	e.members.subscribe(userID)

	c = groupCallback(userID, callbackCheckSubscribe)
	e.call(t, "callback."+callbackCheckSubscribe, c)
	assert.Contains(t, c.lastResponse(), "Successfully joined")
	assert.True(t, c.deleted)

	// joining through a button registers the user
	_, err := e.audience.GetUser(ctx, userID)
	require.NoError(t, err)

	c = groupCallback(userID, callbackJoin)
	e.call(t, "callback."+callbackJoin, c)
	assert.Contains(t, c.lastResponse(), "already joined")
}

func TestCreationDialog(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	e.call(t, "start", private(adminID, "/start"))

	c := private(userID, "/creategiveaway")
	e.call(t, "creategiveaway", c)
	assert.Equal(t, e.h.Messages.AdminOnly(), c.last())

	steps := []struct {
		input string
		want  string
	}{
		{"/creategiveaway", "Please enter the prize name"},
		{"Phone", "description"},
		{"-", "duration"},
		{"soon", "Invalid duration"},
		{"1h30m", "number of winners"},
		{"2", "Giveaway Created"},
	}
	for i, step := range steps {
		c := private(adminID, step.input)
		route := "text"
		if i == 0 {
			route = "creategiveaway"
		}
		e.call(t, route, c)
		assert.Contains(t, c.last(), step.want, "input %q", step.input)
	}

	e.h.Wait()

	g, err := e.giveaways.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Phone", g.Prize)
	assert.Equal(t, 2, g.WinnersCount)

	calls := e.fanout.all()
	require.Len(t, calls, 1)
	assert.Equal(t, []bmodels.Recipient{{ID: adminID, Kind: bmodels.RecipientUser}}, calls[0].recipients)
	require.NotEmpty(t, calls[0].payload.Keyboard)
	assert.Equal(t, callbackJoin, calls[0].payload.Keyboard[0][0].Data)
	assert.Contains(t, e.api.texts()[0], "Broadcast Complete")

	// plain text without a dialog is ignored
	c = private(userID, "hello")
	e.call(t, "text", c)
	assert.Empty(t, c.sent)
}

func TestEndGiveawayLaterThenAnnounce(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	g := e.createGiveaway(t, 1)
	for _, id := range []int64{100, 101, 102} {
		_, err := e.giveaways.Join(ctx, g.ID, id)
		require.NoError(t, err)
	}

	c := private(adminID, "/endgiveaway", "soon")
	e.call(t, "endgiveaway", c)
	assert.Contains(t, c.last(), "Usage")

	c = private(adminID, "/endgiveaway", "later")
	e.call(t, "endgiveaway", c)
	assert.Equal(t, e.h.Messages.Working(), c.last())
	e.h.Wait()

	stored, err := e.giveaways.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, gmodels.GiveawayStatusPendingAnnouncement, stored.Status)
	assert.Empty(t, e.fanout.all())
	assert.Contains(t, e.api.texts()[0], "/announce")

	e.call(t, "announce", private(adminID, "/announce"))
	e.h.Wait()

	stored, err = e.giveaways.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, gmodels.GiveawayStatusAnnounced, stored.Status)
	calls := e.fanout.all()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].payload.Text, "Giveaway Ended")
	assert.Len(t, calls[0].recipients, 3)

	// a second announce is reported back to the admin
	e.call(t, "announce", private(adminID, "/announce"))
	e.h.Wait()
	texts := e.api.texts()
	assert.Contains(t, texts[len(texts)-1], "No giveaway is waiting for an announcement")
}

func TestEndGiveawayNowWithoutParticipants(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	e.call(t, "start", private(userID, "/start"))
	g := e.createGiveaway(t, 1)

	e.call(t, "endgiveaway", private(adminID, "/endgiveaway"))
	e.h.Wait()

	stored, err := e.giveaways.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, gmodels.GiveawayStatusEnded, stored.Status)

	calls := e.fanout.all()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].payload.Text, "No participants")
	assert.Contains(t, e.api.texts()[0], "without participants")
}

func TestBroadcastCommand(t *testing.T) {
	e := newEnv(t, false)

	c := private(adminID, "/broadcast")
	e.call(t, "broadcast", c)
	assert.Equal(t, e.h.Messages.BroadcastUsage(), c.last())

	c = private(adminID, "/broadcast users hello there", "users", "hello", "there")
	e.call(t, "broadcast", c)

	c = private(adminID, "/broadcast chats", "chats")
	c.msg.ReplyTo = &tele.Message{ID: 77}
	e.call(t, "broadcast", c)
	e.h.Wait()

	require.Len(t, e.broadcasts.calls, 2)
	first, second := e.broadcasts.calls[0], e.broadcasts.calls[1]
	if first.payload.CopyFrom != nil {
		first, second = second, first
	}
	assert.Equal(t, bmodels.TargetUsers, first.target)
	assert.Equal(t, "hello there", first.payload.Text)
	assert.Equal(t, bmodels.TargetChats, second.target)
	assert.Equal(t, &bmodels.MessageRef{ChatID: adminID, MessageID: 77}, second.payload.CopyFrom)

	for _, text := range e.api.texts() {
		assert.Contains(t, text, "Broadcast Complete")
	}
}

func TestSettingsCommands(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	c := private(adminID, "/setforce maybe", "maybe")
	e.call(t, "setforce", c)
	assert.Equal(t, e.h.Messages.SetForceUsage(), c.last())

	e.call(t, "setforce", private(adminID, "/setforce on", "on"))
	enabled, _, err := e.h.Settings.ForceSubscribe(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	c = private(adminID, "/addadmin 55", "55")
	e.call(t, "addadmin", c)
	assert.Equal(t, e.h.Messages.AdminAdded(55), c.last())

	c = private(55, "/settings")
	e.call(t, "settings", c)
	assert.Contains(t, c.last(), "✅ Enabled")
	assert.Contains(t, c.last(), "<b>Admins:</b> 2")

	c = private(adminID, "/removeadmin 1", "1")
	e.call(t, "removeadmin", c)
	assert.Contains(t, c.last(), "Permanent admins cannot be removed")

	c = private(adminID, "/removechannel")
	e.call(t, "removechannel", c)
	assert.Equal(t, e.h.Messages.ChannelList(nil), c.last())
}

func TestMyChatMember(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	update := func(chatType tele.ChatType, old, new tele.MemberStatus) *fakeContext {
		return &fakeContext{
			sender: &tele.User{ID: adminID},
			chat:   &tele.Chat{ID: -900, Type: chatType, Title: "Fans"},
			member: &tele.ChatMemberUpdate{
				Chat:          &tele.Chat{ID: -900, Type: chatType, Title: "Fans"},
				Sender:        &tele.User{ID: adminID},
				OldChatMember: &tele.ChatMember{Role: old},
				NewChatMember: &tele.ChatMember{Role: new},
			},
		}
	}

	e.call(t, "my_chat_member", update(tele.ChatSuperGroup, tele.Left, tele.Member))
	counts, err := e.audience.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Groups)

	recipients, err := e.audience.Recipients(ctx, bmodels.TargetChats)
	require.NoError(t, err)
	assert.Equal(t, []bmodels.Recipient{{ID: -900, Kind: bmodels.RecipientGroup}}, recipients)

	e.call(t, "my_chat_member", update(tele.ChatSuperGroup, tele.Member, tele.Kicked))
	counts, err = e.audience.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Groups)

	e.call(t, "my_chat_member", update(tele.ChatPrivate, tele.Left, tele.Member))
	counts, err = e.audience.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Groups)
}

package botlog

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	bmodels "giveaway-bot/internal/features/broadcast/models"
	gmodels "giveaway-bot/internal/features/giveaway/models"
	umodels "giveaway-bot/internal/features/user/models"
)

const sendTimeout = 10 * time.Second

type Deliverer interface {
	Deliver(ctx context.Context, to bmodels.Recipient, payload bmodels.Payload) error
}

// Notifier posts operator events to the log channel. A zero channel disables
// it. Delivery failures are logged and swallowed.
type Notifier struct {
	deliverer Deliverer
	channelID int64
	logger    zerolog.Logger
	now       func() time.Time
}

func NewNotifier(deliverer Deliverer, channelID int64, logger zerolog.Logger) *Notifier {
	return &Notifier{
		deliverer: deliverer,
		channelID: channelID,
		logger:    logger.With().Str("component", "botlog").Logger(),
		now:       time.Now,
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.channelID != 0
}

func (n *Notifier) UserStarted(ctx context.Context, u *umodels.User) {
	n.post(ctx, "user_started", "🚀 <b>New User Started Bot</b>",
		field("User ID", code(u.ID)),
		field("Username", username(u.Username)),
	)
}

func (n *Notifier) BotAdded(ctx context.Context, chat *umodels.Chat, addedBy int64) {
	kind := "Group"
	if chat.Type.IsChannel() {
		kind = "Channel"
	}
	n.post(ctx, "bot_added", "🤖 <b>Bot Added</b>",
		field("Chat Type", kind),
		field("Chat ID", code(chat.ID)),
		field("Chat Name", html.EscapeString(chat.Title)),
		field("Added By", code(addedBy)),
	)
}

func (n *Notifier) GiveawayCreated(ctx context.Context, g *gmodels.Giveaway) {
	n.post(ctx, "giveaway_created", "🎁 <b>Giveaway Created</b>",
		field("Giveaway ID", "<code>"+g.ID+"</code>"),
		field("Prize", html.EscapeString(g.Prize)),
		field("Winners", strconv.Itoa(g.WinnersCount)),
		field("Created By", code(g.CreatedBy)),
	)
}

func (n *Notifier) GiveawayEnded(ctx context.Context, g *gmodels.Giveaway) {
	winners := "None"
	if len(g.Winners) > 0 {
		ids := make([]string, len(g.Winners))
		for i, w := range g.Winners {
			ids[i] = code(w)
		}
		winners = strings.Join(ids, ", ")
	}
	n.post(ctx, "giveaway_ended", "🏁 <b>Giveaway Ended</b>",
		field("Giveaway ID", "<code>"+g.ID+"</code>"),
		field("Participants", strconv.Itoa(g.ParticipantsCount())),
		field("Winners", winners),
	)
}

func (n *Notifier) UserJoined(ctx context.Context, userID int64, name, giveawayID string) {
	n.post(ctx, "user_joined", "🎉 <b>User Joined Giveaway</b>",
		field("User ID", code(userID)),
		field("Username", username(name)),
		field("Giveaway ID", "<code>"+giveawayID+"</code>"),
	)
}

func (n *Notifier) BroadcastCompleted(ctx context.Context, rec *bmodels.Record) {
	n.post(ctx, "broadcast", "📢 <b>Broadcast Completed</b>",
		field("Admin ID", code(rec.SentBy)),
		field("Target", string(rec.Target)),
		field("Attempted", strconv.Itoa(rec.Total)),
		field("Success", strconv.Itoa(rec.Success)),
		field("Failed", strconv.Itoa(rec.Failed)),
		field("Blocked", strconv.Itoa(rec.Blocked)),
		field("Skipped", strconv.Itoa(rec.Skipped)),
	)
}

func (n *Notifier) post(ctx context.Context, event, title string, lines ...string) {
	if !n.Enabled() {
		return
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("\n")
	b.WriteString(field("Time", "<code>"+n.now().UTC().Format("2006-01-02 15:04:05")+"</code>"))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	err := n.deliverer.Deliver(ctx,
		bmodels.Recipient{ID: n.channelID, Kind: bmodels.RecipientChannel},
		bmodels.Payload{Text: b.String(), ParseMode: bmodels.ParseModeHTML},
	)
	if err != nil {
		n.logger.Warn().Err(err).Str("event", event).Msg("Failed to post log event")
	}
}

func field(name, value string) string {
	return fmt.Sprintf("<b>%s:</b> %s", name, value)
}

func code(id int64) string {
	return "<code>" + strconv.FormatInt(id, 10) + "</code>"
}

func username(name string) string {
	if name == "" {
		return "Not Available"
	}
	return "@" + html.EscapeString(name)
}

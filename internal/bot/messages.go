package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	apperrors "giveaway-bot/internal/common/errors"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	cmodels "giveaway-bot/internal/features/channel/models"
	gmodels "giveaway-bot/internal/features/giveaway/models"
	gservice "giveaway-bot/internal/features/giveaway/service"
	smodels "giveaway-bot/internal/features/session/models"
	umodels "giveaway-bot/internal/features/user/models"
)

// maxWinnersPerGiveaway limits /winners output.
const maxWinnersPerGiveaway = 3

// Messages composes every text the bot sends. It also serves as the
// giveaway announcer. All texts are HTML unless noted.
type Messages struct {
	now func() time.Time
}

var _ gservice.Announcer = (*Messages)(nil)

func NewMessages() *Messages {
	return &Messages{now: time.Now}
}

const userCommands = "• /join - Join active giveaway\n" +
	"• /stats - View your statistics\n" +
	"• /refer - Get your referral link\n" +
	"• /winners - View recent winners\n" +
	"• /help - Get help\n"

const adminCommands = "• /creategiveaway - Create new giveaway\n" +
	"• /cancel - Cancel giveaway creation\n" +
	"• /endgiveaway [now|later] - End active giveaway\n" +
	"• /announce - Announce pending winners\n" +
	"• /reroll [id] - Reroll winners\n" +
	"• /participants - View participants\n" +
	"• /broadcast [users|chats|all] text - Broadcast (or reply to a message)\n" +
	"• /addchannel @channel - Add force subscribe channel\n" +
	"• /removechannel id - Remove force subscribe channel\n" +
	"• /setforce on|off - Toggle force subscribe\n" +
	"• /addadmin id, /removeadmin id, /admins - Manage admins\n" +
	"• /settings - Bot settings\n" +
	"• /botstats - Bot statistics\n"

func (m *Messages) Welcome(firstName string, isAdmin bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👋 <b>Welcome %s!</b>\n\n", html.EscapeString(firstName))
	b.WriteString("🎁 I'm a Giveaway Bot. You can participate in giveaways and win amazing prizes!\n\n")
	b.WriteString("<b>Available Commands:</b>\n")
	b.WriteString(userCommands)
	if isAdmin {
		b.WriteString("\n👮 <b>You are an admin!</b>\nUse /help for admin commands.")
	}
	return b.String()
}

func (m *Messages) Help(isAdmin bool) string {
	var b strings.Builder
	b.WriteString("❓ <b>Help &amp; Commands</b>\n\n<b>User Commands:</b>\n")
	b.WriteString("• /start - Start the bot\n")
	b.WriteString(userCommands)
	if isAdmin {
		b.WriteString("\n<b>Admin Commands:</b>\n")
		b.WriteString(adminCommands)
	}
	return b.String()
}

func (m *Messages) AdminOnly() string {
	return "❌ This command is only for admins!"
}

func (m *Messages) StartFirst() string {
	return "Please /start the bot first!"
}

func (m *Messages) Working() string {
	return "⏳ Working on it, I will report back when done."
}

// Error renders err as plain text, suitable for callback alerts too.
func (m *Messages) Error(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return "❌ Something went wrong. Please try again later."
	}

	switch appErr.Code {
	case apperrors.ErrCodeNotJoinable:
		return "❌ No active giveaway at the moment!"
	case apperrors.ErrCodeNotClosable:
		return "❌ No active giveaway to end!"
	case apperrors.ErrCodeNotAnnounceable:
		return "❌ No giveaway is waiting for an announcement!"
	case apperrors.ErrCodeNotRerollable:
		return "❌ No ended giveaway found!"
	case apperrors.ErrCodeNoWinners:
		return "❌ The giveaway has no winners to announce!"
	case apperrors.ErrCodeNoParticipants:
		return "❌ No participants in the giveaway!"
	case apperrors.ErrCodeValidation:
		return "❌ Invalid " + detail(appErr, "field") + ": " + detail(appErr, "reason")
	case apperrors.ErrCodeConflict, apperrors.ErrCodeForbidden:
		return "❌ " + capitalize(detail(appErr, "reason"))
	case apperrors.ErrCodeNotFound:
		return "❌ " + capitalize(detail(appErr, "resource")) + " not found!"
	case apperrors.ErrCodeTelegramAPI:
		return "❌ Telegram rejected the request. Check the chat and the bot's rights."
	}
	return "❌ Something went wrong. Please try again later."
}

// isUnexpected separates infrastructure failures from rejected requests.
func isUnexpected(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeInternal, apperrors.ErrCodeDatabaseError, apperrors.ErrCodeTelegramAPI:
		return true
	}
	return false
}

func detail(e *apperrors.AppError, key string) string {
	if v, ok := e.Details[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Prompt asks for the input the creation dialog expects next.
func (m *Messages) Prompt(step smodels.Step) string {
	switch step {
	case smodels.StepPrize:
		return "🎁 <b>Create New Giveaway</b>\n\nPlease enter the prize name:\n\n<i>Send /cancel to stop.</i>"
	case smodels.StepDescription:
		return "📝 Now enter the giveaway description (or <code>-</code> to skip):"
	case smodels.StepDuration:
		return "⏰ Enter the giveaway duration:\n\nExamples: <code>1h</code>, <code>30m</code>, <code>2d</code>, <code>1h30m</code>\n(h=hours, m=minutes, d=days)"
	case smodels.StepWinners:
		return "🏆 Enter the number of winners:"
	}
	return ""
}

func (m *Messages) DialogCancelled(existed bool) string {
	if existed {
		return "✅ Giveaway creation cancelled."
	}
	return "ℹ️ Nothing to cancel."
}

func (m *Messages) GiveawayCreated(g *gmodels.Giveaway) string {
	var b strings.Builder
	b.WriteString("✅ <b>Giveaway Created!</b>\n\n")
	fmt.Fprintf(&b, "🆔 <b>ID:</b> <code>%s</code>\n", g.ID)
	fmt.Fprintf(&b, "🎁 <b>Prize:</b> %s\n", html.EscapeString(g.Prize))
	if g.Description != "" {
		fmt.Fprintf(&b, "📝 <b>Description:</b> %s\n", html.EscapeString(g.Description))
	}
	fmt.Fprintf(&b, "⏰ <b>Ends:</b> %s\n", g.EndTime.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "🏆 <b>Winners:</b> %d\n\n", g.WinnersCount)
	b.WriteString("📢 Broadcasting to users and groups...")
	return b.String()
}

// NewGiveaway is the announcement of a freshly created giveaway.
func (m *Messages) NewGiveaway(g *gmodels.Giveaway) bmodels.Payload {
	var b strings.Builder
	b.WriteString("🎉 <b>NEW GIVEAWAY!</b>\n\n")
	fmt.Fprintf(&b, "🎁 <b>Prize:</b> %s\n", html.EscapeString(g.Prize))
	if g.Description != "" {
		fmt.Fprintf(&b, "📝 <b>Description:</b> %s\n", html.EscapeString(g.Description))
	}
	fmt.Fprintf(&b, "⏰ <b>Ends in:</b> %s\n", m.remaining(g.EndTime))
	fmt.Fprintf(&b, "🏆 <b>Winners:</b> %d\n\n", g.WinnersCount)
	b.WriteString("Click below to join!")

	return bmodels.Payload{
		Text:      b.String(),
		ParseMode: bmodels.ParseModeHTML,
		Keyboard:  JoinKeyboard(),
	}
}

func (m *Messages) Joined(g *gmodels.Giveaway, res *gmodels.JoinResult) string {
	if res.AlreadyJoined {
		return "✅ You have already joined this giveaway!"
	}
	var b strings.Builder
	b.WriteString("🎉 <b>Successfully joined the giveaway!</b>\n\n")
	if g != nil {
		fmt.Fprintf(&b, "🎁 <b>Prize:</b> %s\n", html.EscapeString(g.Prize))
	}
	fmt.Fprintf(&b, "👥 <b>Total Participants:</b> %d\n", res.Participants)
	if g != nil {
		fmt.Fprintf(&b, "⏰ <b>Time Remaining:</b> %s\n", m.remaining(g.EndTime))
	}
	b.WriteString("\n🤞 Good luck!")
	return b.String()
}

// JoinedAlert is the plain-text callback answer for a join.
func (m *Messages) JoinedAlert(g *gmodels.Giveaway, res *gmodels.JoinResult) string {
	if res.AlreadyJoined {
		return "✅ You have already joined this giveaway!"
	}
	text := "🎉 Successfully joined!\n\n"
	if g != nil {
		text += "🎁 Prize: " + g.Prize + "\n"
	}
	return text + "👥 Participants: " + strconv.Itoa(res.Participants)
}

func (m *Messages) ForceSubscribe() string {
	return "⚠️ <b>You must join the following channels to participate:</b>\n\n" +
		"Please join all channels and click '✅ Try Again'"
}

func (m *Messages) ForceSubscribeAlert() string {
	return "❌ Please join all required channels first!"
}

func (m *Messages) Results(g *gmodels.Giveaway) bmodels.Payload {
	var b strings.Builder
	b.WriteString("🏁 <b>Giveaway Ended!</b>\n\n")
	fmt.Fprintf(&b, "🎁 <b>Prize:</b> %s\n", html.EscapeString(g.Prize))
	fmt.Fprintf(&b, "👥 <b>Participants:</b> %d\n\n", g.ParticipantsCount())
	b.WriteString("🎉 <b>Winners:</b>\n")
	writeWinners(&b, g.Winners)
	b.WriteString("\n🎊 Congratulations to all winners!")
	return bmodels.Payload{Text: b.String(), ParseMode: bmodels.ParseModeHTML}
}

func (m *Messages) NoParticipants(g *gmodels.Giveaway) bmodels.Payload {
	text := "🏁 <b>Giveaway Ended</b>\n\n" +
		"🎁 <b>Prize:</b> " + html.EscapeString(g.Prize) + "\n" +
		"❌ <b>No participants!</b>"
	return bmodels.Payload{Text: text, ParseMode: bmodels.ParseModeHTML}
}

func (m *Messages) Rerolled(g *gmodels.Giveaway) bmodels.Payload {
	var b strings.Builder
	b.WriteString("🔄 <b>Winners Rerolled!</b>\n\n")
	fmt.Fprintf(&b, "🎁 <b>Prize:</b> %s\n\n", html.EscapeString(g.Prize))
	b.WriteString("🎉 <b>New Winners:</b>\n")
	writeWinners(&b, g.Winners)
	return bmodels.Payload{Text: b.String(), ParseMode: bmodels.ParseModeHTML}
}

func writeWinners(b *strings.Builder, winners []int64) {
	for i, id := range winners {
		fmt.Fprintf(b, "  🏆 %s\n", mention(id, "Winner "+strconv.Itoa(i+1)))
	}
}

// mention links to a user by id; it needs no lookup.
func mention(id int64, label string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(label))
}

func (m *Messages) CloseSummary(res *gmodels.CloseResult) string {
	g := res.Giveaway
	var b strings.Builder
	switch {
	case res.NoParticipants:
		fmt.Fprintf(&b, "🏁 Giveaway <code>%s</code> ended without participants.\n", g.ID)
		writeDelivery(&b, res.Delivery)
	case res.Announced:
		fmt.Fprintf(&b, "✅ Giveaway <code>%s</code> ended and winners were announced.\n", g.ID)
		fmt.Fprintf(&b, "🏆 Winners: %d of %d participants\n", len(g.Winners), g.ParticipantsCount())
		writeDelivery(&b, res.Delivery)
	default:
		fmt.Fprintf(&b, "✅ Giveaway <code>%s</code> ended. %d winner(s) selected.\n", g.ID, len(g.Winners))
		b.WriteString("📢 Use /announce to publish the results.")
	}
	return b.String()
}

func (m *Messages) AnnounceSummary(res *gmodels.AnnounceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 Winners of <code>%s</code> announced.\n", res.Giveaway.ID)
	writeDelivery(&b, res.Delivery)
	return b.String()
}

func (m *Messages) RerollSummary(res *gmodels.RerollResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔄 Winners of <code>%s</code> rerolled.\n\n", res.Giveaway.ID)
	b.WriteString("🎉 <b>New Winners:</b>\n")
	writeWinners(&b, res.Giveaway.Winners)
	b.WriteByte('\n')
	writeDelivery(&b, res.Delivery)
	return b.String()
}

func writeDelivery(b *strings.Builder, d gmodels.Delivery) {
	if d.Total > 0 {
		fmt.Fprintf(b, "✅ Delivered: %d | ❌ Failed: %d | 🚫 Blocked: %d (of %d)\n", d.Success, d.Failed, d.Blocked, d.Total)
	}
	if d.Skipped > 0 {
		fmt.Fprintf(b, "⏭ Not sent after cancellation: %d\n", d.Skipped)
	}
}

func (m *Messages) Participants(g *gmodels.Giveaway) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 <b>Participants of</b> <code>%s</code>\n\n", g.ID)
	fmt.Fprintf(&b, "🎁 <b>Prize:</b> %s\n", html.EscapeString(g.Prize))
	fmt.Fprintf(&b, "📊 <b>Total:</b> %d\n", g.ParticipantsCount())
	closed := g.Status.Closed()
	if closed {
		fmt.Fprintf(&b, "🏆 <b>Winners:</b> %d\n", len(g.Winners))
	} else {
		fmt.Fprintf(&b, "⏰ <b>Time Remaining:</b> %s\n", m.remaining(g.EndTime))
	}
	if g.ParticipantsCount() == 0 {
		return b.String()
	}

	b.WriteByte('\n')
	const limit = 50
	for i, id := range g.Participants {
		if i == limit {
			fmt.Fprintf(&b, "… and %d more\n", g.ParticipantsCount()-limit)
			break
		}
		line := fmt.Sprintf("%d. %s", i+1, mention(id, strconv.FormatInt(id, 10)))
		if closed && g.IsWinner(id) {
			line += " 🏆"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Messages) RecentWinners(giveaways []*gmodels.Giveaway) string {
	if len(giveaways) == 0 {
		return "❌ No winners yet!"
	}
	var b strings.Builder
	b.WriteString("🏆 <b>Recent Winners</b>\n\n")
	for _, g := range giveaways {
		fmt.Fprintf(&b, "🎁 <b>%s</b>\n", html.EscapeString(g.Prize))
		for i, id := range g.Winners {
			if i == maxWinnersPerGiveaway {
				fmt.Fprintf(&b, "   … and %d more\n", len(g.Winners)-maxWinnersPerGiveaway)
				break
			}
			fmt.Fprintf(&b, "   👤 %s\n", mention(id, "Winner "+strconv.Itoa(i+1)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Messages) UserStats(u *umodels.User, referrals int64) string {
	var b strings.Builder
	b.WriteString("📊 <b>Your Statistics</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>User ID:</b> <code>%d</code>\n", u.ID)
	fmt.Fprintf(&b, "📅 <b>Joined:</b> %s\n", u.JoinedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "👥 <b>Referrals:</b> %d\n", referrals)
	return b.String()
}

func (m *Messages) Referral(link string, referrals int64) string {
	return "👥 <b>Your Referral Link</b>\n\n" +
		"🔗 <code>" + html.EscapeString(link) + "</code>\n\n" +
		"📊 <b>Total Referrals:</b> " + strconv.FormatInt(referrals, 10) + "\n\n" +
		"Share this link with your friends!"
}

func (m *Messages) BroadcastUsage() string {
	return "❌ <b>Usage:</b>\n" +
		"<code>/broadcast [users|chats|all] message</code>\n" +
		"or reply to a message with <code>/broadcast [users|chats|all]</code>"
}

func (m *Messages) BroadcastSummary(rec *bmodels.Record, cancelled bool) string {
	var b strings.Builder
	if cancelled {
		b.WriteString("⚠️ <b>Broadcast interrupted</b>\n\n")
	} else {
		b.WriteString("✅ <b>Broadcast Complete!</b>\n\n")
	}
	fmt.Fprintf(&b, "🎯 Target: %s\n", rec.Target)
	fmt.Fprintf(&b, "👥 Attempted: %d\n", rec.Total)
	fmt.Fprintf(&b, "✅ Success: %d\n", rec.Success)
	fmt.Fprintf(&b, "❌ Failed: %d\n", rec.Failed)
	fmt.Fprintf(&b, "🚫 Blocked: %d\n", rec.Blocked)
	if rec.Skipped > 0 {
		fmt.Fprintf(&b, "⏭ Not sent: %d\n", rec.Skipped)
	}
	return b.String()
}

func (m *Messages) AnnouncementSent(res bmodels.Result) string {
	return fmt.Sprintf("✅ <b>Broadcast Complete!</b>\n\n✅ Success: %d\n❌ Failed: %d\n🚫 Blocked: %d",
		res.Success, res.Failed, res.Blocked)
}

func (m *Messages) ChannelAdded(ch *cmodels.ForceChannel) string {
	return fmt.Sprintf("✅ Channel <b>%s</b> (<code>%d</code>) added to force subscribe.",
		html.EscapeString(ch.DisplayName()), ch.ID)
}

func (m *Messages) ChannelRemoved(id int64) string {
	return fmt.Sprintf("✅ Channel <code>%d</code> removed from force subscribe.", id)
}

func (m *Messages) ChannelList(channels []cmodels.ForceChannel) string {
	if len(channels) == 0 {
		return "ℹ️ No channels in the list!"
	}
	var b strings.Builder
	b.WriteString("📺 <b>Force Channels:</b>\n\n")
	for i, ch := range channels {
		fmt.Fprintf(&b, "%d. %s - <code>%d</code>\n", i+1, html.EscapeString(ch.DisplayName()), ch.ID)
	}
	b.WriteString("\nUse <code>/removechannel id</code> to remove one.")
	return b.String()
}

func (m *Messages) ForceSubscribeSet(enabled bool) string {
	if enabled {
		return "✅ Force subscribe <b>enabled</b>."
	}
	return "✅ Force subscribe <b>disabled</b>."
}

func (m *Messages) SetForceUsage() string {
	return "❌ Invalid action! Use: <code>/setforce on</code> or <code>/setforce off</code>"
}

func (m *Messages) UserIDUsage(command string) string {
	return "❌ Invalid user ID! Use: <code>/" + command + " user_id</code>"
}

func (m *Messages) AdminAdded(id int64) string {
	return fmt.Sprintf("✅ User <code>%d</code> is now an admin.", id)
}

func (m *Messages) AdminRemoved(id int64) string {
	return fmt.Sprintf("✅ User <code>%d</code> is no longer an admin.", id)
}

func (m *Messages) Admins(permanent, dynamic []int64) string {
	var b strings.Builder
	b.WriteString("👨‍💼 <b>Bot Admins:</b>\n\n")
	n := 0
	for _, id := range permanent {
		n++
		fmt.Fprintf(&b, "%d. %s <code>%d</code> (permanent)\n", n, mention(id, "Admin"), id)
	}
	for _, id := range dynamic {
		n++
		fmt.Fprintf(&b, "%d. %s <code>%d</code>\n", n, mention(id, "Admin"), id)
	}
	if n == 0 {
		b.WriteString("No admins configured.\n")
	}
	return b.String()
}

func (m *Messages) Settings(s *cmodels.Settings, permanent []int64, logChannel int64) string {
	status := "❌ Disabled"
	if s.ForceSubscribe {
		status = "✅ Enabled"
	}
	var b strings.Builder
	b.WriteString("⚙️ <b>Bot Settings</b>\n\n")
	fmt.Fprintf(&b, "🔔 <b>Force Subscribe:</b> %s\n", status)
	fmt.Fprintf(&b, "📺 <b>Force Channels:</b> %d\n", len(s.ForceChannels))
	fmt.Fprintf(&b, "👨‍💼 <b>Admins:</b> %d\n", len(permanent)+len(s.Admins))
	fmt.Fprintf(&b, "📝 <b>Log Channel:</b> <code>%d</code>\n\n", logChannel)
	b.WriteString("<b>Commands:</b>\n")
	b.WriteString("• <code>/setforce on|off</code> - Toggle force subscribe\n")
	b.WriteString("• <code>/addchannel @channel</code> - Add channel\n")
	b.WriteString("• <code>/removechannel id</code> - Remove channel\n")
	b.WriteString("• <code>/addadmin id</code> - Add admin\n")
	b.WriteString("• <code>/removeadmin id</code> - Remove admin\n")
	return b.String()
}

func (m *Messages) BotStats(counts *umodels.Counts, stats *gmodels.Stats) string {
	total := stats.Active + stats.Ended + stats.PendingAnnouncement + stats.Announced
	var b strings.Builder
	b.WriteString("📊 <b>Bot Statistics</b>\n\n")
	fmt.Fprintf(&b, "👥 <b>Users:</b> %d\n", counts.Users)
	fmt.Fprintf(&b, "💬 <b>Groups:</b> %d\n", counts.Groups)
	fmt.Fprintf(&b, "📢 <b>Channels:</b> %d\n\n", counts.Channels)
	fmt.Fprintf(&b, "🎁 <b>Total Giveaways:</b> %d\n", total)
	fmt.Fprintf(&b, "🔥 <b>Active:</b> %d\n", stats.Active)
	fmt.Fprintf(&b, "⏳ <b>Pending Announcement:</b> %d\n", stats.PendingAnnouncement)
	fmt.Fprintf(&b, "🏁 <b>Ended:</b> %d\n", stats.Ended)
	fmt.Fprintf(&b, "📢 <b>Announced:</b> %d\n\n", stats.Announced)
	fmt.Fprintf(&b, "📅 <b>Date:</b> %s", m.now().UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

// remaining renders the time until end as "2d 3h 5m".
func (m *Messages) remaining(end time.Time) string {
	d := end.Sub(m.now())
	if d <= 0 {
		return "Ended"
	}

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, strconv.Itoa(minutes)+"m")
	}
	return strings.Join(parts, " ")
}

package bot

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	bmodels "giveaway-bot/internal/features/broadcast/models"
	gmodels "giveaway-bot/internal/features/giveaway/models"
)

func (h *Handler) onCreateGiveaway(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	sess, err := h.Dialog.Begin(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.Prompt(sess.Step), htmlOptions())
}

func (h *Handler) onCancel(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	existed, err := h.Dialog.Cancel(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.DialogCancelled(existed), htmlOptions())
}

// announceNew tells everyone about a freshly created giveaway.
func (h *Handler) announceNew(admin *tele.User, g *gmodels.Giveaway) {
	h.background("announce_new", func(ctx context.Context) {
		recipients, err := h.Audience.Recipients(ctx, bmodels.TargetAll)
		if err != nil {
			h.logger.Error().Err(err).Str("giveaway_id", g.ID).Msg("Failed to resolve audience")
			h.report(admin, html.EscapeString(h.Messages.Error(err)))
			return
		}
		res, err := h.Fanout.Fanout(ctx, recipients, h.Messages.NewGiveaway(g))
		if err != nil {
			h.logger.Warn().Err(err).Str("giveaway_id", g.ID).Msg("Giveaway announcement interrupted")
		}
		h.report(admin, h.Messages.AnnouncementSent(res))
	})
}

// onEndGiveaway closes the active giveaway. "now" (default) announces the
// winners right away, "later" leaves them for /announce.
func (h *Handler) onEndGiveaway(c tele.Context) error {
	autoAnnounce := true
	switch mode := strings.ToLower(firstArg(c)); mode {
	case "", "now":
	case "later":
		autoAnnounce = false
	default:
		return c.Send("❌ Usage: <code>/endgiveaway [now|later]</code>", htmlOptions())
	}

	admin := c.Sender()
	h.background("close", func(ctx context.Context) {
		res, err := h.Giveaways.Close(ctx, "", autoAnnounce)
		if res != nil {
			h.Log.GiveawayEnded(ctx, res.Giveaway)
			h.report(admin, h.Messages.CloseSummary(res))
		}
		if err != nil {
			h.jobFailed(admin, "close", err, res != nil)
		}
	})
	return c.Send(h.Messages.Working())
}

func (h *Handler) onAnnounce(c tele.Context) error {
	id := firstArg(c)
	admin := c.Sender()
	h.background("announce", func(ctx context.Context) {
		res, err := h.Giveaways.Announce(ctx, id)
		if res != nil {
			h.report(admin, h.Messages.AnnounceSummary(res))
		}
		if err != nil {
			h.jobFailed(admin, "announce", err, res != nil)
		}
	})
	return c.Send(h.Messages.Working())
}

func (h *Handler) onReroll(c tele.Context) error {
	id := firstArg(c)
	admin := c.Sender()
	h.background("reroll", func(ctx context.Context) {
		res, err := h.Giveaways.Reroll(ctx, id)
		if res != nil {
			h.report(admin, h.Messages.RerollSummary(res))
		}
		if err != nil {
			h.jobFailed(admin, "reroll", err, res != nil)
		}
	})
	return c.Send(h.Messages.Working())
}

func (h *Handler) onParticipants(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	var (
		g   *gmodels.Giveaway
		err error
	)
	if id := firstArg(c); id != "" {
		g, err = h.Giveaways.Get(ctx, id)
	} else {
		g, err = h.activeForJoin(ctx, c.Sender().ID)
	}
	if err != nil {
		return err
	}
	return c.Send(h.Messages.Participants(g), htmlOptions())
}

// onBroadcast sends either the replied-to message or the command text.
// An optional first word picks the audience: users, chats or all.
func (h *Handler) onBroadcast(c tele.Context) error {
	msg := c.Message()
	target, text := splitTarget(msg.Payload)

	var payload bmodels.Payload
	switch {
	case msg.ReplyTo != nil:
		payload.CopyFrom = &bmodels.MessageRef{ChatID: c.Chat().ID, MessageID: msg.ReplyTo.ID}
	case text != "":
		payload.Text = text
	default:
		return c.Send(h.Messages.BroadcastUsage(), htmlOptions())
	}

	admin := c.Sender()
	h.background("broadcast", func(ctx context.Context) {
		rec, err := h.Broadcasts.Broadcast(ctx, target, payload, admin.ID)
		if rec != nil {
			interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			h.Log.BroadcastCompleted(ctx, rec)
			h.report(admin, h.Messages.BroadcastSummary(rec, interrupted))
			return
		}
		if err != nil {
			h.jobFailed(admin, "broadcast", err, false)
		}
	})
	return c.Send(h.Messages.Working())
}

func splitTarget(payload string) (bmodels.Target, string) {
	payload = strings.TrimSpace(payload)
	word, rest, _ := strings.Cut(payload, " ")
	switch t := bmodels.Target(strings.ToLower(word)); t {
	case bmodels.TargetUsers, bmodels.TargetChats, bmodels.TargetAll:
		return t, strings.TrimSpace(rest)
	}
	return bmodels.TargetAll, payload
}

func (h *Handler) onAddChannel(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	ch, err := h.Settings.AddForceChannel(ctx, firstArg(c))
	if err != nil {
		return err
	}
	return c.Send(h.Messages.ChannelAdded(ch), htmlOptions())
}

// onRemoveChannel without an id lists the configured channels.
func (h *Handler) onRemoveChannel(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	id, err := strconv.ParseInt(firstArg(c), 10, 64)
	if err != nil {
		channels, err := h.Settings.ForceChannels(ctx)
		if err != nil {
			return err
		}
		return c.Send(h.Messages.ChannelList(channels), htmlOptions())
	}

	if err := h.Settings.RemoveForceChannel(ctx, id); err != nil {
		return err
	}
	return c.Send(h.Messages.ChannelRemoved(id), htmlOptions())
}

func (h *Handler) onSetForce(c tele.Context) error {
	var enabled bool
	switch strings.ToLower(firstArg(c)) {
	case "on", "enable", "true", "1":
		enabled = true
	case "off", "disable", "false", "0":
	default:
		return c.Send(h.Messages.SetForceUsage(), htmlOptions())
	}

	ctx, cancel := requestContext()
	defer cancel()
	if err := h.Settings.SetForceSubscribe(ctx, enabled); err != nil {
		return err
	}
	h.logger.Info().Bool("enabled", enabled).Int64("admin_id", c.Sender().ID).Msg("Force subscribe toggled")
	return c.Send(h.Messages.ForceSubscribeSet(enabled), htmlOptions())
}

func (h *Handler) onAddAdmin(c tele.Context) error {
	id, ok := targetUserID(c)
	if !ok {
		return c.Send(h.Messages.UserIDUsage("addadmin"), htmlOptions())
	}

	ctx, cancel := requestContext()
	defer cancel()
	if err := h.Settings.AddAdmin(ctx, id); err != nil {
		return err
	}
	return c.Send(h.Messages.AdminAdded(id), htmlOptions())
}

func (h *Handler) onRemoveAdmin(c tele.Context) error {
	id, ok := targetUserID(c)
	if !ok {
		return c.Send(h.Messages.UserIDUsage("removeadmin"), htmlOptions())
	}

	ctx, cancel := requestContext()
	defer cancel()
	if err := h.Settings.RemoveAdmin(ctx, id); err != nil {
		return err
	}
	return c.Send(h.Messages.AdminRemoved(id), htmlOptions())
}

func (h *Handler) onAdmins(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	permanent, dynamic, err := h.Settings.Admins(ctx)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.Admins(permanent, dynamic), htmlOptions())
}

func (h *Handler) onSettings(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	snapshot, err := h.Settings.Snapshot(ctx)
	if err != nil {
		return err
	}
	permanent, _, err := h.Settings.Admins(ctx)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.Settings(snapshot, permanent, h.LogChannel), htmlOptions())
}

func (h *Handler) onBotStats(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	counts, err := h.Audience.Counts(ctx)
	if err != nil {
		return err
	}
	stats, err := h.Giveaways.Stats(ctx)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.BotStats(counts, stats), htmlOptions())
}

// report sends a background job's outcome to the admin who started it.
func (h *Handler) report(admin *tele.User, text string) {
	if h.api == nil {
		return
	}
	if _, err := h.api.Send(admin, text, htmlOptions()); err != nil {
		h.logger.Warn().Err(err).Int64("admin_id", admin.ID).Msg("Failed to report to admin")
	}
}

// jobFailed logs a background failure; the admin hears about it unless a
// summary was already sent.
func (h *Handler) jobFailed(admin *tele.User, job string, err error, reported bool) {
	ev := h.logger.Warn()
	if isUnexpected(err) {
		ev = h.logger.Error()
	}
	ev.Err(err).Str("job", job).Int64("admin_id", admin.ID).Msg("Background job failed")

	if !reported {
		h.report(admin, html.EscapeString(h.Messages.Error(err)))
	}
}

func firstArg(c tele.Context) string {
	args := c.Args()
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

// targetUserID takes the id from the first argument or from the author of
// the replied-to message.
func targetUserID(c tele.Context) (int64, bool) {
	if arg := firstArg(c); arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		return id, err == nil && id > 0
	}
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender.ID, true
	}
	return 0, false
}
